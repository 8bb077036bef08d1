package google

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// NewCalendarService builds a Calendar API client authenticated with a service-account key.
// The target calendar has to be shared with the service account's e-mail address.
func NewCalendarService(ctx context.Context, credentialsFile string) (*gcal.Service, error) {
	key, err := os.ReadFile(credentialsFile)
	if err != nil {
		err := fmt.Errorf("unable to read Google credentials file: %w", err)
		log.Error(err)
		return nil, err
	}

	jwtConfig, err := google.JWTConfigFromJSON(key, gcal.CalendarEventsScope)
	if err != nil {
		err := fmt.Errorf("unable to parse Google service account key: %w", err)
		log.Error(err)
		return nil, err
	}

	service, err := gcal.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		err := fmt.Errorf("unable to create Calendar client: %w", err)
		log.Error(err)
		return nil, err
	}
	return service, nil
}
