package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agendazk/agendazk/internal/utils"
	"github.com/agendazk/agendazk/pkg/calendar"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

const (
	sourceProperty = "source"
	sourceValue    = "agendazk"
	uidProperty    = "uid"

	maxReminders      = 5
	maxReminderMinute = 4 * 7 * 24 * 60
)

// Status describes the outcome of the last mirror run.
type Status struct {
	CalendarId string
	Mirrored   int
	LastSync   time.Time
	LastError  string
}

// Mirror copies every public event into a single Google Calendar and keeps it in step with
// the public live query.
type Mirror struct {
	service    *gcal.Service
	calendarId string
	loc        *time.Location
	clock      utils.Clock

	pending chan []calendar.Event

	syncMu   sync.Mutex
	mirrored map[string]bool

	mu     sync.Mutex
	ids    []string
	status Status
}

func NewMirror(service *gcal.Service, calendarId string, loc *time.Location, clock utils.Clock) *Mirror {
	return &Mirror{
		service:    service,
		calendarId: calendarId,
		loc:        loc,
		clock:      clock,
		pending:    make(chan []calendar.Event, 1),
		status:     Status{CalendarId: calendarId},
	}
}

// Run subscribes to the public events of source and mirrors each delivered snapshot until
// ctx is done. Only the latest snapshot is kept while a sync is in progress.
func (m *Mirror) Run(ctx context.Context, source calendar.LiveSource) error {
	unsubscribe, err := source.Watch(ctx, calendar.WithVisibility(calendar.Public), m.enqueue)
	if err != nil {
		return fmt.Errorf("failed to watch public events: %w", err)
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case events := <-m.pending:
			if err := m.Sync(ctx, events); err != nil {
				log.Errorf("google mirror sync failed: %v", err)
			}
		}
	}
}

func (m *Mirror) enqueue(events []calendar.Event) {
	for {
		select {
		case m.pending <- events:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

// Sync upserts the given public events and removes previously mirrored events that are
// no longer part of the set. Individual failures do not stop the run.
func (m *Mirror) Sync(ctx context.Context, events []calendar.Event) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	if m.mirrored == nil {
		known, err := m.listMirrored(ctx)
		if err != nil {
			m.record(err)
			return err
		}
		m.mirrored = known
	}

	var errs []error
	current := make(map[string]bool, len(events))
	for _, e := range events {
		id := EventId(e.UID)
		current[id] = true
		if err := m.upsert(ctx, id, e); err != nil {
			errs = append(errs, err)
			continue
		}
		m.mirrored[id] = true
	}

	for id := range m.mirrored {
		if current[id] {
			continue
		}
		if err := m.delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(m.mirrored, id)
	}

	err := errors.Join(errs...)
	m.record(err)
	return err
}

// record publishes the outcome of a run. Callers hold syncMu.
func (m *Mirror) record(err error) {
	ids := make([]string, 0, len(m.mirrored))
	for id := range m.mirrored {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = ids
	m.status.LastSync = m.clock.Now()
	m.status.Mirrored = len(ids)
	m.status.LastError = ""
	if err != nil {
		m.status.LastError = err.Error()
	}
}

func (m *Mirror) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// MirroredIds returns the Google event ids known to be mirrored after the last run, sorted.
func (m *Mirror) MirroredIds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

func (m *Mirror) listMirrored(ctx context.Context) (map[string]bool, error) {
	known := make(map[string]bool)
	err := m.service.Events.List(m.calendarId).
		PrivateExtendedProperty(sourceProperty+"="+sourceValue).
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				if item.Status != "cancelled" {
					known[item.Id] = true
				}
			}
			return nil
		})
	if err != nil {
		err := fmt.Errorf("unable to list mirrored events in Google Calendar: %w", err)
		log.Error(err)
		return nil, err
	}
	return known, nil
}

func (m *Mirror) upsert(ctx context.Context, id string, e calendar.Event) error {
	googleEvent, err := toGoogleEvent(id, e, m.loc)
	if err != nil {
		log.Warnf("skipping event %s in google mirror: %v", e.UID, err)
		return nil
	}

	_, found, err := m.get(ctx, id)
	if err != nil {
		return err
	}

	if found {
		_, err = m.service.Events.Update(m.calendarId, id, googleEvent).Context(ctx).Do()
	} else {
		_, err = m.service.Events.Insert(m.calendarId, googleEvent).Context(ctx).Do()
	}
	if err != nil {
		err := fmt.Errorf("unable to store event %s in Google Calendar: %w", e.UID, err)
		log.Error(err)
		return err
	}
	log.Debugf("mirrored event %s as %s (update: %t)", e.UID, id, found)
	return nil
}

func (m *Mirror) get(ctx context.Context, id string) (*gcal.Event, bool, error) {
	event, err := m.service.Events.Get(m.calendarId, id).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return nil, false, nil
		}
		err := fmt.Errorf("unable to get event %s from Google Calendar: %w", id, err)
		log.Error(err)
		return nil, false, err
	}
	return event, true, nil
}

func (m *Mirror) delete(ctx context.Context, id string) error {
	err := m.service.Events.Delete(m.calendarId, id).Context(ctx).Do()
	if err != nil && !isGone(err) {
		err := fmt.Errorf("unable to delete event %s from Google Calendar: %w", id, err)
		log.Error(err)
		return err
	}
	return nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

// EventId derives the Google event id from an event uid. Google ids only allow base32hex
// characters, which a lowercase UUID without dashes satisfies.
func EventId(uid string) string {
	return strings.ToLower(strings.ReplaceAll(uid, "-", ""))
}

func toGoogleEvent(id string, e calendar.Event, loc *time.Location) (*gcal.Event, error) {
	googleEvent := &gcal.Event{
		Id:      id,
		Summary: e.Title,
		Status:  "confirmed",
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				sourceProperty: sourceValue,
				uidProperty:    e.UID,
			},
		},
		Reminders: toReminders(e.Notifications),
	}

	if e.IsAllDay || e.StartTime == "" {
		last, err := time.Parse(calendar.DateLayout, e.LastDate())
		if err != nil {
			return nil, fmt.Errorf("invalid end date: %w", err)
		}
		googleEvent.Start = &gcal.EventDateTime{Date: e.StartDate}
		googleEvent.End = &gcal.EventDateTime{Date: last.AddDate(0, 0, 1).Format(calendar.DateLayout)}
		return googleEvent, nil
	}

	start, err := calendar.EventDateTime(e, loc)
	if err != nil {
		return nil, err
	}
	end, err := endDateTime(e, start, loc)
	if err != nil {
		return nil, err
	}
	googleEvent.Start = &gcal.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()}
	googleEvent.End = &gcal.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()}
	return googleEvent, nil
}

// endDateTime is the end time on the last date, or one hour after the start time on the
// last date when the event has no end time.
func endDateTime(e calendar.Event, start time.Time, loc *time.Location) (time.Time, error) {
	clock := e.EndTime
	if clock == "" {
		clock = e.StartTime
	}
	end, err := time.ParseInLocation(calendar.DateLayout+" "+calendar.TimeLayout, e.LastDate()+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid end of event %s: %w", e.UID, err)
	}
	if e.EndTime == "" || !end.After(start) {
		end = end.Add(time.Hour)
	}
	return end, nil
}

func toReminders(notifications []calendar.Notification) *gcal.EventReminders {
	overrides := make([]*gcal.EventReminder, 0, maxReminders)
	for _, n := range notifications {
		if len(overrides) == maxReminders {
			break
		}
		minutes := calendar.OffsetMinutes(n)
		if n.Type != calendar.AtEvent && (n.Type != calendar.Before || minutes <= 0) {
			continue
		}
		if minutes > maxReminderMinute {
			continue
		}
		overrides = append(overrides, &gcal.EventReminder{
			Method:          "popup",
			Minutes:         int64(minutes),
			ForceSendFields: []string{"Minutes"},
		})
	}
	return &gcal.EventReminders{
		UseDefault:      false,
		Overrides:       overrides,
		ForceSendFields: []string{"UseDefault"},
	}
}
