package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/agendazk/agendazk/pkg/calendar"
)

// Data travels with a delivered notification so that a client can open the related event.
type Data struct {
	EventUID         string                    `json:"eventId,omitempty"`
	NotificationType calendar.NotificationType `json:"notificationType,omitempty"`
	Test             bool                      `json:"test,omitempty"`
}

type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Data  Data   `json:"data"`
}

// Delivery is what a Sender hands to a device when a trigger fires.
type Delivery struct {
	ID      string    `json:"id"`
	Target  string    `json:"target"`
	FireAt  time.Time `json:"fireAt"`
	Content Content   `json:"content"`
}

// Platform is the notification service of a device: it fires scheduled content at a given instant.
type Platform interface {
	Schedule(ctx context.Context, at time.Time, content Content) (id string, err error)
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context) error
}

// Sender pushes a fired notification to its target.
type Sender interface {
	Send(ctx context.Context, delivery Delivery) error
}

var unitNames = map[calendar.Unit][2]string{
	calendar.Minutes: {"minute", "minutes"},
	calendar.Hours:   {"hour", "hours"},
	calendar.Days:    {"day", "days"},
	calendar.Weeks:   {"week", "weeks"},
}

// ContentFor builds the text shown for notification n of event e.
func ContentFor(e calendar.Event, n calendar.Notification) Content {
	title := "Event now"
	if n.Type == calendar.Before {
		title = "Reminder - " + timeText(n)
	}
	return Content{
		Title: title,
		Body:  e.Title,
		Data: Data{
			EventUID:         e.UID,
			NotificationType: n.Type,
		},
	}
}

func timeText(n calendar.Notification) string {
	names, ok := unitNames[n.Unit]
	if !ok {
		return fmt.Sprintf("in %d %s", n.Value, n.Unit)
	}
	if n.Value == 1 {
		return fmt.Sprintf("in %d %s", n.Value, names[0])
	}
	return fmt.Sprintf("in %d %s", n.Value, names[1])
}

// Key identifies one notification of one event.
func Key(eventUid string, n calendar.Notification) string {
	value := "at_event"
	if n.Value != 0 {
		value = fmt.Sprint(n.Value)
	}
	return fmt.Sprintf("%s_%s_%s_%s", eventUid, n.Type, value, n.Unit)
}
