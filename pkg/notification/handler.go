package notification

import (
	"context"
	"net/http"
	"time"

	"github.com/agendazk/agendazk/internal/rest"
	"github.com/agendazk/agendazk/internal/utils"
	"github.com/agendazk/agendazk/pkg/calendar"
	"github.com/agendazk/agendazk/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// InboxReader returns the deliveries kept for a device, newest first.
type InboxReader interface {
	Inbox(ctx context.Context, target string) ([]Delivery, error)
}

type Handler struct {
	hub   *Hub
	feeds calendar.FeedProvider
	loc   *time.Location
	inbox InboxReader
	clock utils.Clock
}

type TriggerDTO struct {
	Key              string                    `json:"key"`
	EventUID         string                    `json:"eventId"`
	NotificationType calendar.NotificationType `json:"notificationType"`
	Value            int                       `json:"value,omitempty"`
	Unit             calendar.Unit             `json:"unit,omitempty"`
	At               time.Time                 `json:"at"`
	Title            string                    `json:"title"`
	Body             string                    `json:"body"`
}

type DueDTO struct {
	EventUID     string                `json:"eventId"`
	EventTitle   string                `json:"eventTitle"`
	Notification calendar.Notification `json:"notification"`
	At           time.Time             `json:"at"`
}

// NewHandler creates the notification endpoints. inbox may be nil when deliveries are not stored.
func NewHandler(hub *Hub, feeds calendar.FeedProvider, loc *time.Location, inbox InboxReader, clock utils.Clock) *Handler {
	return &Handler{hub: hub, feeds: feeds, loc: loc, inbox: inbox, clock: clock}
}

// current opens the feed of the requesting user, which also attaches the user's scheduler.
func (h *Handler) current(w http.ResponseWriter, r *http.Request) (*calendar.Feed, *Scheduler, bool) {
	uid, err := user.CurrentUid(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusUnauthorized, "User not identified", "")
		return nil, nil, false
	}
	feed, err := h.feeds.FeedFor(r.Context(), uid)
	if err != nil {
		log.Errorf("failed to open calendar feed for %s: %v", uid, err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return nil, nil, false
	}
	scheduler, ok := h.hub.SchedulerFor(uid)
	if !ok {
		log.Errorf("no notification scheduler for %s", uid)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return nil, nil, false
	}
	return feed, scheduler, true
}

func (h *Handler) GetScheduled(w http.ResponseWriter, r *http.Request) {
	_, scheduler, ok := h.current(w, r)
	if !ok {
		return
	}
	triggers := scheduler.Scheduled()
	dtos := make([]TriggerDTO, 0, len(triggers))
	for _, t := range triggers {
		dtos = append(dtos, TriggerDTO{
			Key:              t.Key,
			EventUID:         t.EventUID,
			NotificationType: t.Notification.Type,
			Value:            t.Notification.Value,
			Unit:             t.Notification.Unit,
			At:               t.At,
			Title:            t.Content.Title,
			Body:             t.Content.Body,
		})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetDue(w http.ResponseWriter, r *http.Request) {
	feed, _, ok := h.current(w, r)
	if !ok {
		return
	}
	at := h.clock.Now()
	if atString := r.URL.Query().Get("at"); atString != "" {
		parsed, err := time.Parse(time.RFC3339, atString)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid at (date) format", "'at' must be in RFC3339 format")
			return
		}
		at = parsed
	}

	due := feed.EventsWithNotificationsAt(at, h.loc)
	dtos := make([]DueDTO, 0, len(due))
	for _, d := range due {
		dtos = append(dtos, DueDTO{
			EventUID:     d.Event.UID,
			EventTitle:   d.Event.Title,
			Notification: d.Notification,
			At:           d.At,
		})
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	_, scheduler, ok := h.current(w, r)
	if !ok {
		return
	}
	eventUid := mux.Vars(r)["eventUid"]
	cancelled := scheduler.CancelEventNotifications(r.Context(), eventUid)
	log.Debugf("Cancelled %d notification(s) of event %s", cancelled, eventUid)
	rest.WriteJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}

func (h *Handler) SendTest(w http.ResponseWriter, r *http.Request) {
	_, scheduler, ok := h.current(w, r)
	if !ok {
		return
	}
	at, err := scheduler.SendTest(r.Context())
	if err != nil {
		log.Errorf("failed to schedule test notification: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	rest.WriteJSON(w, http.StatusAccepted, map[string]time.Time{"fireAt": at})
}

func (h *Handler) GetInbox(w http.ResponseWriter, r *http.Request) {
	uid, err := user.CurrentUid(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusUnauthorized, "User not identified", "")
		return
	}
	if h.inbox == nil {
		rest.WriteJSON(w, http.StatusOK, []Delivery{})
		return
	}
	deliveries, err := h.inbox.Inbox(r.Context(), uid)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, deliveries)
}
