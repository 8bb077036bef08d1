package calendar

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/agendazk/agendazk/internal/rest"
	"github.com/agendazk/agendazk/pkg/user"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	calendar Service
	feeds    FeedProvider
}

type EventDTO struct {
	UID           string         `json:"id"`
	Title         string         `json:"title"`
	Type          EventType      `json:"type"`
	StartDate     string         `json:"startDate"`
	EndDate       string         `json:"endDate,omitempty"`
	StartTime     string         `json:"startTime,omitempty"`
	EndTime       string         `json:"endTime,omitempty"`
	IsAllDay      bool           `json:"isAllDay"`
	Visibility    Visibility     `json:"visibility"`
	OwnerUid      string         `json:"ownerUid,omitempty"`
	Notifications []Notification `json:"notifications"`
	CreatedAt     *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time     `json:"updatedAt,omitempty"`
}

func NewHandler(s Service, feeds FeedProvider) *Handler {
	return &Handler{calendar: s, feeds: feeds}
}

// currentFeed resolves the merged feed of the requesting user, writing the error response
// itself when it cannot.
func (h *Handler) currentFeed(w http.ResponseWriter, r *http.Request) (*Feed, bool) {
	uid, err := user.CurrentUid(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	feed, err := h.feeds.FeedFor(r.Context(), uid)
	if err != nil {
		log.Errorf("failed to open calendar feed for %s: %v", uid, err)
		writeServiceError(w, err)
		return nil, false
	}
	return feed, true
}

func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.currentFeed(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	var events []Event
	switch {
	case params.Has("date"):
		date := params.Get("date")
		if !isDate(date) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid date format", "'date' must be in YYYY-MM-DD format")
			return
		}
		events = feed.EventsByDate(date)
	case params.Has("from") || params.Has("to"):
		from, to := params.Get("from"), params.Get("to")
		if !isDate(from) || !isDate(to) {
			rest.WriteError(w, http.StatusBadRequest, "Invalid date range", "'from' and 'to' must be in YYYY-MM-DD format")
			return
		}
		events = feed.EventsByDateRange(from, to)
	case params.Has("q"):
		events = feed.Search(params.Get("q"))
	default:
		events = feed.Events()
	}

	log.Tracef("Events returned: %d", len(events))
	rest.WriteJSON(w, http.StatusOK, eventsToDTO(events))
}

func (h *Handler) GetPublicEvents(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.currentFeed(w, r)
	if !ok {
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventsToDTO(feed.PublicEvents()))
}

func (h *Handler) GetOwnEvents(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.currentFeed(w, r)
	if !ok {
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventsToDTO(feed.OwnEvents()))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.currentFeed(w, r)
	if !ok {
		return
	}
	eventUid := mux.Vars(r)["eventUid"]
	event, found := feed.EventByID(eventUid)
	if !found {
		writeServiceError(w, ErrEventNotFound)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(event))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var eventDTO EventDTO
	if err := json.NewDecoder(r.Body).Decode(&eventDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	created, err := h.calendar.CreateEvent(r.Context(), dtoToEvent(eventDTO))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, eventToDTO(created))
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var eventDTO EventDTO
	if err := json.NewDecoder(r.Body).Decode(&eventDTO); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	eventDTO.UID = mux.Vars(r)["eventUid"]

	updated, err := h.calendar.UpdateEvent(r.Context(), dtoToEvent(eventDTO))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, eventToDTO(updated))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventUid := mux.Vars(r)["eventUid"]
	if err := h.calendar.DeleteEvent(r.Context(), eventUid); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidEvent):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrEventNotFound):
		rest.WriteError(w, http.StatusNotFound, "Event not found", "")
	case errors.Is(err, ErrNotEventOwner):
		rest.WriteError(w, http.StatusForbidden, "Event belongs to another user", "")
	case errors.Is(err, user.ErrNoUser):
		rest.WriteError(w, http.StatusUnauthorized, "User not identified", "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

func eventsToDTO(events []Event) []EventDTO {
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, eventToDTO(e))
	}
	return dtos
}

func eventToDTO(e Event) EventDTO {
	dto := EventDTO{
		UID:           e.UID,
		Title:         e.Title,
		Type:          e.Type,
		StartDate:     e.StartDate,
		EndDate:       e.EndDate,
		StartTime:     e.StartTime,
		EndTime:       e.EndTime,
		IsAllDay:      e.IsAllDay,
		Visibility:    e.Visibility,
		OwnerUid:      e.OwnerUid,
		Notifications: e.Notifications,
	}
	if dto.Notifications == nil {
		dto.Notifications = []Notification{}
	}
	if !e.CreatedAt.IsZero() {
		createdAt := e.CreatedAt
		dto.CreatedAt = &createdAt
	}
	if !e.UpdatedAt.IsZero() {
		updatedAt := e.UpdatedAt
		dto.UpdatedAt = &updatedAt
	}
	return dto
}

func dtoToEvent(dto EventDTO) Event {
	return Event{
		UID:           dto.UID,
		Title:         dto.Title,
		Type:          dto.Type,
		StartDate:     dto.StartDate,
		EndDate:       dto.EndDate,
		StartTime:     dto.StartTime,
		EndTime:       dto.EndTime,
		IsAllDay:      dto.IsAllDay,
		Visibility:    dto.Visibility,
		Notifications: dto.Notifications,
	}
}
