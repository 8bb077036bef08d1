package google

import (
	"encoding/json"
	"net/http"
	"time"
)

type StatusDto struct {
	CalendarId string     `json:"calendarId"`
	Mirrored   int        `json:"mirrored"`
	LastSync   *time.Time `json:"lastSync,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
}

type Handler struct {
	mirror *Mirror
}

func NewHandler(m *Mirror) *Handler {
	return &Handler{m}
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(toStatusDto(h.mirror.Status())); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func toStatusDto(s Status) StatusDto {
	dto := StatusDto{
		CalendarId: s.CalendarId,
		Mirrored:   s.Mirrored,
		LastError:  s.LastError,
	}
	if !s.LastSync.IsZero() {
		lastSync := s.LastSync
		dto.LastSync = &lastSync
	}
	return dto
}
