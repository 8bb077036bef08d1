package calendar_export

import (
	"net/http"
	"time"

	"github.com/agendazk/agendazk/internal/rest"
	"github.com/agendazk/agendazk/pkg/calendar"
	"github.com/agendazk/agendazk/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	feeds calendar.FeedProvider
	loc   *time.Location
}

func NewHandler(feeds calendar.FeedProvider, loc *time.Location) *Handler {
	return &Handler{feeds: feeds, loc: loc}
}

// Export serves the merged feed of the current user as text/calendar.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	uid, err := user.CurrentUid(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusUnauthorized, "User not identified", "")
		return
	}
	feed, err := h.feeds.FeedFor(r.Context(), uid)
	if err != nil {
		log.Errorf("failed to open calendar feed for %s: %v", uid, err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	body, err := Render(feed.Events(), h.loc, time.Now())
	if err != nil {
		log.Errorf("failed to render calendar of %s: %v", uid, err)
		rest.WriteError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="agendazk.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		log.Errorf("failed to write calendar export: %v", err)
	}
}
