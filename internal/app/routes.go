package app

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// User management
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user/name-availability", deps.UserHandler.IsUsernameAvailable).Methods("GET").Queries("username", "{username}")
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/user/current", deps.UserHandler.UpdateUser).Methods("PUT")
	r.HandleFunc("/api/user/current/session", deps.UserHandler.StartSession).Methods("POST")

	// Calendar
	r.HandleFunc("/api/calendar/event", deps.CalendarHandler.GetEvents).Methods("GET")
	r.HandleFunc("/api/calendar/event", deps.CalendarHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/calendar/event/public", deps.CalendarHandler.GetPublicEvents).Methods("GET")
	r.HandleFunc("/api/calendar/event/mine", deps.CalendarHandler.GetOwnEvents).Methods("GET")
	r.HandleFunc("/api/calendar/event/{eventUid}", deps.CalendarHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/calendar/event/{eventUid}", deps.CalendarHandler.UpdateEvent).Methods("PUT")
	r.HandleFunc("/api/calendar/event/{eventUid}", deps.CalendarHandler.DeleteEvent).Methods("DELETE")
	r.HandleFunc("/api/calendar/export.ics", deps.ExportHandler.Export).Methods("GET")

	// Notifications
	r.HandleFunc("/api/notification", deps.NotificationHandler.GetScheduled).Methods("GET")
	r.HandleFunc("/api/notification/due", deps.NotificationHandler.GetDue).Methods("GET")
	r.HandleFunc("/api/notification/event/{eventUid}", deps.NotificationHandler.CancelEvent).Methods("DELETE")
	r.HandleFunc("/api/notification/test", deps.NotificationHandler.SendTest).Methods("POST")
	r.HandleFunc("/api/notification/inbox", deps.NotificationHandler.GetInbox).Methods("GET")

	// Google mirror
	if deps.GoogleHandler != nil {
		r.HandleFunc("/api/integrations/google/status", deps.GoogleHandler.GetStatus).Methods("GET")
	}

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
