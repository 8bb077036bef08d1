package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agendazk/agendazk/internal/utils"
	"github.com/agendazk/agendazk/pkg/calendar"
	"github.com/agendazk/agendazk/pkg/user"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInbox map[string][]Delivery

func (f fakeInbox) Inbox(_ context.Context, target string) ([]Delivery, error) {
	return f[target], nil
}

type notificationFixture struct {
	router    *mux.Router
	repo      *calendar.RepositoryStub
	hub       *Hub
	clock     *utils.MockClock
	platforms map[string]*fakePlatform
}

func setupNotificationHandler(t *testing.T) *notificationFixture {
	repo := calendar.NewRepositoryStub()
	registry := calendar.NewRegistry(repo)
	t.Cleanup(registry.Close)
	platforms := make(map[string]*fakePlatform)
	clock := utils.NewMockClock(now)
	hub := NewHub(func(ownerUid string) Platform {
		platform := newFakePlatform()
		platforms[ownerUid] = platform
		return platform
	}, clock, time.UTC, NewMetrics(prometheus.NewRegistry()))
	registry.OnFeedStarted(hub.Attach)

	inbox := fakeInbox{"alice": {delivery("n1", "alice")}}
	handler := NewHandler(hub, registry, time.UTC, inbox, clock)
	router := mux.NewRouter()
	router.HandleFunc("/api/notification", handler.GetScheduled).Methods("GET")
	router.HandleFunc("/api/notification/due", handler.GetDue).Methods("GET")
	router.HandleFunc("/api/notification/inbox", handler.GetInbox).Methods("GET")
	router.HandleFunc("/api/notification/test", handler.SendTest).Methods("POST")
	router.HandleFunc("/api/notification/event/{eventUid}", handler.CancelEvent).Methods("DELETE")
	return &notificationFixture{router: router, repo: repo, hub: hub, clock: clock, platforms: platforms}
}

func (f *notificationFixture) do(uid, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if uid != "" {
		req = req.WithContext(user.WithUser(req.Context(), user.User{Uid: uid}))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHandler_GetScheduled(t *testing.T) {
	// given
	f := setupNotificationHandler(t)
	f.repo.Put(event("e1", "2026-03-10", "09:00", atEvent, before(15, calendar.Minutes)))

	// when
	w := f.do("alice", http.MethodGet, "/api/notification")

	// then
	require.Equal(t, http.StatusOK, w.Code)
	var triggers []TriggerDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&triggers))
	require.Len(t, triggers, 2)
	assert.Equal(t, "e1_before_15_minutes", triggers[0].Key)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 45, 0, 0, time.UTC), triggers[0].At.UTC())
	assert.Equal(t, "Reminder - in 15 minutes", triggers[0].Title)
	assert.Equal(t, calendar.AtEvent, triggers[1].NotificationType)
}

func TestHandler_SchedulersFollowLaterChanges(t *testing.T) {
	f := setupNotificationHandler(t)
	require.Equal(t, http.StatusOK, f.do("bob", http.MethodGet, "/api/notification").Code)

	f.repo.Put(event("e1", "2026-03-10", "09:00", atEvent))

	scheduler, ok := f.hub.SchedulerFor("bob")
	require.True(t, ok)
	assert.Len(t, scheduler.Scheduled(), 1)
	assert.Len(t, f.platforms["bob"].calls(), 1)
}

func TestHandler_GetDue(t *testing.T) {
	f := setupNotificationHandler(t)
	f.repo.Put(event("e1", "2026-03-10", "09:00", before(15, calendar.Minutes)))

	w := f.do("alice", http.MethodGet, "/api/notification/due?at=2026-03-10T08:45:20Z")
	require.Equal(t, http.StatusOK, w.Code)
	var due []DueDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&due))
	require.Len(t, due, 1)
	assert.Equal(t, "e1", due[0].EventUID)
	assert.Equal(t, "Event e1", due[0].EventTitle)

	w = f.do("alice", http.MethodGet, "/api/notification/due?at=tomorrow")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetDue_DefaultsToClock(t *testing.T) {
	// given
	f := setupNotificationHandler(t)
	f.repo.Put(event("e1", "2026-03-10", "09:00", before(15, calendar.Minutes)))

	// when nothing is due yet
	w := f.do("alice", http.MethodGet, "/api/notification/due")

	// then
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	// when the clock reaches the reminder
	f.clock.SetNow(time.Date(2026, 3, 10, 8, 45, 20, 0, time.UTC))
	w = f.do("alice", http.MethodGet, "/api/notification/due")

	// then
	require.Equal(t, http.StatusOK, w.Code)
	var due []DueDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&due))
	require.Len(t, due, 1)
	assert.Equal(t, "e1", due[0].EventUID)
	assert.True(t, due[0].At.Equal(time.Date(2026, 3, 10, 8, 45, 0, 0, time.UTC)))
}

func TestHandler_CancelEvent(t *testing.T) {
	f := setupNotificationHandler(t)
	f.repo.Put(event("e1", "2026-03-10", "09:00", atEvent, before(15, calendar.Minutes)))
	f.repo.Put(event("e2", "2026-03-10", "10:00", atEvent))

	w := f.do("alice", http.MethodDelete, "/api/notification/event/e1")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"cancelled":2}`, w.Body.String())
	scheduler, _ := f.hub.SchedulerFor("alice")
	assert.Len(t, scheduler.Scheduled(), 1)
}

func TestHandler_SendTestAndInbox(t *testing.T) {
	f := setupNotificationHandler(t)

	w := f.do("alice", http.MethodPost, "/api/notification/test")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, f.platforms["alice"].calls(), 1)

	w = f.do("alice", http.MethodGet, "/api/notification/inbox")
	require.Equal(t, http.StatusOK, w.Code)
	var inbox []Delivery
	require.NoError(t, json.NewDecoder(w.Body).Decode(&inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, "n1", inbox[0].ID)
}

func TestHandler_RequiresUser(t *testing.T) {
	f := setupNotificationHandler(t)

	for _, target := range []string{"/api/notification", "/api/notification/due", "/api/notification/inbox"} {
		assert.Equal(t, http.StatusUnauthorized, f.do("", http.MethodGet, target).Code, target)
	}
}

func TestHub_CloseCancelsAllPlatforms(t *testing.T) {
	f := setupNotificationHandler(t)
	f.repo.Put(event("e1", "2026-03-10", "09:00", atEvent))
	require.Equal(t, http.StatusOK, f.do("alice", http.MethodGet, "/api/notification").Code)
	require.Len(t, f.platforms["alice"].calls(), 1)

	f.hub.Close(context.Background())

	assert.Empty(t, f.platforms["alice"].calls())
}
