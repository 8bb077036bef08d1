package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualSource lets a test decide when and in which order each live query delivers.
type manualSource struct {
	mu        sync.Mutex
	listeners map[Query]func([]Event)
	failOn    *Query
}

func newManualSource() *manualSource {
	return &manualSource{listeners: make(map[Query]func([]Event))}
}

func (s *manualSource) Watch(_ context.Context, q Query, fn func([]Event)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil && *s.failOn == q {
		return nil, errors.New("query failed")
	}
	s.listeners[q] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, q)
	}, nil
}

func (s *manualSource) emit(q Query, events ...Event) {
	s.mu.Lock()
	fn := s.listeners[q]
	s.mu.Unlock()
	if fn != nil {
		fn(events)
	}
}

func (s *manualSource) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

type recorder struct {
	mu         sync.Mutex
	broadcasts [][]Event
}

func (r *recorder) listen(_ context.Context, events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, events)
}

func (r *recorder) last() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.broadcasts) == 0 {
		return nil
	}
	return r.broadcasts[len(r.broadcasts)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.broadcasts)
}

func withUID(e Event, uid string) Event {
	e.UID = uid
	return e
}

func startedFeed(t *testing.T, ownerUid string) (*Feed, *manualSource, *recorder) {
	t.Helper()
	source := newManualSource()
	feed := NewFeed(ownerUid, source)
	rec := &recorder{}
	feed.Subscribe(rec.listen)
	require.NoError(t, feed.Start(context.Background()))
	t.Cleanup(feed.Close)
	return feed, source, rec
}

func TestFeed_OwnerRecordWinsOnDuplicateId(t *testing.T) {
	ownVersion := withUID(timedEvent("me", "Mine, edited", "2026-01-05", "10:00"), "shared")
	publicVersion := withUID(timedEvent("me", "Public copy", "2026-01-05", "10:00"), "shared")

	t.Run("owner snapshot arrives first", func(t *testing.T) {
		feed, source, rec := startedFeed(t, "me")

		source.emit(OwnedBy("me"), ownVersion)
		source.emit(WithVisibility(Public), publicVersion)

		require.Len(t, rec.last(), 1)
		assert.Equal(t, "Mine, edited", rec.last()[0].Title)
		assert.Equal(t, []Event{ownVersion}, feed.Events())
	})

	t.Run("public snapshot arrives first", func(t *testing.T) {
		feed, source, rec := startedFeed(t, "me")

		source.emit(WithVisibility(Public), publicVersion)
		source.emit(OwnedBy("me"), ownVersion)

		require.Len(t, rec.last(), 1)
		assert.Equal(t, "Mine, edited", rec.last()[0].Title)
		assert.Equal(t, []Event{ownVersion}, feed.Events())
	})

	t.Run("public refresh after owner snapshot", func(t *testing.T) {
		feed, source, _ := startedFeed(t, "me")

		source.emit(OwnedBy("me"), ownVersion)
		source.emit(WithVisibility(Public), publicVersion)
		source.emit(WithVisibility(Public), publicVersion, withUID(timedEvent("other", "Other", "2026-01-01", "08:00"), "o1"))

		assert.Equal(t, []string{"Other", "Mine, edited"}, titles(feed.Events()))
	})
}

func TestFeed_SortedByStartDateWithStableTies(t *testing.T) {
	feed, source, rec := startedFeed(t, "me")
	own := []Event{
		withUID(timedEvent("me", "own-b", "2026-02-02", "10:00"), "ob"),
		withUID(timedEvent("me", "own-a", "2026-02-01", "10:00"), "oa"),
	}
	public := []Event{
		withUID(timedEvent("x", "pub-a", "2026-02-01", "08:00"), "pa"),
		withUID(timedEvent("x", "pub-c", "2026-02-03", "08:00"), "pc"),
		withUID(timedEvent("x", "pub-early", "2026-01-15", "08:00"), "pe"),
	}

	source.emit(OwnedBy("me"), own...)
	source.emit(WithVisibility(Public), public...)

	assert.Equal(t, []string{"pub-early", "own-a", "pub-a", "own-b", "pub-c"}, titles(rec.last()))
	events := feed.Events()
	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].StartDate, events[i].StartDate)
	}
}

func TestFeed_EveryChangeRebroadcastsFullList(t *testing.T) {
	feed, source, rec := startedFeed(t, "me")
	a := withUID(timedEvent("me", "a", "2026-02-01", "10:00"), "a")
	b := withUID(timedEvent("x", "b", "2026-02-02", "10:00"), "b")

	source.emit(OwnedBy("me"), a)
	source.emit(WithVisibility(Public), b)
	source.emit(OwnedBy("me"))

	require.Equal(t, 3, rec.count())
	assert.Equal(t, []string{"a"}, titles(rec.broadcasts[0]))
	assert.Equal(t, []string{"a", "b"}, titles(rec.broadcasts[1]))
	assert.Equal(t, []string{"b"}, titles(rec.broadcasts[2]))
	assert.Equal(t, []string{"b"}, titles(feed.Events()))
}

func TestFeed_UnsubscribeAndClose(t *testing.T) {
	source := newManualSource()
	feed := NewFeed("me", source)
	rec := &recorder{}
	unsubscribe := feed.Subscribe(rec.listen)
	require.NoError(t, feed.Start(context.Background()))
	require.Equal(t, 2, source.active())

	source.emit(OwnedBy("me"), withUID(timedEvent("me", "a", "2026-02-01", "10:00"), "a"))
	unsubscribe()
	source.emit(OwnedBy("me"))

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, 0, feed.Listeners())
	assert.Empty(t, feed.Events())

	feed.Close()
	assert.Equal(t, 0, source.active())
}

func TestFeed_StartFailureReleasesOwnerQuery(t *testing.T) {
	source := newManualSource()
	public := WithVisibility(Public)
	source.failOn = &public
	feed := NewFeed("me", source)

	err := feed.Start(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 0, source.active())
}

func TestFeed_Queries(t *testing.T) {
	feed, source, _ := startedFeed(t, "me")
	mine := withUID(timedEvent("me", "Dentist", "2026-03-10", "09:00"), "m1")
	minePrivate := withUID(timedEvent("me", "Diary", "2026-03-11", "21:00"), "m2")
	minePrivate.Visibility = Private
	festival := withUID(rangeEvent("x", "Jazz Festival", "2026-03-09", "2026-03-12"), "p1")
	concert := withUID(timedEvent("x", "Concert", "2026-03-20", "20:00"), "p2")
	source.emit(OwnedBy("me"), mine, minePrivate)
	source.emit(WithVisibility(Public), festival, concert, mine)

	t.Run("by id", func(t *testing.T) {
		event, ok := feed.EventByID("p2")
		assert.True(t, ok)
		assert.Equal(t, "Concert", event.Title)
		_, ok = feed.EventByID("missing")
		assert.False(t, ok)
	})

	t.Run("by date", func(t *testing.T) {
		assert.Equal(t, []string{"Jazz Festival", "Dentist"}, titles(feed.EventsByDate("2026-03-10")))
		assert.Equal(t, []string{"Jazz Festival"}, titles(feed.EventsByDate("2026-03-12")))
		assert.Empty(t, feed.EventsByDate("2026-03-13"))
	})

	t.Run("by date range", func(t *testing.T) {
		assert.Equal(t, []string{"Jazz Festival", "Dentist", "Diary"}, titles(feed.EventsByDateRange("2026-03-10", "2026-03-11")))
		assert.Equal(t, []string{"Concert"}, titles(feed.EventsByDateRange("2026-03-13", "2026-03-31")))
	})

	t.Run("public and own", func(t *testing.T) {
		assert.Equal(t, []string{"Jazz Festival", "Dentist", "Concert"}, titles(feed.PublicEvents()))
		assert.Equal(t, []string{"Dentist", "Diary"}, titles(feed.OwnEvents()))
	})

	t.Run("search", func(t *testing.T) {
		assert.Equal(t, []string{"Jazz Festival"}, titles(feed.Search("  FEST ")))
		assert.Empty(t, feed.Search(""))
		assert.Empty(t, feed.Search("   "))
		assert.Empty(t, feed.Search("opera"))
	})
}

func TestFeed_EventsWithNotificationsAt(t *testing.T) {
	feed, source, _ := startedFeed(t, "me")
	meeting := withUID(timedEvent("me", "Meeting", "2026-03-10", "09:00"), "m1")
	meeting.Notifications = []Notification{{Type: AtEvent}, {Type: Before, Value: 10, Unit: Minutes}}
	holiday := withUID(rangeEvent("me", "Holiday", "2026-03-11", "2026-03-12"), "m2")
	holiday.Notifications = []Notification{{Type: Before, Value: 1, Unit: Days}}
	source.emit(OwnedBy("me"), meeting, holiday)

	due := feed.EventsWithNotificationsAt(time.Date(2026, 3, 10, 8, 50, 30, 0, time.UTC), time.UTC)
	require.Len(t, due, 1)
	assert.Equal(t, "Meeting", due[0].Event.Title)
	assert.Equal(t, Before, due[0].Notification.Type)
	assert.Equal(t, time.Date(2026, 3, 10, 8, 50, 0, 0, time.UTC), due[0].At)

	due = feed.EventsWithNotificationsAt(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), time.UTC)
	require.Len(t, due, 1)
	assert.Equal(t, "Holiday", due[0].Event.Title)

	assert.Empty(t, feed.EventsWithNotificationsAt(time.Date(2026, 3, 10, 8, 51, 0, 0, time.UTC), time.UTC))
}

func TestFeed_WithRepositoryStub(t *testing.T) {
	repo := NewRepositoryStub()
	repo.Put(withUID(timedEvent("other", "Public party", "2026-04-01", "20:00"), "p1"))
	private := withUID(timedEvent("other", "Secret", "2026-04-02", "20:00"), "p2")
	private.Visibility = Private
	repo.Put(private)
	feed := NewFeed("me", repo)
	rec := &recorder{}
	feed.Subscribe(rec.listen)

	require.NoError(t, feed.Start(context.Background()))
	defer feed.Close()
	repo.Put(withUID(timedEvent("me", "Mine", "2026-03-01", "10:00"), "m1"))

	assert.Equal(t, []string{"Mine", "Public party"}, titles(rec.last()))
}
