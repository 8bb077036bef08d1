package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type stubWatch struct {
	query Query
	fn    func([]Event)
}

// RepositoryStub is an in-memory Repository that also acts as a LiveSource: watchers
// receive the refreshed result set synchronously after every mutation.
type RepositoryStub struct {
	mu       sync.Mutex
	items    map[string]Event // uid -> event
	watches  map[int]stubWatch
	nextId   int
	failWith error
	now      func() time.Time
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items:   make(map[string]Event),
		watches: make(map[int]stubWatch),
		now:     time.Now,
	}
}

// FailWith makes every following repository call return err. Pass nil to recover.
func (r *RepositoryStub) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

func (r *RepositoryStub) StoreEvent(_ context.Context, event Event) (Event, error) {
	r.mu.Lock()
	if r.failWith != nil {
		defer r.mu.Unlock()
		return Event{}, r.failWith
	}
	event.UID = uuid.NewString()
	event.CreatedAt = r.now()
	event.UpdatedAt = event.CreatedAt
	event.Notifications = copyNotifications(event.Notifications)
	r.items[event.UID] = event
	r.mu.Unlock()

	r.emit()
	return event, nil
}

func (r *RepositoryStub) FindEvent(_ context.Context, uid string) (Event, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return Event{}, false, r.failWith
	}
	event, ok := r.items[uid]
	return event, ok, nil
}

func (r *RepositoryStub) UpdateEvent(_ context.Context, event Event) (Event, error) {
	r.mu.Lock()
	if r.failWith != nil {
		defer r.mu.Unlock()
		return Event{}, r.failWith
	}
	existing, ok := r.items[event.UID]
	if !ok {
		r.mu.Unlock()
		return Event{}, ErrEventNotFound
	}
	event.OwnerUid = existing.OwnerUid
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = r.now()
	event.Notifications = copyNotifications(event.Notifications)
	r.items[event.UID] = event
	r.mu.Unlock()

	r.emit()
	return event, nil
}

func (r *RepositoryStub) DeleteEvent(_ context.Context, uid string) error {
	r.mu.Lock()
	if r.failWith != nil {
		defer r.mu.Unlock()
		return r.failWith
	}
	if _, ok := r.items[uid]; !ok {
		r.mu.Unlock()
		return ErrEventNotFound
	}
	delete(r.items, uid)
	r.mu.Unlock()

	r.emit()
	return nil
}

func (r *RepositoryStub) ListEvents(_ context.Context, q Query) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	return r.list(q), nil
}

// Watch delivers the current result set of q before returning.
func (r *RepositoryStub) Watch(_ context.Context, q Query, fn func([]Event)) (func(), error) {
	r.mu.Lock()
	if r.failWith != nil {
		defer r.mu.Unlock()
		return nil, r.failWith
	}
	r.nextId++
	id := r.nextId
	r.watches[id] = stubWatch{query: q, fn: fn}
	initial := r.list(q)
	r.mu.Unlock()

	fn(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.watches, id)
		})
	}, nil
}

// Put stores event as is, keeping its UID, and notifies watchers.
func (r *RepositoryStub) Put(event Event) {
	r.mu.Lock()
	r.items[event.UID] = event
	r.mu.Unlock()
	r.emit()
}

// GetAllEvents returns every stored event, ordered by start date.
func (r *RepositoryStub) GetAllEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Event, 0, len(r.items))
	for _, event := range r.items {
		result = append(result, event)
	}
	sortByStart(result)
	return result
}

func (r *RepositoryStub) emit() {
	r.mu.Lock()
	ids := make([]int, 0, len(r.watches))
	for id := range r.watches {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	type delivery struct {
		fn     func([]Event)
		events []Event
	}
	deliveries := make([]delivery, 0, len(ids))
	for _, id := range ids {
		w := r.watches[id]
		deliveries = append(deliveries, delivery{fn: w.fn, events: r.list(w.query)})
	}
	r.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.events)
	}
}

// list must be called with mu held.
func (r *RepositoryStub) list(q Query) []Event {
	result := make([]Event, 0)
	for _, event := range r.items {
		if q.Matches(event) {
			result = append(result, event)
		}
	}
	sortByStart(result)
	return result
}

// sortByStart orders by start date, falling back to uid so map iteration order never leaks out.
func sortByStart(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartDate != events[j].StartDate {
			return events[i].StartDate < events[j].StartDate
		}
		return events[i].UID < events[j].UID
	})
}

func copyNotifications(notifications []Notification) []Notification {
	if notifications == nil {
		return nil
	}
	return append([]Notification(nil), notifications...)
}
