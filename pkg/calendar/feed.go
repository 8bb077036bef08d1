package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agendazk/agendazk/internal/event_bus"
	log "github.com/sirupsen/logrus"
)

const EventsChangedType event_bus.EventType = "calendar.events_changed"

// EventsChanged carries the complete merged event list of one feed.
type EventsChanged struct {
	OwnerUid string
	Events   []Event
}

// dueWindow is how close to the requested instant a trigger must be to count as due.
const dueWindow = time.Minute

// DueNotification is a notification whose trigger time falls around a requested instant.
type DueNotification struct {
	Event        Event
	Notification Notification
	At           time.Time
}

// Feed is the merged view of one user's own events and all public events. Each change
// on either live query replaces that snapshot, recomputes the merged list and
// re-broadcasts it in full to every listener.
type Feed struct {
	ownerUid string
	source   LiveSource
	bus      *event_bus.EventBus

	// updateMu serialises snapshot updates together with their broadcast, so listeners
	// see broadcasts in the order the snapshots arrived.
	updateMu sync.Mutex

	mu           sync.RWMutex
	own          []Event
	public       []Event
	merged       []Event
	unsubscribes []func()
	started      bool
	closed       bool
}

func NewFeed(ownerUid string, source LiveSource) *Feed {
	return &Feed{
		ownerUid: ownerUid,
		source:   source,
		bus:      event_bus.NewEventBus(),
		merged:   []Event{},
	}
}

func (f *Feed) OwnerUid() string {
	return f.ownerUid
}

// Start opens the owner-scoped and public live queries. Listeners subscribed before Start
// receive the initial broadcasts.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return nil
	}
	f.started = true
	f.mu.Unlock()

	unsubscribeOwn, err := f.source.Watch(ctx, OwnedBy(f.ownerUid), f.onOwnEvents)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events of %s: %w", f.ownerUid, err)
	}
	unsubscribePublic, err := f.source.Watch(ctx, WithVisibility(Public), f.onPublicEvents)
	if err != nil {
		unsubscribeOwn()
		return fmt.Errorf("failed to subscribe to public events: %w", err)
	}

	f.mu.Lock()
	f.unsubscribes = append(f.unsubscribes, unsubscribeOwn, unsubscribePublic)
	f.mu.Unlock()
	log.Debugf("Calendar feed started for user %s", f.ownerUid)
	return nil
}

// Close stops both live queries. No broadcast happens afterwards.
func (f *Feed) Close() {
	f.mu.Lock()
	unsubscribes := f.unsubscribes
	f.unsubscribes = nil
	f.closed = true
	f.mu.Unlock()

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}

// Subscribe registers a listener for the full merged list. The returned function removes it.
func (f *Feed) Subscribe(fn func(ctx context.Context, events []Event)) (unsubscribe func()) {
	return event_bus.SubscribeTyped[EventsChanged](f.bus, EventsChangedType, func(e event_bus.EventT[EventsChanged]) error {
		fn(e.Context(), e.Data.Events)
		return nil
	})
}

func (f *Feed) Listeners() int {
	return f.bus.Subscribers(EventsChangedType)
}

func (f *Feed) onOwnEvents(events []Event) {
	f.update(func() { f.own = events })
}

func (f *Feed) onPublicEvents(events []Event) {
	f.update(func() { f.public = events })
}

func (f *Feed) update(set func()) {
	f.updateMu.Lock()
	defer f.updateMu.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	set()
	f.merged = mergeEvents(f.own, f.public)
	snapshot := append([]Event(nil), f.merged...)
	f.mu.Unlock()

	err := f.bus.Publish(event_bus.NewEvent(context.Background(), EventsChangedType, EventsChanged{
		OwnerUid: f.ownerUid,
		Events:   snapshot,
	}))
	if err != nil {
		log.Errorf("failed to broadcast events of %s: %v", f.ownerUid, err)
	}
}

// mergeEvents returns own followed by every public event whose uid is not owned, stable
// sorted by start date. An owned record always wins over a public one with the same uid.
func mergeEvents(own, public []Event) []Event {
	ownIds := make(map[string]struct{}, len(own))
	merged := make([]Event, 0, len(own)+len(public))
	for _, e := range own {
		ownIds[e.UID] = struct{}{}
		merged = append(merged, e)
	}
	for _, e := range public {
		if _, ok := ownIds[e.UID]; ok {
			continue
		}
		merged = append(merged, e)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartDate < merged[j].StartDate
	})
	return merged
}

func (f *Feed) filter(keep func(Event) bool) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := make([]Event, 0)
	for _, e := range f.merged {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// Events returns a copy of the merged list.
func (f *Feed) Events() []Event {
	return f.filter(func(Event) bool { return true })
}

func (f *Feed) EventByID(uid string) (Event, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, e := range f.merged {
		if e.UID == uid {
			return e, true
		}
	}
	return Event{}, false
}

func (f *Feed) EventsByDate(date string) []Event {
	return f.filter(func(e Event) bool { return e.OccursOn(date) })
}

func (f *Feed) EventsByDateRange(from, to string) []Event {
	return f.filter(func(e Event) bool { return e.Overlaps(from, to) })
}

func (f *Feed) PublicEvents() []Event {
	return f.filter(func(e Event) bool { return e.Visibility == Public })
}

func (f *Feed) OwnEvents() []Event {
	return f.filter(func(e Event) bool { return e.OwnerUid == f.ownerUid })
}

// Search matches the title case-insensitively. A blank query matches nothing.
func (f *Feed) Search(query string) []Event {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return []Event{}
	}
	return f.filter(func(e Event) bool {
		return strings.Contains(strings.ToLower(e.Title), term)
	})
}

// EventsWithNotificationsAt lists the notifications that trigger less than a minute away from t.
func (f *Feed) EventsWithNotificationsAt(t time.Time, loc *time.Location) []DueNotification {
	due := make([]DueNotification, 0)
	for _, e := range f.Events() {
		for _, n := range e.Notifications {
			at, err := TriggerTime(e, n, loc)
			if err != nil {
				log.Debugf("skipping notification of event %s: %v", e.UID, err)
				continue
			}
			diff := t.Sub(at)
			if diff < 0 {
				diff = -diff
			}
			if diff < dueWindow {
				due = append(due, DueNotification{Event: e, Notification: n, At: at})
			}
		}
	}
	return due
}
