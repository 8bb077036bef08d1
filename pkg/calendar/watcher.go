package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// ChangeChannel is the Postgres notification channel fed by the calendar_event trigger.
const ChangeChannel = "calendar_event_changed"

const reconnectDelay = 2 * time.Second

type watch struct {
	query Query
	fn    func([]Event)
}

// Watcher turns Postgres change notifications into live query results. Every notification
// re-runs all active queries; there is no per-row diffing.
type Watcher struct {
	db   *pgxpool.Pool
	repo Repository

	mu      sync.Mutex
	watches map[int]watch
	nextId  int

	// deliverMu keeps deliveries to one subscriber in query order.
	deliverMu sync.Mutex
}

func NewWatcher(db *pgxpool.Pool, repo Repository) *Watcher {
	return &Watcher{
		db:      db,
		repo:    repo,
		watches: make(map[int]watch),
	}
}

func (w *Watcher) Watch(ctx context.Context, q Query, fn func([]Event)) (func(), error) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	events, err := w.repo.ListEvents(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to run live query: %w", err)
	}

	w.mu.Lock()
	w.nextId++
	id := w.nextId
	w.watches[id] = watch{query: q, fn: fn}
	w.mu.Unlock()

	fn(events)

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.watches, id)
		})
	}, nil
}

// Run listens for change notifications until ctx is done. The listening connection is
// re-established after a failure and all queries are refreshed, since notifications may
// have been missed in between.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		err := w.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Errorf("calendar change listener failed, reconnecting: %v", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (w *Watcher) listen(ctx context.Context) error {
	conn, err := w.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	log.Infof("Listening for calendar changes on channel %s", ChangeChannel)
	w.Refresh(ctx)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		log.Tracef("calendar event %s changed", notification.Payload)
		w.Refresh(ctx)
	}
}

// Refresh re-runs every active query and delivers the results. A failing query is logged
// and its subscriber keeps its previous data.
func (w *Watcher) Refresh(ctx context.Context) {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()

	w.mu.Lock()
	ids := make([]int, 0, len(w.watches))
	for id := range w.watches {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	active := make([]watch, 0, len(ids))
	for _, id := range ids {
		active = append(active, w.watches[id])
	}
	w.mu.Unlock()

	for _, aw := range active {
		events, err := w.repo.ListEvents(ctx, aw.query)
		if err != nil {
			log.Errorf("live query %+v failed: %v", aw.query, err)
			continue
		}
		aw.fn(events)
	}
}

// Subscriptions returns the number of active live queries.
func (w *Watcher) Subscriptions() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watches)
}
