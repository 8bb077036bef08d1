package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agendazk/agendazk/internal/utils"
	"github.com/agendazk/agendazk/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

// testDelay is how far in the future a test notification fires.
const testDelay = 2 * time.Second

// Trigger is a notification handed to the platform and not yet cancelled.
type Trigger struct {
	Key          string
	PlatformID   string
	EventUID     string
	Notification calendar.Notification
	At           time.Time
	Content      Content
}

// Scheduler keeps the platform triggers of one user in line with that user's feed.
// Every change cancels all triggers and schedules the whole list again.
type Scheduler struct {
	ownerUid string
	platform Platform
	clock    utils.Clock
	loc      *time.Location
	metrics  *Metrics

	mu       sync.Mutex
	triggers map[string]Trigger // key -> trigger
}

func NewScheduler(ownerUid string, platform Platform, clock utils.Clock, loc *time.Location, metrics *Metrics) *Scheduler {
	return &Scheduler{
		ownerUid: ownerUid,
		platform: platform,
		clock:    clock,
		loc:      loc,
		metrics:  metrics,
		triggers: make(map[string]Trigger),
	}
}

// Attach reschedules on every broadcast of feed. The returned function detaches the scheduler.
func (s *Scheduler) Attach(feed *calendar.Feed) (detach func()) {
	return feed.Subscribe(func(ctx context.Context, events []calendar.Event) {
		if err := s.Reschedule(ctx, events); err != nil {
			log.Errorf("failed to reschedule notifications of %s: %v", s.ownerUid, err)
		}
	})
}

// Reschedule cancels every trigger, then schedules all future notifications of events.
// Notifications whose trigger time is not after now are skipped.
func (s *Scheduler) Reschedule(ctx context.Context, events []calendar.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.platform.CancelAll(ctx); err != nil {
		return err
	}
	s.triggers = make(map[string]Trigger)
	s.metrics.Reschedules.Inc()

	now := s.clock.Now()
	for _, event := range events {
		for _, n := range event.Notifications {
			s.schedule(ctx, now, event, n)
		}
	}
	log.Debugf("%d notification(s) scheduled for %s", len(s.triggers), s.ownerUid)
	return nil
}

// schedule must be called with mu held. Failures are logged and the notification skipped.
func (s *Scheduler) schedule(ctx context.Context, now time.Time, event calendar.Event, n calendar.Notification) {
	at, err := calendar.TriggerTime(event, n, s.loc)
	if err != nil {
		log.Warnf("skipping notification of event %s: %v", event.UID, err)
		s.metrics.Skipped.WithLabelValues(SkipInvalid).Inc()
		return
	}
	if !at.After(now) {
		s.metrics.Skipped.WithLabelValues(SkipPast).Inc()
		return
	}

	content := ContentFor(event, n)
	id, err := s.platform.Schedule(ctx, at, content)
	if err != nil {
		log.Errorf("failed to schedule notification of event %s: %v", event.UID, err)
		s.metrics.Skipped.WithLabelValues(SkipPlatformError).Inc()
		return
	}

	key := Key(event.UID, n)
	s.triggers[key] = Trigger{
		Key:          key,
		PlatformID:   id,
		EventUID:     event.UID,
		Notification: n,
		At:           at,
		Content:      content,
	}
	s.metrics.Scheduled.Inc()
}

// CancelEventNotifications cancels the pending triggers of one event and returns how many there were.
func (s *Scheduler) CancelEventNotifications(ctx context.Context, eventUid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for key, trigger := range s.triggers {
		if trigger.EventUID != eventUid {
			continue
		}
		if err := s.platform.Cancel(ctx, trigger.PlatformID); err != nil {
			log.Warnf("failed to cancel trigger %s: %v", key, err)
		}
		delete(s.triggers, key)
		cancelled++
	}
	return cancelled
}

// Scheduled lists the known triggers sorted by fire time, then key.
func (s *Scheduler) Scheduled() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Trigger, 0, len(s.triggers))
	for _, trigger := range s.triggers {
		result = append(result, trigger)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].At.Equal(result[j].At) {
			return result[i].At.Before(result[j].At)
		}
		return result[i].Key < result[j].Key
	})
	return result
}

// SendTest schedules a test notification a couple of seconds from now. It is not tracked as
// an event trigger, so the next reschedule cancels it like any other.
func (s *Scheduler) SendTest(ctx context.Context) (time.Time, error) {
	at := s.clock.Now().Add(testDelay)
	_, err := s.platform.Schedule(ctx, at, Content{
		Title: "Test notification",
		Body:  "This is a test of AgendaZK notifications",
		Data:  Data{Test: true},
	})
	if err != nil {
		return time.Time{}, err
	}
	return at, nil
}
