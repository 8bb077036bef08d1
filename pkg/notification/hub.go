package notification

import (
	"context"
	"sync"
	"time"

	"github.com/agendazk/agendazk/internal/utils"
	"github.com/agendazk/agendazk/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

// PlatformFactory creates the notification platform of one user's device.
type PlatformFactory func(ownerUid string) Platform

// Hub creates one Scheduler per user and attaches it to the user's feed.
type Hub struct {
	factory PlatformFactory
	clock   utils.Clock
	loc     *time.Location
	metrics *Metrics

	mu         sync.Mutex
	schedulers map[string]*Scheduler
	platforms  map[string]Platform
}

func NewHub(factory PlatformFactory, clock utils.Clock, loc *time.Location, metrics *Metrics) *Hub {
	return &Hub{
		factory:    factory,
		clock:      clock,
		loc:        loc,
		metrics:    metrics,
		schedulers: make(map[string]*Scheduler),
		platforms:  make(map[string]Platform),
	}
}

// Attach is meant to run before the feed starts, so the first broadcast is scheduled too.
func (h *Hub) Attach(_ context.Context, feed *calendar.Feed) {
	h.mu.Lock()
	defer h.mu.Unlock()

	uid := feed.OwnerUid()
	if _, ok := h.schedulers[uid]; ok {
		return
	}
	platform := h.factory(uid)
	scheduler := NewScheduler(uid, platform, h.clock, h.loc, h.metrics)
	scheduler.Attach(feed)
	h.schedulers[uid] = scheduler
	h.platforms[uid] = platform
	log.Debugf("Notification scheduler attached for user %s", uid)
}

func (h *Hub) SchedulerFor(ownerUid string) (*Scheduler, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	scheduler, ok := h.schedulers[ownerUid]
	return scheduler, ok
}

// Close cancels every pending trigger of every user.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	platforms := make([]Platform, 0, len(h.platforms))
	for _, platform := range h.platforms {
		platforms = append(platforms, platform)
	}
	h.mu.Unlock()

	for _, platform := range platforms {
		if err := platform.CancelAll(ctx); err != nil {
			log.Errorf("failed to cancel notifications: %v", err)
		}
	}
}
