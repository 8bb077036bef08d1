package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const sendTimeout = 30 * time.Second

type pendingTrigger struct {
	timer    *time.Timer
	delivery Delivery
}

// TimerPlatform is an in-process Platform for one target device. Triggers fire on
// time.AfterFunc timers; a fired trigger waits on the shared limiter and is passed to the sender.
type TimerPlatform struct {
	target  string
	sender  Sender
	limiter *rate.Limiter
	metrics *Metrics
	now     func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingTrigger
	wg      sync.WaitGroup
}

func NewTimerPlatform(target string, sender Sender, limiter *rate.Limiter, metrics *Metrics) *TimerPlatform {
	return &TimerPlatform{
		target:  target,
		sender:  sender,
		limiter: limiter,
		metrics: metrics,
		now:     time.Now,
		pending: make(map[string]*pendingTrigger),
	}
}

func (p *TimerPlatform) Schedule(_ context.Context, at time.Time, content Content) (string, error) {
	id := uuid.NewString()
	delay := at.Sub(p.now())
	if delay < 0 {
		delay = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	trigger := &pendingTrigger{
		delivery: Delivery{ID: id, Target: p.target, FireAt: at, Content: content},
	}
	p.pending[id] = trigger
	p.wg.Add(1)
	trigger.timer = time.AfterFunc(delay, func() {
		defer p.wg.Done()
		p.fire(id)
	})
	p.metrics.Pending.Inc()
	return id, nil
}

func (p *TimerPlatform) Cancel(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.remove(id) {
		return fmt.Errorf("no pending trigger with id %s", id)
	}
	return nil
}

func (p *TimerPlatform) CancelAll(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.pending {
		p.remove(id)
	}
	return nil
}

// remove must be called with mu held.
func (p *TimerPlatform) remove(id string) bool {
	trigger, ok := p.pending[id]
	if !ok {
		return false
	}
	delete(p.pending, id)
	if trigger.timer.Stop() {
		// The timer callback will never run.
		p.wg.Done()
	}
	p.metrics.Pending.Dec()
	p.metrics.Cancelled.Inc()
	return true
}

// Pending lists the triggers that have not fired yet, by fire time.
func (p *TimerPlatform) Pending() []Delivery {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]Delivery, 0, len(p.pending))
	for _, trigger := range p.pending {
		result = append(result, trigger.delivery)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FireAt.Before(result[j].FireAt)
	})
	return result
}

// Wait blocks until every fired trigger has been handed to the sender.
func (p *TimerPlatform) Wait() {
	p.wg.Wait()
}

func (p *TimerPlatform) fire(id string) {
	p.mu.Lock()
	trigger, ok := p.pending[id]
	if ok {
		delete(p.pending, id)
		p.metrics.Pending.Dec()
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		log.Errorf("notification %s to %s dropped by rate limiter: %v", id, p.target, err)
		p.metrics.Delivered.WithLabelValues(StatusRateLimited).Inc()
		return
	}
	if err := p.sender.Send(ctx, trigger.delivery); err != nil {
		log.Errorf("failed to deliver notification %s to %s: %v", id, p.target, err)
		p.metrics.Delivered.WithLabelValues(StatusFailed).Inc()
		return
	}
	p.metrics.Delivered.WithLabelValues(StatusSent).Inc()
}
