package calendar

import (
	"context"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// FeedProvider gives access to the live feed of a user.
type FeedProvider interface {
	FeedFor(ctx context.Context, ownerUid string) (*Feed, error)
}

// Registry owns one Feed per user. Feeds are created on first use and live until Close.
type Registry struct {
	source LiveSource

	mu    sync.Mutex
	feeds map[string]*Feed
	hooks []func(ctx context.Context, feed *Feed)
}

func NewRegistry(source LiveSource) *Registry {
	return &Registry{
		source: source,
		feeds:  make(map[string]*Feed),
	}
}

// OnFeedStarted registers fn to run for every new feed, before its live queries open.
func (r *Registry) OnFeedStarted(fn func(ctx context.Context, feed *Feed)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *Registry) FeedFor(ctx context.Context, ownerUid string) (*Feed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if feed, ok := r.feeds[ownerUid]; ok {
		return feed, nil
	}

	feed := NewFeed(ownerUid, r.source)
	for _, hook := range r.hooks {
		hook(ctx, feed)
	}
	if err := feed.Start(ctx); err != nil {
		feed.Close()
		return nil, err
	}
	r.feeds[ownerUid] = feed
	log.Infof("Started calendar feed for user %s", ownerUid)
	return feed, nil
}

// Owners returns the users with a running feed, sorted.
func (r *Registry) Owners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make([]string, 0, len(r.feeds))
	for uid := range r.feeds {
		owners = append(owners, uid)
	}
	sort.Strings(owners)
	return owners
}

func (r *Registry) Close() {
	r.mu.Lock()
	feeds := r.feeds
	r.feeds = make(map[string]*Feed)
	r.mu.Unlock()

	for _, feed := range feeds {
		feed.Close()
	}
}
