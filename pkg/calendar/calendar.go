package calendar

import (
	"context"
)

// Query selects the events a live subscription follows: either the events owned by
// OwnerUid, or all events with the given Visibility.
type Query struct {
	OwnerUid   string
	Visibility Visibility
}

func OwnedBy(ownerUid string) Query {
	return Query{OwnerUid: ownerUid}
}

func WithVisibility(visibility Visibility) Query {
	return Query{Visibility: visibility}
}

func (q Query) Matches(e Event) bool {
	if q.OwnerUid != "" {
		return e.OwnerUid == q.OwnerUid
	}
	return e.Visibility == q.Visibility
}

// LiveSource delivers the full, start-date ordered result set of a query right away and
// again after every change. Errors after the subscription is established are logged by
// the source and not delivered.
type LiveSource interface {
	Watch(ctx context.Context, q Query, fn func(events []Event)) (unsubscribe func(), err error)
}
