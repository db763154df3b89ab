package order

import (
	"context"
	"time"
)

// EventKind names the operation that produced an Event.
type EventKind string

const (
	EventCreated     EventKind = "created"
	EventMoved       EventKind = "moved"
	EventRemoved     EventKind = "removed"
	EventResequenced EventKind = "resequenced"
)

// Event announces a committed change to a domain.
type Event struct {
	Domain  string    `json:"domain"`
	Kind    EventKind `json:"kind"`
	ItemID  string    `json:"item_id,omitempty"`
	Changes []Change  `json:"changes,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier receives events after the backend has committed them.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
