package domain

import "github.com/google/uuid"

// EventKind tags a live subscription event.
type EventKind int

const (
	EventInserted EventKind = iota + 1
	EventUpdated
	EventDeleted
	// EventClosed is emitted once when the transport drops; Err carries the cause.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventInserted:
		return "insert"
	case EventUpdated:
		return "update"
	case EventDeleted:
		return "delete"
	case EventClosed:
		return "closed"
	}
	return "unknown"
}

// Event is one change delivered by a room's live subscription.
// Message is set for inserts and updates, ID for deletes.
type Event struct {
	Kind    EventKind
	Message Message
	ID      uuid.UUID
	Err     error
}

// Subscription is a live event stream for one room.
// Events is closed after Unsubscribe or after an EventClosed has been delivered.
type Subscription interface {
	Events() <-chan Event
	Unsubscribe() error
}
