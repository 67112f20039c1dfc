package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

// Event types.
const (
	RequestSubmitted  Type = "request.submitted"
	RequestApproved   Type = "request.approved"
	RequestRejected   Type = "request.rejected"
	AssignmentCreated Type = "assignment.created"
	ReturnRequested   Type = "return.requested"
	ReturnCompleted   Type = "return.completed"
	ItemUpdated       Type = "item.updated"
	ItemDeleted       Type = "item.deleted"
)

// Event describes a committed state change.
type Event struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	OccurredAt   time.Time `json:"occurred_at"`
	ActorID      int64     `json:"actor_id"`
	ItemID       int64     `json:"item_id,omitempty"`
	StaffID      int64     `json:"staff_id,omitempty"`
	AssignmentID int64     `json:"assignment_id,omitempty"`
	RequestID    int64     `json:"request_id,omitempty"`
	// Quantity is the item's available quantity after the change.
	Quantity *int `json:"quantity_available,omitempty"`
	// Removed counts assignments deleted together with an item.
	Removed int64 `json:"removed_assignments,omitempty"`
}

// New creates an event with a fresh ID.
func New(t Type, actorID int64, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: at.UTC(),
		ActorID:    actorID,
	}
}

// WithQuantity returns a copy of e carrying the item's remaining quantity.
func (e Event) WithQuantity(q int) Event {
	e.Quantity = &q
	return e
}

// Key groups events about the same item (or request) onto one partition.
func (e Event) Key() string {
	switch {
	case e.ItemID != 0:
		return "item-" + strconv.FormatInt(e.ItemID, 10)
	case e.RequestID != 0:
		return "request-" + strconv.FormatInt(e.RequestID, 10)
	default:
		return ""
	}
}

// Publisher delivers committed events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, e Event) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "event", "id", e.ID, "type", e.Type, "actor", e.ActorID,
		"item", e.ItemID, "staff", e.StaffID, "assignment", e.AssignmentID, "request", e.RequestID)
	return nil
}

func (LogPublisher) Close() error { return nil }

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
