package delivery

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for deliveries and their attempt
// history.
type Store interface {
	// Enqueue creates a pending delivery.
	Enqueue(ctx context.Context, d *Delivery) error

	// EnqueueBatch creates multiple deliveries atomically (fan-out).
	EnqueueBatch(ctx context.Context, ds []*Delivery) error

	// Dequeue fetches pending deliveries whose next_attempt_at is due
	// (concurrent-safe). Implementations must ensure no double-delivery
	// (e.g. UPDATE ... RETURNING, SKIP LOCKED).
	Dequeue(ctx context.Context, limit int) ([]*Delivery, error)

	// UpdateDelivery modifies a delivery (state, attempt count,
	// next_attempt_at).
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// ListByEvent returns all deliveries for a specific event.
	ListByEvent(ctx context.Context, evtID id.ID) ([]*Delivery, error)

	// DeleteByEvent removes an event's delivery queue units. Attempt
	// history is append-only and survives; used by in-place replay.
	DeleteByEvent(ctx context.Context, evtID id.ID) error

	// CountPending returns the number of deliveries awaiting attempt.
	CountPending(ctx context.Context) (int64, error)

	// AppendAttempt records one attempt. Attempt rows are never updated
	// or removed except by cascade delete.
	AppendAttempt(ctx context.Context, a *Attempt) error

	// ListAttempts returns an event's attempt history, oldest first.
	ListAttempts(ctx context.Context, evtID id.ID) ([]*Attempt, error)
}
