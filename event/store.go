package event

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for events.
type Store interface {
	// CreateEvent persists an event. Must be durable before returning;
	// ingestion acknowledges the sender once this succeeds.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// ListEvents returns a project's events, newest first, filtered by
	// opts.
	ListEvents(ctx context.Context, projectID id.ID, opts ListOpts) ([]*Event, error)

	// DequeuePendingEvents atomically claims up to limit pending events
	// and marks them processing. Implementations must ensure no event is
	// claimed twice (e.g. UPDATE ... RETURNING, SKIP LOCKED).
	DequeuePendingEvents(ctx context.Context, limit int) ([]*Event, error)

	// UpdateEvent persists lifecycle changes to an event.
	UpdateEvent(ctx context.Context, evt *Event) error

	// TouchEventAttempt records delivery progress: attempt_count becomes
	// max(current, attemptCount) and last_attempt_at advances. Deliveries
	// to different destinations race on this, hence max semantics.
	TouchEventAttempt(ctx context.Context, evtID id.ID, attemptCount int) error
}
