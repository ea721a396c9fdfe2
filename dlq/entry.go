// Package dlq holds deliveries that exhausted their retry budget so
// operators can inspect and replay them.
package dlq

import (
	"encoding/json"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Entry represents a permanently failed delivery in the dead letter queue.
type Entry struct {
	entity.Entity

	// ID is the unique TypeID for this DLQ entry.
	ID id.ID `json:"id"`

	// DeliveryID references the failed delivery.
	DeliveryID id.ID `json:"delivery_id"`

	// EventID references the original event.
	EventID id.ID `json:"event_id"`

	// EndpointID references the endpoint that received the event.
	EndpointID id.ID `json:"endpoint_id"`

	// ProjectID identifies the owning tenant.
	ProjectID id.ID `json:"project_id"`

	// EventType is the event type name for filtering.
	EventType string `json:"event_type,omitempty"`

	// DestinationURL is the target that never accepted the payload.
	DestinationURL string `json:"destination_url"`

	// Payload is the transformed payload that failed to deliver.
	Payload json.RawMessage `json:"payload"`

	// Error is the error message from the final attempt.
	Error string `json:"error"`

	// AttemptCount is the total number of attempts made.
	AttemptCount int `json:"attempt_count"`

	// LastStatusCode is the HTTP status code from the final attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// ReplayedAt is set when the entry has been replayed.
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`

	// FailedAt is when the delivery permanently failed.
	FailedAt time.Time `json:"failed_at"`
}

// ListOpts configures filtering and pagination for DLQ listing.
type ListOpts struct {
	Offset     int
	Limit      int
	ProjectID  id.ID
	EndpointID *id.ID
	From       *time.Time
	To         *time.Time
}
