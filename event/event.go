// Package event defines the inbound webhook event and its lifecycle states.
package event

import (
	"encoding/json"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Status is the lifecycle state of an event.
type Status string

const (
	// StatusPending indicates the event is queued for processing.
	StatusPending Status = "pending"

	// StatusProcessing indicates routing, transformation, and fan-out are
	// in flight.
	StatusProcessing Status = "processing"

	// StatusDelivered indicates every destination accepted the event.
	StatusDelivered Status = "delivered"

	// StatusFailed indicates at least one destination exhausted its retry
	// budget on the first delivery cycle.
	StatusFailed Status = "failed"

	// StatusPermanentlyFailed indicates a replayed event exhausted its
	// retry budget again.
	StatusPermanentlyFailed Status = "permanently_failed"

	// StatusDropped indicates a routing rule discarded the event before
	// delivery.
	StatusDropped Status = "dropped"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusPermanentlyFailed, StatusDropped:
		return true
	}
	return false
}

// Event is one inbound webhook received on an endpoint's ingestion path.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// ProjectID identifies the owning tenant.
	ProjectID id.ID `json:"project_id"`

	// EndpointID references the endpoint that received this event.
	EndpointID id.ID `json:"endpoint_id"`

	// EventType is the dot-separated type name extracted from the request
	// (e.g. "invoice.created"). Empty when the sender supplied none.
	EventType string `json:"event_type,omitempty"`

	// Payload is the raw request body as received.
	Payload json.RawMessage `json:"payload"`

	// Headers holds the inbound request headers, canonicalized.
	Headers map[string]string `json:"headers,omitempty"`

	SourceIP  string `json:"source_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	Status Status `json:"status"`

	// AttemptCount is the highest attempt count across this event's
	// deliveries.
	AttemptCount int `json:"attempt_count"`

	// ReplayCount is the number of in-place replay cycles this row has
	// gone through.
	ReplayCount int `json:"replay_count"`

	// ReplayOf references the original event when this row was created by
	// a replay-as-new request.
	ReplayOf id.ID `json:"replay_of,omitempty"`

	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
}

// Document returns the payload decoded for condition matching. A body that is
// not a JSON object matches as an empty document.
func (e *Event) Document() map[string]any {
	var doc map[string]any
	if err := json.Unmarshal(e.Payload, &doc); err != nil {
		return map[string]any{}
	}
	return doc
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset     int
	Limit      int
	Status     Status
	EndpointID id.ID
	EventType  string
	From       *time.Time
	To         *time.Time
}
