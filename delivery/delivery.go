// Package delivery fans events out to their resolved destinations, drives
// the per-endpoint retry schedule, and records an append-only attempt
// history.
package delivery

import (
	"encoding/json"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// State represents the current state of a delivery unit.
type State string

const (
	// StatePending indicates the delivery is awaiting its next attempt.
	StatePending State = "pending"

	// StateDelivered indicates the destination accepted the payload.
	StateDelivered State = "delivered"

	// StateFailed indicates the delivery exhausted its attempt budget.
	StateFailed State = "failed"
)

// Delivery is the unit of outbound work: one event going to one destination.
// It carries a snapshot of the transformed payload so retries replay exactly
// what the pipeline produced, and it is rescheduled in place until it either
// lands or runs out of attempts.
type Delivery struct {
	entity.Entity

	// ID is the unique TypeID for this delivery.
	ID id.ID `json:"id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// EndpointID references the endpoint that received the event.
	EndpointID id.ID `json:"endpoint_id"`

	// DestinationURL is the outbound target resolved by routing.
	DestinationURL string `json:"destination_url"`

	// Payload is the transformed payload snapshot to send.
	Payload json.RawMessage `json:"payload"`

	// State is the current delivery state.
	State State `json:"state"`

	// AttemptCount is the number of attempts made so far.
	AttemptCount int `json:"attempt_count"`

	// MaxAttempts is the endpoint's retry budget at enqueue time.
	MaxAttempts int `json:"max_attempts"`

	// NextAttemptAt is when the next attempt becomes due.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	// LastStatusCode is the HTTP status code from the most recent attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// CompletedAt is when the delivery reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AttemptStatus is the outcome of one attempt.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// Attempt records one HTTP try against one destination. Rows are append-only:
// a delivery with max_attempts=3 that never lands leaves exactly three.
type Attempt struct {
	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// DeliveryID references the delivery unit this attempt belongs to.
	DeliveryID id.ID `json:"delivery_id"`

	// EventID references the event, for per-event history queries.
	EventID id.ID `json:"event_id"`

	DestinationURL string        `json:"destination_url"`
	Status         AttemptStatus `json:"status"`

	// ResponseCode is the HTTP status, or 0 on a transport error.
	ResponseCode int `json:"response_code,omitempty"`

	// ResponseBody is the destination's response, truncated at 1KB.
	ResponseBody string `json:"response_body,omitempty"`

	// ErrorMessage holds the transport error, if any.
	ErrorMessage string `json:"error_message,omitempty"`

	LatencyMs int       `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}
