// Package routing implements the priority-ordered rule engine that decides
// where an event is delivered, or whether it is dropped before delivery.
package routing

import (
	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Action is what a matching rule does with an event.
type Action string

const (
	// ActionRoute replaces the endpoint's default destinations with the
	// rule's destination list for this event.
	ActionRoute Action = "route"

	// ActionDrop stops processing: the event reaches a terminal dropped
	// status without any delivery attempt.
	ActionDrop Action = "drop"
)

// ValidAction reports whether a is a known rule action.
func ValidAction(a Action) bool {
	return a == ActionRoute || a == ActionDrop
}

// Destination is one delivery target with its dispatch priority
// (lower dispatches first).
type Destination struct {
	URL      string `json:"url"`
	Priority int    `json:"priority"`
}

// Rule is a priority-ordered condition-to-action mapping on an endpoint.
type Rule struct {
	entity.Entity

	// ID is the unique TypeID for this rule.
	ID id.ID `json:"id"`

	// EndpointID references the owning endpoint.
	EndpointID id.ID `json:"endpoint_id"`

	// Name is the human-readable rule name.
	Name string `json:"name"`

	// Description explains the rule's intent.
	Description string `json:"description,omitempty"`

	// Action is route or drop.
	Action Action `json:"action"`

	// Priority orders evaluation; lower evaluates first.
	Priority int `json:"priority"`

	// Conditions must all match for the rule to win. Empty always matches.
	Conditions []condition.Condition `json:"conditions,omitempty"`

	// Destinations are used only when Action is route; cleared on drop.
	Destinations []Destination `json:"destinations,omitempty"`

	// Enabled rules participate in evaluation; disabled rules are skipped.
	Enabled bool `json:"enabled"`
}
