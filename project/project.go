// Package project manages tenant projects, the ownership boundary for
// endpoints and events.
package project

import (
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Project is the tenant boundary. Every endpoint, event, and delivery is
// owned (transitively) by exactly one project.
type Project struct {
	entity.Entity

	// ID is the unique TypeID for this project.
	ID id.ID `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// Slug is a URL-safe identifier, unique across projects.
	Slug string `json:"slug"`

	// APIKey is the bearer credential for the management API. Never serialized.
	APIKey string `json:"-"`

	// WebhookSecret is the project-level default signing secret. Never serialized.
	WebhookSecret string `json:"-"`

	// Enabled indicates whether the project accepts ingestion and replay.
	Enabled bool `json:"enabled"`
}

// ListOpts configures filtering and pagination for project listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}
