package project

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for projects.
type Store interface {
	// CreateProject persists a new project.
	CreateProject(ctx context.Context, p *Project) error

	// GetProject returns a project by ID.
	GetProject(ctx context.Context, projID id.ID) (*Project, error)

	// GetProjectByAPIKey returns the project owning the given API key.
	// This is the management API authentication hot path.
	GetProjectByAPIKey(ctx context.Context, apiKey string) (*Project, error)

	// GetProjectBySlug returns a project by its slug.
	GetProjectBySlug(ctx context.Context, slug string) (*Project, error)

	// UpdateProject modifies an existing project.
	UpdateProject(ctx context.Context, p *Project) error

	// DeleteProject removes a project and cascades to its endpoints, rules,
	// transformations, events, deliveries, and attempts.
	DeleteProject(ctx context.Context, projID id.ID) error

	// ListProjects returns projects, optionally filtered.
	ListProjects(ctx context.Context, opts ListOpts) ([]*Project, error)
}
