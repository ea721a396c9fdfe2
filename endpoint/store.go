package endpoint

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for webhook endpoints.
type Store interface {
	// CreateEndpoint persists a new endpoint. Returns ErrShortURLTaken or
	// ErrURLPathTaken on uniqueness violations.
	CreateEndpoint(ctx context.Context, ep *Endpoint) error

	// GetEndpoint returns an endpoint by ID.
	GetEndpoint(ctx context.Context, epID id.ID) (*Endpoint, error)

	// GetEndpointByURLPath returns the endpoint registered at the given
	// ingestion path. This is the ingestion hot path.
	GetEndpointByURLPath(ctx context.Context, urlPath string) (*Endpoint, error)

	// GetEndpointByShortURL returns the endpoint behind an 8-character alias.
	GetEndpointByShortURL(ctx context.Context, shortURL string) (*Endpoint, error)

	// UpdateEndpoint modifies an existing endpoint. ShortURL is immutable.
	UpdateEndpoint(ctx context.Context, ep *Endpoint) error

	// DeleteEndpoint removes an endpoint and cascades to its rules,
	// transformations, events, deliveries, and attempts.
	DeleteEndpoint(ctx context.Context, epID id.ID) error

	// ListEndpoints returns endpoints for a project, optionally filtered.
	ListEndpoints(ctx context.Context, projID id.ID, opts ListOpts) ([]*Endpoint, error)

	// SetEndpointEnabled enables or disables an endpoint without deleting it.
	SetEndpointEnabled(ctx context.Context, epID id.ID, enabled bool) error
}
