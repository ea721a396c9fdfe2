package transform

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store persists transformations.
type Store interface {
	// CreateTransformation persists a new transformation.
	CreateTransformation(ctx context.Context, t *Transformation) error

	// GetTransformation returns a transformation by ID.
	GetTransformation(ctx context.Context, tfID id.ID) (*Transformation, error)

	// UpdateTransformation persists changes to an existing transformation.
	UpdateTransformation(ctx context.Context, t *Transformation) error

	// DeleteTransformation removes a transformation.
	DeleteTransformation(ctx context.Context, tfID id.ID) error

	// ListTransformations returns all transformations for an endpoint
	// ordered by ascending priority.
	ListTransformations(ctx context.Context, endpointID id.ID) ([]*Transformation, error)
}
