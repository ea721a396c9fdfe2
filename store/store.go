// Package store defines the composite Store interface for all Hookline
// persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them all, so a backend implements every persistence concern in
// one place.
package store

import (
	"context"

	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/routing"
	"github.com/hookline/hookline/transform"
)

// Store is the aggregate persistence interface.
type Store interface {
	project.Store
	endpoint.Store
	routing.Store
	transform.Store
	event.Store
	delivery.Store
	dlq.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
