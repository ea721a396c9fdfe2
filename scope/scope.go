// Package scope carries the authenticated project through a request context.
package scope

import (
	"context"

	"github.com/hookline/hookline/project"
)

type ctxKey struct{}

// WithProject returns a context carrying the authenticated project.
func WithProject(ctx context.Context, p *project.Project) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Project returns the authenticated project from the context, or nil when the
// request was not authenticated.
func Project(ctx context.Context) *project.Project {
	p, _ := ctx.Value(ctxKey{}).(*project.Project)
	return p
}
