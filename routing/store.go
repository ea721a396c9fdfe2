package routing

import (
	"context"

	"github.com/hookline/hookline/id"
)

// Store defines the persistence contract for routing rules.
type Store interface {
	// CreateRule persists a new rule.
	CreateRule(ctx context.Context, r *Rule) error

	// GetRule returns a rule by ID.
	GetRule(ctx context.Context, ruleID id.ID) (*Rule, error)

	// UpdateRule modifies an existing rule.
	UpdateRule(ctx context.Context, r *Rule) error

	// DeleteRule removes a rule.
	DeleteRule(ctx context.Context, ruleID id.ID) error

	// ListRules returns an endpoint's rules ordered by ascending priority.
	ListRules(ctx context.Context, epID id.ID) ([]*Rule, error)
}
