package routing

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
)

// Resolution is the outcome of evaluating an endpoint's rules for one event.
type Resolution struct {
	// Dropped is true when a drop rule won; no deliveries are created.
	Dropped bool

	// RuleID identifies the winning rule, or Nil when the endpoint's
	// defaults were used.
	RuleID id.ID

	// Destinations are the resolved targets in ascending priority order.
	// Empty when Dropped.
	Destinations []Destination
}

// Engine evaluates routing rules. First match wins: rules are walked in
// ascending priority order and the first rule whose conditions all match
// decides the event's fate.
type Engine struct {
	store  Store
	logger *slog.Logger
}

// NewEngine creates a routing engine backed by the given rule store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		logger: logger,
	}
}

// Resolve picks the destination set for one event, or drops it.
//
// The winning rule's destinations replace the endpoint's defaults for this
// event only. When no rule matches, the endpoint's destination_urls are used
// with equal priority, preserving their configured order.
func (e *Engine) Resolve(ctx context.Context, ep *endpoint.Endpoint, doc condition.Document) (Resolution, error) {
	rules, err := e.store.ListRules(ctx, ep.ID)
	if err != nil {
		return Resolution{}, err
	}

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if !condition.Evaluate(r.Conditions, doc) {
			continue
		}

		if r.Action == ActionDrop {
			e.logger.DebugContext(ctx, "event dropped by rule",
				"endpoint_id", ep.ID, "rule_id", r.ID, "rule", r.Name)
			return Resolution{Dropped: true, RuleID: r.ID}, nil
		}

		dests := make([]Destination, len(r.Destinations))
		copy(dests, r.Destinations)
		sort.SliceStable(dests, func(i, j int) bool {
			return dests[i].Priority < dests[j].Priority
		})

		return Resolution{RuleID: r.ID, Destinations: dests}, nil
	}

	// No rule matched: fall back to the endpoint defaults, equal priority.
	dests := make([]Destination, 0, len(ep.DestinationURLs))
	for _, u := range ep.DestinationURLs {
		dests = append(dests, Destination{URL: u})
	}

	return Resolution{Destinations: dests}, nil
}
