package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Evaluator runs user-supplied script or filter text against a payload.
// Implementations must sandbox execution: no filesystem or network access,
// bounded CPU and wall time. The gateway ships without a bundled engine;
// deployments inject one per script type.
type Evaluator interface {
	Evaluate(ctx context.Context, source string, payload map[string]any) (map[string]any, error)
}

// ErrNoEvaluator is returned when a script transformation runs without a
// configured engine. The pipeline treats it as a per-rule no-op.
var ErrNoEvaluator = errors.New("transform: no evaluator configured")

type scriptRules struct {
	Script string `json:"script,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// applyScript executes a javascript or jq transformation through the injected
// evaluator for its type.
func applyScript(ctx context.Context, ev Evaluator, typ Type, raw json.RawMessage, payload map[string]any) (map[string]any, error) {
	if ev == nil {
		return nil, ErrNoEvaluator
	}

	var rules scriptRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("decode %s rules: %w", typ, err)
	}

	source := rules.Script
	if typ == TypeJQ {
		source = rules.Filter
	}
	if source == "" {
		return nil, fmt.Errorf("empty %s source", typ)
	}

	return ev.Evaluate(ctx, source, payload)
}
