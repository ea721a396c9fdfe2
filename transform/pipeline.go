package transform

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
)

// Pipeline applies an endpoint's transformations to a payload.
type Pipeline struct {
	store  Store
	js     Evaluator
	jq     Evaluator
	logger *slog.Logger
}

// NewPipeline returns a pipeline backed by store. Either evaluator may be
// nil, in which case transformations of that type pass the payload through
// unmodified.
func NewPipeline(store Store, js, jq Evaluator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, js: js, jq: jq, logger: logger}
}

// Apply runs the endpoint's enabled transformations in ascending priority
// order. Conditions are evaluated against the original document, while each
// matching strategy reads and rewrites the working payload, so later
// transformations see the output of earlier ones. A strategy failure skips
// that single transformation; it never aborts delivery. If nothing applies
// the original payload is returned unchanged.
func (p *Pipeline) Apply(ctx context.Context, endpointID id.ID, doc condition.Document) (map[string]any, error) {
	transformations, err := p.store.ListTransformations(ctx, endpointID)
	if err != nil {
		return nil, err
	}

	working := doc.Payload
	for _, t := range transformations {
		if !t.Enabled {
			continue
		}
		if !condition.Evaluate(t.Conditions, doc) {
			continue
		}

		out, err := p.run(ctx, t, working)
		if err != nil {
			if errors.Is(err, ErrNoEvaluator) {
				p.logger.DebugContext(ctx, "no evaluator for transformation, skipping",
					"transformation_id", t.ID, "type", t.Type)
			} else {
				p.logger.WarnContext(ctx, "transformation failed, passing payload through",
					"transformation_id", t.ID, "type", t.Type, "error", err)
			}
			continue
		}
		working = out
	}
	return working, nil
}

func (p *Pipeline) run(ctx context.Context, t *Transformation, payload map[string]any) (map[string]any, error) {
	switch t.Type {
	case TypeFieldMapping:
		return applyFieldMapping(t.Rules, payload)
	case TypeTemplate:
		return applyTemplate(t.Rules, payload)
	case TypeJavaScript:
		return applyScript(ctx, p.js, t.Type, t.Rules, payload)
	case TypeJQ:
		return applyScript(ctx, p.jq, t.Type, t.Rules, payload)
	default:
		return payload, nil
	}
}
