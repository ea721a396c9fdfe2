package hookline

import (
	"log/slog"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/transform"
)

// Option configures a Gateway instance.
type Option func(*Gateway) error

// WithStore sets the persistence backend for the Gateway instance.
func WithStore(s store.Store) Option {
	return func(g *Gateway) error {
		g.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Gateway instance.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(g *Gateway) error {
		g.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the engine checks for pending work.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of items dequeued per poll cycle.
func WithBatchSize(n int) Option {
	return func(g *Gateway) error {
		g.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the fallback HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.RequestTimeout = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight deliveries
// on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.ShutdownTimeout = d
		return nil
	}
}

// WithCacheTTL sets the TTL for the endpoint lookup cache.
func WithCacheTTL(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.CacheTTL = d
		return nil
	}
}

// WithScriptEvaluators injects sandboxed engines for the javascript and jq
// transformation types. Either may be nil; transformations of that type then
// pass payloads through unmodified.
func WithScriptEvaluators(js, jq transform.Evaluator) Option {
	return func(g *Gateway) error {
		g.jsEvaluator = js
		g.jqEvaluator = jq
		return nil
	}
}

// WithMetrics enables metric instruments backed by the supplied factory.
func WithMetrics(factory gu.MetricFactory) Option {
	return func(g *Gateway) error {
		g.metrics = observability.NewMetrics(factory)
		return nil
	}
}

// WithTracing enables OpenTelemetry tracing for event processing and
// deliveries.
func WithTracing() Option {
	return func(g *Gateway) error {
		g.tracer = observability.NewTracer()
		return nil
	}
}
