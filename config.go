package hookline

import "time"

// Config holds the configuration for a Gateway instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// PollInterval is how often the engine checks for pending events and
	// due deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of events or deliveries dequeued per
	// poll cycle.
	BatchSize int

	// RequestTimeout is the fallback HTTP timeout per delivery attempt,
	// used when an endpoint has none configured.
	RequestTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight deliveries
	// on shutdown.
	ShutdownTimeout time.Duration

	// CacheTTL is the TTL for the in-memory endpoint lookup cache.
	// Set to 0 to disable caching.
	CacheTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		PollInterval:    1 * time.Second,
		BatchSize:       50,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CacheTTL:        30 * time.Second,
	}
}
