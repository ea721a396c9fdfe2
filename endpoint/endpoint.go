// Package endpoint manages webhook ingestion endpoints: the per-project
// addresses that accept inbound events and map them to outbound destinations.
package endpoint

import (
	"errors"
	"math"
	"time"

	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/signature"
)

// Sentinel errors for endpoint uniqueness constraints. Store backends return
// these; the service retries short URL generation on collision.
var (
	// ErrShortURLTaken is returned when a generated short URL collides.
	ErrShortURLTaken = errors.New("endpoint: short URL already taken")

	// ErrURLPathTaken is returned when url_path is already used in the project.
	ErrURLPathTaken = errors.New("endpoint: url path already taken in project")
)

// Endpoint is a webhook ingestion address owned by a project.
type Endpoint struct {
	entity.Entity

	// ID is the unique TypeID for this endpoint.
	ID id.ID `json:"id"`

	// ProjectID identifies the owning project.
	ProjectID id.ID `json:"project_id"`

	// Name is the human-readable endpoint name.
	Name string `json:"name"`

	// Slug is a URL-safe identifier within the project.
	Slug string `json:"slug"`

	// URLPath is the human ingestion path, unique within the project.
	URLPath string `json:"url_path"`

	// ShortURL is the 8-character alias, globally unique and immutable
	// after creation.
	ShortURL string `json:"short_url"`

	// DestinationURLs are the default delivery targets, in order, used when
	// no routing rule overrides them.
	DestinationURLs []string `json:"destination_urls"`

	// AuthMethod selects how inbound requests are verified.
	AuthMethod signature.Method `json:"auth_method"`

	// AuthSecret is the method-specific credential. Never serialized.
	AuthSecret string `json:"-"`

	// Retry governs per-destination delivery attempts.
	Retry RetryConfig `json:"retry_config"`

	// Headers are static headers added to every outbound delivery.
	Headers map[string]string `json:"headers_config,omitempty"`

	// RequestTimeout is the per-attempt HTTP timeout in seconds.
	// 0 means the engine default.
	RequestTimeout int `json:"request_timeout,omitempty"`

	// RateLimit is the maximum outbound deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// Enabled indicates whether the endpoint accepts ingestion and replay.
	Enabled bool `json:"enabled"`
}

// RetryConfig is the per-endpoint retry/backoff policy.
type RetryConfig struct {
	// MaxAttempts is the total tries per delivery (first attempt included).
	MaxAttempts int `json:"max_attempts"`

	// RetryDelay is the base delay in seconds before the first retry.
	RetryDelay float64 `json:"retry_delay"`

	// BackoffMultiplier is applied exponentially per subsequent attempt.
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

// DefaultRetryConfig returns the retry policy applied when a tenant
// configures none.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		RetryDelay:        5,
		BackoffMultiplier: 2,
	}
}

// Delay returns the backoff before the attempt following failedAttempt
// (1-based): retry_delay × multiplier^(failedAttempt−1).
func (c RetryConfig) Delay(failedAttempt int) time.Duration {
	if failedAttempt < 1 {
		failedAttempt = 1
	}
	seconds := c.RetryDelay * math.Pow(c.BackoffMultiplier, float64(failedAttempt-1))
	return time.Duration(seconds * float64(time.Second))
}

// Timeout returns the endpoint's per-attempt HTTP timeout, or fallback when
// not configured.
func (e *Endpoint) Timeout(fallback time.Duration) time.Duration {
	if e.RequestTimeout <= 0 {
		return fallback
	}
	return time.Duration(e.RequestTimeout) * time.Second
}

// ListOpts configures filtering and pagination for endpoint listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}
