package delivery

import (
	"time"

	"github.com/hookline/hookline/endpoint"
)

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the destination accepted the payload (2xx).
	Delivered Decision = iota

	// Retry means the delivery should be attempted again later.
	Retry

	// Exhausted means the delivery ran out of attempts and is finalized
	// as failed.
	Exhausted
)

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	LatencyMs  int
}

// Success reports whether the attempt landed. Only a 2xx response counts;
// any other status, timeout, or transport error is a failed attempt.
func (r Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Retrier decides what to do after a delivery attempt. Backoff follows the
// endpoint's retry policy: retry_delay seconds growing by backoff_multiplier
// per subsequent attempt.
type Retrier struct {
	now func() time.Time
}

// NewRetrier creates a retrier.
func NewRetrier() *Retrier {
	return &Retrier{now: func() time.Time { return time.Now().UTC() }}
}

// Decide determines what to do with a delivery after an attempt.
//
// Decision matrix:
//   - 2xx → Delivered
//   - anything else (non-2xx, timeout, connection error) → Retry while
//     attempts remain, Exhausted once attempt_count reaches max_attempts
func (r *Retrier) Decide(res Result, d *Delivery) Decision {
	if res.Success() {
		return Delivered
	}
	if d.AttemptCount < d.MaxAttempts {
		return Retry
	}
	return Exhausted
}

// NextAttemptAt returns when the delivery becomes due again after its
// failedAttempt-th attempt.
func (r *Retrier) NextAttemptAt(cfg endpoint.RetryConfig, failedAttempt int) time.Time {
	return r.now().Add(cfg.Delay(failedAttempt))
}
