package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/signature"
)

const maxResponseBody = 1024 // 1KB cap on response body storage

// Sender performs outbound webhook delivery.
type Sender struct {
	client         *http.Client
	defaultTimeout time.Duration
}

// NewSender creates a sender. timeout is the fallback per-request timeout for
// endpoints without one configured.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client:         &http.Client{},
		defaultTimeout: timeout,
	}
}

// Send POSTs a delivery's payload snapshot to its destination and returns the
// result. Outbound requests re-authenticate per the endpoint's auth method so
// destinations can verify provenance the same way the inbound path does.
func (s *Sender) Send(ctx context.Context, ep *endpoint.Endpoint, d *Delivery) Result {
	ctx, cancel := context.WithTimeout(ctx, ep.Timeout(s.defaultTimeout))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.DestinationURL, bytes.NewReader(d.Payload))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Hookline/1.0")
	req.Header.Set("X-Hookline-Event-ID", d.EventID.String())
	req.Header.Set("X-Hookline-Delivery-ID", d.ID.String())
	req.Header.Set("X-Hookline-Attempt", fmt.Sprint(d.AttemptCount))

	switch ep.AuthMethod {
	case signature.MethodHMAC:
		req.Header.Set("X-Webhook-Signature", signature.Sign(d.Payload, ep.AuthSecret))
	case signature.MethodSharedSecret:
		req.Header.Set(signature.HeaderSharedSecret, ep.AuthSecret)
	case signature.MethodBearer:
		req.Header.Set("Authorization", "Bearer "+ep.AuthSecret)
	}

	// Static tenant headers override the defaults above.
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a user-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  int(latency),
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		LatencyMs:  int(latency),
	}
}
