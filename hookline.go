package hookline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/routing"
	"github.com/hookline/hookline/signature"
	"github.com/hookline/hookline/store"
	"github.com/hookline/hookline/transform"
)

// Gateway is the root webhook gateway instance. It owns the management
// services, the ingestion path, and the asynchronous delivery engine.
type Gateway struct {
	config      Config
	store       store.Store
	logger      *slog.Logger
	jsEvaluator transform.Evaluator
	jqEvaluator transform.Evaluator
	metrics     *observability.Metrics
	tracer      *observability.Tracer

	cache        *endpoint.Cache
	projectSvc   *project.Service
	endpointSvc  *endpoint.Service
	ruleSvc      *routing.Service
	transformSvc *transform.Service
	dlqSvc       *dlq.Service
	engine       *delivery.Engine
}

// New creates a new Gateway with the given options.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if g.store == nil {
		return nil, ErrNoStore
	}
	g.wireServices()
	return g, nil
}

// wireServices initializes the internal services after options have been applied.
func (g *Gateway) wireServices() {
	g.cache = endpoint.NewCache(g.store, g.config.CacheTTL)

	g.projectSvc = project.NewService(g.store, g.logger)
	g.endpointSvc = endpoint.NewService(g.store, g.cache, g.logger)
	g.ruleSvc = routing.NewService(g.store)
	g.transformSvc = transform.NewService(g.store)
	g.dlqSvc = dlq.NewService(g.store, g.logger)

	router := routing.NewEngine(g.store, g.logger)
	pipeline := transform.NewPipeline(g.store, g.jsEvaluator, g.jqEvaluator, g.logger)

	g.engine = delivery.NewEngine(g.store, router, pipeline, g.dlqSvc, delivery.EngineConfig{
		Concurrency:    g.config.Concurrency,
		PollInterval:   g.config.PollInterval,
		BatchSize:      g.config.BatchSize,
		RequestTimeout: g.config.RequestTimeout,
		Metrics:        g.metrics,
		Tracer:         g.tracer,
	}, g.logger)
}

// Start begins the delivery engine.
func (g *Gateway) Start(ctx context.Context) {
	g.engine.Start(ctx)
}

// Stop gracefully shuts down the delivery engine.
func (g *Gateway) Stop(ctx context.Context) {
	g.engine.Stop(ctx)
}

// IngestRequest carries an inbound webhook request into the gateway.
type IngestRequest struct {
	// Body is the raw request body.
	Body []byte

	// Headers are the inbound request headers, used for credential
	// verification and stored with the event.
	Headers http.Header

	// SourceIP is the remote address the request arrived from.
	SourceIP string

	// UserAgent is the sender's User-Agent string.
	UserAgent string
}

// IngestByURLPath accepts a webhook on an endpoint's human-readable path.
func (g *Gateway) IngestByURLPath(ctx context.Context, urlPath string, req IngestRequest) (*event.Event, error) {
	ep, err := g.cache.GetByURLPath(ctx, urlPath)
	if err != nil {
		return nil, err
	}
	return g.ingest(ctx, ep, req)
}

// IngestByShortURL accepts a webhook on an endpoint's short alias.
func (g *Gateway) IngestByShortURL(ctx context.Context, shortURL string, req IngestRequest) (*event.Event, error) {
	ep, err := g.cache.GetByShortURL(ctx, shortURL)
	if err != nil {
		return nil, err
	}
	return g.ingest(ctx, ep, req)
}

// ingest validates and persists one inbound event.
//
// The critical path:
//  1. Reject disabled endpoints and disabled projects.
//  2. Verify the request credential against the endpoint's auth method
//     (fail closed on missing or malformed credentials).
//  3. Reject empty or malformed JSON bodies; capture non-JSON content
//     types as opaque payloads.
//  4. Persist the event as pending. Once the write succeeds the event is
//     durable; routing, transformation, and delivery happen asynchronously.
func (g *Gateway) ingest(ctx context.Context, ep *endpoint.Endpoint, req IngestRequest) (*event.Event, error) {
	if !ep.Enabled {
		return nil, ErrEndpointDisabled
	}

	proj, err := g.store.GetProject(ctx, ep.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("hookline: load project: %w", err)
	}
	if !proj.Enabled {
		return nil, ErrProjectDisabled
	}

	if !signature.VerifyRequest(ep.AuthMethod, ep.AuthSecret, req.Body, req.Headers) {
		g.logger.WarnContext(ctx, "ingestion rejected",
			"endpoint_id", ep.ID,
			"auth_method", ep.AuthMethod,
			"source_ip", req.SourceIP,
		)
		return nil, ErrVerificationFailed
	}

	payload, err := capturePayload(req.Body, req.Headers)
	if err != nil {
		return nil, err
	}

	evt := &event.Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		ProjectID:  ep.ProjectID,
		EndpointID: ep.ID,
		EventType:  extractEventType(req.Body, req.Headers),
		Payload:    payload,
		Headers:    flattenHeaders(req.Headers),
		SourceIP:   req.SourceIP,
		UserAgent:  req.UserAgent,
		Status:     event.StatusPending,
	}

	if err := g.store.CreateEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("hookline: persist event: %w", err)
	}

	if g.metrics != nil {
		g.metrics.EventsReceivedTotal.Inc()
	}

	g.logger.DebugContext(ctx, "event accepted",
		"event_id", evt.ID,
		"endpoint_id", ep.ID,
		"event_type", evt.EventType,
	)

	return evt, nil
}

// Replay resets a settled event for another delivery cycle on the same row.
// The event returns to pending with a cleared attempt counter; its previous
// attempt history is preserved. If the replayed cycle exhausts its retries
// again the event settles as permanently failed.
func (g *Gateway) Replay(ctx context.Context, evtID id.ID) (*event.Event, error) {
	evt, err := g.store.GetEvent(ctx, evtID)
	if err != nil {
		return nil, err
	}

	if evt.Status == event.StatusPending || evt.Status == event.StatusProcessing {
		return nil, ErrEventInFlight
	}

	ep, err := g.store.GetEndpoint(ctx, evt.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("hookline: load endpoint: %w", err)
	}
	if !ep.Enabled {
		return nil, ErrEndpointDisabled
	}

	// Drop stale queue units before re-queueing; attempt rows stay.
	if err := g.store.DeleteByEvent(ctx, evt.ID); err != nil {
		return nil, fmt.Errorf("hookline: clear deliveries: %w", err)
	}

	evt.Status = event.StatusPending
	evt.AttemptCount = 0
	evt.ReplayCount++
	evt.LastAttemptAt = nil
	evt.DeliveredAt = nil
	evt.FailedAt = nil

	if err := g.store.UpdateEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("hookline: requeue event: %w", err)
	}

	g.logger.DebugContext(ctx, "event replayed",
		"event_id", evt.ID,
		"replay_count", evt.ReplayCount,
	)

	return evt, nil
}

// ReplayAsNew copies a settled event into a fresh pending row that references
// the original. The new event runs through routing and transformation against
// the endpoint's current configuration.
func (g *Gateway) ReplayAsNew(ctx context.Context, evtID id.ID) (*event.Event, error) {
	orig, err := g.store.GetEvent(ctx, evtID)
	if err != nil {
		return nil, err
	}

	ep, err := g.store.GetEndpoint(ctx, orig.EndpointID)
	if err != nil {
		return nil, fmt.Errorf("hookline: load endpoint: %w", err)
	}
	if !ep.Enabled {
		return nil, ErrEndpointDisabled
	}

	evt := &event.Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		ProjectID:  orig.ProjectID,
		EndpointID: orig.EndpointID,
		EventType:  orig.EventType,
		Payload:    orig.Payload,
		Headers:    orig.Headers,
		SourceIP:   orig.SourceIP,
		UserAgent:  orig.UserAgent,
		Status:     event.StatusPending,
		ReplayOf:   orig.ID,
	}

	if err := g.store.CreateEvent(ctx, evt); err != nil {
		return nil, fmt.Errorf("hookline: persist replay: %w", err)
	}

	g.logger.DebugContext(ctx, "event replayed as new",
		"event_id", evt.ID,
		"replay_of", orig.ID,
	)

	return evt, nil
}

// BulkReplay replays every settled event in a project matching opts, in
// place. Events still in flight or behind a disabled endpoint are skipped.
// Returns the number of events re-queued.
func (g *Gateway) BulkReplay(ctx context.Context, projID id.ID, opts event.ListOpts) (int, error) {
	events, err := g.store.ListEvents(ctx, projID, opts)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, evt := range events {
		if _, err := g.Replay(ctx, evt.ID); err != nil {
			g.logger.WarnContext(ctx, "bulk replay skipped event",
				"event_id", evt.ID,
				"error", err,
			)
			continue
		}
		replayed++
	}
	return replayed, nil
}

// Event returns a single event by ID.
func (g *Gateway) Event(ctx context.Context, evtID id.ID) (*event.Event, error) {
	return g.store.GetEvent(ctx, evtID)
}

// Events lists a project's events.
func (g *Gateway) Events(ctx context.Context, projID id.ID, opts event.ListOpts) ([]*event.Event, error) {
	return g.store.ListEvents(ctx, projID, opts)
}

// Deliveries lists an event's delivery queue units.
func (g *Gateway) Deliveries(ctx context.Context, evtID id.ID) ([]*delivery.Delivery, error) {
	return g.store.ListByEvent(ctx, evtID)
}

// Attempts returns an event's delivery attempt history, oldest first.
func (g *Gateway) Attempts(ctx context.Context, evtID id.ID) ([]*delivery.Attempt, error) {
	return g.store.ListAttempts(ctx, evtID)
}

// Projects returns the project management service.
func (g *Gateway) Projects() *project.Service {
	return g.projectSvc
}

// Endpoints returns the endpoint management service.
func (g *Gateway) Endpoints() *endpoint.Service {
	return g.endpointSvc
}

// Rules returns the routing rule management service.
func (g *Gateway) Rules() *routing.Service {
	return g.ruleSvc
}

// Transformations returns the transformation management service.
func (g *Gateway) Transformations() *transform.Service {
	return g.transformSvc
}

// DLQ returns the dead letter queue service.
func (g *Gateway) DLQ() *dlq.Service {
	return g.dlqSvc
}

// Store returns the underlying store.
func (g *Gateway) Store() store.Store {
	return g.store
}

// capturePayload validates a JSON body, or captures a form/text body as an
// opaque JSON string. A missing Content-Type is treated as JSON.
func capturePayload(body []byte, headers http.Header) (json.RawMessage, error) {
	ct := headers.Get("Content-Type")
	if ct == "" || strings.Contains(ct, "json") {
		if len(body) == 0 || !json.Valid(body) {
			return nil, ErrMalformedPayload
		}
		return json.RawMessage(body), nil
	}
	raw, err := json.Marshal(string(body))
	if err != nil {
		return nil, ErrMalformedPayload
	}
	return raw, nil
}

// extractEventType pulls the event type from the X-Event-Type header, falling
// back to the payload's top-level "event_type" or "type" fields.
func extractEventType(body []byte, headers http.Header) string {
	if t := headers.Get("X-Event-Type"); t != "" {
		return t
	}
	var doc struct {
		EventType string `json:"event_type"`
		Type      string `json:"type"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	if doc.EventType != "" {
		return doc.EventType
	}
	return doc.Type
}

// flattenHeaders converts request headers to a single-valued map for storage.
func flattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
