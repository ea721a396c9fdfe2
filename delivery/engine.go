package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/ratelimit"
	"github.com/hookline/hookline/routing"
)

// EngineStore is the interface the engine needs for event and delivery
// operations.
type EngineStore interface {
	DequeuePendingEvents(ctx context.Context, limit int) ([]*event.Event, error)
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	UpdateEvent(ctx context.Context, evt *event.Event) error
	TouchEventAttempt(ctx context.Context, evtID id.ID, attemptCount int) error

	GetEndpoint(ctx context.Context, epID id.ID) (*endpoint.Endpoint, error)

	Dequeue(ctx context.Context, limit int) ([]*Delivery, error)
	EnqueueBatch(ctx context.Context, ds []*Delivery) error
	UpdateDelivery(ctx context.Context, d *Delivery) error
	ListByEvent(ctx context.Context, evtID id.ID) ([]*Delivery, error)
	AppendAttempt(ctx context.Context, a *Attempt) error
	CountPending(ctx context.Context) (int64, error)
}

// Router resolves an event's destination set.
type Router interface {
	Resolve(ctx context.Context, ep *endpoint.Endpoint, doc condition.Document) (routing.Resolution, error)
}

// Transformer rewrites an event payload before fan-out.
type Transformer interface {
	Apply(ctx context.Context, endpointID id.ID, doc condition.Document) (map[string]any, error)
}

// DLQPusher records deliveries that exhausted their retry budget.
type DLQPusher interface {
	PushFailed(ctx context.Context, d *Delivery, ep *endpoint.Endpoint, evt *event.Event, lastError string, lastStatusCode int) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine runs the asynchronous half of the gateway: one loop claims pending
// events and fans them out through routing and transformation, another
// dispatches due deliveries through a bounded worker pool.
type Engine struct {
	store       EngineStore
	router      Router
	transformer Transformer
	sender      *Sender
	retrier     *Retrier
	limiter     *ratelimit.Limiter
	dlq         DLQPusher
	config      EngineConfig
	logger      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a delivery engine.
func NewEngine(store EngineStore, router Router, transformer Transformer, dlq DLQPusher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       store,
		router:      router,
		transformer: transformer,
		sender:      NewSender(cfg.RequestTimeout),
		retrier:     NewRetrier(),
		limiter:     ratelimit.New(),
		dlq:         dlq,
		config:      cfg,
		logger:      logger,
	}
}

// Start begins the processing and delivery loops.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.processLoop(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.deliverLoop(ctx)
	}()
}

// Stop cancels both loops and waits for in-flight work to complete.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// processLoop claims pending events and runs routing, transformation, and
// fan-out for each.
func (e *Engine) processLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.DequeuePendingEvents(ctx, e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "dequeue events failed", "error", err)
				continue
			}
			for _, evt := range batch {
				e.processEvent(ctx, evt)
			}
		}
	}
}

// processEvent resolves destinations, applies transformations, and enqueues
// one delivery per destination. The event stays in processing until its
// deliveries finalize it.
func (e *Engine) processEvent(ctx context.Context, evt *event.Event) {
	// Routing and transformation evaluate tenant-authored rules; a panic from
	// one event must not take down the loop.
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.ErrorContext(ctx, "panic processing event",
				"event_id", evt.ID, "panic", rec)
			e.requeueEvent(ctx, evt)
		}
	}()

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartProcessSpan(ctx, evt.ID.String(), evt.EndpointID.String())
		defer span.End()
	}

	ep, err := e.store.GetEndpoint(ctx, evt.EndpointID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get endpoint failed",
			"event_id", evt.ID, "endpoint_id", evt.EndpointID, "error", err)
		e.requeueEvent(ctx, evt)
		return
	}

	doc := condition.Document{
		EventType: evt.EventType,
		Payload:   evt.Document(),
		Headers:   evt.Headers,
	}

	res, err := e.router.Resolve(ctx, ep, doc)
	if err != nil {
		e.logger.ErrorContext(ctx, "routing failed", "event_id", evt.ID, "error", err)
		e.requeueEvent(ctx, evt)
		return
	}

	if res.Dropped {
		evt.Status = event.StatusDropped
		if err := e.store.UpdateEvent(ctx, evt); err != nil {
			e.logger.ErrorContext(ctx, "finalize dropped event failed", "event_id", evt.ID, "error", err)
			return
		}
		if e.config.Metrics != nil {
			e.config.Metrics.EventsDroppedTotal.Inc()
		}
		e.logger.DebugContext(ctx, "event dropped by routing rule",
			"event_id", evt.ID, "rule_id", res.RuleID)
		return
	}

	payload := e.transformPayload(ctx, ep, evt, doc)

	if len(res.Destinations) == 0 {
		// Nothing to deliver: vacuously delivered.
		now := time.Now().UTC()
		evt.Status = event.StatusDelivered
		evt.DeliveredAt = &now
		if err := e.store.UpdateEvent(ctx, evt); err != nil {
			e.logger.ErrorContext(ctx, "finalize event failed", "event_id", evt.ID, "error", err)
		}
		e.logger.DebugContext(ctx, "event has no destinations", "event_id", evt.ID)
		return
	}

	now := time.Now().UTC()
	ds := make([]*Delivery, 0, len(res.Destinations))
	for _, dest := range res.Destinations {
		ds = append(ds, &Delivery{
			Entity:         entity.New(),
			ID:             id.NewDeliveryID(),
			EventID:        evt.ID,
			EndpointID:     ep.ID,
			DestinationURL: dest.URL,
			Payload:        payload,
			State:          StatePending,
			MaxAttempts:    ep.Retry.MaxAttempts,
			NextAttemptAt:  now,
		})
	}

	if err := e.store.EnqueueBatch(ctx, ds); err != nil {
		e.logger.ErrorContext(ctx, "enqueue deliveries failed", "event_id", evt.ID, "error", err)
		e.requeueEvent(ctx, evt)
		return
	}

	e.logger.DebugContext(ctx, "event fanned out",
		"event_id", evt.ID, "destinations", len(ds), "rule_id", res.RuleID)
}

// transformPayload runs the pipeline when the body is a JSON object.
// Non-object payloads are delivered as received.
func (e *Engine) transformPayload(ctx context.Context, ep *endpoint.Endpoint, evt *event.Event, doc condition.Document) json.RawMessage {
	var obj map[string]any
	if err := json.Unmarshal(evt.Payload, &obj); err != nil {
		return evt.Payload
	}

	out, err := e.transformer.Apply(ctx, ep.ID, doc)
	if err != nil {
		e.logger.ErrorContext(ctx, "transformation pipeline failed, delivering original payload",
			"event_id", evt.ID, "error", err)
		return evt.Payload
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode transformed payload failed",
			"event_id", evt.ID, "error", err)
		return evt.Payload
	}
	return encoded
}

// requeueEvent puts a claimed event back in pending after a transient
// processing failure so a later poll retries it.
func (e *Engine) requeueEvent(ctx context.Context, evt *event.Event) {
	evt.Status = event.StatusPending
	if err := e.store.UpdateEvent(ctx, evt); err != nil {
		e.logger.ErrorContext(ctx, "requeue event failed", "event_id", evt.ID, "error", err)
	}
}

// deliverLoop periodically dequeues due deliveries and dispatches them to
// workers.
func (e *Engine) deliverLoop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, e.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := e.store.Dequeue(ctx, e.config.BatchSize)
			if err != nil {
				e.logger.ErrorContext(ctx, "dequeue deliveries failed", "error", err)
				continue
			}

			if e.config.Metrics != nil {
				if pending, err := e.store.CountPending(ctx); err == nil {
					e.config.Metrics.PendingDeliveries.Set(float64(pending))
				}
			}

			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				e.wg.Add(1)
				go func(del *Delivery) {
					defer e.wg.Done()
					defer func() { <-sem }()
					e.process(ctx, del)
				}(d)
			}
		}
	}
}

// process handles one delivery attempt: send, record the attempt row, decide,
// and finalize the event when its last delivery completes.
func (e *Engine) process(ctx context.Context, d *Delivery) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.ErrorContext(ctx, "panic processing delivery",
				"delivery_id", d.ID, "panic", rec)
		}
	}()

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, d.ID.String(), d.EventID.String(), d.DestinationURL)
	}

	ep, err := e.store.GetEndpoint(ctx, d.EndpointID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get endpoint failed",
			"delivery_id", d.ID, "endpoint_id", d.EndpointID, "error", err)
		if span != nil {
			e.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
		}
		return
	}

	if err := e.limiter.Wait(ctx, d.EndpointID, ep.RateLimit); err != nil {
		if span != nil {
			e.config.Tracer.EndDeliverySpan(span, 0, 0, err.Error())
		}
		return
	}

	d.AttemptCount++
	result := e.sender.Send(ctx, ep, d)

	d.LastError = result.Error
	d.LastStatusCode = result.StatusCode

	attempt := &Attempt{
		ID:             id.NewAttemptID(),
		DeliveryID:     d.ID,
		EventID:        d.EventID,
		DestinationURL: d.DestinationURL,
		Status:         AttemptFailed,
		ResponseCode:   result.StatusCode,
		ResponseBody:   result.Response,
		ErrorMessage:   result.Error,
		LatencyMs:      result.LatencyMs,
		CreatedAt:      time.Now().UTC(),
	}
	if result.Success() {
		attempt.Status = AttemptSuccess
	}
	if err := e.store.AppendAttempt(ctx, attempt); err != nil {
		e.logger.ErrorContext(ctx, "append attempt failed", "delivery_id", d.ID, "error", err)
	}
	if err := e.store.TouchEventAttempt(ctx, d.EventID, d.AttemptCount); err != nil {
		e.logger.ErrorContext(ctx, "touch event attempt failed", "event_id", d.EventID, "error", err)
	}

	latencySeconds := float64(result.LatencyMs) / 1000.0
	decision := e.retrier.Decide(result, d)

	switch decision {
	case Delivered:
		now := time.Now().UTC()
		d.State = StateDelivered
		d.CompletedAt = &now
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("delivered", latencySeconds)
		}
		e.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID, "destination", d.DestinationURL,
			"status", result.StatusCode, "latency_ms", result.LatencyMs)

	case Retry:
		d.NextAttemptAt = e.retrier.NextAttemptAt(ep.Retry, d.AttemptCount)
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("retried", latencySeconds)
		}
		e.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", d.ID, "attempt", d.AttemptCount, "next_at", d.NextAttemptAt)

	case Exhausted:
		now := time.Now().UTC()
		d.State = StateFailed
		d.CompletedAt = &now
		e.pushToDLQ(ctx, d, ep, result)
		if e.config.Metrics != nil {
			e.config.Metrics.RecordDelivery("failed", latencySeconds)
			e.config.Metrics.DLQSize.Inc()
		}
		e.logger.WarnContext(ctx, "delivery exhausted retry budget",
			"delivery_id", d.ID, "destination", d.DestinationURL,
			"status", result.StatusCode, "error", result.Error)
	}

	if span != nil {
		e.config.Tracer.EndDeliverySpan(span, result.StatusCode, result.LatencyMs, result.Error)
	}

	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		e.logger.ErrorContext(ctx, "update delivery failed", "delivery_id", d.ID, "error", err)
		return
	}

	if d.State != StatePending {
		e.finalizeEvent(ctx, d.EventID)
	}
}

func (e *Engine) pushToDLQ(ctx context.Context, d *Delivery, ep *endpoint.Endpoint, result Result) {
	if e.dlq == nil {
		return
	}
	evt, err := e.store.GetEvent(ctx, d.EventID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get event for DLQ failed", "event_id", d.EventID, "error", err)
		return
	}
	if err := e.dlq.PushFailed(ctx, d, ep, evt, result.Error, result.StatusCode); err != nil {
		e.logger.ErrorContext(ctx, "push to DLQ failed", "delivery_id", d.ID, "error", err)
	}
}

// finalizeEvent reconciles an event's terminal status once none of its
// deliveries remain pending. All destinations delivered means delivered;
// otherwise the first cycle finalizes as failed and a replayed cycle as
// permanently_failed.
func (e *Engine) finalizeEvent(ctx context.Context, evtID id.ID) {
	ds, err := e.store.ListByEvent(ctx, evtID)
	if err != nil {
		e.logger.ErrorContext(ctx, "list deliveries failed", "event_id", evtID, "error", err)
		return
	}

	allDelivered := true
	for _, d := range ds {
		switch d.State {
		case StatePending:
			return
		case StateFailed:
			allDelivered = false
		}
	}

	evt, err := e.store.GetEvent(ctx, evtID)
	if err != nil {
		e.logger.ErrorContext(ctx, "get event failed", "event_id", evtID, "error", err)
		return
	}
	if evt.Status.Terminal() {
		return
	}

	now := time.Now().UTC()
	switch {
	case allDelivered:
		evt.Status = event.StatusDelivered
		evt.DeliveredAt = &now
	case evt.ReplayCount > 0:
		evt.Status = event.StatusPermanentlyFailed
		evt.FailedAt = &now
	default:
		evt.Status = event.StatusFailed
		evt.FailedAt = &now
	}

	if err := e.store.UpdateEvent(ctx, evt); err != nil {
		e.logger.ErrorContext(ctx, "finalize event failed", "event_id", evtID, "error", err)
		return
	}

	e.logger.InfoContext(ctx, "event finalized",
		"event_id", evtID, "status", evt.Status, "attempt_count", evt.AttemptCount)
}
