package delivery_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/routing"
	"github.com/hookline/hookline/signature"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/transform"
)

// stubDLQ records pushed entries.
type stubDLQ struct {
	count atomic.Int32
}

func (s *stubDLQ) PushFailed(_ context.Context, _ *delivery.Delivery, _ *endpoint.Endpoint, _ *event.Event, _ string, _ int) error {
	s.count.Add(1)
	return nil
}

func setupEngine(t *testing.T, handler http.Handler, dlq delivery.DLQPusher) (*memory.Store, *delivery.Engine, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)

	store := memory.New()
	cfg := delivery.EngineConfig{
		Concurrency:    2,
		PollInterval:   20 * time.Millisecond,
		BatchSize:      10,
		RequestTimeout: 5 * time.Second,
	}

	router := routing.NewEngine(store, nil)
	pipeline := transform.NewPipeline(store, nil, nil, nil)
	engine := delivery.NewEngine(store, router, pipeline, dlq, cfg, nil)
	return store, engine, srv
}

// createTestData seeds a project, an endpoint pointing at url, and a pending
// event.
func createTestData(t *testing.T, store *memory.Store, url string) (*endpoint.Endpoint, *event.Event) {
	t.Helper()
	ctx := context.Background()

	ep := &endpoint.Endpoint{
		Entity:          entity.New(),
		ID:              id.NewEndpointID(),
		ProjectID:       id.NewProjectID(),
		Name:            "orders",
		URLPath:         "orders-" + id.NewEndpointID().String(),
		ShortURL:        endpoint.GenerateShortURL(),
		DestinationURLs: []string{url},
		AuthMethod:      signature.MethodNone,
		Retry: endpoint.RetryConfig{
			MaxAttempts:       3,
			RetryDelay:        0.01,
			BackoffMultiplier: 1,
		},
		Enabled: true,
	}
	if err := store.CreateEndpoint(ctx, ep); err != nil {
		t.Fatal(err)
	}

	evt := &event.Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		ProjectID:  ep.ProjectID,
		EndpointID: ep.ID,
		EventType:  "order.created",
		Payload:    json.RawMessage(`{"order_id":"ord_1","plan":"pro"}`),
		Status:     event.StatusPending,
	}
	if err := store.CreateEvent(ctx, evt); err != nil {
		t.Fatal(err)
	}

	return ep, evt
}

// waitForStatus polls until the event reaches want or the deadline passes.
func waitForStatus(t *testing.T, store *memory.Store, evtID id.ID, want event.Status) *event.Event {
	t.Helper()
	ctx := context.Background()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			got, _ := store.GetEvent(ctx, evtID)
			t.Fatalf("timeout waiting for event status %s, last seen %+v", want, got)
		default:
		}

		evt, err := store.GetEvent(ctx, evtID)
		if err != nil {
			t.Fatal(err)
		}
		if evt.Status == want {
			return evt
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEngineDeliversEvent(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq)
	defer srv.Close()

	_, evt := createTestData(t, store, srv.URL)

	ctx := context.Background()
	engine.Start(ctx)
	got := waitForStatus(t, store, evt.ID, event.StatusDelivered)
	engine.Stop(ctx)

	if hits.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", hits.Load())
	}
	if got.AttemptCount != 1 {
		t.Errorf("attempt_count = %d, want 1", got.AttemptCount)
	}
	if got.DeliveredAt == nil {
		t.Error("delivered_at must be set")
	}
	if dlq.count.Load() != 0 {
		t.Error("expected no DLQ pushes")
	}

	attempts, err := store.ListAttempts(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 || attempts[0].Status != delivery.AttemptSuccess {
		t.Errorf("expected one successful attempt row, got %+v", attempts)
	}
}

func TestEngineRetriesAndSucceeds(t *testing.T) {
	var attempts atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq)
	defer srv.Close()

	_, evt := createTestData(t, store, srv.URL)

	ctx := context.Background()
	engine.Start(ctx)
	got := waitForStatus(t, store, evt.ID, event.StatusDelivered)
	engine.Stop(ctx)

	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
	if got.AttemptCount != 3 {
		t.Errorf("attempt_count = %d, want 3", got.AttemptCount)
	}
	if dlq.count.Load() != 0 {
		t.Error("expected no DLQ pushes")
	}
}

func TestEngineExhaustsRetries(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq)
	defer srv.Close()

	_, evt := createTestData(t, store, srv.URL)

	ctx := context.Background()
	engine.Start(ctx)
	got := waitForStatus(t, store, evt.ID, event.StatusFailed)
	engine.Stop(ctx)

	// max_attempts=3 leaves exactly 3 attempt rows and attempt_count=3.
	if got.AttemptCount != 3 {
		t.Errorf("attempt_count = %d, want 3", got.AttemptCount)
	}
	if got.FailedAt == nil {
		t.Error("failed_at must be set")
	}

	attempts, err := store.ListAttempts(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected exactly 3 attempt rows, got %d", len(attempts))
	}
	for _, a := range attempts {
		if a.Status != delivery.AttemptFailed {
			t.Errorf("attempt status = %s, want failed", a.Status)
		}
		if a.ResponseCode != http.StatusInternalServerError {
			t.Errorf("response_code = %d, want 500", a.ResponseCode)
		}
	}
	if dlq.count.Load() != 1 {
		t.Fatalf("expected 1 DLQ push, got %d", dlq.count.Load())
	}
}

func TestEnginePartialSuccessFinalizesFailed(t *testing.T) {
	okSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer okSrv.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	dlq := &stubDLQ{}
	store, engine, srv := setupEngine(t, handler, dlq)
	defer srv.Close()

	ep, evt := createTestData(t, store, srv.URL)

	ctx := context.Background()
	ep.DestinationURLs = []string{okSrv.URL, srv.URL}
	if err := store.UpdateEndpoint(ctx, ep); err != nil {
		t.Fatal(err)
	}

	engine.Start(ctx)
	waitForStatus(t, store, evt.ID, event.StatusFailed)
	engine.Stop(ctx)

	ds, err := store.ListByEvent(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(ds))
	}
	var delivered, failed int
	for _, d := range ds {
		switch d.State {
		case delivery.StateDelivered:
			delivered++
		case delivery.StateFailed:
			failed++
		}
	}
	if delivered != 1 || failed != 1 {
		t.Errorf("expected 1 delivered + 1 failed, got %d/%d", delivered, failed)
	}
}

func TestEngineHonorsDropRule(t *testing.T) {
	var hits atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler, nil)
	defer srv.Close()

	ep, evt := createTestData(t, store, srv.URL)

	ctx := context.Background()
	rule := &routing.Rule{
		Entity:     entity.New(),
		ID:         id.NewRuleID(),
		EndpointID: ep.ID,
		Name:       "drop-all",
		Action:     routing.ActionDrop,
		Priority:   1,
		Enabled:    true,
	}
	if err := store.CreateRule(ctx, rule); err != nil {
		t.Fatal(err)
	}

	engine.Start(ctx)
	waitForStatus(t, store, evt.ID, event.StatusDropped)
	engine.Stop(ctx)

	if hits.Load() != 0 {
		t.Fatalf("dropped event must not be delivered, got %d hits", hits.Load())
	}
	ds, err := store.ListByEvent(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 0 {
		t.Fatalf("dropped event must produce zero deliveries, got %d", len(ds))
	}
}

func TestEngineAppliesTransformation(t *testing.T) {
	var received atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			received.Store(body)
		}
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler, nil)
	defer srv.Close()

	ep, evt := createTestData(t, store, srv.URL)

	ctx := context.Background()
	tf := &transform.Transformation{
		Entity:     entity.New(),
		ID:         id.NewTransformationID(),
		EndpointID: ep.ID,
		Name:       "flatten",
		Type:       transform.TypeFieldMapping,
		Rules: json.RawMessage(`{
			"mappings": [{"source": "order_id", "target": "reference"}],
			"merge_with_original": true
		}`),
		Priority: 1,
		Enabled:  true,
	}
	if err := store.CreateTransformation(ctx, tf); err != nil {
		t.Fatal(err)
	}

	engine.Start(ctx)
	waitForStatus(t, store, evt.ID, event.StatusDelivered)
	engine.Stop(ctx)

	body, _ := received.Load().(map[string]any)
	if body == nil {
		t.Fatal("destination never received a body")
	}
	if body["reference"] != "ord_1" {
		t.Errorf("transformed field missing, got %v", body)
	}
	if body["order_id"] != "ord_1" {
		t.Errorf("merge_with_original must keep source fields, got %v", body)
	}
}

func TestEngineGracefulShutdown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	store, engine, srv := setupEngine(t, handler, nil)
	defer srv.Close()

	ctx := context.Background()
	for range 5 {
		createTestData(t, store, srv.URL)
	}

	engine.Start(ctx)
	time.Sleep(200 * time.Millisecond)
	engine.Stop(ctx)

	pending, err := store.CountPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("pending after shutdown: %d", pending)
}

func TestEngineNilDLQ(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	store, engine, srv := setupEngine(t, handler, nil)
	defer srv.Close()

	_, evt := createTestData(t, store, srv.URL)

	ctx := context.Background()
	engine.Start(ctx)
	waitForStatus(t, store, evt.ID, event.StatusFailed)
	engine.Stop(ctx)
}
