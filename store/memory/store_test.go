package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/routing"
	"github.com/hookline/hookline/transform"
)

func ctx() context.Context { return context.Background() }

func seedProject(t *testing.T, s *Store) *project.Project {
	t.Helper()
	p := &project.Project{
		Entity:  entity.New(),
		ID:      id.NewProjectID(),
		Name:    "Acme",
		Slug:    "acme",
		APIKey:  "whk_" + id.NewProjectID().String(),
		Enabled: true,
	}
	if err := s.CreateProject(ctx(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func seedEndpoint(t *testing.T, s *Store, projID id.ID, urlPath, shortURL string) *endpoint.Endpoint {
	t.Helper()
	ep := &endpoint.Endpoint{
		Entity:          entity.New(),
		ID:              id.NewEndpointID(),
		ProjectID:       projID,
		Name:            "orders",
		URLPath:         urlPath,
		ShortURL:        shortURL,
		DestinationURLs: []string{"https://dest.example"},
		Retry:           endpoint.DefaultRetryConfig(),
		Enabled:         true,
	}
	if err := s.CreateEndpoint(ctx(), ep); err != nil {
		t.Fatal(err)
	}
	return ep
}

func seedEvent(t *testing.T, s *Store, projID, epID id.ID) *event.Event {
	t.Helper()
	evt := &event.Event{
		Entity:     entity.New(),
		ID:         id.NewEventID(),
		ProjectID:  projID,
		EndpointID: epID,
		EventType:  "order.created",
		Payload:    json.RawMessage(`{"x":1}`),
		Status:     event.StatusPending,
	}
	if err := s.CreateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}
	return evt
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, hookline.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// project.Store
// ──────────────────────────────────────────────────

func TestProjectCRUD(t *testing.T) {
	s := New()
	p := seedProject(t, s)

	got, err := s.GetProject(ctx(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Slug != "acme" {
		t.Errorf("slug = %s", got.Slug)
	}

	if _, err := s.GetProjectByAPIKey(ctx(), p.APIKey); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetProjectByAPIKey(ctx(), "whk_nope"); !errors.Is(err, hookline.ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := s.GetProjectBySlug(ctx(), "acme"); err != nil {
		t.Fatal(err)
	}

	p.Name = "Acme Inc"
	if err := s.UpdateProject(ctx(), p); err != nil {
		t.Fatal(err)
	}

	enabled := true
	list, err := s.ListProjects(ctx(), project.ListOpts{Enabled: &enabled})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 project, got %d", len(list))
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")
	evt := seedEvent(t, s, p.ID, ep.ID)

	rule := &routing.Rule{Entity: entity.New(), ID: id.NewRuleID(), EndpointID: ep.ID, Name: "r", Action: routing.ActionDrop, Enabled: true}
	if err := s.CreateRule(ctx(), rule); err != nil {
		t.Fatal(err)
	}
	tf := &transform.Transformation{Entity: entity.New(), ID: id.NewTransformationID(), EndpointID: ep.ID, Name: "t", Type: transform.TypeTemplate, Rules: json.RawMessage(`{"template":"{}"}`), Enabled: true}
	if err := s.CreateTransformation(ctx(), tf); err != nil {
		t.Fatal(err)
	}
	d := &delivery.Delivery{Entity: entity.New(), ID: id.NewDeliveryID(), EventID: evt.ID, EndpointID: ep.ID, DestinationURL: "https://dest.example", State: delivery.StatePending, MaxAttempts: 3}
	if err := s.Enqueue(ctx(), d); err != nil {
		t.Fatal(err)
	}
	a := &delivery.Attempt{ID: id.NewAttemptID(), DeliveryID: d.ID, EventID: evt.ID, Status: delivery.AttemptFailed, CreatedAt: time.Now().UTC()}
	if err := s.AppendAttempt(ctx(), a); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteProject(ctx(), p.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetEndpoint(ctx(), ep.ID); !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Error("endpoint must cascade")
	}
	if _, err := s.GetEvent(ctx(), evt.ID); !errors.Is(err, hookline.ErrEventNotFound) {
		t.Error("event must cascade")
	}
	if _, err := s.GetRule(ctx(), rule.ID); !errors.Is(err, hookline.ErrRuleNotFound) {
		t.Error("rule must cascade")
	}
	if _, err := s.GetTransformation(ctx(), tf.ID); !errors.Is(err, hookline.ErrTransformationNotFound) {
		t.Error("transformation must cascade")
	}
	if _, err := s.GetDelivery(ctx(), d.ID); !errors.Is(err, hookline.ErrDeliveryNotFound) {
		t.Error("delivery must cascade")
	}
	attempts, err := s.ListAttempts(ctx(), evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 0 {
		t.Error("attempts must cascade")
	}
}

// ──────────────────────────────────────────────────
// endpoint.Store
// ──────────────────────────────────────────────────

func TestEndpointUniqueness(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	seedEndpoint(t, s, p.ID, "orders", "abc12345")

	dup := &endpoint.Endpoint{
		Entity: entity.New(), ID: id.NewEndpointID(), ProjectID: p.ID,
		URLPath: "other", ShortURL: "abc12345",
	}
	if err := s.CreateEndpoint(ctx(), dup); !errors.Is(err, endpoint.ErrShortURLTaken) {
		t.Fatalf("expected ErrShortURLTaken, got %v", err)
	}

	dup.ShortURL = "zzz99999"
	dup.URLPath = "orders"
	if err := s.CreateEndpoint(ctx(), dup); !errors.Is(err, endpoint.ErrURLPathTaken) {
		t.Fatalf("expected ErrURLPathTaken, got %v", err)
	}
}

func TestUpdateEndpointUniqueness(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	seedEndpoint(t, s, p.ID, "orders", "abc12345")
	other := seedEndpoint(t, s, p.ID, "invoices", "zzz99999")

	other.URLPath = "orders"
	if err := s.UpdateEndpoint(ctx(), other); !errors.Is(err, endpoint.ErrURLPathTaken) {
		t.Fatalf("expected ErrURLPathTaken, got %v", err)
	}

	other.URLPath = "invoices"
	other.ShortURL = "abc12345"
	if err := s.UpdateEndpoint(ctx(), other); !errors.Is(err, endpoint.ErrShortURLTaken) {
		t.Fatalf("expected ErrShortURLTaken, got %v", err)
	}

	// The row's own keys don't conflict with itself.
	other.ShortURL = "zzz99999"
	other.Name = "billing"
	if err := s.UpdateEndpoint(ctx(), other); err != nil {
		t.Fatalf("self-update failed: %v", err)
	}
}

func TestEndpointReadsReturnCopies(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")

	got, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.URLPath = "scribbled"

	again, err := s.GetEndpointByURLPath(ctx(), "orders")
	if err != nil {
		t.Fatalf("caller mutation leaked into the store: %v", err)
	}
	if again.URLPath != "orders" {
		t.Errorf("stored url_path changed to %q", again.URLPath)
	}
}

func TestEndpointLookups(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")

	byPath, err := s.GetEndpointByURLPath(ctx(), "orders")
	if err != nil || byPath.ID.String() != ep.ID.String() {
		t.Fatalf("lookup by path failed: %v", err)
	}
	byShort, err := s.GetEndpointByShortURL(ctx(), "abc12345")
	if err != nil || byShort.ID.String() != ep.ID.String() {
		t.Fatalf("lookup by short url failed: %v", err)
	}
	if _, err := s.GetEndpointByURLPath(ctx(), "missing"); !errors.Is(err, hookline.ErrEndpointNotFound) {
		t.Fatal("expected ErrEndpointNotFound")
	}

	if err := s.SetEndpointEnabled(ctx(), ep.ID, false); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetEndpoint(ctx(), ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Enabled {
		t.Error("endpoint should be disabled")
	}
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

func TestDequeuePendingEventsClaimsOnce(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")
	evt := seedEvent(t, s, p.ID, ep.ID)

	first, err := s.DequeuePendingEvents(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 || first[0].ID.String() != evt.ID.String() {
		t.Fatalf("expected the seeded event, got %+v", first)
	}
	if first[0].Status != event.StatusProcessing {
		t.Errorf("claimed event status = %s, want processing", first[0].Status)
	}

	second, err := s.DequeuePendingEvents(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Fatalf("event claimed twice: %+v", second)
	}
}

func TestTouchEventAttemptMaxSemantics(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")
	evt := seedEvent(t, s, p.ID, ep.ID)

	if err := s.TouchEventAttempt(ctx(), evt.ID, 2); err != nil {
		t.Fatal(err)
	}
	// A slower sibling delivery reporting a lower count must not regress it.
	if err := s.TouchEventAttempt(ctx(), evt.ID, 1); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEvent(ctx(), evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AttemptCount != 2 {
		t.Errorf("attempt_count = %d, want 2", got.AttemptCount)
	}
	if got.LastAttemptAt == nil {
		t.Error("last_attempt_at must be set")
	}
}

func TestListEventsFilters(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")
	evt := seedEvent(t, s, p.ID, ep.ID)

	evt.Status = event.StatusDelivered
	if err := s.UpdateEvent(ctx(), evt); err != nil {
		t.Fatal(err)
	}
	seedEvent(t, s, p.ID, ep.ID)

	delivered, err := s.ListEvents(ctx(), p.ID, event.ListOpts{Status: event.StatusDelivered})
	if err != nil {
		t.Fatal(err)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(delivered))
	}

	all, err := s.ListEvents(ctx(), p.ID, event.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
}

// ──────────────────────────────────────────────────
// delivery.Store
// ──────────────────────────────────────────────────

func TestDeliveryDequeueRespectsDueTime(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")
	evt := seedEvent(t, s, p.ID, ep.ID)

	due := &delivery.Delivery{
		Entity: entity.New(), ID: id.NewDeliveryID(), EventID: evt.ID, EndpointID: ep.ID,
		DestinationURL: "https://a.example", State: delivery.StatePending,
		MaxAttempts: 3, NextAttemptAt: time.Now().Add(-time.Second),
	}
	future := &delivery.Delivery{
		Entity: entity.New(), ID: id.NewDeliveryID(), EventID: evt.ID, EndpointID: ep.ID,
		DestinationURL: "https://b.example", State: delivery.StatePending,
		MaxAttempts: 3, NextAttemptAt: time.Now().Add(time.Hour),
	}
	if err := s.EnqueueBatch(ctx(), []*delivery.Delivery{due, future}); err != nil {
		t.Fatal(err)
	}

	batch, err := s.Dequeue(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 1 || batch[0].ID.String() != due.ID.String() {
		t.Fatalf("expected only the due delivery, got %+v", batch)
	}

	// Locked until updated.
	again, err := s.Dequeue(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatal("dequeued delivery must stay locked")
	}

	batch[0].State = delivery.StateDelivered
	if err := s.UpdateDelivery(ctx(), batch[0]); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDelivery(ctx(), due.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != delivery.StateDelivered {
		t.Errorf("state = %s", got.State)
	}
}

func TestDequeueReclaimsExpiredClaims(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")
	evt := seedEvent(t, s, p.ID, ep.ID)

	d := &delivery.Delivery{
		Entity: entity.New(), ID: id.NewDeliveryID(), EventID: evt.ID, EndpointID: ep.ID,
		DestinationURL: "https://a.example", State: delivery.StatePending,
		MaxAttempts: 3, NextAttemptAt: time.Now().Add(-time.Second),
	}
	if err := s.Enqueue(ctx(), d); err != nil {
		t.Fatal(err)
	}

	if batch, err := s.Dequeue(ctx(), 10); err != nil || len(batch) != 1 {
		t.Fatalf("first dequeue: %v, %d items", err, len(batch))
	}

	// A worker that claimed the delivery and died never updates it. Age the
	// claim past the timeout; the next dequeue hands the delivery out again.
	s.mu.Lock()
	s.locked[d.ID.String()] = time.Now().Add(-claimTimeout - time.Second)
	s.mu.Unlock()

	batch, err := s.Dequeue(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 1 || batch[0].ID.String() != d.ID.String() {
		t.Fatalf("expected the stale claim to be reissued, got %+v", batch)
	}
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

func TestDLQReplayResetsDelivery(t *testing.T) {
	s := New()
	p := seedProject(t, s)
	ep := seedEndpoint(t, s, p.ID, "orders", "abc12345")
	evt := seedEvent(t, s, p.ID, ep.ID)

	now := time.Now().UTC()
	d := &delivery.Delivery{
		Entity: entity.New(), ID: id.NewDeliveryID(), EventID: evt.ID, EndpointID: ep.ID,
		DestinationURL: "https://dest.example", State: delivery.StateFailed,
		AttemptCount: 3, MaxAttempts: 3, CompletedAt: &now,
	}
	if err := s.Enqueue(ctx(), d); err != nil {
		t.Fatal(err)
	}

	entry := &dlq.Entry{
		Entity: entity.New(), ID: id.NewDLQID(), DeliveryID: d.ID, EventID: evt.ID,
		EndpointID: ep.ID, ProjectID: p.ID, DestinationURL: d.DestinationURL,
		Payload: json.RawMessage(`{"x":1}`), Error: "502", AttemptCount: 3,
		FailedAt: now,
	}
	if err := s.Push(ctx(), entry); err != nil {
		t.Fatal(err)
	}

	if err := s.Replay(ctx(), entry.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDelivery(ctx(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != delivery.StatePending || got.AttemptCount != 0 || got.CompletedAt != nil {
		t.Errorf("replayed delivery not reset: %+v", got)
	}

	e, err := s.GetDLQ(ctx(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.ReplayedAt == nil {
		t.Error("entry must be marked replayed")
	}

	// Bulk replay skips already-replayed entries.
	n, err := s.ReplayBulk(ctx(), now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("bulk replay count = %d, want 0", n)
	}
}

func TestDLQPurge(t *testing.T) {
	s := New()
	p := seedProject(t, s)

	old := &dlq.Entry{Entity: entity.New(), ID: id.NewDLQID(), ProjectID: p.ID, FailedAt: time.Now().UTC()}
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	fresh := &dlq.Entry{Entity: entity.New(), ID: id.NewDLQID(), ProjectID: p.ID, FailedAt: time.Now().UTC()}

	if err := s.Push(ctx(), old); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(ctx(), fresh); err != nil {
		t.Fatal(err)
	}

	n, err := s.Purge(ctx(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}

	count, err := s.CountDLQ(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}
