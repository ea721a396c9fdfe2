package dlq_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/dlq"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService() (*dlq.Service, *memory.Store) {
	store := memory.New()
	svc := dlq.NewService(store, nil)
	return svc, store
}

func failedDelivery() (*delivery.Delivery, *endpoint.Endpoint, *event.Event) {
	d := &delivery.Delivery{
		Entity:         entity.New(),
		ID:             id.NewDeliveryID(),
		EventID:        id.NewEventID(),
		EndpointID:     id.NewEndpointID(),
		DestinationURL: "https://example.com/webhook",
		Payload:        json.RawMessage(`{"amount":100}`),
		State:          delivery.StateFailed,
		AttemptCount:   5,
		MaxAttempts:    5,
		LastStatusCode: 500,
	}
	ep := &endpoint.Endpoint{
		Entity:    entity.New(),
		ID:        d.EndpointID,
		ProjectID: id.NewProjectID(),
		Name:      "orders",
		URLPath:   "acme/orders",
	}
	evt := &event.Event{
		Entity:     entity.New(),
		ID:         d.EventID,
		ProjectID:  ep.ProjectID,
		EndpointID: d.EndpointID,
		EventType:  "invoice.created",
		Payload:    json.RawMessage(`{"amount":100}`),
	}
	return d, ep, evt
}

func TestPushFailed(t *testing.T) {
	svc, store := newService()

	d, ep, evt := failedDelivery()
	if err := svc.PushFailed(ctx(), d, ep, evt, "server error", 500); err != nil {
		t.Fatal(err)
	}

	entries, err := store.ListDLQ(ctx(), dlq.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entry := entries[0]
	if entry.DeliveryID != d.ID {
		t.Fatalf("delivery ID mismatch: got %v, want %v", entry.DeliveryID, d.ID)
	}
	if entry.EventID != d.EventID {
		t.Fatalf("event ID mismatch")
	}
	if entry.EndpointID != d.EndpointID {
		t.Fatalf("endpoint ID mismatch")
	}
	if entry.ProjectID != ep.ProjectID {
		t.Fatalf("project ID mismatch")
	}
	if entry.EventType != "invoice.created" {
		t.Fatalf("event type: got %q, want %q", entry.EventType, "invoice.created")
	}
	if entry.DestinationURL != "https://example.com/webhook" {
		t.Fatalf("destination URL mismatch")
	}
	if entry.Error != "server error" {
		t.Fatalf("error: got %q, want %q", entry.Error, "server error")
	}
	if entry.AttemptCount != 5 {
		t.Fatalf("attempt count: got %d, want 5", entry.AttemptCount)
	}
	if entry.LastStatusCode != 500 {
		t.Fatalf("status code: got %d, want 500", entry.LastStatusCode)
	}
	if entry.FailedAt.IsZero() {
		t.Fatal("expected failed_at to be set")
	}
}

func TestPushMultipleAndList(t *testing.T) {
	svc, _ := newService()

	for range 3 {
		d, ep, evt := failedDelivery()
		if err := svc.PushFailed(ctx(), d, ep, evt, "err", 500); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := svc.List(ctx(), dlq.ListOpts{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestGetDLQEntry(t *testing.T) {
	svc, _ := newService()

	d, ep, evt := failedDelivery()
	if err := svc.PushFailed(ctx(), d, ep, evt, "err", 500); err != nil {
		t.Fatal(err)
	}

	entries, _ := svc.List(ctx(), dlq.ListOpts{Limit: 1})
	if len(entries) == 0 {
		t.Fatal("expected at least 1 entry")
	}

	got, err := svc.Get(ctx(), entries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != entries[0].ID {
		t.Fatal("ID mismatch on Get")
	}
}

func TestCount(t *testing.T) {
	svc, _ := newService()

	count, err := svc.Count(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}

	for range 5 {
		d, ep, evt := failedDelivery()
		svc.PushFailed(ctx(), d, ep, evt, "err", 500)
	}

	count, err = svc.Count(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Fatalf("expected 5, got %d", count)
	}
}

func TestReplayResetsDeliveryAndKeepsEntry(t *testing.T) {
	svc, store := newService()

	d, ep, evt := failedDelivery()
	if err := store.Enqueue(ctx(), d); err != nil {
		t.Fatal(err)
	}
	svc.PushFailed(ctx(), d, ep, evt, "err", 500)

	entries, _ := svc.List(ctx(), dlq.ListOpts{Limit: 1})
	if len(entries) == 0 {
		t.Fatal("expected entry")
	}

	if err := svc.Replay(ctx(), entries[0].ID); err != nil {
		t.Fatal(err)
	}

	// The entry stays, marked replayed.
	got, err := svc.Get(ctx(), entries[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReplayedAt == nil {
		t.Fatal("expected replayed_at to be set")
	}

	// The delivery is reset in place.
	replayed, err := store.GetDelivery(ctx(), d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if replayed.State != delivery.StatePending {
		t.Fatalf("state: got %q, want pending", replayed.State)
	}
	if replayed.AttemptCount != 0 {
		t.Fatalf("attempt count: got %d, want 0", replayed.AttemptCount)
	}
	if replayed.CompletedAt != nil {
		t.Fatal("expected completed_at to be cleared")
	}
}

func TestReplayBulkSkipsReplayed(t *testing.T) {
	svc, store := newService()

	for range 3 {
		d, ep, evt := failedDelivery()
		if err := store.Enqueue(ctx(), d); err != nil {
			t.Fatal(err)
		}
		svc.PushFailed(ctx(), d, ep, evt, "err", 500)
	}

	entries, _ := svc.List(ctx(), dlq.ListOpts{Limit: 10})
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Replay one entry individually; bulk replay must skip it.
	if err := svc.Replay(ctx(), entries[0].ID); err != nil {
		t.Fatal(err)
	}

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	replayed, err := svc.ReplayBulk(ctx(), from, to)
	if err != nil {
		t.Fatal(err)
	}
	if replayed != 2 {
		t.Fatalf("expected 2 replayed, got %d", replayed)
	}

	// All entries remain as failure records.
	count, _ := svc.Count(ctx())
	if count != 3 {
		t.Fatalf("expected 3 entries after replay, got %d", count)
	}
}

func TestPurge(t *testing.T) {
	svc, _ := newService()

	for range 3 {
		d, ep, evt := failedDelivery()
		svc.PushFailed(ctx(), d, ep, evt, "err", 500)
	}

	purged, err := svc.Purge(ctx(), time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 3 {
		t.Fatalf("expected 3 purged, got %d", purged)
	}

	count, _ := svc.Count(ctx())
	if count != 0 {
		t.Fatalf("expected 0 after purge, got %d", count)
	}
}
