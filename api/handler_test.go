package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/api"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/project"
	"github.com/hookline/hookline/store/memory"
)

// testServer creates a Handler backed by a memory store plus one
// authenticated project, and returns the server, gateway, and API key.
func testServer(t *testing.T) (*httptest.Server, *hookline.Gateway, string) {
	t.Helper()

	s := memory.New()
	gw, err := hookline.New(hookline.WithStore(s))
	if err != nil {
		t.Fatal(err)
	}

	p, err := gw.Projects().Create(context.Background(), project.Input{Name: "Acme"})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(api.NewHandler(gw, nil))
	t.Cleanup(srv.Close)
	return srv, gw, p.APIKey
}

func doJSON(t *testing.T, method, url, apiKey string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func createEndpoint(t *testing.T, srv *httptest.Server, apiKey string) map[string]any {
	t.Helper()
	resp := doJSON(t, "POST", srv.URL+"/endpoints", apiKey, map[string]any{
		"name":             "Orders",
		"url_path":         "orders",
		"destination_urls": []string{"https://example.com/hook"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create endpoint: expected 201, got %d", resp.StatusCode)
	}
	var ep map[string]any
	decodeBody(t, resp, &ep)
	return ep
}

// --- Auth ---

func TestRequiresAPIKey(t *testing.T) {
	srv, _, _ := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/endpoints", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/endpoints", "sk_bogus", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad key, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Projects ---

func TestProjectBootstrapAndRotate(t *testing.T) {
	srv, _, _ := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/projects", "", map[string]any{"name": "Beta Corp"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	decodeBody(t, resp, &created)
	key, _ := created["api_key"].(string)
	if key == "" {
		t.Fatal("expected api_key in bootstrap response")
	}

	// The returned key authenticates.
	resp = doJSON(t, "GET", srv.URL+"/project", key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var proj map[string]any
	decodeBody(t, resp, &proj)
	if proj["name"] != "Beta Corp" {
		t.Fatalf("expected own project, got %v", proj["name"])
	}

	// Rotation invalidates the old key.
	resp = doJSON(t, "POST", srv.URL+"/project/rotate-key", key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rotate: expected 200, got %d", resp.StatusCode)
	}
	var rotated map[string]string
	decodeBody(t, resp, &rotated)
	if rotated["api_key"] == "" || rotated["api_key"] == key {
		t.Fatal("expected a fresh api key")
	}

	resp = doJSON(t, "GET", srv.URL+"/project", key, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected old key rejected, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Endpoints ---

func TestEndpoints_CRUD(t *testing.T) {
	srv, _, key := testServer(t)

	ep := createEndpoint(t, srv, key)
	if ep["auth_secret"] != nil {
		t.Fatal("auth_secret must not be serialized")
	}
	epID, _ := ep["id"].(string)
	if epID == "" {
		t.Fatal("expected endpoint id")
	}
	if short, _ := ep["short_url"].(string); len(short) != 8 {
		t.Fatalf("expected 8-character short_url, got %q", short)
	}

	// Get
	resp := doJSON(t, "GET", srv.URL+"/endpoints/"+epID, key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Update
	resp = doJSON(t, "PUT", srv.URL+"/endpoints/"+epID, key, map[string]any{
		"name":             "Orders v2",
		"destination_urls": []string{"https://example.com/v2"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["name"] != "Orders v2" {
		t.Fatalf("expected updated name, got %v", updated["name"])
	}

	// Disable
	resp = doJSON(t, "PATCH", srv.URL+"/endpoints/"+epID+"/disable", key, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("disable: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/endpoints/"+epID, key, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID, key, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEndpointProjectIsolation(t *testing.T) {
	srv, _, key := testServer(t)
	ep := createEndpoint(t, srv, key)
	epID, _ := ep["id"].(string)

	// A second project must not see the first project's endpoint.
	resp := doJSON(t, "POST", srv.URL+"/projects", "", map[string]any{"name": "Other"})
	var other map[string]any
	decodeBody(t, resp, &other)
	otherKey, _ := other["api_key"].(string)

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID, otherKey, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 across projects, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRotateSecret(t *testing.T) {
	srv, _, key := testServer(t)
	ep := createEndpoint(t, srv, key)
	epID, _ := ep["id"].(string)

	resp := doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/rotate-secret", key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	decodeBody(t, resp, &out)
	if out["secret"] == "" {
		t.Fatal("expected a new secret")
	}
}

// --- Rules ---

func TestRules_CRUD(t *testing.T) {
	srv, _, key := testServer(t)
	ep := createEndpoint(t, srv, key)
	epID, _ := ep["id"].(string)

	resp := doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/rules", key, map[string]any{
		"name":     "route big orders",
		"action":   "route",
		"priority": 1,
		"conditions": []map[string]any{
			{"field": "amount", "operator": "greater_than", "value": 100},
		},
		"destinations": []map[string]any{
			{"url": "https://big.example.com/hook", "priority": 0},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create rule: expected 201, got %d", resp.StatusCode)
	}
	var rule map[string]any
	decodeBody(t, resp, &rule)
	ruleID, _ := rule["id"].(string)

	// Drop rules shed their destinations.
	resp = doJSON(t, "PUT", srv.URL+"/rules/"+ruleID, key, map[string]any{
		"name":   "drop tests",
		"action": "drop",
		"conditions": []map[string]any{
			{"field": "mode", "operator": "equals", "value": "test"},
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update rule: expected 200, got %d", resp.StatusCode)
	}
	var updated map[string]any
	decodeBody(t, resp, &updated)
	if updated["destinations"] != nil {
		t.Fatalf("expected drop rule without destinations, got %v", updated["destinations"])
	}

	resp = doJSON(t, "GET", srv.URL+"/endpoints/"+epID+"/rules", key, nil)
	var rules []map[string]any
	decodeBody(t, resp, &rules)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}

	resp = doJSON(t, "DELETE", srv.URL+"/rules/"+ruleID, key, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete rule: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Transformations ---

func TestTransformations_ValidationAndCRUD(t *testing.T) {
	srv, _, key := testServer(t)
	ep := createEndpoint(t, srv, key)
	epID, _ := ep["id"].(string)

	// Schema-invalid rules rejected at write time.
	resp := doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/transformations", key, map[string]any{
		"name":                 "bad",
		"type":                 "field_mapping",
		"transformation_rules": map[string]any{"mappings": []any{}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid rules, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/endpoints/"+epID+"/transformations", key, map[string]any{
		"name": "map order id",
		"type": "field_mapping",
		"transformation_rules": map[string]any{
			"mappings":            []map[string]any{{"source": "order_id", "target": "id"}},
			"merge_with_original": true,
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create transformation: expected 201, got %d", resp.StatusCode)
	}
	var tf map[string]any
	decodeBody(t, resp, &tf)
	tfID, _ := tf["id"].(string)

	resp = doJSON(t, "PATCH", srv.URL+"/transformations/"+tfID+"/disable", key, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("disable: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Events ---

func TestEventsAndReplay(t *testing.T) {
	srv, gw, key := testServer(t)
	createEndpoint(t, srv, key)

	evt, err := gw.IngestByURLPath(context.Background(), "orders", hookline.IngestRequest{
		Body: []byte(`{"event_type":"order.created","amount":10}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	// List includes the event.
	resp := doJSON(t, "GET", srv.URL+"/events", key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var events []map[string]any
	decodeBody(t, resp, &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	evtID := evt.ID.String()

	// Replay of an in-flight event conflicts.
	resp = doJSON(t, "POST", srv.URL+"/events/"+evtID+"/replay", key, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for pending event, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Settle it, then replay succeeds.
	evt.Status = event.StatusFailed
	if err := gw.Store().UpdateEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}

	resp = doJSON(t, "POST", srv.URL+"/events/"+evtID+"/replay", key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", resp.StatusCode)
	}
	var replayed map[string]any
	decodeBody(t, resp, &replayed)
	if replayed["status"] != "pending" {
		t.Fatalf("expected pending after replay, got %v", replayed["status"])
	}

	// Replay-as-new creates a linked row.
	evt.Status = event.StatusFailed
	if err := gw.Store().UpdateEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	resp = doJSON(t, "POST", srv.URL+"/events/"+evtID+"/replay-as-new", key, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("replay-as-new: expected 201, got %d", resp.StatusCode)
	}
	var fresh map[string]any
	decodeBody(t, resp, &fresh)
	if fresh["replay_of"] != evtID {
		t.Fatalf("expected replay_of %s, got %v", evtID, fresh["replay_of"])
	}

	// Attempt history endpoint answers even when empty.
	resp = doJSON(t, "GET", srv.URL+"/events/"+evtID+"/attempts", key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("attempts: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Stats ---

func TestStats(t *testing.T) {
	srv, _, key := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/stats", key, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]int64
	decodeBody(t, resp, &stats)
	if stats["pending_deliveries"] != 0 || stats["dlq_size"] != 0 {
		t.Fatalf("expected empty stats, got %v", stats)
	}
}
