package routing_test

import (
	"context"
	"sort"
	"testing"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/endpoint"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
	"github.com/hookline/hookline/routing"
)

// stubStore serves a fixed rule set ordered by priority.
type stubStore struct {
	rules []*routing.Rule
}

func (s *stubStore) CreateRule(context.Context, *routing.Rule) error       { return nil }
func (s *stubStore) GetRule(context.Context, id.ID) (*routing.Rule, error) { return nil, nil }
func (s *stubStore) UpdateRule(context.Context, *routing.Rule) error       { return nil }
func (s *stubStore) DeleteRule(context.Context, id.ID) error               { return nil }

func (s *stubStore) ListRules(context.Context, id.ID) ([]*routing.Rule, error) {
	sorted := make([]*routing.Rule, len(s.rules))
	copy(sorted, s.rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted, nil
}

func testEndpoint() *endpoint.Endpoint {
	return &endpoint.Endpoint{
		Entity:          entity.New(),
		ID:              id.NewEndpointID(),
		DestinationURLs: []string{"https://default-a.example", "https://default-b.example"},
		Enabled:         true,
	}
}

func rule(name string, priority int, action routing.Action, conds []condition.Condition, dests ...routing.Destination) *routing.Rule {
	return &routing.Rule{
		Entity:       entity.New(),
		ID:           id.NewRuleID(),
		Name:         name,
		Priority:     priority,
		Action:       action,
		Conditions:   conds,
		Destinations: dests,
		Enabled:      true,
	}
}

func orderDoc(plan string) condition.Document {
	return condition.Document{
		EventType: "order.created",
		Payload:   map[string]any{"plan": plan},
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	proCond := []condition.Condition{{Field: "plan", Operator: condition.OpEquals, Value: "pro"}}

	store := &stubStore{rules: []*routing.Rule{
		rule("second", 20, routing.ActionRoute, proCond, routing.Destination{URL: "https://late.example"}),
		rule("first", 10, routing.ActionRoute, proCond, routing.Destination{URL: "https://early.example"}),
	}}

	engine := routing.NewEngine(store, nil)
	res, err := engine.Resolve(context.Background(), testEndpoint(), orderDoc("pro"))
	if err != nil {
		t.Fatal(err)
	}

	if res.Dropped {
		t.Fatal("should not drop")
	}
	if len(res.Destinations) != 1 || res.Destinations[0].URL != "https://early.example" {
		t.Errorf("lowest-priority matching rule must win, got %+v", res.Destinations)
	}
}

func TestResolveDropStopsProcessing(t *testing.T) {
	store := &stubStore{rules: []*routing.Rule{
		rule("drop-free", 1, routing.ActionDrop,
			[]condition.Condition{{Field: "plan", Operator: condition.OpEquals, Value: "free"}}),
		rule("catch-all", 2, routing.ActionRoute, nil, routing.Destination{URL: "https://all.example"}),
	}}

	engine := routing.NewEngine(store, nil)
	res, err := engine.Resolve(context.Background(), testEndpoint(), orderDoc("free"))
	if err != nil {
		t.Fatal(err)
	}

	if !res.Dropped {
		t.Error("drop rule should win")
	}
	if len(res.Destinations) != 0 {
		t.Error("dropped resolution must carry no destinations")
	}
}

func TestResolveEmptyConditionsCatchAll(t *testing.T) {
	store := &stubStore{rules: []*routing.Rule{
		rule("catch-all", 100, routing.ActionRoute, nil, routing.Destination{URL: "https://fallback.example"}),
	}}

	engine := routing.NewEngine(store, nil)
	res, err := engine.Resolve(context.Background(), testEndpoint(), orderDoc("anything"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Dropped || len(res.Destinations) != 1 || res.Destinations[0].URL != "https://fallback.example" {
		t.Errorf("empty condition list must always match, got %+v", res)
	}
}

func TestResolveFallsBackToEndpointDefaults(t *testing.T) {
	store := &stubStore{rules: []*routing.Rule{
		rule("pro-only", 1, routing.ActionRoute,
			[]condition.Condition{{Field: "plan", Operator: condition.OpEquals, Value: "pro"}},
			routing.Destination{URL: "https://pro.example"}),
	}}

	engine := routing.NewEngine(store, nil)
	res, err := engine.Resolve(context.Background(), testEndpoint(), orderDoc("free"))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"https://default-a.example", "https://default-b.example"}
	if len(res.Destinations) != len(want) {
		t.Fatalf("got %d destinations, want %d", len(res.Destinations), len(want))
	}
	for i, d := range res.Destinations {
		if d.URL != want[i] || d.Priority != 0 {
			t.Errorf("destination %d = %+v, want %s at priority 0", i, d, want[i])
		}
	}
}

func TestResolveSkipsDisabledRules(t *testing.T) {
	disabled := rule("disabled-drop", 1, routing.ActionDrop, nil)
	disabled.Enabled = false

	store := &stubStore{rules: []*routing.Rule{
		disabled,
		rule("active", 2, routing.ActionRoute, nil, routing.Destination{URL: "https://active.example"}),
	}}

	engine := routing.NewEngine(store, nil)
	res, err := engine.Resolve(context.Background(), testEndpoint(), orderDoc("pro"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Dropped {
		t.Error("disabled rule must be skipped")
	}
	if len(res.Destinations) != 1 || res.Destinations[0].URL != "https://active.example" {
		t.Errorf("got %+v", res.Destinations)
	}
}

func TestResolveOrdersRuleDestinationsByPriority(t *testing.T) {
	store := &stubStore{rules: []*routing.Rule{
		rule("multi", 1, routing.ActionRoute, nil,
			routing.Destination{URL: "https://second.example", Priority: 2},
			routing.Destination{URL: "https://first.example", Priority: 1},
		),
	}}

	engine := routing.NewEngine(store, nil)
	res, err := engine.Resolve(context.Background(), testEndpoint(), orderDoc("pro"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Destinations[0].URL != "https://first.example" {
		t.Errorf("destinations must be sorted by ascending priority, got %+v", res.Destinations)
	}
}
