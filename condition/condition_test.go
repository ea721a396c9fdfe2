package condition_test

import (
	"encoding/json"
	"testing"

	"github.com/hookline/hookline/condition"
)

func doc() condition.Document {
	return condition.Document{
		EventType: "order.created",
		Payload: map[string]any{
			"amount": float64(4200),
			"user": map[string]any{
				"name": "Ann",
				"plan": "pro",
			},
			"tags": []any{"eu", "priority"},
		},
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Source":     "shop",
		},
	}
}

func TestEvaluateEmptyListAlwaysMatches(t *testing.T) {
	if !condition.Evaluate(nil, doc()) {
		t.Error("empty condition list should match")
	}
}

func TestEqualsOnPayloadPath(t *testing.T) {
	conds := []condition.Condition{
		{Field: "user.plan", Operator: condition.OpEquals, Value: "pro"},
	}
	if !condition.Evaluate(conds, doc()) {
		t.Error("expected match on user.plan == pro")
	}

	conds[0].Value = "free"
	if condition.Evaluate(conds, doc()) {
		t.Error("expected no match on user.plan == free")
	}
}

func TestEqualsNumericComparesAcrossTypes(t *testing.T) {
	// JSON decodes numbers to float64; condition values may arrive as int.
	conds := []condition.Condition{
		{Field: "amount", Operator: condition.OpEquals, Value: 4200},
	}
	if !condition.Evaluate(conds, doc()) {
		t.Error("expected 4200 (int) to equal 4200 (float64)")
	}
}

func TestEqualsOnObjectValue(t *testing.T) {
	// Condition values arrive from tenant JSON and may be objects or arrays;
	// matching one against a payload object must compare, not panic.
	var c condition.Condition
	raw := `{"field":"user","operator":"equals","value":{"name":"Ann","plan":"pro"}}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal condition: %v", err)
	}
	if !condition.Matches(c, doc()) {
		t.Error("expected object value to equal the payload object")
	}

	c.Value = map[string]any{"name": "Bob"}
	if condition.Matches(c, doc()) {
		t.Error("expected mismatched object value not to match")
	}
}

func TestContainsOnArrayOfObjects(t *testing.T) {
	d := doc()
	d.Payload["items"] = []any{
		map[string]any{"sku": "a-1"},
		map[string]any{"sku": "b-2"},
	}
	c := condition.Condition{
		Field:    "items",
		Operator: condition.OpContains,
		Value:    map[string]any{"sku": "b-2"},
	}
	if !condition.Matches(c, d) {
		t.Error("expected membership match on array of objects")
	}
}

func TestNotEqualsOnMissingField(t *testing.T) {
	conds := []condition.Condition{
		{Field: "missing.path", Operator: condition.OpNotEquals, Value: "x"},
	}
	if !condition.Evaluate(conds, doc()) {
		t.Error("not_equals should match when the field is absent")
	}
}

func TestContainsStringAndArray(t *testing.T) {
	cases := []struct {
		field string
		value any
		want  bool
	}{
		{"user.name", "An", true},
		{"user.name", "zz", false},
		{"tags", "priority", true},
		{"tags", "us", false},
	}
	for _, tc := range cases {
		c := condition.Condition{Field: tc.field, Operator: condition.OpContains, Value: tc.value}
		if got := condition.Matches(c, doc()); got != tc.want {
			t.Errorf("contains %s %v = %v, want %v", tc.field, tc.value, got, tc.want)
		}
	}
}

func TestExistsAndNotExists(t *testing.T) {
	if !condition.Matches(condition.Condition{Field: "user.name", Operator: condition.OpExists}, doc()) {
		t.Error("user.name should exist")
	}
	if !condition.Matches(condition.Condition{Field: "user.email", Operator: condition.OpNotExists}, doc()) {
		t.Error("user.email should not exist")
	}
}

func TestHeaderFieldIsCaseInsensitive(t *testing.T) {
	conds := []condition.Condition{
		{Field: "headers.x-source", Operator: condition.OpEquals, Value: "shop"},
	}
	if !condition.Evaluate(conds, doc()) {
		t.Error("header lookup should canonicalize the name")
	}
}

func TestEventTypeField(t *testing.T) {
	conds := []condition.Condition{
		{Field: "event_type", Operator: condition.OpContains, Value: "order"},
	}
	if !condition.Evaluate(conds, doc()) {
		t.Error("event_type contains order should match")
	}
}

func TestAndSemantics(t *testing.T) {
	conds := []condition.Condition{
		{Field: "user.plan", Operator: condition.OpEquals, Value: "pro"},
		{Field: "user.email", Operator: condition.OpExists},
	}
	if condition.Evaluate(conds, doc()) {
		t.Error("one failing condition must fail the whole list")
	}
}

func TestLookup(t *testing.T) {
	payload := doc().Payload

	if v, ok := condition.Lookup(payload, "user.name"); !ok || v != "Ann" {
		t.Errorf("Lookup(user.name) = %v, %v", v, ok)
	}
	if _, ok := condition.Lookup(payload, "user.name.first"); ok {
		t.Error("descending into a string should fail")
	}
	if _, ok := condition.Lookup(payload, ""); ok {
		t.Error("empty path should fail")
	}
}
