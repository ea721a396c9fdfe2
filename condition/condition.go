// Package condition implements the condition grammar shared by routing rules
// and payload transformations.
//
// A condition matches one field of an event document against a value. Fields
// resolve in three namespaces:
//
//	"event_type"   → the event type string
//	"headers.X"    → a captured inbound header (case-insensitive)
//	anything else  → a dot-path into the event payload
//
// A condition list is evaluated with AND semantics; an empty list always
// matches, which rules use to build catch-all defaults.
package condition

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// Operator compares a resolved field value against the condition value.
type Operator string

// Supported operators.
const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpContains  Operator = "contains"
	OpExists    Operator = "exists"
	OpNotExists Operator = "not_exists"
)

// ValidOperator reports whether op is a known operator.
func ValidOperator(op Operator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpExists, OpNotExists:
		return true
	}
	return false
}

// Condition is one field/operator/value matcher.
type Condition struct {
	// Field selects what to match: "event_type", "headers.<Name>", or a
	// dot-path into the payload (e.g. "user.plan").
	Field string `json:"field"`

	// Operator is the comparison to apply.
	Operator Operator `json:"operator"`

	// Value is the right-hand side. Ignored by exists/not_exists.
	Value any `json:"value,omitempty"`
}

// Document is the evaluation context assembled from one event.
type Document struct {
	// EventType is the event's type string.
	EventType string

	// Payload is the decoded event payload.
	Payload map[string]any

	// Headers are the captured inbound headers, canonical-key form.
	Headers map[string]string
}

const headersPrefix = "headers."

// Resolve returns the value the field refers to and whether it is present.
func (d Document) Resolve(field string) (any, bool) {
	if field == "event_type" {
		return d.EventType, d.EventType != ""
	}

	if name, ok := strings.CutPrefix(field, headersPrefix); ok {
		v, present := d.Headers[http.CanonicalHeaderKey(name)]
		return v, present
	}

	return Lookup(d.Payload, field)
}

// Evaluate reports whether every condition in conds matches the document.
// An empty condition list always matches.
func Evaluate(conds []Condition, doc Document) bool {
	for _, c := range conds {
		if !Matches(c, doc) {
			return false
		}
	}
	return true
}

// Matches reports whether a single condition matches the document.
func Matches(c Condition, doc Document) bool {
	val, present := doc.Resolve(c.Field)

	switch c.Operator {
	case OpExists:
		return present
	case OpNotExists:
		return !present
	case OpEquals:
		return present && equal(val, c.Value)
	case OpNotEquals:
		// Absent fields are not equal to anything.
		return !present || !equal(val, c.Value)
	case OpContains:
		return present && contains(val, c.Value)
	}

	return false
}

// equal compares a resolved payload value with a condition value. Values
// come from decoded JSON, so either side may be a map or slice; DeepEqual
// keeps uncomparable types from panicking. JSON decoding yields float64 for
// all numbers, so mixed numeric/string comparisons fall back to the string
// forms.
func equal(got, want any) bool {
	if reflect.DeepEqual(got, want) {
		return true
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

// contains handles substring matching for strings and membership for arrays.
func contains(got, want any) bool {
	switch v := got.(type) {
	case string:
		return strings.Contains(v, fmt.Sprint(want))
	case []any:
		for _, item := range v {
			if equal(item, want) {
				return true
			}
		}
		return false
	}
	return false
}

// Lookup resolves a dot-path (e.g. "user.address.city") in a decoded JSON
// document. Returns the value and whether the full path was present.
func Lookup(doc map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current any = doc

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
