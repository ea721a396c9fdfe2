// Package transform rewrites inbound payloads before delivery. Each endpoint
// carries an ordered list of transformations; the pipeline applies the ones
// whose conditions match the original payload, accumulating changes so later
// transformations see the output of earlier ones.
package transform

import (
	"encoding/json"

	"github.com/hookline/hookline/condition"
	"github.com/hookline/hookline/id"
	"github.com/hookline/hookline/internal/entity"
)

// Type selects the rewrite strategy a transformation uses.
type Type string

const (
	TypeFieldMapping Type = "field_mapping"
	TypeTemplate     Type = "template"
	TypeJavaScript   Type = "javascript"
	TypeJQ           Type = "jq"
)

// ValidType reports whether t is a known transformation type.
func ValidType(t Type) bool {
	switch t {
	case TypeFieldMapping, TypeTemplate, TypeJavaScript, TypeJQ:
		return true
	}
	return false
}

// Transformation is a single conditional payload rewrite step owned by an
// endpoint. Rules holds the type-specific configuration, validated against a
// per-type schema at write time.
type Transformation struct {
	entity.Entity

	ID         id.ID                 `json:"id"`
	EndpointID id.ID                 `json:"endpoint_id"`
	Name       string                `json:"name"`
	Type       Type                  `json:"type"`
	Rules      json.RawMessage       `json:"transformation_rules"`
	Conditions []condition.Condition `json:"conditions,omitempty"`

	// Priority orders application within an endpoint. Lower applies first.
	Priority int `json:"priority"`

	Enabled bool `json:"enabled"`
}
