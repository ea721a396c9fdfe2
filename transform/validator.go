package transform

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Per-type schemas reject malformed transformation rules at write time
// rather than at delivery time.
var ruleSchemaJSON = map[Type]string{
	TypeFieldMapping: `{
		"type": "object",
		"properties": {
			"mappings": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"source": {"type": "string", "minLength": 1},
						"target": {"type": "string", "minLength": 1}
					},
					"required": ["source", "target"],
					"additionalProperties": false
				}
			},
			"merge_with_original": {"type": "boolean"}
		},
		"required": ["mappings"],
		"additionalProperties": false
	}`,
	TypeTemplate: `{
		"type": "object",
		"properties": {
			"template": {"type": "string", "minLength": 1}
		},
		"required": ["template"],
		"additionalProperties": false
	}`,
	TypeJavaScript: `{
		"type": "object",
		"properties": {
			"script": {"type": "string", "minLength": 1}
		},
		"required": ["script"],
		"additionalProperties": false
	}`,
	TypeJQ: `{
		"type": "object",
		"properties": {
			"filter": {"type": "string", "minLength": 1}
		},
		"required": ["filter"],
		"additionalProperties": false
	}`,
}

var (
	ruleSchemaOnce sync.Once
	ruleSchemas    map[Type]*jsonschema.Schema
	ruleSchemaErr  error
)

func compiledRuleSchemas() (map[Type]*jsonschema.Schema, error) {
	ruleSchemaOnce.Do(func() {
		compiled := make(map[Type]*jsonschema.Schema, len(ruleSchemaJSON))
		c := jsonschema.NewCompiler()
		for typ, src := range ruleSchemaJSON {
			var doc any
			if err := json.Unmarshal([]byte(src), &doc); err != nil {
				ruleSchemaErr = err
				return
			}
			url := fmt.Sprintf("hookline://schema/transformation/%s", typ)
			if err := c.AddResource(url, doc); err != nil {
				ruleSchemaErr = err
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				ruleSchemaErr = err
				return
			}
			compiled[typ] = s
		}
		ruleSchemas = compiled
	})
	return ruleSchemas, ruleSchemaErr
}

// ValidateRules checks a transformation_rules blob against the schema for its
// type.
func ValidateRules(typ Type, raw json.RawMessage) error {
	if !ValidType(typ) {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown transformation type %q", typ)}
	}

	schemas, err := compiledRuleSchemas()
	if err != nil {
		return fmt.Errorf("compile transformation schemas: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &ValidationError{Field: "transformation_rules", Message: "invalid JSON"}
	}
	if err := schemas[typ].Validate(doc); err != nil {
		return &ValidationError{Field: "transformation_rules", Message: err.Error()}
	}
	return nil
}
