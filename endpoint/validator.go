package endpoint

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// retrySchemaJSON rejects malformed tenant retry policy at write time rather
// than at delivery time.
const retrySchemaJSON = `{
	"type": "object",
	"properties": {
		"max_attempts":       {"type": "integer", "minimum": 1, "maximum": 20},
		"retry_delay":        {"type": "number", "minimum": 0, "maximum": 86400},
		"backoff_multiplier": {"type": "number", "minimum": 1, "maximum": 100}
	},
	"additionalProperties": false
}`

var (
	retrySchemaOnce sync.Once
	retrySchema     *jsonschema.Schema
	retrySchemaErr  error
)

func compiledRetrySchema() (*jsonschema.Schema, error) {
	retrySchemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(retrySchemaJSON), &doc); err != nil {
			retrySchemaErr = err
			return
		}

		const url = "hookline://schema/retry_config"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, doc); err != nil {
			retrySchemaErr = err
			return
		}
		retrySchema, retrySchemaErr = c.Compile(url)
	})
	return retrySchema, retrySchemaErr
}

// ParseRetryConfig validates a tenant-supplied retry blob against the schema
// and decodes it, filling unset fields from the default policy.
func ParseRetryConfig(raw json.RawMessage) (RetryConfig, error) {
	cfg := DefaultRetryConfig()
	if len(raw) == 0 {
		return cfg, nil
	}

	schema, err := compiledRetrySchema()
	if err != nil {
		return cfg, fmt.Errorf("compile retry schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return cfg, &ValidationError{Field: "retry_config", Message: "invalid JSON"}
	}
	if err := schema.Validate(doc); err != nil {
		return cfg, &ValidationError{Field: "retry_config", Message: err.Error()}
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, &ValidationError{Field: "retry_config", Message: "invalid JSON"}
	}
	return cfg, nil
}
