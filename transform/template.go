package transform

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hookline/hookline/condition"
)

type templateRules struct {
	Template string `json:"template"`
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// applyTemplate renders the stored template by substituting {{dot.path}}
// placeholders with values looked up in the input payload, then parses the
// result back into a structured payload. String values are inserted verbatim
// so the template controls its own quoting; other values are inserted as
// JSON. A missing path renders as an empty string.
func applyTemplate(raw json.RawMessage, payload map[string]any) (map[string]any, error) {
	var rules templateRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("decode template rules: %w", err)
	}

	rendered := placeholderPattern.ReplaceAllStringFunc(rules.Template, func(match string) string {
		path := strings.TrimSpace(strings.Trim(match, "{}"))
		val, ok := condition.Lookup(payload, path)
		if !ok || val == nil {
			return ""
		}
		if s, ok := val.(string); ok {
			return s
		}
		enc, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(enc)
	})

	var out map[string]any
	if err := json.Unmarshal([]byte(rendered), &out); err != nil {
		return nil, fmt.Errorf("parse rendered template: %w", err)
	}
	return out, nil
}
