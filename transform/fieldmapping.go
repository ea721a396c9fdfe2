package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hookline/hookline/condition"
)

type fieldMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type fieldMappingRules struct {
	Mappings          []fieldMapping `json:"mappings"`
	MergeWithOriginal bool           `json:"merge_with_original"`
}

// applyFieldMapping copies values between dot-paths. Sources are always read
// from the original payload, so mappings never observe each other's writes.
// With merge_with_original the output starts as a copy of the input; otherwise
// it starts empty and carries only the mapped fields.
func applyFieldMapping(raw json.RawMessage, payload map[string]any) (map[string]any, error) {
	var rules fieldMappingRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("decode field_mapping rules: %w", err)
	}

	out := map[string]any{}
	if rules.MergeWithOriginal {
		out = deepCopy(payload)
	}

	for _, m := range rules.Mappings {
		val, ok := condition.Lookup(payload, m.Source)
		if !ok {
			continue
		}
		setPath(out, m.Target, val)
	}
	return out, nil
}

// setPath writes val at a dot-path, creating intermediate objects as needed.
// A non-object value in the middle of the path is replaced with an object.
func setPath(doc map[string]any, path string, val any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = val
}

// deepCopy clones a decoded-JSON document so transformations never mutate the
// original payload.
func deepCopy(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
