// Package jsonx implements the JSON value transforms shared by the request
// builder and the transports: null pruning, deep merging, and loose parsing
// of partial payloads.
package jsonx

import (
	"encoding/json"
	"strings"
)

// WithoutNullFields returns a copy of v with null-valued object fields
// removed, recursively. Null elements inside arrays are preserved so index
// semantics do not shift. The transform is idempotent.
func WithoutNullFields(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if item == nil {
				continue
			}
			out[k] = WithoutNullFields(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			if item == nil {
				out[i] = nil
				continue
			}
			out[i] = WithoutNullFields(item)
		}
		return out
	default:
		return v
	}
}

// DeepMerge merges overlay into base and returns the result. When both
// sides are objects their keys merge recursively; otherwise the overlay
// value replaces the base value. Inputs are not mutated.
func DeepMerge(base, overlay any) any {
	bm, bok := base.(map[string]any)
	om, ook := overlay.(map[string]any)
	if !bok || !ook {
		return clone(overlay)
	}
	out := make(map[string]any, len(bm)+len(om))
	for k, v := range bm {
		out[k] = clone(v)
	}
	for k, ov := range om {
		if bv, exists := out[k]; exists {
			out[k] = DeepMerge(bv, ov)
		} else {
			out[k] = clone(ov)
		}
	}
	return out
}

// MergeWithDisallow merges overlay keys into body, skipping any top-level
// key in the disallow list. Nested values deep-merge.
func MergeWithDisallow(body map[string]any, overlay map[string]any, disallow []string) {
	for k, ov := range overlay {
		if contains(disallow, k) {
			continue
		}
		if bv, exists := body[k]; exists {
			body[k] = DeepMerge(bv, ov)
		} else {
			body[k] = clone(ov)
		}
	}
}

// Parse decodes s as JSON, tolerating surrounding whitespace. It reports
// whether s was a complete valid document.
func Parse(s string) (any, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, false
	}
	return v, true
}

func clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = clone(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = clone(item)
		}
		return out
	default:
		return v
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
