package jsonx

import (
	"reflect"
	"testing"
)

func TestWithoutNullFields(t *testing.T) {
	in := map[string]any{
		"keep": "v",
		"drop": nil,
		"nested": map[string]any{
			"inner": nil,
			"ok":    float64(1),
		},
		"list": []any{nil, "a", map[string]any{"gone": nil, "kept": true}},
	}

	got := WithoutNullFields(in).(map[string]any)

	if _, exists := got["drop"]; exists {
		t.Fatalf("null field survived: %v", got)
	}
	nested := got["nested"].(map[string]any)
	if _, exists := nested["inner"]; exists {
		t.Fatalf("nested null field survived: %v", nested)
	}
	list := got["list"].([]any)
	if list[0] != nil {
		t.Fatalf("array null should be preserved, got %v", list[0])
	}
	item := list[2].(map[string]any)
	if _, exists := item["gone"]; exists {
		t.Fatalf("null field inside array element survived: %v", item)
	}

	// Input untouched.
	if _, exists := in["drop"]; !exists {
		t.Fatalf("input was mutated")
	}

	again := WithoutNullFields(got)
	if !reflect.DeepEqual(again, got) {
		t.Fatalf("transform is not idempotent: %v vs %v", again, got)
	}
}

func TestWithoutNullFieldsScalars(t *testing.T) {
	if got := WithoutNullFields("text"); got != "text" {
		t.Fatalf("got %v", got)
	}
	if got := WithoutNullFields(nil); got != nil {
		t.Fatalf("got %v", got)
	}
}

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"a": "base",
		"obj": map[string]any{
			"x": float64(1),
			"y": float64(2),
		},
	}
	overlay := map[string]any{
		"a": "overlay",
		"obj": map[string]any{
			"y": float64(3),
			"z": float64(4),
		},
		"new": true,
	}

	got := DeepMerge(base, overlay).(map[string]any)

	want := map[string]any{
		"a": "overlay",
		"obj": map[string]any{
			"x": float64(1),
			"y": float64(3),
			"z": float64(4),
		},
		"new": true,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if base["a"] != "base" || base["obj"].(map[string]any)["y"] != float64(2) {
		t.Fatalf("base was mutated: %v", base)
	}
}

func TestDeepMergeNonObjectReplaces(t *testing.T) {
	if got := DeepMerge(map[string]any{"k": 1}, "scalar"); got != "scalar" {
		t.Fatalf("got %v", got)
	}
	got := DeepMerge(map[string]any{"k": map[string]any{"a": 1}}, map[string]any{"k": "flat"}).(map[string]any)
	if got["k"] != "flat" {
		t.Fatalf("object should be replaced by scalar overlay, got %v", got["k"])
	}
}

func TestDeepMergeResultIsDetached(t *testing.T) {
	overlay := map[string]any{"obj": map[string]any{"k": "v"}}
	got := DeepMerge(map[string]any{}, overlay).(map[string]any)
	got["obj"].(map[string]any)["k"] = "changed"
	if overlay["obj"].(map[string]any)["k"] != "v" {
		t.Fatalf("overlay shares memory with result")
	}
}

func TestMergeWithDisallow(t *testing.T) {
	body := map[string]any{
		"model":  "gpt-4o",
		"nested": map[string]any{"keep": true},
	}
	overlay := map[string]any{
		"model":       "injected",
		"temperature": 0.5,
		"nested":      map[string]any{"extra": "x"},
	}

	MergeWithDisallow(body, overlay, []string{"model", "prompt"})

	if body["model"] != "gpt-4o" {
		t.Fatalf("disallowed key was overridden: %v", body["model"])
	}
	if body["temperature"] != 0.5 {
		t.Fatalf("overlay key missing: %v", body)
	}
	nested := body["nested"].(map[string]any)
	if nested["keep"] != true || nested["extra"] != "x" {
		t.Fatalf("nested merge wrong: %v", nested)
	}
}

func TestParse(t *testing.T) {
	v, ok := Parse(`  {"a": 1}  `)
	if !ok {
		t.Fatalf("expected valid parse")
	}
	if v.(map[string]any)["a"] != float64(1) {
		t.Fatalf("got %v", v)
	}

	if _, ok := Parse(""); ok {
		t.Fatalf("empty string should not parse")
	}
	if _, ok := Parse("   "); ok {
		t.Fatalf("whitespace should not parse")
	}
	if _, ok := Parse(`{"truncated":`); ok {
		t.Fatalf("partial document should not parse")
	}

	v, ok = Parse("null")
	if !ok || v != nil {
		t.Fatalf("null should parse to nil, got %v ok=%v", v, ok)
	}
}
