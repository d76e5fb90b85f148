package aisdk

import (
	"encoding/json"
	"strings"

	"github.com/octanelabs/aisdk/internal/jsonx"
)

// OptionsHeader is the reserved configuration header whose JSON value
// carries provider-scoped defaults and request-body overrides.
const OptionsHeader = "x-ai-sdk-options"

const internalHeaderPrefix = "x-ai-sdk-"

// IsInternalSDKHeader reports whether name belongs to the reserved internal
// header family. Internal headers are parsed for configuration and must
// never reach the wire.
func IsInternalSDKHeader(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), internalHeaderPrefix)
}

// ExtractOptionsFromHeaders returns the decoded JSON value of the options
// header, if present and valid.
func ExtractOptionsFromHeaders(headers map[string]string) (map[string]any, bool) {
	for k, v := range headers {
		if !strings.EqualFold(k, OptionsHeader) {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, false
		}
		return decoded, true
	}
	return nil, false
}

// ProviderDefaultsFromJSON reads default provider options out of a decoded
// options-header value. Only an object under the exact provider scope is
// accepted; alias scopes are never implicit.
func ProviderDefaultsFromJSON(scope string, raw map[string]any) (ProviderOptions, bool) {
	section, ok := raw[scope].(map[string]any)
	if !ok {
		return nil, false
	}
	return ProviderOptions{scope: section}, true
}

// RequestOverridesFromJSON reads request-body overrides out of a decoded
// options-header value, under the exact provider scope only.
func RequestOverridesFromJSON(scope string, raw map[string]any) (map[string]any, bool) {
	section, ok := raw[scope].(map[string]any)
	if !ok {
		return nil, false
	}
	return section, true
}

// MergeProviderDefaults merges defaults into opts. Existing call-option
// values win on every terminal key; defaults only fill holes. The result is
// a new value; neither input is mutated.
func MergeProviderDefaults(opts ProviderOptions, defaults ProviderOptions) ProviderOptions {
	if len(defaults) == 0 {
		return opts
	}
	out := opts.Clone()
	if out == nil {
		out = ProviderOptions{}
	}
	for scope, defKV := range defaults {
		existing, ok := out[scope]
		if !ok {
			out[scope] = cloneScope(defKV)
			continue
		}
		merged, _ := jsonx.DeepMerge(anyMap(defKV), anyMap(existing)).(map[string]any)
		out[scope] = merged
	}
	return out
}

// MergeRequestOverrides merges overrides into the outgoing request body,
// refusing to override structural keys.
func MergeRequestOverrides(body map[string]any, overrides map[string]any, disallow []string) {
	jsonx.MergeWithDisallow(body, overrides, disallow)
}

// FilterInternalHeaders returns headers with the internal SDK family
// removed, plus the parsed options value if one was present.
func FilterInternalHeaders(headers map[string]string) (map[string]string, map[string]any) {
	raw, _ := ExtractOptionsFromHeaders(headers)
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if IsInternalSDKHeader(k) {
			continue
		}
		out[k] = v
	}
	return out, raw
}

func cloneScope(kv map[string]any) map[string]any {
	out, _ := jsonx.DeepMerge(map[string]any{}, anyMap(kv)).(map[string]any)
	return out
}

func anyMap(kv map[string]any) map[string]any {
	if kv == nil {
		return map[string]any{}
	}
	return kv
}
