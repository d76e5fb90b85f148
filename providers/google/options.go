package google

import "github.com/octanelabs/aisdk"

// providerOptions is the Gemini option surface. Options are read from the
// model's scope list in precedence order; unrecognized keys are kept as
// extras and merged into the request body verbatim.
type providerOptions struct {
	responseModalities []string
	thinkingBudget     *int64
	includeThoughts    *bool
	cachedContent      string
	structuredOutputs  *bool
	safetySettings     []map[string]any
	threshold          string
	audioTimestamp     *bool
	labels             map[string]any
	extras             map[string]any
}

var knownOptionKeys = map[string]struct{}{
	"responseModalities":  {},
	"response_modalities": {},
	"thinkingConfig":      {},
	"thinking_config":     {},
	"cachedContent":       {},
	"cached_content":      {},
	"structuredOutputs":   {},
	"structured_outputs":  {},
	"safetySettings":      {},
	"safety_settings":     {},
	"threshold":           {},
	"audioTimestamp":      {},
	"audio_timestamp":     {},
	"labels":              {},
}

func parseProviderOptions(opts aisdk.ProviderOptions, scopes []string) providerOptions {
	var out providerOptions
	// Later scopes are lower precedence, so apply them first.
	for i := len(scopes) - 1; i >= 0; i-- {
		section, ok := opts[scopes[i]]
		if !ok {
			continue
		}
		out.apply(section)
	}
	return out
}

func (o *providerOptions) apply(section map[string]any) {
	if v, ok := stringSlice(anyKey(section, "responseModalities", "response_modalities")); ok {
		o.responseModalities = v
	}
	if tc, ok := anyKey(section, "thinkingConfig", "thinking_config").(map[string]any); ok {
		if n, ok := int64Key(tc, "thinkingBudget", "thinking_budget"); ok {
			o.thinkingBudget = &n
		}
		if b, ok := boolKey(tc, "includeThoughts", "include_thoughts"); ok {
			o.includeThoughts = &b
		}
	}
	if s, ok := anyKey(section, "cachedContent", "cached_content").(string); ok {
		o.cachedContent = s
	}
	if b, ok := boolKey(section, "structuredOutputs", "structured_outputs"); ok {
		o.structuredOutputs = &b
	}
	if raw, ok := anyKey(section, "safetySettings", "safety_settings").([]any); ok {
		var settings []map[string]any
		for _, entry := range raw {
			if m, ok := entry.(map[string]any); ok {
				settings = append(settings, m)
			}
		}
		o.safetySettings = settings
	}
	if s, ok := section["threshold"].(string); ok {
		o.threshold = s
	}
	if b, ok := boolKey(section, "audioTimestamp", "audio_timestamp"); ok {
		o.audioTimestamp = &b
	}
	if m, ok := section["labels"].(map[string]any); ok {
		o.labels = m
	}
	for k, v := range section {
		if _, known := knownOptionKeys[k]; known {
			continue
		}
		if o.extras == nil {
			o.extras = map[string]any{}
		}
		o.extras[k] = v
	}
}

func anyKey(section map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := section[k]; ok {
			return v
		}
	}
	return nil
}

func boolKey(section map[string]any, keys ...string) (bool, bool) {
	b, ok := anyKey(section, keys...).(bool)
	return b, ok
}

func int64Key(section map[string]any, keys ...string) (int64, bool) {
	switch n := anyKey(section, keys...).(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func stringSlice(v any) ([]string, bool) {
	raw, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return s, true
		}
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// thoughtSignature reads the part-level reasoning signature from the scope
// list, first match wins.
func thoughtSignature(opts aisdk.ProviderOptions, scopes []string) string {
	for _, scope := range scopes {
		section, ok := opts[scope]
		if !ok {
			continue
		}
		if s, ok := anyKey(section, "thoughtSignature", "thought_signature").(string); ok && s != "" {
			return s
		}
	}
	return ""
}
