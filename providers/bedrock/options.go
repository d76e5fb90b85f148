package bedrock

import (
	"github.com/octanelabs/aisdk"
)

// reasoningOption is the parsed "reasoningConfig" provider option.
type reasoningOption struct {
	enabled      bool
	budgetTokens int
}

// providerOptions are the Bedrock knobs carried under the "bedrock" scope.
type providerOptions struct {
	additionalModelRequestFields map[string]any
	reasoning                    *reasoningOption
	guardrailConfig              map[string]any
	guardrailStreamConfig        map[string]any
}

func parseProviderOptions(opts aisdk.ProviderOptions) providerOptions {
	var out providerOptions
	section, ok := opts[optionsScope]
	if !ok {
		return out
	}
	if v, ok := mapKey(section, "additionalModelRequestFields", "additional_model_request_fields"); ok {
		out.additionalModelRequestFields = v
	}
	if v, ok := mapKey(section, "guardrailConfig", "guardrail_config"); ok {
		out.guardrailConfig = v
	}
	if v, ok := mapKey(section, "guardrailStreamConfig", "guardrail_stream_config"); ok {
		out.guardrailStreamConfig = v
	}
	if raw, ok := mapKey(section, "reasoningConfig", "reasoning_config"); ok {
		switch raw["type"] {
		case "enabled":
			budget := 0
			if n, ok := numberKey(raw, "budgetTokens", "budget_tokens"); ok {
				budget = int(n)
			}
			out.reasoning = &reasoningOption{enabled: true, budgetTokens: budget}
		case "disabled":
			out.reasoning = &reasoningOption{}
		}
	}
	return out
}

// hasCachePoint reports whether a message carries the Bedrock prompt-caching
// marker: a cachePoint object with a "type" key.
func hasCachePoint(opts aisdk.ProviderOptions) bool {
	section, ok := opts[optionsScope]
	if !ok {
		return false
	}
	raw, ok := mapKey(section, "cachePoint", "cache_point")
	if !ok {
		return false
	}
	_, ok = raw["type"]
	return ok
}

func cachePointBlock() map[string]any {
	return map[string]any{"cachePoint": map[string]any{"type": "default"}}
}

// reasoningMetadata reads the signature or redacted payload persisted on a
// reasoning part by an earlier Bedrock turn.
func reasoningMetadata(opts aisdk.ProviderOptions) (signature, redacted string) {
	section, ok := opts[optionsScope]
	if !ok {
		return "", ""
	}
	signature, _ = section["signature"].(string)
	redacted, _ = section["redactedData"].(string)
	if redacted == "" {
		redacted, _ = section["redacted_data"].(string)
	}
	return signature, redacted
}

func mapKey(section map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if v, ok := section[k].(map[string]any); ok {
			return v, true
		}
	}
	return nil, false
}

func numberKey(section map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := section[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}
