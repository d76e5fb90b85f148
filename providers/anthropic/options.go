package anthropic

import (
	"github.com/octanelabs/aisdk"
)

// thinkingOption is the parsed "thinking" provider option.
type thinkingOption struct {
	enabled      bool
	budgetTokens int
}

// providerOptions are the Anthropic knobs carried under the provider's own
// scope in ProviderOptions. Custom provider ids read from the exact scope
// key with no fallback.
type providerOptions struct {
	sendReasoning          *bool
	thinking               *thinkingOption
	disableParallelToolUse *bool
}

func parseProviderOptions(opts aisdk.ProviderOptions, scope string) providerOptions {
	var out providerOptions
	section, ok := opts[scope]
	if !ok {
		return out
	}
	if v, ok := boolKey(section, "sendReasoning", "send_reasoning"); ok {
		out.sendReasoning = &v
	}
	if v, ok := boolKey(section, "disableParallelToolUse", "disable_parallel_tool_use"); ok {
		out.disableParallelToolUse = &v
	}
	if raw, ok := section["thinking"].(map[string]any); ok {
		switch raw["type"] {
		case "enabled":
			budget := 0
			if n, ok := numberKey(raw, "budgetTokens", "budget_tokens"); ok {
				budget = int(n)
			}
			out.thinking = &thinkingOption{enabled: true, budgetTokens: budget}
		case "disabled":
			out.thinking = &thinkingOption{}
		}
	}
	return out
}

// filePartOptions carry per-file document metadata.
type filePartOptions struct {
	title     string
	context   string
	citations bool
}

func parseFilePartOptions(opts aisdk.ProviderOptions, scope string) filePartOptions {
	var out filePartOptions
	section, ok := opts[scope]
	if !ok {
		return out
	}
	if v, ok := section["title"].(string); ok {
		out.title = v
	}
	if v, ok := section["context"].(string); ok {
		out.context = v
	}
	if c, ok := section["citations"].(map[string]any); ok {
		if v, ok := c["enabled"].(bool); ok {
			out.citations = v
		}
	}
	return out
}

func boolKey(section map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if v, ok := section[k].(bool); ok {
			return v, true
		}
	}
	return false, false
}

func numberKey(section map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := section[k].(float64); ok {
			return v, true
		}
	}
	return 0, false
}
