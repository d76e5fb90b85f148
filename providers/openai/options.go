package openai

import "strings"

const topLogprobsMax = 20

// System message handling differs between reasoning and non-reasoning
// models; the option forces one mode.
const (
	systemModeRemove    = "remove"
	systemModeSystem    = "system"
	systemModeDeveloper = "developer"
)

// providerOptions is the Responses option surface. Options are read from the
// model's scope; unrecognized keys are kept as extras and merged into the
// request body verbatim.
type providerOptions struct {
	conversation         string
	metadata             map[string]any
	maxToolCalls         *int64
	parallelToolCalls    *bool
	previousResponseID   string
	store                *bool
	user                 string
	instructions         string
	serviceTier          string
	include              []string
	textVerbosity        string
	promptCacheKey       string
	promptCacheRetention string
	safetyIdentifier     string
	systemMessageMode    string
	forceReasoning       bool
	strictJSONSchema     *bool
	truncation           string
	reasoningEffort      string
	reasoningSummary     string
	logprobs             int // top_logprobs count, 0 disables
	extras               map[string]any
}

var knownOptionKeys = map[string]struct{}{
	"conversation":         {},
	"metadata":             {},
	"maxToolCalls":         {},
	"parallelToolCalls":    {},
	"previousResponseId":   {},
	"store":                {},
	"user":                 {},
	"instructions":         {},
	"serviceTier":          {},
	"include":              {},
	"textVerbosity":        {},
	"promptCacheKey":       {},
	"promptCacheRetention": {},
	"safetyIdentifier":     {},
	"systemMessageMode":    {},
	"forceReasoning":       {},
	"strictJsonSchema":     {},
	"truncation":           {},
	"reasoningEffort":      {},
	"reasoningSummary":     {},
	"logprobs":             {},
}

func parseProviderOptions(opts map[string]map[string]any, scope string) providerOptions {
	var out providerOptions
	section, ok := opts[scope]
	if !ok {
		return out
	}
	if s, ok := section["conversation"].(string); ok {
		out.conversation = s
	}
	if m, ok := section["metadata"].(map[string]any); ok {
		out.metadata = m
	}
	if n, ok := int64Value(section["maxToolCalls"]); ok {
		out.maxToolCalls = &n
	}
	if b, ok := section["parallelToolCalls"].(bool); ok {
		out.parallelToolCalls = &b
	}
	if s, ok := section["previousResponseId"].(string); ok {
		out.previousResponseID = s
	}
	if b, ok := section["store"].(bool); ok {
		out.store = &b
	}
	if s, ok := section["user"].(string); ok {
		out.user = s
	}
	if s, ok := section["instructions"].(string); ok {
		out.instructions = s
	}
	if s, ok := section["serviceTier"].(string); ok {
		out.serviceTier = s
	}
	if raw, ok := section["include"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out.include = append(out.include, s)
			}
		}
	}
	if s, ok := section["textVerbosity"].(string); ok {
		out.textVerbosity = s
	}
	if s, ok := section["promptCacheKey"].(string); ok {
		out.promptCacheKey = s
	}
	if s, ok := section["promptCacheRetention"].(string); ok {
		out.promptCacheRetention = s
	}
	if s, ok := section["safetyIdentifier"].(string); ok {
		out.safetyIdentifier = s
	}
	if s, ok := section["systemMessageMode"].(string); ok {
		out.systemMessageMode = s
	}
	if b, ok := section["forceReasoning"].(bool); ok {
		out.forceReasoning = b
	}
	if b, ok := section["strictJsonSchema"].(bool); ok {
		out.strictJSONSchema = &b
	}
	if s, ok := section["truncation"].(string); ok {
		out.truncation = s
	}
	if s, ok := section["reasoningEffort"].(string); ok {
		out.reasoningEffort = s
	}
	if s, ok := section["reasoningSummary"].(string); ok {
		out.reasoningSummary = s
	}
	switch v := section["logprobs"].(type) {
	case bool:
		if v {
			out.logprobs = topLogprobsMax
		}
	case float64:
		if v > 0 {
			out.logprobs = int(v)
		}
	}
	for k, v := range section {
		if _, known := knownOptionKeys[k]; known {
			continue
		}
		if out.extras == nil {
			out.extras = map[string]any{}
		}
		out.extras[k] = v
	}
	return out
}

// storeEnabled reports the effective store setting; the Responses API
// defaults to stored conversations.
func (o providerOptions) storeEnabled() bool {
	return o.store == nil || *o.store
}

func int64Value(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// responsesModelConfig captures per-model-family quirks of the Responses
// endpoint.
type responsesModelConfig struct {
	isReasoningModel               bool
	systemMessageMode              string
	supportsFlexProcessing         bool
	supportsPriorityProcessing     bool
	supportsNonReasoningParameters bool
	requiredAutoTruncation         bool
}

func getResponsesModelConfig(modelID string) responsesModelConfig {
	id := strings.ToLower(modelID)
	hasPrefix := func(prefixes ...string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(id, p) {
				return true
			}
		}
		return false
	}

	// gpt-5-chat is the one gpt-5 family member without reasoning.
	gpt5Reasoning := hasPrefix("gpt-5") && !hasPrefix("gpt-5-chat")

	cfg := responsesModelConfig{
		isReasoningModel: gpt5Reasoning ||
			hasPrefix("o1", "o3", "o4-mini", "codex-mini", "computer-use-preview"),
		supportsFlexProcessing:         gpt5Reasoning || hasPrefix("o3", "o4-mini"),
		supportsNonReasoningParameters: hasPrefix("gpt-5.1", "gpt-5.2"),
	}
	cfg.supportsPriorityProcessing = hasPrefix("gpt-4", "gpt-5-mini", "o3", "o4-mini") ||
		(hasPrefix("gpt-5") && !hasPrefix("gpt-5-nano", "gpt-5-chat"))
	if cfg.isReasoningModel {
		cfg.systemMessageMode = systemModeDeveloper
	} else {
		cfg.systemMessageMode = systemModeSystem
	}
	return cfg
}
