package openai

import (
	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/capabilities"
)

// Structural keys that request-body extras may never override.
var disallowedOverrideKeys = []string{"model", "input", "stream", "tools", "tool_choice"}

// buildContext carries the per-request state both Generate and Stream need
// beyond the body itself.
type buildContext struct {
	mapping  toolNameMapping
	store    bool
	logprobs int
	warnings []aisdk.CallWarning
}

func (m *LanguageModel) buildRequestBody(options aisdk.CallOptions) (map[string]any, buildContext, error) {
	var warnings []aisdk.CallWarning
	if options.TopK != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("topK", ""))
	}
	if options.Seed != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("seed", ""))
	}
	if options.PresencePenalty != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("presencePenalty", ""))
	}
	if options.FrequencyPenalty != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("frequencyPenalty", ""))
	}
	if len(options.StopSequences) > 0 {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("stopSequences", ""))
	}

	prov := parseProviderOptions(options.ProviderOptions, m.cfg.Scope)
	modelCfg := getResponsesModelConfig(m.modelID)
	isReasoning := modelCfg.isReasoningModel || prov.forceReasoning ||
		capabilities.Reasoning(m.cfg.Scope, m.modelID)

	systemMode := prov.systemMessageMode
	if systemMode == "" {
		if prov.forceReasoning {
			systemMode = systemModeDeveloper
		} else {
			systemMode = modelCfg.systemMessageMode
		}
	}

	previousResponseID := prov.previousResponseID
	if prov.conversation != "" && previousResponseID != "" {
		warnings = append(warnings, aisdk.CallWarning{
			Type:    "other",
			Message: "conversation and previousResponseId cannot be used together",
		})
		previousResponseID = ""
	}

	mapping := buildToolNameMapping(options.Tools)
	store := prov.storeEnabled()

	conv := convertPrompt(options.Prompt, convertParams{
		systemMode:     systemMode,
		fileIDPrefixes: m.cfg.FileIDPrefixes,
		scope:          m.cfg.Scope,
		store:          store,
		mapping:        mapping,
	})
	warnings = append(warnings, conv.warnings...)

	input := conv.input
	if input == nil {
		input = []any{}
	}
	body := map[string]any{
		"model": m.modelID,
		"input": input,
	}
	if prov.instructions != "" {
		body["instructions"] = prov.instructions
	}
	if options.Temperature != nil {
		body["temperature"] = *options.Temperature
	}
	if options.TopP != nil {
		body["top_p"] = *options.TopP
	}
	if options.MaxOutputTokens != nil {
		body["max_output_tokens"] = *options.MaxOutputTokens
	}

	if prov.metadata != nil {
		body["metadata"] = prov.metadata
	}
	if prov.conversation != "" {
		body["conversation"] = prov.conversation
	}
	if prov.maxToolCalls != nil {
		body["max_tool_calls"] = *prov.maxToolCalls
	}
	if prov.parallelToolCalls != nil {
		body["parallel_tool_calls"] = *prov.parallelToolCalls
	}
	if previousResponseID != "" {
		body["previous_response_id"] = previousResponseID
	}
	if prov.store != nil {
		body["store"] = *prov.store
	}
	if prov.user != "" {
		body["user"] = prov.user
	}
	if prov.promptCacheKey != "" {
		body["prompt_cache_key"] = prov.promptCacheKey
	}
	if prov.promptCacheRetention != "" {
		body["prompt_cache_retention"] = prov.promptCacheRetention
	}
	if prov.safetyIdentifier != "" {
		body["safety_identifier"] = prov.safetyIdentifier
	}
	switch {
	case prov.truncation != "":
		body["truncation"] = prov.truncation
	case modelCfg.requiredAutoTruncation:
		body["truncation"] = "auto"
	}

	// text.format and text.verbosity share one object.
	text := map[string]any{}
	if options.ResponseFormat != nil && options.ResponseFormat.Type == "json" {
		if options.ResponseFormat.Schema == nil {
			text["format"] = map[string]any{"type": "json_object"}
		} else {
			strict := true
			if prov.strictJSONSchema != nil {
				strict = *prov.strictJSONSchema
			}
			name := options.ResponseFormat.Name
			if name == "" {
				name = "response"
			}
			format := map[string]any{
				"type":   "json_schema",
				"strict": strict,
				"name":   name,
				"schema": options.ResponseFormat.Schema,
			}
			if options.ResponseFormat.Description != "" {
				format["description"] = options.ResponseFormat.Description
			}
			text["format"] = format
		}
	}
	if prov.textVerbosity != "" {
		text["verbosity"] = prov.textVerbosity
	}
	if len(text) > 0 {
		body["text"] = text
	}

	var tools []any
	hasWebSearch := false
	hasCodeInterpreter := false
	for _, tool := range options.Tools {
		switch t := tool.(type) {
		case aisdk.FunctionTool:
			parameters := t.InputSchema
			if parameters == nil {
				parameters = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			entry := map[string]any{
				"type":       "function",
				"name":       t.Name,
				"parameters": parameters,
			}
			if t.Description != "" {
				entry["description"] = t.Description
			}
			if strict, ok := functionToolStrict(t, m.cfg.Scope); ok {
				entry["strict"] = strict
			}
			tools = append(tools, entry)
		case aisdk.ProviderDefinedTool:
			entry, err := buildProviderTool(t)
			if err != nil {
				return nil, buildContext{}, err
			}
			if entry == nil {
				warnings = append(warnings, aisdk.UnsupportedToolWarning(t.ID, ""))
				continue
			}
			switch entry["type"] {
			case "web_search", "web_search_preview":
				hasWebSearch = true
			case "code_interpreter":
				hasCodeInterpreter = true
			}
			tools = append(tools, entry)
		}
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}
	if options.ToolChoice != nil {
		switch options.ToolChoice.Type {
		case "auto", "none", "required":
			body["tool_choice"] = options.ToolChoice.Type
		case "tool":
			wire := mapping.toProviderName(options.ToolChoice.ToolName)
			if isBuiltinToolName(wire) {
				body["tool_choice"] = map[string]any{"type": wire}
			} else {
				body["tool_choice"] = map[string]any{"type": "function", "name": wire}
			}
		}
	}

	include := newIncludeSet(prov.include)
	if prov.logprobs > 0 {
		include.add("message.output_text.logprobs")
		body["top_logprobs"] = prov.logprobs
	}
	if hasWebSearch {
		include.add("web_search_call.action.sources")
	}
	if hasCodeInterpreter {
		include.add("code_interpreter_call.outputs")
	}
	if !store && isReasoning {
		include.add("reasoning.encrypted_content")
	}
	if len(include.values) > 0 {
		body["include"] = include.values
	}

	if isReasoning {
		if !(prov.reasoningEffort == "none" && modelCfg.supportsNonReasoningParameters) {
			if options.Temperature != nil {
				delete(body, "temperature")
				warnings = append(warnings, aisdk.UnsupportedSettingWarning("temperature",
					"temperature is not supported for reasoning models"))
			}
			if options.TopP != nil {
				delete(body, "top_p")
				warnings = append(warnings, aisdk.UnsupportedSettingWarning("topP",
					"topP is not supported for reasoning models"))
			}
		}
		reasoning := map[string]any{}
		if prov.reasoningEffort != "" {
			reasoning["effort"] = prov.reasoningEffort
		}
		if prov.reasoningSummary != "" {
			reasoning["summary"] = prov.reasoningSummary
		}
		if len(reasoning) > 0 {
			body["reasoning"] = reasoning
		}
	} else {
		if prov.reasoningEffort != "" {
			warnings = append(warnings, aisdk.UnsupportedSettingWarning("reasoningEffort",
				"reasoningEffort is not supported for non-reasoning models"))
		}
		if prov.reasoningSummary != "" {
			warnings = append(warnings, aisdk.UnsupportedSettingWarning("reasoningSummary",
				"reasoningSummary is not supported for non-reasoning models"))
		}
	}

	if len(prov.extras) > 0 {
		aisdk.MergeRequestOverrides(body, prov.extras, disallowedOverrideKeys)
		// An explicitly set effort beats a merged-in reasoning default.
		if isReasoning && prov.reasoningEffort != "" {
			if reasoning, ok := body["reasoning"].(map[string]any); ok {
				reasoning["effort"] = prov.reasoningEffort
			}
		}
	}

	if tier := prov.serviceTier; tier != "" {
		switch {
		case tier == "flex" && !modelCfg.supportsFlexProcessing:
			warnings = append(warnings, aisdk.UnsupportedSettingWarning("serviceTier",
				"flex processing is only available for o3, o4-mini, and gpt-5 models"))
		case tier == "priority" && !modelCfg.supportsPriorityProcessing:
			warnings = append(warnings, aisdk.UnsupportedSettingWarning("serviceTier",
				"priority processing is only available for supported models and requires Enterprise access"))
		default:
			body["service_tier"] = tier
		}
	}

	return body, buildContext{
		mapping:  mapping,
		store:    store,
		logprobs: prov.logprobs,
		warnings: warnings,
	}, nil
}

func functionToolStrict(t aisdk.FunctionTool, scope string) (bool, bool) {
	for _, s := range []string{scope, "openai", "openai.responses"} {
		section, ok := t.ProviderOptions[s]
		if !ok {
			continue
		}
		if strict, ok := section["strict"].(bool); ok {
			return strict, true
		}
	}
	return false, false
}

// includeSet is an order-preserving string set for the include field.
type includeSet struct {
	values []string
	seen   map[string]struct{}
}

func newIncludeSet(initial []string) *includeSet {
	s := &includeSet{seen: map[string]struct{}{}}
	for _, v := range initial {
		s.add(v)
	}
	return s
}

func (s *includeSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}
