package anthropic

import (
	"context"
	"sort"
	"strings"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/eventmapper"
)

func (m *LanguageModel) applyDefaults(options aisdk.CallOptions) aisdk.CallOptions {
	if len(m.defaults) == 0 {
		return options
	}
	options.ProviderOptions = aisdk.MergeProviderDefaults(options.ProviderOptions, m.defaults)
	return options
}

func (m *LanguageModel) buildRequestBody(options aisdk.CallOptions) (body map[string]any, warnings []aisdk.CallWarning, betas map[string]struct{}, usesJSONTool bool) {
	if options.FrequencyPenalty != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("frequencyPenalty", ""))
	}
	if options.PresencePenalty != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("presencePenalty", ""))
	}
	if options.Seed != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("seed", ""))
	}

	// JSON response format works by forcing a pseudo-tool named "json".
	var jsonTool *aisdk.FunctionTool
	if options.ResponseFormat != nil && options.ResponseFormat.Type == "json" {
		if options.ResponseFormat.Schema != nil {
			jsonTool = &aisdk.FunctionTool{
				Name:        "json",
				Description: "Respond with a JSON object.",
				InputSchema: options.ResponseFormat.Schema,
			}
		} else {
			warnings = append(warnings, aisdk.UnsupportedSettingWarning("responseFormat",
				"JSON response format requires a schema. The response format is ignored."))
		}
	}

	provOpts := parseProviderOptions(options.ProviderOptions, m.scope)
	conv := m.convertPrompt(options.Prompt, provOpts)
	warnings = append(warnings, conv.warnings...)
	betas = conv.betas

	var tools []map[string]any
	if jsonTool != nil {
		tools = []map[string]any{functionToolEntry(*jsonTool)}
		if len(options.Tools) > 0 {
			warnings = append(warnings, aisdk.UnsupportedSettingWarning("tools",
				"JSON response format does not support tools. The provided tools are ignored."))
		}
	} else {
		var toolWarnings []aisdk.CallWarning
		tools, toolWarnings = prepareTools(options.Tools, betas)
		warnings = append(warnings, toolWarnings...)
	}

	maxTokens := 1024
	if options.MaxOutputTokens != nil {
		maxTokens = *options.MaxOutputTokens
	}
	body = map[string]any{
		"model":      m.modelID,
		"messages":   conv.messages,
		"max_tokens": maxTokens,
	}
	if len(conv.system) > 0 {
		body["system"] = conv.system
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}

	withParallel := func(obj map[string]any) map[string]any {
		if provOpts.disableParallelToolUse != nil {
			obj["disable_parallel_tool_use"] = *provOpts.disableParallelToolUse
		}
		return obj
	}
	if jsonTool != nil {
		body["tool_choice"] = map[string]any{
			"type": "tool", "name": "json", "disable_parallel_tool_use": true,
		}
	} else if options.ToolChoice != nil {
		switch options.ToolChoice.Type {
		case "auto":
			body["tool_choice"] = withParallel(map[string]any{"type": "auto"})
		case "required":
			body["tool_choice"] = withParallel(map[string]any{"type": "any"})
		case "tool":
			body["tool_choice"] = withParallel(map[string]any{
				"type": "tool", "name": options.ToolChoice.ToolName,
			})
		case "none":
			delete(body, "tools")
		}
	}

	if options.Temperature != nil {
		body["temperature"] = *options.Temperature
	}
	if options.TopP != nil {
		body["top_p"] = *options.TopP
	}
	if options.TopK != nil {
		body["top_k"] = *options.TopK
	}
	if len(options.StopSequences) > 0 {
		body["stop_sequences"] = options.StopSequences
	}

	if conv.missingReasoning && provOpts.thinking != nil && provOpts.thinking.enabled {
		warnings = append(warnings, aisdk.CallWarning{
			Type:    "other",
			Message: "Anthropic thinking is enabled but the latest assistant message has no reasoning content with a signature. The request continues and the upstream API may reject it.",
		})
	}

	if provOpts.thinking != nil {
		if provOpts.thinking.enabled {
			body["thinking"] = map[string]any{
				"type":          "enabled",
				"budget_tokens": provOpts.thinking.budgetTokens,
			}
			// max_tokens must exceed the thinking budget, and sampling knobs
			// are rejected alongside thinking.
			body["max_tokens"] = provOpts.thinking.budgetTokens + 1
			delete(body, "temperature")
			delete(body, "top_p")
			delete(body, "top_k")
		} else {
			body["thinking"] = map[string]any{"type": "disabled"}
		}
	}

	return body, warnings, betas, jsonTool != nil
}

// streamHeaders merges per-call overrides, folds beta flags into a single
// deduplicated anthropic-beta header and switches accept to SSE.
func (m *LanguageModel) streamHeaders(overrides map[string]string, betas map[string]struct{}) map[string]string {
	headers := make(map[string]string, len(m.headers)+len(overrides))
	for k, v := range m.headers {
		if aisdk.IsInternalSDKHeader(k) {
			continue
		}
		headers[k] = v
	}
	for k, v := range overrides {
		if aisdk.IsInternalSDKHeader(k) {
			continue
		}
		headers[strings.ToLower(k)] = v
	}

	var betaValues []string
	seen := map[string]struct{}{}
	if existing, ok := headers["anthropic-beta"]; ok {
		for _, token := range strings.Split(existing, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if _, dup := seen[token]; !dup {
				seen[token] = struct{}{}
				betaValues = append(betaValues, token)
			}
		}
		delete(headers, "anthropic-beta")
	}
	requested := make([]string, 0, len(betas))
	for beta := range betas {
		requested = append(requested, beta)
	}
	sort.Strings(requested)
	for _, beta := range requested {
		if _, dup := seen[beta]; !dup {
			seen[beta] = struct{}{}
			betaValues = append(betaValues, beta)
		}
	}
	if len(betaValues) > 0 {
		headers["anthropic-beta"] = strings.Join(betaValues, ",")
	}

	headers["accept"] = "text/event-stream"
	if _, ok := headers["content-type"]; !ok {
		headers["content-type"] = "application/json"
	}
	return headers
}

func (m *LanguageModel) Generate(ctx context.Context, options aisdk.CallOptions) (*aisdk.GenerateResponse, error) {
	streamResp, err := m.Stream(ctx, options)
	if err != nil {
		return nil, err
	}
	resp, err := aisdk.Collect(ctx, streamResp.Stream, aisdk.CollectEverything("anthropic"))
	if err != nil {
		return nil, err
	}
	resp.RequestBody = streamResp.RequestBody
	resp.ResponseHeaders = streamResp.ResponseHeaders
	return resp, nil
}

func (m *LanguageModel) Stream(ctx context.Context, options aisdk.CallOptions) (*aisdk.StreamResponse, error) {
	options = m.applyDefaults(options)
	body, warnings, betas, usesJSONTool := m.buildRequestBody(options)
	body["stream"] = true

	resp, err := m.http.PostJSONStream(ctx,
		m.baseURL+"/messages",
		m.streamHeaders(options.Headers, betas),
		body, m.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	cfg := eventmapper.Config{
		Warnings:             warnings,
		DefaultTextID:        "text-1",
		FinishReasonFallback: aisdk.FinishUnknown,
		IncludeRaw:           options.IncludeRawChunks,
		Hooks: eventmapper.Hooks{
			Data: func(_ *eventmapper.State, key string, value any) []aisdk.StreamPart {
				if key != "reasoning_signature" {
					return nil
				}
				section, ok := value.(map[string]any)
				if !ok {
					return nil
				}
				sig, ok := section["signature"].(string)
				if !ok || sig == "" {
					return nil
				}
				return []aisdk.StreamPart{aisdk.ReasoningSignature{Signature: sig}}
			},
		},
	}
	if usesJSONTool {
		cfg.TreatToolNamesAsText = map[string]struct{}{"json": {}}
	}

	return &aisdk.StreamResponse{
		Stream:          eventmapper.NewStream(resp.Body, newChunkParser(), cfg),
		RequestBody:     body,
		ResponseHeaders: resp.Headers,
	}, nil
}
