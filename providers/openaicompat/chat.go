package openaicompat

import (
	"context"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/capabilities"
	"github.com/octanelabs/aisdk/registry"
)

// ChatLanguageModel talks to a /chat/completions endpoint. Generation is
// implemented on top of the stream.
type ChatLanguageModel struct {
	modelID string
	base    *base
}

func newChatModel(cfg registry.ModelConfig) (aisdk.LanguageModel, error) {
	b, err := buildBase(cfg)
	if err != nil {
		return nil, err
	}
	return &ChatLanguageModel{modelID: cfg.ModelID, base: b}, nil
}

func (m *ChatLanguageModel) ProviderName() string         { return providerName }
func (m *ChatLanguageModel) ModelID() string              { return m.modelID }
func (m *ChatLanguageModel) SpecificationVersion() string { return aisdk.LanguageModelSpecVersion }

func (m *ChatLanguageModel) SupportedURLs() map[string][]string {
	return map[string][]string{
		"text/*": {`^https?://.*/v1/chat/completions$`},
	}
}

func (m *ChatLanguageModel) buildRequestBody(options aisdk.CallOptions) (map[string]any, []aisdk.CallWarning) {
	var warnings []aisdk.CallWarning
	if options.TopK != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("topK", ""))
	}

	var responseFormat map[string]any
	if options.ResponseFormat != nil && options.ResponseFormat.Type == "json" {
		rf := options.ResponseFormat
		if m.base.settings.supportsStructuredOutput && rf.Schema != nil {
			name := rf.Name
			if name == "" {
				name = "response"
			}
			schema := map[string]any{"schema": rf.Schema, "name": name}
			if rf.Description != "" {
				schema["description"] = rf.Description
			}
			responseFormat = map[string]any{"type": "json_schema", "json_schema": schema}
		} else {
			if rf.Schema != nil {
				warnings = append(warnings, aisdk.UnsupportedSettingWarning("responseFormat",
					"JSON response format schema is only supported with structuredOutputs"))
			}
			responseFormat = map[string]any{"type": "json_object"}
		}
	}

	scopes := []string{providerName, m.base.scope}
	provOpts, extras := parseChatProviderOptions(options.ProviderOptions, scopes)

	tools, toolChoice, toolWarnings := prepareTools(options.Tools, options.ToolChoice)
	warnings = append(warnings, toolWarnings...)
	if len(tools) > 0 && !capabilities.ToolCall(m.base.scope, m.modelID) {
		for _, tool := range tools {
			name, _ := tool["function"].(map[string]any)["name"].(string)
			warnings = append(warnings, aisdk.UnsupportedToolWarning(name,
				"model does not support tool calls"))
		}
		tools, toolChoice = nil, nil
	}

	body := map[string]any{
		"model":    m.modelID,
		"messages": convertChatMessages(m.base.scope, options.Prompt),
	}
	if provOpts.user != "" {
		body["user"] = provOpts.user
	}
	if options.MaxOutputTokens != nil {
		body["max_tokens"] = *options.MaxOutputTokens
	}
	if options.Temperature != nil {
		body["temperature"] = *options.Temperature
	}
	if options.TopP != nil {
		body["top_p"] = *options.TopP
	}
	if options.FrequencyPenalty != nil {
		body["frequency_penalty"] = *options.FrequencyPenalty
	}
	if options.PresencePenalty != nil {
		body["presence_penalty"] = *options.PresencePenalty
	}
	if len(options.StopSequences) > 0 {
		body["stop"] = options.StopSequences
	}
	if options.Seed != nil {
		body["seed"] = *options.Seed
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}
	if toolChoice != nil {
		body["tool_choice"] = toolChoice
	}
	if responseFormat != nil {
		body["response_format"] = responseFormat
	}
	if provOpts.reasoningEffort != "" {
		body["reasoning_effort"] = provOpts.reasoningEffort
	}
	if provOpts.textVerbosity != "" {
		body["verbosity"] = provOpts.textVerbosity
	}
	for k, v := range extras {
		body[k] = v
	}
	return body, warnings
}

func (m *ChatLanguageModel) Generate(ctx context.Context, options aisdk.CallOptions) (*aisdk.GenerateResponse, error) {
	streamResp, err := m.Stream(ctx, options)
	if err != nil {
		return nil, err
	}
	resp, err := aisdk.Collect(ctx, streamResp.Stream, aisdk.CollectConfig{
		AllowReasoning: true,
		AllowToolCalls: true,
		FailOnError:    true,
	})
	if err != nil {
		return nil, err
	}
	resp.RequestBody = streamResp.RequestBody
	resp.ResponseHeaders = streamResp.ResponseHeaders
	return resp, nil
}

func (m *ChatLanguageModel) Stream(ctx context.Context, options aisdk.CallOptions) (*aisdk.StreamResponse, error) {
	options = m.base.applyDefaults(options)
	body, warnings := m.buildRequestBody(options)
	body["stream"] = true
	if m.base.settings.includeUsage {
		body["stream_options"] = map[string]any{"include_usage": true}
	}

	resp, err := m.base.http.PostJSONStream(ctx,
		m.base.requestURL("/chat/completions"),
		m.base.callHeaders(options.Headers),
		body, m.base.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	stream := newPartStream(resp.Body, streamSettings{
		warnings:     warnings,
		includeRaw:   options.IncludeRawChunks,
		includeUsage: m.base.settings.includeUsage,
		scope:        m.base.scope,
	}, modeChat)

	return &aisdk.StreamResponse{
		Stream:          stream,
		RequestBody:     body,
		ResponseHeaders: resp.Headers,
	}, nil
}

// prepareTools converts function tools to the OpenAI shape. Provider tools
// are not supported on this protocol and degrade to warnings.
func prepareTools(tools []aisdk.Tool, choice *aisdk.ToolChoice) ([]map[string]any, any, []aisdk.CallWarning) {
	var warnings []aisdk.CallWarning
	var converted []map[string]any
	for _, tool := range tools {
		switch t := tool.(type) {
		case aisdk.FunctionTool:
			converted = append(converted, map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.InputSchema,
				},
			})
		case aisdk.ProviderDefinedTool:
			warnings = append(warnings, aisdk.UnsupportedToolWarning(t.Name, "provider tools are not supported"))
		}
	}

	var choiceVal any
	if choice != nil {
		switch choice.Type {
		case "auto", "none", "required":
			choiceVal = choice.Type
		case "tool":
			choiceVal = map[string]any{"type": "function", "function": map[string]any{"name": choice.ToolName}}
		}
	}
	return converted, choiceVal, warnings
}
