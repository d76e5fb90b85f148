package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/octanelabs/aisdk"
)

func (m *LanguageModel) applyDefaults(options aisdk.CallOptions) aisdk.CallOptions {
	if len(m.defaults) == 0 {
		return options
	}
	options.ProviderOptions = aisdk.MergeProviderDefaults(options.ProviderOptions, m.defaults)
	return options
}

type builtCommand struct {
	command      map[string]any
	warnings     []aisdk.CallWarning
	usesJSONTool bool
}

func (m *LanguageModel) buildCommand(options aisdk.CallOptions) (builtCommand, error) {
	var warnings []aisdk.CallWarning

	if options.FrequencyPenalty != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("frequencyPenalty", ""))
	}
	if options.PresencePenalty != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("presencePenalty", ""))
	}
	if options.Seed != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("seed", ""))
	}

	provOpts := parseProviderOptions(options.ProviderOptions)

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
				"JSON response format requires a schema; request ignored."))
		}
	}

	var functionTools []aisdk.FunctionTool
	for _, tool := range options.Tools {
		switch t := tool.(type) {
		case aisdk.FunctionTool:
			functionTools = append(functionTools, t)
		case aisdk.ProviderDefinedTool:
			warnings = append(warnings,
				aisdk.UnsupportedToolWarning(t.Name, "provider tools are not supported"))
		}
	}

	toolChoice := options.ToolChoice
	if jsonTool != nil {
		if len(functionTools) > 0 {
			warnings = append(warnings, aisdk.CallWarning{
				Type:    "other",
				Message: "JSON response format does not support additional tools. Provided tools are ignored.",
			})
			functionTools = nil
		}
		functionTools = append(functionTools, *jsonTool)
		toolChoice = &aisdk.ToolChoice{Type: "tool", ToolName: "json"}
	}

	toolConfig, hasTools := prepareTools(functionTools, toolChoice)

	prompt, promptWarning := filterPromptIfNoTools(options.Prompt, hasTools)
	if promptWarning != nil {
		warnings = append(warnings, *promptWarning)
	}

	conv, err := convertPrompt(prompt)
	if err != nil {
		return builtCommand{}, err
	}

	command := map[string]any{"messages": conv.messages}
	if len(conv.system) > 0 {
		command["system"] = conv.system
	}

	inference := map[string]any{}
	if options.MaxOutputTokens != nil {
		inference["maxTokens"] = *options.MaxOutputTokens
	}
	if options.Temperature != nil {
		inference["temperature"] = *options.Temperature
	}
	if options.TopP != nil {
		inference["topP"] = *options.TopP
	}
	if options.TopK != nil {
		inference["topK"] = *options.TopK
	}
	if len(options.StopSequences) > 0 {
		inference["stopSequences"] = options.StopSequences
	}

	var additionalFields map[string]any
	if provOpts.reasoning != nil && provOpts.reasoning.enabled {
		if budget := provOpts.reasoning.budgetTokens; budget > 0 {
			if additionalFields == nil {
				additionalFields = map[string]any{}
			}
			additionalFields["thinking"] = map[string]any{
				"type":          "enabled",
				"budget_tokens": budget,
			}
			// max_tokens must cover the thinking budget on top of the
			// visible output.
			if existing, ok := inference["maxTokens"].(int); ok {
				inference["maxTokens"] = existing + budget
			} else {
				inference["maxTokens"] = budget + 4096
			}
		}
		for _, setting := range []string{"temperature", "topP", "topK"} {
			if _, ok := inference[setting]; ok {
				delete(inference, setting)
				warnings = append(warnings, aisdk.UnsupportedSettingWarning(setting,
					setting+" is not supported when reasoning is enabled"))
			}
		}
	}

	if len(inference) > 0 {
		command["inferenceConfig"] = inference
	}
	if len(toolConfig) > 0 {
		command["toolConfig"] = toolConfig
	}

	if len(provOpts.additionalModelRequestFields) > 0 {
		if additionalFields == nil {
			additionalFields = map[string]any{}
		}
		for k, v := range provOpts.additionalModelRequestFields {
			additionalFields[k] = v
		}
	}
	if len(additionalFields) > 0 {
		command["additionalModelRequestFields"] = additionalFields
	}

	if len(provOpts.guardrailConfig) > 0 {
		command["guardrailConfig"] = provOpts.guardrailConfig
	}
	if len(provOpts.guardrailStreamConfig) > 0 {
		command["guardrailStreamConfig"] = provOpts.guardrailStreamConfig
	}

	return builtCommand{
		command:      command,
		warnings:     warnings,
		usesJSONTool: jsonTool != nil,
	}, nil
}

// prepareTools renders the Converse toolConfig. A "none" choice drops the
// tools entirely because Converse has no way to express it.
func prepareTools(tools []aisdk.FunctionTool, toolChoice *aisdk.ToolChoice) (map[string]any, bool) {
	if len(tools) == 0 {
		return nil, false
	}
	if toolChoice != nil && toolChoice.Type == "none" {
		return nil, false
	}

	specs := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		schema := map[string]any{}
		if tool.InputSchema != nil {
			schema = map[string]any{"json": tool.InputSchema}
		}
		specs = append(specs, map[string]any{
			"toolSpec": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"inputSchema": schema,
			},
		})
	}

	config := map[string]any{"tools": specs}
	if toolChoice != nil {
		switch toolChoice.Type {
		case "auto":
			config["toolChoice"] = map[string]any{"auto": map[string]any{}}
		case "required":
			config["toolChoice"] = map[string]any{"any": map[string]any{}}
		case "tool":
			config["toolChoice"] = map[string]any{
				"tool": map[string]any{"name": toolChoice.ToolName},
			}
		}
	}
	return config, true
}

// filterPromptIfNoTools strips tool results and tool calls when the request
// carries no tools, since Converse rejects tool content without a toolConfig.
func filterPromptIfNoTools(prompt []aisdk.Message, hasTools bool) ([]aisdk.Message, *aisdk.CallWarning) {
	if hasTools {
		return prompt, nil
	}

	mutated := false
	filtered := make([]aisdk.Message, 0, len(prompt))
	for _, message := range prompt {
		switch msg := message.(type) {
		case aisdk.ToolMessage:
			mutated = true
		case aisdk.AssistantMessage:
			parts := make([]aisdk.AssistantPart, 0, len(msg.Content))
			for _, part := range msg.Content {
				if _, ok := part.(aisdk.ToolCallPart); ok {
					continue
				}
				parts = append(parts, part)
			}
			if len(parts) == 0 {
				mutated = true
				continue
			}
			if len(parts) != len(msg.Content) {
				mutated = true
			}
			msg.Content = parts
			filtered = append(filtered, msg)
		default:
			filtered = append(filtered, message)
		}
	}

	if !mutated {
		return filtered, nil
	}
	w := aisdk.UnsupportedSettingWarning("toolContent",
		"Tool calls and results removed because no tools were provided for Amazon Bedrock.")
	return filtered, &w
}

func (m *LanguageModel) Generate(ctx context.Context, options aisdk.CallOptions) (*aisdk.GenerateResponse, error) {
	options = m.applyDefaults(options)
	built, err := m.buildCommand(options)
	if err != nil {
		return nil, err
	}

	url := m.endpointURL("/converse")
	body, headers, err := m.prepareRequest(ctx, url, built.command, m.callHeaders(options.Headers))
	if err != nil {
		return nil, err
	}

	payload, respHeaders, err := m.http.PostJSON(ctx, url, headers, body, m.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	resp, err := decodeResponse(payload, built.usesJSONTool)
	if err != nil {
		return nil, err
	}
	resp.Warnings = built.warnings
	resp.RequestBody = body
	resp.ResponseHeaders = respHeaders
	resp.ResponseBody = payload
	return resp, nil
}

func (m *LanguageModel) Stream(ctx context.Context, options aisdk.CallOptions) (*aisdk.StreamResponse, error) {
	return nil, &aisdk.Error{
		Kind:    aisdk.ErrTransport,
		Message: "Amazon Bedrock streaming is not implemented; use Generate",
	}
}

func decodeResponse(payload any, usesJSONTool bool) (*aisdk.GenerateResponse, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil, aisdk.SerdeError(errors.New("unexpected Bedrock response shape"))
	}
	output, _ := root["output"].(map[string]any)
	message, _ := output["message"].(map[string]any)
	if message == nil {
		return nil, aisdk.SerdeError(errors.New("Bedrock response has no output message"))
	}
	items, _ := message["content"].([]any)

	var content []aisdk.Content
	for _, raw := range items {
		part, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if text, ok := part["text"].(string); ok {
			// Plain text is noise when the JSON pseudo-tool carries the
			// response.
			if !usesJSONTool && text != "" {
				content = append(content, aisdk.TextContent{Text: text})
			}
		}

		if rc, ok := part["reasoningContent"].(map[string]any); ok {
			if rt, ok := rc["reasoningText"].(map[string]any); ok {
				text, _ := rt["text"].(string)
				var meta aisdk.ProviderMetadata
				if sig, ok := rt["signature"].(string); ok && sig != "" {
					meta = aisdk.ProviderMetadata{optionsScope: {"signature": sig}}
				}
				content = append(content, aisdk.ReasoningContent{Text: text, ProviderMetadata: meta})
			} else if rr, ok := rc["redactedReasoning"].(map[string]any); ok {
				inner := map[string]any{}
				if data, ok := rr["data"].(string); ok {
					inner["redactedData"] = data
				}
				content = append(content, aisdk.ReasoningContent{
					ProviderMetadata: aisdk.ProviderMetadata{optionsScope: inner},
				})
			}
		}

		if tu, ok := part["toolUse"].(map[string]any); ok {
			id, _ := tu["toolUseId"].(string)
			if id == "" {
				id = uuid.NewString()
			}
			name, _ := tu["name"].(string)
			if name == "" {
				name = "tool-" + id
			}
			input := "null"
			if v, ok := tu["input"]; ok && v != nil {
				input = jsonString(v)
			}
			if usesJSONTool {
				content = append(content, aisdk.TextContent{Text: input})
			} else {
				content = append(content, aisdk.ToolCallContent{
					ToolCallID: id,
					ToolName:   name,
					Input:      input,
				})
			}
		}
	}

	stopReason, _ := root["stopReason"].(string)
	usage, _ := root["usage"].(map[string]any)

	return &aisdk.GenerateResponse{
		Content:          content,
		FinishReason:     mapFinishReason(stopReason),
		Usage:            mapUsage(usage),
		ProviderMetadata: buildProviderMetadata(root, usage, usesJSONTool),
	}, nil
}

func mapFinishReason(reason string) aisdk.FinishReason {
	switch reason {
	case "stop", "stop_sequence", "end_turn":
		return aisdk.FinishStop
	case "max_tokens", "length":
		return aisdk.FinishLength
	case "content_filtered", "content-filter", "guardrail_intervened":
		return aisdk.FinishContentFilter
	case "tool_use", "tool-calls":
		return aisdk.FinishToolCalls
	case "error":
		return aisdk.FinishError
	}
	return aisdk.FinishUnknown
}

func mapUsage(usage map[string]any) aisdk.Usage {
	var out aisdk.Usage
	if usage == nil {
		return out
	}
	out.InputTokens = int64Field(usage, "inputTokens")
	out.OutputTokens = int64Field(usage, "outputTokens")
	out.TotalTokens = int64Field(usage, "totalTokens")
	out.CachedInputTokens = int64Field(usage, "cacheReadInputTokens")
	return out
}

func buildProviderMetadata(root, usage map[string]any, usesJSONTool bool) aisdk.ProviderMetadata {
	trace, hasTrace := root["trace"]
	if !hasTrace && usage == nil && !usesJSONTool {
		return nil
	}
	inner := map[string]any{}
	if hasTrace {
		inner["trace"] = trace
	}
	if cacheWrite, ok := usage["cacheWriteInputTokens"].(float64); ok {
		inner["usage"] = map[string]any{"cacheWriteInputTokens": cacheWrite}
	}
	if usesJSONTool {
		inner["isJsonResponseFromTool"] = true
	}
	return aisdk.ProviderMetadata{optionsScope: inner}
}

func int64Field(m map[string]any, key string) *int64 {
	v, ok := m[key].(float64)
	if !ok {
		return nil
	}
	n := int64(v)
	return &n
}

func jsonString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
