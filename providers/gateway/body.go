package gateway

import (
	"encoding/base64"
	"strings"

	"github.com/octanelabs/aisdk"
)

// serializeCallOptions renders the call options in the SDK wire shape the
// gateway accepts back. File data is folded into data: URLs so the body
// stays plain JSON.
func serializeCallOptions(options aisdk.CallOptions) map[string]any {
	body := map[string]any{
		"prompt":             serializePrompt(options.Prompt),
		"tools":              serializeTools(options.Tools),
		"include_raw_chunks": options.IncludeRawChunks,
	}
	if options.MaxOutputTokens != nil {
		body["max_output_tokens"] = *options.MaxOutputTokens
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
	if options.PresencePenalty != nil {
		body["presence_penalty"] = *options.PresencePenalty
	}
	if options.FrequencyPenalty != nil {
		body["frequency_penalty"] = *options.FrequencyPenalty
	}
	if len(options.StopSequences) > 0 {
		body["stop_sequences"] = options.StopSequences
	}
	if options.Seed != nil {
		body["seed"] = *options.Seed
	}
	if options.ResponseFormat != nil {
		body["response_format"] = serializeResponseFormat(options.ResponseFormat)
	}
	if options.ToolChoice != nil {
		body["tool_choice"] = serializeToolChoice(options.ToolChoice)
	}
	if len(options.Headers) > 0 {
		body["headers"] = options.Headers
	}
	if len(options.ProviderOptions) > 0 {
		body["provider_options"] = providerOptionsJSON(options.ProviderOptions)
	}
	return body
}

func serializePrompt(prompt []aisdk.Message) []any {
	messages := make([]any, 0, len(prompt))
	for _, msg := range prompt {
		switch v := msg.(type) {
		case aisdk.SystemMessage:
			messages = append(messages, withOptions(map[string]any{
				"role":    "system",
				"content": v.Content,
			}, v.ProviderOptions))
		case aisdk.UserMessage:
			parts := make([]any, 0, len(v.Content))
			for _, part := range v.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					parts = append(parts, textPartJSON(p))
				case aisdk.FilePart:
					parts = append(parts, filePartJSON(p))
				}
			}
			messages = append(messages, withOptions(map[string]any{
				"role":    "user",
				"content": parts,
			}, v.ProviderOptions))
		case aisdk.AssistantMessage:
			parts := make([]any, 0, len(v.Content))
			for _, part := range v.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					parts = append(parts, textPartJSON(p))
				case aisdk.ReasoningPart:
					parts = append(parts, withOptions(map[string]any{
						"type": "reasoning",
						"text": p.Text,
					}, p.ProviderOptions))
				case aisdk.FilePart:
					parts = append(parts, filePartJSON(p))
				case aisdk.ToolCallPart:
					parts = append(parts, toolCallPartJSON(p))
				case aisdk.ToolResultPart:
					parts = append(parts, toolResultPartJSON(p))
				}
			}
			messages = append(messages, withOptions(map[string]any{
				"role":    "assistant",
				"content": parts,
			}, v.ProviderOptions))
		case aisdk.ToolMessage:
			parts := make([]any, 0, len(v.Content))
			for _, part := range v.Content {
				switch p := part.(type) {
				case aisdk.ToolResultPart:
					parts = append(parts, toolResultPartJSON(p))
				case aisdk.ToolApprovalResponsePart:
					parts = append(parts, map[string]any{
						"type":       "tool-approval-response",
						"approvalId": p.ApprovalID,
						"approved":   p.Approved,
					})
				}
			}
			messages = append(messages, withOptions(map[string]any{
				"role":    "tool",
				"content": parts,
			}, v.ProviderOptions))
		}
	}
	return messages
}

func textPartJSON(p aisdk.TextPart) map[string]any {
	return withOptions(map[string]any{
		"type": "text",
		"text": p.Text,
	}, p.ProviderOptions)
}

func filePartJSON(p aisdk.FilePart) map[string]any {
	out := map[string]any{
		"type":      "file",
		"mediaType": p.MediaType,
		"data":      dataContentJSON(p.MediaType, p.Data),
	}
	if p.Filename != "" {
		out["filename"] = p.Filename
	}
	return withOptions(out, p.ProviderOptions)
}

// dataContentJSON turns inline bytes and bare base64 strings into data: URLs;
// URL references and already-encoded data URLs pass through.
func dataContentJSON(mediaType string, d aisdk.DataContent) map[string]any {
	switch {
	case d.URL != "":
		return map[string]any{"type": "url", "url": d.URL}
	case len(d.Bytes) > 0:
		encoded := base64.StdEncoding.EncodeToString(d.Bytes)
		return map[string]any{"type": "url", "url": "data:" + mediaType + ";base64," + encoded}
	case d.Base64 != "":
		if strings.HasPrefix(d.Base64, "data:") {
			return map[string]any{"type": "base64", "base64": d.Base64}
		}
		return map[string]any{"type": "url", "url": "data:" + mediaType + ";base64," + d.Base64}
	default:
		return map[string]any{"type": "base64", "base64": ""}
	}
}

func toolCallPartJSON(p aisdk.ToolCallPart) map[string]any {
	return withOptions(map[string]any{
		"type":             "tool-call",
		"toolCallId":       p.ToolCallID,
		"toolName":         p.ToolName,
		"input":            p.Input,
		"providerExecuted": p.ProviderExecuted,
	}, p.ProviderOptions)
}

func toolResultPartJSON(p aisdk.ToolResultPart) map[string]any {
	return withOptions(map[string]any{
		"type":       "tool-result",
		"toolCallId": p.ToolCallID,
		"toolName":   p.ToolName,
		"output":     toolResultOutputJSON(p.Output),
	}, p.ProviderOptions)
}

func toolResultOutputJSON(out aisdk.ToolResultOutput) map[string]any {
	switch out.Kind {
	case aisdk.ToolResultJSON:
		return map[string]any{"type": "json", "value": out.JSON}
	case aisdk.ToolResultErrorJSON:
		return map[string]any{"type": "error-json", "value": out.JSON}
	case aisdk.ToolResultErrorText:
		return map[string]any{"type": "error-text", "value": out.Text}
	case aisdk.ToolResultContentKind:
		items := make([]any, 0, len(out.Content))
		for _, item := range out.Content {
			if item.Text != "" {
				items = append(items, map[string]any{"type": "text", "text": item.Text})
				continue
			}
			items = append(items, map[string]any{
				"type":      "media",
				"data":      item.Data,
				"mediaType": item.MediaType,
			})
		}
		return map[string]any{"type": "content", "value": items}
	default:
		return map[string]any{"type": "text", "value": out.Text}
	}
}

func serializeTools(tools []aisdk.Tool) []any {
	out := make([]any, 0, len(tools))
	for _, tool := range tools {
		switch t := tool.(type) {
		case aisdk.FunctionTool:
			entry := map[string]any{
				"type":        "function",
				"name":        t.Name,
				"inputSchema": schemaOrEmpty(t.InputSchema),
			}
			if t.Description != "" {
				entry["description"] = t.Description
			}
			out = append(out, withOptions(entry, t.ProviderOptions))
		case aisdk.ProviderDefinedTool:
			out = append(out, map[string]any{
				"type": "provider",
				"id":   t.ID,
				"name": t.Name,
				"args": schemaOrEmpty(t.Args),
			})
		}
	}
	return out
}

func schemaOrEmpty(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{}
	}
	return schema
}

func serializeToolChoice(tc *aisdk.ToolChoice) any {
	if tc.Type == "tool" {
		return map[string]any{"tool": map[string]any{"name": tc.ToolName}}
	}
	return tc.Type
}

func serializeResponseFormat(rf *aisdk.ResponseFormat) map[string]any {
	if rf.Type != "json" {
		return map[string]any{"type": "text"}
	}
	out := map[string]any{"type": "json"}
	if rf.Schema != nil {
		out["schema"] = rf.Schema
	}
	if rf.Name != "" {
		out["name"] = rf.Name
	}
	if rf.Description != "" {
		out["description"] = rf.Description
	}
	return out
}

func providerOptionsJSON(po aisdk.ProviderOptions) map[string]any {
	out := make(map[string]any, len(po))
	for scope, kv := range po {
		out[scope] = kv
	}
	return out
}

func withOptions(entry map[string]any, po aisdk.ProviderOptions) map[string]any {
	if len(po) > 0 {
		entry["providerOptions"] = providerOptionsJSON(po)
	}
	return entry
}
