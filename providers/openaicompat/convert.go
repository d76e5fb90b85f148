package openaicompat

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/octanelabs/aisdk"
)

func scopeMetadata(scope string, opts aisdk.ProviderOptions) map[string]any {
	if opts == nil {
		return nil
	}
	return opts[scope]
}

func applyMetadata(obj map[string]any, meta map[string]any) {
	for k, v := range meta {
		obj[k] = v
	}
}

// convertChatMessages flattens the prompt into OpenAI chat messages.
// Provider options under the provider's own scope pass through onto the
// message objects.
func convertChatMessages(scope string, prompt []aisdk.Message) []map[string]any {
	var messages []map[string]any
	for _, m := range prompt {
		switch msg := m.(type) {
		case aisdk.SystemMessage:
			obj := map[string]any{"role": "system", "content": msg.Content}
			applyMetadata(obj, scopeMetadata(scope, msg.ProviderOptions))
			messages = append(messages, obj)

		case aisdk.UserMessage:
			if len(msg.Content) == 1 {
				if text, ok := msg.Content[0].(aisdk.TextPart); ok {
					obj := map[string]any{"role": "user", "content": text.Text}
					applyMetadata(obj, scopeMetadata(scope, msg.ProviderOptions))
					applyMetadata(obj, scopeMetadata(scope, text.ProviderOptions))
					messages = append(messages, obj)
					continue
				}
			}
			var parts []map[string]any
			for _, part := range msg.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					obj := map[string]any{"type": "text", "text": p.Text}
					applyMetadata(obj, scopeMetadata(scope, p.ProviderOptions))
					parts = append(parts, obj)
				case aisdk.FilePart:
					if !strings.HasPrefix(p.MediaType, "image/") {
						continue
					}
					obj := map[string]any{
						"type":      "image_url",
						"image_url": map[string]any{"url": fileURL(p)},
					}
					applyMetadata(obj, scopeMetadata(scope, p.ProviderOptions))
					parts = append(parts, obj)
				}
			}
			obj := map[string]any{"role": "user", "content": parts}
			applyMetadata(obj, scopeMetadata(scope, msg.ProviderOptions))
			messages = append(messages, obj)

		case aisdk.AssistantMessage:
			var text strings.Builder
			var toolCalls []map[string]any
			for _, part := range msg.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					text.WriteString(p.Text)
				case aisdk.ReasoningPart:
					text.WriteString(p.Text)
				case aisdk.ToolCallPart:
					toolCalls = append(toolCalls, map[string]any{
						"type": "function",
						"id":   p.ToolCallID,
						"function": map[string]any{
							"name":      p.ToolName,
							"arguments": p.Input,
						},
					})
				}
			}
			obj := map[string]any{"role": "assistant"}
			if text.Len() > 0 {
				obj["content"] = text.String()
			}
			if len(toolCalls) > 0 {
				obj["tool_calls"] = toolCalls
			}
			applyMetadata(obj, scopeMetadata(scope, msg.ProviderOptions))
			messages = append(messages, obj)

		case aisdk.ToolMessage:
			for _, part := range msg.Content {
				tr, ok := part.(aisdk.ToolResultPart)
				if !ok {
					continue
				}
				obj := map[string]any{
					"role":         "tool",
					"tool_call_id": tr.ToolCallID,
					"content":      toolResultText(tr.Output),
				}
				applyMetadata(obj, scopeMetadata(scope, msg.ProviderOptions))
				messages = append(messages, obj)
			}
		}
	}
	return messages
}

func toolResultText(out aisdk.ToolResultOutput) string {
	switch out.Kind {
	case aisdk.ToolResultText, aisdk.ToolResultErrorText:
		return out.Text
	case aisdk.ToolResultJSON, aisdk.ToolResultErrorJSON:
		raw, err := json.Marshal(out.JSON)
		if err != nil {
			return ""
		}
		return string(raw)
	case aisdk.ToolResultContentKind:
		raw, err := json.Marshal(out.Content)
		if err != nil {
			return ""
		}
		return string(raw)
	}
	return ""
}

func fileURL(p aisdk.FilePart) string {
	switch {
	case p.Data.URL != "":
		return p.Data.URL
	case p.Data.Base64 != "":
		return "data:" + p.MediaType + ";base64," + p.Data.Base64
	default:
		return "data:" + p.MediaType + ";base64," + base64.StdEncoding.EncodeToString(p.Data.Bytes)
	}
}

// convertCompletionPrompt renders the prompt as a labeled transcript for the
// legacy completions endpoint. A leading system message becomes a preamble;
// anything the endpoint cannot express is an error.
func convertCompletionPrompt(prompt []aisdk.Message, userLabel, assistantLabel string) (string, []string, error) {
	var text strings.Builder

	idx := 0
	if len(prompt) > 0 {
		if sys, ok := prompt[0].(aisdk.SystemMessage); ok {
			text.WriteString(sys.Content)
			text.WriteString("\n\n")
			idx = 1
		}
	}

	for _, m := range prompt[idx:] {
		switch msg := m.(type) {
		case aisdk.SystemMessage:
			return "", nil, aisdk.UpstreamError(400, fmt.Sprintf("Unexpected system message in prompt: %s", msg.Content), nil)
		case aisdk.UserMessage:
			var buf strings.Builder
			for _, part := range msg.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					buf.WriteString(p.Text)
				case aisdk.FilePart:
					return "", nil, aisdk.UpstreamError(400, "Unsupported functionality: file parts in completion prompt", nil)
				}
			}
			text.WriteString(userLabel)
			text.WriteString(":\n")
			text.WriteString(buf.String())
			text.WriteString("\n\n")
		case aisdk.AssistantMessage:
			var buf strings.Builder
			for _, part := range msg.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					buf.WriteString(p.Text)
				case aisdk.ReasoningPart:
					buf.WriteString(p.Text)
				case aisdk.FilePart:
					return "", nil, aisdk.UpstreamError(400, "Unsupported functionality: file parts in assistant message", nil)
				default:
					return "", nil, aisdk.UpstreamError(400, "Unsupported functionality: tool-call messages in completion prompt", nil)
				}
			}
			text.WriteString(assistantLabel)
			text.WriteString(":\n")
			text.WriteString(buf.String())
			text.WriteString("\n\n")
		case aisdk.ToolMessage:
			return "", nil, aisdk.UpstreamError(400, "Unsupported functionality: tool messages in completion prompt", nil)
		}
	}

	// Leave an open assistant turn for the model to complete.
	text.WriteString(assistantLabel)
	text.WriteString(":\n")

	return text.String(), []string{"\n" + userLabel + ":"}, nil
}
