package google

import (
	"encoding/base64"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
)

type converted struct {
	systemInstruction map[string]any
	contents          []map[string]any
	warnings          []aisdk.CallWarning
}

// convertPrompt maps the neutral prompt onto Gemini contents. Tool results
// travel as user-role functionResponse parts, reasoning as thought-flagged
// text parts. Gemma models reject systemInstruction, so system text folds
// into the first user turn instead.
func convertPrompt(prompt []aisdk.Message, scopes []string, gemma bool) converted {
	var out converted
	var systemParts []map[string]any

	for _, msg := range prompt {
		switch m := msg.(type) {
		case aisdk.SystemMessage:
			if m.Content != "" {
				systemParts = append(systemParts, map[string]any{"text": m.Content})
			}

		case aisdk.UserMessage:
			var parts []map[string]any
			for _, part := range m.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					parts = append(parts, map[string]any{"text": p.Text})
				case aisdk.FilePart:
					entry, warning := filePart(p)
					if entry != nil {
						parts = append(parts, entry)
					}
					if warning != nil {
						out.warnings = append(out.warnings, *warning)
					}
				}
			}
			if len(parts) > 0 {
				out.contents = append(out.contents, map[string]any{"role": "user", "parts": parts})
			}

		case aisdk.AssistantMessage:
			var parts []map[string]any
			for _, part := range m.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					entry := map[string]any{"text": p.Text}
					if sig := thoughtSignature(p.ProviderOptions, scopes); sig != "" {
						entry["thoughtSignature"] = sig
					}
					parts = append(parts, entry)
				case aisdk.ReasoningPart:
					if p.Text == "" {
						continue
					}
					entry := map[string]any{"text": p.Text, "thought": true}
					if sig := thoughtSignature(p.ProviderOptions, scopes); sig != "" {
						entry["thoughtSignature"] = sig
					}
					parts = append(parts, entry)
				case aisdk.ToolCallPart:
					args, ok := jsonx.Parse(p.Input)
					if !ok {
						args = map[string]any{}
					}
					entry := map[string]any{
						"functionCall": map[string]any{"name": p.ToolName, "args": args},
					}
					if sig := thoughtSignature(p.ProviderOptions, scopes); sig != "" {
						entry["thoughtSignature"] = sig
					}
					parts = append(parts, entry)
				case aisdk.FilePart:
					entry, warning := filePart(p)
					if entry != nil {
						parts = append(parts, entry)
					}
					if warning != nil {
						out.warnings = append(out.warnings, *warning)
					}
				}
			}
			if len(parts) > 0 {
				out.contents = append(out.contents, map[string]any{"role": "model", "parts": parts})
			}

		case aisdk.ToolMessage:
			var parts []map[string]any
			for _, part := range m.Content {
				p, ok := part.(aisdk.ToolResultPart)
				if !ok {
					continue
				}
				parts = append(parts, map[string]any{
					"functionResponse": map[string]any{
						"name": p.ToolName,
						"response": map[string]any{
							"name":    p.ToolName,
							"content": toolResultValue(p.Output),
						},
					},
				})
			}
			if len(parts) > 0 {
				out.contents = append(out.contents, map[string]any{"role": "user", "parts": parts})
			}
		}
	}

	if len(systemParts) > 0 {
		if gemma {
			foldSystemIntoFirstUserTurn(&out, systemParts)
		} else {
			out.systemInstruction = map[string]any{"parts": systemParts}
		}
	}
	return out
}

func filePart(p aisdk.FilePart) (map[string]any, *aisdk.CallWarning) {
	if p.Data.IsURL() {
		return map[string]any{
			"fileData": map[string]any{"mimeType": p.MediaType, "fileUri": p.Data.URL},
		}, nil
	}
	data := p.Data.Base64
	if data == "" && len(p.Data.Bytes) > 0 {
		data = base64.StdEncoding.EncodeToString(p.Data.Bytes)
	}
	if data == "" {
		w := aisdk.UnsupportedSettingWarning("file", "file part has no data")
		return nil, &w
	}
	return map[string]any{
		"inlineData": map[string]any{"mimeType": p.MediaType, "data": data},
	}, nil
}

func toolResultValue(output aisdk.ToolResultOutput) any {
	switch output.Kind {
	case aisdk.ToolResultText, aisdk.ToolResultErrorText:
		return output.Text
	case aisdk.ToolResultJSON, aisdk.ToolResultErrorJSON:
		return output.JSON
	case aisdk.ToolResultContentKind:
		items := make([]map[string]any, 0, len(output.Content))
		for _, item := range output.Content {
			if item.Text != "" {
				items = append(items, map[string]any{"text": item.Text})
			} else if item.Data != "" {
				items = append(items, map[string]any{
					"inlineData": map[string]any{"mimeType": item.MediaType, "data": item.Data},
				})
			}
		}
		return items
	}
	return output.Text
}

func foldSystemIntoFirstUserTurn(out *converted, systemParts []map[string]any) {
	for _, content := range out.contents {
		if content["role"] != "user" {
			continue
		}
		existing, _ := content["parts"].([]map[string]any)
		content["parts"] = append(systemParts, existing...)
		return
	}
	out.contents = append([]map[string]any{{"role": "user", "parts": systemParts}}, out.contents...)
}
