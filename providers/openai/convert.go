package openai

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/octanelabs/aisdk"
)

type convertParams struct {
	systemMode     string
	fileIDPrefixes []string
	scope          string
	store          bool
	mapping        toolNameMapping
}

type convertResult struct {
	input    []any
	warnings []aisdk.CallWarning
}

// partOption reads one provider option of a prompt part, checking the model
// scope first and the canonical "openai" scope second.
func partOption(po aisdk.ProviderOptions, scope, key string) any {
	for _, s := range []string{scope, "openai"} {
		section, ok := po[s]
		if !ok {
			continue
		}
		if v, ok := section[key]; ok {
			return v
		}
		if s == "openai" {
			break
		}
	}
	return nil
}

func partOptionString(po aisdk.ProviderOptions, scope, key string) string {
	s, _ := partOption(po, scope, key).(string)
	return s
}

func fileDataBase64(d aisdk.DataContent) string {
	if d.Base64 != "" {
		return d.Base64
	}
	if len(d.Bytes) > 0 {
		return base64.StdEncoding.EncodeToString(d.Bytes)
	}
	return ""
}

func dataURI(mediaType, b64 string) string {
	return "data:" + mediaType + ";base64," + b64
}

func isFileIDData(data string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(data, prefix) {
			return true
		}
	}
	return false
}

func itemReference(id string) map[string]any {
	return map[string]any{"type": "item_reference", "id": id}
}

// convertPrompt renders the prompt to the Responses input item list. With
// store enabled, previously returned items are sent as item references; with
// store disabled, reasoning and assistant content are replayed inline.
func convertPrompt(prompt []aisdk.Message, p convertParams) convertResult {
	var res convertResult
	// Reasoning items are coalesced by item ID so multi-part summaries
	// rebuild a single reasoning item.
	reasoningItems := map[string]map[string]any{}
	referenced := map[string]bool{}

	for _, msg := range prompt {
		switch m := msg.(type) {
		case aisdk.SystemMessage:
			switch p.systemMode {
			case systemModeRemove:
				res.warnings = append(res.warnings, aisdk.CallWarning{
					Type:    "other",
					Message: "system messages are removed for this model",
				})
			case systemModeDeveloper:
				res.input = append(res.input, map[string]any{"role": "developer", "content": m.Content})
			default:
				res.input = append(res.input, map[string]any{"role": "system", "content": m.Content})
			}

		case aisdk.UserMessage:
			res.convertUserMessage(m, p)

		case aisdk.AssistantMessage:
			res.convertAssistantMessage(m, p, reasoningItems, referenced)

		case aisdk.ToolMessage:
			res.convertToolMessage(m, p, referenced)
		}
	}
	return res
}

func (res *convertResult) convertUserMessage(m aisdk.UserMessage, p convertParams) {
	var content []any
	for idx, part := range m.Content {
		switch part := part.(type) {
		case aisdk.TextPart:
			content = append(content, map[string]any{"type": "input_text", "text": part.Text})

		case aisdk.FilePart:
			mediaType := part.MediaType
			switch {
			case strings.HasPrefix(mediaType, "image/"):
				if mediaType == "image/*" {
					mediaType = "image/jpeg"
				}
				entry := map[string]any{"type": "input_image"}
				if part.Data.IsURL() {
					entry["image_url"] = part.Data.URL
				} else {
					b64 := fileDataBase64(part.Data)
					if isFileIDData(b64, p.fileIDPrefixes) {
						entry["file_id"] = b64
					} else {
						entry["image_url"] = dataURI(mediaType, b64)
					}
				}
				content = append(content, entry)

			case mediaType == "application/pdf":
				if part.Data.IsURL() {
					content = append(content, map[string]any{
						"type": "input_file", "file_url": part.Data.URL,
					})
					continue
				}
				b64 := fileDataBase64(part.Data)
				if isFileIDData(b64, p.fileIDPrefixes) {
					content = append(content, map[string]any{
						"type": "input_file", "file_id": b64,
					})
					continue
				}
				filename := part.Filename
				if filename == "" {
					filename = fmt.Sprintf("part-%d.pdf", idx)
				}
				content = append(content, map[string]any{
					"type":      "input_file",
					"filename":  filename,
					"file_data": dataURI(mediaType, b64),
				})

			default:
				res.warnings = append(res.warnings, aisdk.CallWarning{
					Type:    "other",
					Message: "unsupported file media type: " + mediaType,
				})
			}
		}
	}
	if len(content) > 0 {
		res.input = append(res.input, map[string]any{"role": "user", "content": content})
	}
}

func (res *convertResult) convertAssistantMessage(
	m aisdk.AssistantMessage, p convertParams,
	reasoningItems map[string]map[string]any, referenced map[string]bool,
) {
	for _, part := range m.Content {
		switch part := part.(type) {
		case aisdk.TextPart:
			itemID := partOptionString(part.ProviderOptions, p.scope, "itemId")
			if p.store && itemID != "" {
				res.input = append(res.input, itemReference(itemID))
				continue
			}
			entry := map[string]any{
				"role":    "assistant",
				"content": []any{map[string]any{"type": "output_text", "text": part.Text}},
			}
			if itemID != "" {
				entry["id"] = itemID
			}
			res.input = append(res.input, entry)

		case aisdk.ReasoningPart:
			res.appendReasoningPart(part, p, reasoningItems, referenced)

		case aisdk.ToolCallPart:
			res.appendToolCallPart(part, p)

		case aisdk.ToolResultPart:
			// Provider-executed results only exist server side.
			if p.store {
				itemID := partOptionString(part.ProviderOptions, p.scope, "itemId")
				if itemID == "" {
					itemID = part.ToolCallID
				}
				res.input = append(res.input, itemReference(itemID))
				continue
			}
			res.warnings = append(res.warnings, aisdk.CallWarning{
				Type: "other",
				Message: "Results for OpenAI tool " + part.ToolName +
					" are not sent to the API when store is false",
			})
		}
	}
}

func (res *convertResult) appendReasoningPart(
	part aisdk.ReasoningPart, p convertParams,
	reasoningItems map[string]map[string]any, referenced map[string]bool,
) {
	itemID := partOptionString(part.ProviderOptions, p.scope, "itemId")
	if itemID == "" {
		res.warnings = append(res.warnings, aisdk.CallWarning{
			Type:    "other",
			Message: "Non-OpenAI reasoning parts are not supported. Skipping reasoning part: " + part.Text,
		})
		return
	}
	if p.store {
		if !referenced["reasoning:"+itemID] {
			referenced["reasoning:"+itemID] = true
			res.input = append(res.input, itemReference(itemID))
		}
		return
	}
	if existing, ok := reasoningItems[itemID]; ok {
		if part.Text == "" {
			res.warnings = append(res.warnings, aisdk.CallWarning{
				Type: "other",
				Message: "Cannot append empty reasoning part to existing reasoning sequence. " +
					"Skipping reasoning part: " + part.Text,
			})
			return
		}
		summary, _ := existing["summary"].([]any)
		existing["summary"] = append(summary, map[string]any{
			"type": "summary_text", "text": part.Text,
		})
		return
	}
	entry := map[string]any{
		"type":    "reasoning",
		"id":      itemID,
		"summary": []any{},
	}
	if part.Text != "" {
		entry["summary"] = []any{map[string]any{"type": "summary_text", "text": part.Text}}
	}
	if enc := partOption(part.ProviderOptions, p.scope, "reasoningEncryptedContent"); enc != nil {
		entry["encrypted_content"] = enc
	}
	reasoningItems[itemID] = entry
	res.input = append(res.input, entry)
}

func (res *convertResult) appendToolCallPart(part aisdk.ToolCallPart, p convertParams) {
	itemID := partOptionString(part.ProviderOptions, p.scope, "itemId")
	if part.ProviderExecuted {
		if p.store && itemID != "" {
			res.input = append(res.input, itemReference(itemID))
		}
		return
	}
	if p.store && itemID != "" {
		res.input = append(res.input, itemReference(itemID))
		return
	}

	var input map[string]any
	_ = json.Unmarshal([]byte(part.Input), &input)

	switch p.mapping.toProviderName(part.ToolName) {
	case "local_shell":
		action, _ := anyOf(input, "action").(map[string]any)
		wireAction := map[string]any{"type": "exec"}
		if action != nil {
			if v := anyOf(action, "command"); v != nil {
				wireAction["command"] = v
			}
			if v := anyOf(action, "timeoutMs", "timeout_ms"); v != nil {
				wireAction["timeout_ms"] = v
			}
			if v := anyOf(action, "user"); v != nil {
				wireAction["user"] = v
			}
			if v := anyOf(action, "workingDirectory", "working_directory"); v != nil {
				wireAction["working_directory"] = v
			}
			if v := anyOf(action, "env"); v != nil {
				wireAction["env"] = v
			}
		}
		entry := map[string]any{
			"type":    "local_shell_call",
			"call_id": part.ToolCallID,
			"action":  wireAction,
		}
		if itemID != "" {
			entry["id"] = itemID
		}
		res.input = append(res.input, entry)

	case "shell":
		action, _ := anyOf(input, "action").(map[string]any)
		wireAction := map[string]any{}
		if action != nil {
			if v := anyOf(action, "commands"); v != nil {
				wireAction["commands"] = v
			}
			if v := anyOf(action, "timeoutMs", "timeout_ms"); v != nil {
				wireAction["timeout_ms"] = v
			}
			if v := anyOf(action, "maxOutputLength", "max_output_length"); v != nil {
				wireAction["max_output_length"] = v
			}
		}
		entry := map[string]any{
			"type":    "shell_call",
			"call_id": part.ToolCallID,
			"status":  "completed",
			"action":  wireAction,
		}
		if itemID != "" {
			entry["id"] = itemID
		}
		res.input = append(res.input, entry)

	case "apply_patch":
		entry := map[string]any{
			"type":    "apply_patch_call",
			"call_id": part.ToolCallID,
			"status":  "completed",
		}
		if v := anyOf(input, "operation"); v != nil {
			entry["operation"] = v
		}
		if itemID != "" {
			entry["id"] = itemID
		}
		res.input = append(res.input, entry)

	default:
		entry := map[string]any{
			"type":      "function_call",
			"call_id":   part.ToolCallID,
			"name":      p.mapping.toProviderName(part.ToolName),
			"arguments": part.Input,
		}
		if itemID != "" {
			entry["id"] = itemID
		}
		res.input = append(res.input, entry)
	}
}

func (res *convertResult) convertToolMessage(m aisdk.ToolMessage, p convertParams, referenced map[string]bool) {
	for _, part := range m.Content {
		switch part := part.(type) {
		case aisdk.ToolApprovalResponsePart:
			if referenced["approval:"+part.ApprovalID] {
				continue
			}
			referenced["approval:"+part.ApprovalID] = true
			if p.store {
				res.input = append(res.input, itemReference(part.ApprovalID))
			}
			res.input = append(res.input, map[string]any{
				"type":                "mcp_approval_response",
				"approval_request_id": part.ApprovalID,
				"approve":             part.Approved,
			})

		case aisdk.ToolResultPart:
			res.appendToolResultPart(part, p)
		}
	}
}

func (res *convertResult) appendToolResultPart(part aisdk.ToolResultPart, p convertParams) {
	switch p.mapping.toProviderName(part.ToolName) {
	case "local_shell":
		payload, _ := part.Output.JSON.(map[string]any)
		res.input = append(res.input, map[string]any{
			"type":    "local_shell_call_output",
			"call_id": part.ToolCallID,
			"output":  anyOf(payload, "output"),
		})

	case "shell":
		payload, _ := part.Output.JSON.(map[string]any)
		var output []any
		if entries, ok := anyOf(payload, "output").([]any); ok {
			for _, raw := range entries {
				entry, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				mapped := map[string]any{
					"stdout": anyOf(entry, "stdout"),
					"stderr": anyOf(entry, "stderr"),
				}
				if outcome, ok := anyOf(entry, "outcome").(map[string]any); ok {
					if stringField(outcome, "type") == "timeout" {
						mapped["outcome"] = map[string]any{"type": "timeout"}
					} else {
						mapped["outcome"] = map[string]any{
							"type":      "exit",
							"exit_code": anyOf(outcome, "exitCode", "exit_code"),
						}
					}
				}
				output = append(output, mapped)
			}
		}
		res.input = append(res.input, map[string]any{
			"type":    "shell_call_output",
			"call_id": part.ToolCallID,
			"output":  output,
		})

	case "apply_patch":
		payload, _ := part.Output.JSON.(map[string]any)
		entry := map[string]any{
			"type":    "apply_patch_call_output",
			"call_id": part.ToolCallID,
			"status":  anyOf(payload, "status"),
		}
		if v := anyOf(payload, "output"); v != nil {
			entry["output"] = v
		}
		res.input = append(res.input, entry)

	default:
		res.input = append(res.input, map[string]any{
			"type":    "function_call_output",
			"call_id": part.ToolCallID,
			"output":  toolOutputValue(part.Output),
		})
	}
}

// toolOutputValue renders a tool result output for function_call_output:
// text stays a string, JSON is stringified, content lists become typed
// input parts.
func toolOutputValue(output aisdk.ToolResultOutput) any {
	switch output.Kind {
	case aisdk.ToolResultText, aisdk.ToolResultErrorText:
		return output.Text
	case aisdk.ToolResultJSON, aisdk.ToolResultErrorJSON:
		return jsonString(output.JSON)
	case aisdk.ToolResultContentKind:
		var parts []any
		for _, item := range output.Content {
			switch {
			case item.Data != "" && strings.HasPrefix(item.MediaType, "image/"):
				parts = append(parts, map[string]any{
					"type":      "input_image",
					"image_url": dataURI(item.MediaType, item.Data),
				})
			case item.Data != "":
				parts = append(parts, map[string]any{
					"type":      "input_file",
					"filename":  "data",
					"file_data": dataURI(item.MediaType, item.Data),
				})
			default:
				parts = append(parts, map[string]any{"type": "input_text", "text": item.Text})
			}
		}
		return parts
	}
	return ""
}

func anyOf(m map[string]any, keys ...string) any {
	if m == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// extractApprovalRequestIDs maps approval request IDs back to the tool call
// IDs minted when the approval requests were first streamed.
func extractApprovalRequestIDs(prompt []aisdk.Message, scope string) map[string]string {
	out := map[string]string{}
	for _, msg := range prompt {
		assistant, ok := msg.(aisdk.AssistantMessage)
		if !ok {
			continue
		}
		for _, part := range assistant.Content {
			call, ok := part.(aisdk.ToolCallPart)
			if !ok {
				continue
			}
			if id := partOptionString(call.ProviderOptions, scope, "approvalRequestId"); id != "" {
				out[id] = call.ToolCallID
			}
		}
	}
	return out
}
