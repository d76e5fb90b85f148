package openai

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/octanelabs/aisdk"
)

// providerToolData is the normalized view of one provider-executed tool
// output item, shared between the streaming and non-streaming paths.
type providerToolData struct {
	toolType          string
	toolCallID        string
	itemID            string
	providerExecuted  bool
	dynamic           bool
	toolName          string // only set for MCP ("mcp.{name}")
	input             any
	result            any
	isError           bool
	approvalRequest   bool
	approvalRequestID string
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// mapWebSearchOutput converts a web_search_call action into the camelCase
// result payload.
func mapWebSearchOutput(item map[string]any) any {
	action, ok := item["action"].(map[string]any)
	if !ok {
		return nil
	}
	switch stringField(action, "type") {
	case "search":
		out := map[string]any{"type": "search"}
		if q, ok := action["query"]; ok && q != nil {
			out["query"] = q
		}
		result := map[string]any{"action": out}
		if sources, ok := action["sources"]; ok && sources != nil {
			result["sources"] = sources
		}
		return result
	case "open_page":
		return map[string]any{"action": map[string]any{
			"type": "openPage",
			"url":  stringField(action, "url"),
		}}
	case "find_in_page":
		return map[string]any{"action": map[string]any{
			"type":    "findInPage",
			"url":     stringField(action, "url"),
			"pattern": stringField(action, "pattern"),
		}}
	}
	return nil
}

// providerToolDataFromOutputItem extracts tool call and result data from a
// completed output item, when the item belongs to a provider-executed tool.
func providerToolDataFromOutputItem(item map[string]any) (*providerToolData, bool) {
	itemType := stringField(item, "type")
	itemID := stringField(item, "id")

	d := &providerToolData{
		toolCallID:       itemID,
		itemID:           itemID,
		providerExecuted: true,
	}

	switch itemType {
	case "web_search_call":
		d.toolType = "web_search"
		d.result = mapWebSearchOutput(item)

	case "file_search_call":
		d.toolType = "file_search"
		result := map[string]any{}
		if queries, ok := item["queries"]; ok && queries != nil {
			result["queries"] = queries
		}
		if rawResults, ok := item["results"].([]any); ok {
			var results []map[string]any
			for _, raw := range rawResults {
				entry, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				mapped := map[string]any{}
				if v, ok := entry["attributes"]; ok && v != nil {
					mapped["attributes"] = v
				}
				if v, ok := entry["file_id"]; ok && v != nil {
					mapped["fileId"] = v
				}
				for _, key := range []string{"filename", "score", "text"} {
					if v, ok := entry[key]; ok && v != nil {
						mapped[key] = v
					}
				}
				results = append(results, mapped)
			}
			result["results"] = results
		}
		d.result = result

	case "code_interpreter_call":
		d.toolType = "code_interpreter"
		d.input = map[string]any{
			"code":        item["code"],
			"containerId": item["container_id"],
		}
		d.result = map[string]any{"outputs": item["outputs"]}

	case "image_generation_call":
		d.toolType = "image_generation"
		d.result = map[string]any{"result": item["result"]}

	case "computer_call":
		d.toolType = "computer_use"
		d.input = ""
		d.result = map[string]any{
			"type":   "computer_use_tool_result",
			"status": item["status"],
		}

	case "local_shell_call":
		d.toolType = "local_shell"
		d.providerExecuted = false
		if callID := stringField(item, "call_id"); callID != "" {
			d.toolCallID = callID
		}
		action, _ := item["action"].(map[string]any)
		input := map[string]any{"action": map[string]any{}}
		if action != nil {
			inner := input["action"].(map[string]any)
			if v, ok := action["command"]; ok && v != nil {
				inner["command"] = v
			}
			if v, ok := action["timeout_ms"]; ok && v != nil {
				inner["timeoutMs"] = v
			}
			for _, key := range []string{"user", "env"} {
				if v, ok := action[key]; ok && v != nil {
					inner[key] = v
				}
			}
			if v, ok := action["working_directory"]; ok && v != nil {
				inner["workingDirectory"] = v
			}
		}
		d.input = input

	case "shell_call":
		d.toolType = "shell"
		if callID := stringField(item, "call_id"); callID != "" {
			d.toolCallID = callID
		}
		action, _ := item["action"].(map[string]any)
		inner := map[string]any{}
		if action != nil {
			if v, ok := action["commands"]; ok && v != nil {
				inner["commands"] = v
			}
			if v, ok := action["timeout_ms"]; ok && v != nil {
				inner["timeoutMs"] = v
			}
			if v, ok := action["max_output_length"]; ok && v != nil {
				inner["maxOutputLength"] = v
			}
		}
		d.input = map[string]any{"action": inner}

	case "apply_patch_call":
		d.toolType = "apply_patch"
		d.providerExecuted = false
		if callID := stringField(item, "call_id"); callID != "" {
			d.toolCallID = callID
		}
		d.input = map[string]any{
			"callId":    d.toolCallID,
			"operation": item["operation"],
		}

	case "mcp_call":
		d.toolType = "mcp"
		d.dynamic = true
		d.toolName = "mcp." + stringField(item, "name")
		d.input = item["arguments"]
		result := map[string]any{
			"type":        "call",
			"serverLabel": item["server_label"],
			"name":        item["name"],
			"arguments":   item["arguments"],
		}
		if v, ok := item["output"]; ok && v != nil {
			result["output"] = v
		}
		if v, ok := item["error"]; ok && v != nil {
			result["error"] = v
			d.isError = true
		}
		d.result = result
		d.approvalRequestID = stringField(item, "approval_request_id")

	case "mcp_approval_request":
		d.toolType = "mcp"
		d.dynamic = true
		d.toolName = "mcp." + stringField(item, "name")
		d.input = item["arguments"]
		d.approvalRequest = true
		d.approvalRequestID = stringField(item, "approval_request_id")
		if d.approvalRequestID == "" {
			d.approvalRequestID = itemID
		}

	default:
		return nil, false
	}

	return d, true
}

func (d *providerToolData) inputString() string {
	switch v := d.input.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return jsonString(v)
	}
}

func (d *providerToolData) displayName(mapping toolNameMapping) string {
	if d.toolName != "" {
		return d.toolName
	}
	return mapping.toCustomName(d.toolType)
}

func (d *providerToolData) itemMetadata() aisdk.ProviderMetadata {
	if d.itemID == "" {
		return nil
	}
	return aisdk.ProviderMetadata{"openai": {"itemId": d.itemID}}
}

// toolCallMetadataTypes are the tool families whose tool-call parts carry
// the originating item ID.
var toolCallMetadataTypes = map[string]struct{}{
	"apply_patch": {}, "local_shell": {}, "shell": {},
}

// providerToolParts converts the normalized data into stream parts. The
// approvals map remaps follow-up MCP calls onto the tool call ID minted for
// their approval request.
type providerToolParts struct {
	toolCall *aisdk.ToolCall
	approval *aisdk.ToolApprovalRequest
	result   *aisdk.ToolResult
}

func (d *providerToolData) parts(mapping toolNameMapping, approvals map[string]string) providerToolParts {
	name := d.displayName(mapping)

	if d.approvalRequest {
		callID := uuid.NewString()
		if approvals != nil {
			approvals[d.approvalRequestID] = callID
		}
		return providerToolParts{
			toolCall: &aisdk.ToolCall{
				ToolCallID:       callID,
				ToolName:         name,
				Input:            d.inputString(),
				ProviderExecuted: true,
				Dynamic:          d.dynamic,
				ProviderMetadata: d.itemMetadata(),
			},
			approval: &aisdk.ToolApprovalRequest{
				ApprovalID:       d.approvalRequestID,
				ToolCallID:       callID,
				ProviderMetadata: d.itemMetadata(),
			},
		}
	}

	callID := d.toolCallID
	if d.approvalRequestID != "" {
		if mapped, ok := approvals[d.approvalRequestID]; ok {
			callID = mapped
		}
	}

	out := providerToolParts{}
	call := &aisdk.ToolCall{
		ToolCallID:       callID,
		ToolName:         name,
		Input:            d.inputString(),
		ProviderExecuted: d.providerExecuted,
		Dynamic:          d.dynamic,
	}
	if _, ok := toolCallMetadataTypes[d.toolType]; ok {
		call.ProviderMetadata = d.itemMetadata()
	}
	out.toolCall = call

	if d.result != nil {
		result := &aisdk.ToolResult{
			ToolCallID: callID,
			ToolName:   name,
			Result:     d.result,
			IsError:    d.isError,
		}
		if d.toolType == "mcp" {
			result.ProviderMetadata = d.itemMetadata()
		}
		out.result = result
	}
	return out
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
