package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
)

// parseContent decodes the content section of a non-streaming gateway
// response. A single object is accepted as a one-element list.
func parseContent(value any) ([]aisdk.Content, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]aisdk.Content, 0, len(v))
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, contentError(item)
			}
			content, err := parseContentItem(entry)
			if err != nil {
				return nil, err
			}
			out = append(out, content)
		}
		return out, nil
	case map[string]any:
		content, err := parseContentItem(v)
		if err != nil {
			return nil, err
		}
		return []aisdk.Content{content}, nil
	default:
		return nil, contentError(value)
	}
}

func parseContentItem(entry map[string]any) (aisdk.Content, error) {
	kind, _ := entry["type"].(string)
	switch kind {
	case "text":
		return aisdk.TextContent{
			Text:             stringField(entry, "text"),
			ProviderMetadata: parseProviderMetadata(entry["provider_metadata"]),
		}, nil
	case "reasoning":
		return aisdk.ReasoningContent{
			Text:             stringField(entry, "text"),
			ProviderMetadata: parseProviderMetadata(entry["provider_metadata"]),
		}, nil
	case "file":
		return aisdk.FileContent{
			MediaType: stringField(entry, "media_type"),
			Data:      stringField(entry, "data"),
		}, nil
	case "source-url":
		return aisdk.SourceContent{
			ID:               stringField(entry, "id"),
			URL:              stringField(entry, "url"),
			Title:            stringField(entry, "title"),
			ProviderMetadata: parseProviderMetadata(entry["provider_metadata"]),
		}, nil
	case "tool-call":
		executed, _ := entry["providerExecuted"].(bool)
		return aisdk.ToolCallContent{
			ToolCallID:       stringField(entry, "toolCallId"),
			ToolName:         stringField(entry, "toolName"),
			Input:            inputString(entry["input"]),
			ProviderExecuted: executed,
			ProviderMetadata: parseProviderMetadata(entry["providerMetadata"]),
		}, nil
	case "tool-approval-request":
		return aisdk.ToolApprovalRequestContent{
			ApprovalID:       stringField(entry, "approvalId"),
			ToolCallID:       stringField(entry, "toolCallId"),
			ProviderMetadata: parseProviderMetadata(entry["provider_metadata"]),
		}, nil
	case "tool-result":
		isError, _ := entry["is_error"].(bool)
		return aisdk.ToolResultContent{
			ToolCallID:       stringField(entry, "tool_call_id"),
			ToolName:         stringField(entry, "tool_name"),
			Result:           entry["result"],
			IsError:          isError,
			ProviderMetadata: parseProviderMetadata(entry["provider_metadata"]),
		}, nil
	default:
		return nil, contentError(entry)
	}
}

func contentError(value any) error {
	return &aisdk.Error{
		Kind:    aisdk.ErrSerde,
		Message: fmt.Sprintf("unrecognized gateway content: %v", value),
	}
}

func parseFinishReason(value any) aisdk.FinishReason {
	s, ok := value.(string)
	if !ok {
		return aisdk.FinishUnknown
	}
	switch strings.ToLower(s) {
	case "stop":
		return aisdk.FinishStop
	case "length":
		return aisdk.FinishLength
	case "content_filter", "content-filter":
		return aisdk.FinishContentFilter
	case "tool-calls", "tool_calls":
		return aisdk.FinishToolCalls
	case "error":
		return aisdk.FinishError
	default:
		return aisdk.FinishOther
	}
}

func parseUsage(value any) aisdk.Usage {
	var usage aisdk.Usage
	section, ok := value.(map[string]any)
	if !ok {
		return usage
	}
	usage.InputTokens = tokenField(section, "prompt_tokens")
	usage.OutputTokens = tokenField(section, "completion_tokens")
	usage.TotalTokens = tokenField(section, "total_tokens")
	usage.ReasoningTokens = tokenField(section, "reasoning_tokens")
	usage.CachedInputTokens = tokenField(section, "cached_input_tokens")
	return usage
}

func tokenField(section map[string]any, key string) *int64 {
	if n, ok := section[key].(float64); ok {
		return aisdk.Int64(int64(n))
	}
	return nil
}

// parseProviderMetadata keeps only well-formed scope sections; anything else
// is dropped, and an empty result collapses to nil.
func parseProviderMetadata(value any) aisdk.ProviderMetadata {
	section, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	out := aisdk.ProviderMetadata{}
	for scope, v := range section {
		if inner, ok := v.(map[string]any); ok {
			out[scope] = inner
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseCallWarnings(value any) []aisdk.CallWarning {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	var warnings []aisdk.CallWarning
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := entry["type"].(string)
		switch kind {
		case "unsupported-setting":
			setting, ok := entry["setting"].(string)
			if !ok {
				continue
			}
			warnings = append(warnings, aisdk.CallWarning{
				Type:    kind,
				Setting: setting,
				Details: stringField(entry, "details"),
			})
		case "unsupported-tool":
			tool, ok := entry["tool"].(map[string]any)
			if !ok {
				continue
			}
			name, ok := tool["name"].(string)
			if !ok {
				continue
			}
			warnings = append(warnings, aisdk.CallWarning{
				Type:    kind,
				Tool:    name,
				Details: stringField(entry, "details"),
			})
		case "other":
			message, ok := entry["message"].(string)
			if !ok {
				continue
			}
			warnings = append(warnings, aisdk.CallWarning{Type: kind, Message: message})
		}
	}
	return warnings
}

// parseResponseMetadata accepts the timestamp as RFC 3339 text or epoch
// milliseconds.
func parseResponseMetadata(entry map[string]any) aisdk.ResponseMetadata {
	meta := aisdk.ResponseMetadata{
		ID:      stringField(entry, "id"),
		ModelID: stringField(entry, "modelId"),
	}
	switch ts := entry["timestamp"].(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			meta.Timestamp = parsed
		}
	case float64:
		meta.Timestamp = time.UnixMilli(int64(ts)).UTC()
	}
	return meta
}

func stringField(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}

func firstField(entry map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := entry[key]; ok {
			return v
		}
	}
	return nil
}

// inputString normalizes a tool-call input to the stringified-JSON form the
// canonical types carry.
func inputString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
