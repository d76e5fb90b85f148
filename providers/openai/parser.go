package openai

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/octanelabs/aisdk/eventmapper"
	"github.com/octanelabs/aisdk/sse"
)

// chunkParser maps Responses SSE frames onto provider events. Function-call
// argument deltas can arrive before their output item; they are buffered per
// output index until the tool call opens.
type chunkParser struct {
	toolCalls map[int]string
	ended     map[int]bool
	pending   map[int][]string
}

func newChunkParser() *chunkParser {
	return &chunkParser{
		toolCalls: map[int]string{},
		ended:     map[int]bool{},
		pending:   map[int][]string{},
	}
}

func dataEvent(key string, value any) eventmapper.Event {
	return eventmapper.Event{Type: eventmapper.DataEvent, Key: key, Value: value}
}

func intField(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

func mapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func (p *chunkParser) ParseFrame(ev sse.Event) ([]eventmapper.Event, error) {
	data := bytes.TrimSpace(ev.Data)
	if len(data) == 0 || string(data) == "[DONE]" {
		return nil, nil
	}

	var val map[string]any
	if err := json.Unmarshal(data, &val); err != nil {
		return []eventmapper.Event{
			{Type: eventmapper.ErrorEvent, Message: "Invalid JSON chunk: " + err.Error()},
		}, nil
	}

	events := []eventmapper.Event{{Type: eventmapper.RawEvent, Raw: val}}

	typ, ok := val["type"].(string)
	if !ok {
		return append(events, eventmapper.Event{
			Type: eventmapper.ErrorEvent, Message: "Invalid chunk: missing type",
		}), nil
	}

	return append(events, p.handle(typ, val)...), nil
}

func (p *chunkParser) handle(typ string, val map[string]any) []eventmapper.Event {
	switch typ {
	case "response.created":
		resp := mapField(val, "response")
		if resp == nil {
			return nil
		}
		meta := map[string]any{
			"id":    stringField(resp, "id"),
			"model": stringField(resp, "model"),
		}
		if created, ok := resp["created_at"].(float64); ok {
			meta["created_at_ms"] = int64(created) * 1000
		}
		return []eventmapper.Event{dataEvent("openai.response_metadata", meta)}

	case "response.output_text.delta":
		delta := stringField(val, "delta")
		if delta == "" {
			return nil
		}
		return []eventmapper.Event{dataEvent("openai.text_delta", map[string]any{
			"item_id":  stringField(val, "item_id"),
			"delta":    delta,
			"logprobs": val["logprobs"],
		})}

	case "response.output_text.annotation.added":
		return []eventmapper.Event{dataEvent("openai.text_annotation", map[string]any{
			"item_id":    stringField(val, "item_id"),
			"annotation": val["annotation"],
		})}

	case "response.output_item.added":
		return p.handleItemAdded(intField(val, "output_index"), mapField(val, "item"))

	case "response.output_item.done":
		return p.handleItemDone(intField(val, "output_index"), mapField(val, "item"))

	case "response.function_call_arguments.delta":
		idx := intField(val, "output_index")
		delta := stringField(val, "delta")
		if callID, ok := p.toolCalls[idx]; ok {
			return []eventmapper.Event{{
				Type: eventmapper.ToolCallDeltaEvent, ID: callID, ArgsJSON: delta,
			}}
		}
		p.pending[idx] = append(p.pending[idx], delta)
		return nil

	case "response.code_interpreter_call_code.delta":
		return []eventmapper.Event{dataEvent("openai.code_interpreter_call.code_delta", map[string]any{
			"output_index": intField(val, "output_index"),
			"delta":        stringField(val, "delta"),
		})}

	case "response.code_interpreter_call_code.done":
		return []eventmapper.Event{dataEvent("openai.code_interpreter_call.code_done", map[string]any{
			"output_index": intField(val, "output_index"),
			"code":         val["code"],
		})}

	case "response.image_generation_call.partial_image":
		return []eventmapper.Event{dataEvent("openai.image_generation_call.partial", map[string]any{
			"tool_call_id":      stringField(val, "item_id"),
			"partial_image_b64": stringField(val, "partial_image_b64"),
		})}

	case "response.apply_patch_call_operation_diff.delta":
		return []eventmapper.Event{dataEvent("openai.apply_patch_call.diff_delta", map[string]any{
			"output_index": intField(val, "output_index"),
			"delta":        stringField(val, "delta"),
		})}

	case "response.apply_patch_call_operation_diff.done":
		return []eventmapper.Event{dataEvent("openai.apply_patch_call.diff_done", map[string]any{
			"output_index": intField(val, "output_index"),
			"diff":         val["diff"],
		})}

	case "response.reasoning_summary_part.added":
		return []eventmapper.Event{dataEvent("openai.reasoning_summary_added", map[string]any{
			"item_id":       stringField(val, "item_id"),
			"summary_index": intField(val, "summary_index"),
		})}

	case "response.reasoning_summary_text.delta":
		return []eventmapper.Event{dataEvent("openai.reasoning_summary_delta", map[string]any{
			"item_id":       stringField(val, "item_id"),
			"summary_index": intField(val, "summary_index"),
			"delta":         stringField(val, "delta"),
		})}

	case "response.reasoning_summary_part.done":
		return []eventmapper.Event{dataEvent("openai.reasoning_summary_done", map[string]any{
			"item_id":       stringField(val, "item_id"),
			"summary_index": intField(val, "summary_index"),
		})}

	case "response.completed", "response.incomplete":
		resp := mapField(val, "response")
		var events []eventmapper.Event
		if usage := mapField(resp, "usage"); usage != nil {
			events = append(events,
				eventmapper.Event{Type: eventmapper.UsageEvent, Usage: parseTokenUsage(usage)},
				dataEvent("usage", usage),
			)
		}
		incompleteReason := ""
		if details := mapField(resp, "incomplete_details"); details != nil {
			incompleteReason = stringField(details, "reason")
		}
		events = append(events,
			dataEvent("openai.finish", map[string]any{"incomplete_reason": incompleteReason}),
			dataEvent("openai.response", map[string]any{
				"id":           stringField(resp, "id"),
				"service_tier": stringField(resp, "service_tier"),
			}),
		)
		events = append(events, p.drainToolCalls()...)
		return append(events, eventmapper.Event{Type: eventmapper.DoneEvent})

	case "response.failed":
		resp := mapField(val, "response")
		events := []eventmapper.Event{
			dataEvent("openai.failed", map[string]any{"id": stringField(resp, "id")}),
		}
		events = append(events, p.drainToolCalls()...)
		return append(events, eventmapper.Event{Type: eventmapper.DoneEvent})

	case "error":
		return []eventmapper.Event{dataEvent("openai.error", val)}
	}
	return nil
}

func (p *chunkParser) handleItemAdded(idx int, item map[string]any) []eventmapper.Event {
	if item == nil {
		return nil
	}
	itemID := stringField(item, "id")

	switch itemType := stringField(item, "type"); itemType {
	case "function_call":
		callID := stringField(item, "call_id")
		events := []eventmapper.Event{
			dataEvent("openai.tool_item_id."+callID, map[string]any{"item_id": itemID}),
			{Type: eventmapper.ToolCallStartEvent, ID: callID, Name: stringField(item, "name")},
		}
		p.toolCalls[idx] = callID
		return append(events, p.flushPending(idx)...)

	case "apply_patch_call":
		callID := stringField(item, "call_id")
		if callID == "" {
			callID = itemID
		}
		return []eventmapper.Event{dataEvent("openai.apply_patch_call.added", map[string]any{
			"output_index": idx,
			"call_id":      callID,
			"operation":    item["operation"],
		})}

	case "message":
		return []eventmapper.Event{dataEvent("openai.message_added", map[string]any{
			"item_id": itemID,
		})}

	case "reasoning":
		return []eventmapper.Event{dataEvent("openai.reasoning_added", map[string]any{
			"item_id":           itemID,
			"encrypted_content": item["encrypted_content"],
		})}

	case "web_search_call", "file_search_call", "image_generation_call", "computer_call":
		return []eventmapper.Event{dataEvent("openai."+itemType+".added", map[string]any{
			"tool_call_id": itemID,
		})}

	case "code_interpreter_call":
		return []eventmapper.Event{dataEvent("openai.code_interpreter_call.added", map[string]any{
			"output_index": idx,
			"tool_call_id": itemID,
			"container_id": item["container_id"],
		})}
	}
	return nil
}

func (p *chunkParser) handleItemDone(idx int, item map[string]any) []eventmapper.Event {
	if item == nil {
		return nil
	}
	itemID := stringField(item, "id")

	var events []eventmapper.Event
	switch itemType := stringField(item, "type"); itemType {
	case "apply_patch_call":
		events = append(events, dataEvent("openai.apply_patch_call.done", map[string]any{
			"output_index": idx,
			"operation":    item["operation"],
		}))
	case "message":
		events = append(events, dataEvent("openai.message_done", map[string]any{
			"item_id": itemID,
		}))
	case "reasoning":
		events = append(events, dataEvent("openai.reasoning_done", map[string]any{
			"item_id":           itemID,
			"encrypted_content": item["encrypted_content"],
		}))
	case "function_call":
		events = append(events, dataEvent("openai.function_call_done", map[string]any{}))
	}

	if data, ok := providerToolDataFromOutputItem(item); ok {
		events = append(events, dataEvent("openai.provider_tool", data))
	}

	if callID, ok := p.toolCalls[idx]; ok && !p.ended[idx] {
		events = append(events, p.flushPending(idx)...)
		events = append(events, eventmapper.Event{Type: eventmapper.ToolCallEndEvent, ID: callID})
		p.ended[idx] = true
	}
	return events
}

func (p *chunkParser) flushPending(idx int) []eventmapper.Event {
	deltas := p.pending[idx]
	if len(deltas) == 0 {
		return nil
	}
	delete(p.pending, idx)
	callID := p.toolCalls[idx]
	events := make([]eventmapper.Event, 0, len(deltas))
	for _, delta := range deltas {
		events = append(events, eventmapper.Event{
			Type: eventmapper.ToolCallDeltaEvent, ID: callID, ArgsJSON: delta,
		})
	}
	return events
}

// drainToolCalls closes function calls the response never marked done.
func (p *chunkParser) drainToolCalls() []eventmapper.Event {
	var indexes []int
	for idx := range p.toolCalls {
		if !p.ended[idx] {
			indexes = append(indexes, idx)
		}
	}
	sort.Ints(indexes)
	var events []eventmapper.Event
	for _, idx := range indexes {
		events = append(events, p.flushPending(idx)...)
		events = append(events, eventmapper.Event{
			Type: eventmapper.ToolCallEndEvent, ID: p.toolCalls[idx],
		})
		p.ended[idx] = true
	}
	return events
}

func parseTokenUsage(usage map[string]any) eventmapper.TokenUsage {
	out := eventmapper.TokenUsage{}
	if v, ok := numberField(usage, "input_tokens"); ok {
		out.InputTokens = v
	} else if v, ok := numberField(usage, "prompt_tokens"); ok {
		out.InputTokens = v
	}
	if v, ok := numberField(usage, "output_tokens"); ok {
		out.OutputTokens = v
	} else if v, ok := numberField(usage, "completion_tokens"); ok {
		out.OutputTokens = v
	}
	if v, ok := numberField(usage, "total_tokens"); ok {
		out.TotalTokens = v
	} else {
		out.TotalTokens = out.InputTokens + out.OutputTokens
	}
	if v, ok := cachedTokens(usage); ok {
		out.CacheReadTokens = &v
	}
	return out
}

func cachedTokens(usage map[string]any) (int64, bool) {
	if v, ok := numberField(usage, "cache_read_tokens"); ok {
		return v, true
	}
	for _, key := range []string{"input_tokens_details", "prompt_tokens_details"} {
		if details := mapField(usage, key); details != nil {
			if v, ok := numberField(details, "cached_tokens"); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func reasoningTokens(usage map[string]any) (int64, bool) {
	for _, key := range []string{"output_tokens_details", "completion_tokens_details"} {
		if details := mapField(usage, key); details != nil {
			if v, ok := numberField(details, "reasoning_tokens"); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func numberField(m map[string]any, key string) (int64, bool) {
	if f, ok := m[key].(float64); ok {
		return int64(f), true
	}
	return 0, false
}
