package anthropic

import (
	"encoding/json"
	"strconv"

	"github.com/octanelabs/aisdk/eventmapper"
	"github.com/octanelabs/aisdk/sse"
)

// chunkParser folds Messages API stream frames into provider events. Tool
// input deltas can arrive before their content_block_start on some proxies,
// so deltas are buffered per block index until the tool slot opens.
type chunkParser struct {
	toolIDs       map[int]string
	pendingDeltas map[int][]string
}

func newChunkParser() *chunkParser {
	return &chunkParser{
		toolIDs:       map[int]string{},
		pendingDeltas: map[int][]string{},
	}
}

func (p *chunkParser) ParseFrame(ev sse.Event) ([]eventmapper.Event, error) {
	if ev.Event == "message_stop" {
		out := p.drainToolCalls()
		return append(out, eventmapper.Event{Type: eventmapper.DoneEvent}), nil
	}

	// Non-JSON frames are heartbeats.
	var frame map[string]any
	if err := json.Unmarshal(ev.Data, &frame); err != nil {
		return nil, nil
	}

	out := []eventmapper.Event{{Type: eventmapper.RawEvent, Raw: frame}}
	switch frame["type"] {
	case "message_start":
		if msg, ok := frame["message"].(map[string]any); ok {
			if usage, ok := msg["usage"].(map[string]any); ok {
				out = append(out, usageEvents(usage)...)
			}
		}

	case "message_delta":
		if usage, ok := frame["usage"].(map[string]any); ok {
			out = append(out, usageEvents(usage)...)
		}

	case "content_block_delta":
		delta, _ := frame["delta"].(map[string]any)
		switch delta["type"] {
		case "text_delta":
			if text, ok := delta["text"].(string); ok {
				out = append(out, eventmapper.Event{Type: eventmapper.TextDeltaEvent, Delta: text})
			}
		case "thinking_delta":
			if thinking, ok := delta["thinking"].(string); ok && thinking != "" {
				out = append(out, eventmapper.Event{Type: eventmapper.ReasoningDeltaEvent, Delta: thinking})
			}
		case "signature_delta":
			if sig, ok := delta["signature"].(string); ok {
				out = append(out, eventmapper.Event{
					Type:  eventmapper.DataEvent,
					Key:   "reasoning_signature",
					Value: map[string]any{"signature": sig},
				})
			}
		case "input_json_delta":
			arg := stringKey(delta, "partial_json", "json", "delta")
			if idx, ok := blockIndex(frame); ok {
				if id, started := p.toolIDs[idx]; started {
					out = append(out, eventmapper.Event{Type: eventmapper.ToolCallDeltaEvent, ID: id, ArgsJSON: arg})
				} else {
					p.pendingDeltas[idx] = append(p.pendingDeltas[idx], arg)
				}
			}
		}

	case "content_block_start":
		idx, hasIdx := blockIndex(frame)
		cb, _ := frame["content_block"].(map[string]any)
		switch cb["type"] {
		case "tool_use":
			id, _ := cb["id"].(string)
			name, _ := cb["name"].(string)
			if hasIdx && id != "" && name != "" {
				p.toolIDs[idx] = id
				out = append(out, eventmapper.Event{Type: eventmapper.ToolCallStartEvent, ID: id, Name: name})
				for _, delta := range p.pendingDeltas[idx] {
					out = append(out, eventmapper.Event{Type: eventmapper.ToolCallDeltaEvent, ID: id, ArgsJSON: delta})
				}
				delete(p.pendingDeltas, idx)
			}
		case "thinking", "redacted_thinking":
			rid := "0"
			if hasIdx {
				rid = strconv.Itoa(idx)
			}
			out = append(out, eventmapper.Event{Type: eventmapper.ReasoningStartEvent, ID: rid})
		}

	case "message_stop":
		out = append(out, p.drainToolCalls()...)
		out = append(out, eventmapper.Event{Type: eventmapper.DoneEvent})
	}
	return out, nil
}

func (p *chunkParser) drainToolCalls() []eventmapper.Event {
	var out []eventmapper.Event
	for idx, id := range p.toolIDs {
		out = append(out, eventmapper.Event{Type: eventmapper.ToolCallEndEvent, ID: id})
		delete(p.toolIDs, idx)
	}
	p.pendingDeltas = map[int][]string{}
	return out
}

// normalizeUsage flattens the Messages API usage object: cache writes may be
// flat or split into per-TTL ephemeral buckets, and totals may be absent.
func normalizeUsage(usage map[string]any) map[string]any {
	input := numberValue(usage["input_tokens"])
	output := numberValue(usage["output_tokens"])
	cacheRead := numberValue(usage["cache_read_input_tokens"])

	cacheWrite, hasFlat := intValue(usage["cache_creation_input_tokens"])
	if !hasFlat {
		if cc, ok := usage["cache_creation"].(map[string]any); ok {
			cacheWrite = numberValue(cc["ephemeral_5m_input_tokens"]) +
				numberValue(cc["ephemeral_1h_input_tokens"])
		}
	}

	total, hasTotal := intValue(usage["total_tokens"])
	if !hasTotal {
		total = input + output
	}

	return map[string]any{
		"input_tokens":       input,
		"output_tokens":      output,
		"total_tokens":       total,
		"cache_read_tokens":  cacheRead,
		"cache_write_tokens": cacheWrite,
	}
}

func usageEvents(usage map[string]any) []eventmapper.Event {
	norm := normalizeUsage(usage)
	cacheRead := norm["cache_read_tokens"].(int64)
	cacheWrite := norm["cache_write_tokens"].(int64)
	return []eventmapper.Event{
		{
			Type: eventmapper.UsageEvent,
			Usage: eventmapper.TokenUsage{
				InputTokens:      norm["input_tokens"].(int64),
				OutputTokens:     norm["output_tokens"].(int64),
				TotalTokens:      norm["total_tokens"].(int64),
				CacheReadTokens:  &cacheRead,
				CacheWriteTokens: &cacheWrite,
			},
		},
		{Type: eventmapper.DataEvent, Key: "usage", Value: norm},
	}
}

func blockIndex(frame map[string]any) (int, bool) {
	n, ok := frame["index"].(float64)
	if !ok {
		return 0, false
	}
	return int(n), true
}

func stringKey(section map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := section[k].(string); ok {
			return v
		}
	}
	return ""
}

func numberValue(v any) int64 {
	n, _ := intValue(v)
	return n
}

func intValue(v any) (int64, bool) {
	if f, ok := v.(float64); ok {
		return int64(f), true
	}
	return 0, false
}
