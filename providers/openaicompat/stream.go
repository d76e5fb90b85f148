package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
	"github.com/octanelabs/aisdk/sse"
)

type streamMode int

const (
	modeChat streamMode = iota
	modeCompletion
)

type streamSettings struct {
	warnings     []aisdk.CallWarning
	includeRaw   bool
	includeUsage bool
	scope        string
}

type toolSlot struct {
	id       string
	name     string
	args     string
	started  bool
	finished bool
}

// partStream folds the chat or completion SSE wire format directly into
// canonical stream parts.
type partStream struct {
	body     io.ReadCloser
	dec      *sse.Decoder
	mode     streamMode
	settings streamSettings

	queue []aisdk.StreamPart
	buf   []byte

	usage             aisdk.Usage
	finishReason      aisdk.FinishReason
	pm                aisdk.ProviderMetadata
	firstChunk        bool
	completionStarted bool
	activeText        bool
	activeReasoning   bool
	tools             []toolSlot
	done              bool
}

func newPartStream(body io.ReadCloser, settings streamSettings, mode streamMode) *partStream {
	return &partStream{
		body:         body,
		dec:          sse.NewDecoder(),
		mode:         mode,
		settings:     settings,
		queue:        []aisdk.StreamPart{aisdk.StreamStart{Warnings: settings.warnings}},
		buf:          make([]byte, 4096),
		finishReason: aisdk.FinishUnknown,
		firstChunk:   true,
	}
}

func (s *partStream) Next(ctx context.Context) (aisdk.StreamPart, error) {
	for {
		if len(s.queue) > 0 {
			p := s.queue[0]
			s.queue = s.queue[1:]
			return p, nil
		}
		if s.done {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			s.body.Close()
			return nil, err
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			for _, ev := range s.dec.Push(s.buf[:n]) {
				s.handleFrame(ev)
				if s.done {
					break
				}
			}
			continue
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			for _, ev := range s.dec.Finish() {
				s.handleFrame(ev)
				if s.done {
					break
				}
			}
			if !s.done {
				s.emitFinish()
			}
			s.body.Close()
			continue
		}
		s.fail(err.Error())
		s.body.Close()
	}
}

func (s *partStream) Close() error {
	s.done = true
	return s.body.Close()
}

// fail emits a terminal error part.
func (s *partStream) fail(message string) {
	s.queue = append(s.queue, aisdk.ErrorPart{Error: map[string]any{"message": message}})
	s.done = true
}

func (s *partStream) emitFinish() {
	switch s.mode {
	case modeChat:
		if s.activeReasoning {
			s.queue = append(s.queue, aisdk.ReasoningEnd{ID: "reasoning-0"})
			s.activeReasoning = false
		}
		if s.activeText {
			s.queue = append(s.queue, aisdk.TextEnd{ID: "txt-0"})
			s.activeText = false
		}
		for i := range s.tools {
			slot := &s.tools[i]
			if !slot.started || slot.finished {
				continue
			}
			s.queue = append(s.queue,
				aisdk.ToolInputEnd{ID: slot.id},
				aisdk.ToolCall{ToolCallID: slot.id, ToolName: slot.name, Input: slot.args},
			)
			slot.finished = true
		}
	case modeCompletion:
		if s.completionStarted {
			s.queue = append(s.queue, aisdk.TextEnd{ID: "0"})
		}
	}
	s.queue = append(s.queue, aisdk.Finish{
		Usage:            s.usage,
		FinishReason:     s.finishReason,
		ProviderMetadata: s.pm,
	})
	s.done = true
}

func (s *partStream) handleFrame(ev sse.Event) {
	if string(ev.Data) == "[DONE]" {
		s.emitFinish()
		return
	}

	var val map[string]any
	if err := json.Unmarshal(ev.Data, &val); err != nil {
		s.fail("invalid json chunk")
		return
	}

	if s.settings.includeRaw {
		s.queue = append(s.queue, aisdk.RawPart{Value: val})
	}

	if s.firstChunk {
		s.firstChunk = false
		s.queue = append(s.queue, responseMetadataFromChunk(val))
		if s.mode == modeCompletion {
			s.queue = append(s.queue, aisdk.TextStart{ID: "0"})
			s.completionStarted = true
		}
	}

	s.updateUsage(val)

	switch s.mode {
	case modeChat:
		s.handleChatDelta(val)
	case modeCompletion:
		s.handleCompletionDelta(val)
	}
}

func (s *partStream) updateUsage(val map[string]any) {
	if !s.settings.includeUsage {
		return
	}
	u, ok := val["usage"].(map[string]any)
	if !ok {
		return
	}
	if v, ok := numberField(u, "prompt_tokens"); ok {
		s.usage.InputTokens = aisdk.Int64(v)
	}
	if v, ok := numberField(u, "completion_tokens"); ok {
		s.usage.OutputTokens = aisdk.Int64(v)
	}
	if v, ok := numberField(u, "total_tokens"); ok {
		s.usage.TotalTokens = aisdk.Int64(v)
	}
	if details, ok := u["prompt_tokens_details"].(map[string]any); ok {
		if v, ok := numberField(details, "cached_tokens"); ok {
			s.usage.CachedInputTokens = aisdk.Int64(v)
		}
	}
	if details, ok := u["completion_tokens_details"].(map[string]any); ok {
		if v, ok := numberField(details, "reasoning_tokens"); ok {
			s.usage.ReasoningTokens = aisdk.Int64(v)
		}
		if v, ok := numberField(details, "accepted_prediction_tokens"); ok {
			s.setMetadata("acceptedPredictionTokens", v)
		}
		if v, ok := numberField(details, "rejected_prediction_tokens"); ok {
			s.setMetadata("rejectedPredictionTokens", v)
		}
	}
}

func (s *partStream) setMetadata(key string, value int64) {
	if s.pm == nil {
		s.pm = aisdk.ProviderMetadata{}
	}
	inner, ok := s.pm[s.settings.scope]
	if !ok {
		inner = map[string]any{}
		s.pm[s.settings.scope] = inner
	}
	inner[key] = value
}

func (s *partStream) handleCompletionDelta(val map[string]any) {
	choice, ok := firstChoice(val)
	if !ok {
		return
	}
	if fr, ok := choice["finish_reason"].(string); ok {
		s.finishReason = mapFinishReason(fr)
	}
	if text, ok := choice["text"].(string); ok && text != "" {
		s.queue = append(s.queue, aisdk.TextDelta{ID: "0", Delta: text})
	}
}

func (s *partStream) handleChatDelta(val map[string]any) {
	choice, ok := firstChoice(val)
	if !ok {
		return
	}
	if fr, ok := choice["finish_reason"].(string); ok {
		s.finishReason = mapFinishReason(fr)
	}
	delta, ok := choice["delta"].(map[string]any)
	if !ok {
		return
	}

	reasoning, ok := delta["reasoning_content"].(string)
	if !ok {
		reasoning, ok = delta["reasoning"].(string)
	}
	if ok {
		if !s.activeReasoning {
			s.activeReasoning = true
			s.queue = append(s.queue, aisdk.ReasoningStart{ID: "reasoning-0"})
		}
		if reasoning != "" {
			s.queue = append(s.queue, aisdk.ReasoningDelta{ID: "reasoning-0", Delta: reasoning})
		}
	}

	if text, ok := delta["content"].(string); ok {
		if !s.activeText {
			s.activeText = true
			s.queue = append(s.queue, aisdk.TextStart{ID: "txt-0"})
		}
		if text != "" {
			s.queue = append(s.queue, aisdk.TextDelta{ID: "txt-0", Delta: text})
		}
	}

	toolCalls, ok := delta["tool_calls"].([]any)
	if !ok {
		return
	}
	for _, raw := range toolCalls {
		tc, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		index, ok := numberField(tc, "index")
		if !ok {
			s.fail("Expected 'index' to be a number.")
			return
		}
		for int64(len(s.tools)) <= index {
			s.tools = append(s.tools, toolSlot{})
		}
		slot := &s.tools[index]

		fn, ok := tc["function"].(map[string]any)
		if !ok {
			s.fail("Expected 'function.name' to be a string.")
			return
		}
		fragment, _ := fn["arguments"].(string)

		if !slot.started {
			id, ok := tc["id"].(string)
			if !ok {
				s.fail("Expected 'id' to be a string.")
				return
			}
			name, ok := fn["name"].(string)
			if !ok {
				s.fail("Expected 'function.name' to be a string.")
				return
			}
			slot.id = id
			slot.name = name
			slot.started = true
			s.queue = append(s.queue, aisdk.ToolInputStart{ID: id, ToolName: name})
			if fragment != "" {
				s.queue = append(s.queue, aisdk.ToolInputDelta{ID: id, Delta: fragment})
				slot.args += fragment
			}
			s.finishToolIfComplete(slot)
			continue
		}

		slot.args += fragment
		s.queue = append(s.queue, aisdk.ToolInputDelta{ID: slot.id, Delta: fragment})
		s.finishToolIfComplete(slot)
	}
}

// finishToolIfComplete emits the tool call as soon as the accumulated
// arguments form valid JSON, without waiting for the finish chunk.
func (s *partStream) finishToolIfComplete(slot *toolSlot) {
	if slot.finished {
		return
	}
	if _, ok := jsonx.Parse(slot.args); !ok {
		return
	}
	s.queue = append(s.queue,
		aisdk.ToolInputEnd{ID: slot.id},
		aisdk.ToolCall{ToolCallID: slot.id, ToolName: slot.name, Input: slot.args},
	)
	slot.finished = true
}

func firstChoice(val map[string]any) (map[string]any, bool) {
	choices, ok := val["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil, false
	}
	choice, ok := choices[0].(map[string]any)
	return choice, ok
}

func numberField(m map[string]any, key string) (int64, bool) {
	v, ok := m[key].(float64)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

func mapFinishReason(reason string) aisdk.FinishReason {
	switch reason {
	case "stop":
		return aisdk.FinishStop
	case "length":
		return aisdk.FinishLength
	case "content_filter":
		return aisdk.FinishContentFilter
	case "function_call", "tool_calls":
		return aisdk.FinishToolCalls
	default:
		return aisdk.FinishUnknown
	}
}

func responseMetadataFromChunk(val map[string]any) aisdk.ResponseMetadata {
	meta := aisdk.ResponseMetadata{}
	if id, ok := val["id"].(string); ok {
		meta.ID = id
	}
	if model, ok := val["model"].(string); ok {
		meta.ModelID = model
	}
	if created, ok := numberField(val, "created"); ok {
		meta.Timestamp = time.Unix(created, 0).UTC()
	}
	return meta
}

var _ aisdk.PartStream = (*partStream)(nil)
