package openaicompat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/octanelabs/aisdk"
)

func sseFrames(payloads ...string) io.ReadCloser {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: " + p + "\n\n")
	}
	return io.NopCloser(strings.NewReader(b.String()))
}

func drainParts(t *testing.T, s aisdk.PartStream) []aisdk.StreamPart {
	t.Helper()
	defer s.Close()
	var parts []aisdk.StreamPart
	for {
		p, err := s.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return parts
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		parts = append(parts, p)
	}
}

func TestChatStreamText(t *testing.T) {
	body := sseFrames(
		`{"id":"chatcmpl-1","model":"m1","created":1700000000,"choices":[{"delta":{"content":"Hel"}}]}`,
		`{"choices":[{"delta":{"content":"lo"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
		`[DONE]`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{includeUsage: true, scope: "prov"}, modeChat))

	if _, ok := parts[0].(aisdk.StreamStart); !ok {
		t.Fatalf("first part: %T", parts[0])
	}
	meta := parts[1].(aisdk.ResponseMetadata)
	if meta.ID != "chatcmpl-1" || meta.ModelID != "m1" {
		t.Fatalf("metadata: %+v", meta)
	}
	if meta.Timestamp != time.Unix(1700000000, 0).UTC() {
		t.Fatalf("timestamp: %v", meta.Timestamp)
	}

	text := ""
	for _, p := range parts {
		if d, ok := p.(aisdk.TextDelta); ok {
			text += d.Delta
		}
	}
	if text != "Hello" {
		t.Fatalf("text: %q", text)
	}

	if _, ok := parts[len(parts)-2].(aisdk.TextEnd); !ok {
		t.Fatalf("text not closed before finish: %T", parts[len(parts)-2])
	}
	finish := parts[len(parts)-1].(aisdk.Finish)
	if finish.FinishReason != aisdk.FinishStop || *finish.Usage.TotalTokens != 5 {
		t.Fatalf("finish: %+v", finish)
	}
}

func TestChatStreamReasoning(t *testing.T) {
	body := sseFrames(
		`{"id":"1","choices":[{"delta":{"reasoning_content":"step one"}}]}`,
		`{"choices":[{"delta":{"reasoning":" step two"}}]}`,
		`{"choices":[{"delta":{"content":"answer"},"finish_reason":"stop"}]}`,
		`[DONE]`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{scope: "prov"}, modeChat))

	reasoning := ""
	var starts int
	for _, p := range parts {
		switch v := p.(type) {
		case aisdk.ReasoningStart:
			starts++
		case aisdk.ReasoningDelta:
			reasoning += v.Delta
		}
	}
	if starts != 1 {
		t.Fatalf("reasoning starts: %d", starts)
	}
	if reasoning != "step one step two" {
		t.Fatalf("reasoning: %q", reasoning)
	}
}

func TestChatStreamToolCalls(t *testing.T) {
	body := sseFrames(
		`{"id":"1","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_weather","arguments":"{\"ci"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ty\":\"Oslo\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{scope: "prov"}, modeChat))

	var call aisdk.ToolCall
	var deltas []string
	for _, p := range parts {
		switch v := p.(type) {
		case aisdk.ToolInputDelta:
			deltas = append(deltas, v.Delta)
		case aisdk.ToolCall:
			call = v
		}
	}
	if call.ToolCallID != "call_1" || call.ToolName != "get_weather" {
		t.Fatalf("call: %+v", call)
	}
	if call.Input != `{"city":"Oslo"}` {
		t.Fatalf("input: %q", call.Input)
	}
	if len(deltas) != 2 {
		t.Fatalf("deltas: %v", deltas)
	}
	finish := parts[len(parts)-1].(aisdk.Finish)
	if finish.FinishReason != aisdk.FinishToolCalls {
		t.Fatalf("finish: %q", finish.FinishReason)
	}
}

func TestChatStreamToolCallCompleteInOneChunk(t *testing.T) {
	body := sseFrames(
		`{"id":"1","choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"ping","arguments":"{}"}}]}}]}`,
		`[DONE]`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{scope: "prov"}, modeChat))

	var ends, calls int
	for _, p := range parts {
		switch p.(type) {
		case aisdk.ToolInputEnd:
			ends++
		case aisdk.ToolCall:
			calls++
		}
	}
	// The call is emitted as soon as the args parse; the finish pass must
	// not emit it a second time.
	if ends != 1 || calls != 1 {
		t.Fatalf("ends=%d calls=%d parts=%+v", ends, calls, parts)
	}
}

func TestChatStreamToolCallMissingID(t *testing.T) {
	body := sseFrames(
		`{"id":"1","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"x"}}]}}]}`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{scope: "prov"}, modeChat))

	last := parts[len(parts)-1]
	ep, ok := last.(aisdk.ErrorPart)
	if !ok {
		t.Fatalf("expected error part, got %T", last)
	}
	if ep.Error.(map[string]any)["message"] != "Expected 'id' to be a string." {
		t.Fatalf("got %+v", ep)
	}
}

func TestChatStreamUsageDetails(t *testing.T) {
	body := sseFrames(
		`{"id":"1","choices":[{"delta":{"content":"x"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14,"prompt_tokens_details":{"cached_tokens":6},"completion_tokens_details":{"reasoning_tokens":2,"accepted_prediction_tokens":1}}}`,
		`[DONE]`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{includeUsage: true, scope: "groq"}, modeChat))

	finish := parts[len(parts)-1].(aisdk.Finish)
	if *finish.Usage.CachedInputTokens != 6 || *finish.Usage.ReasoningTokens != 2 {
		t.Fatalf("usage: %+v", finish.Usage)
	}
	if finish.ProviderMetadata["groq"]["acceptedPredictionTokens"] != int64(1) {
		t.Fatalf("metadata: %+v", finish.ProviderMetadata)
	}
}

func TestChatStreamEOFWithoutDone(t *testing.T) {
	body := sseFrames(
		`{"id":"1","choices":[{"delta":{"content":"cut"}}]}`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{scope: "prov"}, modeChat))

	finish, ok := parts[len(parts)-1].(aisdk.Finish)
	if !ok {
		t.Fatalf("missing finish: %+v", parts)
	}
	if finish.FinishReason != aisdk.FinishUnknown {
		t.Fatalf("finish: %q", finish.FinishReason)
	}
}

func TestChatStreamInvalidJSON(t *testing.T) {
	body := sseFrames(`{broken`)
	parts := drainParts(t, newPartStream(body, streamSettings{scope: "prov"}, modeChat))

	last := parts[len(parts)-1].(aisdk.ErrorPart)
	if last.Error.(map[string]any)["message"] != "invalid json chunk" {
		t.Fatalf("got %+v", last)
	}
}

func TestChatStreamRawChunks(t *testing.T) {
	body := sseFrames(
		`{"id":"1","choices":[{"delta":{"content":"x"}}]}`,
		`[DONE]`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{includeRaw: true, scope: "prov"}, modeChat))

	var raws int
	for _, p := range parts {
		if _, ok := p.(aisdk.RawPart); ok {
			raws++
		}
	}
	if raws != 1 {
		t.Fatalf("raw parts: %d", raws)
	}
}

func TestCompletionStream(t *testing.T) {
	body := sseFrames(
		`{"id":"cmpl-1","model":"m1","choices":[{"text":"Once"}]}`,
		`{"choices":[{"text":" upon","finish_reason":"length"}]}`,
		`[DONE]`,
	)
	parts := drainParts(t, newPartStream(body, streamSettings{scope: "prov"}, modeCompletion))

	var text string
	var sawStart, sawEnd bool
	for _, p := range parts {
		switch v := p.(type) {
		case aisdk.TextStart:
			sawStart = true
		case aisdk.TextDelta:
			text += v.Delta
		case aisdk.TextEnd:
			sawEnd = true
		}
	}
	if !sawStart || !sawEnd {
		t.Fatalf("text lifecycle incomplete: %+v", parts)
	}
	if text != "Once upon" {
		t.Fatalf("text: %q", text)
	}
	finish := parts[len(parts)-1].(aisdk.Finish)
	if finish.FinishReason != aisdk.FinishLength {
		t.Fatalf("finish: %q", finish.FinishReason)
	}
}

func TestMapFinishReason(t *testing.T) {
	cases := map[string]aisdk.FinishReason{
		"stop":           aisdk.FinishStop,
		"length":         aisdk.FinishLength,
		"content_filter": aisdk.FinishContentFilter,
		"tool_calls":     aisdk.FinishToolCalls,
		"function_call":  aisdk.FinishToolCalls,
		"mystery":        aisdk.FinishUnknown,
	}
	for in, want := range cases {
		if got := mapFinishReason(in); got != want {
			t.Fatalf("%q: got %q, want %q", in, got, want)
		}
	}
}
