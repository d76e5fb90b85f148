package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/sse"
)

// partStream replays the gateway's canonical SSE frames. The gateway speaks
// the SDK's own stream protocol, so decoding is bookkeeping rather than
// translation: synthesize a stream-start when the first frame is something
// else, mint ids for unlabelled text and reasoning blocks, and drop
// duplicate start, end and finish frames.
type partStream struct {
	body       io.ReadCloser
	dec        *sse.Decoder
	includeRaw bool
	queue      []aisdk.StreamPart
	done       bool
	buf        []byte
	state      streamState
}

type streamState struct {
	started  bool
	finished bool

	textCounter     int
	currentTextID   string
	activeText      map[string]struct{}
	reasoningCount  int
	currentReasonID string
	activeReasoning map[string]struct{}
}

func newPartStream(body io.ReadCloser, includeRaw bool) *partStream {
	return &partStream{
		body:       body,
		dec:        sse.NewDecoder(),
		includeRaw: includeRaw,
		buf:        make([]byte, 4096),
		state: streamState{
			activeText:      map[string]struct{}{},
			activeReasoning: map[string]struct{}{},
		},
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
			for _, frame := range s.dec.Push(s.buf[:n]) {
				s.handleFrame(frame)
			}
			continue
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			for _, frame := range s.dec.Finish() {
				s.handleFrame(frame)
			}
			s.done = true
			s.body.Close()
			continue
		}
		s.done = true
		s.body.Close()
		var te *aisdk.TransportError
		if errors.As(err, &te) {
			switch te.Kind {
			case aisdk.TransportConnectTimeout, aisdk.TransportIdleReadTimeout:
				return nil, aisdk.TimeoutError()
			}
			return nil, &aisdk.Error{Kind: aisdk.ErrTransport, Cause: te}
		}
		return nil, &aisdk.Error{Kind: aisdk.ErrTransport, Cause: err, Message: err.Error()}
	}
}

func (s *partStream) Close() error {
	s.done = true
	return s.body.Close()
}

func (s *partStream) handleFrame(frame sse.Event) {
	if len(frame.Data) == 0 || string(frame.Data) == "[DONE]" {
		return
	}
	var value any
	if err := json.Unmarshal(frame.Data, &value); err != nil {
		if s.includeRaw {
			s.queue = append(s.queue, aisdk.RawPart{Value: string(frame.Data)})
		}
		return
	}
	s.queue = append(s.queue, s.state.process(value, s.includeRaw)...)
}

func (st *streamState) process(value any, includeRaw bool) []aisdk.StreamPart {
	chunk, _ := value.(map[string]any)
	chunkType, _ := chunk["type"].(string)
	var parts []aisdk.StreamPart

	if chunkType == "stream-start" {
		st.started = true
		return []aisdk.StreamPart{aisdk.StreamStart{Warnings: parseCallWarnings(chunk["warnings"])}}
	}
	if !st.started {
		st.started = true
		parts = append(parts, aisdk.StreamStart{})
	}

	metadata := func() aisdk.ProviderMetadata {
		return parseProviderMetadata(chunk["providerMetadata"])
	}

	switch chunkType {
	case "text-start":
		id := st.textID(stringField(chunk, "id"))
		if insert(st.activeText, id) {
			parts = append(parts, aisdk.TextStart{ID: id, ProviderMetadata: metadata()})
		}
	case "text-delta":
		delta := deltaField(chunk, "textDelta")
		if delta == "" {
			return parts
		}
		id := st.textID(stringField(chunk, "id"))
		if insert(st.activeText, id) {
			parts = append(parts, aisdk.TextStart{ID: id, ProviderMetadata: metadata()})
		}
		parts = append(parts, aisdk.TextDelta{ID: id, Delta: delta, ProviderMetadata: metadata()})
	case "text-end":
		id := st.textID(stringField(chunk, "id"))
		if remove(st.activeText, id) {
			parts = append(parts, aisdk.TextEnd{ID: id, ProviderMetadata: metadata()})
		}
		st.currentTextID = ""
	case "reasoning-start":
		id := st.reasoningID(stringField(chunk, "id"))
		if insert(st.activeReasoning, id) {
			parts = append(parts, aisdk.ReasoningStart{ID: id, ProviderMetadata: metadata()})
		}
	case "reasoning-delta":
		delta := deltaField(chunk, "reasoningDelta")
		if delta == "" {
			return parts
		}
		id := st.reasoningID(stringField(chunk, "id"))
		if insert(st.activeReasoning, id) {
			parts = append(parts, aisdk.ReasoningStart{ID: id, ProviderMetadata: metadata()})
		}
		parts = append(parts, aisdk.ReasoningDelta{ID: id, Delta: delta, ProviderMetadata: metadata()})
	case "reasoning-end":
		id := st.reasoningID(stringField(chunk, "id"))
		if remove(st.activeReasoning, id) {
			parts = append(parts, aisdk.ReasoningEnd{ID: id, ProviderMetadata: metadata()})
		}
		st.currentReasonID = ""
	case "tool-input-start":
		id, ok := chunk["id"].(string)
		if !ok {
			return parts
		}
		executed, _ := chunk["providerExecuted"].(bool)
		parts = append(parts, aisdk.ToolInputStart{
			ID:               id,
			ToolName:         stringField(chunk, "toolName"),
			ProviderExecuted: executed,
			ProviderMetadata: metadata(),
		})
	case "tool-input-delta":
		id, ok := chunk["id"].(string)
		if !ok {
			return parts
		}
		delta := stringField(chunk, "delta")
		if delta == "" {
			return parts
		}
		executed, _ := chunk["providerExecuted"].(bool)
		parts = append(parts, aisdk.ToolInputDelta{
			ID:               id,
			Delta:            delta,
			ProviderExecuted: executed,
			ProviderMetadata: metadata(),
		})
	case "tool-input-end":
		id, ok := chunk["id"].(string)
		if !ok {
			return parts
		}
		executed, _ := chunk["providerExecuted"].(bool)
		parts = append(parts, aisdk.ToolInputEnd{
			ID:               id,
			ProviderExecuted: executed,
			ProviderMetadata: metadata(),
		})
	case "tool-call":
		id, ok := chunk["toolCallId"].(string)
		if !ok {
			return parts
		}
		executed, _ := chunk["providerExecuted"].(bool)
		parts = append(parts, aisdk.ToolCall{
			ToolCallID:       id,
			ToolName:         stringField(chunk, "toolName"),
			Input:            inputString(chunk["input"]),
			ProviderExecuted: executed,
		})
	case "tool-result":
		id, ok := chunk["toolCallId"].(string)
		if !ok {
			return parts
		}
		isError, _ := chunk["isError"].(bool)
		parts = append(parts, aisdk.ToolResult{
			ToolCallID:       id,
			ToolName:         stringField(chunk, "toolName"),
			Result:           chunk["result"],
			IsError:          isError,
			ProviderMetadata: metadata(),
		})
	case "file":
		mediaType, okMedia := chunk["mediaType"].(string)
		data, okData := chunk["data"].(string)
		if okMedia && okData {
			parts = append(parts, aisdk.FileData{MediaType: mediaType, Data: data})
		} else if includeRaw {
			parts = append(parts, aisdk.RawPart{Value: value})
		}
	case "source":
		sourceType, ok := chunk["sourceType"].(string)
		if !ok {
			return parts
		}
		if sourceType != "url" {
			if includeRaw {
				parts = append(parts, aisdk.RawPart{Value: value})
			}
			return parts
		}
		id, okID := chunk["id"].(string)
		u, okURL := chunk["url"].(string)
		if okID && okURL {
			parts = append(parts, aisdk.SourceURL{
				ID:               id,
				URL:              u,
				Title:            stringField(chunk, "title"),
				ProviderMetadata: metadata(),
			})
		}
	case "response-metadata":
		parts = append(parts, parseResponseMetadata(chunk))
	case "finish":
		if st.finished {
			return parts
		}
		st.finished = true
		parts = append(parts, aisdk.Finish{
			Usage:            parseUsage(chunk["usage"]),
			FinishReason:     parseFinishReason(firstField(chunk, "finishReason", "finish_reason")),
			ProviderMetadata: metadata(),
		})
	case "error":
		payload := chunk["error"]
		if payload == nil {
			payload = "Gateway error"
		}
		parts = append(parts, aisdk.ErrorPart{Error: payload})
	case "raw":
		if includeRaw && chunk["rawValue"] != nil {
			parts = append(parts, aisdk.RawPart{Value: chunk["rawValue"]})
		}
	default:
		if includeRaw {
			parts = append(parts, aisdk.RawPart{Value: value})
		}
	}
	return parts
}

// textID resolves the block id for a text frame: an explicit id becomes
// current, otherwise the current block continues, otherwise a new id is
// minted.
func (st *streamState) textID(provided string) string {
	if provided != "" {
		st.currentTextID = provided
		return provided
	}
	if st.currentTextID != "" {
		return st.currentTextID
	}
	st.textCounter++
	st.currentTextID = "text-" + strconv.Itoa(st.textCounter)
	return st.currentTextID
}

func (st *streamState) reasoningID(provided string) string {
	if provided != "" {
		st.currentReasonID = provided
		return provided
	}
	if st.currentReasonID != "" {
		return st.currentReasonID
	}
	st.reasoningCount++
	st.currentReasonID = "reasoning-" + strconv.Itoa(st.reasoningCount)
	return st.currentReasonID
}

// deltaField reads the delta text under its long name with "delta" as the
// fallback.
func deltaField(chunk map[string]any, key string) string {
	if s, ok := chunk[key].(string); ok {
		return s
	}
	return stringField(chunk, "delta")
}

func insert(set map[string]struct{}, id string) bool {
	if _, ok := set[id]; ok {
		return false
	}
	set[id] = struct{}{}
	return true
}

func remove(set map[string]struct{}, id string) bool {
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	return true
}
