package google

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
	"github.com/octanelabs/aisdk/sse"
)

// partStream walks streamGenerateContent SSE frames directly into canonical
// parts. Gemini interleaves text, thought-flagged text, inline files and
// complete function calls inside candidate parts, so there is no incremental
// tool-argument phase to map; each functionCall arrives whole.
type partStream struct {
	body  io.ReadCloser
	dec   *sse.Decoder
	scope string

	includeRaw bool
	queue      []aisdk.StreamPart
	done       bool
	buf        []byte

	blockCounter   int
	textID         string
	reasoningID    string
	lastCodeToolID string
	seenSources    map[string]struct{}

	usage           aisdk.Usage
	usageMeta       map[string]any
	rawFinishReason string
	hasToolCalls    bool
	finishSection   map[string]any
}

func newPartStream(body io.ReadCloser, scope string, warnings []aisdk.CallWarning, includeRaw bool) *partStream {
	return &partStream{
		body:        body,
		dec:         sse.NewDecoder(),
		scope:       scope,
		includeRaw:  includeRaw,
		queue:       []aisdk.StreamPart{aisdk.StreamStart{Warnings: warnings}},
		buf:         make([]byte, 4096),
		seenSources: map[string]struct{}{},
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
			s.finish()
			continue
		}
		s.closeOpenBlocks()
		s.queue = append(s.queue, aisdk.ErrorPart{Error: mapError(err)})
		s.done = true
		s.body.Close()
	}
}

func (s *partStream) Close() error {
	s.done = true
	return s.body.Close()
}

// finish flushes open blocks and emits the single Finish terminator.
func (s *partStream) finish() {
	s.closeOpenBlocks()
	s.queue = append(s.queue, aisdk.Finish{
		Usage:            s.usage,
		FinishReason:     mapFinishReason(s.rawFinishReason, s.hasToolCalls),
		ProviderMetadata: s.finishMetadata(),
	})
	s.done = true
	s.body.Close()
}

func (s *partStream) finishMetadata() aisdk.ProviderMetadata {
	section := map[string]any{}
	for k, v := range s.finishSection {
		section[k] = v
	}
	if s.usageMeta != nil {
		section["usageMetadata"] = s.usageMeta
	}
	if len(section) == 0 {
		return nil
	}
	return aisdk.ProviderMetadata{s.scope: section}
}

func (s *partStream) closeText() {
	if s.textID != "" {
		s.queue = append(s.queue, aisdk.TextEnd{ID: s.textID})
		s.textID = ""
	}
}

func (s *partStream) closeReasoning() {
	if s.reasoningID != "" {
		s.queue = append(s.queue, aisdk.ReasoningEnd{ID: s.reasoningID})
		s.reasoningID = ""
	}
}

func (s *partStream) closeOpenBlocks() {
	s.closeText()
	s.closeReasoning()
}

func (s *partStream) handleFrame(frame sse.Event) {
	parsed, ok := jsonx.Parse(string(frame.Data))
	if !ok {
		return
	}
	chunk, ok := parsed.(map[string]any)
	if !ok {
		return
	}
	if s.includeRaw {
		s.queue = append(s.queue, aisdk.RawPart{Value: chunk})
	}

	if meta, ok := chunk["usageMetadata"].(map[string]any); ok {
		s.usage = usageFromMetadata(meta)
		s.usageMeta = meta
	}

	candidates, _ := chunk["candidates"].([]any)
	if len(candidates) == 0 {
		return
	}
	candidate, ok := candidates[0].(map[string]any)
	if !ok {
		return
	}

	if content, ok := candidate["content"].(map[string]any); ok {
		if parts, ok := content["parts"].([]any); ok {
			for _, raw := range parts {
				if part, ok := raw.(map[string]any); ok {
					s.handlePart(part)
				}
			}
		}
	}

	for _, source := range groundingSources(candidate) {
		if _, dup := s.seenSources[source.URL]; dup {
			continue
		}
		s.seenSources[source.URL] = struct{}{}
		s.queue = append(s.queue, aisdk.SourceURL{ID: source.ID, URL: source.URL, Title: source.Title})
	}

	if reason, ok := candidate["finishReason"].(string); ok && reason != "" {
		s.rawFinishReason = reason
	}
	if s.finishSection == nil {
		s.finishSection = map[string]any{}
	}
	for _, key := range []string{"groundingMetadata", "urlContextMetadata", "safetyRatings"} {
		if v, ok := candidate[key]; ok {
			s.finishSection[key] = v
		}
	}
}

func (s *partStream) handlePart(part map[string]any) {
	switch {
	case hasKey(part, "executableCode"):
		code, _ := part["executableCode"].(map[string]any)
		if str, _ := code["code"].(string); str == "" {
			return
		}
		id := uuid.NewString()
		input := encodeJSON(code)
		s.queue = append(s.queue,
			aisdk.ToolInputStart{ID: id, ToolName: "code_execution", ProviderExecuted: true},
			aisdk.ToolInputDelta{ID: id, Delta: input, ProviderExecuted: true},
			aisdk.ToolInputEnd{ID: id, ProviderExecuted: true},
			aisdk.ToolCall{ToolCallID: id, ToolName: "code_execution", Input: input, ProviderExecuted: true},
		)
		s.lastCodeToolID = id
		s.hasToolCalls = true

	case hasKey(part, "codeExecutionResult"):
		if s.lastCodeToolID == "" {
			return
		}
		result, _ := part["codeExecutionResult"].(map[string]any)
		s.queue = append(s.queue, aisdk.ToolResult{
			ToolCallID: s.lastCodeToolID,
			ToolName:   "code_execution",
			Result: map[string]any{
				"outcome": result["outcome"],
				"output":  result["output"],
			},
		})
		s.lastCodeToolID = ""

	case hasKey(part, "text"):
		text, _ := part["text"].(string)
		if text == "" {
			return
		}
		pm := signatureMetadata(part, s.scope)
		if thought, _ := part["thought"].(bool); thought {
			s.closeText()
			if s.reasoningID == "" {
				s.reasoningID = "r-" + strconv.Itoa(s.blockCounter)
				s.blockCounter++
				s.queue = append(s.queue, aisdk.ReasoningStart{ID: s.reasoningID, ProviderMetadata: pm})
			}
			s.queue = append(s.queue, aisdk.ReasoningDelta{
				ID:               s.reasoningID,
				Delta:            text,
				ProviderMetadata: pm,
			})
			return
		}
		s.closeReasoning()
		if s.textID == "" {
			s.textID = "t-" + strconv.Itoa(s.blockCounter)
			s.blockCounter++
			s.queue = append(s.queue, aisdk.TextStart{ID: s.textID, ProviderMetadata: pm})
		}
		s.queue = append(s.queue, aisdk.TextDelta{ID: s.textID, Delta: text, ProviderMetadata: pm})

	case hasKey(part, "inlineData"):
		blob, _ := part["inlineData"].(map[string]any)
		mime, _ := blob["mimeType"].(string)
		data, _ := blob["data"].(string)
		s.queue = append(s.queue, aisdk.FileData{MediaType: mime, Data: data})

	case hasKey(part, "functionCall"):
		call, _ := part["functionCall"].(map[string]any)
		name, _ := call["name"].(string)
		id := uuid.NewString()
		input := encodeJSON(call["args"])
		s.queue = append(s.queue,
			aisdk.ToolInputStart{ID: id, ToolName: name},
			aisdk.ToolInputDelta{ID: id, Delta: input},
			aisdk.ToolInputEnd{ID: id},
			aisdk.ToolCall{
				ToolCallID:      id,
				ToolName:        name,
				Input:           input,
				ProviderOptions: signatureOptions(part, s.scope),
			},
		)
		s.hasToolCalls = true
	}
}

var _ aisdk.PartStream = (*partStream)(nil)
