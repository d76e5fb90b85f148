package eventmapper

import (
	"context"
	"errors"
	"io"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/sse"
)

// ChunkParser maps one decoded SSE frame into zero or more provider events.
// Parsers are stateful per response (e.g. tool-call slot tracking).
type ChunkParser interface {
	ParseFrame(ev sse.Event) ([]Event, error)
}

// syntheticReasoningID names the reasoning block synthesized when a parser
// emits a bare ReasoningDelta without a preceding ReasoningStart.
const syntheticReasoningID = "reasoning:0"

// EventSource turns a raw byte stream into provider events: it decodes SSE
// frames, invokes the parser, normalizes the reasoning lifecycle, and
// terminates on Done or Error. Stream exhaustion without a terminator
// flushes the decoder and yields a synthetic "Unexpected EOF" error event.
type EventSource struct {
	body   io.ReadCloser
	dec    *sse.Decoder
	parser ChunkParser

	queue         []Event
	reasoningOpen bool
	terminal      bool
	buf           []byte
}

func NewEventSource(body io.ReadCloser, parser ChunkParser) *EventSource {
	return &EventSource{
		body:   body,
		dec:    sse.NewDecoder(),
		parser: parser,
		buf:    make([]byte, 4096),
	}
}

// Next returns the next provider event, or io.EOF after the terminal event.
func (s *EventSource) Next(ctx context.Context) (Event, error) {
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, nil
		}
		if s.terminal {
			return Event{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			s.body.Close()
			return Event{}, err
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			if perr := s.process(s.dec.Push(s.buf[:n])); perr != nil {
				return Event{}, perr
			}
			continue
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if perr := s.process(s.dec.Finish()); perr != nil {
				return Event{}, perr
			}
			if !s.terminal {
				s.enqueue(Event{Type: ErrorEvent, Message: "Unexpected EOF"})
				s.terminal = true
			}
			s.body.Close()
			continue
		}
		s.terminal = true
		s.body.Close()
		var te *aisdk.TransportError
		if errors.As(err, &te) {
			switch te.Kind {
			case aisdk.TransportConnectTimeout, aisdk.TransportIdleReadTimeout:
				return Event{}, aisdk.TimeoutError()
			}
			return Event{}, &aisdk.Error{Kind: aisdk.ErrTransport, Cause: te}
		}
		return Event{}, &aisdk.Error{Kind: aisdk.ErrTransport, Cause: err, Message: err.Error()}
	}
}

func (s *EventSource) process(frames []sse.Event) error {
	for _, frame := range frames {
		if s.terminal {
			return nil
		}
		events, err := s.parser.ParseFrame(frame)
		if err != nil {
			s.terminal = true
			s.body.Close()
			return err
		}
		for _, ev := range events {
			s.enqueue(ev)
			if s.terminal {
				break
			}
		}
	}
	return nil
}

// enqueue applies the reasoning-lifecycle normalization and termination
// rules while appending to the queue.
func (s *EventSource) enqueue(ev Event) {
	switch ev.Type {
	case ReasoningStartEvent:
		s.reasoningOpen = true
	case ReasoningDeltaEvent:
		if !s.reasoningOpen {
			s.reasoningOpen = true
			s.queue = append(s.queue, Event{Type: ReasoningStartEvent, ID: syntheticReasoningID})
		}
	case ReasoningEndEvent:
		s.reasoningOpen = false
	case DoneEvent:
		if s.reasoningOpen {
			s.reasoningOpen = false
			s.queue = append(s.queue, Event{Type: ReasoningEndEvent})
		}
		s.terminal = true
		s.body.Close()
	case ErrorEvent:
		s.terminal = true
		s.body.Close()
	}
	s.queue = append(s.queue, ev)
}

func (s *EventSource) Close() error {
	s.terminal = true
	return s.body.Close()
}

// Stream adapts an EventSource plus a Mapper into a canonical part stream.
type Stream struct {
	source *EventSource
	mapper *Mapper
	queue  []aisdk.StreamPart
	done   bool
}

// NewStream builds the full bytes-to-parts pipeline for one response.
func NewStream(body io.ReadCloser, parser ChunkParser, cfg Config) *Stream {
	mapper := NewMapper(cfg)
	return &Stream{
		source: NewEventSource(body, parser),
		mapper: mapper,
		queue:  mapper.Start(),
	}
}

func (s *Stream) Next(ctx context.Context) (aisdk.StreamPart, error) {
	for {
		if len(s.queue) > 0 {
			p := s.queue[0]
			s.queue = s.queue[1:]
			return p, nil
		}
		if s.done {
			return nil, io.EOF
		}
		ev, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				continue
			}
			return nil, err
		}
		s.queue = append(s.queue, s.mapper.Map(ev)...)
		if s.mapper.Finished() {
			s.done = true
		}
	}
}

func (s *Stream) Close() error { return s.source.Close() }

var _ aisdk.PartStream = (*Stream)(nil)
