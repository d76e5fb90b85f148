package eventmapper

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/sse"
)

// lineParser maps "kind value" data lines to events.
type lineParser struct{}

func (lineParser) ParseFrame(ev sse.Event) ([]Event, error) {
	data := string(ev.Data)
	switch {
	case data == "[DONE]":
		return []Event{{Type: DoneEvent}}, nil
	case strings.HasPrefix(data, "text "):
		return []Event{{Type: TextDeltaEvent, Delta: strings.TrimPrefix(data, "text ")}}, nil
	case strings.HasPrefix(data, "reason "):
		return []Event{{Type: ReasoningDeltaEvent, Delta: strings.TrimPrefix(data, "reason ")}}, nil
	case strings.HasPrefix(data, "fail "):
		return nil, aisdk.SerdeError(errors.New(strings.TrimPrefix(data, "fail ")))
	}
	return nil, nil
}

func sseBody(lines ...string) io.ReadCloser {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("data: " + line + "\n\n")
	}
	return io.NopCloser(strings.NewReader(b.String()))
}

func drainEvents(t *testing.T, src *EventSource) []Event {
	t.Helper()
	var out []Event
	for {
		ev, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, ev)
	}
}

func TestEventSource(t *testing.T) {
	src := NewEventSource(sseBody("text a", "text b", "[DONE]"), lineParser{})
	events := drainEvents(t, src)

	if len(events) != 3 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Delta != "a" || events[1].Delta != "b" {
		t.Fatalf("deltas: %+v", events)
	}
	if events[2].Type != DoneEvent {
		t.Fatalf("terminator: %+v", events[2])
	}
}

func TestEventSourceSynthesizesReasoningStart(t *testing.T) {
	src := NewEventSource(sseBody("reason hm", "[DONE]"), lineParser{})
	events := drainEvents(t, src)

	if events[0].Type != ReasoningStartEvent || events[0].ID != syntheticReasoningID {
		t.Fatalf("missing synthetic start: %+v", events)
	}
	if events[1].Type != ReasoningDeltaEvent {
		t.Fatalf("got %+v", events)
	}
	// Done while reasoning is open injects the end first.
	if events[2].Type != ReasoningEndEvent || events[3].Type != DoneEvent {
		t.Fatalf("lifecycle not closed: %+v", events)
	}
}

func TestEventSourceUnexpectedEOF(t *testing.T) {
	src := NewEventSource(sseBody("text a"), lineParser{})
	events := drainEvents(t, src)

	last := events[len(events)-1]
	if last.Type != ErrorEvent || last.Message != "Unexpected EOF" {
		t.Fatalf("got %+v", events)
	}
}

func TestEventSourceTrailingFrameFlushed(t *testing.T) {
	// Connection closed right after the final data line, no blank line.
	body := io.NopCloser(strings.NewReader("data: text a\n\ndata: [DONE]"))
	src := NewEventSource(body, lineParser{})
	events := drainEvents(t, src)

	if len(events) != 2 || events[1].Type != DoneEvent {
		t.Fatalf("got %+v", events)
	}
}

func TestEventSourceParserError(t *testing.T) {
	src := NewEventSource(sseBody("fail bad frame", "text never"), lineParser{})
	_, err := src.Next(context.Background())
	if err == nil {
		t.Fatalf("expected parser error")
	}
	var se *aisdk.Error
	if !errors.As(err, &se) || se.Kind != aisdk.ErrSerde {
		t.Fatalf("got %v", err)
	}
	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("source should be terminal after error: %v", err)
	}
}

func TestEventSourceContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewEventSource(sseBody("text a"), lineParser{})
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestStreamEndToEnd(t *testing.T) {
	stream := NewStream(sseBody("text Hello", "text !", "[DONE]"), lineParser{}, Config{
		Warnings: []aisdk.CallWarning{{Type: "other", Message: "w"}},
		Hooks: Hooks{
			Finish: func(state *State) (aisdk.FinishReason, aisdk.ProviderMetadata) {
				return aisdk.FinishStop, nil
			},
		},
	})
	defer stream.Close()

	var parts []aisdk.StreamPart
	for {
		p, err := stream.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		parts = append(parts, p)
	}

	start := parts[0].(aisdk.StreamStart)
	if len(start.Warnings) != 1 {
		t.Fatalf("warnings: %+v", start)
	}
	text := ""
	for _, p := range parts {
		if d, ok := p.(aisdk.TextDelta); ok {
			text += d.Delta
		}
	}
	if text != "Hello!" {
		t.Fatalf("text: %q", text)
	}
	finish := parts[len(parts)-1].(aisdk.Finish)
	if finish.FinishReason != aisdk.FinishStop {
		t.Fatalf("finish: %+v", finish)
	}
}
