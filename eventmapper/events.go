// Package eventmapper converts per-provider event streams into canonical
// stream parts. Providers implement a ChunkParser over decoded SSE frames;
// the pipeline handles frame reassembly, reasoning lifecycle normalization,
// and termination.
package eventmapper

// EventType discriminates provider events.
type EventType int

const (
	// TextDeltaEvent carries an incremental text fragment.
	TextDeltaEvent EventType = iota
	ReasoningStartEvent
	ReasoningDeltaEvent
	ReasoningEndEvent
	UsageEvent
	ToolCallStartEvent
	ToolCallDeltaEvent
	ToolCallEndEvent
	// DataEvent carries provider-specific keyed data for the Data hook.
	DataEvent
	ErrorEvent
	RetryingEvent
	RawEvent
	DoneEvent
)

// TokenUsage is the provider-event usage report.
type TokenUsage struct {
	InputTokens      int64
	OutputTokens     int64
	TotalTokens      int64
	CacheReadTokens  *int64
	CacheWriteTokens *int64
}

// Event is one normalized provider event. Field relevance depends on Type.
type Event struct {
	Type     EventType
	Delta    string
	ID       string
	Name     string
	ArgsJSON string
	Key      string
	Value    any
	Usage    TokenUsage
	Message  string
	Raw      any
}
