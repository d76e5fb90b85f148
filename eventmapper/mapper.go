package eventmapper

import (
	"github.com/octanelabs/aisdk"
)

// State is the mapper's accumulated view of the stream, exposed to hooks.
type State struct {
	HasToolCalls bool
	Usage        aisdk.Usage
	// Extra is free provider scratch space for hooks.
	Extra any
}

// Hooks let a provider attach metadata and extra parts without subtyping
// the mapper.
type Hooks struct {
	TextStartMetadata      func() aisdk.ProviderMetadata
	ReasoningStartMetadata func() aisdk.ProviderMetadata
	ToolStartMetadata      func(id, name string) aisdk.ProviderMetadata
	ToolEndMetadata        func(id string) aisdk.ProviderMetadata
	// Data maps a provider data event to extra stream parts; nil result
	// drops the event.
	Data func(state *State, key string, value any) []aisdk.StreamPart
	// Finish overrides the finish reason and metadata.
	Finish func(state *State) (aisdk.FinishReason, aisdk.ProviderMetadata)
}

// Config configures one mapping run.
type Config struct {
	Warnings []aisdk.CallWarning
	// TreatToolNamesAsText flattens matching tool calls into text parts,
	// e.g. a JSON-response pseudo-tool.
	TreatToolNamesAsText map[string]struct{}
	// DefaultTextID names the synthesized text block when the provider
	// emits bare text deltas.
	DefaultTextID string
	// FinishReasonFallback applies when no finish hook is set and no tool
	// calls were seen.
	FinishReasonFallback aisdk.FinishReason
	Hooks                Hooks
	IncludeRaw           bool
	// InitialExtra seeds State.Extra.
	InitialExtra any
}

const fallbackReasoningID = "reasoning-1"

// Mapper folds provider events into canonical stream parts. It owns the
// text/reasoning/tool lifecycle bookkeeping for one response.
type Mapper struct {
	cfg   Config
	state State

	openTextID      string
	openReasoningID string
	toolAsText      map[string]bool
	toolNames       map[string]string
	toolArgs        map[string]string
	openTools       []string
	finished        bool
}

func NewMapper(cfg Config) *Mapper {
	if cfg.DefaultTextID == "" {
		cfg.DefaultTextID = "text-1"
	}
	if cfg.FinishReasonFallback == "" {
		cfg.FinishReasonFallback = aisdk.FinishUnknown
	}
	return &Mapper{
		cfg:        cfg,
		state:      State{Extra: cfg.InitialExtra},
		toolAsText: map[string]bool{},
		toolNames:  map[string]string{},
		toolArgs:   map[string]string{},
	}
}

// Start returns the leading StreamStart part.
func (m *Mapper) Start() []aisdk.StreamPart {
	return []aisdk.StreamPart{aisdk.StreamStart{Warnings: m.cfg.Warnings}}
}

// Finished reports whether a terminator has been emitted.
func (m *Mapper) Finished() bool { return m.finished }

// Map converts one provider event into zero or more stream parts.
func (m *Mapper) Map(ev Event) []aisdk.StreamPart {
	if m.finished {
		return nil
	}
	switch ev.Type {
	case TextDeltaEvent:
		var out []aisdk.StreamPart
		if m.openTextID == "" {
			m.openTextID = m.cfg.DefaultTextID
			out = append(out, aisdk.TextStart{ID: m.openTextID, ProviderMetadata: m.textStartMetadata()})
		}
		out = append(out, aisdk.TextDelta{ID: m.openTextID, Delta: ev.Delta})
		return out

	case ReasoningStartEvent:
		id := ev.ID
		if id == "" {
			id = fallbackReasoningID
		}
		m.openReasoningID = id
		var pm aisdk.ProviderMetadata
		if m.cfg.Hooks.ReasoningStartMetadata != nil {
			pm = m.cfg.Hooks.ReasoningStartMetadata()
		}
		return []aisdk.StreamPart{aisdk.ReasoningStart{ID: id, ProviderMetadata: pm}}

	case ReasoningDeltaEvent:
		var out []aisdk.StreamPart
		if m.openReasoningID == "" {
			m.openReasoningID = fallbackReasoningID
			var pm aisdk.ProviderMetadata
			if m.cfg.Hooks.ReasoningStartMetadata != nil {
				pm = m.cfg.Hooks.ReasoningStartMetadata()
			}
			out = append(out, aisdk.ReasoningStart{ID: m.openReasoningID, ProviderMetadata: pm})
		}
		out = append(out, aisdk.ReasoningDelta{ID: m.openReasoningID, Delta: ev.Delta})
		return out

	case ReasoningEndEvent:
		if m.openReasoningID == "" {
			return nil
		}
		id := m.openReasoningID
		m.openReasoningID = ""
		return []aisdk.StreamPart{aisdk.ReasoningEnd{ID: id}}

	case UsageEvent:
		m.state.Usage.Merge(usageFromTokens(ev.Usage))
		return nil

	case ToolCallStartEvent:
		if _, asText := m.cfg.TreatToolNamesAsText[ev.Name]; asText {
			m.toolAsText[ev.ID] = true
			return []aisdk.StreamPart{aisdk.TextStart{ID: ev.ID, ProviderMetadata: m.textStartMetadata()}}
		}
		m.toolNames[ev.ID] = ev.Name
		m.toolArgs[ev.ID] = ""
		m.openTools = append(m.openTools, ev.ID)
		m.state.HasToolCalls = true
		var pm aisdk.ProviderMetadata
		if m.cfg.Hooks.ToolStartMetadata != nil {
			pm = m.cfg.Hooks.ToolStartMetadata(ev.ID, ev.Name)
		}
		return []aisdk.StreamPart{aisdk.ToolInputStart{ID: ev.ID, ToolName: ev.Name, ProviderMetadata: pm}}

	case ToolCallDeltaEvent:
		if m.toolAsText[ev.ID] {
			return []aisdk.StreamPart{aisdk.TextDelta{ID: ev.ID, Delta: ev.ArgsJSON}}
		}
		if _, ok := m.toolNames[ev.ID]; !ok {
			return nil
		}
		m.toolArgs[ev.ID] += ev.ArgsJSON
		return []aisdk.StreamPart{aisdk.ToolInputDelta{ID: ev.ID, Delta: ev.ArgsJSON}}

	case ToolCallEndEvent:
		if m.toolAsText[ev.ID] {
			delete(m.toolAsText, ev.ID)
			return []aisdk.StreamPart{aisdk.TextEnd{ID: ev.ID}}
		}
		name, ok := m.toolNames[ev.ID]
		if !ok {
			return nil
		}
		input := m.toolArgs[ev.ID]
		if input == "" {
			input = "{}"
		}
		delete(m.toolNames, ev.ID)
		delete(m.toolArgs, ev.ID)
		m.removeOpenTool(ev.ID)
		var pm aisdk.ProviderMetadata
		if m.cfg.Hooks.ToolEndMetadata != nil {
			pm = m.cfg.Hooks.ToolEndMetadata(ev.ID)
		}
		return []aisdk.StreamPart{
			aisdk.ToolInputEnd{ID: ev.ID, ProviderMetadata: pm},
			aisdk.ToolCall{ToolCallID: ev.ID, ToolName: name, Input: input, ProviderMetadata: pm},
		}

	case DataEvent:
		if m.cfg.Hooks.Data != nil {
			return m.cfg.Hooks.Data(&m.state, ev.Key, ev.Value)
		}
		return nil

	case RawEvent:
		if m.cfg.IncludeRaw {
			return []aisdk.StreamPart{aisdk.RawPart{Value: ev.Raw}}
		}
		return nil

	case RetryingEvent:
		return nil

	case ErrorEvent:
		m.finished = true
		return []aisdk.StreamPart{aisdk.ErrorPart{Error: map[string]any{"message": ev.Message}}}

	case DoneEvent:
		m.finished = true
		out := m.closeOpen()
		reason := m.cfg.FinishReasonFallback
		var pm aisdk.ProviderMetadata
		if m.cfg.Hooks.Finish != nil {
			reason, pm = m.cfg.Hooks.Finish(&m.state)
		} else if m.state.HasToolCalls {
			reason = aisdk.FinishToolCalls
		}
		out = append(out, aisdk.Finish{Usage: m.state.Usage, FinishReason: reason, ProviderMetadata: pm})
		return out
	}
	return nil
}

// closeOpen emits End parts for anything still open at termination.
func (m *Mapper) closeOpen() []aisdk.StreamPart {
	var out []aisdk.StreamPart
	if m.openTextID != "" {
		out = append(out, aisdk.TextEnd{ID: m.openTextID})
		m.openTextID = ""
	}
	for id := range m.toolAsText {
		out = append(out, aisdk.TextEnd{ID: id})
		delete(m.toolAsText, id)
	}
	if m.openReasoningID != "" {
		out = append(out, aisdk.ReasoningEnd{ID: m.openReasoningID})
		m.openReasoningID = ""
	}
	for _, id := range m.openTools {
		name := m.toolNames[id]
		input := m.toolArgs[id]
		if input == "" {
			input = "{}"
		}
		out = append(out,
			aisdk.ToolInputEnd{ID: id},
			aisdk.ToolCall{ToolCallID: id, ToolName: name, Input: input},
		)
		delete(m.toolNames, id)
		delete(m.toolArgs, id)
	}
	m.openTools = nil
	return out
}

func (m *Mapper) removeOpenTool(id string) {
	for i, open := range m.openTools {
		if open == id {
			m.openTools = append(m.openTools[:i], m.openTools[i+1:]...)
			return
		}
	}
}

func (m *Mapper) textStartMetadata() aisdk.ProviderMetadata {
	if m.cfg.Hooks.TextStartMetadata != nil {
		return m.cfg.Hooks.TextStartMetadata()
	}
	return nil
}

func usageFromTokens(u TokenUsage) aisdk.Usage {
	out := aisdk.Usage{
		InputTokens:  aisdk.Int64(u.InputTokens),
		OutputTokens: aisdk.Int64(u.OutputTokens),
	}
	if u.TotalTokens > 0 {
		out.TotalTokens = aisdk.Int64(u.TotalTokens)
	} else {
		out.TotalTokens = aisdk.Int64(u.InputTokens + u.OutputTokens)
	}
	if u.CacheReadTokens != nil {
		out.CachedInputTokens = u.CacheReadTokens
	}
	return out
}
