package aisdk

import (
	"context"
	"io"
	"time"
)

// FinishReason is the closed set of reasons a response ended.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content-filter"
	FinishToolCalls     FinishReason = "tool-calls"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
	FinishUnknown       FinishReason = "unknown"
)

// Usage reports token counts for a call. Nil fields were not reported by the
// provider.
type Usage struct {
	InputTokens       *int64
	OutputTokens      *int64
	TotalTokens       *int64
	ReasoningTokens   *int64
	CachedInputTokens *int64
}

// Merge overlays counts from other, keeping existing values when other does
// not report them.
func (u *Usage) Merge(other Usage) {
	if other.InputTokens != nil {
		u.InputTokens = other.InputTokens
	}
	if other.OutputTokens != nil {
		u.OutputTokens = other.OutputTokens
	}
	if other.TotalTokens != nil {
		u.TotalTokens = other.TotalTokens
	}
	if other.ReasoningTokens != nil {
		u.ReasoningTokens = other.ReasoningTokens
	}
	if other.CachedInputTokens != nil {
		u.CachedInputTokens = other.CachedInputTokens
	}
}

// Int64 returns a pointer to v, for building Usage literals.
func Int64(v int64) *int64 { return &v }

// StreamPart is the canonical tagged union of streaming events. A stream is
// a finite sequence: exactly one StreamStart first, zero or more content
// parts, and exactly one terminator (Finish or ErrorPart). Every *Start for
// an id is matched by one *End for that id before the terminator.
type StreamPart interface {
	isStreamPart()
}

type StreamStart struct {
	Warnings []CallWarning
}

type TextStart struct {
	ID               string
	ProviderMetadata ProviderMetadata
}

type TextDelta struct {
	ID               string
	Delta            string
	ProviderMetadata ProviderMetadata
}

type TextEnd struct {
	ID               string
	ProviderMetadata ProviderMetadata
}

type ReasoningStart struct {
	ID               string
	ProviderMetadata ProviderMetadata
}

type ReasoningDelta struct {
	ID               string
	Delta            string
	ProviderMetadata ProviderMetadata
}

type ReasoningEnd struct {
	ID               string
	ProviderMetadata ProviderMetadata
}

// ReasoningSignature carries the opaque provider token that must be round-
// tripped with reasoning content on providers that validate it.
type ReasoningSignature struct {
	ID               string
	Signature        string
	ProviderMetadata ProviderMetadata
}

type ToolInputStart struct {
	ID               string
	ToolName         string
	ProviderExecuted bool
	ProviderMetadata ProviderMetadata
}

type ToolInputDelta struct {
	ID               string
	Delta            string
	ProviderExecuted bool
	ProviderMetadata ProviderMetadata
}

type ToolInputEnd struct {
	ID               string
	ProviderExecuted bool
	ProviderMetadata ProviderMetadata
}

type ToolCall struct {
	ToolCallID       string
	ToolName         string
	Input            string // JSON string
	ProviderExecuted bool
	Dynamic          bool
	ProviderMetadata ProviderMetadata
	ProviderOptions  ProviderOptions
}

type ToolResult struct {
	ToolCallID       string
	ToolName         string
	Result           any
	IsError          bool
	Preliminary      bool
	ProviderMetadata ProviderMetadata
}

type ToolApprovalRequest struct {
	ApprovalID       string
	ToolCallID       string
	ProviderMetadata ProviderMetadata
}

type FileData struct {
	MediaType string
	Data      string // base64
}

type SourceURL struct {
	ID               string
	URL              string
	Title            string
	ProviderMetadata ProviderMetadata
}

type ResponseMetadata struct {
	ID        string
	ModelID   string
	Timestamp time.Time
}

type RawPart struct {
	Value any
}

type ErrorPart struct {
	Error any
}

type Finish struct {
	Usage            Usage
	FinishReason     FinishReason
	ProviderMetadata ProviderMetadata
}

func (StreamStart) isStreamPart()         {}
func (TextStart) isStreamPart()           {}
func (TextDelta) isStreamPart()           {}
func (TextEnd) isStreamPart()             {}
func (ReasoningStart) isStreamPart()      {}
func (ReasoningDelta) isStreamPart()      {}
func (ReasoningEnd) isStreamPart()        {}
func (ReasoningSignature) isStreamPart()  {}
func (ToolInputStart) isStreamPart()      {}
func (ToolInputDelta) isStreamPart()      {}
func (ToolInputEnd) isStreamPart()        {}
func (ToolCall) isStreamPart()            {}
func (ToolResult) isStreamPart()          {}
func (ToolApprovalRequest) isStreamPart() {}
func (FileData) isStreamPart()            {}
func (SourceURL) isStreamPart()           {}
func (ResponseMetadata) isStreamPart()    {}
func (RawPart) isStreamPart()             {}
func (ErrorPart) isStreamPart()           {}
func (Finish) isStreamPart()              {}

// PartStream yields the parts of one streaming response in order. Next
// returns io.EOF once the terminal part has been delivered. Closing the
// stream releases the underlying connection.
type PartStream interface {
	Next(ctx context.Context) (StreamPart, error)
	Close() error
}

// SlicePartStream replays a fixed sequence of parts. Useful in tests and in
// adapters that compute all parts eagerly.
type SlicePartStream struct {
	Parts []StreamPart
	pos   int
}

func (s *SlicePartStream) Next(ctx context.Context) (StreamPart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.Parts) {
		return nil, io.EOF
	}
	p := s.Parts[s.pos]
	s.pos++
	return p, nil
}

func (s *SlicePartStream) Close() error { return nil }
