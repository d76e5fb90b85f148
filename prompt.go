package aisdk

// ProviderOptions carries provider-specific request options, namespaced by
// provider scope (e.g. "openai", "anthropic"). Unknown scopes are ignored by
// adapters.
type ProviderOptions map[string]map[string]any

// ProviderMetadata carries provider-specific response metadata, namespaced
// the same way as ProviderOptions.
type ProviderMetadata map[string]map[string]any

// Clone returns a shallow-per-scope copy safe for independent mutation of
// scope maps.
func (p ProviderOptions) Clone() ProviderOptions {
	if p == nil {
		return nil
	}
	out := make(ProviderOptions, len(p))
	for scope, kv := range p {
		inner := make(map[string]any, len(kv))
		for k, v := range kv {
			inner[k] = v
		}
		out[scope] = inner
	}
	return out
}

// Message is one entry of a prompt. Concrete types are SystemMessage,
// UserMessage, AssistantMessage and ToolMessage.
type Message interface {
	isMessage()
}

type SystemMessage struct {
	Content         string
	ProviderOptions ProviderOptions
}

type UserMessage struct {
	Content         []UserPart
	ProviderOptions ProviderOptions
}

type AssistantMessage struct {
	Content         []AssistantPart
	ProviderOptions ProviderOptions
}

type ToolMessage struct {
	Content         []ToolPart
	ProviderOptions ProviderOptions
}

func (SystemMessage) isMessage()    {}
func (UserMessage) isMessage()      {}
func (AssistantMessage) isMessage() {}
func (ToolMessage) isMessage()      {}

// UserPart is a part of a user message: TextPart or FilePart.
type UserPart interface {
	isUserPart()
}

// AssistantPart is a part of an assistant message: TextPart, ReasoningPart,
// FilePart, ToolCallPart or ToolResultPart.
type AssistantPart interface {
	isAssistantPart()
}

// ToolPart is a part of a tool message: ToolResultPart or
// ToolApprovalResponsePart.
type ToolPart interface {
	isToolPart()
}

// DataContent holds file data as exactly one of a URL, raw bytes, or a
// base64 string.
type DataContent struct {
	URL    string
	Bytes  []byte
	Base64 string
}

// IsURL reports whether the content is a URL reference.
func (d DataContent) IsURL() bool { return d.URL != "" }

type TextPart struct {
	Text            string
	ProviderOptions ProviderOptions
}

type FilePart struct {
	Filename        string
	MediaType       string
	Data            DataContent
	ProviderOptions ProviderOptions
}

type ReasoningPart struct {
	Text            string
	ProviderOptions ProviderOptions
}

type ToolCallPart struct {
	ToolCallID       string
	ToolName         string
	Input            string // free-form JSON string
	ProviderExecuted bool
	ProviderOptions  ProviderOptions
}

// ToolResultOutput is the payload of a tool result. Exactly one of the
// fields is meaningful, selected by Kind.
type ToolResultOutput struct {
	Kind    ToolResultOutputKind
	Text    string
	JSON    any
	Content []ToolResultInlineContent
}

type ToolResultOutputKind int

const (
	ToolResultText ToolResultOutputKind = iota
	ToolResultErrorText
	ToolResultJSON
	ToolResultErrorJSON
	ToolResultContentKind
)

// ToolResultInlineContent is one inline item of a content-typed tool result:
// text, or media given as base64 with a media type.
type ToolResultInlineContent struct {
	Text      string
	Data      string
	MediaType string
}

type ToolResultPart struct {
	ToolCallID      string
	ToolName        string
	Output          ToolResultOutput
	ProviderOptions ProviderOptions
}

type ToolApprovalResponsePart struct {
	ApprovalID string
	Approved   bool
}

func (TextPart) isUserPart() {}
func (FilePart) isUserPart() {}

func (TextPart) isAssistantPart()       {}
func (ReasoningPart) isAssistantPart()  {}
func (FilePart) isAssistantPart()       {}
func (ToolCallPart) isAssistantPart()   {}
func (ToolResultPart) isAssistantPart() {}

func (ToolResultPart) isToolPart()           {}
func (ToolApprovalResponsePart) isToolPart() {}
