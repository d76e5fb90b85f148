package aisdk

import (
	"context"
	"time"
)

// Content is one item of generated output. Concrete types are TextContent,
// ReasoningContent, FileContent, SourceContent, ToolCallContent,
// ToolResultContent and ToolApprovalRequestContent.
type Content interface {
	isContent()
}

type TextContent struct {
	Text             string
	ProviderMetadata ProviderMetadata
}

type ReasoningContent struct {
	Text             string
	ProviderMetadata ProviderMetadata
}

type FileContent struct {
	MediaType string
	Data      string // base64
}

type SourceContent struct {
	ID               string
	URL              string
	Title            string
	ProviderMetadata ProviderMetadata
}

type ToolCallContent struct {
	ToolCallID       string
	ToolName         string
	Input            string
	ProviderExecuted bool
	ProviderMetadata ProviderMetadata
	ProviderOptions  ProviderOptions
}

type ToolResultContent struct {
	ToolCallID       string
	ToolName         string
	Result           any
	IsError          bool
	ProviderMetadata ProviderMetadata
}

// ToolApprovalRequestContent asks the caller to approve or deny a
// provider-executed tool call before it runs.
type ToolApprovalRequestContent struct {
	ApprovalID       string
	ToolCallID       string
	ProviderMetadata ProviderMetadata
}

func (TextContent) isContent()                {}
func (ReasoningContent) isContent()           {}
func (FileContent) isContent()                {}
func (SourceContent) isContent()              {}
func (ToolCallContent) isContent()            {}
func (ToolResultContent) isContent()          {}
func (ToolApprovalRequestContent) isContent() {}

// GenerateResponse is the result of a non-streaming call, or of collecting a
// stream.
type GenerateResponse struct {
	Content          []Content
	FinishReason     FinishReason
	Usage            Usage
	ProviderMetadata ProviderMetadata
	ResponseHeaders  map[string]string
	Warnings         []CallWarning
	RequestBody      any
	ResponseBody     any
}

// Text concatenates all text content items.
func (r *GenerateResponse) Text() string {
	var out string
	for _, c := range r.Content {
		if t, ok := c.(TextContent); ok {
			out += t.Text
		}
	}
	return out
}

// ToolCalls returns the tool-call content items in order.
func (r *GenerateResponse) ToolCalls() []ToolCallContent {
	var out []ToolCallContent
	for _, c := range r.Content {
		if tc, ok := c.(ToolCallContent); ok {
			out = append(out, tc)
		}
	}
	return out
}

// StreamResponse is the result of a streaming call. Stream must be drained
// or closed by the caller.
type StreamResponse struct {
	Stream          PartStream
	RequestBody     any
	ResponseHeaders map[string]string
}

// LanguageModel is the uniform generation capability implemented by every
// provider adapter. Adapters never retry; retry is opt-in at the call site.
type LanguageModel interface {
	ProviderName() string
	ModelID() string
	SpecificationVersion() string
	// SupportedURLs maps media-type patterns to URL regexes the provider can
	// fetch itself, so callers can pass references instead of bytes.
	SupportedURLs() map[string][]string

	Generate(ctx context.Context, options CallOptions) (*GenerateResponse, error)
	Stream(ctx context.Context, options CallOptions) (*StreamResponse, error)
}

// LanguageModelSpecVersion is the specification version implemented by all
// bundled language models.
const LanguageModelSpecVersion = "v2"

// EmbedOptions is the request for an embedding call.
type EmbedOptions struct {
	Values          []string
	Headers         map[string]string
	ProviderOptions ProviderOptions
}

type EmbedUsage struct {
	Tokens *int64
}

type EmbedResponse struct {
	Embeddings       [][]float32
	Usage            *EmbedUsage
	ProviderMetadata ProviderMetadata
	ResponseHeaders  map[string]string
	ResponseBody     any
	RequestBody      any
}

// EmbeddingModel embeds batches of input strings.
type EmbeddingModel interface {
	ProviderName() string
	ModelID() string
	SpecificationVersion() string
	// MaxEmbeddingsPerCall returns 0 when the provider has no limit.
	MaxEmbeddingsPerCall() int
	SupportsParallelCalls() bool

	Embed(ctx context.Context, options EmbedOptions) (*EmbedResponse, error)
}

// EmbeddingModelSpecVersion is the specification version implemented by all
// bundled embedding models.
const EmbeddingModelSpecVersion = "v3"

// ImageFile is an input image, either inline data or a URL reference.
type ImageFile struct {
	MediaType string
	Data      DataContent
}

// ImageOptions is the request for an image generation or edit call.
type ImageOptions struct {
	Prompt          string
	N               int
	Size            string
	AspectRatio     string
	Seed            *int64
	Files           []ImageFile
	Mask            *ImageFile
	Headers         map[string]string
	ProviderOptions ProviderOptions
}

type ImageUsage struct {
	InputTokens  *int64
	OutputTokens *int64
	TotalTokens  *int64
}

type ImageResponseMeta struct {
	Timestamp time.Time
	ModelID   string
	Headers   map[string]string
}

type ImageResponse struct {
	// Images are base64-encoded payloads.
	Images           []string
	Warnings         []CallWarning
	ProviderMetadata ProviderMetadata
	Response         ImageResponseMeta
	Usage            *ImageUsage
	ResponseBody     any
	RequestBody      any
}

// ImageModel generates or edits images.
type ImageModel interface {
	ProviderName() string
	ModelID() string
	SpecificationVersion() string
	// MaxImagesPerCall returns 0 when the provider has no limit.
	MaxImagesPerCall() int

	GenerateImages(ctx context.Context, options ImageOptions) (*ImageResponse, error)
}

// ImageModelSpecVersion is the specification version implemented by all
// bundled image models.
const ImageModelSpecVersion = "v3"
