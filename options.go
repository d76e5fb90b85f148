package aisdk

// ResponseFormat selects the output shape for a generation call.
type ResponseFormat struct {
	// Type is "text" or "json".
	Type string
	// Schema is an optional JSON Schema for JSON output.
	Schema      map[string]any
	Name        string
	Description string
}

// Tool is either a FunctionTool or a ProviderDefinedTool.
type Tool interface {
	isTool()
}

// FunctionTool describes a caller-defined tool the model may call. The SDK
// never executes tools; it only surfaces tool-call requests.
type FunctionTool struct {
	Name            string
	Description     string
	InputSchema     map[string]any
	ProviderOptions ProviderOptions
}

// ProviderDefinedTool references a tool implemented by the provider itself,
// e.g. "google.google_search" or "anthropic.web_search".
type ProviderDefinedTool struct {
	ID   string
	Name string
	Args map[string]any
}

func (FunctionTool) isTool()        {}
func (ProviderDefinedTool) isTool() {}

// ToolChoice constrains which tool the model may call.
type ToolChoice struct {
	// Type is "auto", "none", "required" or "tool".
	Type string
	// ToolName names the forced tool when Type is "tool".
	ToolName string
}

// CallWarning reports a setting or tool the adapter could not honor.
// Warnings degrade gracefully instead of failing the call.
type CallWarning struct {
	// Type is "unsupported-setting", "unsupported-tool" or "other".
	Type    string
	Setting string
	Tool    string
	Details string
	Message string
}

func UnsupportedSettingWarning(setting, details string) CallWarning {
	return CallWarning{Type: "unsupported-setting", Setting: setting, Details: details}
}

func UnsupportedToolWarning(tool, details string) CallWarning {
	return CallWarning{Type: "unsupported-tool", Tool: tool, Details: details}
}

// CallOptions is the provider-agnostic request for a generate or stream
// call.
type CallOptions struct {
	Prompt []Message

	MaxOutputTokens  *int
	Temperature      *float64
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	StopSequences    []string
	Seed             *int64

	ResponseFormat *ResponseFormat
	Tools          []Tool
	ToolChoice     *ToolChoice

	// Headers are per-call header overrides merged over adapter headers.
	Headers map[string]string

	ProviderOptions ProviderOptions

	// IncludeRawChunks opts into RawPart passthrough of provider frames.
	IncludeRawChunks bool
}
