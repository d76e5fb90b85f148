package google

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/google/uuid"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
)

// Fields the raw option extras may never override.
var disallowedExtraKeys = []string{"contents", "systemInstruction"}

func (m *LanguageModel) buildBody(options aisdk.CallOptions) (map[string]any, []aisdk.CallWarning) {
	var warnings []aisdk.CallWarning
	opts := parseProviderOptions(options.ProviderOptions, m.cfg.OptionScopes)

	if m.cfg.WarnOnIncludeThoughts && opts.includeThoughts != nil && *opts.includeThoughts {
		warnings = append(warnings, aisdk.CallWarning{
			Type: "other",
			Message: "The 'includeThoughts' option is only supported with the Google Vertex provider " +
				"and might not be supported or could behave unexpectedly with the current Google provider (" +
				m.cfg.ProviderName + ").",
		})
	}

	generationConfig := map[string]any{}
	if options.MaxOutputTokens != nil {
		generationConfig["maxOutputTokens"] = *options.MaxOutputTokens
	}
	if options.Temperature != nil {
		generationConfig["temperature"] = *options.Temperature
	}
	if options.TopK != nil {
		generationConfig["topK"] = *options.TopK
	}
	if options.TopP != nil {
		generationConfig["topP"] = *options.TopP
	}
	if options.FrequencyPenalty != nil {
		generationConfig["frequencyPenalty"] = *options.FrequencyPenalty
	}
	if options.PresencePenalty != nil {
		generationConfig["presencePenalty"] = *options.PresencePenalty
	}
	if len(options.StopSequences) > 0 {
		generationConfig["stopSequences"] = options.StopSequences
	}
	if options.Seed != nil {
		generationConfig["seed"] = *options.Seed
	}

	if options.ResponseFormat != nil && options.ResponseFormat.Type == "json" {
		generationConfig["responseMimeType"] = "application/json"
		structured := opts.structuredOutputs == nil || *opts.structuredOutputs
		if options.ResponseFormat.Schema != nil && structured {
			if schema := convertJSONSchemaToOpenAPI(options.ResponseFormat.Schema); schema != nil {
				generationConfig["responseSchema"] = schema
			}
		}
	}

	if len(opts.responseModalities) > 0 {
		generationConfig["responseModalities"] = opts.responseModalities
	}
	thinkingConfig := map[string]any{}
	if opts.thinkingBudget != nil {
		thinkingConfig["thinkingBudget"] = *opts.thinkingBudget
	}
	if opts.includeThoughts != nil {
		thinkingConfig["includeThoughts"] = *opts.includeThoughts
	}
	if len(thinkingConfig) > 0 {
		generationConfig["thinkingConfig"] = thinkingConfig
	}
	if opts.audioTimestamp != nil {
		generationConfig["audioTimestamp"] = *opts.audioTimestamp
	}

	conv := convertPrompt(options.Prompt, m.cfg.OptionScopes, m.isGemma())
	warnings = append(warnings, conv.warnings...)

	body := map[string]any{
		"generationConfig": generationConfig,
		"contents":         conv.contents,
	}
	if conv.systemInstruction != nil {
		body["systemInstruction"] = conv.systemInstruction
	}

	if len(options.Tools) > 0 || options.ToolChoice != nil {
		tools, toolConfig, toolWarnings := prepareTools(options.Tools, options.ToolChoice, m.modelID)
		warnings = append(warnings, toolWarnings...)
		if len(tools) > 0 {
			body["tools"] = tools
		}
		if toolConfig != nil {
			body["toolConfig"] = toolConfig
		}
	}

	if opts.threshold != "" {
		body["threshold"] = opts.threshold
	}
	if len(opts.safetySettings) > 0 {
		body["safetySettings"] = opts.safetySettings
	}
	if opts.cachedContent != "" {
		body["cachedContent"] = opts.cachedContent
	}
	if len(opts.labels) > 0 {
		body["labels"] = opts.labels
	}

	applyExtras(body, opts.extras)
	return body, warnings
}

// applyExtras merges unrecognized provider options into the body. Nested
// objects such as generationConfig deep-merge into the built fields; the
// prompt-bearing fields are never overridable.
func applyExtras(body map[string]any, extras map[string]any) {
	if len(extras) == 0 {
		return
	}
	jsonx.MergeWithDisallow(body, extras, disallowedExtraKeys)
}

func (m *LanguageModel) Generate(ctx context.Context, options aisdk.CallOptions) (*aisdk.GenerateResponse, error) {
	options = m.applyDefaults(options)
	body, warnings := m.buildBody(options)

	parsed, respHeaders, err := m.cfg.HTTP.PostJSON(ctx,
		m.requestURL("generateContent", nil),
		m.callHeaders(options.Headers),
		body, m.cfg.TransportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	frame, _ := parsed.(map[string]any)
	resp := parseGenerateResponse(frame, m.cfg.OptionScopes[0])
	resp.Warnings = warnings
	resp.RequestBody = body
	resp.ResponseHeaders = respHeaders
	resp.ResponseBody = frame
	return resp, nil
}

// parseGenerateResponse walks the first candidate of a generateContent
// response into neutral content.
func parseGenerateResponse(frame map[string]any, scope string) *aisdk.GenerateResponse {
	resp := &aisdk.GenerateResponse{FinishReason: aisdk.FinishUnknown}

	var candidate map[string]any
	if candidates, ok := frame["candidates"].([]any); ok && len(candidates) > 0 {
		candidate, _ = candidates[0].(map[string]any)
	}

	hasToolCalls := false
	var lastCodeToolID string
	if candidate != nil {
		if content, ok := candidate["content"].(map[string]any); ok {
			if parts, ok := content["parts"].([]any); ok {
				for _, raw := range parts {
					part, ok := raw.(map[string]any)
					if !ok {
						continue
					}
					switch {
					case hasKey(part, "executableCode"):
						code, _ := part["executableCode"].(map[string]any)
						if code["code"] == nil || code["code"] == "" {
							continue
						}
						lastCodeToolID = uuid.NewString()
						resp.Content = append(resp.Content, aisdk.ToolCallContent{
							ToolCallID:       lastCodeToolID,
							ToolName:         "code_execution",
							Input:            encodeJSON(code),
							ProviderExecuted: true,
						})
						hasToolCalls = true
					case hasKey(part, "codeExecutionResult"):
						result, _ := part["codeExecutionResult"].(map[string]any)
						if lastCodeToolID == "" {
							continue
						}
						resp.Content = append(resp.Content, aisdk.ToolResultContent{
							ToolCallID: lastCodeToolID,
							ToolName:   "code_execution",
							Result: map[string]any{
								"outcome": result["outcome"],
								"output":  result["output"],
							},
						})
						lastCodeToolID = ""
					case hasKey(part, "text"):
						text, _ := part["text"].(string)
						if text == "" {
							continue
						}
						if thought, _ := part["thought"].(bool); thought {
							resp.Content = append(resp.Content, aisdk.ReasoningContent{
								Text:             text,
								ProviderMetadata: signatureMetadata(part, scope),
							})
						} else {
							resp.Content = append(resp.Content, aisdk.TextContent{Text: text})
						}
					case hasKey(part, "functionCall"):
						call, _ := part["functionCall"].(map[string]any)
						name, _ := call["name"].(string)
						resp.Content = append(resp.Content, aisdk.ToolCallContent{
							ToolCallID:      uuid.NewString(),
							ToolName:        name,
							Input:           encodeJSON(call["args"]),
							ProviderOptions: signatureOptions(part, scope),
						})
						hasToolCalls = true
					case hasKey(part, "inlineData"):
						blob, _ := part["inlineData"].(map[string]any)
						mime, _ := blob["mimeType"].(string)
						data, _ := blob["data"].(string)
						resp.Content = append(resp.Content, aisdk.FileContent{MediaType: mime, Data: data})
					}
				}
			}
		}
		for _, source := range groundingSources(candidate) {
			resp.Content = append(resp.Content, source)
		}
		if reason, ok := candidate["finishReason"].(string); ok {
			resp.FinishReason = mapFinishReason(reason, hasToolCalls)
		}
	}

	usageMeta, _ := frame["usageMetadata"].(map[string]any)
	resp.Usage = usageFromMetadata(usageMeta)
	resp.ProviderMetadata = finishProviderMetadata(candidate, usageMeta, scope)
	return resp
}

// groundingSources extracts deduplicated web sources from grounding
// metadata.
func groundingSources(candidate map[string]any) []aisdk.SourceContent {
	grounding, ok := candidate["groundingMetadata"].(map[string]any)
	if !ok {
		return nil
	}
	chunks, ok := grounding["groundingChunks"].([]any)
	if !ok {
		return nil
	}
	seen := map[string]struct{}{}
	var out []aisdk.SourceContent
	for _, raw := range chunks {
		chunk, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		web, ok := chunk["web"].(map[string]any)
		if !ok {
			continue
		}
		uri, _ := web["uri"].(string)
		if uri == "" {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		title, _ := web["title"].(string)
		out = append(out, aisdk.SourceContent{ID: uuid.NewString(), URL: uri, Title: title})
	}
	return out
}

func mapFinishReason(reason string, hasToolCalls bool) aisdk.FinishReason {
	switch reason {
	case "STOP":
		if hasToolCalls {
			return aisdk.FinishToolCalls
		}
		return aisdk.FinishStop
	case "MAX_TOKENS":
		return aisdk.FinishLength
	case "IMAGE_SAFETY", "RECITATION", "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return aisdk.FinishContentFilter
	case "FINISH_REASON_UNSPECIFIED", "OTHER":
		return aisdk.FinishOther
	case "MALFORMED_FUNCTION_CALL":
		return aisdk.FinishError
	}
	return aisdk.FinishUnknown
}

func usageFromMetadata(meta map[string]any) aisdk.Usage {
	var usage aisdk.Usage
	if meta == nil {
		return usage
	}
	if n, ok := int64Key(meta, "promptTokenCount"); ok {
		usage.InputTokens = &n
	}
	if n, ok := int64Key(meta, "candidatesTokenCount"); ok {
		usage.OutputTokens = &n
	}
	if n, ok := int64Key(meta, "totalTokenCount"); ok {
		usage.TotalTokens = &n
	}
	if n, ok := int64Key(meta, "thoughtsTokenCount"); ok {
		usage.ReasoningTokens = &n
	}
	if n, ok := int64Key(meta, "cachedContentTokenCount"); ok {
		usage.CachedInputTokens = &n
	}
	return usage
}

// finishProviderMetadata echoes grounding, URL-context and safety details
// under the provider scope.
func finishProviderMetadata(candidate, usageMeta map[string]any, scope string) aisdk.ProviderMetadata {
	section := map[string]any{}
	if candidate != nil {
		if v, ok := candidate["groundingMetadata"]; ok {
			section["groundingMetadata"] = v
		}
		if v, ok := candidate["urlContextMetadata"]; ok {
			section["urlContextMetadata"] = v
		}
		if v, ok := candidate["safetyRatings"]; ok {
			section["safetyRatings"] = v
		}
	}
	if usageMeta != nil {
		section["usageMetadata"] = usageMeta
	}
	if len(section) == 0 {
		return nil
	}
	return aisdk.ProviderMetadata{scope: section}
}

func signatureMetadata(part map[string]any, scope string) aisdk.ProviderMetadata {
	sig, _ := part["thoughtSignature"].(string)
	if sig == "" {
		return nil
	}
	return aisdk.ProviderMetadata{scope: {"thoughtSignature": sig}}
}

func signatureOptions(part map[string]any, scope string) aisdk.ProviderOptions {
	sig, _ := part["thoughtSignature"].(string)
	if sig == "" {
		return nil
	}
	return aisdk.ProviderOptions{scope: {"thoughtSignature": sig}}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func encodeJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (m *LanguageModel) Stream(ctx context.Context, options aisdk.CallOptions) (*aisdk.StreamResponse, error) {
	options = m.applyDefaults(options)
	body, warnings := m.buildBody(options)

	headers := m.callHeaders(options.Headers)
	headers["accept"] = "text/event-stream"

	resp, err := m.cfg.HTTP.PostJSONStream(ctx,
		m.requestURL("streamGenerateContent", url.Values{"alt": {"sse"}}),
		headers, body, m.cfg.TransportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	return &aisdk.StreamResponse{
		Stream:          newPartStream(resp.Body, m.cfg.OptionScopes[0], warnings, options.IncludeRawChunks),
		RequestBody:     body,
		ResponseHeaders: resp.Headers,
	}, nil
}
