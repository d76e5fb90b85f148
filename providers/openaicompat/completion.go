package openaicompat

import (
	"context"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/registry"
)

// CompletionLanguageModel talks to a legacy /completions endpoint.
type CompletionLanguageModel struct {
	modelID string
	base    *base
}

func newCompletionModel(cfg registry.ModelConfig) (aisdk.LanguageModel, error) {
	b, err := buildBase(cfg)
	if err != nil {
		return nil, err
	}
	return &CompletionLanguageModel{modelID: cfg.ModelID, base: b}, nil
}

func (m *CompletionLanguageModel) ProviderName() string { return providerName }
func (m *CompletionLanguageModel) ModelID() string      { return m.modelID }
func (m *CompletionLanguageModel) SpecificationVersion() string {
	return aisdk.LanguageModelSpecVersion
}

func (m *CompletionLanguageModel) SupportedURLs() map[string][]string {
	return map[string][]string{
		"text/*": {
			`^https?://.*/v1/completions$`,
			`^https?://.*/v1/chat/completions$`,
		},
	}
}

func (m *CompletionLanguageModel) buildRequestBody(options aisdk.CallOptions) (map[string]any, []aisdk.CallWarning, error) {
	var warnings []aisdk.CallWarning
	if options.TopK != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("topK", ""))
	}
	if len(options.Tools) > 0 {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("tools", ""))
	}
	if options.ToolChoice != nil {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("toolChoice", ""))
	}
	if options.ResponseFormat != nil && options.ResponseFormat.Type == "json" {
		warnings = append(warnings, aisdk.UnsupportedSettingWarning("responseFormat", "JSON response format is not supported."))
	}

	scopes := []string{providerName, m.base.scope}
	provOpts, extras := parseCompletionProviderOptions(options.ProviderOptions, scopes)

	prompt, stops, err := convertCompletionPrompt(options.Prompt, "user", "assistant")
	if err != nil {
		return nil, nil, err
	}
	stops = append(stops, options.StopSequences...)

	body := map[string]any{"model": m.modelID}
	if provOpts.echo != nil {
		body["echo"] = *provOpts.echo
	}
	if provOpts.logitBias != nil {
		body["logit_bias"] = provOpts.logitBias
	}
	if provOpts.suffix != "" {
		body["suffix"] = provOpts.suffix
	}
	if provOpts.user != "" {
		body["user"] = provOpts.user
	}
	if options.MaxOutputTokens != nil {
		body["max_tokens"] = *options.MaxOutputTokens
	}
	if options.Temperature != nil {
		body["temperature"] = *options.Temperature
	}
	if options.TopP != nil {
		body["top_p"] = *options.TopP
	}
	if options.FrequencyPenalty != nil {
		body["frequency_penalty"] = *options.FrequencyPenalty
	}
	if options.PresencePenalty != nil {
		body["presence_penalty"] = *options.PresencePenalty
	}
	if options.Seed != nil {
		body["seed"] = *options.Seed
	}
	for k, v := range extras {
		body[k] = v
	}
	// Prompt and stop go last so extras cannot clobber them.
	body["prompt"] = prompt
	if len(stops) > 0 {
		body["stop"] = stops
	}
	return body, warnings, nil
}

func (m *CompletionLanguageModel) Generate(ctx context.Context, options aisdk.CallOptions) (*aisdk.GenerateResponse, error) {
	streamResp, err := m.Stream(ctx, options)
	if err != nil {
		return nil, err
	}
	resp, err := aisdk.Collect(ctx, streamResp.Stream, aisdk.CollectConfig{FailOnError: true})
	if err != nil {
		return nil, err
	}
	resp.RequestBody = streamResp.RequestBody
	resp.ResponseHeaders = streamResp.ResponseHeaders
	return resp, nil
}

func (m *CompletionLanguageModel) Stream(ctx context.Context, options aisdk.CallOptions) (*aisdk.StreamResponse, error) {
	options = m.base.applyDefaults(options)
	body, warnings, err := m.buildRequestBody(options)
	if err != nil {
		return nil, err
	}
	body["stream"] = true
	if m.base.settings.includeUsage {
		body["stream_options"] = map[string]any{"include_usage": true}
	}

	resp, err := m.base.http.PostJSONStream(ctx,
		m.base.requestURL("/completions"),
		m.base.callHeaders(options.Headers),
		body, m.base.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	stream := newPartStream(resp.Body, streamSettings{
		warnings:     warnings,
		includeRaw:   options.IncludeRawChunks,
		includeUsage: m.base.settings.includeUsage,
		scope:        m.base.scope,
	}, modeCompletion)

	return &aisdk.StreamResponse{
		Stream:          stream,
		RequestBody:     body,
		ResponseHeaders: resp.Headers,
	}, nil
}
