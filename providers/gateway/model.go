package gateway

import (
	"context"

	"github.com/octanelabs/aisdk"
)

func (m *LanguageModel) applyDefaults(options aisdk.CallOptions) aisdk.CallOptions {
	options.ProviderOptions = aisdk.MergeProviderDefaults(options.ProviderOptions, m.defaults)
	return options
}

// buildBody serializes the options and layers configured request overrides
// on top; structural keys stay caller-controlled.
func (m *LanguageModel) buildBody(options aisdk.CallOptions) map[string]any {
	body := serializeCallOptions(options)
	if len(m.overrides) > 0 {
		aisdk.MergeRequestOverrides(body, m.overrides,
			[]string{"model", "prompt", "stream", "tools", "input"})
	}
	return body
}

func (m *LanguageModel) Generate(ctx context.Context, options aisdk.CallOptions) (*aisdk.GenerateResponse, error) {
	options = m.applyDefaults(options)
	body := m.buildBody(options)

	respBody, respHeaders, err := m.http.PostJSON(ctx,
		m.endpointURL(), m.mergeHeaders(options.Headers, false), body, m.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	root, _ := respBody.(map[string]any)
	content, err := parseContent(root["content"])
	if err != nil {
		return nil, err
	}

	return &aisdk.GenerateResponse{
		Content:          content,
		FinishReason:     parseFinishReason(firstField(root, "finish_reason", "finishReason")),
		Usage:            parseUsage(root["usage"]),
		ProviderMetadata: parseProviderMetadata(firstField(root, "provider_metadata", "providerMetadata")),
		Warnings:         parseCallWarnings(root["warnings"]),
		RequestBody:      body,
		ResponseHeaders:  respHeaders,
		ResponseBody:     respBody,
	}, nil
}

func (m *LanguageModel) Stream(ctx context.Context, options aisdk.CallOptions) (*aisdk.StreamResponse, error) {
	options = m.applyDefaults(options)
	body := m.buildBody(options)

	resp, err := m.http.PostJSONStream(ctx,
		m.endpointURL(), m.mergeHeaders(options.Headers, true), body, m.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	return &aisdk.StreamResponse{
		Stream:          newPartStream(resp.Body, options.IncludeRawChunks),
		RequestBody:     body,
		ResponseHeaders: resp.Headers,
	}, nil
}
