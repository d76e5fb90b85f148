package openaicompat

import (
	"context"
	"fmt"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/registry"
)

// EmbeddingModel talks to an /embeddings endpoint.
type EmbeddingModel struct {
	modelID string
	base    *base
}

func newEmbeddingModel(cfg registry.ModelConfig) (aisdk.EmbeddingModel, error) {
	b, err := buildBase(cfg)
	if err != nil {
		return nil, err
	}
	return &EmbeddingModel{modelID: cfg.ModelID, base: b}, nil
}

func (m *EmbeddingModel) ProviderName() string         { return providerName }
func (m *EmbeddingModel) ModelID() string              { return m.modelID }
func (m *EmbeddingModel) SpecificationVersion() string { return aisdk.EmbeddingModelSpecVersion }
func (m *EmbeddingModel) MaxEmbeddingsPerCall() int    { return m.base.settings.maxEmbeddingsPerCall }
func (m *EmbeddingModel) SupportsParallelCalls() bool  { return m.base.settings.supportsParallelCalls }

var embeddingKnownKeys = map[string]struct{}{
	"dimensions": {},
	"user":       {},
}

func (m *EmbeddingModel) buildRequestBody(options aisdk.EmbedOptions) map[string]any {
	scopes := []string{providerName, m.base.scope}

	var dimensions int
	var user string
	found := false
	for _, scope := range scopes {
		section, ok := options.ProviderOptions[scope]
		if !ok {
			continue
		}
		found = true
		if v, ok := section["dimensions"].(float64); ok {
			dimensions = int(v)
		}
		if v, ok := section["user"].(string); ok {
			user = v
		}
	}

	body := map[string]any{
		"input":           options.Values,
		"encoding_format": "float",
	}
	// Some endpoints require null rather than an empty model string.
	if m.modelID != "" {
		body["model"] = m.modelID
	} else {
		body["model"] = nil
	}
	if dimensions > 0 {
		body["dimensions"] = dimensions
	}
	if user != "" {
		body["user"] = user
	}
	if found {
		for k, v := range extrasFromLastScope(options.ProviderOptions, scopes, embeddingKnownKeys) {
			body[k] = v
		}
	}
	return body
}

func (m *EmbeddingModel) Embed(ctx context.Context, options aisdk.EmbedOptions) (*aisdk.EmbedResponse, error) {
	if len(m.base.defaults) > 0 {
		options.ProviderOptions = aisdk.MergeProviderDefaults(options.ProviderOptions, m.base.defaults)
	}

	if limit := m.base.settings.maxEmbeddingsPerCall; limit > 0 && len(options.Values) > limit {
		return nil, aisdk.InvalidArgument(
			fmt.Sprintf("too many embedding values: %d (max %d per call)", len(options.Values), limit))
	}

	body := m.buildRequestBody(options)
	decoded, headers, err := m.base.http.PostJSON(ctx,
		m.base.requestURL("/embeddings"),
		m.base.callHeaders(options.Headers),
		body, m.base.transportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	doc, ok := decoded.(map[string]any)
	if !ok {
		return nil, aisdk.SerdeError(fmt.Errorf("unexpected embeddings response shape"))
	}
	data, ok := doc["data"].([]any)
	if !ok {
		return nil, aisdk.SerdeError(fmt.Errorf("embeddings response missing data"))
	}

	embeddings := make([][]float32, 0, len(data))
	for _, item := range data {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		values, ok := entry["embedding"].([]any)
		if !ok {
			continue
		}
		vec := make([]float32, 0, len(values))
		for _, v := range values {
			f, ok := v.(float64)
			if !ok {
				return nil, aisdk.SerdeError(fmt.Errorf("non-numeric embedding value"))
			}
			vec = append(vec, float32(f))
		}
		embeddings = append(embeddings, vec)
	}

	resp := &aisdk.EmbedResponse{
		Embeddings:      embeddings,
		ResponseHeaders: headers,
		ResponseBody:    decoded,
		RequestBody:     body,
	}
	if usage, ok := doc["usage"].(map[string]any); ok {
		if tokens, ok := numberField(usage, "prompt_tokens"); ok {
			resp.Usage = &aisdk.EmbedUsage{Tokens: aisdk.Int64(tokens)}
		}
	}
	return resp, nil
}
