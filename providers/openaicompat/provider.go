// Package openaicompat implements language, embedding and image models for
// any endpoint speaking the OpenAI wire protocol: chat completions, legacy
// completions, embeddings and image generation.
package openaicompat

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	providerName = "openai-compatible"

	sdkVersion = "0.1.0"

	defaultMaxEmbeddingsPerCall = 2048
)

func init() {
	registry.Register(registry.Registration{
		ID:                providerName,
		SdkType:           catalog.SdkOpenAICompatible,
		NewLanguageModel:  newChatModel,
		NewEmbeddingModel: newEmbeddingModel,
		NewImageModel:     newImageModel,
		// Any definition with a base URL and no dedicated adapter is
		// assumed to speak the OpenAI chat protocol.
		Matches: func(def *catalog.ProviderDefinition) bool {
			return def.BaseURL != ""
		},
	})
	registry.Register(registry.Registration{
		ID:               "openai-compatible-chat",
		SdkType:          catalog.SdkOpenAICompatibleChat,
		NewLanguageModel: newChatModel,
	})
	registry.Register(registry.Registration{
		ID:               "openai-compatible-completion",
		SdkType:          catalog.SdkOpenAICompatibleCompletion,
		NewLanguageModel: newCompletionModel,
	})
	// Groq speaks the OpenAI chat protocol.
	registry.Register(registry.Registration{
		ID:               "groq",
		SdkType:          catalog.SdkGroq,
		NewLanguageModel: newChatModel,
	})
}

// settings are provider tuning flags carried in the definition's embedded
// options header under the provider's own scope.
type settings struct {
	includeUsage             bool
	supportsStructuredOutput bool
	maxEmbeddingsPerCall     int
	supportsParallelCalls    bool
}

func parseSettings(def *catalog.ProviderDefinition) settings {
	s := settings{
		includeUsage:          true,
		maxEmbeddingsPerCall:  defaultMaxEmbeddingsPerCall,
		supportsParallelCalls: true,
	}
	raw, ok := aisdk.ExtractOptionsFromHeaders(def.Headers)
	if !ok {
		return s
	}
	section, ok := raw[def.Name].(map[string]any)
	if !ok {
		return s
	}
	if b, ok := section["include_usage"].(bool); ok {
		s.includeUsage = b
	}
	if b, ok := section["supports_structured_outputs"].(bool); ok {
		s.supportsStructuredOutput = b
	}
	if n, ok := section["max_embeddings_per_call"].(float64); ok && n >= 0 {
		s.maxEmbeddingsPerCall = int(n)
	}
	if b, ok := section["supports_parallel_calls"].(bool); ok {
		s.supportsParallelCalls = b
	}
	return s
}

// base is the shared wiring for every model flavor of one provider.
type base struct {
	scope        string
	baseURL      string
	headers      map[string]string
	http         transport.HttpTransport
	transportCfg transport.Config
	queryParams  map[string]string
	defaults     aisdk.ProviderOptions
	settings     settings
}

func buildBase(cfg registry.ModelConfig) (*base, error) {
	def := cfg.Definition
	baseURL := strings.TrimSpace(def.BaseURL)
	if baseURL == "" {
		return nil, aisdk.InvalidArgument(fmt.Sprintf("openai-compatible provider %q requires base_url", def.Name))
	}

	headers := map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
	}
	if cfg.Credentials.Bearer != "" {
		headers["authorization"] = bearerValue(cfg.Credentials.Bearer)
	} else if cfg.Credentials.APIKey != "" {
		headers["authorization"] = "Bearer " + cfg.Credentials.APIKey
	}
	var defaults aisdk.ProviderOptions
	for k, v := range def.Headers {
		kl := strings.ToLower(k)
		if kl == "content-type" || kl == "accept" || kl == "authorization" || kl == "x-api-key" {
			continue
		}
		if aisdk.IsInternalSDKHeader(kl) {
			if raw, ok := aisdk.ExtractOptionsFromHeaders(map[string]string{kl: v}); ok {
				if opts, ok := aisdk.ProviderDefaultsFromJSON(def.Name, raw); ok {
					defaults = opts
				}
			}
			continue
		}
		headers[kl] = v
	}
	for k, v := range cfg.Headers {
		headers[strings.ToLower(k)] = v
	}
	applyUserAgentSuffix(headers)

	tcfg := cfg.TransportConfig
	if tcfg == (transport.Config{}) {
		tcfg = registry.BuildProviderTransportConfig(def)
	}
	http := cfg.Transport
	if http == nil {
		http = transport.NewRestyTransport(tcfg)
	}
	if defaults == nil && len(cfg.ProviderOptions) > 0 {
		defaults = cfg.ProviderOptions
	}

	return &base{
		scope:        def.Name,
		baseURL:      strings.TrimRight(baseURL, "/"),
		headers:      headers,
		http:         http,
		transportCfg: tcfg,
		queryParams:  def.QueryParams,
		defaults:     defaults,
		settings:     parseSettings(def),
	}, nil
}

func bearerValue(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

func applyUserAgentSuffix(headers map[string]string) {
	suffix := "ai-sdk/" + providerName + "/" + sdkVersion
	existing := strings.TrimSpace(headers["user-agent"])
	if existing == "" {
		headers["user-agent"] = suffix
		return
	}
	headers["user-agent"] = existing + " " + suffix
}

// requestURL joins the base URL with an endpoint path and the provider's
// static query params.
func (b *base) requestURL(path string) string {
	u := b.baseURL + path
	if len(b.queryParams) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range b.queryParams {
		q.Set(k, v)
	}
	return u + "?" + q.Encode()
}

// callHeaders merges per-call header overrides over the adapter headers,
// dropping the internal SDK family.
func (b *base) callHeaders(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(b.headers)+len(overrides))
	for k, v := range b.headers {
		out[k] = v
	}
	for k, v := range overrides {
		if aisdk.IsInternalSDKHeader(k) {
			continue
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

// applyDefaults merges configured default provider options under the call's
// options; explicit call options win.
func (b *base) applyDefaults(opts aisdk.CallOptions) aisdk.CallOptions {
	if len(b.defaults) == 0 {
		return opts
	}
	opts.ProviderOptions = aisdk.MergeProviderDefaults(opts.ProviderOptions, b.defaults)
	return opts
}
