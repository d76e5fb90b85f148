// Package anthropic implements a language model over the Anthropic Messages
// API, including extended thinking, prompt caching and the provider-executed
// tool families gated by beta headers.
package anthropic

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	providerName = "anthropic.messages"

	defaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"

	sdkVersion = "0.1.0"

	// OAuth bearer credentials require these betas on every request.
	oauthBetaValue = "oauth-2025-04-20,fine-grained-tool-streaming-2025-05-14"

	defaultIdleReadTimeout = 5 * time.Minute
	stainlessTimeoutSecs   = "600"
)

func init() {
	registry.Register(registry.Registration{
		ID:               "anthropic",
		SdkType:          catalog.SdkAnthropic,
		NewLanguageModel: newLanguageModel,
		ReasoningScope: func(registry.ReasoningScopeContext) []string {
			return []string{"anthropic"}
		},
	})
}

func oauthHeaders() map[string]string {
	return map[string]string{
		"accept":          "application/json",
		"accept-language": "*",
		"anthropic-beta":  oauthBetaValue,
		"anthropic-dangerous-direct-browser-access": "true",
		"connection":                  "keep-alive",
		"sec-fetch-mode":              "cors",
		"user-agent":                  "ai-sdk/" + sdkVersion + " (oauth)",
		"x-app":                       "cli",
		"x-stainless-arch":            runtime.GOARCH,
		"x-stainless-lang":            "go",
		"x-stainless-os":              runtime.GOOS,
		"x-stainless-package-version": sdkVersion,
		"x-stainless-retry-count":     "0",
		"x-stainless-runtime":         "go",
		"x-stainless-runtime-version": runtime.Version(),
		"x-stainless-timeout":         stainlessTimeoutSecs,
	}
}

func defaultHeaders(apiKey, bearer string) map[string]string {
	h := map[string]string{
		"anthropic-version":   apiVersion,
		"content-type":        "application/json",
		"x-stainless-timeout": stainlessTimeoutSecs,
	}
	if bearer != "" {
		value := bearer
		if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
			value = "Bearer " + value
		}
		h["authorization"] = value
		for k, v := range oauthHeaders() {
			h[k] = v
		}
	} else if apiKey != "" {
		h["x-api-key"] = apiKey
	}
	return h
}

// LanguageModel streams completions from /messages.
type LanguageModel struct {
	modelID      string
	scope        string
	baseURL      string
	headers      map[string]string
	http         transport.HttpTransport
	transportCfg transport.Config
	defaults     aisdk.ProviderOptions
}

func newLanguageModel(cfg registry.ModelConfig) (aisdk.LanguageModel, error) {
	def := cfg.Definition

	apiKey := cfg.Credentials.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	baseURL := strings.TrimSpace(def.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	headers := defaultHeaders(apiKey, cfg.Credentials.Bearer)
	var defaults aisdk.ProviderOptions
	for k, v := range def.Headers {
		kl := strings.ToLower(k)
		if aisdk.IsInternalSDKHeader(kl) {
			if defaults == nil {
				if raw, ok := aisdk.ExtractOptionsFromHeaders(map[string]string{kl: v}); ok {
					if opts, ok := aisdk.ProviderDefaultsFromJSON(def.Name, raw); ok {
						defaults = opts
					}
				}
			}
			continue
		}
		headers[kl] = v
	}
	for k, v := range cfg.Headers {
		headers[strings.ToLower(k)] = v
	}
	if defaults == nil && len(cfg.ProviderOptions) > 0 {
		defaults = cfg.ProviderOptions
	}

	tcfg := cfg.TransportConfig
	if tcfg == (transport.Config{}) {
		tcfg = registry.BuildProviderTransportConfig(def)
		if def.StreamIdleTimeoutMs <= 0 {
			tcfg.IdleReadTimeout = defaultIdleReadTimeout
		}
	}
	http := cfg.Transport
	if http == nil {
		http = transport.NewRestyTransport(tcfg)
	}

	return &LanguageModel{
		modelID:      cfg.ModelID,
		scope:        def.Name,
		baseURL:      strings.TrimRight(baseURL, "/"),
		headers:      headers,
		http:         http,
		transportCfg: tcfg,
		defaults:     defaults,
	}, nil
}

func (m *LanguageModel) ProviderName() string         { return providerName }
func (m *LanguageModel) ModelID() string              { return m.modelID }
func (m *LanguageModel) SpecificationVersion() string { return aisdk.LanguageModelSpecVersion }

func (m *LanguageModel) SupportedURLs() map[string][]string {
	return map[string][]string{
		"image/*": {`^https?://.*$`},
	}
}
