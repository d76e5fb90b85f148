// Package openai implements a language model over the OpenAI Responses API,
// including reasoning models, the provider-executed tool families (web
// search, file search, code interpreter, image generation, shell, apply
// patch, MCP) and stored-conversation item references.
package openai

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/capabilities"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	providerName = "openai.responses"

	defaultBaseURL      = "https://api.openai.com/v1"
	defaultEndpointPath = "/responses"

	defaultIdleReadTimeout = 45 * time.Second
)

func init() {
	registry.Register(registry.Registration{
		ID:               "openai",
		SdkType:          catalog.SdkOpenAI,
		NewLanguageModel: newLanguageModel,
	})
}

// Config is the full wiring of one Responses model instance. The Azure
// adapter reuses the model core with its own endpoint and auth wiring.
type Config struct {
	ProviderName string
	// Scope is the provider definition name used for provider options.
	Scope        string
	BaseURL      string
	EndpointPath string
	Headers      map[string]string
	QueryParams  map[string]string
	// FileIDPrefixes marks inline file payloads that are really uploaded
	// file references, e.g. "file-" on OpenAI and "assistant-" on Azure.
	FileIDPrefixes []string
	SupportedURLs  map[string][]string
	Defaults       aisdk.ProviderOptions
	HTTP           transport.HttpTransport
	TransportCfg   transport.Config
}

// LanguageModel streams responses from the /responses endpoint.
type LanguageModel struct {
	modelID string
	cfg     Config
}

// New builds a model from explicit wiring. Provider bootstrap goes through
// the registry; New exists for the Azure wrapper and tests.
func New(modelID string, cfg Config) *LanguageModel {
	if cfg.ProviderName == "" {
		cfg.ProviderName = providerName
	}
	if cfg.Scope == "" {
		cfg.Scope = "openai"
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = defaultEndpointPath
	}
	if len(cfg.FileIDPrefixes) == 0 {
		cfg.FileIDPrefixes = []string{"file-"}
	}
	if cfg.SupportedURLs == nil {
		cfg.SupportedURLs = defaultSupportedURLs()
	}
	return &LanguageModel{modelID: modelID, cfg: cfg}
}

func newLanguageModel(mc registry.ModelConfig) (aisdk.LanguageModel, error) {
	def := mc.Definition

	if !capabilities.SupportsResponsesAPI(def.Name, mc.ModelID) {
		return nil, aisdk.InvalidArgument(fmt.Sprintf(
			"model %q does not support the Responses API; use an openai-compatible chat definition", mc.ModelID))
	}

	apiKey := mc.Credentials.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	bearer := mc.Credentials.Bearer

	baseURL := strings.TrimSpace(def.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	headers := map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
	}
	switch {
	case bearer != "":
		value := bearer
		if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
			value = "Bearer " + value
		}
		headers["authorization"] = value
	case apiKey != "":
		headers["authorization"] = "Bearer " + apiKey
	}
	extra, defaults := FilterHeaders(def.Headers, def.Name)
	for k, v := range extra {
		headers[k] = v
	}
	for k, v := range mc.Headers {
		headers[strings.ToLower(k)] = v
	}
	if defaults == nil && len(mc.ProviderOptions) > 0 {
		defaults = mc.ProviderOptions
	}

	endpointPath := strings.TrimSpace(def.EndpointPath)
	if endpointPath == "" {
		endpointPath = defaultEndpointPath
	}

	tcfg := mc.TransportConfig
	if tcfg == (transport.Config{}) {
		tcfg = transport.DefaultConfig()
		tcfg.IdleReadTimeout = defaultIdleReadTimeout
		registry.ApplyStreamIdleTimeout(def, &tcfg)
	}
	http := mc.Transport
	if http == nil {
		http = transport.NewRestyTransport(tcfg)
	}

	return New(mc.ModelID, Config{
		ProviderName: providerName,
		Scope:        def.Name,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		EndpointPath: endpointPath,
		Headers:      headers,
		QueryParams:  def.QueryParams,
		Defaults:     defaults,
		HTTP:         http,
		TransportCfg: tcfg,
	}), nil
}

func defaultSupportedURLs() map[string][]string {
	return map[string][]string{
		"image/*":         {`^https?://.*$`},
		"application/pdf": {`^https?://.*$`},
	}
}

// FilterHeaders splits catalog headers into forwardable headers and embedded
// provider defaults, dropping auth and negotiated headers. Shared with the
// Azure wiring.
func FilterHeaders(headers map[string]string, scope string) (map[string]string, aisdk.ProviderOptions) {
	filtered := map[string]string{}
	var defaults aisdk.ProviderOptions
	for k, v := range headers {
		kl := strings.ToLower(k)
		if aisdk.IsInternalSDKHeader(kl) {
			if defaults == nil {
				if raw, ok := aisdk.ExtractOptionsFromHeaders(map[string]string{kl: v}); ok {
					if opts, ok := aisdk.ProviderDefaultsFromJSON(scope, raw); ok {
						defaults = opts
					}
				}
			}
			continue
		}
		switch kl {
		case "content-type", "accept", "authorization", "x-api-key", "api-key":
			continue
		}
		filtered[kl] = v
	}
	return filtered, defaults
}

func (m *LanguageModel) ProviderName() string         { return m.cfg.ProviderName }
func (m *LanguageModel) ModelID() string              { return m.modelID }
func (m *LanguageModel) SpecificationVersion() string { return aisdk.LanguageModelSpecVersion }

func (m *LanguageModel) SupportedURLs() map[string][]string { return m.cfg.SupportedURLs }

// endpointURL joins the base URL and endpoint path, collapsing a duplicated
// /v1 segment so "https://host/v1" plus "v1/responses" stays a single /v1.
func (m *LanguageModel) endpointURL() string {
	base := strings.TrimRight(m.cfg.BaseURL, "/")
	path := strings.TrimLeft(m.cfg.EndpointPath, "/")
	if strings.HasSuffix(base, "/v1") && strings.HasPrefix(path, "v1/") {
		path = strings.TrimPrefix(path, "v1/")
	}
	u := base + "/" + path
	if len(m.cfg.QueryParams) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range m.cfg.QueryParams {
		q.Set(k, v)
	}
	return u + "?" + q.Encode()
}

// callHeaders merges per-call overrides over the adapter headers, dropping
// the internal SDK family.
func (m *LanguageModel) callHeaders(overrides map[string]string) map[string]string {
	out := make(map[string]string, len(m.cfg.Headers)+len(overrides))
	for k, v := range m.cfg.Headers {
		if aisdk.IsInternalSDKHeader(k) {
			continue
		}
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

func (m *LanguageModel) applyDefaults(options aisdk.CallOptions) aisdk.CallOptions {
	if len(m.cfg.Defaults) == 0 {
		return options
	}
	options.ProviderOptions = aisdk.MergeProviderDefaults(options.ProviderOptions, m.cfg.Defaults)
	return options
}
