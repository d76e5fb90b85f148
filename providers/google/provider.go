// Package google implements a language model over the Gemini generateContent
// API. The same model core backs both the Generative Language endpoint and
// Vertex AI, which differ only in wiring (auth, base URL, option scopes).
package google

import (
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	defaultIdleReadTimeout = 45 * time.Second
)

func init() {
	registry.Register(registry.Registration{
		ID:               "google",
		SdkType:          catalog.SdkGoogle,
		NewLanguageModel: newLanguageModel,
	})
}

// Config is the full wiring of one Gemini model instance.
type Config struct {
	ProviderName string
	// Scope is the provider definition name used for default options.
	Scope string
	// OptionScopes is the precedence list for reading provider options,
	// e.g. ["google-vertex", "google"] on Vertex.
	OptionScopes  []string
	BaseURL       string
	Headers       map[string]string
	HTTP          transport.HttpTransport
	TransportCfg  transport.Config
	SupportedURLs map[string][]string
	QueryParams   map[string]string
	Defaults      aisdk.ProviderOptions
	// WarnOnIncludeThoughts flags includeThoughts use on endpoints that
	// only honor it on Vertex.
	WarnOnIncludeThoughts bool
}

type LanguageModel struct {
	modelID string
	cfg     Config
}

// New builds a model from explicit wiring. Provider bootstrap goes through
// the registry; New exists for the Vertex wrapper and tests.
func New(modelID string, cfg Config) *LanguageModel {
	if len(cfg.OptionScopes) == 0 {
		cfg.OptionScopes = []string{"google"}
	}
	return &LanguageModel{modelID: modelID, cfg: cfg}
}

func newLanguageModel(mc registry.ModelConfig) (aisdk.LanguageModel, error) {
	def := mc.Definition

	apiKey := mc.Credentials.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GENERATIVE_AI_API_KEY")
	}

	baseURL := strings.TrimSpace(def.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	headers := map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
	}
	if apiKey != "" {
		headers["x-goog-api-key"] = apiKey
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
		ProviderName:          "google.gen-ai",
		Scope:                 def.Name,
		OptionScopes:          []string{"google"},
		BaseURL:               baseURL,
		Headers:               headers,
		HTTP:                  http,
		TransportCfg:          tcfg,
		SupportedURLs:         supportedURLs(baseURL),
		QueryParams:           def.QueryParams,
		Defaults:              defaults,
		WarnOnIncludeThoughts: true,
	}), nil
}

func supportedURLs(baseURL string) map[string][]string {
	return map[string][]string{
		"*": {
			"^" + regexp.QuoteMeta(baseURL) + "/files/.*$",
			`^https://(?:www\.)?youtube\.com/watch\?v=[\w-]+(?:&[\w=&.-]*)?$`,
			`^https://youtu\.be/[\w-]+(?:\?[\w=&.-]*)?$`,
		},
	}
}

// FilterHeaders splits catalog headers into forwardable headers and embedded
// provider defaults, dropping auth and negotiated headers. Shared with the
// Vertex wiring.
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
		case "content-type", "accept", "authorization", "x-api-key", "x-goog-api-key":
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

// isGemma reports whether the target is a Gemma model, which rejects the
// systemInstruction field.
func (m *LanguageModel) isGemma() bool {
	return strings.HasPrefix(strings.ToLower(m.modelID), "gemma-")
}

func (m *LanguageModel) modelPath() string {
	if strings.Contains(m.modelID, "/") {
		return m.modelID
	}
	return "models/" + m.modelID
}

func (m *LanguageModel) requestURL(verb string, extraQuery url.Values) string {
	u := m.cfg.BaseURL + "/" + m.modelPath() + ":" + verb
	q := url.Values{}
	for k, v := range extraQuery {
		q[k] = v
	}
	for k, v := range m.cfg.QueryParams {
		q.Set(k, v)
	}
	if len(q) == 0 {
		return u
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
