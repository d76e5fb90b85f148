// Package gateway forwards calls to an AI gateway that speaks the SDK's own
// wire protocol: the request body is the serialized call options and the
// response replays canonical content or stream parts.
package gateway

import (
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	providerName = "gateway"

	defaultBaseURL      = "https://ai-gateway.vercel.sh/v1/ai"
	defaultEndpointPath = "/language-model"

	protocolVersion       = "0.0.1"
	protocolVersionHeader = "ai-gateway-protocol-version"
	authMethodHeader      = "ai-gateway-auth-method"
	specVersionHeader     = "ai-language-model-specification-version"
	modelIDHeader         = "ai-language-model-id"
	streamingHeader       = "ai-language-model-streaming"
)

func init() {
	registry.Register(registry.Registration{
		ID:               "gateway",
		SdkType:          catalog.SdkGateway,
		NewLanguageModel: newLanguageModel,
	})
}

// auth is an optional credential plus the method label the gateway expects
// in the ai-gateway-auth-method header.
type auth struct {
	token  string
	method string // "api-key" or "oidc"
}

// LanguageModel relays generate and stream calls to the gateway endpoint.
type LanguageModel struct {
	modelID      string
	baseURL      string
	endpointPath string // empty when baseURL already is the endpoint
	headers      map[string]string
	queryParams  map[string]string
	auth         *auth
	http         transport.HttpTransport
	transportCfg transport.Config
	defaults     aisdk.ProviderOptions
	overrides    map[string]any
}

func newLanguageModel(cfg registry.ModelConfig) (aisdk.LanguageModel, error) {
	def := cfg.Definition

	baseURL := strings.TrimRight(strings.TrimSpace(def.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	headers := map[string]string{protocolVersionHeader: protocolVersion}
	var defaults aisdk.ProviderOptions
	var overrides map[string]any
	addHeader := func(k, v string) {
		kl := strings.ToLower(k)
		if aisdk.IsInternalSDKHeader(kl) {
			if defaults == nil && overrides == nil {
				if raw, ok := aisdk.ExtractOptionsFromHeaders(map[string]string{kl: v}); ok {
					defaults, _ = aisdk.ProviderDefaultsFromJSON(def.Name, raw)
					overrides, _ = aisdk.RequestOverridesFromJSON(def.Name, raw)
				}
			}
			return
		}
		if reservedHeader(kl) {
			return
		}
		headers[kl] = v
	}
	for k, v := range def.Headers {
		addHeader(k, v)
	}
	for k, v := range cfg.Headers {
		addHeader(k, v)
	}
	if defaults == nil && len(cfg.ProviderOptions) > 0 {
		defaults = cfg.ProviderOptions
	}

	tcfg := cfg.TransportConfig
	if tcfg == (transport.Config{}) {
		tcfg = registry.BuildProviderTransportConfig(def)
	}
	http := cfg.Transport
	if http == nil {
		http = transport.NewRestyTransport(tcfg)
	}

	return &LanguageModel{
		modelID:      cfg.ModelID,
		baseURL:      baseURL,
		endpointPath: resolveEndpointPath(def.EndpointPath, baseURL),
		headers:      headers,
		queryParams:  def.QueryParams,
		auth:         resolveAuth(cfg.Credentials),
		http:         http,
		transportCfg: tcfg,
		defaults:     defaults,
		overrides:    overrides,
	}, nil
}

// reservedHeader reports whether the gateway owns the header; configured
// values for these names are dropped.
func reservedHeader(name string) bool {
	switch name {
	case "content-type", "accept", "authorization", "x-api-key",
		authMethodHeader, protocolVersionHeader:
		return true
	}
	return false
}

// resolveEndpointPath normalizes the configured path to a leading slash and
// defaults to /language-model unless the base URL already ends with it.
func resolveEndpointPath(configured, baseURL string) string {
	path := strings.TrimSpace(configured)
	if path != "" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return path
	}
	if strings.HasSuffix(baseURL, defaultEndpointPath) {
		return ""
	}
	return defaultEndpointPath
}

// resolveAuth maps credentials to the gateway auth method: api keys stay
// api keys, bearer tokens become OIDC tokens. Without credentials the
// AI_GATEWAY_API_KEY and VERCEL_OIDC_TOKEN environment variables are tried,
// in that order. Auth is optional; nil means anonymous.
func resolveAuth(creds registry.Credentials) *auth {
	if creds.APIKey != "" {
		return apiKeyAuth(creds.APIKey)
	}
	if creds.Bearer != "" {
		return oidcAuth(creds.Bearer)
	}
	if key := os.Getenv("AI_GATEWAY_API_KEY"); strings.TrimSpace(key) != "" {
		return apiKeyAuth(key)
	}
	if token := os.Getenv("VERCEL_OIDC_TOKEN"); strings.TrimSpace(token) != "" {
		return oidcAuth(token)
	}
	return nil
}

func apiKeyAuth(value string) *auth {
	token := strings.TrimSpace(value)
	if token == "" {
		return nil
	}
	return &auth{token: token, method: "api-key"}
}

func oidcAuth(value string) *auth {
	token := strings.TrimSpace(value)
	if token == "" {
		return nil
	}
	if lower := strings.ToLower(token); strings.HasPrefix(lower, "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	return &auth{token: token, method: "oidc"}
}

func (m *LanguageModel) endpointURL() string {
	u := m.baseURL + m.endpointPath
	if len(m.queryParams) == 0 {
		return u
	}
	keys := make([]string, 0, len(m.queryParams))
	for k := range m.queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var query strings.Builder
	for i, k := range keys {
		if i == 0 {
			query.WriteByte('?')
		} else {
			query.WriteByte('&')
		}
		query.WriteString(url.QueryEscape(k))
		query.WriteByte('=')
		query.WriteString(url.QueryEscape(m.queryParams[k]))
	}
	return u + query.String()
}

// mergeHeaders layers the protocol headers over the configured ones: spec
// version, model id, streaming flag, auth, o11y environment hints, then
// per-call overrides with blank values skipped.
func (m *LanguageModel) mergeHeaders(overrides map[string]string, streaming bool) map[string]string {
	merged := map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
	}
	for k, v := range m.headers {
		merged[k] = v
	}
	merged[specVersionHeader] = "2"
	merged[modelIDHeader] = m.modelID
	merged[streamingHeader] = strconv.FormatBool(streaming)
	if m.auth != nil {
		token := m.auth.token
		if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = "Bearer " + token
		}
		merged["authorization"] = token
		merged[authMethodHeader] = m.auth.method
	}
	for k, v := range o11yHeaders() {
		merged[k] = v
	}
	for k, v := range overrides {
		if aisdk.IsInternalSDKHeader(k) {
			continue
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		merged[strings.ToLower(k)] = v
	}
	return merged
}

// o11yHeaders surfaces the Vercel runtime environment to the gateway for
// request attribution.
func o11yHeaders() map[string]string {
	out := map[string]string{}
	if v := os.Getenv("VERCEL_DEPLOYMENT_ID"); v != "" {
		out["ai-o11y-deployment-id"] = v
	}
	if v := os.Getenv("VERCEL_ENV"); v != "" {
		out["ai-o11y-environment"] = v
	}
	if v := os.Getenv("VERCEL_REGION"); v != "" {
		out["ai-o11y-region"] = v
	}
	if v := os.Getenv("VERCEL_REQUEST_ID"); v != "" {
		out["ai-o11y-request-id"] = v
	} else if v := os.Getenv("X_VERCEL_ID"); v != "" {
		out["ai-o11y-request-id"] = v
	}
	return out
}

func (m *LanguageModel) ProviderName() string         { return providerName }
func (m *LanguageModel) ModelID() string              { return m.modelID }
func (m *LanguageModel) SpecificationVersion() string { return aisdk.LanguageModelSpecVersion }

// SupportedURLs declares everything supported; the gateway resolves URLs on
// behalf of the upstream provider.
func (m *LanguageModel) SupportedURLs() map[string][]string {
	return map[string][]string{"*/*": {`^.*$`}}
}
