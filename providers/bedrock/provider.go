// Package bedrock implements a language model over the Amazon Bedrock
// Converse API. Requests are signed with SigV4 unless a bearer token is
// configured; streaming is not implemented.
package bedrock

import (
	"net/url"
	"os"
	"strings"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	providerName = "amazon-bedrock.converse"

	// optionsScope is the literal provider-options scope, independent of
	// the configured provider id.
	optionsScope = "bedrock"

	signingService = "bedrock"
	defaultRegion  = "us-east-1"
)

func init() {
	registry.Register(registry.Registration{
		ID:               "amazon-bedrock",
		SdkType:          catalog.SdkAmazonBedrock,
		NewLanguageModel: newLanguageModel,
		ReasoningScope:   reasoningScopeAliases,
	})
}

// reasoningScopeAliases persists reasoning metadata for Claude-family models
// under both the Anthropic and Bedrock scopes so it survives moving the same
// conversation between the two providers.
func reasoningScopeAliases(ctx registry.ReasoningScopeContext) []string {
	id := strings.ToLower(ctx.ModelID)
	for _, marker := range []string{"anthropic", "claude", "sonnet", "haiku", "opus"} {
		if strings.Contains(id, marker) {
			return []string{"anthropic", "bedrock"}
		}
	}
	return nil
}

// authConfig is either a bearer token or a SigV4 key pair.
type authConfig struct {
	bearerToken     string
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
}

// LanguageModel generates completions from /model/{id}/converse.
type LanguageModel struct {
	modelID      string
	baseURL      string
	region       string
	auth         authConfig
	headers      map[string]string
	http         transport.HttpTransport
	transportCfg transport.Config
	defaults     aisdk.ProviderOptions
}

func newLanguageModel(cfg registry.ModelConfig) (aisdk.LanguageModel, error) {
	def := cfg.Definition

	headers := map[string]string{}
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

	region := ""
	if def.QueryParams != nil {
		region = strings.TrimSpace(def.QueryParams["region"])
	}
	// Region hint headers configure the adapter and never go on the wire.
	for _, key := range []string{"x-aws-region", "aws-region", "x-region"} {
		if v, ok := headers[key]; ok {
			if region == "" {
				region = strings.TrimSpace(v)
			}
			delete(headers, key)
		}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(def.BaseURL), "/")
	if region == "" && baseURL != "" {
		region = regionFromBaseURL(baseURL)
	}
	if region == "" {
		region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	}
	if region == "" {
		region = defaultRegion
	}
	if baseURL == "" {
		baseURL = "https://bedrock-runtime." + region + ".amazonaws.com"
	}

	auth, err := resolveAuth(cfg.Credentials)
	if err != nil {
		return nil, err
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
		region:       region,
		auth:         auth,
		headers:      headers,
		http:         http,
		transportCfg: tcfg,
		defaults:     defaults,
	}, nil
}

// resolveAuth prefers a bearer token (credentials or the
// AWS_BEARER_TOKEN_BEDROCK environment) and falls back to SigV4 keys from
// the standard AWS environment.
func resolveAuth(creds registry.Credentials) (authConfig, error) {
	token := strings.TrimSpace(creds.APIKey)
	if token == "" {
		token = strings.TrimSpace(creds.Bearer)
		if strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = strings.TrimSpace(token[len("bearer "):])
		}
	}
	if token == "" {
		token = strings.TrimSpace(os.Getenv("AWS_BEARER_TOKEN_BEDROCK"))
	}
	if token != "" {
		return authConfig{bearerToken: token}, nil
	}

	access := strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	secret := strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	if access == "" || secret == "" {
		return authConfig{}, &aisdk.Error{
			Kind: aisdk.ErrUnauthorized,
			Message: "Missing Amazon Bedrock credentials: set an API key, " +
				"AWS_BEARER_TOKEN_BEDROCK, or AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY",
		}
	}
	return authConfig{
		accessKeyID:     access,
		secretAccessKey: secret,
		sessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}, nil
}

// regionFromBaseURL infers the region from a bedrock-runtime hostname, e.g.
// "https://bedrock-runtime.eu-west-1.amazonaws.com" -> "eu-west-1".
func regionFromBaseURL(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if rest, ok := strings.CutPrefix(host, "bedrock-runtime."); ok {
		if segments := strings.Split(rest, "."); len(segments) > 0 && segments[0] != "" {
			return segments[0]
		}
	}
	if segments := strings.Split(host, "."); len(segments) >= 3 {
		return segments[1]
	}
	return ""
}

func (m *LanguageModel) endpointURL(suffix string) string {
	return m.baseURL + "/model/" + url.PathEscape(m.modelID) + suffix
}

// callHeaders merges per-call overrides over the adapter headers, dropping
// internal SDK names from both sides.
func (m *LanguageModel) callHeaders(overrides map[string]string) map[string]string {
	headers := make(map[string]string, len(m.headers)+len(overrides))
	for k, v := range m.headers {
		if aisdk.IsInternalSDKHeader(k) {
			continue
		}
		headers[k] = v
	}
	for k, v := range overrides {
		if aisdk.IsInternalSDKHeader(k) {
			continue
		}
		headers[strings.ToLower(k)] = v
	}
	return headers
}

func (m *LanguageModel) ProviderName() string         { return providerName }
func (m *LanguageModel) ModelID() string              { return m.modelID }
func (m *LanguageModel) SpecificationVersion() string { return aisdk.LanguageModelSpecVersion }

func (m *LanguageModel) SupportedURLs() map[string][]string {
	return map[string][]string{}
}
