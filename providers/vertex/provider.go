// Package vertex wires the Gemini model core to Vertex AI: OAuth bearer
// auth, per-project regional endpoints, and the "google-vertex" option
// scope layered over "google".
package vertex

import (
	"os"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/providers/google"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	apiVersion = "v1beta1"

	defaultIdleReadTimeout = 45 * time.Second
)

func init() {
	registry.Register(registry.Registration{
		ID:               "google-vertex",
		SdkType:          catalog.SdkGoogleVertex,
		NewLanguageModel: newLanguageModel,
	})
}

func newLanguageModel(mc registry.ModelConfig) (aisdk.LanguageModel, error) {
	def := mc.Definition

	bearer := mc.Credentials.Bearer
	if bearer == "" {
		bearer = os.Getenv("GOOGLE_VERTEX_ACCESS_TOKEN")
	}
	if bearer == "" {
		bearer = os.Getenv("GOOGLE_CLOUD_ACCESS_TOKEN")
	}
	apiKey := mc.Credentials.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_VERTEX_API_KEY")
	}

	baseURL, err := resolveBaseURL(def)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
	}
	if bearer != "" {
		value := bearer
		if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
			value = "Bearer " + value
		}
		headers["authorization"] = value
	} else if apiKey != "" {
		headers["x-goog-api-key"] = apiKey
	}
	extra, defaults := google.FilterHeaders(def.Headers, def.Name)
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

	return google.New(mc.ModelID, google.Config{
		ProviderName: "google.vertex",
		Scope:        def.Name,
		OptionScopes: []string{"google-vertex", "google"},
		BaseURL:      baseURL,
		Headers:      headers,
		HTTP:         http,
		TransportCfg: tcfg,
		SupportedURLs: map[string][]string{
			"*": {`^https?://.*$`, `^gs://.*$`},
		},
		QueryParams: def.QueryParams,
		Defaults:    defaults,
	}), nil
}

// resolveBaseURL builds the publisher endpoint from the catalog base URL or
// the project/location environment. The global location uses the bare
// aiplatform host.
func resolveBaseURL(def *catalog.ProviderDefinition) (string, error) {
	if configured := strings.TrimSpace(def.BaseURL); configured != "" {
		return strings.TrimRight(configured, "/"), nil
	}

	project := strings.TrimSpace(os.Getenv("GOOGLE_VERTEX_PROJECT"))
	location := strings.TrimSpace(os.Getenv("GOOGLE_VERTEX_LOCATION"))
	if project == "" || location == "" {
		return "", aisdk.UpstreamError(400,
			"Missing Google Vertex configuration: set provider base_url or GOOGLE_VERTEX_PROJECT and GOOGLE_VERTEX_LOCATION",
			nil)
	}

	host := location + "-aiplatform.googleapis.com"
	if strings.EqualFold(location, "global") {
		host = "aiplatform.googleapis.com"
	}
	return "https://" + host + "/" + apiVersion +
		"/projects/" + project + "/locations/" + location + "/publishers/google", nil
}
