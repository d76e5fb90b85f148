// Package azure wires the Responses model core to Azure OpenAI: api-key
// auth, resource endpoints with api-version query, and optional
// deployment-scoped URLs.
package azure

import (
	"os"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/providers/openai"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

const (
	defaultEndpointPath = "/v1/responses"
	defaultAPIVersion   = "v1"

	defaultIdleReadTimeout = 45 * time.Second
)

func init() {
	registry.Register(registry.Registration{
		ID:               "azure",
		SdkType:          catalog.SdkAzure,
		NewLanguageModel: newLanguageModel,
	})
}

func newLanguageModel(mc registry.ModelConfig) (aisdk.LanguageModel, error) {
	def := mc.Definition

	apiKey := mc.Credentials.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	bearer := mc.Credentials.Bearer
	if bearer == "" {
		bearer = os.Getenv("AZURE_BEARER_TOKEN")
	}
	// Bearer credentials double as the api-key on Azure.
	if apiKey == "" && bearer != "" {
		apiKey = strings.TrimPrefix(strings.TrimPrefix(bearer, "Bearer "), "bearer ")
	}

	baseURL, err := resolveBaseURL(def)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"content-type": "application/json",
		"accept":       "application/json",
	}
	if apiKey != "" {
		headers["api-key"] = apiKey
	}
	if bearer != "" {
		value := bearer
		if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
			value = "Bearer " + value
		}
		headers["authorization"] = value
	}

	useDeploymentURLs := parseBool(os.Getenv("AZURE_USE_DEPLOYMENT_URLS"))
	var defaults aisdk.ProviderOptions
	extra, headerDefaults := openai.FilterHeaders(def.Headers, def.Name)
	defaults = headerDefaults
	for k, v := range extra {
		switch k {
		case "x-azure-use-deployment-urls", "azure-use-deployment-urls":
			useDeploymentURLs = parseBool(v)
			continue
		}
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

	// Deployment URLs scope the endpoint to one model deployment and drop
	// the version prefix from the path.
	if useDeploymentURLs && !strings.Contains(baseURL, "/deployments/") &&
		!strings.HasPrefix(strings.TrimLeft(endpointPath, "/"), "deployments/") {
		baseURL = baseURL + "/deployments/" + mc.ModelID
		endpointPath = strings.TrimPrefix(strings.TrimLeft(endpointPath, "/"), "v1/")
	}

	apiVersion := os.Getenv("AZURE_API_VERSION")
	if v, ok := def.QueryParams["api-version"]; ok && v != "" {
		apiVersion = v
	}
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	queryParams := map[string]string{"api-version": apiVersion}
	for k, v := range def.QueryParams {
		if k == "api-version" {
			continue
		}
		queryParams[k] = v
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

	return openai.New(mc.ModelID, openai.Config{
		ProviderName:   "azure.responses",
		Scope:          def.Name,
		BaseURL:        baseURL,
		EndpointPath:   endpointPath,
		Headers:        headers,
		QueryParams:    queryParams,
		FileIDPrefixes: []string{"assistant-"},
		Defaults:       defaults,
		HTTP:           http,
		TransportCfg:   tcfg,
	}), nil
}

// resolveBaseURL builds the Azure OpenAI endpoint from the catalog base URL,
// the full-endpoint environment variable, or the resource name.
func resolveBaseURL(def *catalog.ProviderDefinition) (string, error) {
	if configured := strings.TrimSpace(def.BaseURL); configured != "" {
		return strings.TrimRight(configured, "/"), nil
	}
	if endpoint := strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT")); endpoint != "" {
		return strings.TrimRight(endpoint, "/"), nil
	}
	if resource := strings.TrimSpace(os.Getenv("AZURE_RESOURCE_NAME")); resource != "" {
		return "https://" + resource + ".openai.azure.com/openai", nil
	}
	return "", aisdk.UpstreamError(400,
		"Azure base URL not configured; set base_url, AZURE_OPENAI_ENDPOINT, or AZURE_RESOURCE_NAME",
		nil)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
