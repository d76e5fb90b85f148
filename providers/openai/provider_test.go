package openai

import (
	"testing"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/capabilities"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
)

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		base  string
		path  string
		query map[string]string
		want  string
	}{
		{"https://api.openai.com/v1", "/responses", nil,
			"https://api.openai.com/v1/responses"},
		{"https://api.openai.com/v1/", "v1/responses", nil,
			"https://api.openai.com/v1/responses"},
		{"https://gateway.example.com", "/v1/responses", nil,
			"https://gateway.example.com/v1/responses"},
		{"https://res.openai.azure.com/openai", "/v1/responses",
			map[string]string{"api-version": "v1"},
			"https://res.openai.azure.com/openai/v1/responses?api-version=v1"},
	}
	for _, tc := range cases {
		m := New("gpt-4o", Config{BaseURL: tc.base, EndpointPath: tc.path, QueryParams: tc.query})
		if got := m.endpointURL(); got != tc.want {
			t.Fatalf("endpointURL(%q, %q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}

func TestFilterHeaders(t *testing.T) {
	headers, defaults := FilterHeaders(map[string]string{
		"Authorization":    "Bearer sk-live",
		"api-key":          "k",
		"Content-Type":     "application/json",
		"X-Custom":         "keep",
		"x-ai-sdk-options": `{"openai":{"serviceTier":"flex"}}`,
		"x-ai-sdk-trace":   "drop",
	}, "openai")

	if len(headers) != 1 || headers["x-custom"] != "keep" {
		t.Fatalf("headers: %v", headers)
	}
	if defaults == nil || defaults["openai"]["serviceTier"] != "flex" {
		t.Fatalf("defaults: %v", defaults)
	}
}

func TestCallHeadersDropInternal(t *testing.T) {
	m := New("gpt-4o", Config{Headers: map[string]string{
		"authorization":    "Bearer sk-test",
		"x-ai-sdk-options": "{}",
	}})
	headers := m.callHeaders(map[string]string{
		"X-Trace-Id":      "t1",
		"x-ai-sdk-secret": "nope",
	})
	if headers["authorization"] != "Bearer sk-test" || headers["x-trace-id"] != "t1" {
		t.Fatalf("headers: %v", headers)
	}
	for k := range headers {
		if k == "x-ai-sdk-options" || k == "x-ai-sdk-secret" {
			t.Fatalf("internal header leaked: %v", headers)
		}
	}
}

func TestResponsesAPIGate(t *testing.T) {
	t.Setenv(capabilities.EnvIndexJSON, `{"providers":[{"id":"openai","models":[{"id":"gpt-3.5-turbo-instruct","capabilities":{"responses_api":false}}]}]}`)
	t.Setenv(capabilities.EnvDisableDisk, "1")
	capabilities.Reset()
	t.Cleanup(capabilities.Reset)

	cfg := registry.ModelConfig{
		Definition:  &catalog.ProviderDefinition{Name: "openai", SdkType: catalog.SdkOpenAI},
		ModelID:     "gpt-3.5-turbo-instruct",
		Credentials: registry.Credentials{APIKey: "sk-1"},
	}
	if _, err := newLanguageModel(cfg); !aisdk.IsInvalidArgument(err) {
		t.Fatalf("gated model accepted: %v", err)
	}

	cfg.ModelID = "gpt-4o"
	if _, err := newLanguageModel(cfg); err != nil {
		t.Fatalf("ungated model rejected: %v", err)
	}
}

func TestApplyDefaultsCallerWins(t *testing.T) {
	m := New("gpt-4o", Config{Defaults: aisdk.ProviderOptions{
		"openai": {"serviceTier": "flex", "user": "default-user"},
	}})
	out := m.applyDefaults(aisdk.CallOptions{
		ProviderOptions: aisdk.ProviderOptions{"openai": {"user": "caller"}},
	})
	section := out.ProviderOptions["openai"]
	if section["user"] != "caller" || section["serviceTier"] != "flex" {
		t.Fatalf("merged options: %v", section)
	}
}
