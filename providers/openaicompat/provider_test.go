package openaicompat

import (
	"strings"
	"testing"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
)

func TestParseSettings(t *testing.T) {
	def := &catalog.ProviderDefinition{Name: "groq"}
	s := parseSettings(def)
	if !s.includeUsage || s.supportsStructuredOutput || s.maxEmbeddingsPerCall != defaultMaxEmbeddingsPerCall || !s.supportsParallelCalls {
		t.Fatalf("defaults: %+v", s)
	}

	def.Headers = map[string]string{
		aisdk.OptionsHeader: `{"groq":{
			"include_usage": false,
			"supports_structured_outputs": true,
			"max_embeddings_per_call": 96,
			"supports_parallel_calls": false
		}}`,
	}
	s = parseSettings(def)
	if s.includeUsage || !s.supportsStructuredOutput || s.maxEmbeddingsPerCall != 96 || s.supportsParallelCalls {
		t.Fatalf("parsed: %+v", s)
	}

	// Settings under a different scope do not apply.
	def.Headers = map[string]string{aisdk.OptionsHeader: `{"other":{"include_usage": false}}`}
	if s := parseSettings(def); !s.includeUsage {
		t.Fatalf("foreign scope applied: %+v", s)
	}
}

func TestBuildBase(t *testing.T) {
	b, err := buildBase(registry.ModelConfig{
		Definition: &catalog.ProviderDefinition{
			Name:    "openrouter",
			BaseURL: "https://openrouter.ai/api/v1/",
			Headers: map[string]string{
				"X-Title":           "my-app",
				"Authorization":     "should be dropped",
				aisdk.OptionsHeader: `{"openrouter":{"order":"price"}}`,
			},
			QueryParams: map[string]string{"version": "2"},
		},
		Credentials: registry.Credentials{APIKey: "sk-or-1"},
		Headers:     map[string]string{"X-Caller": "cli"},
	})
	if err != nil {
		t.Fatalf("buildBase: %v", err)
	}

	if b.baseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("base url: %q", b.baseURL)
	}
	if b.headers["authorization"] != "Bearer sk-or-1" {
		t.Fatalf("auth: %q", b.headers["authorization"])
	}
	if b.headers["x-title"] != "my-app" || b.headers["x-caller"] != "cli" {
		t.Fatalf("headers: %v", b.headers)
	}
	if !strings.Contains(b.headers["user-agent"], "ai-sdk/"+providerName) {
		t.Fatalf("user agent: %q", b.headers["user-agent"])
	}
	if _, exists := b.headers[aisdk.OptionsHeader]; exists {
		t.Fatalf("internal header leaked: %v", b.headers)
	}
	if b.defaults["openrouter"]["order"] != "price" {
		t.Fatalf("defaults: %v", b.defaults)
	}

	if got := b.requestURL("/chat/completions"); got != "https://openrouter.ai/api/v1/chat/completions?version=2" {
		t.Fatalf("url: %q", got)
	}
}

func TestBuildBaseRequiresBaseURL(t *testing.T) {
	_, err := buildBase(registry.ModelConfig{
		Definition: &catalog.ProviderDefinition{Name: "x"},
	})
	if !aisdk.IsInvalidArgument(err) {
		t.Fatalf("got %v", err)
	}
}

func TestBearerValue(t *testing.T) {
	if got := bearerValue("tok"); got != "Bearer tok" {
		t.Fatalf("got %q", got)
	}
	if got := bearerValue("Bearer tok"); got != "Bearer tok" {
		t.Fatalf("got %q", got)
	}
	if got := bearerValue("bearer tok"); got != "bearer tok" {
		t.Fatalf("got %q", got)
	}
}

func TestCallHeaders(t *testing.T) {
	b := &base{headers: map[string]string{"authorization": "Bearer x", "accept": "application/json"}}

	out := b.callHeaders(map[string]string{
		"X-Request-Tag":     "t1",
		aisdk.OptionsHeader: `{"x":{}}`,
	})

	if out["x-request-tag"] != "t1" {
		t.Fatalf("override missing: %v", out)
	}
	if _, exists := out[aisdk.OptionsHeader]; exists {
		t.Fatalf("internal header leaked: %v", out)
	}
	if out["authorization"] != "Bearer x" {
		t.Fatalf("base header lost: %v", out)
	}
}

func TestApplyDefaults(t *testing.T) {
	b := &base{defaults: aisdk.ProviderOptions{"prov": {"order": "price", "user": "default"}}}

	opts := b.applyDefaults(aisdk.CallOptions{
		ProviderOptions: aisdk.ProviderOptions{"prov": {"user": "explicit"}},
	})
	if opts.ProviderOptions["prov"]["user"] != "explicit" {
		t.Fatalf("call option overridden: %v", opts.ProviderOptions)
	}
	if opts.ProviderOptions["prov"]["order"] != "price" {
		t.Fatalf("default not filled: %v", opts.ProviderOptions)
	}
}

func TestParseChatProviderOptions(t *testing.T) {
	opts := aisdk.ProviderOptions{
		providerName: {"user": "generic", "reasoningEffort": "low"},
		"groq": {
			"user":          "specific",
			"textVerbosity": "high",
			"service_tier":  "flex",
		},
	}

	parsed, extras := parseChatProviderOptions(opts, []string{providerName, "groq"})

	if parsed.user != "specific" {
		t.Fatalf("later scope should win: %+v", parsed)
	}
	if parsed.reasoningEffort != "low" || parsed.textVerbosity != "high" {
		t.Fatalf("got %+v", parsed)
	}
	if extras["service_tier"] != "flex" {
		t.Fatalf("extras: %v", extras)
	}
	if _, exists := extras["user"]; exists {
		t.Fatalf("known key in extras: %v", extras)
	}

	if _, extras := parseChatProviderOptions(nil, []string{providerName}); extras != nil {
		t.Fatalf("no scopes present should yield nil extras: %v", extras)
	}
}
