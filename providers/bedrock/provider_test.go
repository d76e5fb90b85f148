package bedrock

import (
	"errors"
	"testing"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
)

func clearAWSEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AWS_BEARER_TOKEN_BEDROCK", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
		"AWS_SESSION_TOKEN", "AWS_REGION",
	} {
		t.Setenv(key, "")
	}
}

func TestRegionFromBaseURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://bedrock-runtime.eu-west-1.amazonaws.com", "eu-west-1"},
		{"https://bedrock.us-west-2.amazonaws.com", "us-west-2"},
		{"https://gateway.example.com/bedrock", "example"},
		{"https://localhost:8080", ""},
	}
	for _, tc := range cases {
		if got := regionFromBaseURL(tc.url); got != tc.want {
			t.Fatalf("regionFromBaseURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestRegionResolutionOrder(t *testing.T) {
	clearAWSEnv(t)

	build := func(def *catalog.ProviderDefinition, headers map[string]string) *LanguageModel {
		t.Helper()
		model, err := newLanguageModel(registry.ModelConfig{
			Definition:  def,
			ModelID:     "amazon.titan-text-express-v1",
			Credentials: registry.Credentials{APIKey: "tok"},
			Headers:     headers,
		})
		if err != nil {
			t.Fatalf("newLanguageModel: %v", err)
		}
		return model.(*LanguageModel)
	}

	m := build(&catalog.ProviderDefinition{
		Name:        "bedrock",
		QueryParams: map[string]string{"region": "ap-southeast-2"},
		BaseURL:     "https://bedrock-runtime.eu-west-1.amazonaws.com",
	}, nil)
	if m.region != "ap-southeast-2" {
		t.Fatalf("query param region: %q", m.region)
	}

	m = build(&catalog.ProviderDefinition{Name: "bedrock"},
		map[string]string{"x-aws-region": "eu-central-1"})
	if m.region != "eu-central-1" {
		t.Fatalf("header hint region: %q", m.region)
	}
	if _, ok := m.headers["x-aws-region"]; ok {
		t.Fatalf("region hint must not reach the wire: %v", m.headers)
	}
	if m.baseURL != "https://bedrock-runtime.eu-central-1.amazonaws.com" {
		t.Fatalf("base url: %q", m.baseURL)
	}

	m = build(&catalog.ProviderDefinition{
		Name:    "bedrock",
		BaseURL: "https://bedrock-runtime.us-west-2.amazonaws.com/",
	}, nil)
	if m.region != "us-west-2" {
		t.Fatalf("base url region: %q", m.region)
	}

	t.Setenv("AWS_REGION", "sa-east-1")
	m = build(&catalog.ProviderDefinition{Name: "bedrock"}, nil)
	if m.region != "sa-east-1" {
		t.Fatalf("env region: %q", m.region)
	}

	t.Setenv("AWS_REGION", "")
	m = build(&catalog.ProviderDefinition{Name: "bedrock"}, nil)
	if m.region != "us-east-1" {
		t.Fatalf("default region: %q", m.region)
	}
}

func TestResolveAuth(t *testing.T) {
	clearAWSEnv(t)

	auth, err := resolveAuth(registry.Credentials{APIKey: "tok-1"})
	if err != nil || auth.bearerToken != "tok-1" {
		t.Fatalf("api key: %+v %v", auth, err)
	}

	auth, err = resolveAuth(registry.Credentials{Bearer: "Bearer tok-2"})
	if err != nil || auth.bearerToken != "tok-2" {
		t.Fatalf("bearer prefix: %+v %v", auth, err)
	}

	t.Setenv("AWS_BEARER_TOKEN_BEDROCK", "tok-3")
	auth, err = resolveAuth(registry.Credentials{})
	if err != nil || auth.bearerToken != "tok-3" {
		t.Fatalf("env token: %+v %v", auth, err)
	}

	t.Setenv("AWS_BEARER_TOKEN_BEDROCK", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKID")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
	t.Setenv("AWS_SESSION_TOKEN", "session")
	auth, err = resolveAuth(registry.Credentials{})
	if err != nil || auth.accessKeyID != "AKID" || auth.secretAccessKey != "secret" ||
		auth.sessionToken != "session" || auth.bearerToken != "" {
		t.Fatalf("sigv4 keys: %+v %v", auth, err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "")
	_, err = resolveAuth(registry.Credentials{})
	var sdkErr *aisdk.Error
	if !errors.As(err, &sdkErr) || sdkErr.Kind != aisdk.ErrUnauthorized {
		t.Fatalf("missing credentials: %v", err)
	}
}

func TestEndpointURL(t *testing.T) {
	m := &LanguageModel{
		modelID: "anthropic.claude-3-5-sonnet-20240620-v1:0",
		baseURL: "https://bedrock-runtime.us-east-1.amazonaws.com",
	}
	want := "https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-3-5-sonnet-20240620-v1:0/converse"
	if got := m.endpointURL("/converse"); got != want {
		t.Fatalf("endpointURL:\n got %q\nwant %q", got, want)
	}
}

func TestReasoningScopeAliases(t *testing.T) {
	aliases := reasoningScopeAliases(registry.ReasoningScopeContext{
		ModelID: "anthropic.claude-3-5-sonnet-20240620-v1:0",
	})
	if len(aliases) != 2 || aliases[0] != "anthropic" || aliases[1] != "bedrock" {
		t.Fatalf("claude aliases: %v", aliases)
	}
	if got := reasoningScopeAliases(registry.ReasoningScopeContext{
		ModelID: "amazon.titan-text-express-v1",
	}); got != nil {
		t.Fatalf("titan aliases: %v", got)
	}
}
