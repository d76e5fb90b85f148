package openaicompat

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
)

func completionModel(t *testing.T, ft *fakeTransport) *CompletionLanguageModel {
	t.Helper()
	model, err := newCompletionModel(registry.ModelConfig{
		Definition: &catalog.ProviderDefinition{
			Name:    "legacy",
			BaseURL: "https://api.example.com/v1",
		},
		ModelID:     "gpt-3.5-turbo-instruct",
		Credentials: registry.Credentials{APIKey: "sk-1"},
		Transport:   ft,
	})
	if err != nil {
		t.Fatalf("newCompletionModel: %v", err)
	}
	return model.(*CompletionLanguageModel)
}

func TestCompletionBuildRequestBody(t *testing.T) {
	m := completionModel(t, &fakeTransport{})

	topK := 5
	body, warnings, err := m.buildRequestBody(aisdk.CallOptions{
		Prompt:         textOptions("Hi.").Prompt,
		TopK:           &topK,
		Tools:          []aisdk.Tool{aisdk.FunctionTool{Name: "x"}},
		ToolChoice:     &aisdk.ToolChoice{Type: "auto"},
		ResponseFormat: &aisdk.ResponseFormat{Type: "json"},
		StopSequences:  []string{"END"},
		ProviderOptions: aisdk.ProviderOptions{
			"legacy": {"echo": true, "suffix": "!", "prompt": "injected"},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(warnings) != 4 {
		t.Fatalf("warnings: %+v", warnings)
	}
	if body["echo"] != true || body["suffix"] != "!" {
		t.Fatalf("options: %v", body)
	}
	// Extras cannot clobber the rendered prompt.
	prompt := body["prompt"].(string)
	if prompt == "injected" || !strings.Contains(prompt, "user:\nHi.") {
		t.Fatalf("prompt: %q", prompt)
	}
	if !reflect.DeepEqual(body["stop"], []string{"\nuser:", "END"}) {
		t.Fatalf("stop: %v", body["stop"])
	}
}

func TestCompletionBuildRequestBodyPromptError(t *testing.T) {
	m := completionModel(t, &fakeTransport{})
	_, _, err := m.buildRequestBody(aisdk.CallOptions{
		Prompt: []aisdk.Message{aisdk.ToolMessage{}},
	})
	if !aisdk.IsUpstream(err) {
		t.Fatalf("got %v", err)
	}
}

func TestCompletionGenerate(t *testing.T) {
	ft := &fakeTransport{streamBody: strings.Join([]string{
		`data: {"id":"cmpl-1","choices":[{"text":"Hello."}]}`,
		``,
		`data: {"choices":[{"text":"","finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
		``,
		`data: [DONE]`,
		``,
		``,
	}, "\n")}
	m := completionModel(t, ft)

	resp, err := m.Generate(context.Background(), textOptions("Hi."))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if ft.lastURL != "https://api.example.com/v1/completions" {
		t.Fatalf("url: %q", ft.lastURL)
	}
	if resp.Text() != "Hello." {
		t.Fatalf("text: %q", resp.Text())
	}
	if resp.FinishReason != aisdk.FinishStop || *resp.Usage.TotalTokens != 6 {
		t.Fatalf("finish=%q usage=%+v", resp.FinishReason, resp.Usage)
	}
}
