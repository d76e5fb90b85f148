package gateway

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/registry"
	"github.com/octanelabs/aisdk/transport"
)

type fakeTransport struct {
	payload    any
	streamBody string
	err        error
	lastURL    string
	lastHeader map[string]string
	lastBody   map[string]any
}

func (f *fakeTransport) PostJSON(_ context.Context, url string, headers map[string]string, body any, _ transport.Config) (any, map[string]string, error) {
	f.lastURL = url
	f.lastHeader = headers
	f.lastBody, _ = body.(map[string]any)
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.payload, map[string]string{"x-request-id": "req_1"}, nil
}

func (f *fakeTransport) PostJSONStream(_ context.Context, url string, headers map[string]string, body any, _ transport.Config) (*transport.StreamResponse, error) {
	f.lastURL = url
	f.lastHeader = headers
	f.lastBody, _ = body.(map[string]any)
	if f.err != nil {
		return nil, f.err
	}
	return &transport.StreamResponse{
		Body:    io.NopCloser(strings.NewReader(f.streamBody)),
		Headers: map[string]string{"x-request-id": "req_1"},
	}, nil
}

func (f *fakeTransport) PostMultipart(context.Context, string, map[string]string, *transport.MultipartForm, transport.Config) (any, map[string]string, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeTransport) GetBytes(context.Context, string, map[string]string, transport.Config) ([]byte, map[string]string, error) {
	return nil, nil, errors.New("not implemented")
}

func gatewayModel(t *testing.T, ft *fakeTransport) *LanguageModel {
	t.Helper()
	clearGatewayEnv(t)
	model, err := newLanguageModel(registry.ModelConfig{
		Definition: &catalog.ProviderDefinition{
			Name: "gateway",
			Headers: map[string]string{
				"x-ai-sdk-options": `{"gateway":{"order":"price"}}`,
			},
		},
		ModelID:     "openai/gpt-4o",
		Credentials: registry.Credentials{APIKey: "gw-key"},
		Transport:   ft,
	})
	if err != nil {
		t.Fatalf("newLanguageModel: %v", err)
	}
	return model.(*LanguageModel)
}

func textPrompt(text string) []aisdk.Message {
	return []aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: text}}},
	}
}

func TestGenerate(t *testing.T) {
	ft := &fakeTransport{payload: map[string]any{
		"content": []any{
			map[string]any{
				"type": "text", "text": "Hi",
				"provider_metadata": map[string]any{"openai": map[string]any{"served": true}},
			},
			map[string]any{
				"type": "tool-call", "toolCallId": "call_1", "toolName": "get_weather",
				"input": map[string]any{"city": "Rome"}, "providerExecuted": true,
			},
			map[string]any{
				"type": "source-url", "id": "src_1",
				"url": "https://example.com", "title": "Example",
			},
			map[string]any{
				"type": "tool-result", "tool_call_id": "call_1", "tool_name": "get_weather",
				"result": map[string]any{"temp": float64(21)}, "is_error": false,
			},
		},
		"finishReason": "tool-calls",
		"usage": map[string]any{
			"prompt_tokens": float64(12), "completion_tokens": float64(3),
			"total_tokens": float64(15), "cached_input_tokens": float64(4),
		},
		"providerMetadata": map[string]any{"gateway": map[string]any{"routing": "fast"}},
		"warnings": []any{
			map[string]any{"type": "unsupported-setting", "setting": "topK", "details": "ignored"},
			map[string]any{"type": "unsupported-tool", "tool": map[string]any{"name": "magic"}},
			map[string]any{"type": "other", "message": "degraded"},
		},
	}}
	m := gatewayModel(t, ft)

	resp, err := m.Generate(context.Background(), aisdk.CallOptions{Prompt: textPrompt("hello")})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if ft.lastURL != "https://ai-gateway.vercel.sh/v1/ai/language-model" {
		t.Fatalf("url: %q", ft.lastURL)
	}
	if ft.lastHeader["authorization"] != "Bearer gw-key" ||
		ft.lastHeader[authMethodHeader] != "api-key" ||
		ft.lastHeader[streamingHeader] != "false" ||
		ft.lastHeader[modelIDHeader] != "openai/gpt-4o" {
		t.Fatalf("headers: %v", ft.lastHeader)
	}

	prompt, _ := ft.lastBody["prompt"].([]any)
	if len(prompt) != 1 {
		t.Fatalf("prompt: %v", ft.lastBody["prompt"])
	}
	if ft.lastBody["order"] != "price" {
		t.Fatalf("request overrides must merge into the body: %v", ft.lastBody)
	}
	po, _ := ft.lastBody["provider_options"].(map[string]any)
	scope, _ := po["gateway"].(map[string]any)
	if scope["order"] != "price" {
		t.Fatalf("provider defaults: %v", ft.lastBody["provider_options"])
	}

	if len(resp.Content) != 4 {
		t.Fatalf("content: %v", resp.Content)
	}
	text, _ := resp.Content[0].(aisdk.TextContent)
	if text.Text != "Hi" || text.ProviderMetadata["openai"]["served"] != true {
		t.Fatalf("text content: %+v", text)
	}
	call, _ := resp.Content[1].(aisdk.ToolCallContent)
	if call.ToolCallID != "call_1" || call.Input != `{"city":"Rome"}` || !call.ProviderExecuted {
		t.Fatalf("tool call content: %+v", call)
	}
	source, _ := resp.Content[2].(aisdk.SourceContent)
	if source.URL != "https://example.com" || source.Title != "Example" {
		t.Fatalf("source content: %+v", source)
	}
	result, _ := resp.Content[3].(aisdk.ToolResultContent)
	if result.ToolName != "get_weather" || result.IsError {
		t.Fatalf("tool result content: %+v", result)
	}

	if resp.FinishReason != aisdk.FinishToolCalls {
		t.Fatalf("finish reason: %v", resp.FinishReason)
	}
	if *resp.Usage.InputTokens != 12 || *resp.Usage.OutputTokens != 3 ||
		*resp.Usage.TotalTokens != 15 || *resp.Usage.CachedInputTokens != 4 {
		t.Fatalf("usage: %+v", resp.Usage)
	}
	if resp.ProviderMetadata["gateway"]["routing"] != "fast" {
		t.Fatalf("metadata: %v", resp.ProviderMetadata)
	}
	if len(resp.Warnings) != 3 || resp.Warnings[0].Setting != "topK" ||
		resp.Warnings[1].Tool != "magic" || resp.Warnings[2].Message != "degraded" {
		t.Fatalf("warnings: %+v", resp.Warnings)
	}
	if resp.ResponseHeaders["x-request-id"] != "req_1" {
		t.Fatalf("response headers: %v", resp.ResponseHeaders)
	}
}

func TestGenerateSnakeCaseFinishReason(t *testing.T) {
	ft := &fakeTransport{payload: map[string]any{
		"content":       []any{map[string]any{"type": "text", "text": "ok"}},
		"finish_reason": "stop",
	}}
	m := gatewayModel(t, ft)

	resp, err := m.Generate(context.Background(), aisdk.CallOptions{Prompt: textPrompt("hi")})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.FinishReason != aisdk.FinishStop {
		t.Fatalf("finish reason: %v", resp.FinishReason)
	}
}

func TestGenerateUnrecognizedContentFails(t *testing.T) {
	ft := &fakeTransport{payload: map[string]any{
		"content": []any{map[string]any{"type": "hologram"}},
	}}
	m := gatewayModel(t, ft)

	_, err := m.Generate(context.Background(), aisdk.CallOptions{Prompt: textPrompt("hi")})
	var sdkErr *aisdk.Error
	if !errors.As(err, &sdkErr) || sdkErr.Kind != aisdk.ErrSerde {
		t.Fatalf("error: %v", err)
	}
}

func TestGenerateErrorEnvelope(t *testing.T) {
	ft := &fakeTransport{err: &aisdk.TransportError{
		Kind:   aisdk.TransportHTTPStatus,
		Status: 400,
		Body:   `{"error":{"message":"model not found","type":"invalid_request"}}`,
	}}
	m := gatewayModel(t, ft)

	_, err := m.Generate(context.Background(), aisdk.CallOptions{Prompt: textPrompt("hi")})
	var sdkErr *aisdk.Error
	if !errors.As(err, &sdkErr) || sdkErr.Kind != aisdk.ErrUpstream || sdkErr.Message != "model not found" {
		t.Fatalf("error: %v", err)
	}

	ft.err = &aisdk.TransportError{
		Kind:   aisdk.TransportHTTPStatus,
		Status: 400,
		Body:   `{"error":{"type":"invalid_request"}}`,
	}
	_, err = m.Generate(context.Background(), aisdk.CallOptions{Prompt: textPrompt("hi")})
	if !errors.As(err, &sdkErr) || sdkErr.Message != "invalid_request error" {
		t.Fatalf("type fallback: %v", err)
	}

	ft.err = &aisdk.TransportError{Kind: aisdk.TransportHTTPStatus, Status: 429}
	_, err = m.Generate(context.Background(), aisdk.CallOptions{Prompt: textPrompt("hi")})
	if !errors.As(err, &sdkErr) || sdkErr.Kind != aisdk.ErrRateLimited {
		t.Fatalf("rate limit: %v", err)
	}
}

func TestStreamRequest(t *testing.T) {
	ft := &fakeTransport{streamBody: strings.Join([]string{
		`data: {"type":"stream-start","warnings":[]}`,
		``,
		`data: {"type":"finish","finishReason":"stop","usage":{"total_tokens":7}}`,
		``,
		`data: [DONE]`,
		``,
		``,
	}, "\n")}
	m := gatewayModel(t, ft)

	resp, err := m.Stream(context.Background(), aisdk.CallOptions{Prompt: textPrompt("hi")})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer resp.Stream.Close()

	if ft.lastHeader[streamingHeader] != "true" {
		t.Fatalf("streaming header: %v", ft.lastHeader)
	}

	var parts []aisdk.StreamPart
	for {
		p, nextErr := resp.Stream.Next(context.Background())
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			t.Fatalf("Next: %v", nextErr)
		}
		parts = append(parts, p)
	}
	if len(parts) != 2 {
		t.Fatalf("parts: %+v", parts)
	}
	finish, _ := parts[1].(aisdk.Finish)
	if finish.FinishReason != aisdk.FinishStop || *finish.Usage.TotalTokens != 7 {
		t.Fatalf("finish: %+v", finish)
	}
}
