package google

import (
	"testing"

	"github.com/octanelabs/aisdk"
)

func testModel(modelID string) *LanguageModel {
	return New(modelID, Config{
		ProviderName:          "google.gen-ai",
		Scope:                 "google",
		BaseURL:               defaultBaseURL,
		WarnOnIncludeThoughts: true,
	})
}

func userPrompt(text string) []aisdk.Message {
	return []aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: text}}},
	}
}

func f64(v float64) *float64 { return &v }

func TestBuildBodyGenerationConfig(t *testing.T) {
	m := testModel("gemini-2.0-flash")
	maxTokens := 256
	body, _ := m.buildBody(aisdk.CallOptions{
		Prompt:          userPrompt("hi"),
		MaxOutputTokens: &maxTokens,
		Temperature:     f64(0.3),
		StopSequences:   []string{"END"},
	})

	gc := body["generationConfig"].(map[string]any)
	if gc["maxOutputTokens"] != 256 || gc["temperature"] != 0.3 {
		t.Fatalf("generationConfig: got %v", gc)
	}
	stops := gc["stopSequences"].([]string)
	if len(stops) != 1 || stops[0] != "END" {
		t.Fatalf("stopSequences: got %v", stops)
	}
}

func TestBuildBodyExtrasMergeButNotPrompt(t *testing.T) {
	m := testModel("gemini-2.0-flash")
	body, _ := m.buildBody(aisdk.CallOptions{
		Prompt:      userPrompt("hi"),
		Temperature: f64(0.3),
		ProviderOptions: aisdk.ProviderOptions{
			"google": {
				"generationConfig": map[string]any{"candidateCount": float64(2)},
				"customField":      "kept",
				"contents":         "must not override",
			},
		},
	})

	gc := body["generationConfig"].(map[string]any)
	if gc["candidateCount"] != float64(2) || gc["temperature"] != 0.3 {
		t.Fatalf("extras must deep-merge into generationConfig: %v", gc)
	}
	if body["customField"] != "kept" {
		t.Fatalf("top-level extra dropped: %v", body)
	}
	if _, ok := body["contents"].(string); ok {
		t.Fatalf("contents must not be overridable")
	}
}

func TestBuildBodyJSONResponseFormat(t *testing.T) {
	m := testModel("gemini-2.0-flash")
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"name": map[string]any{"type": "string"}},
	}
	body, _ := m.buildBody(aisdk.CallOptions{
		Prompt:         userPrompt("hi"),
		ResponseFormat: &aisdk.ResponseFormat{Type: "json", Schema: schema},
	})
	gc := body["generationConfig"].(map[string]any)
	if gc["responseMimeType"] != "application/json" {
		t.Fatalf("responseMimeType: got %v", gc)
	}
	if gc["responseSchema"] == nil {
		t.Fatalf("responseSchema missing: %v", gc)
	}

	body, _ = m.buildBody(aisdk.CallOptions{
		Prompt:         userPrompt("hi"),
		ResponseFormat: &aisdk.ResponseFormat{Type: "json", Schema: schema},
		ProviderOptions: aisdk.ProviderOptions{
			"google": {"structuredOutputs": false},
		},
	})
	gc = body["generationConfig"].(map[string]any)
	if _, ok := gc["responseSchema"]; ok {
		t.Fatalf("structuredOutputs=false must drop the schema")
	}
}

func TestBuildBodySafetyOptions(t *testing.T) {
	m := testModel("gemini-2.0-flash")
	body, _ := m.buildBody(aisdk.CallOptions{
		Prompt: userPrompt("hi"),
		ProviderOptions: aisdk.ProviderOptions{
			"google": {
				"threshold": "BLOCK_ONLY_HIGH",
				"safetySettings": []any{
					map[string]any{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_NONE"},
				},
			},
		},
	})
	if body["threshold"] != "BLOCK_ONLY_HIGH" {
		t.Fatalf("threshold: got %v", body["threshold"])
	}
	settings := body["safetySettings"].([]map[string]any)
	if len(settings) != 1 || settings[0]["category"] != "HARM_CATEGORY_HARASSMENT" {
		t.Fatalf("safetySettings: got %v", settings)
	}
}

func TestBuildBodyIncludeThoughtsWarns(t *testing.T) {
	m := testModel("gemini-2.0-flash")
	_, warnings := m.buildBody(aisdk.CallOptions{
		Prompt: userPrompt("hi"),
		ProviderOptions: aisdk.ProviderOptions{
			"google": {"thinkingConfig": map[string]any{"includeThoughts": true, "thinkingBudget": float64(512)}},
		},
	})
	found := false
	for _, w := range warnings {
		if w.Type == "other" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected includeThoughts warning, got %v", warnings)
	}
}

func TestConvertPromptRolesAndToolResults(t *testing.T) {
	conv := convertPrompt([]aisdk.Message{
		aisdk.SystemMessage{Content: "be terse"},
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "weather in Oslo?"}}},
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{
			aisdk.ToolCallPart{ToolCallID: "t1", ToolName: "weather", Input: `{"city":"Oslo"}`},
		}},
		aisdk.ToolMessage{Content: []aisdk.ToolPart{
			aisdk.ToolResultPart{ToolCallID: "t1", ToolName: "weather",
				Output: aisdk.ToolResultOutput{Kind: aisdk.ToolResultText, Text: "cold"}},
		}},
	}, []string{"google"}, false)

	if conv.systemInstruction == nil {
		t.Fatalf("systemInstruction missing")
	}
	if len(conv.contents) != 3 {
		t.Fatalf("contents: got %d, want 3", len(conv.contents))
	}
	if conv.contents[1]["role"] != "model" {
		t.Fatalf("assistant role: got %v", conv.contents[1]["role"])
	}
	parts := conv.contents[1]["parts"].([]map[string]any)
	call := parts[0]["functionCall"].(map[string]any)
	args := call["args"].(map[string]any)
	if call["name"] != "weather" || args["city"] != "Oslo" {
		t.Fatalf("functionCall: got %v", call)
	}
	last := conv.contents[2]
	if last["role"] != "user" {
		t.Fatalf("tool results must use user role: %v", last["role"])
	}
	resp := last["parts"].([]map[string]any)[0]["functionResponse"].(map[string]any)
	if resp["name"] != "weather" {
		t.Fatalf("functionResponse: got %v", resp)
	}
}

func TestConvertPromptGemmaFoldsSystem(t *testing.T) {
	conv := convertPrompt([]aisdk.Message{
		aisdk.SystemMessage{Content: "be terse"},
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "hi"}}},
	}, []string{"google"}, true)

	if conv.systemInstruction != nil {
		t.Fatalf("gemma must not carry systemInstruction")
	}
	parts := conv.contents[0]["parts"].([]map[string]any)
	if len(parts) != 2 || parts[0]["text"] != "be terse" {
		t.Fatalf("system text must lead the first user turn: %v", parts)
	}
}

func TestConvertPromptThoughtSignature(t *testing.T) {
	conv := convertPrompt([]aisdk.Message{
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{
			aisdk.ReasoningPart{Text: "thinking", ProviderOptions: aisdk.ProviderOptions{
				"google": {"thoughtSignature": "sig-1"},
			}},
			aisdk.TextPart{Text: "answer"},
		}},
	}, []string{"google"}, false)

	parts := conv.contents[0]["parts"].([]map[string]any)
	if parts[0]["thought"] != true || parts[0]["thoughtSignature"] != "sig-1" {
		t.Fatalf("thought part: got %v", parts[0])
	}
}

func TestParseGenerateResponse(t *testing.T) {
	frame := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{
						map[string]any{"text": "plan", "thought": true},
						map[string]any{"text": "Hello"},
						map[string]any{"functionCall": map[string]any{
							"name": "weather", "args": map[string]any{"city": "Oslo"},
						}},
					},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     float64(7),
			"candidatesTokenCount": float64(3),
			"totalTokenCount":      float64(10),
		},
	}

	resp := parseGenerateResponse(frame, "google")
	if resp.FinishReason != aisdk.FinishToolCalls {
		t.Fatalf("finish reason: got %v", resp.FinishReason)
	}
	if resp.Text() != "Hello" {
		t.Fatalf("text: got %q", resp.Text())
	}
	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].ToolName != "weather" {
		t.Fatalf("tool calls: got %v", calls)
	}
	if resp.Usage.InputTokens == nil || *resp.Usage.InputTokens != 7 {
		t.Fatalf("usage: got %+v", resp.Usage)
	}
	if _, ok := resp.Content[0].(aisdk.ReasoningContent); !ok {
		t.Fatalf("thought part must map to reasoning content: %T", resp.Content[0])
	}
}

func TestMapFinishReason(t *testing.T) {
	if mapFinishReason("STOP", false) != aisdk.FinishStop {
		t.Fatalf("STOP without tools")
	}
	if mapFinishReason("STOP", true) != aisdk.FinishToolCalls {
		t.Fatalf("STOP with tools")
	}
	if mapFinishReason("SAFETY", false) != aisdk.FinishContentFilter {
		t.Fatalf("SAFETY")
	}
	if mapFinishReason("MALFORMED_FUNCTION_CALL", false) != aisdk.FinishError {
		t.Fatalf("MALFORMED_FUNCTION_CALL")
	}
	if mapFinishReason("", false) != aisdk.FinishUnknown {
		t.Fatalf("empty reason")
	}
}
