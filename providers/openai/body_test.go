package openai

import (
	"strings"
	"testing"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/capabilities"
)

func testModel(modelID string) *LanguageModel {
	return New(modelID, Config{})
}

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func hasWarning(warnings []aisdk.CallWarning, fragment string) bool {
	for _, w := range warnings {
		if strings.Contains(w.Message, fragment) || strings.Contains(w.Setting, fragment) ||
			strings.Contains(w.Tool, fragment) || strings.Contains(w.Details, fragment) {
			return true
		}
	}
	return false
}

func TestBuildRequestBodyProviderOptions(t *testing.T) {
	m := testModel("gpt-4o")
	body, bctx, err := m.buildRequestBody(aisdk.CallOptions{
		Prompt: []aisdk.Message{
			aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "hi"}}},
		},
		MaxOutputTokens: intPtr(256),
		Temperature:     float64Ptr(0.4),
		ProviderOptions: aisdk.ProviderOptions{"openai": {
			"instructions":       "be brief",
			"user":               "user-7",
			"parallelToolCalls":  false,
			"promptCacheKey":     "cache-1",
			"previousResponseId": "resp_0",
			"logprobs":           true,
		}},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	if body["model"] != "gpt-4o" {
		t.Fatalf("model: %v", body["model"])
	}
	if body["instructions"] != "be brief" || body["user"] != "user-7" {
		t.Fatalf("passthrough options missing: %v", body)
	}
	if body["parallel_tool_calls"] != false {
		t.Fatalf("parallel_tool_calls: %v", body["parallel_tool_calls"])
	}
	if body["previous_response_id"] != "resp_0" {
		t.Fatalf("previous_response_id: %v", body["previous_response_id"])
	}
	if body["temperature"] != 0.4 {
		t.Fatalf("temperature must survive on a non-reasoning model: %v", body["temperature"])
	}
	if body["top_logprobs"] != topLogprobsMax {
		t.Fatalf("top_logprobs: %v", body["top_logprobs"])
	}
	include, _ := body["include"].([]string)
	if len(include) != 1 || include[0] != "message.output_text.logprobs" {
		t.Fatalf("include: %v", body["include"])
	}
	if bctx.logprobs != topLogprobsMax {
		t.Fatalf("logprobs context: %d", bctx.logprobs)
	}
}

func TestBuildRequestBodyReasoningFromCapabilityIndex(t *testing.T) {
	t.Setenv(capabilities.EnvIndexJSON, `{"providers":[{"id":"openai","models":[{"id":"experimental-reasoner","capabilities":{"reasoning":true}}]}]}`)
	t.Setenv(capabilities.EnvDisableDisk, "1")
	capabilities.Reset()
	t.Cleanup(capabilities.Reset)

	// Not in the built-in model table; only the index marks it reasoning.
	m := testModel("experimental-reasoner")
	body, _, err := m.buildRequestBody(aisdk.CallOptions{
		Prompt: []aisdk.Message{
			aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "hi"}}},
		},
		Temperature: float64Ptr(0.9),
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	if _, ok := body["temperature"]; ok {
		t.Fatalf("temperature must be dropped: %v", body)
	}
}

func TestBuildRequestBodyReasoningModelDropsSampling(t *testing.T) {
	m := testModel("o3-mini")
	body, bctx, err := m.buildRequestBody(aisdk.CallOptions{
		Temperature: float64Ptr(0.9),
		TopP:        float64Ptr(0.5),
		ProviderOptions: aisdk.ProviderOptions{"openai": {
			"reasoningEffort":  "high",
			"reasoningSummary": "auto",
			"store":            false,
		}},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	if _, ok := body["temperature"]; ok {
		t.Fatalf("temperature must be removed for reasoning models")
	}
	if _, ok := body["top_p"]; ok {
		t.Fatalf("top_p must be removed for reasoning models")
	}
	if !hasWarning(bctx.warnings, "temperature") || !hasWarning(bctx.warnings, "topP") {
		t.Fatalf("missing sampling warnings: %v", bctx.warnings)
	}
	reasoning, _ := body["reasoning"].(map[string]any)
	if reasoning["effort"] != "high" || reasoning["summary"] != "auto" {
		t.Fatalf("reasoning: %v", body["reasoning"])
	}
	include, _ := body["include"].([]string)
	found := false
	for _, v := range include {
		if v == "reasoning.encrypted_content" {
			found = true
		}
	}
	if !found {
		t.Fatalf("store=false reasoning must request encrypted content: %v", include)
	}
	if bctx.store {
		t.Fatalf("store must be false")
	}
}

func TestBuildRequestBodyFunctionToolStrict(t *testing.T) {
	for _, tc := range []struct {
		name    string
		options aisdk.ProviderOptions
		want    any
	}{
		{"true", aisdk.ProviderOptions{"openai": {"strict": true}}, true},
		{"false", aisdk.ProviderOptions{"openai": {"strict": false}}, false},
		{"omitted", nil, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := testModel("gpt-4o")
			body, _, err := m.buildRequestBody(aisdk.CallOptions{
				Tools: []aisdk.Tool{aisdk.FunctionTool{
					Name:            "lookup",
					InputSchema:     map[string]any{"type": "object"},
					ProviderOptions: tc.options,
				}},
			})
			if err != nil {
				t.Fatalf("buildRequestBody: %v", err)
			}
			tools, _ := body["tools"].([]any)
			if len(tools) != 1 {
				t.Fatalf("tools: %v", body["tools"])
			}
			entry := tools[0].(map[string]any)
			got, present := entry["strict"]
			if tc.want == nil {
				if present {
					t.Fatalf("strict must be omitted: %v", entry)
				}
				return
			}
			if got != tc.want {
				t.Fatalf("strict: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildRequestBodyProviderToolsAndToolChoice(t *testing.T) {
	m := testModel("gpt-4o")
	body, _, err := m.buildRequestBody(aisdk.CallOptions{
		Tools: []aisdk.Tool{
			aisdk.ProviderDefinedTool{ID: "openai.web_search", Name: "search", Args: map[string]any{
				"searchContextSize": "high",
			}},
			aisdk.ProviderDefinedTool{ID: "openai.code_interpreter", Name: "python", Args: map[string]any{}},
		},
		ToolChoice: &aisdk.ToolChoice{Type: "tool", ToolName: "search"},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("tools: %v", body["tools"])
	}
	web := tools[0].(map[string]any)
	if web["type"] != "web_search" || web["search_context_size"] != "high" {
		t.Fatalf("web search tool: %v", web)
	}
	ci := tools[1].(map[string]any)
	container, _ := ci["container"].(map[string]any)
	if container["type"] != "auto" {
		t.Fatalf("code interpreter default container: %v", ci)
	}
	choice, _ := body["tool_choice"].(map[string]any)
	if choice["type"] != "web_search" {
		t.Fatalf("builtin tool choice must use the wire type: %v", body["tool_choice"])
	}
	include, _ := body["include"].([]string)
	joined := strings.Join(include, ",")
	if !strings.Contains(joined, "web_search_call.action.sources") ||
		!strings.Contains(joined, "code_interpreter_call.outputs") {
		t.Fatalf("include extras: %v", include)
	}
}

func TestBuildRequestBodyUnknownProviderToolWarns(t *testing.T) {
	m := testModel("gpt-4o")
	body, bctx, err := m.buildRequestBody(aisdk.CallOptions{
		Tools: []aisdk.Tool{
			aisdk.ProviderDefinedTool{ID: "other.search", Name: "search"},
		},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	if _, ok := body["tools"]; ok {
		t.Fatalf("unknown tool must not reach the wire: %v", body["tools"])
	}
	if !hasWarning(bctx.warnings, "other.search") {
		t.Fatalf("missing unsupported tool warning: %v", bctx.warnings)
	}
}

func TestBuildRequestBodyExtrasDoNotOverrideExplicitEffort(t *testing.T) {
	m := testModel("o3")
	body, _, err := m.buildRequestBody(aisdk.CallOptions{
		ProviderOptions: aisdk.ProviderOptions{"openai": {
			"reasoningEffort": "high",
			"reasoning":       map[string]any{"effort": "low", "summary": "detailed"},
			"model":           "other-model",
		}},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	reasoning, _ := body["reasoning"].(map[string]any)
	if reasoning["effort"] != "high" {
		t.Fatalf("explicit effort must win over merged defaults: %v", reasoning)
	}
	if reasoning["summary"] != "detailed" {
		t.Fatalf("merged defaults must fill holes: %v", reasoning)
	}
	if body["model"] != "o3" {
		t.Fatalf("structural keys must not be overridable: %v", body["model"])
	}
}

func TestBuildRequestBodyConversationConflict(t *testing.T) {
	m := testModel("gpt-4o")
	body, bctx, err := m.buildRequestBody(aisdk.CallOptions{
		ProviderOptions: aisdk.ProviderOptions{"openai": {
			"conversation":       "conv_1",
			"previousResponseId": "resp_1",
		}},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	if _, ok := body["previous_response_id"]; ok {
		t.Fatalf("previous_response_id must be dropped alongside conversation")
	}
	if body["conversation"] != "conv_1" {
		t.Fatalf("conversation: %v", body["conversation"])
	}
	if !hasWarning(bctx.warnings, "conversation and previousResponseId") {
		t.Fatalf("missing conflict warning: %v", bctx.warnings)
	}
}

func TestBuildRequestBodyServiceTierValidation(t *testing.T) {
	m := testModel("gpt-4o-mini")
	body, bctx, err := m.buildRequestBody(aisdk.CallOptions{
		ProviderOptions: aisdk.ProviderOptions{"openai": {"serviceTier": "flex"}},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	if _, ok := body["service_tier"]; ok {
		t.Fatalf("flex is not available on gpt-4o-mini")
	}
	if !hasWarning(bctx.warnings, "flex processing") {
		t.Fatalf("missing flex warning: %v", bctx.warnings)
	}

	m = testModel("o3")
	body, _, err = m.buildRequestBody(aisdk.CallOptions{
		ProviderOptions: aisdk.ProviderOptions{"openai": {"serviceTier": "flex"}},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	if body["service_tier"] != "flex" {
		t.Fatalf("service_tier: %v", body["service_tier"])
	}
}

func TestBuildRequestBodyJSONResponseFormat(t *testing.T) {
	m := testModel("gpt-4o")
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	body, _, err := m.buildRequestBody(aisdk.CallOptions{
		ResponseFormat: &aisdk.ResponseFormat{Type: "json", Schema: schema, Name: "answer"},
		ProviderOptions: aisdk.ProviderOptions{"openai": {
			"strictJsonSchema": false,
			"textVerbosity":    "low",
		}},
	})
	if err != nil {
		t.Fatalf("buildRequestBody: %v", err)
	}
	text, _ := body["text"].(map[string]any)
	format, _ := text["format"].(map[string]any)
	if format["type"] != "json_schema" || format["name"] != "answer" || format["strict"] != false {
		t.Fatalf("format: %v", format)
	}
	if text["verbosity"] != "low" {
		t.Fatalf("verbosity: %v", text["verbosity"])
	}
}

func TestGetResponsesModelConfig(t *testing.T) {
	if cfg := getResponsesModelConfig("gpt-5-chat-latest"); cfg.isReasoningModel {
		t.Fatalf("gpt-5-chat is not a reasoning model")
	}
	if cfg := getResponsesModelConfig("gpt-5"); !cfg.isReasoningModel || !cfg.supportsFlexProcessing {
		t.Fatalf("gpt-5 config: %+v", cfg)
	}
	if cfg := getResponsesModelConfig("o1-preview"); cfg.systemMessageMode != systemModeDeveloper {
		t.Fatalf("o1 must use developer system messages: %+v", cfg)
	}
	if cfg := getResponsesModelConfig("gpt-4o"); cfg.systemMessageMode != systemModeSystem {
		t.Fatalf("gpt-4o must use system messages: %+v", cfg)
	}
	if cfg := getResponsesModelConfig("gpt-5-nano"); cfg.supportsPriorityProcessing {
		t.Fatalf("gpt-5-nano has no priority processing")
	}
}
