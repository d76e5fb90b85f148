package bedrock

import (
	"errors"
	"testing"

	"github.com/octanelabs/aisdk"
)

func cachePointOptions() aisdk.ProviderOptions {
	return aisdk.ProviderOptions{"bedrock": {
		"cachePoint": map[string]any{"type": "default"},
	}}
}

func TestConvertSystemMessages(t *testing.T) {
	conv, err := convertPrompt([]aisdk.Message{
		aisdk.SystemMessage{Content: "be helpful", ProviderOptions: cachePointOptions()},
		aisdk.SystemMessage{Content: "   "},
		aisdk.SystemMessage{Content: "be brief"},
	})
	if err != nil {
		t.Fatalf("convertPrompt: %v", err)
	}
	if len(conv.system) != 3 {
		t.Fatalf("system: %v", conv.system)
	}
	if conv.system[0]["text"] != "be helpful" {
		t.Fatalf("first system entry: %v", conv.system[0])
	}
	if _, ok := conv.system[1]["cachePoint"]; !ok {
		t.Fatalf("cache point entry: %v", conv.system[1])
	}
	if conv.system[2]["text"] != "be brief" {
		t.Fatalf("last system entry: %v", conv.system[2])
	}
}

func TestConvertSystemAfterConversationFails(t *testing.T) {
	_, err := convertPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "hi"}}},
		aisdk.SystemMessage{Content: "too late"},
	})
	var sdkErr *aisdk.Error
	if !errors.As(err, &sdkErr) || sdkErr.Kind != aisdk.ErrUpstream {
		t.Fatalf("error: %v", err)
	}
}

func TestConvertUserFiles(t *testing.T) {
	conv, err := convertPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{
			aisdk.TextPart{Text: "look at these"},
			aisdk.FilePart{MediaType: "image/png", Data: aisdk.DataContent{Base64: "aW1n"}},
			aisdk.FilePart{MediaType: "application/pdf", Data: aisdk.DataContent{Base64: "cGRm"}},
			aisdk.FilePart{
				Filename:  "report.csv",
				MediaType: "text/csv",
				Data:      aisdk.DataContent{Bytes: []byte("a,b")},
			},
		}},
	})
	if err != nil {
		t.Fatalf("convertPrompt: %v", err)
	}
	if len(conv.messages) != 1 {
		t.Fatalf("messages: %v", conv.messages)
	}
	content, _ := conv.messages[0]["content"].([]map[string]any)
	if len(content) != 4 {
		t.Fatalf("content: %v", content)
	}

	image, _ := content[1]["image"].(map[string]any)
	source, _ := image["source"].(map[string]any)
	if image["format"] != "png" || source["bytes"] != "aW1n" {
		t.Fatalf("image: %v", content[1])
	}

	pdf, _ := content[2]["document"].(map[string]any)
	if pdf["format"] != "pdf" || pdf["name"] != "document-3" {
		t.Fatalf("pdf: %v", content[2])
	}

	csv, _ := content[3]["document"].(map[string]any)
	csvSource, _ := csv["source"].(map[string]any)
	if csv["format"] != "csv" || csv["name"] != "report.csv" || csvSource["bytes"] != "YSxi" {
		t.Fatalf("csv: %v", content[3])
	}
}

func TestConvertFileErrors(t *testing.T) {
	_, err := convertPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{
			aisdk.FilePart{MediaType: "image/png", Data: aisdk.DataContent{URL: "https://example.com/a.png"}},
		}},
	})
	if err == nil {
		t.Fatalf("url file must fail")
	}

	_, err = convertPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{
			aisdk.FilePart{Data: aisdk.DataContent{Base64: "aW1n"}},
		}},
	})
	if err == nil {
		t.Fatalf("missing MIME type must fail")
	}

	_, err = convertPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{
			aisdk.FilePart{MediaType: "video/mp4", Data: aisdk.DataContent{Base64: "dmlk"}},
		}},
	})
	if err == nil {
		t.Fatalf("unsupported MIME type must fail")
	}
}

func TestConvertToolResults(t *testing.T) {
	conv, err := convertPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "weather?"}}},
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{
			aisdk.ToolCallPart{ToolCallID: "tool_1", ToolName: "get_weather", Input: `{"city":"Rome"}`},
		}},
		aisdk.ToolMessage{Content: []aisdk.ToolPart{
			aisdk.ToolResultPart{
				ToolCallID: "tool_1", ToolName: "get_weather",
				Output: aisdk.ToolResultOutput{Kind: aisdk.ToolResultText, Text: "sunny"},
			},
			aisdk.ToolResultPart{
				ToolCallID: "tool_2", ToolName: "lookup",
				Output: aisdk.ToolResultOutput{
					Kind: aisdk.ToolResultJSON,
					JSON: map[string]any{"answer": float64(42)},
				},
			},
			aisdk.ToolResultPart{
				ToolCallID: "tool_3", ToolName: "screenshot",
				Output: aisdk.ToolResultOutput{
					Kind: aisdk.ToolResultContentKind,
					Content: []aisdk.ToolResultInlineContent{
						{Text: "caption"},
						{Data: "aW1n", MediaType: "image/png"},
					},
				},
			},
			aisdk.ToolApprovalResponsePart{ApprovalID: "appr_1", Approved: true},
		}},
	})
	if err != nil {
		t.Fatalf("convertPrompt: %v", err)
	}
	if len(conv.messages) != 3 {
		t.Fatalf("messages: %v", conv.messages)
	}

	results, _ := conv.messages[2]["content"].([]map[string]any)
	if len(results) != 3 {
		t.Fatalf("approval responses must be skipped: %v", results)
	}

	first, _ := results[0]["toolResult"].(map[string]any)
	firstContent, _ := first["content"].([]map[string]any)
	if first["toolUseId"] != "tool_1" || firstContent[0]["text"] != "sunny" {
		t.Fatalf("text result: %v", results[0])
	}

	second, _ := results[1]["toolResult"].(map[string]any)
	secondContent, _ := second["content"].([]map[string]any)
	if secondContent[0]["text"] != `{"answer":42}` {
		t.Fatalf("json result: %v", results[1])
	}

	third, _ := results[2]["toolResult"].(map[string]any)
	thirdContent, _ := third["content"].([]map[string]any)
	if len(thirdContent) != 2 {
		t.Fatalf("inline content: %v", results[2])
	}
	image, _ := thirdContent[1]["image"].(map[string]any)
	if image["format"] != "png" {
		t.Fatalf("inline image: %v", thirdContent[1])
	}
}

func TestConvertAssistantParts(t *testing.T) {
	conv, err := convertPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "hi"}}},
		aisdk.AssistantMessage{
			Content: []aisdk.AssistantPart{
				aisdk.ReasoningPart{Text: "thinking", ProviderOptions: aisdk.ProviderOptions{
					"bedrock": {"signature": "sig_1"},
				}},
				aisdk.ReasoningPart{ProviderOptions: aisdk.ProviderOptions{
					"bedrock": {"redactedData": "opaque"},
				}},
				aisdk.ToolCallPart{ToolCallID: "tool_1", ToolName: "get_weather", Input: `{"city":"Rome"}`},
				aisdk.TextPart{Text: "  prefill  "},
			},
			ProviderOptions: cachePointOptions(),
		},
	})
	if err != nil {
		t.Fatalf("convertPrompt: %v", err)
	}
	content, _ := conv.messages[1]["content"].([]map[string]any)
	if len(content) != 5 {
		t.Fatalf("content: %v", content)
	}

	reasoning, _ := content[0]["reasoningContent"].(map[string]any)
	signed, _ := reasoning["reasoningText"].(map[string]any)
	if signed["text"] != "thinking" || signed["signature"] != "sig_1" {
		t.Fatalf("signed reasoning: %v", content[0])
	}

	reasoning, _ = content[1]["reasoningContent"].(map[string]any)
	redacted, _ := reasoning["redactedReasoning"].(map[string]any)
	if redacted["data"] != "opaque" {
		t.Fatalf("redacted reasoning: %v", content[1])
	}

	toolUse, _ := content[2]["toolUse"].(map[string]any)
	input, _ := toolUse["input"].(map[string]any)
	if toolUse["toolUseId"] != "tool_1" || input["city"] != "Rome" {
		t.Fatalf("tool use: %v", content[2])
	}

	// The trailing prefill part loses surrounding whitespace.
	if content[3]["text"] != "prefill" {
		t.Fatalf("trailing text: %v", content[3])
	}
	if _, ok := content[4]["cachePoint"]; !ok {
		t.Fatalf("cache point: %v", content[4])
	}
}

func TestConvertAssistantFileFails(t *testing.T) {
	_, err := convertPrompt([]aisdk.Message{
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{
			aisdk.FilePart{MediaType: "image/png", Data: aisdk.DataContent{Base64: "aW1n"}},
		}},
	})
	if err == nil {
		t.Fatalf("assistant file must fail")
	}
}

func TestConvertToolCallInvalidJSONFallsBackToString(t *testing.T) {
	conv, err := convertPrompt([]aisdk.Message{
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{
			aisdk.ToolCallPart{ToolCallID: "tool_1", ToolName: "sh", Input: "not-json"},
		}},
	})
	if err != nil {
		t.Fatalf("convertPrompt: %v", err)
	}
	content, _ := conv.messages[0]["content"].([]map[string]any)
	toolUse, _ := content[0]["toolUse"].(map[string]any)
	if toolUse["input"] != "not-json" {
		t.Fatalf("input fallback: %v", toolUse["input"])
	}
}
