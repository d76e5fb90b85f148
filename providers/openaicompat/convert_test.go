package openaicompat

import (
	"reflect"
	"strings"
	"testing"

	"github.com/octanelabs/aisdk"
)

func TestConvertChatMessages(t *testing.T) {
	prompt := []aisdk.Message{
		aisdk.SystemMessage{Content: "be terse"},
		aisdk.UserMessage{Content: []aisdk.UserPart{
			aisdk.TextPart{Text: "hello"},
		}},
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{
			aisdk.TextPart{Text: "checking "},
			aisdk.ReasoningPart{Text: "the weather"},
			aisdk.ToolCallPart{ToolCallID: "call_1", ToolName: "get_weather", Input: `{"city":"Oslo"}`},
		}},
		aisdk.ToolMessage{Content: []aisdk.ToolPart{
			aisdk.ToolResultPart{
				ToolCallID: "call_1",
				ToolName:   "get_weather",
				Output:     aisdk.ToolResultOutput{Kind: aisdk.ToolResultJSON, JSON: map[string]any{"temp": 9}},
			},
		}},
	}

	messages := convertChatMessages("prov", prompt)

	if len(messages) != 4 {
		t.Fatalf("got %d messages: %+v", len(messages), messages)
	}
	if messages[0]["role"] != "system" || messages[0]["content"] != "be terse" {
		t.Fatalf("system: %v", messages[0])
	}
	// Single text part collapses to a plain string.
	if messages[1]["content"] != "hello" {
		t.Fatalf("user: %v", messages[1])
	}

	assistant := messages[2]
	if assistant["content"] != "checking the weather" {
		t.Fatalf("assistant content: %v", assistant)
	}
	calls := assistant["tool_calls"].([]map[string]any)
	if len(calls) != 1 || calls[0]["id"] != "call_1" {
		t.Fatalf("tool calls: %v", calls)
	}
	fn := calls[0]["function"].(map[string]any)
	if fn["name"] != "get_weather" || fn["arguments"] != `{"city":"Oslo"}` {
		t.Fatalf("function: %v", fn)
	}

	toolMsg := messages[3]
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_1" {
		t.Fatalf("tool message: %v", toolMsg)
	}
	if toolMsg["content"] != `{"temp":9}` {
		t.Fatalf("tool content: %v", toolMsg["content"])
	}
}

func TestConvertChatMessagesMultimodal(t *testing.T) {
	prompt := []aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{
			aisdk.TextPart{Text: "what is this?"},
			aisdk.FilePart{MediaType: "image/png", Data: aisdk.DataContent{Base64: "aWNvbg=="}},
			aisdk.FilePart{MediaType: "application/pdf", Data: aisdk.DataContent{URL: "https://x/doc.pdf"}},
		}},
	}

	messages := convertChatMessages("prov", prompt)
	parts := messages[0]["content"].([]map[string]any)

	// The PDF is dropped; only text and images survive.
	if len(parts) != 2 {
		t.Fatalf("parts: %v", parts)
	}
	if parts[0]["type"] != "text" || parts[0]["text"] != "what is this?" {
		t.Fatalf("text part: %v", parts[0])
	}
	img := parts[1]["image_url"].(map[string]any)
	if img["url"] != "data:image/png;base64,aWNvbg==" {
		t.Fatalf("image url: %v", img)
	}
}

func TestConvertChatMessagesProviderOptions(t *testing.T) {
	prompt := []aisdk.Message{
		aisdk.SystemMessage{
			Content: "x",
			ProviderOptions: aisdk.ProviderOptions{
				"prov":  {"cache_control": map[string]any{"type": "ephemeral"}},
				"other": {"ignored": true},
			},
		},
	}

	messages := convertChatMessages("prov", prompt)
	cc, ok := messages[0]["cache_control"].(map[string]any)
	if !ok || cc["type"] != "ephemeral" {
		t.Fatalf("scope metadata not applied: %v", messages[0])
	}
	if _, exists := messages[0]["ignored"]; exists {
		t.Fatalf("foreign scope leaked: %v", messages[0])
	}
}

func TestToolResultText(t *testing.T) {
	cases := []struct {
		out  aisdk.ToolResultOutput
		want string
	}{
		{aisdk.ToolResultOutput{Kind: aisdk.ToolResultText, Text: "ok"}, "ok"},
		{aisdk.ToolResultOutput{Kind: aisdk.ToolResultErrorText, Text: "failed"}, "failed"},
		{aisdk.ToolResultOutput{Kind: aisdk.ToolResultJSON, JSON: map[string]any{"a": 1}}, `{"a":1}`},
		{aisdk.ToolResultOutput{Kind: aisdk.ToolResultErrorJSON, JSON: map[string]any{"e": "x"}}, `{"e":"x"}`},
	}
	for _, tc := range cases {
		if got := toolResultText(tc.out); got != tc.want {
			t.Fatalf("kind %q: got %q, want %q", tc.out.Kind, got, tc.want)
		}
	}
}

func TestFileURL(t *testing.T) {
	p := aisdk.FilePart{MediaType: "image/jpeg", Data: aisdk.DataContent{URL: "https://x/a.jpg"}}
	if got := fileURL(p); got != "https://x/a.jpg" {
		t.Fatalf("got %q", got)
	}
	p = aisdk.FilePart{MediaType: "image/png", Data: aisdk.DataContent{Bytes: []byte("ab")}}
	if got := fileURL(p); got != "data:image/png;base64,YWI=" {
		t.Fatalf("got %q", got)
	}
}

func TestConvertCompletionPrompt(t *testing.T) {
	prompt := []aisdk.Message{
		aisdk.SystemMessage{Content: "You are terse."},
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "Hi."}}},
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{aisdk.TextPart{Text: "Hello."}}},
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "Bye."}}},
	}

	text, stops, err := convertCompletionPrompt(prompt, "user", "assistant")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	want := "You are terse.\n\nuser:\nHi.\n\nassistant:\nHello.\n\nuser:\nBye.\n\nassistant:\n"
	if text != want {
		t.Fatalf("got %q\nwant %q", text, want)
	}
	if !reflect.DeepEqual(stops, []string{"\nuser:"}) {
		t.Fatalf("stops: %v", stops)
	}
}

func TestConvertCompletionPromptErrors(t *testing.T) {
	_, _, err := convertCompletionPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{aisdk.TextPart{Text: "x"}}},
		aisdk.SystemMessage{Content: "late"},
	}, "user", "assistant")
	if !aisdk.IsUpstream(err) || !strings.Contains(err.Error(), "system message") {
		t.Fatalf("got %v", err)
	}

	_, _, err = convertCompletionPrompt([]aisdk.Message{
		aisdk.UserMessage{Content: []aisdk.UserPart{
			aisdk.FilePart{MediaType: "image/png", Data: aisdk.DataContent{Base64: "x"}},
		}},
	}, "user", "assistant")
	if !aisdk.IsUpstream(err) {
		t.Fatalf("got %v", err)
	}

	_, _, err = convertCompletionPrompt([]aisdk.Message{
		aisdk.ToolMessage{},
	}, "user", "assistant")
	if !aisdk.IsUpstream(err) {
		t.Fatalf("got %v", err)
	}

	_, _, err = convertCompletionPrompt([]aisdk.Message{
		aisdk.AssistantMessage{Content: []aisdk.AssistantPart{
			aisdk.ToolCallPart{ToolCallID: "c", ToolName: "t", Input: "{}"},
		}},
	}, "user", "assistant")
	if !aisdk.IsUpstream(err) {
		t.Fatalf("got %v", err)
	}
}
