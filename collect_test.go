package aisdk

import (
	"context"
	"testing"
)

func collect(t *testing.T, parts []StreamPart, cfg CollectConfig) *GenerateResponse {
	t.Helper()
	resp, err := Collect(context.Background(), &SlicePartStream{Parts: parts}, cfg)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return resp
}

func TestCollectText(t *testing.T) {
	parts := []StreamPart{
		StreamStart{Warnings: []CallWarning{{Type: "other", Message: "heads up"}}},
		TextStart{ID: "t1"},
		TextDelta{ID: "t1", Delta: "Hello, "},
		TextDelta{ID: "t1", Delta: "world"},
		TextEnd{ID: "t1"},
		Finish{Usage: Usage{InputTokens: Int64(3), OutputTokens: Int64(5), TotalTokens: Int64(8)}, FinishReason: FinishStop},
	}

	resp := collect(t, parts, CollectEverything("test"))

	if resp.Text() != "Hello, world" {
		t.Fatalf("text: %q", resp.Text())
	}
	if resp.FinishReason != FinishStop {
		t.Fatalf("finish: %q", resp.FinishReason)
	}
	if *resp.Usage.TotalTokens != 8 {
		t.Fatalf("usage: %+v", resp.Usage)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].Message != "heads up" {
		t.Fatalf("warnings: %+v", resp.Warnings)
	}
}

func TestCollectInterleavedTextBlocks(t *testing.T) {
	parts := []StreamPart{
		TextStart{ID: "a"},
		TextStart{ID: "b"},
		TextDelta{ID: "a", Delta: "first"},
		TextDelta{ID: "b", Delta: "second"},
		TextEnd{ID: "a"},
		TextEnd{ID: "b"},
		Finish{FinishReason: FinishStop},
	}

	resp := collect(t, parts, CollectEverything("test"))

	if len(resp.Content) != 2 {
		t.Fatalf("content: %+v", resp.Content)
	}
	if resp.Content[0].(TextContent).Text != "first" || resp.Content[1].(TextContent).Text != "second" {
		t.Fatalf("content order: %+v", resp.Content)
	}
}

func TestCollectEmptyTextBlockDropped(t *testing.T) {
	parts := []StreamPart{
		TextStart{ID: "t1"},
		TextEnd{ID: "t1"},
		Finish{FinishReason: FinishStop},
	}
	resp := collect(t, parts, CollectEverything("test"))
	if len(resp.Content) != 0 {
		t.Fatalf("empty block should be dropped: %+v", resp.Content)
	}
}

func TestCollectReasoningSignature(t *testing.T) {
	parts := []StreamPart{
		ReasoningStart{ID: "r1"},
		ReasoningDelta{ID: "r1", Delta: "thinking"},
		ReasoningSignature{ID: "r1", Signature: "sig-abc"},
		ReasoningEnd{ID: "r1"},
		Finish{FinishReason: FinishStop},
	}

	resp := collect(t, parts, CollectEverything("anthropic"))

	if len(resp.Content) != 1 {
		t.Fatalf("content: %+v", resp.Content)
	}
	rc := resp.Content[0].(ReasoningContent)
	if rc.Text != "thinking" {
		t.Fatalf("text: %q", rc.Text)
	}
	if rc.ProviderMetadata["anthropic"]["signature"] != "sig-abc" {
		t.Fatalf("metadata: %+v", rc.ProviderMetadata)
	}
}

func TestCollectReasoningSignatureWithoutID(t *testing.T) {
	// Data-hook emitters carry no block id on the signature; it must attach
	// to the reasoning block that closes next.
	parts := []StreamPart{
		ReasoningStart{ID: "0"},
		ReasoningDelta{ID: "0", Delta: "thinking"},
		ReasoningSignature{Signature: "sig-xyz"},
		ReasoningEnd{ID: "0"},
		ReasoningStart{ID: "1"},
		ReasoningDelta{ID: "1", Delta: "more"},
		ReasoningEnd{ID: "1"},
		Finish{FinishReason: FinishStop},
	}

	resp := collect(t, parts, CollectEverything("anthropic"))

	if len(resp.Content) != 2 {
		t.Fatalf("content: %+v", resp.Content)
	}
	first := resp.Content[0].(ReasoningContent)
	if first.ProviderMetadata["anthropic"]["signature"] != "sig-xyz" {
		t.Fatalf("metadata: %+v", first.ProviderMetadata)
	}
	// The signature is consumed by the block it attached to.
	second := resp.Content[1].(ReasoningContent)
	if second.ProviderMetadata != nil {
		t.Fatalf("signature leaked into later block: %+v", second.ProviderMetadata)
	}
}

func TestCollectFilters(t *testing.T) {
	parts := []StreamPart{
		ReasoningStart{ID: "r1"},
		ReasoningDelta{ID: "r1", Delta: "hidden"},
		ReasoningEnd{ID: "r1"},
		ToolCall{ToolCallID: "c1", ToolName: "lookup", Input: "{}"},
		ToolResult{ToolCallID: "c1", ToolName: "lookup"},
		FileData{MediaType: "image/png", Data: "aGk="},
		SourceURL{ID: "s1", URL: "https://example.com"},
		Finish{FinishReason: FinishStop},
	}

	resp := collect(t, parts, CollectConfig{})
	if len(resp.Content) != 0 {
		t.Fatalf("restrictive config should drop everything: %+v", resp.Content)
	}

	resp = collect(t, parts, CollectEverything("test"))
	if len(resp.Content) != 5 {
		t.Fatalf("permissive config should keep all: %+v", resp.Content)
	}
	calls := resp.ToolCalls()
	if len(calls) != 1 || calls[0].ToolName != "lookup" {
		t.Fatalf("tool calls: %+v", calls)
	}
}

func TestCollectErrorPart(t *testing.T) {
	parts := []StreamPart{
		TextStart{ID: "t1"},
		ErrorPart{Error: "overloaded"},
		Finish{FinishReason: FinishError},
	}

	_, err := Collect(context.Background(), &SlicePartStream{Parts: parts}, CollectEverything("test"))
	if !IsUpstream(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	resp := collect(t, parts, CollectConfig{})
	if resp.FinishReason != FinishError {
		t.Fatalf("finish: %q", resp.FinishReason)
	}
}

func TestCollectStreamWithoutFinish(t *testing.T) {
	parts := []StreamPart{
		TextStart{ID: "t1"},
		TextDelta{ID: "t1", Delta: "partial"},
	}
	resp := collect(t, parts, CollectEverything("test"))
	if resp.FinishReason != FinishUnknown {
		t.Fatalf("finish: %q", resp.FinishReason)
	}
	if len(resp.Content) != 0 {
		t.Fatalf("unterminated block should not be flushed: %+v", resp.Content)
	}
}

func TestCollectProviderMetadataFromFinish(t *testing.T) {
	parts := []StreamPart{
		Finish{
			FinishReason:     FinishStop,
			ProviderMetadata: ProviderMetadata{"google": {"blockReason": nil}},
		},
	}
	resp := collect(t, parts, CollectEverything("test"))
	if resp.ProviderMetadata == nil {
		t.Fatalf("finish metadata lost")
	}
}
