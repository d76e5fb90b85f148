package aisdk

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// CollectConfig controls which stream parts the collector folds into the
// response content.
type CollectConfig struct {
	AllowReasoning   bool
	AllowToolCalls   bool
	AllowToolResults bool
	AllowFiles       bool
	AllowSourceURLs  bool

	// FailOnError turns an ErrorPart into an upstream error instead of a
	// silently dropped part.
	FailOnError bool

	// ReasoningMetadataScope is the provider scope under which reasoning
	// signatures are attached to collected reasoning content.
	ReasoningMetadataScope string
}

// CollectEverything is the permissive configuration used by adapters that
// implement generate on top of their own stream.
func CollectEverything(scope string) CollectConfig {
	return CollectConfig{
		AllowReasoning:         true,
		AllowToolCalls:         true,
		AllowToolResults:       true,
		AllowFiles:             true,
		AllowSourceURLs:        true,
		FailOnError:            true,
		ReasoningMetadataScope: scope,
	}
}

type textAcc struct {
	text string
}

type reasoningAcc struct {
	text      string
	signature string
}

// Collect consumes one stream-part sequence and folds it into a
// GenerateResponse. Unmatched parts are ignored for forward compatibility.
func Collect(ctx context.Context, stream PartStream, cfg CollectConfig) (*GenerateResponse, error) {
	defer stream.Close()

	resp := &GenerateResponse{FinishReason: FinishUnknown}
	texts := map[string]*textAcc{}
	reasonings := map[string]*reasoningAcc{}
	// Signatures may arrive without a block id (data-hook emitters); the
	// most recent one attaches to whichever reasoning block closes next.
	lastSignature := ""

	for {
		part, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return resp, nil
			}
			if errors.Is(err, context.Canceled) {
				return nil, CancelledError()
			}
			return nil, err
		}

		switch p := part.(type) {
		case StreamStart:
			resp.Warnings = append(resp.Warnings, p.Warnings...)
		case TextStart:
			texts[p.ID] = &textAcc{}
		case TextDelta:
			if acc, ok := texts[p.ID]; ok {
				acc.text += p.Delta
			}
		case TextEnd:
			if acc, ok := texts[p.ID]; ok && acc.text != "" {
				resp.Content = append(resp.Content, TextContent{Text: acc.text})
			}
			delete(texts, p.ID)
		case ReasoningStart:
			if cfg.AllowReasoning {
				reasonings[p.ID] = &reasoningAcc{}
			}
		case ReasoningDelta:
			if acc, ok := reasonings[p.ID]; ok {
				acc.text += p.Delta
			}
		case ReasoningSignature:
			if acc, ok := reasonings[p.ID]; ok {
				acc.signature = p.Signature
			} else {
				lastSignature = p.Signature
			}
		case ReasoningEnd:
			if acc, ok := reasonings[p.ID]; ok {
				sig := acc.signature
				if sig == "" {
					sig = lastSignature
				}
				content := ReasoningContent{Text: acc.text}
				if sig != "" && cfg.ReasoningMetadataScope != "" {
					content.ProviderMetadata = ProviderMetadata{
						cfg.ReasoningMetadataScope: {"signature": sig},
					}
				}
				resp.Content = append(resp.Content, content)
				lastSignature = ""
			}
			delete(reasonings, p.ID)
		case ToolCall:
			if cfg.AllowToolCalls {
				resp.Content = append(resp.Content, ToolCallContent{
					ToolCallID:       p.ToolCallID,
					ToolName:         p.ToolName,
					Input:            p.Input,
					ProviderExecuted: p.ProviderExecuted,
					ProviderMetadata: p.ProviderMetadata,
					ProviderOptions:  p.ProviderOptions,
				})
			}
		case ToolApprovalRequest:
			if cfg.AllowToolCalls {
				resp.Content = append(resp.Content, ToolApprovalRequestContent{
					ApprovalID:       p.ApprovalID,
					ToolCallID:       p.ToolCallID,
					ProviderMetadata: p.ProviderMetadata,
				})
			}
		case ToolResult:
			if cfg.AllowToolResults {
				resp.Content = append(resp.Content, ToolResultContent{
					ToolCallID:       p.ToolCallID,
					ToolName:         p.ToolName,
					Result:           p.Result,
					IsError:          p.IsError,
					ProviderMetadata: p.ProviderMetadata,
				})
			}
		case FileData:
			if cfg.AllowFiles {
				resp.Content = append(resp.Content, FileContent{MediaType: p.MediaType, Data: p.Data})
			}
		case SourceURL:
			if cfg.AllowSourceURLs {
				resp.Content = append(resp.Content, SourceContent{
					ID:               p.ID,
					URL:              p.URL,
					Title:            p.Title,
					ProviderMetadata: p.ProviderMetadata,
				})
			}
		case ErrorPart:
			if cfg.FailOnError {
				return nil, UpstreamError(500, fmt.Sprintf("%v", p.Error), nil)
			}
		case Finish:
			resp.Usage = p.Usage
			resp.FinishReason = p.FinishReason
			if p.ProviderMetadata != nil {
				resp.ProviderMetadata = p.ProviderMetadata
			}
			return resp, nil
		}
	}
}
