package openai

import (
	"context"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/eventmapper"
)

func (m *LanguageModel) Generate(ctx context.Context, options aisdk.CallOptions) (*aisdk.GenerateResponse, error) {
	options = m.applyDefaults(options)
	body, bctx, err := m.buildRequestBody(options)
	if err != nil {
		return nil, err
	}

	payload, respHeaders, err := m.cfg.HTTP.PostJSON(ctx,
		m.endpointURL(), m.callHeaders(options.Headers), body, m.cfg.TransportCfg)
	if err != nil {
		return nil, mapError(err)
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, aisdk.UpstreamError(500, "unexpected response shape", nil)
	}
	if errVal, present := obj["error"]; present && errVal != nil {
		return nil, aisdk.UpstreamError(400, wireErrorMessage(errVal), nil)
	}

	approvals := extractApprovalRequestIDs(options.Prompt, m.cfg.Scope)
	content, hasFunctionCalls := extractContent(obj, bctx.mapping, approvals)

	finishHint := ""
	if details := mapField(obj, "incomplete_details"); details != nil {
		finishHint = stringField(details, "reason")
	}

	inner := map[string]any{}
	responseID := stringField(obj, "id")
	serviceTier := stringField(obj, "service_tier")
	if nested := mapField(obj, "response"); nested != nil {
		if responseID == "" {
			responseID = stringField(nested, "id")
		}
		if serviceTier == "" {
			serviceTier = stringField(nested, "service_tier")
		}
	}
	if responseID != "" {
		inner["responseId"] = responseID
	}
	if serviceTier != "" {
		inner["serviceTier"] = serviceTier
	}

	return &aisdk.GenerateResponse{
		Content:          content,
		FinishReason:     mapFinishReason(finishHint, hasFunctionCalls),
		Usage:            parseUsage(obj),
		ProviderMetadata: aisdk.ProviderMetadata{"openai": inner},
		ResponseHeaders:  respHeaders,
		Warnings:         bctx.warnings,
		RequestBody:      body,
		ResponseBody:     obj,
	}, nil
}

func (m *LanguageModel) Stream(ctx context.Context, options aisdk.CallOptions) (*aisdk.StreamResponse, error) {
	options = m.applyDefaults(options)
	body, bctx, err := m.buildRequestBody(options)
	if err != nil {
		return nil, err
	}
	body["stream"] = true

	resp, err := m.cfg.HTTP.PostJSONStream(ctx,
		m.endpointURL(), m.streamHeaders(options.Headers), body, m.cfg.TransportCfg)
	if err != nil {
		return nil, mapError(err)
	}

	approvals := extractApprovalRequestIDs(options.Prompt, m.cfg.Scope)
	cfg := buildStreamConfig(bctx, approvals, options.IncludeRawChunks)

	return &aisdk.StreamResponse{
		Stream:          eventmapper.NewStream(resp.Body, newChunkParser(), cfg),
		RequestBody:     body,
		ResponseHeaders: resp.Headers,
	}, nil
}

func (m *LanguageModel) streamHeaders(overrides map[string]string) map[string]string {
	headers := m.callHeaders(overrides)
	headers["accept"] = "text/event-stream"
	return headers
}

// extractContent walks the output items of a non-streaming response.
func extractContent(obj map[string]any, mapping toolNameMapping, approvals map[string]string) ([]aisdk.Content, bool) {
	var content []aisdk.Content
	hasFunctionCalls := false

	output, _ := obj["output"].([]any)
	for _, raw := range output {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		itemID := stringField(item, "id")

		switch stringField(item, "type") {
		case "message":
			text := ""
			if parts, ok := item["content"].([]any); ok {
				for _, rawPart := range parts {
					part, ok := rawPart.(map[string]any)
					if !ok {
						continue
					}
					if stringField(part, "type") == "output_text" {
						text += stringField(part, "text")
					}
				}
			}
			if text != "" {
				content = append(content, aisdk.TextContent{Text: text})
			}

		case "function_call":
			hasFunctionCalls = true
			content = append(content, aisdk.ToolCallContent{
				ToolCallID:       stringField(item, "call_id"),
				ToolName:         mapping.toCustomName(stringField(item, "name")),
				Input:            stringField(item, "arguments"),
				ProviderMetadata: itemMeta(itemID),
			})

		case "reasoning":
			encrypted := item["encrypted_content"]
			summaries, _ := item["summary"].([]any)
			if len(summaries) == 0 {
				content = append(content, aisdk.ReasoningContent{
					ProviderMetadata: reasoningMeta(itemID, encrypted),
				})
				continue
			}
			for _, rawSummary := range summaries {
				summary, ok := rawSummary.(map[string]any)
				if !ok {
					continue
				}
				content = append(content, aisdk.ReasoningContent{
					Text:             stringField(summary, "text"),
					ProviderMetadata: reasoningMeta(itemID, encrypted),
				})
			}

		default:
			data, ok := providerToolDataFromOutputItem(item)
			if !ok {
				continue
			}
			pt := data.parts(mapping, approvals)
			content = append(content, aisdk.ToolCallContent{
				ToolCallID:       pt.toolCall.ToolCallID,
				ToolName:         pt.toolCall.ToolName,
				Input:            pt.toolCall.Input,
				ProviderExecuted: pt.toolCall.ProviderExecuted,
				ProviderMetadata: pt.toolCall.ProviderMetadata,
			})
			if pt.approval != nil {
				content = append(content, aisdk.ToolApprovalRequestContent{
					ApprovalID:       pt.approval.ApprovalID,
					ToolCallID:       pt.approval.ToolCallID,
					ProviderMetadata: pt.approval.ProviderMetadata,
				})
			}
			if pt.result != nil {
				content = append(content, aisdk.ToolResultContent{
					ToolCallID:       pt.result.ToolCallID,
					ToolName:         pt.result.ToolName,
					Result:           pt.result.Result,
					IsError:          pt.result.IsError,
					ProviderMetadata: pt.result.ProviderMetadata,
				})
			}
		}
	}
	return content, hasFunctionCalls
}

func parseUsage(obj map[string]any) aisdk.Usage {
	usage := mapField(obj, "usage")
	if usage == nil {
		return aisdk.Usage{}
	}
	tu := parseTokenUsage(usage)
	out := aisdk.Usage{
		InputTokens:  aisdk.Int64(tu.InputTokens),
		OutputTokens: aisdk.Int64(tu.OutputTokens),
		TotalTokens:  aisdk.Int64(tu.TotalTokens),
	}
	if tu.CacheReadTokens != nil {
		out.CachedInputTokens = tu.CacheReadTokens
	}
	if r, ok := reasoningTokens(usage); ok {
		out.ReasoningTokens = aisdk.Int64(r)
	}
	return out
}
