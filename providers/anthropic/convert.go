package anthropic

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
)

// converted is the prompt rendered into Messages API shape.
type converted struct {
	system   []map[string]any
	messages []map[string]any
	betas    map[string]struct{}
	warnings []aisdk.CallWarning
	// missingReasoning is set when thinking state should have been carried
	// on the latest assistant turn but was not.
	missingReasoning bool
}

// cacheControl reads the prompt-caching directive. It always lives under the
// literal "anthropic" scope, independent of the configured provider id.
func cacheControl(opts aisdk.ProviderOptions) any {
	section, ok := opts["anthropic"]
	if !ok {
		return nil
	}
	if v, ok := section["cacheControl"]; ok {
		return v
	}
	if v, ok := section["cache_control"]; ok {
		return v
	}
	return nil
}

func dataToBase64(d aisdk.DataContent) string {
	if d.Base64 != "" {
		return d.Base64
	}
	return base64.StdEncoding.EncodeToString(d.Bytes)
}

func dataToText(d aisdk.DataContent) string {
	if d.Base64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(d.Base64)
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	return string(d.Bytes)
}

// reasoningScope finds the anthropic section of per-part options, accepting
// aliased scope names so persisted reasoning survives custom provider ids.
func reasoningScope(opts aisdk.ProviderOptions) map[string]any {
	if section, ok := opts["anthropic"]; ok {
		return section
	}
	for key, section := range opts {
		if strings.Contains(strings.ToLower(key), "anthropic") {
			return section
		}
	}
	return nil
}

func reasoningMetadata(opts aisdk.ProviderOptions) (signature, redacted string) {
	pick := func(section map[string]any) (string, string) {
		sig, _ := section["signature"].(string)
		red, _ := section["redactedData"].(string)
		if red == "" {
			red, _ = section["redacted_data"].(string)
		}
		return sig, red
	}
	if section, ok := opts["anthropic"]; ok {
		if sig, red := pick(section); sig != "" || red != "" {
			return sig, red
		}
	}
	for key, section := range opts {
		if strings.Contains(strings.ToLower(key), "anthropic") {
			if sig, red := pick(section); sig != "" || red != "" {
				return sig, red
			}
		}
	}
	for _, section := range opts {
		if sig, red := pick(section); sig != "" || red != "" {
			return sig, red
		}
	}
	return "", ""
}

// persistedReasoning recovers thinking text stored on the message itself by
// an earlier turn, used when no reasoning parts survived the round trip.
func persistedReasoning(opts aisdk.ProviderOptions) (text, signature string, ok bool) {
	section := reasoningScope(opts)
	if section == nil {
		return "", "", false
	}
	text, _ = section["persistedReasoningText"].(string)
	if text == "" {
		text, _ = section["persisted_reasoning_text"].(string)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	signature, _ = section["persistedReasoningSignature"].(string)
	if signature == "" {
		signature, _ = section["persisted_reasoning_signature"].(string)
	}
	return text, signature, true
}

func withCacheControl(obj map[string]any, cc any) map[string]any {
	if cc != nil {
		obj["cache_control"] = cc
	}
	return obj
}

func imageSource(data aisdk.DataContent, mediaType string) map[string]any {
	if data.IsURL() {
		return map[string]any{"type": "url", "url": data.URL}
	}
	if mediaType == "image/*" {
		mediaType = "image/jpeg"
	}
	return map[string]any{
		"type":       "base64",
		"media_type": mediaType,
		"data":       dataToBase64(data),
	}
}

func (m *LanguageModel) convertPrompt(prompt []aisdk.Message, provOpts providerOptions) converted {
	out := converted{betas: map[string]struct{}{}}

	// Coalesce consecutive same-role messages so multi-message turns become
	// one Messages API entry.
	type block struct {
		role int // 0 system, 1 assistant, 2 user, 3 tool
		msgs []aisdk.Message
	}
	var blocks []block
	for _, msg := range prompt {
		var role int
		switch msg.(type) {
		case aisdk.SystemMessage:
			role = 0
		case aisdk.AssistantMessage:
			role = 1
		case aisdk.UserMessage:
			role = 2
		case aisdk.ToolMessage:
			role = 3
		default:
			continue
		}
		if n := len(blocks); n > 0 && blocks[n-1].role == role {
			blocks[n-1].msgs = append(blocks[n-1].msgs, msg)
			continue
		}
		blocks = append(blocks, block{role: role, msgs: []aisdk.Message{msg}})
	}

	for _, blk := range blocks {
		switch blk.role {
		case 0:
			for _, msg := range blk.msgs {
				sys := msg.(aisdk.SystemMessage)
				if sys.Content == "" {
					continue
				}
				out.system = append(out.system, withCacheControl(map[string]any{
					"type": "text",
					"text": sys.Content,
				}, cacheControl(sys.ProviderOptions)))
			}
		case 2:
			content := m.convertUserBlock(blk.msgs, &out)
			if len(content) > 0 {
				out.messages = append(out.messages, map[string]any{"role": "user", "content": content})
			}
		case 1:
			content := m.convertAssistantBlock(blk.msgs, provOpts, &out)
			if len(content) > 0 {
				out.messages = append(out.messages, map[string]any{"role": "assistant", "content": content})
			}
		case 3:
			m.convertToolBlock(blk.msgs, &out)
		}
	}

	if provOpts.thinking != nil && provOpts.thinking.enabled {
		m.reorderReasoning(&out)
	}
	return out
}

func (m *LanguageModel) convertUserBlock(msgs []aisdk.Message, out *converted) []map[string]any {
	var content []map[string]any
	for _, raw := range msgs {
		msg := raw.(aisdk.UserMessage)
		for idx, part := range msg.Content {
			isLast := idx+1 == len(msg.Content)
			var partCC any
			switch p := part.(type) {
			case aisdk.TextPart:
				partCC = cacheControl(p.ProviderOptions)
			case aisdk.FilePart:
				partCC = cacheControl(p.ProviderOptions)
			}
			if partCC == nil && isLast {
				partCC = cacheControl(msg.ProviderOptions)
			}

			switch p := part.(type) {
			case aisdk.TextPart:
				content = append(content, withCacheControl(map[string]any{
					"type": "text",
					"text": p.Text,
				}, partCC))
			case aisdk.FilePart:
				entry, ok := m.convertFilePart(p, partCC, out)
				if ok {
					content = append(content, entry)
				}
			}
		}
	}
	return content
}

func (m *LanguageModel) convertFilePart(p aisdk.FilePart, cc any, out *converted) (map[string]any, bool) {
	switch {
	case strings.HasPrefix(p.MediaType, "image/"):
		return withCacheControl(map[string]any{
			"type":   "image",
			"source": imageSource(p.Data, p.MediaType),
		}, cc), true

	case p.MediaType == "application/pdf":
		out.betas["pdfs-2024-09-25"] = struct{}{}
		fopts := parseFilePartOptions(p.ProviderOptions, m.scope)
		var source map[string]any
		if p.Data.IsURL() {
			source = map[string]any{"type": "url", "url": p.Data.URL}
		} else {
			source = map[string]any{
				"type":       "base64",
				"media_type": "application/pdf",
				"data":       dataToBase64(p.Data),
			}
		}
		entry := withCacheControl(map[string]any{
			"type":   "document",
			"source": source,
		}, cc)
		if title := firstNonEmpty(fopts.title, p.Filename); title != "" {
			entry["title"] = title
		}
		if fopts.context != "" {
			entry["context"] = fopts.context
		}
		if fopts.citations {
			entry["citations"] = map[string]any{"enabled": true}
		}
		return entry, true

	case p.MediaType == "text/plain":
		fopts := parseFilePartOptions(p.ProviderOptions, m.scope)
		var source map[string]any
		if p.Data.IsURL() {
			source = map[string]any{"type": "url", "url": p.Data.URL}
		} else {
			source = map[string]any{
				"type":       "text",
				"media_type": "text/plain",
				"data":       dataToText(p.Data),
			}
		}
		entry := withCacheControl(map[string]any{
			"type":   "document",
			"source": source,
		}, cc)
		if title := firstNonEmpty(fopts.title, p.Filename); title != "" {
			entry["title"] = title
		}
		if fopts.context != "" {
			entry["context"] = fopts.context
		}
		return entry, true

	default:
		out.warnings = append(out.warnings, aisdk.CallWarning{
			Type:    "other",
			Message: fmt.Sprintf("unsupported media type: %s", p.MediaType),
		})
		return nil, false
	}
}

func (m *LanguageModel) convertAssistantBlock(msgs []aisdk.Message, provOpts providerOptions, out *converted) []map[string]any {
	var content []map[string]any
	for _, raw := range msgs {
		msg := raw.(aisdk.AssistantMessage)
		var reasoning []map[string]any
		var other []map[string]any

		sendReasoning := provOpts.sendReasoning == nil || *provOpts.sendReasoning

		for idx, part := range msg.Content {
			isLast := idx+1 == len(msg.Content)
			var partCC any
			switch p := part.(type) {
			case aisdk.TextPart:
				partCC = cacheControl(p.ProviderOptions)
			case aisdk.ReasoningPart:
				partCC = cacheControl(p.ProviderOptions)
			case aisdk.FilePart:
				partCC = cacheControl(p.ProviderOptions)
			case aisdk.ToolCallPart:
				partCC = cacheControl(p.ProviderOptions)
			case aisdk.ToolResultPart:
				partCC = cacheControl(p.ProviderOptions)
			}
			if partCC == nil && isLast {
				partCC = cacheControl(msg.ProviderOptions)
			}

			switch p := part.(type) {
			case aisdk.TextPart:
				other = append(other, withCacheControl(map[string]any{
					"type": "text",
					"text": p.Text,
				}, partCC))

			case aisdk.ReasoningPart:
				if !sendReasoning {
					continue
				}
				signature, redacted := reasoningMetadata(p.ProviderOptions)
				if redacted != "" {
					entry := withCacheControl(map[string]any{
						"type": "redacted_thinking",
						"data": redacted,
					}, partCC)
					if signature != "" {
						entry["signature"] = signature
					}
					reasoning = append(reasoning, entry)
					continue
				}
				entry := withCacheControl(map[string]any{
					"type":     "thinking",
					"thinking": p.Text,
				}, partCC)
				if signature != "" {
					entry["signature"] = signature
				}
				reasoning = append(reasoning, entry)

			case aisdk.FilePart:
				if strings.HasPrefix(p.MediaType, "image/") {
					other = append(other, withCacheControl(map[string]any{
						"type":   "image",
						"source": imageSource(p.Data, p.MediaType),
					}, partCC))
				}

			case aisdk.ToolCallPart:
				input, ok := jsonx.Parse(p.Input)
				if !ok {
					input = map[string]any{}
				}
				other = append(other, withCacheControl(map[string]any{
					"type":  "tool_use",
					"id":    p.ToolCallID,
					"name":  p.ToolName,
					"input": input,
				}, partCC))
			}
		}

		if len(reasoning) > 0 {
			content = append(content, reasoning...)
		} else if text, signature, ok := persistedReasoning(msg.ProviderOptions); ok {
			entry := map[string]any{"type": "thinking", "thinking": text}
			if signature != "" {
				entry["signature"] = signature
			}
			content = append([]map[string]any{entry}, content...)
		} else if len(msg.ProviderOptions) > 0 {
			out.missingReasoning = true
		}
		content = append(content, other...)
	}
	return content
}

func (m *LanguageModel) convertToolBlock(msgs []aisdk.Message, out *converted) {
	for _, raw := range msgs {
		msg := raw.(aisdk.ToolMessage)
		var entries []map[string]any
		for _, part := range msg.Content {
			result, ok := part.(aisdk.ToolResultPart)
			if !ok {
				continue
			}
			entry := map[string]any{
				"type":        "tool_result",
				"tool_use_id": result.ToolCallID,
				"content":     toolResultContent(result.Output),
			}
			switch result.Output.Kind {
			case aisdk.ToolResultErrorText, aisdk.ToolResultErrorJSON:
				entry["is_error"] = true
			}
			entries = append(entries, entry)
		}
		if len(entries) == 0 {
			continue
		}
		// Tool results belong in a user turn; fold into the previous user
		// message when it holds only tool results.
		if n := len(out.messages); n > 0 && out.messages[n-1]["role"] == "user" {
			if existing, ok := out.messages[n-1]["content"].([]map[string]any); ok {
				allResults := true
				for _, e := range existing {
					if e["type"] != "tool_result" {
						allResults = false
						break
					}
				}
				if allResults {
					out.messages[n-1]["content"] = append(existing, entries...)
					continue
				}
			}
		}
		out.messages = append(out.messages, map[string]any{"role": "user", "content": entries})
	}
}

func toolResultContent(output aisdk.ToolResultOutput) any {
	switch output.Kind {
	case aisdk.ToolResultText, aisdk.ToolResultErrorText:
		return output.Text
	case aisdk.ToolResultJSON, aisdk.ToolResultErrorJSON:
		return output.JSON
	case aisdk.ToolResultContentKind:
		items := make([]map[string]any, 0, len(output.Content))
		for _, item := range output.Content {
			if item.Text != "" {
				items = append(items, map[string]any{"type": "text", "text": item.Text})
				continue
			}
			items = append(items, map[string]any{
				"type": "image",
				"source": map[string]any{
					"type":       "base64",
					"media_type": item.MediaType,
					"data":       item.Data,
				},
			})
		}
		return items
	}
	return nil
}

// reorderReasoning moves thinking entries to the front of the latest
// assistant message; the API requires thinking blocks to lead the turn.
func (m *LanguageModel) reorderReasoning(out *converted) {
	for i := len(out.messages) - 1; i >= 0; i-- {
		if out.messages[i]["role"] != "assistant" {
			continue
		}
		content, ok := out.messages[i]["content"].([]map[string]any)
		if !ok {
			out.missingReasoning = true
			return
		}
		var thinking, rest []map[string]any
		for _, entry := range content {
			switch entry["type"] {
			case "thinking", "redacted_thinking":
				thinking = append(thinking, entry)
			default:
				rest = append(rest, entry)
			}
		}
		if len(thinking) == 0 {
			out.missingReasoning = true
			return
		}
		out.messages[i]["content"] = append(thinking, rest...)
		return
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
