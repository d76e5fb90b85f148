package bedrock

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
)

// converted is the prompt rendered into Converse API shape.
type converted struct {
	system   []map[string]any
	messages []map[string]any
}

type blockKind int

const (
	blockSystem blockKind = iota
	blockUser
	blockAssistant
)

type block struct {
	kind     blockKind
	messages []aisdk.Message
}

// groupBlocks coalesces consecutive same-role messages. Tool messages join
// the surrounding user block because Converse carries tool results on the
// user turn.
func groupBlocks(prompt []aisdk.Message) []block {
	kindOf := func(m aisdk.Message) blockKind {
		switch m.(type) {
		case aisdk.SystemMessage:
			return blockSystem
		case aisdk.AssistantMessage:
			return blockAssistant
		default:
			return blockUser
		}
	}

	var blocks []block
	for _, msg := range prompt {
		k := kindOf(msg)
		if n := len(blocks); n > 0 && blocks[n-1].kind == k {
			blocks[n-1].messages = append(blocks[n-1].messages, msg)
			continue
		}
		blocks = append(blocks, block{kind: k, messages: []aisdk.Message{msg}})
	}
	return blocks
}

func convertPrompt(prompt []aisdk.Message) (converted, error) {
	blocks := groupBlocks(prompt)

	var out converted
	for bi, blk := range blocks {
		switch blk.kind {
		case blockSystem:
			if len(out.messages) > 0 {
				return converted{}, unsupported(
					"Multiple system message blocks separated by other roles are not supported by Amazon Bedrock")
			}
			for _, raw := range blk.messages {
				msg := raw.(aisdk.SystemMessage)
				if strings.TrimSpace(msg.Content) == "" {
					continue
				}
				out.system = append(out.system, map[string]any{"text": msg.Content})
				if hasCachePoint(msg.ProviderOptions) {
					out.system = append(out.system, cachePointBlock())
				}
			}

		case blockUser:
			content, err := convertUserBlock(blk.messages)
			if err != nil {
				return converted{}, err
			}
			if len(content) > 0 {
				out.messages = append(out.messages, map[string]any{
					"role":    "user",
					"content": content,
				})
			}

		case blockAssistant:
			lastBlock := bi+1 == len(blocks)
			content, err := convertAssistantBlock(blk.messages, lastBlock)
			if err != nil {
				return converted{}, err
			}
			if len(content) > 0 {
				out.messages = append(out.messages, map[string]any{
					"role":    "assistant",
					"content": content,
				})
			}
		}
	}
	return out, nil
}

func convertUserBlock(messages []aisdk.Message) ([]map[string]any, error) {
	var content []map[string]any
	for _, raw := range messages {
		switch msg := raw.(type) {
		case aisdk.UserMessage:
			for _, part := range msg.Content {
				switch p := part.(type) {
				case aisdk.TextPart:
					if p.Text != "" {
						content = append(content, map[string]any{"text": p.Text})
					}
				case aisdk.FilePart:
					entry, err := fileBlock(p, len(content))
					if err != nil {
						return nil, err
					}
					content = append(content, entry)
				}
			}
			if hasCachePoint(msg.ProviderOptions) {
				content = append(content, cachePointBlock())
			}
		case aisdk.ToolMessage:
			for _, part := range msg.Content {
				res, ok := part.(aisdk.ToolResultPart)
				if !ok {
					continue
				}
				entry, err := toolResultBlock(res)
				if err != nil {
					return nil, err
				}
				content = append(content, entry)
			}
			if hasCachePoint(msg.ProviderOptions) {
				content = append(content, cachePointBlock())
			}
		}
	}
	return content, nil
}

func convertAssistantBlock(messages []aisdk.Message, lastBlock bool) ([]map[string]any, error) {
	var content []map[string]any
	for mi, raw := range messages {
		msg, ok := raw.(aisdk.AssistantMessage)
		if !ok {
			continue
		}
		for pi, part := range msg.Content {
			// Bedrock rejects trailing whitespace on the final prefill part.
			trailing := lastBlock && mi+1 == len(messages) && pi+1 == len(msg.Content)

			switch p := part.(type) {
			case aisdk.TextPart:
				text := p.Text
				if trailing {
					text = strings.TrimSpace(text)
				}
				if strings.TrimSpace(text) == "" {
					continue
				}
				content = append(content, map[string]any{"text": text})

			case aisdk.ReasoningPart:
				text := p.Text
				if trailing {
					text = strings.TrimSpace(text)
				}
				signature, redacted := reasoningMetadata(p.ProviderOptions)
				switch {
				case signature != "":
					content = append(content, map[string]any{
						"reasoningContent": map[string]any{
							"reasoningText": map[string]any{
								"text":      text,
								"signature": signature,
							},
						},
					})
				case redacted != "":
					content = append(content, map[string]any{
						"reasoningContent": map[string]any{
							"redactedReasoning": map[string]any{"data": redacted},
						},
					})
				case text != "":
					content = append(content, map[string]any{
						"reasoningContent": map[string]any{
							"reasoningText": map[string]any{"text": text},
						},
					})
				}

			case aisdk.ToolCallPart:
				var input any
				if trimmed := strings.TrimSpace(p.Input); trimmed != "" {
					if parsed, ok := jsonx.Parse(trimmed); ok {
						input = parsed
					} else {
						input = p.Input
					}
				}
				content = append(content, map[string]any{
					"toolUse": map[string]any{
						"toolUseId": p.ToolCallID,
						"name":      p.ToolName,
						"input":     input,
					},
				})

			case aisdk.FilePart:
				return nil, unsupported(
					"Assistant file content is not supported when pre-filling Bedrock conversations")
			}
		}
		if hasCachePoint(msg.ProviderOptions) {
			content = append(content, cachePointBlock())
		}
	}
	return content, nil
}

func fileBlock(p aisdk.FilePart, position int) (map[string]any, error) {
	if p.Data.IsURL() {
		return nil, unsupported("Amazon Bedrock does not support file content by URL references")
	}
	if p.MediaType == "" {
		return nil, unsupported("File message parts require a MIME type for Amazon Bedrock")
	}
	data := dataToBase64(p.Data)

	if strings.HasPrefix(p.MediaType, "image/") {
		format, err := imageFormat(p.MediaType)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"image": map[string]any{
				"format": format,
				"source": map[string]any{"bytes": data},
			},
		}, nil
	}

	format, err := documentFormat(p.MediaType)
	if err != nil {
		return nil, err
	}
	name := p.Filename
	if name == "" {
		name = fmt.Sprintf("document-%d", position+1)
	}
	return map[string]any{
		"document": map[string]any{
			"format": format,
			"name":   name,
			"source": map[string]any{"bytes": data},
		},
	}, nil
}

func toolResultBlock(part aisdk.ToolResultPart) (map[string]any, error) {
	var content []map[string]any
	switch part.Output.Kind {
	case aisdk.ToolResultContentKind:
		for _, item := range part.Output.Content {
			if item.MediaType != "" {
				if !strings.HasPrefix(item.MediaType, "image/") {
					return nil, unsupported("Unsupported media type in tool result: " + item.MediaType)
				}
				format, err := imageFormat(item.MediaType)
				if err != nil {
					return nil, err
				}
				content = append(content, map[string]any{
					"image": map[string]any{
						"format": format,
						"source": map[string]any{"bytes": item.Data},
					},
				})
				continue
			}
			content = append(content, map[string]any{"text": item.Text})
		}
	case aisdk.ToolResultJSON, aisdk.ToolResultErrorJSON:
		content = append(content, map[string]any{"text": jsonString(part.Output.JSON)})
	default:
		content = append(content, map[string]any{"text": part.Output.Text})
	}
	return map[string]any{
		"toolResult": map[string]any{
			"toolUseId": part.ToolCallID,
			"content":   content,
		},
	}, nil
}

func dataToBase64(d aisdk.DataContent) string {
	if d.Base64 != "" {
		return d.Base64
	}
	return base64.StdEncoding.EncodeToString(d.Bytes)
}

func imageFormat(mime string) (string, error) {
	switch mime {
	case "image/jpeg":
		return "jpeg", nil
	case "image/png":
		return "png", nil
	case "image/gif":
		return "gif", nil
	case "image/webp":
		return "webp", nil
	}
	return "", unsupported("Unsupported image MIME type for Amazon Bedrock: " + mime)
}

func documentFormat(mime string) (string, error) {
	switch mime {
	case "application/pdf":
		return "pdf", nil
	case "text/csv":
		return "csv", nil
	case "application/msword":
		return "doc", nil
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx", nil
	case "application/vnd.ms-excel":
		return "xls", nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx", nil
	case "text/html":
		return "html", nil
	case "text/plain":
		return "txt", nil
	case "text/markdown":
		return "md", nil
	}
	return "", unsupported("Unsupported document MIME type for Amazon Bedrock: " + mime)
}

func unsupported(message string) error {
	return aisdk.UpstreamError(400, message, nil)
}
