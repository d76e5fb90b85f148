package anthropic

import (
	"github.com/octanelabs/aisdk"
)

// providerToolSpec maps one provider-defined tool id to its wire type, its
// fixed tool name and the beta flag that unlocks it.
type providerToolSpec struct {
	wireType string
	name     string
	beta     string
	// argKeys maps caller option keys to wire keys copied verbatim.
	argKeys map[string]string
}

var providerTools = map[string]providerToolSpec{
	"anthropic.code_execution_20250522": {
		wireType: "code_execution_20250522", name: "code_execution",
		beta: "code-execution-2025-05-22",
	},
	"anthropic.code_execution_20250825": {
		wireType: "code_execution_20250825", name: "code_execution",
		beta: "code-execution-2025-08-25",
	},
	"anthropic.computer_20250124": {
		wireType: "computer_20250124", name: "computer",
		beta: "computer-use-2025-01-24",
		argKeys: map[string]string{
			"displayWidthPx":  "display_width_px",
			"displayHeightPx": "display_height_px",
			"displayNumber":   "display_number",
		},
	},
	"anthropic.computer_20241022": {
		wireType: "computer_20241022", name: "computer",
		beta: "computer-use-2024-10-22",
		argKeys: map[string]string{
			"displayWidthPx":  "display_width_px",
			"displayHeightPx": "display_height_px",
			"displayNumber":   "display_number",
		},
	},
	"anthropic.text_editor_20250124": {
		wireType: "text_editor_20250124", name: "str_replace_editor",
		beta: "computer-use-2025-01-24",
	},
	"anthropic.text_editor_20241022": {
		wireType: "text_editor_20241022", name: "str_replace_editor",
		beta: "computer-use-2024-10-22",
	},
	"anthropic.text_editor_20250429": {
		wireType: "text_editor_20250429", name: "str_replace_based_edit_tool",
		beta: "computer-use-2025-01-24",
	},
	"anthropic.text_editor_20250728": {
		wireType: "text_editor_20250728", name: "str_replace_based_edit_tool",
		argKeys:  map[string]string{"maxCharacters": "max_characters"},
	},
	"anthropic.bash_20250124": {
		wireType: "bash_20250124", name: "bash",
		beta: "computer-use-2025-01-24",
	},
	"anthropic.bash_20241022": {
		wireType: "bash_20241022", name: "bash",
		beta: "computer-use-2024-10-22",
	},
	"anthropic.memory_20250818": {
		wireType: "memory_20250818", name: "memory",
		beta: "context-management-2025-06-27",
	},
	"anthropic.web_fetch_20250910": {
		wireType: "web_fetch_20250910", name: "web_fetch",
		beta: "web-fetch-2025-09-10",
		argKeys: map[string]string{
			"maxUses":          "max_uses",
			"allowedDomains":   "allowed_domains",
			"blockedDomains":   "blocked_domains",
			"citations":        "citations",
			"maxContentTokens": "max_content_tokens",
		},
	},
	"anthropic.web_search_20250305": {
		wireType: "web_search_20250305", name: "web_search",
		argKeys: map[string]string{
			"maxUses":        "max_uses",
			"allowedDomains": "allowed_domains",
			"blockedDomains": "blocked_domains",
			"userLocation":   "user_location",
		},
	},
	"anthropic.tool_search_regex_20251119": {
		wireType: "tool_search_tool_regex_20251119", name: "tool_search_tool_regex",
		beta: "advanced-tool-use-2025-11-20",
	},
	"anthropic.tool_search_bm25_20251119": {
		wireType: "tool_search_tool_bm25_20251119", name: "tool_search_tool_bm25",
		beta: "advanced-tool-use-2025-11-20",
	},
}

func functionToolEntry(t aisdk.FunctionTool) map[string]any {
	// Anthropic function tools carry no "type" field.
	entry := map[string]any{
		"name":         t.Name,
		"input_schema": t.InputSchema,
	}
	if t.Description != "" {
		entry["description"] = t.Description
	}
	return entry
}

// prepareTools renders the tools array, collecting beta flags and warnings
// for provider tools this adapter does not know.
func prepareTools(tools []aisdk.Tool, betas map[string]struct{}) ([]map[string]any, []aisdk.CallWarning) {
	var out []map[string]any
	var warnings []aisdk.CallWarning
	for _, tool := range tools {
		switch t := tool.(type) {
		case aisdk.FunctionTool:
			out = append(out, functionToolEntry(t))
		case aisdk.ProviderDefinedTool:
			spec, ok := providerTools[t.ID]
			if !ok {
				warnings = append(warnings, aisdk.UnsupportedToolWarning(t.ID, ""))
				continue
			}
			if spec.beta != "" {
				betas[spec.beta] = struct{}{}
			}
			entry := map[string]any{"type": spec.wireType, "name": spec.name}
			for optKey, wireKey := range spec.argKeys {
				if v, ok := t.Args[optKey]; ok {
					entry[wireKey] = v
				}
			}
			out = append(out, entry)
		}
	}
	return out, warnings
}
