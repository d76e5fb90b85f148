package google

import (
	"strings"

	"github.com/octanelabs/aisdk"
)

// Model capability gates. Google keys several built-in tools to model
// generations rather than to API versions.
func isLatestAlias(modelID string) bool {
	switch modelID {
	case "gemini-flash-latest", "gemini-flash-lite-latest", "gemini-pro-latest":
		return true
	}
	return false
}

func isGemini2OrNewer(modelID string) bool {
	return strings.Contains(modelID, "gemini-2") ||
		strings.Contains(modelID, "gemini-3") ||
		isLatestAlias(modelID)
}

func supportsDynamicRetrieval(modelID string) bool {
	return strings.Contains(modelID, "gemini-1.5-flash") && !strings.Contains(modelID, "-8b")
}

func supportsFileSearch(modelID string) bool {
	return strings.Contains(modelID, "gemini-2.5")
}

// prepareTools maps the caller's tool list onto the Gemini tools and
// toolConfig fields. Function tools and Google's built-in tools cannot be
// mixed in one request; built-ins win and the function tools are dropped
// with a warning.
func prepareTools(tools []aisdk.Tool, toolChoice *aisdk.ToolChoice, modelID string) (googleTools []map[string]any, toolConfig map[string]any, warnings []aisdk.CallWarning) {
	var functionTools []aisdk.FunctionTool
	var providerTools []aisdk.ProviderDefinedTool
	for _, tool := range tools {
		switch t := tool.(type) {
		case aisdk.FunctionTool:
			functionTools = append(functionTools, t)
		case aisdk.ProviderDefinedTool:
			providerTools = append(providerTools, t)
		}
	}

	if len(functionTools) > 0 && len(providerTools) > 0 {
		warnings = append(warnings, aisdk.CallWarning{
			Type:    "other",
			Message: "Unsupported combination of function and provider-defined tools. Provider-defined tools take precedence.",
		})
		functionTools = nil
	}

	for _, tool := range providerTools {
		entry, warning := prepareProviderTool(tool, modelID)
		if entry != nil {
			googleTools = append(googleTools, entry)
		}
		if warning != nil {
			warnings = append(warnings, *warning)
		}
	}

	if len(functionTools) > 0 {
		declarations := make([]map[string]any, 0, len(functionTools))
		for _, tool := range functionTools {
			decl := map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
			}
			if params := convertJSONSchemaToOpenAPI(tool.InputSchema); params != nil {
				decl["parameters"] = params
			}
			declarations = append(declarations, decl)
		}
		googleTools = append(googleTools, map[string]any{"functionDeclarations": declarations})
	}

	if toolChoice != nil {
		switch toolChoice.Type {
		case "auto":
			toolConfig = functionCallingConfig("AUTO", nil)
		case "none":
			toolConfig = functionCallingConfig("NONE", nil)
		case "required":
			toolConfig = functionCallingConfig("ANY", nil)
		case "tool":
			toolConfig = functionCallingConfig("ANY", []string{toolChoice.ToolName})
		}
	}

	return googleTools, toolConfig, warnings
}

func functionCallingConfig(mode string, allowed []string) map[string]any {
	cfg := map[string]any{"mode": mode}
	if len(allowed) > 0 {
		cfg["allowedFunctionNames"] = allowed
	}
	return map[string]any{"functionCallingConfig": cfg}
}

func prepareProviderTool(tool aisdk.ProviderDefinedTool, modelID string) (map[string]any, *aisdk.CallWarning) {
	gemini2 := isGemini2OrNewer(modelID)
	gatedWarning := func(name string) *aisdk.CallWarning {
		w := aisdk.UnsupportedToolWarning(tool.ID,
			"The "+name+" tool is not supported with other Gemini models than Gemini 2.")
		return &w
	}

	switch tool.ID {
	case "google.google_search":
		if gemini2 {
			return map[string]any{"googleSearch": map[string]any{}}, nil
		}
		if supportsDynamicRetrieval(modelID) {
			mode, _ := tool.Args["mode"].(string)
			threshold, hasThreshold := tool.Args["dynamicThreshold"]
			if mode != "" || hasThreshold {
				cfg := map[string]any{}
				if mode != "" {
					cfg["mode"] = mode
				}
				if hasThreshold {
					cfg["dynamicThreshold"] = threshold
				}
				return map[string]any{
					"googleSearchRetrieval": map[string]any{"dynamicRetrievalConfig": cfg},
				}, nil
			}
		}
		return map[string]any{"googleSearchRetrieval": map[string]any{}}, nil

	case "google.enterprise_web_search":
		if !gemini2 {
			return nil, gatedWarning("enterprise web search")
		}
		return map[string]any{"enterpriseWebSearch": map[string]any{}}, nil

	case "google.url_context":
		if !gemini2 {
			return nil, gatedWarning("URL context")
		}
		return map[string]any{"urlContext": map[string]any{}}, nil

	case "google.code_execution":
		if !gemini2 {
			return nil, gatedWarning("code execution")
		}
		return map[string]any{"codeExecution": map[string]any{}}, nil

	case "google.google_maps":
		if !gemini2 {
			return nil, gatedWarning("Google Maps")
		}
		return map[string]any{"googleMaps": map[string]any{}}, nil

	case "google.file_search":
		if !supportsFileSearch(modelID) {
			w := aisdk.UnsupportedToolWarning(tool.ID,
				"The file search tool requires a Gemini 2.5 model.")
			return nil, &w
		}
		args := map[string]any{}
		for k, v := range tool.Args {
			args[k] = v
		}
		return map[string]any{"fileSearch": args}, nil

	case "google.vertex_rag_store":
		store := map[string]any{}
		if resources, ok := tool.Args["ragResources"].([]any); ok {
			var converted []map[string]any
			for _, r := range resources {
				m, ok := r.(map[string]any)
				if !ok {
					continue
				}
				entry := map[string]any{}
				if corpus, ok := anyKey(m, "ragCorpus", "rag_corpus").(string); ok {
					entry["rag_corpus"] = corpus
				}
				converted = append(converted, entry)
			}
			store["rag_resources"] = converted
		}
		if topK, ok := int64Key(tool.Args, "similarityTopK", "similarity_top_k"); ok {
			store["similarity_top_k"] = topK
		}
		return map[string]any{
			"retrieval": map[string]any{"vertex_rag_store": store},
		}, nil
	}

	w := aisdk.UnsupportedToolWarning(tool.ID, "")
	return nil, &w
}
