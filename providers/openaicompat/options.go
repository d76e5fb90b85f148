package openaicompat

import "github.com/octanelabs/aisdk"

// chatProviderOptions are the recognized keys of the chat provider-options
// scope. Unrecognized keys pass through as raw body extras.
type chatProviderOptions struct {
	user            string
	reasoningEffort string
	textVerbosity   string
}

var chatKnownKeys = map[string]struct{}{
	"user":            {},
	"reasoningEffort": {},
	"textVerbosity":   {},
}

// parseChatProviderOptions folds the given scopes in order; later scopes
// override earlier ones, extras come from the last scope.
func parseChatProviderOptions(opts aisdk.ProviderOptions, scopes []string) (chatProviderOptions, map[string]any) {
	var merged chatProviderOptions
	found := false
	for _, scope := range scopes {
		section, ok := opts[scope]
		if !ok {
			continue
		}
		found = true
		if v, ok := section["user"].(string); ok {
			merged.user = v
		}
		if v, ok := section["reasoningEffort"].(string); ok {
			merged.reasoningEffort = v
		}
		if v, ok := section["textVerbosity"].(string); ok {
			merged.textVerbosity = v
		}
	}
	if !found {
		return merged, nil
	}
	return merged, extrasFromLastScope(opts, scopes, chatKnownKeys)
}

type completionProviderOptions struct {
	echo      *bool
	logitBias map[string]any
	suffix    string
	user      string
}

var completionKnownKeys = map[string]struct{}{
	"echo":      {},
	"logitBias": {},
	"suffix":    {},
	"user":      {},
}

func parseCompletionProviderOptions(opts aisdk.ProviderOptions, scopes []string) (completionProviderOptions, map[string]any) {
	var merged completionProviderOptions
	found := false
	for _, scope := range scopes {
		section, ok := opts[scope]
		if !ok {
			continue
		}
		found = true
		if v, ok := section["echo"].(bool); ok {
			echo := v
			merged.echo = &echo
		}
		if v, ok := section["logitBias"].(map[string]any); ok {
			merged.logitBias = v
		}
		if v, ok := section["suffix"].(string); ok {
			merged.suffix = v
		}
		if v, ok := section["user"].(string); ok {
			merged.user = v
		}
	}
	if !found {
		return merged, nil
	}
	return merged, extrasFromLastScope(opts, scopes, completionKnownKeys)
}

func extrasFromLastScope(opts aisdk.ProviderOptions, scopes []string, known map[string]struct{}) map[string]any {
	if len(scopes) == 0 {
		return nil
	}
	section, ok := opts[scopes[len(scopes)-1]]
	if !ok {
		return nil
	}
	extras := map[string]any{}
	for k, v := range section {
		if _, skip := known[k]; skip {
			continue
		}
		extras[k] = v
	}
	return extras
}
