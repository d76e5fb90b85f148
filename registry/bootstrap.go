package registry

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/transport"
)

// ProviderBootstrapHeaders is the result of scanning provider definition
// headers during bootstrap. Header keys are lowercased.
type ProviderBootstrapHeaders struct {
	Headers map[string]string
	// DefaultOptions is the provider-scoped section of an embedded options
	// header, if one was present.
	DefaultOptions aisdk.ProviderOptions
	// RequestDefaults is the full parsed options document.
	RequestDefaults any
}

// FilterProviderBootstrapHeaders consumes internal SDK headers as option
// defaults and drops reserved names from the remainder.
func FilterProviderBootstrapHeaders(headers map[string]string, providerScope string, reserved []string) ProviderBootstrapHeaders {
	blocked := make(map[string]struct{}, len(reserved))
	for _, name := range reserved {
		blocked[strings.ToLower(name)] = struct{}{}
	}

	out := ProviderBootstrapHeaders{Headers: map[string]string{}}
	for k, v := range headers {
		if aisdk.IsInternalSDKHeader(k) {
			if out.RequestDefaults == nil {
				var doc map[string]any
				if err := json.Unmarshal([]byte(v), &doc); err == nil {
					out.RequestDefaults = doc
					if opts, ok := aisdk.ProviderDefaultsFromJSON(providerScope, doc); ok {
						out.DefaultOptions = opts
					}
				}
			}
			continue
		}
		key := strings.ToLower(k)
		if _, hit := blocked[key]; hit {
			continue
		}
		out.Headers[key] = v
	}
	return out
}

// ApplyStreamIdleTimeout applies a per-provider idle-timeout override to a
// transport config.
func ApplyStreamIdleTimeout(def *catalog.ProviderDefinition, cfg *transport.Config) {
	if def.StreamIdleTimeoutMs > 0 {
		cfg.IdleReadTimeout = time.Duration(def.StreamIdleTimeoutMs) * time.Millisecond
	}
}

// BuildProviderTransportConfig starts from transport defaults and layers the
// provider's idle-timeout override on top.
func BuildProviderTransportConfig(def *catalog.ProviderDefinition) transport.Config {
	cfg := transport.DefaultConfig()
	ApplyStreamIdleTimeout(def, &cfg)
	return cfg
}

// NormalizeProviderID slugs a provider id: lowercase alphanumerics with
// single dashes for everything else.
func NormalizeProviderID(name string) string {
	var b strings.Builder
	lastDash := false
	for _, ch := range strings.TrimSpace(name) {
		switch {
		case ch >= 'a' && ch <= 'z' || ch >= '0' && ch <= '9':
			b.WriteRune(ch)
			lastDash = false
		case ch >= 'A' && ch <= 'Z':
			b.WriteRune(ch + ('a' - 'A'))
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// ReasoningScopeContext is the input to a registration's ReasoningScope hook.
type ReasoningScopeContext struct {
	ProviderID string
	SdkType    catalog.SdkType
	ModelID    string
	BaseURL    string
}

func (c ReasoningScopeContext) baseURLHost() string {
	value := strings.TrimSpace(c.BaseURL)
	if value == "" {
		return ""
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

// ReasoningScopeAliases resolves the provider-options scopes under which
// reasoning metadata should be stored. Nil means no adapter claims the
// provider, so reasoning metadata is not persisted.
func ReasoningScopeAliases(providerID string, sdkType catalog.SdkType, modelID, baseURL string) []string {
	ctx := ReasoningScopeContext{
		ProviderID: providerID,
		SdkType:    sdkType,
		ModelID:    modelID,
		BaseURL:    baseURL,
	}

	var aliases []string
	seen := map[string]struct{}{}
	push := func(value string) {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return
		}
		lower := strings.ToLower(trimmed)
		if _, dup := seen[lower]; dup {
			return
		}
		seen[lower] = struct{}{}
		aliases = append(aliases, trimmed)
	}

	handled := false
	for _, reg := range all() {
		if !strings.EqualFold(reg.ID, providerID) && reg.SdkType != sdkType {
			continue
		}
		if reg.ReasoningScope == nil {
			continue
		}
		if extra := reg.ReasoningScope(ctx); extra != nil {
			for _, alias := range extra {
				push(alias)
			}
			handled = true
		}
	}
	if !handled {
		return nil
	}

	push(providerID)
	push(NormalizeProviderID(providerID))
	push(ctx.baseURLHost())
	return aliases
}

func optionsFromScope(aliases []string, scope map[string]any) aisdk.ProviderOptions {
	if len(aliases) == 0 || len(scope) == 0 {
		return nil
	}
	opts := aisdk.ProviderOptions{}
	for _, alias := range aliases {
		section := make(map[string]any, len(scope))
		for k, v := range scope {
			section[k] = v
		}
		opts[alias] = section
	}
	return opts
}

// ReasoningStreamOptions builds the provider options carrying streamed
// reasoning metadata (signature or redacted data) under every scope alias.
func ReasoningStreamOptions(providerID string, sdkType catalog.SdkType, modelID, baseURL, signature, redactedData string) aisdk.ProviderOptions {
	aliases := ReasoningScopeAliases(providerID, sdkType, modelID, baseURL)
	scope := map[string]any{}
	if signature != "" {
		scope["signature"] = signature
	}
	if redactedData != "" {
		scope["redactedData"] = redactedData
	}
	return optionsFromScope(aliases, scope)
}

// PersistedReasoningOptions builds the provider options carrying reasoning
// text persisted on assistant messages.
func PersistedReasoningOptions(providerID string, sdkType catalog.SdkType, modelID, baseURL, text, signature string) aisdk.ProviderOptions {
	aliases := ReasoningScopeAliases(providerID, sdkType, modelID, baseURL)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	scope := map[string]any{"persistedReasoningText": text}
	if signature != "" {
		scope["persistedReasoningSignature"] = signature
	}
	return optionsFromScope(aliases, scope)
}
