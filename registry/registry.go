// Package registry binds catalog sdk types to their model constructors.
// Provider packages register themselves in init; importing
// providers/all pulls in every built-in adapter.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/catalog"
	"github.com/octanelabs/aisdk/transport"
)

// Credentials carries the resolved authentication material for one call.
// Exactly one field is typically set.
type Credentials struct {
	APIKey string
	Bearer string
}

func (c Credentials) Empty() bool { return c.APIKey == "" && c.Bearer == "" }

// ModelConfig is everything a constructor needs to build a model handle.
type ModelConfig struct {
	Definition  *catalog.ProviderDefinition
	ModelID     string
	Credentials Credentials
	// Headers are caller-supplied bootstrap headers, already filtered of
	// reserved and internal names.
	Headers         map[string]string
	ProviderOptions aisdk.ProviderOptions
	Transport       transport.HttpTransport
	TransportConfig transport.Config
}

// Registration is one sdk type's set of constructors. Nil constructors mean
// the capability is unsupported.
type Registration struct {
	// ID is the canonical provider id for this adapter (e.g. "anthropic").
	ID                string
	SdkType           catalog.SdkType
	NewLanguageModel  func(cfg ModelConfig) (aisdk.LanguageModel, error)
	NewEmbeddingModel func(cfg ModelConfig) (aisdk.EmbeddingModel, error)
	NewImageModel     func(cfg ModelConfig) (aisdk.ImageModel, error)
	// Matches claims definitions whose sdk type is not registered. Nil
	// means exact sdk-type matching only.
	Matches func(def *catalog.ProviderDefinition) bool
	// ReasoningScope resolves extra provider-options scope aliases for
	// reasoning metadata. Nil means the adapter does not persist reasoning.
	ReasoningScope func(ctx ReasoningScopeContext) []string
}

type registry struct {
	mu      sync.RWMutex
	entries map[catalog.SdkType]Registration
}

var defaultRegistry = &registry{entries: map[catalog.SdkType]Registration{}}

func (r *registry) register(reg Registration) error {
	if reg.SdkType == "" {
		return fmt.Errorf("sdk type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[reg.SdkType]; exists {
		return fmt.Errorf("sdk type %q already registered", reg.SdkType)
	}
	r.entries[reg.SdkType] = reg
	return nil
}

func (r *registry) find(t catalog.SdkType) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[t]
	return reg, ok
}

// Register installs a registration. Provider packages call this from init,
// so duplicates panic rather than surface at call time.
func Register(reg Registration) {
	if err := defaultRegistry.register(reg); err != nil {
		panic(err)
	}
}

// Find returns the registration for an sdk type.
func Find(t catalog.SdkType) (Registration, bool) {
	return defaultRegistry.find(t)
}

func all() []Registration {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()
	out := make([]Registration, 0, len(defaultRegistry.entries))
	for _, reg := range defaultRegistry.entries {
		out = append(out, reg)
	}
	return out
}

// SdkTypeFromID resolves a provider id to its sdk type using the registry
// as the single source of truth.
func SdkTypeFromID(id string) (catalog.SdkType, bool) {
	needle := strings.TrimSpace(id)
	if needle == "" {
		return "", false
	}
	for _, reg := range all() {
		if strings.EqualFold(reg.ID, needle) {
			return reg.SdkType, true
		}
	}
	return "", false
}

// FindForDefinition resolves the registration for a definition, falling
// back to Matches predicates when the sdk type itself is not registered.
func FindForDefinition(def *catalog.ProviderDefinition) (Registration, bool) {
	if reg, ok := Find(def.SdkType); ok {
		return reg, true
	}
	for _, reg := range all() {
		if reg.Matches != nil && reg.Matches(def) {
			return reg, true
		}
	}
	return Registration{}, false
}

// NewLanguageModel builds a language model from a provider definition.
func NewLanguageModel(cfg ModelConfig) (aisdk.LanguageModel, error) {
	if cfg.Definition == nil {
		return nil, aisdk.InvalidArgument("provider definition is required")
	}
	reg, ok := FindForDefinition(cfg.Definition)
	if !ok {
		return nil, aisdk.InvalidArgument(fmt.Sprintf("unknown sdk type %q", cfg.Definition.SdkType))
	}
	if reg.NewLanguageModel == nil {
		return nil, aisdk.InvalidArgument(fmt.Sprintf("sdk type %q has no language models", cfg.Definition.SdkType))
	}
	return reg.NewLanguageModel(cfg)
}

// NewEmbeddingModel builds an embedding model from a provider definition.
func NewEmbeddingModel(cfg ModelConfig) (aisdk.EmbeddingModel, error) {
	if cfg.Definition == nil {
		return nil, aisdk.InvalidArgument("provider definition is required")
	}
	reg, ok := FindForDefinition(cfg.Definition)
	if !ok {
		return nil, aisdk.InvalidArgument(fmt.Sprintf("unknown sdk type %q", cfg.Definition.SdkType))
	}
	if reg.NewEmbeddingModel == nil {
		return nil, aisdk.InvalidArgument(fmt.Sprintf("sdk type %q has no embedding models", cfg.Definition.SdkType))
	}
	return reg.NewEmbeddingModel(cfg)
}

// NewImageModel builds an image model from a provider definition.
func NewImageModel(cfg ModelConfig) (aisdk.ImageModel, error) {
	if cfg.Definition == nil {
		return nil, aisdk.InvalidArgument("provider definition is required")
	}
	reg, ok := FindForDefinition(cfg.Definition)
	if !ok {
		return nil, aisdk.InvalidArgument(fmt.Sprintf("unknown sdk type %q", cfg.Definition.SdkType))
	}
	if reg.NewImageModel == nil {
		return nil, aisdk.InvalidArgument(fmt.Sprintf("sdk type %q has no image models", cfg.Definition.SdkType))
	}
	return reg.NewImageModel(cfg)
}
