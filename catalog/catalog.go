// Package catalog defines the provider and model catalog: which providers
// exist, how to reach them, and what their models can do. Catalogs load
// from JSON or YAML documents.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SdkType selects the wire protocol a provider speaks.
type SdkType string

const (
	SdkOpenAI                     SdkType = "openai"
	SdkAzure                      SdkType = "azure"
	SdkOpenAICompatible           SdkType = "openai-compatible"
	SdkOpenAICompatibleChat       SdkType = "openai-compatible-chat"
	SdkOpenAICompatibleCompletion SdkType = "openai-compatible-completion"
	SdkAnthropic                  SdkType = "anthropic"
	SdkGoogle                     SdkType = "google"
	SdkGoogleVertex               SdkType = "google-vertex"
	SdkGroq                       SdkType = "groq"
	SdkGateway                    SdkType = "gateway"
	SdkAmazonBedrock              SdkType = "amazon-bedrock"
)

// ModelCapabilities flags what a model supports.
type ModelCapabilities struct {
	Attachment  bool `json:"attachment,omitempty" yaml:"attachment,omitempty"`
	Reasoning   bool `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Temperature bool `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	ToolCall    bool `json:"tool_call,omitempty" yaml:"tool_call,omitempty"`
	ComputerUse bool `json:"computer_use,omitempty" yaml:"computer_use,omitempty"`
	Audio       bool `json:"audio,omitempty" yaml:"audio,omitempty"`
	JSONMode    bool `json:"json_mode,omitempty" yaml:"json_mode,omitempty"`
	Vision      bool `json:"vision,omitempty" yaml:"vision,omitempty"`
}

// ModelModalities lists accepted input and produced output modalities.
type ModelModalities struct {
	Input  []string `json:"input,omitempty" yaml:"input,omitempty"`
	Output []string `json:"output,omitempty" yaml:"output,omitempty"`
}

// ModelLimits carries context-window sizes in tokens.
type ModelLimits struct {
	Context       int64 `json:"context,omitempty" yaml:"context,omitempty"`
	Output        int64 `json:"output,omitempty" yaml:"output,omitempty"`
	ContextInput  int64 `json:"context_input,omitempty" yaml:"context_input,omitempty"`
	ContextOutput int64 `json:"context_output,omitempty" yaml:"context_output,omitempty"`
}

// ModelCost is USD per million tokens.
type ModelCost struct {
	Input      float64 `json:"input,omitempty" yaml:"input,omitempty"`
	Output     float64 `json:"output,omitempty" yaml:"output,omitempty"`
	CacheRead  float64 `json:"cache_read,omitempty" yaml:"cache_read,omitempty"`
	CacheWrite float64 `json:"cache_write,omitempty" yaml:"cache_write,omitempty"`
}

// ModelInfo describes one model in a provider's catalog entry.
type ModelInfo struct {
	ID           string             `json:"id" yaml:"id"`
	Name         string             `json:"name,omitempty" yaml:"name,omitempty"`
	Capabilities *ModelCapabilities `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Modalities   *ModelModalities   `json:"modalities,omitempty" yaml:"modalities,omitempty"`
	Limits       *ModelLimits       `json:"limits,omitempty" yaml:"limits,omitempty"`
	Cost         *ModelCost         `json:"cost,omitempty" yaml:"cost,omitempty"`
}

// ProviderDefinition configures one provider endpoint.
type ProviderDefinition struct {
	Name        string  `json:"name" yaml:"name"`
	DisplayName string  `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	SdkType     SdkType `json:"sdk_type" yaml:"sdk_type"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// Env names environment variables consulted for credentials, in order.
	Env          []string          `json:"env,omitempty" yaml:"env,omitempty"`
	EndpointPath string            `json:"endpoint_path,omitempty" yaml:"endpoint_path,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	QueryParams  map[string]string `json:"query_params,omitempty" yaml:"query_params,omitempty"`
	AuthType     string            `json:"auth_type,omitempty" yaml:"auth_type,omitempty"`
	// StreamIdleTimeoutMs overrides the transport idle-read timeout.
	StreamIdleTimeoutMs int64       `json:"stream_idle_timeout_ms,omitempty" yaml:"stream_idle_timeout_ms,omitempty"`
	Models              []ModelInfo `json:"models,omitempty" yaml:"models,omitempty"`
	// PreserveModelPrefix keeps the "provider/" prefix on the model id sent
	// upstream. Nil means true.
	PreserveModelPrefix *bool `json:"preserve_model_prefix,omitempty" yaml:"preserve_model_prefix,omitempty"`
}

// PreservesModelPrefix resolves the nil-means-true default.
func (d *ProviderDefinition) PreservesModelPrefix() bool {
	return d.PreserveModelPrefix == nil || *d.PreserveModelPrefix
}

// Model returns the catalog entry for a model id, if listed.
func (d *ProviderDefinition) Model(modelID string) (ModelInfo, bool) {
	for _, m := range d.Models {
		if strings.EqualFold(m.ID, modelID) {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Catalog is a set of provider definitions keyed by name.
type Catalog struct {
	Providers map[string]*ProviderDefinition `json:"providers" yaml:"providers"`
}

func New() *Catalog {
	return &Catalog{Providers: map[string]*ProviderDefinition{}}
}

// Add registers a definition, keyed by its name.
func (c *Catalog) Add(def *ProviderDefinition) {
	if c.Providers == nil {
		c.Providers = map[string]*ProviderDefinition{}
	}
	c.Providers[def.Name] = def
}

// Provider looks up a definition by name.
func (c *Catalog) Provider(name string) (*ProviderDefinition, bool) {
	def, ok := c.Providers[name]
	return def, ok
}

// FindProviderForModel resolves "provider/model" or a bare model id to the
// owning provider. A prefixed id wins over a model listed under another
// provider.
func (c *Catalog) FindProviderForModel(modelID string) (*ProviderDefinition, string, bool) {
	if provider, rest, ok := strings.Cut(modelID, "/"); ok {
		if def, found := c.Providers[provider]; found {
			if def.PreservesModelPrefix() {
				return def, modelID, true
			}
			return def, rest, true
		}
	}
	for _, def := range c.Providers {
		if _, ok := def.Model(modelID); ok {
			return def, modelID, true
		}
	}
	return nil, "", false
}

// LoadJSON parses a catalog document. Both {"providers": {...}} envelopes
// and bare provider maps are accepted.
func LoadJSON(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog json: %w", err)
	}
	if c.Providers == nil {
		var bare map[string]*ProviderDefinition
		if err := json.Unmarshal(data, &bare); err != nil {
			return nil, fmt.Errorf("parse catalog json: %w", err)
		}
		c.Providers = bare
	}
	fillNames(&c)
	return &c, nil
}

// LoadYAML parses a YAML catalog document, same shapes as LoadJSON.
func LoadYAML(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if c.Providers == nil {
		var bare map[string]*ProviderDefinition
		if err := yaml.Unmarshal(data, &bare); err != nil {
			return nil, fmt.Errorf("parse catalog yaml: %w", err)
		}
		c.Providers = bare
	}
	fillNames(&c)
	return &c, nil
}

// LoadFile loads a catalog from disk, choosing the parser by extension.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	default:
		return LoadJSON(data)
	}
}

func fillNames(c *Catalog) {
	for name, def := range c.Providers {
		if def != nil && def.Name == "" {
			def.Name = name
		}
	}
}
