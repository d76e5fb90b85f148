// Package capabilities answers model capability questions from a cached
// providers index. The index is a JSON document listing providers and their
// models; it can be injected via environment for tests and offline use.
package capabilities

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// EnvIndexJSON injects the index document directly.
	EnvIndexJSON = "AI_SDK_PROVIDERS_INDEX_JSON"
	// EnvIndexPath points at an index file on disk.
	EnvIndexPath = "AI_SDK_PROVIDERS_INDEX_PATH"
	// EnvDisableDisk skips the default on-disk cache location.
	EnvDisableDisk = "AI_SDK_CAPS_DISABLE_DISK"
)

const cacheTTL = 5 * time.Minute

type indexModel struct {
	ID           string         `json:"id"`
	Capabilities map[string]any `json:"capabilities"`
	Endpoints    any            `json:"endpoints"`
	Raw          map[string]any `json:"-"`
}

func (m *indexModel) UnmarshalJSON(data []byte) error {
	type alias indexModel
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = indexModel(a)
	return json.Unmarshal(data, &m.Raw)
}

type indexProvider struct {
	ID       string       `json:"id"`
	Provider string       `json:"provider"`
	Models   []indexModel `json:"models"`
}

func (p *indexProvider) name() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Provider
}

type index struct {
	Providers []indexProvider `json:"providers"`
}

var cache struct {
	mu       sync.Mutex
	idx      *index
	loadedAt time.Time
}

// Reset drops the cached index. Intended for tests.
func Reset() {
	cache.mu.Lock()
	cache.idx = nil
	cache.loadedAt = time.Time{}
	cache.mu.Unlock()
}

func load() *index {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if cache.idx != nil && time.Since(cache.loadedAt) < cacheTTL {
		return cache.idx
	}

	var data []byte
	if raw := os.Getenv(EnvIndexJSON); raw != "" {
		data = []byte(raw)
	} else if path := os.Getenv(EnvIndexPath); path != "" {
		data, _ = os.ReadFile(path)
	} else if os.Getenv(EnvDisableDisk) == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			data, _ = os.ReadFile(filepath.Join(dir, "ai-sdk", "providers-index.json"))
		}
	}

	idx := &index{}
	if len(data) > 0 {
		var parsed index
		if err := json.Unmarshal(data, &parsed); err == nil {
			idx = &parsed
		} else {
			// Some index dumps are a bare provider array.
			var bare []indexProvider
			if err := json.Unmarshal(data, &bare); err == nil {
				idx = &index{Providers: bare}
			}
		}
	}
	cache.idx = idx
	cache.loadedAt = time.Now()
	return idx
}

func findModel(providerID, modelID string) (*indexModel, bool) {
	idx := load()
	modelID = stripProviderPrefix(modelID, providerID)
	for i := range idx.Providers {
		p := &idx.Providers[i]
		if !strings.EqualFold(p.name(), providerID) {
			continue
		}
		for j := range p.Models {
			if strings.EqualFold(p.Models[j].ID, modelID) ||
				strings.EqualFold(stripAnyPrefix(p.Models[j].ID), modelID) {
				return &p.Models[j], true
			}
		}
	}
	return nil, false
}

func stripProviderPrefix(modelID, providerID string) string {
	if prefix, rest, ok := strings.Cut(modelID, "/"); ok && strings.EqualFold(prefix, providerID) {
		return rest
	}
	return modelID
}

func stripAnyPrefix(modelID string) string {
	if _, rest, ok := strings.Cut(modelID, "/"); ok {
		return rest
	}
	return modelID
}

// SupportsResponsesAPI reports whether the index marks the model as usable
// with the OpenAI Responses API. Absent entries default to true so that an
// empty index never blocks the modern endpoint.
func SupportsResponsesAPI(providerID, modelID string) bool {
	m, ok := findModel(providerID, modelID)
	if !ok {
		return true
	}
	if v, found := responsesFlag(m.Capabilities); found {
		return v
	}
	if v, found := responsesFromEndpoints(m.Endpoints); found {
		return v
	}
	if caps := m.Capabilities; caps != nil {
		if v, found := responsesFromEndpoints(caps["endpoints"]); found {
			return v
		}
	}
	return true
}

func responsesFlag(caps map[string]any) (bool, bool) {
	if caps == nil {
		return false, false
	}
	for _, key := range []string{"responses_api", "supports_responses_api", "responses"} {
		if v, ok := caps[key]; ok {
			if b, ok := v.(bool); ok {
				return b, true
			}
		}
	}
	return false, false
}

func responsesFromEndpoints(endpoints any) (bool, bool) {
	switch v := endpoints.(type) {
	case map[string]any:
		if b, ok := v["responses"].(bool); ok {
			return b, true
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, "responses") {
				return true, true
			}
		}
		return false, true
	}
	return false, false
}

// Reasoning reports whether the index marks the model as a reasoning model.
// Absent entries default to false.
func Reasoning(providerID, modelID string) bool {
	m, ok := findModel(providerID, modelID)
	if !ok || m.Capabilities == nil {
		return false
	}
	b, _ := m.Capabilities["reasoning"].(bool)
	return b
}

// ToolCall reports whether the model supports tool calling. Absent entries
// default to true.
func ToolCall(providerID, modelID string) bool {
	m, ok := findModel(providerID, modelID)
	if !ok || m.Capabilities == nil {
		return true
	}
	if b, ok := m.Capabilities["tool_call"].(bool); ok {
		return b
	}
	return true
}
