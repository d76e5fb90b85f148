// Package transport defines the HTTP contract used by all provider
// adapters and a resty-backed default implementation.
package transport

import (
	"context"
	"io"
	"sync"
	"time"
)

// Config tunes a transport. Zero values for the timeouts fall back to the
// defaults from DefaultConfig, except RequestTimeout which stays unset.
type Config struct {
	// RequestTimeout bounds the whole request. Zero disables it, which is
	// required for long-lived streams.
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// IdleReadTimeout bounds the gap between consecutive body chunks.
	IdleReadTimeout time.Duration
	StripNullFields bool
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  10 * time.Second,
		IdleReadTimeout: 45 * time.Second,
		StripNullFields: true,
	}
}

// StreamResponse is an open streaming response body plus its headers.
// Header keys are lowercased.
type StreamResponse struct {
	Body    io.ReadCloser
	Headers map[string]string
}

// MultipartField is one field of a multipart form: text when Bytes is nil,
// a file part otherwise.
type MultipartField struct {
	Name        string
	Text        string
	Bytes       []byte
	Filename    string
	ContentType string
	IsBytes     bool
}

type MultipartForm struct {
	Fields []MultipartField
}

func (f *MultipartForm) PushText(name, value string) {
	f.Fields = append(f.Fields, MultipartField{Name: name, Text: value})
}

func (f *MultipartForm) PushBytes(name string, data []byte, filename, contentType string) {
	f.Fields = append(f.Fields, MultipartField{
		Name: name, Bytes: data, Filename: filename, ContentType: contentType, IsBytes: true,
	})
}

// HttpTransport is the abstract HTTP capability adapters depend on.
// Response header maps use lowercased keys.
type HttpTransport interface {
	PostJSON(ctx context.Context, url string, headers map[string]string, body any, cfg Config) (any, map[string]string, error)
	PostJSONStream(ctx context.Context, url string, headers map[string]string, body any, cfg Config) (*StreamResponse, error)
	PostMultipart(ctx context.Context, url string, headers map[string]string, form *MultipartForm, cfg Config) (any, map[string]string, error)
	GetBytes(ctx context.Context, url string, headers map[string]string, cfg Config) ([]byte, map[string]string, error)
}

// Event describes one HTTP exchange for observability.
type Event struct {
	StartedAt       time.Time
	Latency         time.Duration
	Method          string
	URL             string
	Status          int
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	RequestBody     any
	ResponseBody    any
	ResponseSize    int
	Err             string
	IsStream        bool
}

var (
	observerOnce sync.Once
	observerMu   sync.RWMutex
	observer     func(Event)
)

// RegisterObserver installs a process-wide transport observer. Registration
// is single-shot; it reports whether this call installed the observer.
func RegisterObserver(fn func(Event)) bool {
	installed := false
	observerOnce.Do(func() {
		observerMu.Lock()
		observer = fn
		observerMu.Unlock()
		installed = true
	})
	return installed
}

func emit(ev Event) {
	observerMu.RLock()
	fn := observer
	observerMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}
