package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/octanelabs/aisdk"
	"github.com/octanelabs/aisdk/internal/jsonx"
)

// RestyTransport is the default HttpTransport backed by a resty client.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport builds a transport honoring the config's connect and
// overall request timeouts. The idle-read timeout is enforced per call.
func NewRestyTransport(cfg Config) *RestyTransport {
	cfg = withDefaults(cfg)

	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 60 * time.Second,
	}
	client := resty.New().
		SetTransport(&http.Transport{
			DialContext:         dialer.DialContext,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 16,
		})
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(cfg.RequestTimeout)
	}
	return &RestyTransport{client: client}
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.IdleReadTimeout == 0 {
		cfg.IdleReadTimeout = def.IdleReadTimeout
	}
	return cfg
}

func (t *RestyTransport) prepareBody(body any, cfg Config) (any, error) {
	if !cfg.StripNullFields {
		return body, nil
	}
	// Round-trip through generic JSON so struct bodies prune too.
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, aisdk.SerdeError(err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, aisdk.SerdeError(err)
	}
	return jsonx.WithoutNullFields(decoded), nil
}

func (t *RestyTransport) PostJSON(ctx context.Context, url string, headers map[string]string, body any, cfg Config) (any, map[string]string, error) {
	cfg = withDefaults(cfg)
	cleaned, err := t.prepareBody(body, cfg)
	if err != nil {
		return nil, nil, err
	}

	started := time.Now()
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetBody(cleaned).
		Post(url)
	if err != nil {
		te := classifySendError(err, cfg)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
			RequestHeaders: headers, RequestBody: cleaned, Err: te.Error()})
		return nil, nil, te
	}

	resHeaders := lowerHeaders(resp.Header())
	bodyBytes := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		te := httpStatusError(resp.StatusCode(), string(bodyBytes), resHeaders)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
			Status: resp.StatusCode(), RequestHeaders: headers, ResponseHeaders: resHeaders,
			RequestBody: cleaned, ResponseBody: te.Sanitized, ResponseSize: len(bodyBytes), Err: te.Error()})
		return nil, nil, te
	}

	var decoded any
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil {
		return nil, nil, &aisdk.TransportError{Kind: aisdk.TransportBodyRead, Message: "invalid json"}
	}
	emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
		Status: resp.StatusCode(), RequestHeaders: headers, ResponseHeaders: resHeaders,
		RequestBody: cleaned, ResponseBody: decoded, ResponseSize: len(bodyBytes)})
	return decoded, resHeaders, nil
}

func (t *RestyTransport) PostJSONStream(ctx context.Context, url string, headers map[string]string, body any, cfg Config) (*StreamResponse, error) {
	cfg = withDefaults(cfg)
	cleaned, err := t.prepareBody(body, cfg)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	req := t.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetHeader("Content-Type", "application/json").
		SetDoNotParseResponse(true).
		SetBody(cleaned)
	resp, err := req.Post(url)
	if err != nil {
		te := classifySendError(err, cfg)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
			RequestHeaders: headers, RequestBody: cleaned, Err: te.Error(), IsStream: true})
		return nil, te
	}

	raw := resp.RawResponse
	resHeaders := lowerHeaders(raw.Header)
	if raw.StatusCode < 200 || raw.StatusCode > 299 {
		defer raw.Body.Close()
		bodyBytes, _ := readLimited(raw.Body, 1<<20)
		te := httpStatusError(raw.StatusCode, string(bodyBytes), resHeaders)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
			Status: raw.StatusCode, RequestHeaders: headers, ResponseHeaders: resHeaders,
			RequestBody: cleaned, ResponseBody: te.Sanitized, ResponseSize: len(bodyBytes),
			Err: te.Error(), IsStream: true})
		return nil, te
	}

	emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
		Status: raw.StatusCode, RequestHeaders: headers, ResponseHeaders: resHeaders,
		RequestBody: cleaned, IsStream: true})
	return &StreamResponse{
		Body:    newIdleTimeoutReader(raw.Body, cfg.IdleReadTimeout),
		Headers: resHeaders,
	}, nil
}

func (t *RestyTransport) PostMultipart(ctx context.Context, url string, headers map[string]string, form *MultipartForm, cfg Config) (any, map[string]string, error) {
	cfg = withDefaults(cfg)

	req := t.client.R().SetContext(ctx)
	for k, v := range headers {
		if strings.EqualFold(k, "content-type") {
			continue
		}
		req.SetHeader(k, v)
	}
	for _, field := range form.Fields {
		if field.IsBytes {
			name := field.Filename
			if name == "" {
				name = field.Name
			}
			req.SetFileReader(field.Name, name, bytes.NewReader(field.Bytes))
		} else {
			req.SetMultipartFormData(map[string]string{field.Name: field.Text})
		}
	}

	started := time.Now()
	resp, err := req.Post(url)
	if err != nil {
		te := classifySendError(err, cfg)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
			RequestHeaders: headers, Err: te.Error()})
		return nil, nil, te
	}

	resHeaders := lowerHeaders(resp.Header())
	bodyBytes := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		te := httpStatusError(resp.StatusCode(), string(bodyBytes), resHeaders)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
			Status: resp.StatusCode(), RequestHeaders: headers, ResponseHeaders: resHeaders,
			ResponseBody: te.Sanitized, ResponseSize: len(bodyBytes), Err: te.Error()})
		return nil, nil, te
	}
	var decoded any
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil {
		return nil, nil, &aisdk.TransportError{Kind: aisdk.TransportBodyRead, Message: "invalid json"}
	}
	emit(Event{StartedAt: started, Latency: time.Since(started), Method: "POST", URL: url,
		Status: resp.StatusCode(), RequestHeaders: headers, ResponseHeaders: resHeaders,
		ResponseBody: decoded, ResponseSize: len(bodyBytes)})
	return decoded, resHeaders, nil
}

func (t *RestyTransport) GetBytes(ctx context.Context, url string, headers map[string]string, cfg Config) ([]byte, map[string]string, error) {
	cfg = withDefaults(cfg)

	started := time.Now()
	resp, err := t.client.R().SetContext(ctx).SetHeaders(headers).Get(url)
	if err != nil {
		te := classifySendError(err, cfg)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "GET", URL: url,
			RequestHeaders: headers, Err: te.Error()})
		return nil, nil, te
	}

	resHeaders := lowerHeaders(resp.Header())
	bodyBytes := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		te := httpStatusError(resp.StatusCode(), string(bodyBytes), resHeaders)
		emit(Event{StartedAt: started, Latency: time.Since(started), Method: "GET", URL: url,
			Status: resp.StatusCode(), RequestHeaders: headers, ResponseHeaders: resHeaders,
			ResponseBody: te.Sanitized, ResponseSize: len(bodyBytes), Err: te.Error()})
		return nil, nil, te
	}
	emit(Event{StartedAt: started, Latency: time.Since(started), Method: "GET", URL: url,
		Status: resp.StatusCode(), RequestHeaders: headers, ResponseHeaders: resHeaders,
		ResponseSize: len(bodyBytes)})
	return bodyBytes, resHeaders, nil
}

func classifySendError(err error, cfg Config) *aisdk.TransportError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &aisdk.TransportError{Kind: aisdk.TransportConnectTimeout, Timeout: cfg.ConnectTimeout}
	}
	return &aisdk.TransportError{Kind: aisdk.TransportNetwork, Message: err.Error()}
}

func httpStatusError(status int, body string, headers map[string]string) *aisdk.TransportError {
	return &aisdk.TransportError{
		Kind:       aisdk.TransportHTTPStatus,
		Status:     status,
		Body:       body,
		RetryAfter: ParseRetryAfter(headers["retry-after"]),
		Sanitized:  aisdk.DisplayBodyForError(body),
		Headers:    headers,
	}
}

// ParseRetryAfter reads a Retry-After header value as either delta-seconds
// or an HTTP date. Zero means no usable hint.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func lowerHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[strings.ToLower(k)] = vs[0]
		}
	}
	return out
}

func readLimited(r interface{ Read([]byte) (int, error) }, limit int64) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	var total int64
	for total < limit {
		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			total += int64(n)
		}
		if err != nil {
			break
		}
	}
	return buf, nil
}

var _ HttpTransport = (*RestyTransport)(nil)
