package aisdk

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestMapTransportErrorStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{408, ErrTimeout},
		{425, ErrRateLimited},
		{429, ErrRateLimited},
		{400, ErrUpstream},
		{404, ErrUpstream},
		{500, ErrUpstream},
		{503, ErrUpstream},
		{302, ErrTransport},
	}
	for _, tc := range cases {
		te := &TransportError{Kind: TransportHTTPStatus, Status: tc.status, Sanitized: SanitizedMessage(tc.status)}
		got := MapTransportError(te)
		if got.Kind != tc.kind {
			t.Fatalf("status %d: got kind %q, want %q", tc.status, got.Kind, tc.kind)
		}
		if got.Kind != ErrTimeout && got.Kind != ErrTransport && got.Status != tc.status {
			t.Fatalf("status %d: not carried through, got %d", tc.status, got.Status)
		}
		if !errors.Is(got, te) {
			t.Fatalf("status %d: cause chain broken", tc.status)
		}
	}
}

func TestMapTransportErrorTimeouts(t *testing.T) {
	for _, kind := range []TransportErrorKind{TransportConnectTimeout, TransportIdleReadTimeout} {
		got := MapTransportError(&TransportError{Kind: kind, Timeout: time.Second})
		if got.Kind != ErrTimeout {
			t.Fatalf("%s: got %q", kind, got.Kind)
		}
	}
	got := MapTransportError(&TransportError{Kind: TransportNetwork, Message: "refused"})
	if got.Kind != ErrTransport {
		t.Fatalf("network: got %q", got.Kind)
	}
}

func TestMapTransportErrorRetryAfter(t *testing.T) {
	te := &TransportError{Kind: TransportHTTPStatus, Status: 429, RetryAfter: 3 * time.Second}
	got := MapTransportError(te)
	if got.RetryAfter != 3*time.Second {
		t.Fatalf("retry-after hint lost: %s", got.RetryAfter)
	}
	if !strings.Contains(got.Error(), "retry after 3s") {
		t.Fatalf("message: %q", got.Error())
	}
}

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Unauthorized("bad key"))
	if !IsUnauthorized(wrapped) {
		t.Fatalf("unauthorized not detected through wrap")
	}
	if IsRateLimited(wrapped) {
		t.Fatalf("wrong kind matched")
	}
	if IsTimeout(nil) {
		t.Fatalf("nil should not match")
	}
	if !IsCancelled(CancelledError()) {
		t.Fatalf("cancelled not detected")
	}
	if !IsUpstream(UpstreamError(502, "bad gateway", nil)) {
		t.Fatalf("upstream not detected")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{Unauthorized("bad key"), "unauthorized: bad key"},
		{RateLimited(0, nil), "rate limited"},
		{TimeoutError(), "request timed out"},
		{UpstreamError(500, "boom", nil), "upstream error (status 500): boom"},
		{InvalidArgument("no prompt"), "invalid argument: no prompt"},
		{SerdeError(errors.New("bad json")), "serialization error: bad json"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}
}

func TestDisplayBodyForError(t *testing.T) {
	got := DisplayBodyForError("  {\n  \"error\": \"x\"\n}  ")
	if got != `{"error":"x"}` {
		t.Fatalf("got %q", got)
	}

	secret := "api key leaked sk-abc123"
	got = DisplayBodyForError(secret)
	if strings.Contains(got, "sk-abc123") {
		t.Fatalf("raw body echoed: %q", got)
	}
	if got != fmt.Sprintf("%d bytes", len(secret)) {
		t.Fatalf("got %q", got)
	}
}

func TestTransportErrorMessages(t *testing.T) {
	te := &TransportError{Kind: TransportHTTPStatus, Status: 418, Body: "secret body", Sanitized: "http status 418"}
	if strings.Contains(te.Error(), "secret body") {
		t.Fatalf("raw body in message: %q", te.Error())
	}
	te = &TransportError{Kind: TransportIdleReadTimeout, Timeout: 45 * time.Second}
	if te.Error() != "idle read timeout after 45s" {
		t.Fatalf("got %q", te.Error())
	}
}
