package aisdk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies an SDK error.
type ErrorKind string

const (
	ErrUnauthorized    ErrorKind = "unauthorized"
	ErrRateLimited     ErrorKind = "rate_limited"
	ErrTimeout         ErrorKind = "timeout"
	ErrCancelled       ErrorKind = "cancelled"
	ErrUpstream        ErrorKind = "upstream"
	ErrTransport       ErrorKind = "transport"
	ErrSerde           ErrorKind = "serde"
	ErrInvalidArgument ErrorKind = "invalid_argument"
)

// Error is the single error type surfaced to SDK callers.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	// RetryAfter is the server-supplied delay hint for rate limits, zero
	// when absent.
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnauthorized:
		return "unauthorized: " + e.Message
	case ErrRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
		}
		return "rate limited"
	case ErrTimeout:
		return "request timed out"
	case ErrCancelled:
		return "cancelled"
	case ErrUpstream:
		return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
	case ErrTransport:
		if e.Cause != nil {
			return "transport error: " + e.Cause.Error()
		}
		return "transport error: " + e.Message
	case ErrSerde:
		if e.Cause != nil {
			return "serialization error: " + e.Cause.Error()
		}
		return "serialization error: " + e.Message
	case ErrInvalidArgument:
		return "invalid argument: " + e.Message
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func Unauthorized(message string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

func RateLimited(retryAfter time.Duration, cause error) *Error {
	return &Error{Kind: ErrRateLimited, RetryAfter: retryAfter, Cause: cause}
}

func TimeoutError() *Error { return &Error{Kind: ErrTimeout} }

func CancelledError() *Error { return &Error{Kind: ErrCancelled} }

func UpstreamError(status int, message string, cause error) *Error {
	return &Error{Kind: ErrUpstream, Status: status, Message: message, Cause: cause}
}

func InvalidArgument(message string) *Error {
	return &Error{Kind: ErrInvalidArgument, Message: message}
}

func SerdeError(cause error) *Error {
	return &Error{Kind: ErrSerde, Cause: cause}
}

func kindIs(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsUnauthorized(err error) bool    { return kindIs(err, ErrUnauthorized) }
func IsRateLimited(err error) bool     { return kindIs(err, ErrRateLimited) }
func IsTimeout(err error) bool         { return kindIs(err, ErrTimeout) }
func IsCancelled(err error) bool       { return kindIs(err, ErrCancelled) }
func IsUpstream(err error) bool        { return kindIs(err, ErrUpstream) }
func IsTransportError(err error) bool  { return kindIs(err, ErrTransport) }
func IsInvalidArgument(err error) bool { return kindIs(err, ErrInvalidArgument) }

// TransportErrorKind classifies a transport-level failure.
type TransportErrorKind string

const (
	TransportHTTPStatus      TransportErrorKind = "http_status"
	TransportNetwork         TransportErrorKind = "network"
	TransportConnectTimeout  TransportErrorKind = "connect_timeout"
	TransportIdleReadTimeout TransportErrorKind = "idle_read_timeout"
	TransportBodyRead        TransportErrorKind = "body_read"
	TransportStreamClosed    TransportErrorKind = "stream_closed"
	TransportOther           TransportErrorKind = "other"
)

// TransportError is a failure below the provider protocol. For HTTPStatus
// the raw body is preserved for diagnostics but is never printed; display
// paths use Sanitized.
type TransportError struct {
	Kind       TransportErrorKind
	Status     int
	Body       string
	RetryAfter time.Duration
	Sanitized  string
	Headers    map[string]string
	Timeout    time.Duration
	Message    string
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case TransportHTTPStatus:
		return fmt.Sprintf("http status %d: %s", e.Status, e.Sanitized)
	case TransportNetwork:
		return "network error: " + e.Message
	case TransportConnectTimeout:
		return fmt.Sprintf("connect timeout after %s", e.Timeout)
	case TransportIdleReadTimeout:
		return fmt.Sprintf("idle read timeout after %s", e.Timeout)
	case TransportBodyRead:
		return "body read error: " + e.Message
	case TransportStreamClosed:
		return "stream closed"
	default:
		return e.Message
	}
}

// DisplayBodyForError renders an HTTP body for error messages without ever
// echoing raw body text: minified JSON when the body parses, a byte count
// otherwise.
func DisplayBodyForError(body string) string {
	trimmed := bytes.TrimSpace([]byte(body))
	if json.Valid(trimmed) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return fmt.Sprintf("%d bytes", len(body))
}

// SanitizedMessage is the fallback display string for an HTTP failure.
func SanitizedMessage(status int) string {
	return fmt.Sprintf("http status %d", status)
}

// MapTransportError classifies a transport failure into the caller-facing
// taxonomy: 401/403 unauthorized, timeouts, 425/429 rate limits, other 4xx
// and 5xx upstream, everything else transport.
func MapTransportError(te *TransportError) *Error {
	switch te.Kind {
	case TransportConnectTimeout, TransportIdleReadTimeout:
		return &Error{Kind: ErrTimeout, Cause: te}
	case TransportHTTPStatus:
		switch {
		case te.Status == 401 || te.Status == 403:
			return &Error{Kind: ErrUnauthorized, Status: te.Status, Message: te.Sanitized, Cause: te}
		case te.Status == 408:
			return &Error{Kind: ErrTimeout, Cause: te}
		case te.Status == 425 || te.Status == 429:
			return &Error{Kind: ErrRateLimited, Status: te.Status, RetryAfter: te.RetryAfter, Cause: te}
		case te.Status >= 400:
			return &Error{Kind: ErrUpstream, Status: te.Status, Message: te.Sanitized, Cause: te}
		default:
			return &Error{Kind: ErrTransport, Cause: te}
		}
	default:
		return &Error{Kind: ErrTransport, Cause: te}
	}
}
