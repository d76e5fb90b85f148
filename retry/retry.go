// Package retry implements exponential backoff with capped intervals and a
// retryability predicate for SDK and transport errors.
package retry

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"time"

	"github.com/octanelabs/aisdk"
)

// Config controls the retry loop. Multiplier defaults to 2.0 when zero.
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// Quick is tuned for cheap local operations.
func Quick() Config {
	return Config{MaxRetries: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2.0}
}

// Network is tuned for transient connectivity failures.
func Network() Config {
	return Config{MaxRetries: 5, InitialInterval: 250 * time.Millisecond, MaxInterval: 10 * time.Second, Multiplier: 2.0}
}

// API is tuned for rate-limited upstream APIs.
func API() Config {
	return Config{MaxRetries: 5, InitialInterval: time.Second, MaxInterval: 60 * time.Second, Multiplier: 2.0}
}

// Backoff computes the sleep before attempt n (1-based). A server-supplied
// retryAfter hint dominates the exponential schedule; both are capped at
// MaxInterval.
func (c Config) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > c.MaxInterval {
			return c.MaxInterval
		}
		return retryAfter
	}
	mult := c.Multiplier
	if mult == 0 {
		mult = 2.0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(c.InitialInterval) * math.Pow(mult, float64(attempt-1)))
	if d > c.MaxInterval || d <= 0 {
		return c.MaxInterval
	}
	return d
}

// sleep is swapped in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retryable reports whether err is worth another attempt: I/O
// interruptions, timeouts, rate limits, and 5xx upstream failures. All
// other errors short-circuit the loop.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var te *aisdk.TransportError
	if errors.As(err, &te) {
		switch te.Kind {
		case aisdk.TransportConnectTimeout, aisdk.TransportIdleReadTimeout, aisdk.TransportNetwork, aisdk.TransportBodyRead:
			return true
		case aisdk.TransportHTTPStatus:
			return te.Status == 429 || te.Status >= 500
		}
	}
	var se *aisdk.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case aisdk.ErrTimeout, aisdk.ErrRateLimited:
			return true
		case aisdk.ErrUpstream:
			return se.Status >= 500
		case aisdk.ErrTransport:
			return true
		}
	}
	return false
}

// retryAfterHint extracts a server-supplied delay from the error chain.
func retryAfterHint(err error) time.Duration {
	var se *aisdk.Error
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	var te *aisdk.TransportError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter
	}
	return 0
}

// Do runs fn up to 1+MaxRetries times, sleeping per the backoff schedule
// between attempts. On exhaustion the last error is returned unchanged.
func Do[T any](ctx context.Context, cfg Config, fn func(ctx context.Context) (T, error)) (T, error) {
	var lastErr error
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt > cfg.MaxRetries || !Retryable(err) {
			return zero, lastErr
		}
		if err := sleep(ctx, cfg.Backoff(attempt, retryAfterHint(lastErr))); err != nil {
			return zero, aisdk.CancelledError()
		}
	}
}
