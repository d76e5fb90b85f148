package transport

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/octanelabs/aisdk"
)

// idleTimeoutReader closes the underlying body when no bytes arrive within
// the idle window, surfacing the condition as an idle-read timeout instead
// of an opaque closed-connection error.
type idleTimeoutReader struct {
	rc       io.ReadCloser
	idle     time.Duration
	timer    *time.Timer
	timedOut atomic.Bool
	closed   atomic.Bool
}

func newIdleTimeoutReader(rc io.ReadCloser, idle time.Duration) io.ReadCloser {
	if idle <= 0 {
		return rc
	}
	r := &idleTimeoutReader{rc: rc, idle: idle}
	r.timer = time.AfterFunc(idle, func() {
		r.timedOut.Store(true)
		r.rc.Close()
	})
	return r
}

func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil {
		if r.timedOut.Load() {
			return n, &aisdk.TransportError{Kind: aisdk.TransportIdleReadTimeout, Timeout: r.idle}
		}
		if err != io.EOF {
			return n, &aisdk.TransportError{Kind: aisdk.TransportBodyRead, Message: err.Error()}
		}
		r.timer.Stop()
		return n, err
	}
	r.timer.Reset(r.idle)
	return n, nil
}

func (r *idleTimeoutReader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.timer.Stop()
	return r.rc.Close()
}
