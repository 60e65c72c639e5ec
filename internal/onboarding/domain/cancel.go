package onboarding

import "sync"

// CancelToken lets the caller request cooperative cancellation of a run. The
// orchestrator checks it at stage boundaries only; an in-flight remote call
// is allowed to complete and its result is discarded.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

// NewCancelToken constructs a token.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel requests cancellation. Safe to call more than once.
func (t *CancelToken) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.ch) })
}

// Cancelled reports whether cancellation was requested.
func (t *CancelToken) Cancelled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done exposes the cancellation channel.
func (t *CancelToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.ch
}
