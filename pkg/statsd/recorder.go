package statsd

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrCallNotFound is returned by CallRecorder.Verify when no recorded payload equals the expected one.
	ErrCallNotFound = errors.New("call not found")
	// ErrUnexpectedCall is returned by CallRecorder.VerifyNoMore when the payload is still recorded.
	ErrUnexpectedCall = errors.New("unexpected call")
)

// CallRecorder keeps every raw payload received, in arrival order. Safe for concurrent use.
type CallRecorder struct {
	mu    sync.Mutex
	calls []string
}

// Record appends a payload.
func (r *CallRecorder) Record(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, string(payload))
}

// Calls returns a copy of the recorded payloads.
func (r *CallRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Verify removes the earliest recorded payload equal to msg. ErrCallNotFound is returned if there is none.
func (r *CallRecorder) Verify(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, call := range r.calls {
		if call == msg {
			r.calls = append(r.calls[:i], r.calls[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrCallNotFound, msg)
}

// VerifyNoMore returns ErrUnexpectedCall if a payload equal to msg is still recorded.
func (r *CallRecorder) VerifyNoMore(msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, call := range r.calls {
		if call == msg {
			return fmt.Errorf("%w: %q", ErrUnexpectedCall, msg)
		}
	}
	return nil
}

// Reset forgets every recorded payload.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
