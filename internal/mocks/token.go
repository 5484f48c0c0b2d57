package mocks

import (
	"time"
)

// CompletedToken is an mqtt.Token that has already finished with the given error.
type CompletedToken struct {
	err  error
	done chan struct{}
}

// NewCompletedToken returns a token whose Wait returns immediately.
func NewCompletedToken(err error) *CompletedToken {
	done := make(chan struct{})
	close(done)
	return &CompletedToken{err: err, done: done}
}

// Error returns the error associated with the token
func (t *CompletedToken) Error() error { return t.err }

// Wait returns immediately
func (t *CompletedToken) Wait() bool { return true }

// WaitTimeout returns immediately
func (t *CompletedToken) WaitTimeout(time.Duration) bool { return true }

// Done returns a closed channel
func (t *CompletedToken) Done() <-chan struct{} { return t.done }
