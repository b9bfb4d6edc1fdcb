// Package notify implements the broker-thread wake-up primitive spec.md
// §5/§9 calls for: credstore.Store holds a back-reference to its owning
// client modeled as a Notifier interface (WakeAll), not a cyclic owning
// pointer, so any number of connection workers can suspend waiting for
// the first successful install and be released together when it lands.
//
// The wait/wake pair is a context-aware condition variable, the same
// shape grafana-tempo's frontend queue uses to wake dequeuers blocked on
// an empty queue (modules/frontend/queue, contextCond in
// queue_test.go) — see DESIGN.md.
package notify

import (
	"context"
	"sync"
)

// Signal lets any number of goroutines block in Wait until the next
// Broadcast call, or until their context is done.
type Signal struct {
	mu   sync.Mutex
	cond *sync.Cond
}

// NewSignal returns a ready-to-use Signal.
func NewSignal() *Signal {
	s := &Signal{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Broadcast wakes every goroutine currently blocked in Wait.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Wait blocks until the next Broadcast call or until ctx is done,
// whichever comes first, returning ctx.Err() in the latter case.
func (s *Signal) Wait(ctx context.Context) error {
	// Hold mu before starting the watcher: its Broadcast cannot run until
	// cond.Wait releases mu, so a cancellation is never missed.
	s.mu.Lock()
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Broadcast()
		case <-waitDone:
		}
	}()

	s.cond.Wait()
	s.mu.Unlock()
	close(waitDone)

	return ctx.Err()
}
