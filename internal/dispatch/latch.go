package dispatch

import (
	"context"
	"sync"
)

// Latch is a single-shot completion gate. CountDown releases every
// current and future waiter; releasing an already-released latch is a
// no-op. The zero value is not usable; use NewLatch.
type Latch struct {
	once sync.Once
	ch   chan struct{}
}

// NewLatch creates an unreleased Latch.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{})}
}

// CountDown releases the latch. Safe to call from multiple goroutines
// and more than once.
func (l *Latch) CountDown() {
	l.once.Do(func() { close(l.ch) })
}

// Await blocks until the latch is released or ctx is cancelled.
// Returns ctx.Err() on cancellation, nil on release.
func (l *Latch) Await(ctx context.Context) error {
	select {
	case <-l.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Released reports whether CountDown has been called.
func (l *Latch) Released() bool {
	select {
	case <-l.ch:
		return true
	default:
		return false
	}
}
