package dispatch

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLatch_AwaitReturnsAfterCountDown(t *testing.T) {
	l := NewLatch()

	done := make(chan error, 1)
	go func() {
		done <- l.Await(context.Background())
	}()

	l.CountDown()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Await returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not return after CountDown")
	}
}

func TestLatch_CountDownIsIdempotent(t *testing.T) {
	l := NewLatch()
	l.CountDown()
	l.CountDown() // must not panic or block
	l.CountDown()

	if !l.Released() {
		t.Error("Released() = false after CountDown")
	}
	if err := l.Await(context.Background()); err != nil {
		t.Errorf("Await after release returned error: %v", err)
	}
}

func TestLatch_ConcurrentCountDown(t *testing.T) {
	l := NewLatch()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.CountDown()
		}()
	}
	wg.Wait()

	if !l.Released() {
		t.Error("latch not released after concurrent CountDown")
	}
}

func TestLatch_AwaitHonorsContextCancellation(t *testing.T) {
	l := NewLatch()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Await(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Await returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not return after cancellation")
	}
}

func TestLatch_ReleasedBeforeCountDown(t *testing.T) {
	l := NewLatch()
	if l.Released() {
		t.Error("fresh latch reports released")
	}
}
