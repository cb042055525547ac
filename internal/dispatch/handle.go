package dispatch

import "context"

// Handle is the submission-time receipt for a task: the task itself plus
// an optional completion latch. Executors create one per accepted task;
// the latch is present only for blocking submissions.
type Handle struct {
	Task  *Task
	latch *Latch
}

// NewHandle creates a Handle for task. When blocking is true the handle
// carries a completion latch for the submitter to wait on.
func NewHandle(task *Task, blocking bool) *Handle {
	h := &Handle{Task: task}
	if blocking {
		h.latch = NewLatch()
	}
	return h
}

// Await blocks until the handle's terminal notification fires or ctx is
// cancelled. A handle without a latch returns immediately.
func (h *Handle) Await(ctx context.Context) error {
	if h.latch == nil {
		return nil
	}
	return h.latch.Await(ctx)
}

// Release counts down the completion latch, if any. Idempotent.
func (h *Handle) Release() {
	if h.latch != nil {
		h.latch.CountDown()
	}
}

// Blocking reports whether a submitter may be waiting on this handle.
func (h *Handle) Blocking() bool {
	return h.latch != nil
}
