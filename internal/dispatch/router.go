package dispatch

import (
	"context"
	"log/slog"
)

// Router receives lifecycle notifications from monitors and drives task
// finalization plus release of blocked submitters. Monitors for
// different categories invoke it concurrently; each call touches only
// its own handle.
type Router struct {
	logger   *slog.Logger
	fallback Processor // handles errors that carry no task context
}

// RouterOption configures optional Router dependencies.
type RouterOption func(*Router)

// WithFallbackProcessor sets the processor that receives errors reported
// without a handle.
func WithFallbackProcessor(p Processor) RouterOption {
	return func(r *Router) { r.fallback = p }
}

// NewRouter creates a Router.
func NewRouter(logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{logger: logger.With("component", "router")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NotifyStarted records that the task behind handle has begun executing.
// It carries no required effect; it exists as the observer extension
// point for monitors that can detect the start transition.
func (r *Router) NotifyStarted(handle *Handle) {
	r.logger.Debug("task started", "task_id", handle.Task.Record.ID)
}

// NotifyTerminated finalizes the task behind handle and releases any
// blocked submitter. Finalization runs regardless of the task's logical
// outcome; success/failure classification belongs to the processor.
// The latch release is idempotent, so a duplicate terminal notification
// cannot strand or re-wake a submitter.
func (r *Router) NotifyTerminated(ctx context.Context, handle *Handle) {
	task := handle.Task
	if err := task.Processor.FinalizeTask(ctx, task.Record); err != nil {
		r.logger.Error("finalize task", "task_id", task.Record.ID, "error", err)
	}
	handle.Release()
	r.logger.Debug("task terminated", "task_id", task.Record.ID)
}

// NotifyError delegates err to the owning processor's exception handler.
// handle may be nil for errors with no task context, in which case the
// fallback processor (if any) receives the error with a nil task.
// An error notification is terminal: the handle's latch is released so a
// blocked submitter is not stranded by a failed task.
//
// Calling NotifyError with neither an error nor a handle is a
// programming error and panics.
func (r *Router) NotifyError(ctx context.Context, err error, handle *Handle) {
	if err == nil && handle == nil {
		panic("dispatch: NotifyError called with neither an error nor a handle")
	}

	if handle == nil {
		if r.fallback != nil {
			r.fallback.HandleException(ctx, err, nil)
		} else {
			r.logger.Error("task error with no handle", "error", err)
		}
		return
	}

	task := handle.Task
	task.Processor.HandleException(ctx, err, task.Record)
	handle.Release()
	r.logger.Debug("task errored", "task_id", task.Record.ID, "error", err)
}
