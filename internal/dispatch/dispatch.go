// Package dispatch is the coordination core of flowrun: it owns the
// binding of executor categories to monitors, the task submission path,
// and the routing of lifecycle notifications back to processors.
//
// Every task enters execution through Gateway.Submit and every outcome
// is reported through Router. The package holds no queue of its own;
// back-pressure is delegated to the executor behind each task.
package dispatch

import (
	"context"

	"github.com/me/flowrun/pkg/model"
)

// Session is the run context that owns submitted tasks. Submission is
// refused once the session reports terminated.
type Session interface {
	IsTerminated() bool
}

// Processor owns the post-processing of a task's terminal event.
// FinalizeTask is invoked once per terminal notification; idempotency of
// its side effects is the processor's responsibility. HandleException
// receives execution errors; task is nil for errors with no task context.
type Processor interface {
	FinalizeTask(ctx context.Context, task *model.Task) error
	HandleException(ctx context.Context, err error, task *model.Task)
}

// Executor is a pluggable backend that accepts Tasks for execution.
// SubmitTask returns a Handle for the accepted task, or nil if the
// executor completed it synchronously. Executors providing blocking
// semantics must implement a bounded queue whose insertion blocks the
// submitting goroutine when full.
type Executor interface {
	Category() model.ExecutorCategory
	SubmitTask(ctx context.Context, task *Task, blocking bool) (*Handle, error)
}

// Monitor watches submitted tasks for a single executor category and
// reports their lifecycle events to the Router. How a monitor detects
// completion is its own concern.
type Monitor interface {
	Start()
	Stop()
}

// MonitorFactory constructs a Monitor. It is invoked at most once per
// executor category by the Registry.
type MonitorFactory func() Monitor

// Task is the dispatch-facing view of one schedulable unit: the
// persistent record plus the collaborators that execute and finalize it.
type Task struct {
	Record    *model.Task
	Processor Processor
	Executor  Executor
}
