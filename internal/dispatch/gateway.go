package dispatch

import (
	"context"
	"fmt"
	"log/slog"
)

// SessionTerminatedError is returned by Gateway.Submit when the owning
// session has already terminated. The task never reaches its executor.
type SessionTerminatedError struct {
	TaskID string
}

func (e *SessionTerminatedError) Error() string {
	return fmt.Sprintf("session terminated: task %s was not submitted", e.TaskID)
}

// Gateway is the single entry point through which tasks are handed to
// executors. It holds no queue itself; back-pressure is the executor's
// concern.
type Gateway struct {
	session Session
	logger  *slog.Logger
}

// NewGateway creates a Gateway for one session.
func NewGateway(session Session, logger *slog.Logger) *Gateway {
	return &Gateway{
		session: session,
		logger:  logger.With("component", "gateway"),
	}
}

// Submit forwards task to its executor. With blocking=true the call
// suspends until the task's terminal notification releases the handle,
// or ctx is cancelled. With blocking=false it returns as soon as the
// executor accepts the task.
//
// Submission on a terminated session fails with *SessionTerminatedError
// before the executor is consulted.
func (g *Gateway) Submit(ctx context.Context, task *Task, blocking bool) error {
	if g.session.IsTerminated() {
		g.logger.Warn("submission refused, session terminated", "task_id", task.Record.ID)
		return &SessionTerminatedError{TaskID: task.Record.ID}
	}

	handle, err := task.Executor.SubmitTask(ctx, task, blocking)
	if err != nil {
		return fmt.Errorf("submit task %s: %w", task.Record.ID, err)
	}
	g.logger.Debug("task submitted",
		"task_id", task.Record.ID,
		"category", task.Executor.Category(),
		"blocking", blocking,
	)

	// A nil handle means the executor declined or completed the task
	// synchronously; there is nothing to wait on.
	if handle == nil || !blocking {
		return nil
	}

	if err := handle.Await(ctx); err != nil {
		return fmt.Errorf("await task %s: %w", task.Record.ID, err)
	}
	return nil
}
