// Package processor implements the dispatch.Processor contract on top of
// the persistence layer: terminal task events become durable state.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/flowrun/internal/store"
	"github.com/me/flowrun/pkg/model"
)

// StoreProcessor finalizes tasks by persisting their terminal state.
// Finalization is idempotent: a task already in a terminal state in the
// store is left untouched, so duplicate terminal notifications are
// harmless.
type StoreProcessor struct {
	store  store.Store
	logger *slog.Logger
}

// NewStoreProcessor creates a StoreProcessor backed by st.
func NewStoreProcessor(st store.Store, logger *slog.Logger) *StoreProcessor {
	return &StoreProcessor{
		store:  st,
		logger: logger.With("component", "processor"),
	}
}

// FinalizeTask classifies the task's outcome from its exit code and
// persists the terminal state.
func (p *StoreProcessor) FinalizeTask(ctx context.Context, task *model.Task) error {
	current, err := p.store.GetTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("finalize task %s: %w", task.ID, err)
	}
	if current == nil {
		return fmt.Errorf("finalize task %s: not in store", task.ID)
	}
	if current.State.IsTerminal() {
		p.logger.Debug("task already finalized", "task_id", task.ID, "state", current.State)
		return nil
	}

	final := model.TaskStateFailed
	if task.Succeeded() {
		final = model.TaskStateSuccess
	}
	if !task.State.CanTransitionTo(final) {
		return &model.InvalidTransitionError{
			Entity: "task", ID: task.ID,
			From: task.State.String(), To: final.String(),
		}
	}
	task.State = final
	if task.CompletedAt == nil {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	if err := p.store.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("finalize task %s: %w", task.ID, err)
	}
	p.logger.Info("task finalized", "task_id", task.ID, "state", task.State)
	return nil
}

// HandleException records an execution error. With no task context the
// error is logged as a run-level failure.
func (p *StoreProcessor) HandleException(ctx context.Context, err error, task *model.Task) {
	if task == nil {
		p.logger.Error("execution error", "error", err)
		return
	}
	if !task.State.CanTransitionTo(model.TaskStateFailed) {
		p.logger.Debug("task already terminal", "task_id", task.ID, "state", task.State)
		return
	}

	task.State = model.TaskStateFailed
	if task.Error == "" {
		task.Error = err.Error()
	}
	if task.CompletedAt == nil {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	if uerr := p.store.UpdateTask(ctx, task); uerr != nil {
		p.logger.Error("persist task error", "task_id", task.ID, "error", uerr)
	}
	p.logger.Warn("task errored", "task_id", task.ID, "error", err)
}
