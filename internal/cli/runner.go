package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/flowrun/internal/config"
	"github.com/me/flowrun/internal/dispatch"
	"github.com/me/flowrun/internal/executor"
	"github.com/me/flowrun/internal/monitor"
	"github.com/me/flowrun/internal/pipeline"
	"github.com/me/flowrun/internal/processor"
	"github.com/me/flowrun/internal/store"
	"github.com/me/flowrun/pkg/model"
)

// runSession adapts the Run record to the dispatch.Session contract.
type runSession struct {
	run *model.Run
}

func (s *runSession) IsTerminated() bool {
	return s.run.IsTerminated()
}

// Runner wires the dispatch core to its concrete collaborators and
// drives one pipeline from submission to a terminal run state.
type Runner struct {
	store  store.Store
	config config.Config
	logger *slog.Logger
}

// NewRunner creates a Runner over st.
func NewRunner(st store.Store, cfg config.Config, logger *slog.Logger) *Runner {
	return &Runner{store: st, config: cfg, logger: logger}
}

// Execute materializes the pipeline, submits every task through the
// gateway, waits for all tasks to settle, and finalizes the run record.
func (r *Runner) Execute(ctx context.Context, f *pipeline.File) (*model.Run, error) {
	run, tasks := f.Materialize()

	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	for _, task := range tasks {
		if err := r.store.CreateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("create task %s: %w", task.Name, err)
		}
	}

	proc := processor.NewStoreProcessor(r.store, r.logger)
	registry := dispatch.NewRegistry(r.logger)
	router := dispatch.NewRouter(r.logger, dispatch.WithFallbackProcessor(proc))

	local := executor.NewLocal(executor.LocalConfig{
		WorkDir:   r.config.WorkDir,
		QueueSize: r.config.QueueSize,
		Workers:   r.config.Workers,
		Poll:      monitor.Config{Interval: r.config.PollInterval},
	}, registry, router, r.logger)
	defer local.Stop()

	// Pipeline definition is done; the registry leaves its
	// single-threaded registration phase here.
	registry.Start()
	defer registry.Stop()

	if err := transitionRun(run, model.RunStateRunning); err != nil {
		return nil, err
	}
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("mark run running: %w", err)
	}

	gateway := dispatch.NewGateway(&runSession{run: run}, r.logger)

	var submitErr error
	submitted := make(map[string]bool)
	for i, task := range tasks {
		spec := f.Tasks[i]
		dt := &dispatch.Task{Record: task, Processor: proc, Executor: local}

		if err := gateway.Submit(ctx, dt, !spec.Detach); err != nil {
			submitErr = err
			r.logger.Error("submit failed", "task", task.Name, "error", err)
			break
		}
		submitted[task.ID] = true
	}

	if err := r.waitForTasks(ctx, run.ID, submitted); err != nil && submitErr == nil {
		submitErr = err
	}

	if err := r.finalizeRun(ctx, run); err != nil {
		return run, err
	}
	return run, submitErr
}

// waitForTasks blocks until every submitted task of the run is terminal
// or ctx expires. Detached submissions may still be in flight when the
// submission loop finishes; tasks that never reached the gateway are not
// waited on.
func (r *Runner) waitForTasks(ctx context.Context, runID string, submitted map[string]bool) error {
	if len(submitted) == 0 {
		return nil
	}

	interval := r.config.PollInterval
	if interval <= 0 {
		interval = config.Default().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tasks, err := r.store.ListTasksByRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		settled := true
		for _, task := range tasks {
			if submitted[task.ID] && !task.State.IsTerminal() {
				settled = false
				break
			}
		}
		if settled {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// transitionRun advances the run through the lifecycle table, leaving
// it untouched when the step is not allowed.
func transitionRun(run *model.Run, next model.RunState) error {
	if !run.State.CanTransitionTo(next) {
		return &model.InvalidTransitionError{
			Entity: "run", ID: run.ID,
			From: run.State.String(), To: next.String(),
		}
	}
	run.State = next
	return nil
}

// finalizeRun derives the run's terminal state from its tasks.
func (r *Runner) finalizeRun(ctx context.Context, run *model.Run) error {
	tasks, err := r.store.ListTasksByRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	state := model.RunStateCompleted
	for _, task := range tasks {
		if task.State != model.TaskStateSuccess {
			state = model.RunStateFailed
			break
		}
	}

	if err := transitionRun(run, state); err != nil {
		return err
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	r.logger.Info("run finished", "run_id", run.ID, "state", state)
	return nil
}
