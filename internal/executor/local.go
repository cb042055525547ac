// Package executor provides concrete dispatch.Executor backends.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/me/flowrun/internal/dispatch"
	"github.com/me/flowrun/internal/monitor"
	"github.com/me/flowrun/pkg/model"
)

// LocalConfig holds configuration for the local executor.
type LocalConfig struct {
	WorkDir   string // root for per-task working directories; os.TempDir() when empty
	QueueSize int    // bounded queue capacity; inserts block when full
	Workers   int    // concurrent worker goroutines
	Poll      monitor.Config
}

// DefaultLocalConfig returns sensible defaults.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		QueueSize: 16,
		Workers:   4,
		Poll:      monitor.DefaultConfig(),
	}
}

// run is the executor-private execution state of one accepted task. The
// monitor's probe reads it; the worker goroutine writes it.
type run struct {
	mu    sync.Mutex
	state model.TaskState
	err   error // infrastructure failure (spawn error), not a nonzero exit
}

func (r *run) get() (model.TaskState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.err
}

func (r *run) set(state model.TaskState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.err = err
}

// Local runs tasks as local OS processes behind a bounded queue. The
// queue is a buffered channel: when it is full, SubmitTask blocks the
// submitting goroutine until a worker drains an entry. Completion is
// detected by the category's shared monitor, obtained from the Registry.
type Local struct {
	config LocalConfig
	mon    *monitor.Poller
	logger *slog.Logger

	queue  chan *dispatch.Handle
	stopCh chan struct{}

	mu   sync.Mutex
	runs map[string]*run // task ID → live state

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLocal creates a Local executor. Its monitor is bound through the
// registry, so every local executor in the process shares one monitor.
func NewLocal(cfg LocalConfig, registry *dispatch.Registry, router *dispatch.Router, logger *slog.Logger) *Local {
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultLocalConfig().QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultLocalConfig().Workers
	}

	e := &Local{
		config: cfg,
		logger: logger.With("component", "local-executor"),
		queue:  make(chan *dispatch.Handle, cfg.QueueSize),
		stopCh: make(chan struct{}),
		runs:   make(map[string]*run),
	}

	mon := registry.GetOrCreate(model.CategoryLocal, func() dispatch.Monitor {
		return monitor.NewPoller(model.CategoryLocal, router, cfg.Poll, logger)
	})
	e.mon = mon.(*monitor.Poller)

	e.startWorkers()
	return e
}

// Category returns model.CategoryLocal.
func (e *Local) Category() model.ExecutorCategory {
	return model.CategoryLocal
}

// SubmitTask accepts task into the bounded queue and returns its handle.
// When the queue is full the call blocks until capacity frees or ctx is
// cancelled. The handle is registered with the monitor before the task
// can run, so no completion is ever missed.
func (e *Local) SubmitTask(ctx context.Context, task *dispatch.Task, blocking bool) (*dispatch.Handle, error) {
	rec := task.Record

	r := &run{state: model.TaskStateQueued}
	e.mu.Lock()
	e.runs[rec.ID] = r
	e.mu.Unlock()

	h := dispatch.NewHandle(task, blocking)

	// Stamp the record before the enqueue: once a worker holds the
	// handle the record belongs to the worker goroutine.
	rec.State = model.TaskStateQueued

	select {
	case e.queue <- h:
	case <-ctx.Done():
		rec.State = model.TaskStatePending
		e.dropRun(rec.ID)
		return nil, ctx.Err()
	case <-e.stopCh:
		rec.State = model.TaskStatePending
		e.dropRun(rec.ID)
		return nil, fmt.Errorf("local executor stopped")
	}

	// The probe reads the live run state, so watching after the enqueue
	// cannot miss a completion: a task that already finished reports its
	// terminal state on the first tick.
	e.mon.Watch(h, func(context.Context) (model.TaskState, error) {
		return r.get()
	})

	e.logger.Debug("task queued", "task_id", rec.ID, "blocking", blocking)
	return h, nil
}

func (e *Local) dropRun(id string) {
	e.mu.Lock()
	delete(e.runs, id)
	e.mu.Unlock()
}

// Stop drains no further work: workers exit after their current task.
func (e *Local) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
	})
}

func (e *Local) startWorkers() {
	e.startOnce.Do(func() {
		for i := 0; i < e.config.Workers; i++ {
			e.wg.Add(1)
			go e.worker()
		}
		e.logger.Info("workers started", "workers", e.config.Workers, "queue_size", e.config.QueueSize)
	})
}

func (e *Local) worker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case h := <-e.queue:
			e.execute(h)
		}
	}
}

// execute runs one task to completion and records the outcome for the
// monitor's probe to observe.
func (e *Local) execute(h *dispatch.Handle) {
	rec := h.Task.Record

	e.mu.Lock()
	r := e.runs[rec.ID]
	e.mu.Unlock()

	// The probe holds r directly, so the map entry is only needed until
	// the task settles.
	defer e.dropRun(rec.ID)

	if len(rec.Command) == 0 {
		r.set(model.TaskStateFailed, fmt.Errorf("task %s: empty command", rec.ID))
		return
	}

	taskDir := filepath.Join(e.config.WorkDir, rec.ID)
	if err := os.MkdirAll(taskDir, 0o755); err != nil {
		r.set(model.TaskStateFailed, fmt.Errorf("task %s: create work dir: %w", rec.ID, err))
		return
	}
	rec.WorkDir = taskDir

	now := time.Now().UTC()
	rec.StartedAt = &now
	rec.State = model.TaskStateRunning
	r.set(model.TaskStateRunning, nil)
	e.logger.Debug("task running", "task_id", rec.ID, "command", rec.Command[0])

	cmd := exec.Command(rec.Command[0], rec.Command[1:]...)
	cmd.Dir = taskDir
	cmd.Env = os.Environ()
	for k, v := range rec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	rec.Stdout = stdout.String()
	rec.Stderr = stderr.String()
	completed := time.Now().UTC()
	rec.CompletedAt = &completed

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			// The command ran and failed: an ordinary terminal outcome.
			code := exitErr.ExitCode()
			rec.ExitCode = &code
			r.set(model.TaskStateFailed, nil)
			e.logger.Debug("task failed", "task_id", rec.ID, "exit_code", code)
			return
		}
		// The command never ran: infrastructure failure.
		rec.Error = err.Error()
		r.set(model.TaskStateFailed, fmt.Errorf("task %s: spawn: %w", rec.ID, err))
		return
	}

	code := 0
	rec.ExitCode = &code
	r.set(model.TaskStateSuccess, nil)
	e.logger.Debug("task succeeded", "task_id", rec.ID)
}
