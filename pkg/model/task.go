package model

import "time"

// Task is a concrete, schedulable unit of work within a Run.
type Task struct {
	ID       string           `json:"id"`
	RunID    string           `json:"run_id"`
	Name     string           `json:"name"`
	State    TaskState        `json:"state"`
	Category ExecutorCategory `json:"category"`

	// Command is the program and arguments handed to the executor.
	Command []string          `json:"command"`
	Env     map[string]string `json:"env,omitempty"`

	// WorkDir is the executor-assigned working directory, set once the
	// task has been accepted.
	WorkDir string `json:"work_dir,omitempty"`

	Stdout   string `json:"-"`
	Stderr   string `json:"-"`
	ExitCode *int   `json:"exit_code,omitempty"`

	// Error holds the failure message for tasks that never produced an
	// exit code (spawn failures, monitor-reported errors).
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Succeeded reports whether the task completed with exit code zero.
func (t *Task) Succeeded() bool {
	return t.ExitCode != nil && *t.ExitCode == 0 && t.Error == ""
}
