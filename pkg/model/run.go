package model

import "time"

// Run is one execution of a pipeline: the session that owns a batch of
// Tasks from submission through completion.
type Run struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	State       RunState          `json:"state"`
	Labels      map[string]string `json:"labels,omitempty"`
	Tasks       []Task            `json:"tasks,omitempty"`
	TaskSummary TaskSummary       `json:"task_summary,omitempty"` // Computed field, not stored
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at"`
}

// IsTerminated reports whether the run's session has ended. Tasks must
// not be submitted on behalf of a terminated run.
func (r *Run) IsTerminated() bool {
	return r.State.IsTerminal()
}

// TaskSummary provides an aggregate count of task states within a Run.
type TaskSummary struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Queued  int `json:"queued"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// ComputeTaskSummary calculates the TaskSummary from a slice of Tasks.
func ComputeTaskSummary(tasks []Task) TaskSummary {
	s := TaskSummary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.State {
		case TaskStatePending:
			s.Pending++
		case TaskStateQueued:
			s.Queued++
		case TaskStateRunning:
			s.Running++
		case TaskStateSuccess:
			s.Success++
		case TaskStateFailed:
			s.Failed++
		}
	}
	return s
}
