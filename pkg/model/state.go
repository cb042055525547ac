package model

// TaskState represents the lifecycle state of a Task.
type TaskState string

const (
	TaskStatePending TaskState = "PENDING"
	TaskStateQueued  TaskState = "QUEUED"
	TaskStateRunning TaskState = "RUNNING"
	TaskStateSuccess TaskState = "SUCCESS"
	TaskStateFailed  TaskState = "FAILED"
)

// String returns the string representation of the task state.
func (s TaskState) String() string {
	return string(s)
}

// IsTerminal returns true if the task is in a final state.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSuccess, TaskStateFailed:
		return true
	}
	return false
}

// ValidTaskTransitions defines the allowed state transitions for Tasks.
var ValidTaskTransitions = map[TaskState][]TaskState{
	TaskStatePending: {TaskStateQueued, TaskStateFailed},
	TaskStateQueued:  {TaskStateRunning, TaskStateFailed},
	TaskStateRunning: {TaskStateSuccess, TaskStateFailed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	for _, allowed := range ValidTaskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunState represents the lifecycle state of a Run.
type RunState string

const (
	RunStatePending   RunState = "PENDING"
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateFailed    RunState = "FAILED"
	RunStateCancelled RunState = "CANCELLED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateFailed, RunStateCancelled:
		return true
	}
	return false
}

// ValidRunTransitions defines the allowed state transitions for Runs.
var ValidRunTransitions = map[RunState][]RunState{
	RunStatePending: {RunStateRunning, RunStateCancelled},
	RunStateRunning: {RunStateCompleted, RunStateFailed, RunStateCancelled},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ExecutorCategory identifies the class of execution backend a Task runs on.
// It is used only as the key binding tasks to their shared monitor.
type ExecutorCategory string

const (
	CategoryLocal   ExecutorCategory = "local"
	CategoryCluster ExecutorCategory = "cluster"
	CategoryCloud   ExecutorCategory = "cloud"
)
