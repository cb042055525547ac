package store

import (
	"context"

	"github.com/me/flowrun/pkg/model"
)

// Store defines the persistence layer for flowrun entities.
type Store interface {
	// Run CRUD
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRun(ctx context.Context, run *model.Run) error

	// Task operations
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasksByRun(ctx context.Context, runID string) ([]*model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	GetTasksByState(ctx context.Context, state model.TaskState) ([]*model.Task, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
