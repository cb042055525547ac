package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/me/flowrun/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStore_RunRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	run := &model.Run{
		ID:        "run_1",
		Name:      "demo",
		State:     model.RunStatePending,
		Labels:    map[string]string{"env": "test"},
		CreatedAt: now,
	}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := st.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for existing run")
	}
	if got.Name != "demo" || got.State != model.RunStatePending || got.Labels["env"] != "test" {
		t.Errorf("round-tripped run = %+v", got)
	}

	completed := time.Now().UTC()
	run.State = model.RunStateCompleted
	run.CompletedAt = &completed
	if err := st.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, _ = st.GetRun(ctx, "run_1")
	if got.State != model.RunStateCompleted || got.CompletedAt == nil {
		t.Errorf("updated run = %+v", got)
	}
}

func TestSQLiteStore_GetRunMissing(t *testing.T) {
	st := newTestStore(t)

	got, err := st.GetRun(context.Background(), "run_nope")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun for missing id = %+v, want nil", got)
	}
}

func TestSQLiteStore_TaskRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := st.CreateRun(ctx, &model.Run{ID: "run_t", Name: "t", State: model.RunStateRunning, CreatedAt: now}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	task := &model.Task{
		ID:        "task_1",
		RunID:     "run_t",
		Name:      "hello",
		State:     model.TaskStatePending,
		Category:  model.CategoryLocal,
		Command:   []string{"echo", "hello"},
		Env:       map[string]string{"GREETING": "hi"},
		CreatedAt: now,
	}
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	got, err := st.GetTask(ctx, "task_1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got == nil {
		t.Fatal("GetTask returned nil for existing task")
	}
	if len(got.Command) != 2 || got.Command[0] != "echo" {
		t.Errorf("Command = %v", got.Command)
	}
	if got.Env["GREETING"] != "hi" {
		t.Errorf("Env = %v", got.Env)
	}

	code := 0
	started := now.Add(time.Second)
	completed := now.Add(2 * time.Second)
	task.State = model.TaskStateSuccess
	task.Stdout = "hello\n"
	task.ExitCode = &code
	task.StartedAt = &started
	task.CompletedAt = &completed
	if err := st.UpdateTask(ctx, task); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}

	got, _ = st.GetTask(ctx, "task_1")
	if got.State != model.TaskStateSuccess || got.Stdout != "hello\n" {
		t.Errorf("updated task = %+v", got)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", got.ExitCode)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("timestamps not persisted")
	}
}

func TestSQLiteStore_ListTasksByRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"task_a", "task_b", "task_c"} {
		task := &model.Task{
			ID:        id,
			RunID:     "run_list",
			Name:      id,
			State:     model.TaskStatePending,
			Category:  model.CategoryLocal,
			Command:   []string{"true"},
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := st.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask %s: %v", id, err)
		}
	}

	tasks, err := st.ListTasksByRun(ctx, "run_list")
	if err != nil {
		t.Fatalf("ListTasksByRun: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len(tasks) = %d, want 3", len(tasks))
	}
	if tasks[0].ID != "task_a" {
		t.Errorf("tasks not ordered by created_at: first = %s", tasks[0].ID)
	}
}

func TestSQLiteStore_GetTasksByState(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	states := []model.TaskState{model.TaskStatePending, model.TaskStateRunning, model.TaskStatePending}
	for i, state := range states {
		task := &model.Task{
			ID:        "task_" + string(rune('a'+i)),
			RunID:     "run_s",
			Name:      "n",
			State:     state,
			Category:  model.CategoryLocal,
			Command:   []string{"true"},
			CreatedAt: now,
		}
		if err := st.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
	}

	pending, err := st.GetTasksByState(ctx, model.TaskStatePending)
	if err != nil {
		t.Fatalf("GetTasksByState: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending tasks = %d, want 2", len(pending))
	}
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		run := &model.Run{
			ID:        "run_" + string(rune('a'+i)),
			Name:      "r",
			State:     model.RunStatePending,
			CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, total, err := st.ListRuns(ctx, model.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(runs) != 2 {
		t.Errorf("len(runs) = %d, want 2", len(runs))
	}
	// Newest first.
	if runs[0].ID != "run_c" {
		t.Errorf("first run = %s, want run_c", runs[0].ID)
	}

	running, _, err := st.ListRuns(ctx, model.ListOptions{State: string(model.RunStateRunning)})
	if err != nil {
		t.Fatalf("ListRuns filtered: %v", err)
	}
	if len(running) != 0 {
		t.Errorf("running runs = %d, want 0", len(running))
	}
}

func TestSQLiteStore_UpdateMissingTask(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateTask(context.Background(), &model.Task{ID: "task_ghost", CreatedAt: time.Now()})
	if err == nil {
		t.Error("UpdateTask for missing id returned nil error")
	}
}
