package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/flowrun/internal/config"
	"github.com/me/flowrun/internal/store"
	"github.com/me/flowrun/pkg/model"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return New(config.DefaultServer(), st, logger), st
}

func doRequest(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, model.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var resp model.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response envelope: %v (body %s)", err, rec.Body.String())
	}
	return rec, resp
}

func seedRun(t *testing.T, st store.Store) (*model.Run, *model.Task) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	run := &model.Run{ID: "run_api", Name: "api-test", State: model.RunStateRunning, CreatedAt: now}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	code := 0
	task := &model.Task{
		ID:        "task_api",
		RunID:     run.ID,
		Name:      "hello",
		State:     model.TaskStateSuccess,
		Category:  model.CategoryLocal,
		Command:   []string{"echo", "hello"},
		Stdout:    "hello\n",
		ExitCode:  &code,
		CreatedAt: now,
	}
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return run, task
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := doRequest(t, s, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Error != nil {
		t.Errorf("envelope error = %+v, want none", resp.Error)
	}
	if resp.RequestID == "" {
		t.Error("envelope missing request_id")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestServer_GetRunWithSummary(t *testing.T) {
	s, st := newTestServer(t)
	run, _ := seedRun(t, st)

	rec, resp := doRequest(t, s, http.MethodGet, "/api/v1/runs/"+run.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	data, _ := json.Marshal(resp.Data)
	var got model.Run
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("run ID = %q, want %q", got.ID, run.ID)
	}
	if got.TaskSummary.Total != 1 || got.TaskSummary.Success != 1 {
		t.Errorf("task summary = %+v", got.TaskSummary)
	}
}

func TestServer_GetRunNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := doRequest(t, s, http.MethodGet, "/api/v1/runs/run_missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != model.ErrNotFound {
		t.Errorf("error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestServer_ListRuns(t *testing.T) {
	s, st := newTestServer(t)
	seedRun(t, st)

	rec, resp := doRequest(t, s, http.MethodGet, "/api/v1/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp.Pagination == nil || resp.Pagination.Total != 1 {
		t.Errorf("pagination = %+v, want total 1", resp.Pagination)
	}
}

func TestServer_ListTasks(t *testing.T) {
	s, st := newTestServer(t)
	run, task := seedRun(t, st)

	rec, resp := doRequest(t, s, http.MethodGet, "/api/v1/runs/"+run.ID+"/tasks")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	data, _ := json.Marshal(resp.Data)
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Errorf("tasks = %+v", tasks)
	}
}

func TestServer_TaskLogs(t *testing.T) {
	s, st := newTestServer(t)
	_, task := seedRun(t, st)

	rec, resp := doRequest(t, s, http.MethodGet, "/api/v1/tasks/"+task.ID+"/logs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	logs, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("logs payload = %T", resp.Data)
	}
	if logs["stdout"] != "hello\n" {
		t.Errorf("stdout = %v, want %q", logs["stdout"], "hello\n")
	}
}

func TestServer_ListRunsRejectsBadLimit(t *testing.T) {
	s, _ := newTestServer(t)

	rec, resp := doRequest(t, s, http.MethodGet, "/api/v1/runs?limit=lots")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != model.ErrValidation {
		t.Errorf("error = %+v, want VALIDATION_ERROR", resp.Error)
	}
	if resp.Data != nil {
		t.Errorf("error envelope carries data: %v", resp.Data)
	}
}

func TestServer_GetTaskNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := doRequest(t, s, http.MethodGet, "/api/v1/tasks/task_missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
