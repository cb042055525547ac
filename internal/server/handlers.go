package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/flowrun/pkg/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	var parseErr error
	if v := r.URL.Query().Get("limit"); v != "" {
		if opts.Limit, parseErr = strconv.Atoi(v); parseErr != nil {
			respondError(w, reqID, http.StatusBadRequest,
				&model.APIError{Code: model.ErrValidation, Message: "limit must be an integer"})
			return
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if opts.Offset, parseErr = strconv.Atoi(v); parseErr != nil {
			respondError(w, reqID, http.StatusBadRequest,
				&model.APIError{Code: model.ErrValidation, Message: "offset must be an integer"})
			return
		}
	}
	opts.State = r.URL.Query().Get("state")
	opts.Normalize()

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	respondList(w, reqID, runs, model.NewPagination(total, opts, len(runs)))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}

	tasks, err := s.store.ListTasksByRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	for _, task := range tasks {
		run.Tasks = append(run.Tasks, *task)
	}
	run.TaskSummary = model.ComputeTaskSummary(run.Tasks)

	respondOK(w, reqID, run)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	runID := chi.URLParam(r, "id")

	tasks, err := s.store.ListTasksByRun(r.Context(), runID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	respondList(w, reqID, tasks, &model.Pagination{
		Total:   len(tasks),
		Limit:   len(tasks),
		Offset:  0,
		HasMore: false,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tid := chi.URLParam(r, "tid")

	task, err := s.store.GetTask(r.Context(), tid)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if task == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", tid))
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleGetTaskLogs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tid := chi.URLParam(r, "tid")

	task, err := s.store.GetTask(r.Context(), tid)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if task == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", tid))
		return
	}

	respondOK(w, reqID, map[string]any{
		"task_id":   task.ID,
		"name":      task.Name,
		"stdout":    task.Stdout,
		"stderr":    task.Stderr,
		"exit_code": task.ExitCode,
	})
}
