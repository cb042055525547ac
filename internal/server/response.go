package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/me/flowrun/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success envelope around data.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, model.Envelope{RequestID: reqID, Data: data})
}

// respondList writes a success envelope with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, model.Envelope{RequestID: reqID, Data: data, Pagination: pg})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, model.Envelope{RequestID: reqID, Error: apiErr})
}

func respondJSON(w http.ResponseWriter, status int, env model.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
