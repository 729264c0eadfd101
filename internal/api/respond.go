package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-quiz/internal/pipeline"
)

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Error: &apiError{Code: code, Message: message},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondPipelineError writes a classified failure. Internal causes are logged, never sent.
func respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		slog.Error("unclassified request failure", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Something went wrong, please try again.")
		return
	}
	if perr.Kind.Status() >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "kind", perr.Kind, "error", err)
	}
	respondError(w, perr.Kind.Status(), string(perr.Kind), perr.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
