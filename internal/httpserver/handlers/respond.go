package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/engine"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

type taskResponse struct {
	ID     string `json:"id"`
	Op     string `json:"op"`
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBusy), errors.Is(err, domain.ErrPendingOperations):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidBookmark):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrServerError), errors.Is(err, domain.ErrUnknown):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, d deps.Deps, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		d.Logger.Error("request failed", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// await waits for task up to the request timeout. It reports false after
// answering 202 or an error; true means the task succeeded and the caller
// writes the response.
func await(w http.ResponseWriter, r *http.Request, d deps.Deps, task *engine.Task) bool {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	err := task.Wait(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		writeJSON(w, http.StatusAccepted, taskResponse{ID: task.ID(), Op: string(task.Op()), Status: "running"})
		return false
	default:
		writeError(w, d, err)
		return false
	}
}
