package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	maxBodyBytes = 1 << 20 // 1MB

	msgUnexpected       = "An unexpected error occurred. Please try again later."
	msgNotFound         = "Task was not found."
	msgUpdateNotFound   = "Task to update was not found."
	msgDeleteNotFound   = "Task to delete was not found."
	msgIDMismatch       = "Id does not match task to update."
	msgValidationFailed = "One or more validation errors occurred."
)

type errResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

type handlers struct {
	svc    *Service
	logger *slog.Logger
}

func RegisterRoutes(r chi.Router, svc *Service, logger *slog.Logger) {
	h := &handlers{svc: svc, logger: logger}

	r.Route("/api/task", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.Post("/", h.createTask)
		r.Get("/{id}", h.getTask)
		r.Put("/{id}", h.updateTask)
		r.Delete("/{id}", h.deleteTask)
	})
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.List(r.Context())
	if err != nil {
		h.internalError(w, r, "list", err)
		return
	}
	if len(tasks) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	t, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResponse{Error: msgNotFound})
		return
	}
	if err != nil {
		h.internalError(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var in Input
	if !decodeBody(w, r, &in) {
		return
	}

	t, err := h.svc.Create(r.Context(), in)
	if writeValidation(w, err) {
		return
	}
	if err != nil {
		h.internalError(w, r, "create", err)
		return
	}

	w.Header().Set("Location", "/api/task/"+strconv.FormatInt(t.ID, 10))
	writeJSON(w, http.StatusCreated, t)
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in Input
	if !decodeBody(w, r, &in) {
		return
	}

	ack, err := h.svc.Update(r.Context(), id, in)
	if writeValidation(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrIDMismatch):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: msgIDMismatch})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: msgUpdateNotFound})
	case err != nil:
		h.internalError(w, r, "update", err)
	default:
		writeText(w, http.StatusOK, ack)
	}
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	ack, err := h.svc.Delete(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: msgDeleteNotFound})
	case err != nil:
		h.internalError(w, r, "delete", err)
	default:
		writeText(w, http.StatusOK, ack)
	}
}

// internalError logs the cause and answers with a generic 500; the cause
// never reaches the client.
func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.ErrorContext(r.Context(), "task_"+op+"_failed",
		slog.String("error", err.Error()),
		slog.String("req_id", chimw.GetReqID(r.Context())),
	)
	writeJSON(w, http.StatusInternalServerError, errResponse{Error: msgUnexpected})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_id"})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
		return false
	}
	return true
}

func writeValidation(w http.ResponseWriter, err error) bool {
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, errResponse{
		Error:   msgValidationFailed,
		Details: vErr.Fields,
	})
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
