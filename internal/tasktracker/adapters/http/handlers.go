package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/platform/web"
	"github.com/viralforge/taskboard/internal/tasktracker/application"
	"github.com/viralforge/taskboard/internal/tasktracker/domain"
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	web.Message(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	web.Message(w, http.StatusOK, "ready")
}

// authMiddleware resolves the bearer token to a caller identity through the
// cache-first authenticate path before any task handler runs.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := web.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "auth_middleware")
			return
		}

		identity, err := h.service.Authenticate(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "auth_middleware", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyIdentity, identity)))
	})
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	v := ctx.Value(ctxKeyIdentity)
	identity, ok := v.(domain.Identity)
	return identity, ok
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "create_task")
		return
	}

	var req application.CreateTaskRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_task", err)
		return
	}

	res, err := h.service.CreateTask(r.Context(), caller, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_task", err)
		return
	}
	web.Success(w, http.StatusCreated, res)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "list_tasks")
		return
	}

	res, err := h.service.ListTasks(r.Context(), caller)
	if err != nil {
		writeMappedError(r.Context(), w, "list_tasks", err)
		return
	}
	web.Success(w, http.StatusOK, res)
}

func (h *Handler) completeTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "complete_task")
		return
	}

	taskID, err := uuid.Parse(chi.URLParam(r, "task_id"))
	if err != nil {
		// An unparseable id names nothing, same as an unknown one.
		writeMappedError(r.Context(), w, "complete_task", domain.ErrNotFound)
		return
	}

	res, err := h.service.CompleteTask(r.Context(), caller, taskID)
	if err != nil {
		writeMappedError(r.Context(), w, "complete_task", err)
		return
	}
	web.Success(w, http.StatusOK, res)
}

func (h *Handler) shuffleTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "shuffle_tasks")
		return
	}

	res, err := h.service.ShuffleTasks(r.Context(), caller)
	if err != nil {
		writeMappedError(r.Context(), w, "shuffle_tasks", err)
		return
	}
	web.Success(w, http.StatusOK, res)
}
