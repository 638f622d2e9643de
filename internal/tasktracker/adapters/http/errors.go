package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/viralforge/taskboard/internal/platform/web"
	"github.com/viralforge/taskboard/internal/tasktracker/domain"
)

// mapDomainError translates task-board domain sentinels into the wire
// taxonomy shared with the identity API.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, domain.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	web.LogOperationError(ctx, operation, status, code, msg, err)
	web.Error(w, status, code, msg)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	web.LogOperationError(ctx, operation, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
	web.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
}

func writeMissingBearerError(ctx context.Context, w http.ResponseWriter, operation string) {
	web.LogOperationError(ctx, operation, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
	web.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
}
