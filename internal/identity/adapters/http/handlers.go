package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/identity/application"
	"github.com/viralforge/taskboard/internal/identity/domain"
	"github.com/viralforge/taskboard/internal/platform/web"
)

type ctxKey int

const ctxKeyVerified ctxKey = iota

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	web.Message(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	web.Message(w, http.StatusOK, "ready")
}

// authMiddleware verifies the bearer token against the live account record
// before letting a request reach the account handlers.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := web.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "auth_middleware")
			return
		}

		identity, err := h.service.VerifyToken(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "auth_middleware", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyVerified, identity)))
	})
}

func verifiedFromContext(ctx context.Context) (application.VerifyResponse, bool) {
	v := ctx.Value(ctxKeyVerified)
	identity, ok := v.(application.VerifyResponse)
	return identity, ok
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req application.SignupRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		writeValidationError(r.Context(), w, "signup", err)
		return
	}

	res, err := h.service.Signup(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "signup", err)
		return
	}
	web.Success(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	web.Success(w, http.StatusOK, res)
}

// verify is the synchronous fallback used by downstream services when their
// identity cache misses. The response body carries the expiry so callers can
// size their cache TTL.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	raw, err := web.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		writeMissingBearerError(r.Context(), w, "verify")
		return
	}

	res, err := h.service.VerifyToken(r.Context(), raw)
	if err != nil {
		writeMappedError(r.Context(), w, "verify", err)
		return
	}
	web.Success(w, http.StatusOK, res)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := verifiedFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "get_account")
		return
	}
	accountID, err := parseAccountID(identity.AccountID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_account", err)
		return
	}

	res, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_account", err)
		return
	}
	web.Success(w, http.StatusOK, res)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := verifiedFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "update_account")
		return
	}
	accountID, err := parseAccountID(identity.AccountID)
	if err != nil {
		writeMappedError(r.Context(), w, "update_account", err)
		return
	}

	var req application.UpdateAccountRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		writeValidationError(r.Context(), w, "update_account", err)
		return
	}

	res, err := h.service.UpdateAccount(r.Context(), accountID, req)
	if err != nil {
		writeMappedError(r.Context(), w, "update_account", err)
		return
	}
	web.Success(w, http.StatusOK, res)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := verifiedFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "delete_account")
		return
	}
	accountID, err := parseAccountID(identity.AccountID)
	if err != nil {
		writeMappedError(r.Context(), w, "delete_account", err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), accountID); err != nil {
		writeMappedError(r.Context(), w, "delete_account", err)
		return
	}
	web.Message(w, http.StatusOK, "account deleted")
}

func parseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized
	}
	return id, nil
}
