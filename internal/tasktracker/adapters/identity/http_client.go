package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

// HTTPVerifier calls the identity service's verify endpoint.
// It is the synchronous path behind the identity cache; failures of the
// identity service surface as ErrDependencyUnavailable so callers can
// distinguish "bad token" from "cannot tell right now".
type HTTPVerifier struct {
	baseURL string
	client  *http.Client
}

// NewHTTPVerifier builds a verifier against the identity service base URL.
func NewHTTPVerifier(baseURL string, timeout time.Duration) (*HTTPVerifier, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("identity base url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPVerifier{
		baseURL: trimmed,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type verifyEnvelope struct {
	Status string     `json:"status"`
	Data   verifyData `json:"data"`
}

type verifyData struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (v *HTTPVerifier) VerifyToken(ctx context.Context, token string) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/identity/v1/verify", nil)
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: identity verify call failed: %v", domain.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.Identity{}, domain.ErrUnauthorized
	default:
		return domain.Identity{}, fmt.Errorf("%w: identity verify returned %d", domain.ErrDependencyUnavailable, resp.StatusCode)
	}

	var envelope verifyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: decode identity verify response: %v", domain.ErrDependencyUnavailable, err)
	}
	accountID, err := uuid.Parse(envelope.Data.AccountID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: identity verify returned invalid account_id", domain.ErrDependencyUnavailable)
	}

	return domain.Identity{
		AccountID: accountID,
		Username:  envelope.Data.Username,
		Role:      domain.Role(envelope.Data.Role),
		ExpiresAt: envelope.Data.ExpiresAt,
	}, nil
}

var _ ports.IdentityVerifier = (*HTTPVerifier)(nil)
