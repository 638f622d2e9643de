package ports

import (
	"context"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
)

// IdentityVerifier is the synchronous fallback to the identity service used
// when the local cache cannot answer for a token.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, token string) (domain.Identity, error)
}
