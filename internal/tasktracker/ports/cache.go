package ports

import (
	"context"
	"time"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
)

// IdentityCache stores verified identities keyed by the raw bearer token.
// A nil identity with nil error means cache miss.
type IdentityCache interface {
	Get(ctx context.Context, token string) (*domain.Identity, error)
	Set(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}
