package application

import (
	"context"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

// Authenticate resolves a bearer token to a verified identity.
// The cache is consulted first; an expired entry is evicted and treated as a
// miss. On a miss the identity service is asked synchronously, the projection
// is refreshed (covers projector lag for brand-new accounts), and the result
// is cached until the token expiry. The refresh and cache writes are
// best-effort: their failure degrades the next request, not this one, but
// every skipped write is logged so a dying cache or database is visible.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}

	now := s.nowFn()
	cached, err := s.cache.Get(ctx, token)
	if err != nil {
		s.logDegraded(ctx, "identity cache read failed", err)
	}
	if cached != nil {
		if cached.ExpiresAt.After(now) {
			return *cached, nil
		}
		if err := s.cache.Delete(ctx, token); err != nil {
			s.logDegraded(ctx, "expired identity cache entry not evicted", err)
		}
	}

	identity, err := s.verifier.VerifyToken(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}

	if err := s.accounts.Upsert(ctx, ports.UpsertAccountParams{
		PublicID:  identity.AccountID,
		Username:  identity.Username,
		Role:      identity.Role,
		Timestamp: now,
	}); err != nil {
		s.logDegraded(ctx, "projection refresh after verification failed", err)
	}

	ttl := identity.ExpiresAt.Sub(now)
	if ttl > s.cfg.IdentityCacheMaxTTL {
		ttl = s.cfg.IdentityCacheMaxTTL
	}
	if ttl > 0 {
		if err := s.cache.Set(ctx, token, identity, ttl); err != nil {
			s.logDegraded(ctx, "identity cache write failed", err)
		}
	}
	return identity, nil
}

func (s *Service) logDegraded(ctx context.Context, msg string, err error) {
	s.logger.WarnContext(ctx, msg,
		"module", "application",
		"layer", "application",
		"operation", "authenticate",
		"outcome", "degraded",
		"error", err,
	)
}
