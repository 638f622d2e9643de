package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/viralforge/taskboard/internal/tasktracker/domain"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

// Dial builds a Redis client from either a redis:// URL or a bare
// host:port address.
func Dial(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opt, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// RedisIdentityCache stores verified identities keyed by token digest.
// The raw bearer token never reaches Redis; a hash is enough for lookups.
type RedisIdentityCache struct {
	client *redis.Client
}

// NewRedisIdentityCache creates the identity cache adapter.
func NewRedisIdentityCache(client *redis.Client) *RedisIdentityCache {
	return &RedisIdentityCache{client: client}
}

type cachedIdentity struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *RedisIdentityCache) Get(ctx context.Context, token string) (*domain.Identity, error) {
	raw, err := c.client.Get(ctx, identityKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var rec cachedIdentity
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	identity, err := toDomainIdentity(rec)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *RedisIdentityCache) Set(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error {
	raw, err := json.Marshal(cachedIdentity{
		AccountID: identity.AccountID.String(),
		Username:  identity.Username,
		Role:      string(identity.Role),
		ExpiresAt: identity.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, identityKey(token), raw, ttl).Err()
}

func (c *RedisIdentityCache) Delete(ctx context.Context, token string) error {
	return c.client.Del(ctx, identityKey(token)).Err()
}

func identityKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "tasks:identity:" + hex.EncodeToString(sum[:])
}

func toDomainIdentity(rec cachedIdentity) (domain.Identity, error) {
	accountID, err := uuid.Parse(rec.AccountID)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		AccountID: accountID,
		Username:  rec.Username,
		Role:      domain.Role(rec.Role),
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

var _ ports.IdentityCache = (*RedisIdentityCache)(nil)
