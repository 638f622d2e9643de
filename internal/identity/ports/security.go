package ports

import (
	"time"

	"github.com/google/uuid"
)

// AuthClaims is the adapter-neutral shape of a signed bearer token.
type AuthClaims struct {
	AccountID uuid.UUID
	Username  string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	KeyID     string
}

// TokenSigner issues and verifies bearer tokens.
// Kept as a port so the application layer stays crypto-library agnostic.
type TokenSigner interface {
	Sign(claims AuthClaims) (string, error)
	ParseAndValidate(raw string) (AuthClaims, error)
}

// PasswordHasher abstracts credential hashing.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
