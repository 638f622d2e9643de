package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the coarse authorization level attached to every account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleWorker  Role = "worker"
	RoleManager Role = "manager"
)

// ParseRole validates a caller-supplied role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleWorker:
		return RoleWorker, nil
	case RoleManager:
		return RoleManager, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
}

// Account is the authoritative identity record.
// CredentialHash never leaves this service; downstream consumers only ever
// see the public id, username and role.
type Account struct {
	PublicID       uuid.UUID
	Username       string
	CredentialHash string
	Role           Role
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
