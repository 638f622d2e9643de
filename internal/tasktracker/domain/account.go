package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role mirrors the identity service role taxonomy.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleWorker  Role = "worker"
	RoleManager Role = "manager"
)

// AccountProjection is the local, eventually consistent copy of an identity
// account. It carries no credentials; it exists so task assignment never has
// to call the identity service on the hot path.
type AccountProjection struct {
	PublicID  uuid.UUID
	Username  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is a verified caller, either from the identity cache or from a
// synchronous verification round-trip.
type Identity struct {
	AccountID uuid.UUID
	Username  string
	Role      Role
	ExpiresAt time.Time
}

// CanManageTasks reports whether the role oversees the whole board rather
// than just its own assignments. The board-wide shuffle is stricter still
// and stays admin-only.
func (r Role) CanManageTasks() bool {
	return r == RoleAdmin || r == RoleManager
}
