package application

import (
	"time"

	"github.com/viralforge/taskboard/internal/identity/domain"
	"github.com/viralforge/taskboard/internal/identity/ports"
)

type Service struct {
	cfg      Config
	accounts ports.AccountRepository
	hasher   ports.PasswordHasher
	signer   ports.TokenSigner
	nowFn    func() time.Time
}

type Dependencies struct {
	Config   Config
	Accounts ports.AccountRepository
	Hasher   ports.PasswordHasher
	Signer   ports.TokenSigner
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "identity"
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = domain.RoleWorker
	}

	return &Service{
		cfg:      cfg,
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		signer:   deps.Signer,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}
