package application

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

type Service struct {
	cfg        Config
	logger     *slog.Logger
	accounts   ports.AccountProjectionRepository
	tasks      ports.TaskRepository
	eventDedup ports.EventDedupRepository
	cache      ports.IdentityCache
	verifier   ports.IdentityVerifier
	nowFn      func() time.Time
	pickFn     func(n int) int
}

type Dependencies struct {
	Config     Config
	Logger     *slog.Logger
	Accounts   ports.AccountProjectionRepository
	Tasks      ports.TaskRepository
	EventDedup ports.EventDedupRepository
	Cache      ports.IdentityCache
	Verifier   ports.IdentityVerifier
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tasktracker"
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.IdentityCacheMaxTTL <= 0 {
		cfg.IdentityCacheMaxTTL = time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:        cfg,
		logger:     logger,
		accounts:   deps.Accounts,
		tasks:      deps.Tasks,
		eventDedup: deps.EventDedup,
		cache:      deps.Cache,
		verifier:   deps.Verifier,
		nowFn:      func() time.Time { return time.Now().UTC() },
		pickFn:     rand.IntN,
	}
}
