package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/viralforge/taskboard/internal/identity/adapters/http"
	"github.com/viralforge/taskboard/internal/identity/adapters/postgres"
	"github.com/viralforge/taskboard/internal/identity/adapters/security"
	"github.com/viralforge/taskboard/internal/identity/application"
	"github.com/viralforge/taskboard/internal/identity/ports"
	"github.com/viralforge/taskboard/internal/platform/outbox"
	"github.com/viralforge/taskboard/internal/platform/pg"
	"github.com/viralforge/taskboard/internal/platform/stream"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	relay      *outbox.Relay
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	db, err := pg.Open(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := postgres.ApplyMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	var signer *security.JWTSigner
	if cfg.JWTPrivateKeyPEM != "" && cfg.JWTPublicKeyPEM != "" {
		signer, err = security.NewJWTSigner(cfg.JWTKeyID, cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	} else {
		logger.WarnContext(ctx, "static jwt keys absent, using ephemeral keypair")
		signer, err = security.NewEphemeralJWTSigner(cfg.JWTKeyID)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	repos := postgres.NewRepositories(db)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName: cfg.ServiceID,
			TokenTTL:    cfg.TokenTTL,
		},
		Accounts: repos.Accounts,
		Hasher:   security.NewBcryptHasher(cfg.BcryptCost),
		Signer:   signer,
	})

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	publisher := ports.EventPublisher(stream.NewLogPublisher(logger))
	var closers []io.Closer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := stream.NewPublisher(cfg.KafkaBrokers, map[string]string{
			"account_created": cfg.KafkaTopicAccounts,
			"account_updated": cfg.KafkaTopicAccounts,
			"account_deleted": cfg.KafkaTopicAccounts,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using log sink", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}
	}
	relay := outbox.NewRelay(logger, repos.Outbox, publisher,
		cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxClaimTTL, cfg.OutboxMaxRetries)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		relay:      relay,
		cleanupFn: func(ctx context.Context) {
			for _, closer := range closers {
				_ = closer.Close()
			}
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)

	go func() {
		if err := r.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		r.cleanupFn(context.Background())
		return nil
	case err := <-errCh:
		r.cleanupFn(context.Background())
		return err
	}
}
