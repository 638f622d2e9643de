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

	"github.com/viralforge/taskboard/internal/platform/outbox"
	"github.com/viralforge/taskboard/internal/platform/pg"
	"github.com/viralforge/taskboard/internal/platform/stream"
	"github.com/viralforge/taskboard/internal/tasktracker/adapters/cache"
	eventadapter "github.com/viralforge/taskboard/internal/tasktracker/adapters/events"
	httpadapter "github.com/viralforge/taskboard/internal/tasktracker/adapters/http"
	identityadapter "github.com/viralforge/taskboard/internal/tasktracker/adapters/identity"
	"github.com/viralforge/taskboard/internal/tasktracker/adapters/postgres"
	"github.com/viralforge/taskboard/internal/tasktracker/application"
	"github.com/viralforge/taskboard/internal/tasktracker/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	relay      *outbox.Relay
	projector  *eventadapter.Projector
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

	redisClient, err := cache.Dial(cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	verifier, err := identityadapter.NewHTTPVerifier(cfg.IdentityBaseURL, cfg.IdentityTimeout)
	if err != nil {
		_ = redisClient.Close()
		_ = sqlDB.Close()
		return nil, err
	}

	repos := postgres.NewRepositories(db)
	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:         cfg.ServiceID,
			EventDedupTTL:       cfg.EventDedupTTL,
			IdentityCacheMaxTTL: cfg.IdentityCacheMaxTTL,
		},
		Logger:     logger,
		Accounts:   repos.Accounts,
		Tasks:      repos.Tasks,
		EventDedup: repos.EventDedup,
		Cache:      cache.NewRedisIdentityCache(redisClient),
		Verifier:   verifier,
	})

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	closers := []io.Closer{redisClient}

	publisher := ports.EventPublisher(stream.NewLogPublisher(logger))
	source := eventadapter.Source(stream.NoopSource{})
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := stream.NewPublisher(cfg.KafkaBrokers, map[string]string{
			"task_created":   cfg.KafkaTopicTasks,
			"task_assigned":  cfg.KafkaTopicTasks,
			"task_completed": cfg.KafkaTopicTasks,
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using log sink", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}

		consumer, conErr := stream.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, []string{cfg.KafkaTopicAccounts})
		if conErr != nil {
			logger.WarnContext(ctx, "kafka consumer disabled, account projection will lag", "error", conErr)
		} else {
			source = consumer
			closers = append(closers, consumer)
		}
	}

	relay := outbox.NewRelay(logger, repos.Outbox, publisher,
		cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.OutboxClaimTTL, cfg.OutboxMaxRetries)
	projector := eventadapter.NewProjector(logger, source, service, cfg.KafkaTopicAccounts,
		cfg.ConsumerPollInterval, cfg.ConsumerRetryBackoff, cfg.ConsumerMaxAttempts)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		relay:      relay,
		projector:  projector,
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

// RunWorker runs the outbox relay and the account-stream projector side
// by side until either fails or the process is signalled.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.projector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
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
