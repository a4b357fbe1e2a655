package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jonathan/hiring-workflow/internal/config"
	"github.com/jonathan/hiring-workflow/internal/db"
	"github.com/jonathan/hiring-workflow/internal/db/memstore"
	"github.com/jonathan/hiring-workflow/internal/notify"
	"github.com/jonathan/hiring-workflow/internal/observability"
	"github.com/jonathan/hiring-workflow/internal/workflow"
	"github.com/redis/go-redis/v9"
)

// store is what every backend provides: the workflow stores, the
// notification store and the seeding writes.
type store interface {
	workflow.Applications
	workflow.AuditTrail
	workflow.Directory
	notify.Store
	seedTarget
}

// backend bundles the storage the commands run on.
type backend struct {
	store  store
	redis  *redis.Client
	logger *slog.Logger
	cfg    *config.Config
	close  func()
}

// loadConfig reads the effective configuration and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openBackend connects to PostgreSQL when a database URL is configured and
// falls back to the in-memory store otherwise. Redis is optional; an
// unreachable Redis is logged and skipped. Seed data is not loaded here.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	b := &backend{logger: logger, cfg: cfg}
	var closers []func()

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.store = database
		closers = append(closers, database.Close)
		logger.Info("using PostgreSQL store")
	} else {
		b.store = memstore.New()
		logger.Warn("DATABASE_URL not set, using in-memory store")
	}

	if cfg.RedisURL != "" {
		b.redis = connectRedis(ctx, cfg.RedisURL, logger)
		if b.redis != nil {
			client := b.redis
			closers = append(closers, func() {
				if err := client.Close(); err != nil {
					logger.Error("redis close failed", slog.Any("error", err))
				}
			})
		}
	}

	b.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	return b, nil
}

// applySeed loads the configured seed file, if any.
func (b *backend) applySeed(ctx context.Context) error {
	if b.cfg.SeedFile == "" {
		return nil
	}
	counts, err := seedFromFile(ctx, b.store, b.cfg.SeedFile)
	if err != nil {
		return err
	}
	b.logger.Info("seed data loaded",
		slog.String("file", b.cfg.SeedFile),
		slog.Int("users", counts.Users),
		slog.Int("jobs", counts.Jobs),
		slog.Int("applications", counts.Applications))
	return nil
}

func connectRedis(ctx context.Context, url string, logger *slog.Logger) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Error("redis url parse failed", slog.Any("error", err))
		return nil
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis ping failed, continuing without redis", slog.Any("error", err))
		_ = client.Close()
		return nil
	}
	logger.Info("connected to redis")
	return client
}

// dispatcher builds the notification dispatcher over the backend.
func (b *backend) dispatcher() *notify.Dispatcher {
	return notify.NewDispatcher(b.store, b.store, b.logger)
}

// service builds the workflow service with the configured policy.
func (b *backend) service(notifier workflow.Notifier) *workflow.Service {
	return workflow.NewService(b.store, b.store, b.store, notifier,
		workflow.WithLogger(b.logger),
		workflow.WithPolicy(workflow.Policy{
			EditWindow: b.cfg.EditWindow.Std(),
			MaxEdits:   b.cfg.MaxEdits,
		}))
}

// sweeper builds the deadline sweeper. Warnings are deduplicated in Redis
// when available and against the notification store otherwise.
func (b *backend) sweeper(dispatcher *notify.Dispatcher) *notify.Sweeper {
	policy := notify.SweepPolicy{
		Window:   b.cfg.DeadlineWarningWindow.Std(),
		Cooldown: b.cfg.DeadlineWarningCooldown.Std(),
	}
	opts := []notify.SweeperOption{notify.WithSweepLogger(b.logger)}
	if d := notify.NewRedisDeduper(b.redis, policy.Cooldown); d != nil {
		opts = append(opts, notify.WithDeduper(d))
	}
	return notify.NewSweeper(b.store, b.store, dispatcher, policy, opts...)
}
