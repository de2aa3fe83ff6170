// Package app opens the storage connections and assembles the
// reconciliation service shared by the server and the scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segyhp/reconciliation-engine/internal/cache"
	"github.com/segyhp/reconciliation-engine/internal/config"
	"github.com/segyhp/reconciliation-engine/internal/repository"
	"github.com/segyhp/reconciliation-engine/internal/service"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type App struct {
	DB      *sqlx.DB
	Redis   *redis.Client
	Service *service.ReconciliationService
}

// New connects to Postgres and, unless REDIS_ENABLED is false, Redis. Without
// Redis the candidate cache lives in process memory.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := initDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	a := &App{DB: db}
	candidateCache := cache.NewMemoryCandidateCache(cfg.Redis.CandidateTTL)
	if cfg.Redis.Addr != "" {
		a.Redis = initRedis(cfg)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize redis: %w", err)
		}
		candidateCache = cache.NewRedisCandidateCache(a.Redis, cfg.Redis.CandidateTTL)
	} else {
		logger.WarnContext(ctx, "redis disabled, caching candidates in memory")
	}

	repos := service.Repositories{
		Payments:    repository.NewPaymentRepository(db),
		Obligations: repository.NewObligationRepository(db),
		Customers:   repository.NewCustomerRepository(db),
		Audit:       repository.NewAuditRepository(db),
		Tx:          repository.NewTxManager(db, cfg.Database.LockTimeout),
	}
	a.Service = service.NewReconciliationService(repos, candidateCache, service.SettingsFromConfig(cfg), service.SystemClock(), logger)
	return a, nil
}

func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func initDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
