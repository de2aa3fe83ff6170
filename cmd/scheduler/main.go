package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/segyhp/reconciliation-engine/internal/app"
	"github.com/segyhp/reconciliation-engine/internal/config"
	"github.com/segyhp/reconciliation-engine/internal/service"
	applog "github.com/segyhp/reconciliation-engine/pkg/logger"

	"github.com/robfig/cron/v3"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := applog.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	cronLogger := cronLogger{logger: logger}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if err := setupCronJobs(ctx, c, cfg, a.Service, logger); err != nil {
		logger.Error("failed to schedule jobs", "error", err)
		os.Exit(1)
	}

	c.Start()
	logger.Info("scheduler started", "timezone", cfg.Scheduler.Timezone)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	cancel()
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

func setupCronJobs(ctx context.Context, c *cron.Cron, cfg *config.Config, svc *service.ReconciliationService, logger *slog.Logger) error {
	if _, err := c.AddFunc(cfg.Scheduler.AutoClassifySpec, func() {
		if _, err := svc.ProcessAllPending(ctx); err != nil {
			logger.ErrorContext(ctx, "auto-classification job failed", "error", err)
		}
	}); err != nil {
		return err
	}

	if _, err := c.AddFunc(cfg.Scheduler.OverdueSweepSpec, func() {
		if _, err := svc.SweepOverdue(ctx); err != nil {
			logger.ErrorContext(ctx, "overdue sweep job failed", "error", err)
		}
	}); err != nil {
		return err
	}

	logger.Info("cron jobs scheduled",
		"auto_classify", cfg.Scheduler.AutoClassifySpec,
		"overdue_sweep", cfg.Scheduler.OverdueSweepSpec,
	)
	return nil
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
