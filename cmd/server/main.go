package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/app"
	"github.com/segyhp/reconciliation-engine/internal/config"
	"github.com/segyhp/reconciliation-engine/internal/handler"
	applog "github.com/segyhp/reconciliation-engine/pkg/logger"
	"github.com/segyhp/reconciliation-engine/pkg/response"

	"github.com/gorilla/mux"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := applog.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	reconciliationHandler := handler.NewReconciliationHandler(a.Service, logger)
	healthHandler := handler.NewHealthHandler(a.DB, a.Redis, cfg.GetHealthTimeout())

	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger))
	router.Use(response.CORSMiddleware)
	healthHandler.RegisterRoutes(router)
	reconciliationHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
