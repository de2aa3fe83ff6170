package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/segyhp/reconciliation-engine/pkg/response"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Pinger is the readiness probe of one dependency.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler probes the database and, when configured, Redis. A nil
// redis client means the in-process candidate cache is used.
func NewHealthHandler(db *sqlx.DB, redisClient *redis.Client, timeout time.Duration) *HealthHandler {
	checks := map[string]Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = redisPinger{client: redisClient}
	}
	return NewHealthHandlerWithChecks(checks, timeout)
}

func NewHealthHandlerWithChecks(checks map[string]Pinger, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout}
}

type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.Ready).Methods(http.MethodGet)
}

// Health performs a basic health check
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	response.Success(w, status)
}

// Ready checks every dependency within the configured timeout.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for name, check := range h.checks {
		if err := check.PingContext(ctx); err != nil {
			status.Status = "error"
			status.Checks[name] = "failed: " + err.Error()
		} else {
			status.Checks[name] = "ok"
		}
	}

	if status.Status == "error" {
		response.JSON(w, http.StatusServiceUnavailable, status)
		return
	}

	response.Success(w, status)
}
