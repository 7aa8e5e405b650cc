package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const healthTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health reports the status of the database, Valkey and any added checks.
type Health struct {
	checks map[string]Check
}

// NewHealth creates a health handler pinging db and vk.
func NewHealth(db *sql.DB, vk *redis.Client) *Health {
	return &Health{checks: map[string]Check{
		"database": db.PingContext,
		"valkey": func(ctx context.Context) error {
			return vk.Ping(ctx).Err()
		},
	}}
}

// AddCheck registers an extra dependency probe under name.
func (h *Health) AddCheck(name string, check Check) {
	h.checks[name] = check
}

// ServeHTTP answers 200 {"status":"ok"} when every check passes and 503
// {"status":"degraded"} otherwise. Per-dependency results are included.
func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	body := envelope{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.Warn("health check failed", "dependency", name, "error", err)
			body[name] = "unavailable"
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		body[name] = "ok"
	}
	body["status"] = status
	writeJSON(w, code, body)
}
