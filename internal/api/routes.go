// Package api exposes the daemon's operational endpoints.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/capitol-watch/internal/snapshot"
	"github.com/Checker-Finance/capitol-watch/internal/watcher"
)

// RunReporter exposes the outcome of the most recent run.
type RunReporter interface {
	LastResult() (watcher.Result, bool)
}

// RegisterRoutes mounts /metrics and /health.
func RegisterRoutes(app *fiber.App, st snapshot.Store, runs RunReporter) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks := map[string]string{
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.HealthCheck(healthCtx); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		body := fiber.Map{
			"status":  status,
			"backend": st.Backend(),
			"checks":  checks,
		}
		if res, ok := runs.LastResult(); ok {
			body["last_run"] = fiber.Map{
				"run_id":      res.RunID,
				"status":      res.Status,
				"started_at":  res.StartedAt.UTC().Format(time.RFC3339),
				"duration_ms": res.Duration.Milliseconds(),
				"fetched":     res.Fetched,
				"new":         res.New,
				"snapshot":    res.SnapshotID,
			}
		}

		return c.Status(code).JSON(body)
	})
}
