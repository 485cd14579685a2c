// Package httpapi exposes the spider's sole introspection and control
// surface: a stats view, a metrics export, and a seed-URL submission
// endpoint.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"spiderd/internal/metrics"
	"spiderd/internal/scheduler"
)

// Server wraps a fiber app exposing /stats, /metrics and /seed.
type Server struct {
	app       *fiber.App
	scheduler *scheduler.Scheduler
	logger    *slog.Logger
}

// SeedFn enqueues a URL and returns a human-readable outcome string
// ("enqueued", "already_done", "poisoned", "filter_excluded",
// "queue_full", "lost_race").
type SeedFn func(ctx context.Context, url string, priority int) (string, error)

// NewServer builds a Server backed by sched for stats and seedFn for
// admission.
func NewServer(sched *scheduler.Scheduler, seedFn SeedFn, logger *slog.Logger) *Server {
	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		metrics.RecordFetch("httpapi", statusClass(c.Response().StatusCode()))
		if logger != nil {
			logger.Info("http request",
				"method", c.Method(), "path", c.Path(),
				"status", c.Response().StatusCode(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			)
		}
		return err
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := sched.Stats(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"pending":        stats.Pending,
			"processing":     stats.Processing,
			"done":           stats.Done,
			"failed":         stats.Failed,
			"queue_size":     stats.QueueSize,
			"max_queue_size": stats.MaxQueueSize,
			"workers":        stats.Workers,
			"running":        stats.Running,
		})
	})

	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
		return c.SendString(metrics.Export())
	})

	app.Post("/seed", func(c *fiber.Ctx) error {
		var body struct {
			URL      string `json:"url"`
			Priority int    `json:"priority"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed JSON"})
		}
		if body.URL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing required field 'url'"})
		}

		outcome, err := seedFn(c.Context(), body.URL, body.Priority)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"url": body.URL, "outcome": outcome})
	})

	return &Server{app: app, scheduler: sched, logger: logger}
}

// Listen starts the fiber app on addr. It blocks until the app stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// App exposes the underlying fiber app, e.g. for use with its own Test
// method in handler tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "error"
	case status >= 400:
		return "client_error"
	default:
		return "ok"
	}
}
