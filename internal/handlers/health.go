package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency the health check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports how many sessions are held in memory
type SessionCounter interface {
	Count() int
}

// HealthHandler handles health check requests
type HealthHandler struct {
	sessions SessionCounter
	deps     map[string]Pinger
}

// NewHealthHandler creates a new health handler. deps may hold nil entries
// for components that are not configured.
func NewHealthHandler(sessions SessionCounter, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{sessions: sessions, deps: deps}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	checks := make(fiber.Map, len(h.deps))
	for name, dep := range h.deps {
		if dep == nil {
			checks[name] = "disabled"
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}

	code := fiber.StatusOK
	if status != "healthy" {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"sessions":  h.sessions.Count(),
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
