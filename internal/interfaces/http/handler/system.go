package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ContextPinger checks whether a backing dependency is reachable
type ContextPinger func(ctx context.Context) error

// SystemHandler handles health and liveness endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	checks    map[string]ContextPinger
}

// NewSystemHandler creates a new SystemHandler with named dependency checks
func NewSystemHandler(checks map[string]ContextPinger) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		checks:    checks,
	}
}

// HealthResponse reports overall service health and per-dependency state
type HealthResponse struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies"`
}

// Health checks the service and its backing dependencies
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:       "ok",
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Dependencies: make(map[string]string, len(h.checks)),
	}

	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Dependencies[name] = err.Error()
			healthy = false
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	if !healthy {
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
