package api

import (
	"context"
	"net/http"
	"time"

	"github.com/iammorganparry/clive/apps/interviewer/internal/models"
)

const healthTimeout = 3 * time.Second

// HealthCheck probes one dependency. A nil Check marks the dependency as disabled.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
	active func() int
}

func NewHealthHandler(checks []HealthCheck, active func() int) *HealthHandler {
	return &HealthHandler{checks: checks, active: active}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := models.HealthResponse{
		Status:   "ok",
		Services: make(map[string]models.ServiceCheck, len(h.checks)),
	}

	for _, c := range h.checks {
		if c.Check == nil {
			resp.Services[c.Name] = models.ServiceCheck{Status: "disabled"}
			continue
		}
		if err := c.Check(ctx); err != nil {
			resp.Services[c.Name] = models.ServiceCheck{Status: "error", Message: err.Error()}
			resp.Status = "degraded"
			continue
		}
		resp.Services[c.Name] = models.ServiceCheck{Status: "ok"}
	}
	if h.active != nil {
		resp.ActiveSession = h.active()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
