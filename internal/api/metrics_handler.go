package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/backstage/services/yard/internal/metrics"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes a dependency the service cannot serve without
type HealthCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check HealthCheck
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithHealthCheck adds a dependency check to the health endpoint
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *Handler) {
		h.checks = append(h.checks, namedCheck{name: name, check: check})
	}
}

// Metrics reports the collector snapshot together with runtime statistics
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	data := metrics.GetMetricsCollector().GetMetrics()
	data["runtime"] = runtimeStats()
	writeJSONResponse(w, http.StatusOK, data)
}

func runtimeStats() map[string]interface{} {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc_bytes":  mem.Alloc,
			"sys_bytes":    mem.Sys,
			"heap_objects": mem.HeapObjects,
			"gc_cycles":    mem.NumGC,
		},
	}
}

// Health reports 503 when the request error rate is too high or any
// dependency check fails
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := metrics.GetMetricsCollector().GetHealthStatus()
	status, _ := health["status"].(map[string]interface{})
	healthy, _ := status["healthy"].(bool)

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.check(ctx); err != nil {
			logrus.WithError(err).WithField("check", c.name).Warn("Health check failed")
			checks[c.name] = "unavailable"
			healthy = false
			continue
		}
		checks[c.name] = "ok"
	}
	if status != nil {
		status["healthy"] = healthy
	}
	health["checks"] = checks

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, code, health)
}
