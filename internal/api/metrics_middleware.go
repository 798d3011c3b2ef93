package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"example.com/backstage/services/yard/internal/metrics"
)

// MetricsMiddleware adds metrics collection to HTTP requests. Requests are
// keyed by route template so journey ids do not explode the series.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		metrics.GetMetricsCollector().RecordHTTPRequest(r.Method+" "+path, wrapper.statusCode, time.Since(start))
	})
}
