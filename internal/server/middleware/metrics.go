package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"

	"github.com/faciam-dev/docmeta/pkg/metrics"
)

// MetricsMW records API request metrics for huma operations, labelled by the
// operation's path template.
func MetricsMW(ctx huma.Context, next func(huma.Context)) {
	r, w := humachi.Unwrap(ctx)
	m := httpsnoop.CaptureMetricsFn(w, func(w http.ResponseWriter) {
		next(humachi.NewContext(ctx.Operation(), r, w))
	})
	observe(r.Method, ctx.Operation().Path, m.Code, m.Duration)
}

// Metrics records request metrics for handlers mounted on the router
// directly, labelled by the chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		observe(r.Method, path, m.Code, m.Duration)
	})
}

func observe(method, path string, code int, d time.Duration) {
	metrics.APIRequests.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	metrics.APILatency.WithLabelValues(method, path).Observe(d.Seconds())
}
