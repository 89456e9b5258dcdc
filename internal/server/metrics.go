package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faciam-dev/docmeta/internal/logger"
	"github.com/faciam-dev/docmeta/internal/server/middleware"
	"github.com/faciam-dev/docmeta/internal/store"
)

const healthTimeout = 2 * time.Second

// setupOps mounts /metrics and /healthz and instruments huma operations.
// /healthz answers 503 while the store cannot list its databases.
func setupOps(api huma.API, r chi.Router, st store.Store) {
	r.Get("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := st.ListDatabases(ctx); err != nil {
			logger.L.Warn("health check", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	api.UseMiddleware(middleware.MetricsMW)
}
