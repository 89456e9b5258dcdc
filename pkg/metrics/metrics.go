package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/faciam-dev/docmeta/pkg/schema"
)

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmeta_api_requests_total",
			Help: "Number of API requests",
		},
		[]string{"method", "path", "status"},
	)
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docmeta_api_latency_seconds",
			Help:    "API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	Collections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docmeta_collections_total",
			Help: "Number of collections by database",
		},
		[]string{"db"},
	)
	Fields = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docmeta_fields_total",
			Help: "Number of defined fields by metadata key",
		},
		[]string{"db", "key"},
	)
	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docmeta_cache_hits_total",
			Help: "Metadata cache hits",
		},
	)
	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docmeta_cache_misses_total",
			Help: "Metadata cache misses",
		},
	)
	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmeta_audit_events_total",
			Help: "Audit log events",
		},
		[]string{"action"},
	)
	AuditErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmeta_audit_errors_total",
			Help: "Audit write errors",
		},
		[]string{"action"},
	)
	SeedLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmeta_seed_loads_total",
			Help: "Metadata seed files applied",
		},
		[]string{"result"},
	)
	Snapshots = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmeta_snapshots_total",
			Help: "Metadata snapshots written",
		},
		[]string{"dest", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequests,
		APILatency,
		Collections,
		Fields,
		CacheHits,
		CacheMisses,
		AuditEvents,
		AuditErrors,
		SeedLoads,
		Snapshots,
	)
}

// Inventory is implemented by stores able to enumerate their content.
type Inventory interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ListCollections(ctx context.Context, db string) ([]string, error)
	ListMetadata(ctx context.Context, db string) (schema.Envelope, error)
}

// RefreshGauges recounts collections and defined fields. It is run on a
// schedule by the API server.
func RefreshGauges(ctx context.Context, inv Inventory) error {
	dbs, err := inv.ListDatabases(ctx)
	if err != nil {
		return fmt.Errorf("refresh gauges: %w", err)
	}
	Collections.Reset()
	Fields.Reset()
	for _, db := range dbs {
		names, err := inv.ListCollections(ctx, db)
		if err != nil {
			return fmt.Errorf("refresh gauges %s: %w", db, err)
		}
		Collections.WithLabelValues(db).Set(float64(len(names)))
		env, err := inv.ListMetadata(ctx, db)
		if err != nil {
			return fmt.Errorf("refresh gauges %s: %w", db, err)
		}
		for key, def := range env {
			Fields.WithLabelValues(db, key).Set(float64(def.Fields.Len()))
		}
	}
	return nil
}
