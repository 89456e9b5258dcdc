package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/faciam-dev/docmeta/internal/api/handler"
	"github.com/faciam-dev/docmeta/internal/audit"
	"github.com/faciam-dev/docmeta/internal/server/middleware"
)

// New builds the API. Huma serves the fixed-shape endpoints; documents of
// any depth are served by chi wildcard routes on the same router.
func New(cfg Config) (huma.API, error) {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Docmeta-Actor"},
		AllowCredentials: true,
	}))

	api := humachi.New(r, huma.DefaultConfig("docmeta API", "1.0.0"))
	setupOps(api, r, cfg.Store)

	if err := initEvents(cfg); err != nil {
		return nil, err
	}

	rec := &audit.Recorder{}
	if cfg.SQL != nil {
		rec = &audit.Recorder{DB: cfg.SQL.DB(), Driver: cfg.SQL.Driver(), TablePrefix: cfg.SQL.Prefix()}
	}

	handler.RegisterDatabase(api, &handler.DatabaseHandler{Store: cfg.Store})
	handler.RegisterMetadata(api, &handler.MetadataHandler{Store: cfg.Store, Audit: rec})
	handler.RegisterAudit(api, &handler.AuditHandler{Audit: rec})
	handler.RegisterSnapshot(api, &handler.SnapshotHandler{Store: cfg.Store, Dest: cfg.Snapshots})
	r.Group(func(r chi.Router) {
		r.Use(middleware.Metrics)
		(&handler.DocumentHandler{Store: cfg.Store}).Routes(r)
	})
	return api, nil
}
