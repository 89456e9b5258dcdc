package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/faciam-dev/docmeta/internal/api/schema"
	"github.com/faciam-dev/docmeta/internal/audit"
	"github.com/faciam-dev/docmeta/internal/events"
	"github.com/faciam-dev/docmeta/internal/huma"
	"github.com/faciam-dev/docmeta/internal/logger"
	"github.com/faciam-dev/docmeta/internal/store"
	ps "github.com/faciam-dev/docmeta/pkg/schema"
)

// MetadataHandler serves schema definitions keyed by metadata key.
type MetadataHandler struct {
	Store store.Store
	Audit *audit.Recorder
}

type metaKeyParam struct {
	DB  string `path:"db" minLength:"1"`
	Key string `path:"key" minLength:"1" doc:"Metadata key, e.g. users$:_doc_id$posts"`
}

type saveMetadataInput struct {
	DB      string `path:"db" minLength:"1"`
	Key     string `path:"key" minLength:"1"`
	Actor   string `header:"X-Docmeta-Actor" doc:"Name recorded in the audit log"`
	RawBody []byte `contentType:"application/json"`
}

type metadataOutput struct{ Body schema.MetadataEnvelope }
type saveMetadataOutput struct{ Body schema.MetadataSaved }

// RegisterMetadata registers metadata endpoints.
func RegisterMetadata(api huma.API, h *MetadataHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listMetadata",
		Method:      http.MethodGet,
		Path:        "/metadata/{db}",
		Summary:     "List all definitions of a database",
		Tags:        []string{"Metadata"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "getMetadata",
		Method:      http.MethodGet,
		Path:        "/metadata/{db}/{key}",
		Summary:     "Get definition",
		Tags:        []string{"Metadata"},
	}, h.get)
	huma.Register(api, huma.Operation{
		OperationID: "saveMetadata",
		Method:      http.MethodPost,
		Path:        "/metadata/{db}/{key}",
		Summary:     "Overwrite definition",
		Description: "Accepts {key: {table, fields}} or a bare {table, fields}. The last save wins.",
		Tags:        []string{"Metadata"},
	}, h.save)
}

func (h *MetadataHandler) list(ctx context.Context, in *dbParam) (*metadataOutput, error) {
	env, err := h.Store.ListMetadata(ctx, in.DB)
	if err != nil {
		return nil, apiError("list metadata", err)
	}
	if env == nil {
		env = ps.Envelope{}
	}
	return &metadataOutput{Body: schema.MetadataEnvelope{Data: env}}, nil
}

func (h *MetadataHandler) get(ctx context.Context, in *metaKeyParam) (*metadataOutput, error) {
	def, err := h.Store.GetMetadata(ctx, in.DB, in.Key)
	if err != nil {
		return nil, apiError("get metadata", err)
	}
	return &metadataOutput{Body: schema.MetadataEnvelope{Data: ps.Envelope{in.Key: def}}}, nil
}

func (h *MetadataHandler) save(ctx context.Context, in *saveMetadataInput) (*saveMetadataOutput, error) {
	def, err := ps.DecodeEnvelope(in.RawBody, in.Key)
	if err != nil {
		return nil, huma.Error422("body", err.Error())
	}
	if err := def.Check(); err != nil {
		return nil, huma.Error422("body", err.Error())
	}

	var before *ps.Definition
	prev, err := h.Store.GetMetadata(ctx, in.DB, in.Key)
	switch {
	case err == nil:
		before = &prev
	case !errors.Is(err, store.ErrNotFound):
		return nil, apiError("load metadata", err)
	}
	if err := h.Store.SaveMetadata(ctx, in.DB, in.Key, def); err != nil {
		return nil, apiError("save metadata", err)
	}

	actor := in.Actor
	if actor == "" {
		actor = "anonymous"
	}
	entry, err := h.Audit.Record(ctx, actor, in.DB, in.Key, before, def)
	if err != nil {
		logger.L.Error("audit metadata save", "db", in.DB, "key", in.Key, "err", err)
	}
	events.Emit(ctx, events.New(events.MetadataSaved, in.DB, map[string]any{
		"key": in.Key, "action": entry.Action, "added": entry.Added, "removed": entry.Removed,
	}))
	return &saveMetadataOutput{Body: schema.MetadataSaved{Key: in.Key, Action: entry.Action, Added: entry.Added, Removed: entry.Removed}}, nil
}
