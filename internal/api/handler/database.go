package handler

import (
	"context"
	"net/http"

	"github.com/faciam-dev/docmeta/internal/api/schema"
	"github.com/faciam-dev/docmeta/internal/events"
	"github.com/faciam-dev/docmeta/internal/huma"
	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/docpath"
)

// DatabaseHandler serves databases and their collections.
type DatabaseHandler struct {
	Store store.Store
}

type dbParam struct {
	DB string `path:"db" minLength:"1"`
}

type collectionParam struct {
	DB   string `path:"db" minLength:"1"`
	Name string `path:"name" minLength:"1" doc:"Storage name; dotted names create sub-collections"`
}

type namesOutput struct{ Body []string }
type createDBOutput struct{ Body schema.DatabaseCreated }
type createCollectionOutput struct{ Body schema.CollectionCreated }

// RegisterDatabase registers database and collection endpoints.
func RegisterDatabase(api huma.API, h *DatabaseHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "listDatabases",
		Method:      http.MethodGet,
		Path:        "/databases",
		Summary:     "List databases",
		Tags:        []string{"Database"},
	}, h.list)
	huma.Register(api, huma.Operation{
		OperationID: "createDatabase",
		Method:      http.MethodPost,
		Path:        "/databases/{db}",
		Summary:     "Create database if absent",
		Tags:        []string{"Database"},
	}, h.create)
	huma.Register(api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/databases/{db}/collections",
		Summary:     "List collections",
		Tags:        []string{"Collection"},
	}, h.listCollections)
	huma.Register(api, huma.Operation{
		OperationID:   "createCollection",
		Method:        http.MethodPost,
		Path:          "/databases/{db}/collections/{name}",
		Summary:       "Create collection",
		Tags:          []string{"Collection"},
		DefaultStatus: http.StatusCreated,
	}, h.createCollection)
}

func (h *DatabaseHandler) list(ctx context.Context, _ *struct{}) (*namesOutput, error) {
	dbs, err := h.Store.ListDatabases(ctx)
	if err != nil {
		return nil, apiError("list databases", err)
	}
	if dbs == nil {
		dbs = []string{}
	}
	return &namesOutput{Body: dbs}, nil
}

func (h *DatabaseHandler) create(ctx context.Context, in *dbParam) (*createDBOutput, error) {
	if err := docpath.ValidateName(in.DB); err != nil {
		return nil, huma.Error422("path.db", err.Error())
	}
	created, err := h.Store.CreateDatabase(ctx, in.DB)
	if err != nil {
		return nil, apiError("create database", err)
	}
	if created {
		events.Emit(ctx, events.New(events.DatabaseCreated, in.DB, nil))
	}
	return &createDBOutput{Body: schema.DatabaseCreated{Name: in.DB, Created: created}}, nil
}

func (h *DatabaseHandler) listCollections(ctx context.Context, in *dbParam) (*namesOutput, error) {
	names, err := h.Store.ListCollections(ctx, in.DB)
	if err != nil {
		return nil, apiError("list collections", err)
	}
	if names == nil {
		names = []string{}
	}
	return &namesOutput{Body: names}, nil
}

func (h *DatabaseHandler) createCollection(ctx context.Context, in *collectionParam) (*createCollectionOutput, error) {
	p := docpath.PathFromStorageName(in.Name)
	if err := docpath.ValidatePath(p); err != nil {
		return nil, huma.Error422("path.name", err.Error())
	}
	if docpath.IsDocument(p) {
		return nil, huma.Error422("path.name", "name addresses a document")
	}
	name := docpath.StorageName(p)
	if err := h.Store.CreateCollection(ctx, in.DB, name); err != nil {
		return nil, apiError("create collection", err)
	}
	events.Emit(ctx, events.New(events.CollectionCreated, in.DB, map[string]string{"collection": name}))
	return &createCollectionOutput{Body: schema.CollectionCreated{Database: in.DB, Name: name, Path: p}}, nil
}
