package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faciam-dev/docmeta/internal/api/schema"
	"github.com/faciam-dev/docmeta/internal/events"
	"github.com/faciam-dev/docmeta/internal/fieldsec"
	"github.com/faciam-dev/docmeta/internal/huma"
	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	ps "github.com/faciam-dev/docmeta/pkg/schema"
)

// maxDocumentSize caps upsert bodies.
const maxDocumentSize = 4 << 20

// DocumentHandler serves documents addressed by slash paths of any depth.
// Huma paths cannot hold a variable number of segments, so these routes are
// mounted on the chi router.
type DocumentHandler struct {
	Store store.Store
}

// Routes mounts GET and POST /documents/{db}/*.
func (h *DocumentHandler) Routes(r chi.Router) {
	r.Get("/documents/{db}/*", h.get)
	r.Post("/documents/{db}/*", h.upsert)
}

func (h *DocumentHandler) get(w http.ResponseWriter, r *http.Request) {
	db, p := chi.URLParam(r, "db"), chi.URLParam(r, "*")
	if err := docpath.ValidatePath(p); err != nil {
		writeError(w, huma.Error422("path", err.Error()))
		return
	}
	ctx := r.Context()
	if !docpath.IsDocument(p) {
		docs, err := h.listDocuments(ctx, db, p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, schema.DocumentList{Data: docs})
		return
	}
	doc, err := h.getDocument(ctx, db, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) listDocuments(ctx context.Context, db, p string) ([]map[string]any, error) {
	docs, err := h.Store.ListDocuments(ctx, db, docpath.StorageName(p))
	if err != nil {
		return nil, apiError("list documents", err)
	}
	fields, err := h.fields(ctx, db, p)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = fieldsec.Reveal(fields, d)
	}
	return out, nil
}

func (h *DocumentHandler) getDocument(ctx context.Context, db, p string) (schema.Document, error) {
	parent := docpath.Parent(p)
	data, err := h.Store.GetDocument(ctx, db, docpath.StorageName(parent), docpath.Name(p))
	if err != nil {
		return schema.Document{}, apiError("get document", err)
	}
	names, err := h.Store.ListCollections(ctx, db)
	if err != nil {
		return schema.Document{}, apiError("list collections", err)
	}
	fields, err := h.fields(ctx, db, parent)
	if err != nil {
		return schema.Document{}, err
	}
	subs := store.SubCollections(names, p)
	if subs == nil {
		subs = []string{}
	}
	return schema.Document{Data: fieldsec.Reveal(fields, data), SubCollections: subs}, nil
}

func (h *DocumentHandler) upsert(w http.ResponseWriter, r *http.Request) {
	db, p := chi.URLParam(r, "db"), chi.URLParam(r, "*")
	if err := docpath.ValidatePath(p); err != nil {
		writeError(w, huma.Error422("path", err.Error()))
		return
	}
	if !docpath.IsDocument(p) {
		writeError(w, huma.Error422("path", "upsert needs a document path"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize+1))
	if err != nil {
		writeError(w, huma.Error400BadRequest("read body", err))
		return
	}
	if len(body) > maxDocumentSize {
		writeError(w, huma.NewError(http.StatusRequestEntityTooLarge, "document too large"))
		return
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil || data == nil {
		writeError(w, huma.Error422("body", "document must be a JSON object"))
		return
	}
	delete(data, store.IDField)

	ctx := r.Context()
	collPath, id := docpath.Parent(p), docpath.Name(p)
	fields, err := h.fields(ctx, db, collPath)
	if err != nil {
		writeError(w, err)
		return
	}
	stored, err := prepare(fields, data)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Store.UpsertDocument(ctx, db, docpath.StorageName(collPath), id, stored); err != nil {
		writeError(w, apiError("upsert document", err))
		return
	}
	events.Emit(ctx, events.New(events.DocumentUpserted, db, map[string]string{"path": docpath.Join(p)}))
	writeJSON(w, http.StatusOK, schema.Document{Data: fieldsec.Reveal(fields, store.WithID(stored, id)), SubCollections: []string{}})
}

// prepare validates data against fields and protects its sensitive values.
// An empty field set accepts anything.
func prepare(fields ps.Fields, data map[string]any) (map[string]any, error) {
	if err := ps.ValidateDocument(fields, data); err != nil {
		return nil, apiError("validate document", err)
	}
	out, err := fieldsec.Protect(fields, data)
	if err != nil {
		return nil, apiError("protect document", err)
	}
	return out, nil
}

func (h *DocumentHandler) fields(ctx context.Context, db, collPath string) (ps.Fields, error) {
	def, err := h.Store.GetMetadata(ctx, db, docpath.Key(collPath))
	if errors.Is(err, store.ErrNotFound) {
		return ps.Fields{}, nil
	}
	if err != nil {
		return ps.Fields{}, apiError("load metadata", err)
	}
	return def.Fields, nil
}
