package views

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/sdk/client"
)

// CollectionState is what the collection panel shows.
type CollectionState struct {
	Name string
	Path string
	Key  string

	Documents   []map[string]any
	DocsLoading bool
	DocsErr     string

	// Metadata is nil when no schema is defined for the collection.
	Metadata    *schema.Definition
	MetaLoading bool
	MetaErr     string

	Saving bool
	Status string
}

// FormFields returns the fields of the structured create form, or nil when
// the collection has no schema.
func (s CollectionState) FormFields() []schema.FormField {
	if s.Metadata == nil {
		return nil
	}
	return schema.FormFields(s.Metadata.Fields)
}

// CollectionView lists the documents of one collection and creates new ones.
type CollectionView struct {
	api API
	db  string

	mu    sync.Mutex
	state CollectionState
}

// NewCollectionView returns a view for the collection at path. A document
// path selects the document's collection.
func NewCollectionView(api API, db, path string) *CollectionView {
	p := docpath.Join(path)
	if docpath.IsDocument(p) {
		p = docpath.Parent(p)
	}
	return &CollectionView{api: api, db: db, state: CollectionState{
		Name:        docpath.Name(p),
		Path:        p,
		Key:         docpath.Key(p),
		DocsLoading: true,
		MetaLoading: true,
	}}
}

// State returns a copy of the current state.
func (v *CollectionView) State() CollectionState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Documents = append([]map[string]any(nil), v.state.Documents...)
	if v.state.Metadata != nil {
		m := v.state.Metadata.Clone()
		s.Metadata = &m
	}
	return s
}

// Load fetches documents and metadata concurrently. Each fetch sets only its
// own flags, so a failed metadata lookup leaves the document list intact.
func (v *CollectionView) Load(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Go(func() { v.LoadDocuments(ctx) })
	wg.Go(func() { v.LoadMetadata(ctx) })
	wg.Wait()
}

// LoadDocuments fetches the documents of the collection.
func (v *CollectionView) LoadDocuments(ctx context.Context) {
	v.mu.Lock()
	v.state.DocsLoading, v.state.DocsErr = true, ""
	path := v.state.Path
	v.mu.Unlock()

	docs, err := v.api.ListDocuments(ctx, v.db, path)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.DocsLoading = false
	if err != nil {
		v.state.DocsErr = Message(err)
		return
	}
	v.state.Documents = docs
}

// LoadMetadata fetches the schema of the collection. A missing schema is not
// an error: the view falls back to a plain id-only form.
func (v *CollectionView) LoadMetadata(ctx context.Context) {
	v.mu.Lock()
	v.state.MetaLoading, v.state.MetaErr = true, ""
	key := v.state.Key
	v.mu.Unlock()

	def, err := v.api.GetMetadata(ctx, v.db, key)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.MetaLoading = false
	switch {
	case errors.Is(err, client.ErrNotFound):
		v.state.Metadata = nil
	case err != nil:
		v.state.MetaErr = Message(err)
	default:
		v.state.Metadata = &def
	}
}

// IDHint returns an example document id for the collection, e.g. user_123
// for users.
func (v *CollectionView) IDHint() string {
	name := v.state.Name
	if name == "" {
		return "doc_123"
	}
	return inflection.Singular(name) + "_123"
}

// AddDocument creates document id with data. When a schema is loaded the
// data is checked first and a *schema.ValidationError is returned without
// contacting the API. On success the form is considered consumed and the
// document list is reloaded.
func (v *CollectionView) AddDocument(ctx context.Context, id string, data map[string]any) error {
	id = strings.TrimSpace(id)
	err := docpath.ValidateName(id)
	if id == "" {
		err = fmt.Errorf("document id is required")
	}
	if err != nil {
		v.setStatus(false, "Error: "+err.Error())
		return err
	}

	v.mu.Lock()
	if v.state.Saving {
		err = fmt.Errorf("a document is already being saved")
		v.state.Status = "Error: " + err.Error()
		v.mu.Unlock()
		return err
	}
	var fields schema.Fields
	if v.state.Metadata != nil {
		fields = v.state.Metadata.Fields.Clone()
	}
	path := v.state.Path
	v.mu.Unlock()

	if err := schema.ValidateDocument(fields, data); err != nil {
		v.setStatus(false, "Error: "+err.Error())
		return err
	}

	v.setStatus(true, "")
	err = v.api.UpsertDocument(ctx, v.db, path, id, maps.Clone(data))
	if err != nil {
		v.setStatus(false, "Creation failed: "+Message(err))
		return err
	}
	v.setStatus(false, fmt.Sprintf("Document '%s' saved.", id))
	v.LoadDocuments(ctx)
	return nil
}

func (v *CollectionView) setStatus(saving bool, status string) {
	v.mu.Lock()
	v.state.Saving = saving
	if status != "" || saving {
		v.state.Status = status
	}
	v.mu.Unlock()
}
