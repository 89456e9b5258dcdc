package views

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/doctree"
)

// DocumentState is what the document panel shows.
type DocumentState struct {
	ID             string
	Path           string
	Data           map[string]any
	SubCollections []string
	Loading        bool
	Err            string
	Status         string
}

// Keys returns the displayed field names in sorted order. The reserved
// collections key and the id fields are not shown.
func (s DocumentState) Keys() []string {
	var out []string
	for _, k := range slices.Sorted(maps.Keys(s.Data)) {
		if k == doctree.CollectionsKey || k == "id" || k == "_id" {
			continue
		}
		out = append(out, k)
	}
	return out
}

// FormatValue renders a field value: objects and arrays as indented JSON,
// everything else as text.
func FormatValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.MarshalIndent(v, "", "  ")
		if err == nil {
			return string(b)
		}
	case nil:
		return "null"
	}
	return fmt.Sprint(v)
}

// DocumentView shows one document and its sub-collections.
type DocumentView struct {
	api API
	db  string

	mu    sync.Mutex
	state DocumentState
}

func NewDocumentView(api API, db, path string) *DocumentView {
	p := docpath.Join(path)
	return &DocumentView{api: api, db: db, state: DocumentState{ID: docpath.Name(p), Path: p, Loading: true}}
}

// State returns a copy of the current state.
func (v *DocumentView) State() DocumentState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Data = maps.Clone(v.state.Data)
	s.SubCollections = slices.Clone(v.state.SubCollections)
	return s
}

// Load fetches the document.
func (v *DocumentView) Load(ctx context.Context) {
	v.mu.Lock()
	v.state.Loading, v.state.Err = true, ""
	v.mu.Unlock()

	doc, err := v.api.GetDocument(ctx, v.db, v.state.Path)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Loading = false
	if err != nil {
		v.state.Err = Message(err)
		return
	}
	v.state.Data = doc.Data
	v.state.SubCollections = doc.SubCollections
}

// SetField stores one field. The raw value is read as JSON when it parses,
// so {"a":1} becomes an object and 42 a number; anything else is a string.
func (v *DocumentView) SetField(ctx context.Context, key, raw string) error {
	key = strings.TrimSpace(key)
	if key == "" || key == doctree.CollectionsKey || key == "_id" {
		err := fmt.Errorf("invalid field name %q", key)
		v.status("Error: " + err.Error())
		return err
	}
	var val any
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		val = raw
	}

	v.mu.Lock()
	data := maps.Clone(v.state.Data)
	v.mu.Unlock()
	if data == nil {
		data = map[string]any{}
	}
	delete(data, "_id")
	delete(data, doctree.CollectionsKey)
	data[key] = val

	if err := v.api.UpsertDocument(ctx, v.db, docpath.Parent(v.state.Path), v.state.ID, data); err != nil {
		v.status("Error: " + Message(err))
		return err
	}
	v.status(fmt.Sprintf("Field '%s' updated.", key))
	v.Load(ctx)
	return nil
}

// AddSubCollection creates a sub-collection under the document.
func (v *DocumentView) AddSubCollection(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := docpath.ValidateName(name); err != nil {
		v.status("Error: " + err.Error())
		return err
	}
	if err := v.api.CreateSubCollection(ctx, v.db, v.state.Path, name); err != nil {
		v.status("Error: " + Message(err))
		return err
	}
	v.mu.Lock()
	if !slices.Contains(v.state.SubCollections, name) {
		v.state.SubCollections = append(v.state.SubCollections, name)
		slices.Sort(v.state.SubCollections)
	}
	v.state.Status = fmt.Sprintf("Sub-collection '%s' created.", name)
	v.mu.Unlock()
	return nil
}

// SubCollectionPath returns the path of a sub-collection of the document.
func (v *DocumentView) SubCollectionPath(name string) string {
	return docpath.Join(v.state.Path, name)
}

func (v *DocumentView) status(s string) {
	v.mu.Lock()
	v.state.Status = s
	v.mu.Unlock()
}
