// Package doctree models a document database as nested collections and
// documents. Documents may own sub-collections to any depth.
package doctree

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/faciam-dev/docmeta/pkg/docpath"
)

// CollectionsKey is the reserved document key holding sub-collections in the
// JSON form of a document.
const CollectionsKey = "collections"

var (
	// ErrExists is returned when adding a collection or document whose name is taken.
	ErrExists = errors.New("already exists")
	// ErrReservedField is returned when a field name collides with CollectionsKey.
	ErrReservedField = errors.New("reserved field name")
)

// Tree is the root of a database: its top-level collections.
type Tree struct {
	Collections map[string]*Collection
}

// Collection is a named set of documents.
type Collection struct {
	Name      string
	Path      string
	Documents map[string]*Document
}

// Document is a set of fields plus optional sub-collections.
type Document struct {
	ID          string
	Path        string
	Fields      map[string]any
	Collections map[string]*Collection
}

// CollectionRef identifies a collection by name and path.
type CollectionRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// DocumentRef identifies a document by id and path.
type DocumentRef struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{Collections: map[string]*Collection{}}
}

// NewCollection returns an empty collection at p.
func NewCollection(p string) *Collection {
	p = docpath.Join(p)
	return &Collection{Name: docpath.Name(p), Path: p, Documents: map[string]*Document{}}
}

// Ref returns the reference of c.
func (c *Collection) Ref() CollectionRef {
	return CollectionRef{Name: c.Name, Path: c.Path}
}

// Ref returns the reference of d.
func (d *Document) Ref() DocumentRef {
	return DocumentRef{ID: d.ID, Path: d.Path}
}

// AddCollection creates a top-level collection.
func (t *Tree) AddCollection(name string) (*Collection, error) {
	if err := docpath.ValidateName(name); err != nil {
		return nil, err
	}
	if t.Collections == nil {
		t.Collections = map[string]*Collection{}
	}
	if _, ok := t.Collections[name]; ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrExists)
	}
	c := NewCollection(name)
	t.Collections[name] = c
	return c, nil
}

// AddDocument creates a document in c holding a copy of fields.
func (c *Collection) AddDocument(id string, fields map[string]any) (*Document, error) {
	if err := docpath.ValidateName(id); err != nil {
		return nil, err
	}
	if _, ok := fields[CollectionsKey]; ok {
		return nil, fmt.Errorf("document %q: %w: %s", id, ErrReservedField, CollectionsKey)
	}
	if c.Documents == nil {
		c.Documents = map[string]*Document{}
	}
	if _, ok := c.Documents[id]; ok {
		return nil, fmt.Errorf("document %q: %w", id, ErrExists)
	}
	d := &Document{
		ID:          id,
		Path:        docpath.Join(c.Path, id),
		Fields:      maps.Clone(fields),
		Collections: map[string]*Collection{},
	}
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	c.Documents[id] = d
	return d, nil
}

// SetField sets a single field on d.
func (d *Document) SetField(key string, value any) error {
	if key == "" {
		return fmt.Errorf("document %q: empty field name", d.ID)
	}
	if key == CollectionsKey {
		return fmt.Errorf("document %q: %w: %s", d.ID, ErrReservedField, key)
	}
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	d.Fields[key] = value
	return nil
}

// AddCollection creates a sub-collection under d.
func (d *Document) AddCollection(name string) (*Collection, error) {
	if err := docpath.ValidateName(name); err != nil {
		return nil, err
	}
	if d.Collections == nil {
		d.Collections = map[string]*Collection{}
	}
	if _, ok := d.Collections[name]; ok {
		return nil, fmt.Errorf("collection %q: %w", name, ErrExists)
	}
	c := NewCollection(docpath.Join(d.Path, name))
	d.Collections[name] = c
	return c, nil
}

// Find resolves p to a collection or document node.
func (t *Tree) Find(p string) (Node, bool) {
	segs := docpath.Split(p)
	if len(segs) == 0 {
		return Node{}, false
	}
	c, ok := t.Collections[segs[0]]
	if !ok {
		return Node{}, false
	}
	for i := 1; ; i += 2 {
		if i >= len(segs) {
			return collectionNode(c, i-1), true
		}
		d, ok := c.Documents[segs[i]]
		if !ok {
			return Node{}, false
		}
		if i+1 >= len(segs) {
			return documentNode(d, c, i), true
		}
		if c, ok = d.Collections[segs[i+1]]; !ok {
			return Node{}, false
		}
	}
}

// Collection returns the collection at p.
func (t *Tree) Collection(p string) (*Collection, bool) {
	n, ok := t.Find(p)
	if !ok || n.Kind != KindCollection {
		return nil, false
	}
	return n.Collection, true
}

// Document returns the document at p.
func (t *Tree) Document(p string) (*Document, bool) {
	n, ok := t.Find(p)
	if !ok || n.Kind != KindDocument {
		return nil, false
	}
	return n.Document, true
}

// EnsureCollection returns the collection at p, creating it and any missing
// ancestor collections and documents.
func (t *Tree) EnsureCollection(p string) (*Collection, error) {
	if err := docpath.ValidatePath(p); err != nil {
		return nil, err
	}
	if docpath.IsDocument(p) {
		return nil, fmt.Errorf("%q addresses a document", p)
	}
	segs := docpath.Split(p)
	if t.Collections == nil {
		t.Collections = map[string]*Collection{}
	}
	c, ok := t.Collections[segs[0]]
	if !ok {
		c = NewCollection(segs[0])
		t.Collections[segs[0]] = c
	}
	for i := 1; i+1 < len(segs); i += 2 {
		d, ok := c.Documents[segs[i]]
		if !ok {
			var err error
			if d, err = c.AddDocument(segs[i], nil); err != nil {
				return nil, err
			}
		}
		next, ok := d.Collections[segs[i+1]]
		if !ok {
			var err error
			if next, err = d.AddCollection(segs[i+1]); err != nil {
				return nil, err
			}
		}
		c = next
	}
	return c, nil
}

// FromRecords builds the collection at p from fetched records. Each record
// must carry its id under "_id"; the remaining keys become fields.
func FromRecords(p string, records []map[string]any) (*Collection, error) {
	c := NewCollection(p)
	for i, r := range records {
		id, ok := r["_id"]
		if !ok {
			return nil, fmt.Errorf("record %d: missing _id", i)
		}
		fields := maps.Clone(r)
		delete(fields, "_id")
		delete(fields, CollectionsKey)
		if _, err := c.AddDocument(fmt.Sprint(id), fields); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return c, nil
}

// Merge adds fetched records to c. Records for documents already present
// replace their fields and keep their sub-collections.
func (c *Collection) Merge(records []map[string]any) error {
	for i, r := range records {
		id, ok := r["_id"]
		if !ok {
			return fmt.Errorf("record %d: missing _id", i)
		}
		fields := maps.Clone(r)
		delete(fields, "_id")
		delete(fields, CollectionsKey)
		if d, ok := c.Documents[fmt.Sprint(id)]; ok {
			d.Fields = fields
			continue
		}
		if _, err := c.AddDocument(fmt.Sprint(id), fields); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// Validate checks that every collection and document path equals its
// parent's path joined with its own name.
func (t *Tree) Validate() error {
	for name, c := range t.Collections {
		if err := c.validate(name, ""); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) validate(name, parent string) error {
	want := docpath.Join(parent, name)
	if c.Name != name || c.Path != want {
		return fmt.Errorf("collection %q: path %q, want %q", name, c.Path, want)
	}
	for id, d := range c.Documents {
		wantDoc := docpath.Join(c.Path, id)
		if d.ID != id || d.Path != wantDoc {
			return fmt.Errorf("document %q: path %q, want %q", id, d.Path, wantDoc)
		}
		for sub, sc := range d.Collections {
			if err := sc.validate(sub, d.Path); err != nil {
				return err
			}
		}
	}
	return nil
}

// CollectionNames returns the top-level collection names, sorted.
func (t *Tree) CollectionNames() []string {
	return slices.Sorted(maps.Keys(t.Collections))
}

// SubCollectionNames returns the names of d's sub-collections, sorted.
func (d *Document) SubCollectionNames() []string {
	return slices.Sorted(maps.Keys(d.Collections))
}

// Record returns d's fields with its id under "_id".
func (d *Document) Record() map[string]any {
	r := maps.Clone(d.Fields)
	if r == nil {
		r = map[string]any{}
	}
	r["_id"] = d.ID
	return r
}

// Records returns the records of c ordered by document id.
func (c *Collection) Records() []map[string]any {
	out := make([]map[string]any, 0, len(c.Documents))
	for _, id := range slices.Sorted(maps.Keys(c.Documents)) {
		out = append(out, c.Documents[id].Record())
	}
	return out
}
