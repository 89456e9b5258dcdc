// Package memstore keeps databases in memory as document trees.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/doctree"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

// Store is a concurrency-safe in-memory store.
type Store struct {
	mu       sync.RWMutex
	dbs      map[string]*doctree.Tree
	metadata map[string]map[string]schema.Definition
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{dbs: map[string]*doctree.Tree{}, metadata: map[string]map[string]schema.Definition{}}
}

// Load replaces db with a copy of t.
func (s *Store) Load(db string, t *doctree.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dbs[db] = t.Clone()
}

// Tree returns a copy of db's tree.
func (s *Store) Tree(db string) (*doctree.Tree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.dbs[db]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (s *Store) ListDatabases(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.dbs)), nil
}

func (s *Store) CreateDatabase(_ context.Context, db string) (bool, error) {
	if err := docpath.ValidateName(db); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dbs[db]; ok {
		return false, nil
	}
	s.dbs[db] = doctree.New()
	return true, nil
}

func (s *Store) tree(db string) (*doctree.Tree, error) {
	t, ok := s.dbs[db]
	if !ok {
		return nil, fmt.Errorf("database %q: %w", db, store.ErrNotFound)
	}
	return t, nil
}

func (s *Store) ListCollections(_ context.Context, db string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.tree(db)
	if err != nil {
		return nil, err
	}
	var names []string
	for n := range t.Walk() {
		if n.Kind == doctree.KindCollection {
			names = append(names, docpath.StorageName(n.Path))
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) CreateCollection(_ context.Context, db, name string) error {
	p := docpath.PathFromStorageName(name)
	if err := docpath.ValidatePath(p); err != nil {
		return err
	}
	if docpath.IsDocument(p) {
		return fmt.Errorf("collection %q addresses a document", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensureDB(db)
	if _, ok := t.Collection(p); ok {
		return fmt.Errorf("collection %q: %w", name, store.ErrExists)
	}
	_, err := t.EnsureCollection(p)
	return err
}

func (s *Store) ensureDB(db string) *doctree.Tree {
	t, ok := s.dbs[db]
	if !ok {
		t = doctree.New()
		s.dbs[db] = t
	}
	return t
}

func (s *Store) collection(db, name string) (*doctree.Collection, error) {
	t, err := s.tree(db)
	if err != nil {
		return nil, err
	}
	c, ok := t.Collection(docpath.PathFromStorageName(name))
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, store.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListDocuments(_ context.Context, db, collection string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(db, collection)
	if err != nil {
		return nil, err
	}
	return c.Clone().Records(), nil
}

func (s *Store) GetDocument(_ context.Context, db, collection, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.collection(db, collection)
	if err != nil {
		return nil, err
	}
	d, ok := c.Documents[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", docpath.Join(c.Path, id), store.ErrNotFound)
	}
	return d.Clone().Record(), nil
}

func (s *Store) UpsertDocument(_ context.Context, db, collection, id string, data map[string]any) error {
	if err := docpath.ValidateName(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.ensureDB(db).EnsureCollection(docpath.PathFromStorageName(collection))
	if err != nil {
		return err
	}
	fields := (&doctree.Document{Fields: data}).Clone().Fields
	delete(fields, store.IDField)
	delete(fields, doctree.CollectionsKey)
	if d, ok := c.Documents[id]; ok {
		d.Fields = fields
		return nil
	}
	_, err = c.AddDocument(id, fields)
	return err
}

func (s *Store) GetMetadata(_ context.Context, db, key string) (schema.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.metadata[db][key]
	if !ok {
		return schema.Definition{}, fmt.Errorf("metadata %q: %w", key, store.ErrNotFound)
	}
	return def.Clone(), nil
}

func (s *Store) ListMetadata(_ context.Context, db string) (schema.Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := schema.Envelope{}
	for k, def := range s.metadata[db] {
		out[k] = def.Clone()
	}
	return out, nil
}

func (s *Store) SaveMetadata(_ context.Context, db, key string, def schema.Definition) error {
	if key == "" {
		return fmt.Errorf("save metadata: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureDB(db)
	if s.metadata[db] == nil {
		s.metadata[db] = map[string]schema.Definition{}
	}
	s.metadata[db][key] = def.Clone()
	return nil
}

func (s *Store) Close(context.Context) error { return nil }
