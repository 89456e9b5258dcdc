// Package store defines the storage contract behind the reference API server.
// Collections are addressed by their storage name: top-level collections by
// their plain name, sub-collections by the dotted chain of their path
// (users.u1.posts).
package store

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// MetadataCollection holds the schema definitions of a database. It is never
// listed as a collection.
const MetadataCollection = "metadata_schemas"

// IDField is the document key carrying the document id.
const IDField = "_id"

// Store is implemented by every backend.
type Store interface {
	ListDatabases(ctx context.Context) ([]string, error)
	// CreateDatabase creates db if absent and reports whether it was created.
	CreateDatabase(ctx context.Context, db string) (bool, error)

	// ListCollections returns the sorted storage names of db's collections.
	ListCollections(ctx context.Context, db string) ([]string, error)
	// CreateCollection fails with ErrExists when name is already present.
	CreateCollection(ctx context.Context, db, name string) error

	// ListDocuments returns the documents of a collection sorted by id, each
	// carrying its id under IDField.
	ListDocuments(ctx context.Context, db, collection string) ([]map[string]any, error)
	GetDocument(ctx context.Context, db, collection, id string) (map[string]any, error)
	// UpsertDocument replaces the document, creating the database and the
	// collection when needed.
	UpsertDocument(ctx context.Context, db, collection, id string, data map[string]any) error

	GetMetadata(ctx context.Context, db, key string) (schema.Definition, error)
	ListMetadata(ctx context.Context, db string) (schema.Envelope, error)
	SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error

	Close(ctx context.Context) error
}

// SubCollections returns the names of the collections nested directly under
// the document at docPath, given all storage names of the database.
func SubCollections(names []string, docPath string) []string {
	prefix := docpath.StorageName(docpath.Join(docPath)) + "."
	var out []string
	for _, n := range names {
		rest, ok := strings.CutPrefix(n, prefix)
		if !ok || rest == "" || strings.Contains(rest, ".") {
			continue
		}
		out = append(out, rest)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// WithID returns a copy of data with IDField set to id.
func WithID(data map[string]any, id string) map[string]any {
	out := make(map[string]any, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[IDField] = id
	return out
}

// SortByID orders documents by their IDField.
func SortByID(docs []map[string]any) {
	slices.SortFunc(docs, func(a, b map[string]any) int {
		return strings.Compare(idOf(a), idOf(b))
	})
}

func idOf(doc map[string]any) string {
	s, _ := doc[IDField].(string)
	return s
}

// SystemDatabase reports whether db is internal to the backend and hidden
// from listings.
func SystemDatabase(db string) bool {
	switch db {
	case "admin", "local", "config":
		return true
	}
	return false
}
