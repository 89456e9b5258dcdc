// Package views holds the view models behind the explorer: the state each
// panel shows and the operations it offers. Every fetch has its own loading
// flag and error so one failing request never hides the result of another.
// Errors are kept on the model as operator-facing messages; nothing is fatal
// and nothing is retried automatically.
package views

import (
	"context"
	"errors"

	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/sdk/client"
)

// API is the subset of the REST client used by the views.
type API interface {
	ListDatabases(ctx context.Context) ([]string, error)
	CreateDatabase(ctx context.Context, db string) (bool, error)
	ListCollections(ctx context.Context, db string) ([]string, error)
	CreateCollection(ctx context.Context, db, name string) error
	CreateSubCollection(ctx context.Context, db, docPath, name string) error
	ListDocuments(ctx context.Context, db, path string) ([]map[string]any, error)
	GetDocument(ctx context.Context, db, path string) (client.Document, error)
	UpsertDocument(ctx context.Context, db, collectionPath, id string, data map[string]any) error
	GetMetadata(ctx context.Context, db, key string) (schema.Definition, error)
	SaveMetadata(ctx context.Context, db, key string, def schema.Definition) error
	Columns(ctx context.Context, db, table string) ([]string, error)
}

var _ API = (*client.Client)(nil)

// Message returns the operator-facing text of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return apiErr.Error()
	}
	return err.Error()
}
