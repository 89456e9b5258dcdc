package views

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/faciam-dev/docmeta/pkg/docpath"
	"github.com/faciam-dev/docmeta/pkg/fieldeditor"
	"github.com/faciam-dev/docmeta/pkg/schema"
	"github.com/faciam-dev/docmeta/sdk/client"
)

// MetadataSession is one schema-editing session for a collection.
type MetadataSession struct {
	api    API
	db     string
	path   string
	key    string
	Editor *fieldeditor.Editor
	// Defined is false when no schema existed when the session was opened.
	Defined bool
	Status  string
}

// OpenMetadata loads the schema of the collection at path (a document path
// selects its collection) and returns an editing session. A collection
// without a schema opens with an empty editor.
func OpenMetadata(ctx context.Context, api API, db, path string, log *zap.SugaredLogger) (*MetadataSession, error) {
	key := docpath.Key(path)
	if key == "" {
		return nil, fmt.Errorf("open metadata: empty path")
	}
	def, err := api.GetMetadata(ctx, db, key)
	defined := true
	if errors.Is(err, client.ErrNotFound) {
		def, defined = schema.Definition{}, false
	} else if err != nil {
		return nil, fmt.Errorf("open metadata %s: %w", key, err)
	}
	ed := fieldeditor.New(db, key, def, fieldeditor.WithColumnLister(api), fieldeditor.WithLogger(log))
	return &MetadataSession{api: api, db: db, path: docpath.Join(path), key: key, Editor: ed, Defined: defined}, nil
}

// Key returns the metadata key being edited.
func (s *MetadataSession) Key() string { return s.key }

// Route returns the schema editor route of the session.
func (s *MetadataSession) Route() string { return docpath.MetadataRoute(s.db, s.path) }

// TableChoices lists the collections a foreign key may reference.
func (s *MetadataSession) TableChoices(ctx context.Context) ([]string, error) {
	return s.Editor.ForeignKeys().TableChoices(ctx, s.api)
}

// Save writes the edited definition, replacing the stored one.
func (s *MetadataSession) Save(ctx context.Context) error {
	if err := s.Editor.Save(ctx, s.api); err != nil {
		s.Status = "Error: " + Message(err)
		return err
	}
	s.Defined = true
	s.Status = "Metadata saved."
	return nil
}
