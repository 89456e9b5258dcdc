package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/faciam-dev/docmeta/internal/views"
	"github.com/faciam-dev/docmeta/pkg/docpath"
)

// Results are delivered with the view they were loaded into. A result whose
// view is no longer the open panel is dropped.

type databasesMsg struct{}

type collectionsMsg struct {
	db     string
	names  []string
	err    error
	status string
}

type collectionMsg struct{ view *views.CollectionView }

type documentMsg struct{ view *views.DocumentView }

type metadataMsg struct {
	session *views.MetadataSession
	err     error
}

func loadDatabases(ctx context.Context, l *views.DatabaseList) tea.Cmd {
	return func() tea.Msg {
		l.Load(ctx)
		return databasesMsg{}
	}
}

func createDatabase(ctx context.Context, l *views.DatabaseList, name string) tea.Cmd {
	return func() tea.Msg {
		_ = l.Create(ctx, name)
		return databasesMsg{}
	}
}

func loadCollections(ctx context.Context, api views.API, db string) tea.Cmd {
	return func() tea.Msg {
		names, err := api.ListCollections(ctx, db)
		return collectionsMsg{db: db, names: names, err: err}
	}
}

func createCollection(ctx context.Context, api views.API, db, name string) tea.Cmd {
	return func() tea.Msg {
		name = strings.TrimSpace(name)
		if err := docpath.ValidateName(name); err != nil {
			return collectionsMsg{db: db, err: err}
		}
		status := fmt.Sprintf("Collection '%s' created.", name)
		if err := api.CreateCollection(ctx, db, name); err != nil {
			status = "Error: " + views.Message(err)
		}
		names, err := api.ListCollections(ctx, db)
		return collectionsMsg{db: db, names: names, err: err, status: status}
	}
}

func loadCollection(ctx context.Context, v *views.CollectionView) tea.Cmd {
	return func() tea.Msg {
		v.Load(ctx)
		return collectionMsg{view: v}
	}
}

func addDocument(ctx context.Context, v *views.CollectionView, id string, data map[string]any) tea.Cmd {
	return func() tea.Msg {
		_ = v.AddDocument(ctx, id, data)
		return collectionMsg{view: v}
	}
}

func loadDocument(ctx context.Context, v *views.DocumentView) tea.Cmd {
	return func() tea.Msg {
		v.Load(ctx)
		return documentMsg{view: v}
	}
}

func setField(ctx context.Context, v *views.DocumentView, key, raw string) tea.Cmd {
	return func() tea.Msg {
		_ = v.SetField(ctx, key, raw)
		return documentMsg{view: v}
	}
}

func addSubCollection(ctx context.Context, v *views.DocumentView, name string) tea.Cmd {
	return func() tea.Msg {
		_ = v.AddSubCollection(ctx, name)
		return documentMsg{view: v}
	}
}

func openMetadata(ctx context.Context, m Model, path string) tea.Cmd {
	api, db, log := m.api, m.sel.Database(), m.log
	return func() tea.Msg {
		s, err := views.OpenMetadata(ctx, api, db, path, log)
		return metadataMsg{session: s, err: err}
	}
}

// parseNewDocument reads the new-document prompt: an id optionally followed
// by a JSON object, e.g. `u3 {"name":"Ann"}`.
func parseNewDocument(in string) (string, map[string]any, error) {
	in = strings.TrimSpace(in)
	id, rest, _ := strings.Cut(in, " ")
	data := map[string]any{}
	if rest = strings.TrimSpace(rest); rest != "" {
		if err := json.Unmarshal([]byte(rest), &data); err != nil {
			return "", nil, fmt.Errorf("document body must be a JSON object: %w", err)
		}
	}
	return id, data, nil
}
