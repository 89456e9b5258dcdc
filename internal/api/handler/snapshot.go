package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/faciam-dev/docmeta/internal/api/schema"
	"github.com/faciam-dev/docmeta/internal/huma"
	"github.com/faciam-dev/docmeta/internal/snapshot"
	"github.com/faciam-dev/docmeta/internal/store"
)

// SnapshotHandler writes on-demand metadata snapshots to the server's
// configured destination.
type SnapshotHandler struct {
	Store store.Store
	Dest  snapshot.Dest
}

type snapshotOutput struct{ Body schema.SnapshotWritten }

// RegisterSnapshot registers the snapshot endpoint.
func RegisterSnapshot(api huma.API, h *SnapshotHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "createSnapshot",
		Method:      http.MethodPost,
		Path:        "/snapshots/{db}",
		Summary:     "Snapshot every definition of a database",
		Description: "Writes a timestamped YAML export to the directory or S3 bucket the server was started with.",
		Tags:        []string{"Metadata"},
	}, h.create)
}

func (h *SnapshotHandler) create(ctx context.Context, in *dbParam) (*snapshotOutput, error) {
	if h.Dest == nil {
		return nil, huma.Error503ServiceUnavailable("snapshots are not configured on this server")
	}
	if _, err := h.Store.ListCollections(ctx, in.DB); err != nil {
		return nil, apiError("snapshot", err)
	}
	name, err := snapshot.Export(ctx, h.Store, in.DB, h.Dest)
	if err != nil {
		return nil, apiError("snapshot", fmt.Errorf("export %s: %w", in.DB, err))
	}
	return &snapshotOutput{Body: schema.SnapshotWritten{File: name, Dest: fmt.Sprint(h.Dest)}}, nil
}
