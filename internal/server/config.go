package server

import (
	"github.com/faciam-dev/docmeta/internal/snapshot"
	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/internal/store/sqlstore"
)

// Config holds what the API server is built from.
type Config struct {
	// Store serves every endpoint.
	Store store.Store
	// SQL, when set, receives audit rows and dead-lettered events. It is the
	// same backend as Store when the server runs on a SQL database.
	SQL *sqlstore.Store
	// EventsConfig is the path of the events YAML file; empty disables sinks.
	EventsConfig string
	// Snapshots receives on-demand snapshots; nil disables the endpoint.
	Snapshots snapshot.Dest
}
