package server

import (
	"context"
	"fmt"

	"github.com/faciam-dev/docmeta/internal/store"
	"github.com/faciam-dev/docmeta/internal/store/memstore"
	"github.com/faciam-dev/docmeta/internal/store/mongostore"
	"github.com/faciam-dev/docmeta/internal/store/sqlstore"
)

// OpenStore opens the backend for driver. For SQL drivers the returned
// *sqlstore.Store is the same value as the store.Store and is meant for
// Config.SQL; it is nil otherwise. SQL drivers must be registered by the
// caller.
func OpenStore(ctx context.Context, driver, dsn, prefix string) (store.Store, *sqlstore.Store, error) {
	switch driver {
	case "memory":
		return memstore.New(), nil, nil
	case "mongo":
		s, err := mongostore.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case "postgres", "mysql", "sqlite3":
		s, err := sqlstore.Open(ctx, driver, dsn, prefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", driver)
}
