package docpath

import (
	"fmt"
	"strings"
)

const (
	databaseRoute = "/database/"
	metadataRoute = "/databases/metadata/"
)

// DatabaseRoute returns the explorer route of a database root.
func DatabaseRoute(db string) string {
	return strings.TrimSuffix(databaseRoute, Separator) + Separator + db
}

// Route returns the explorer route of a collection or document.
func Route(db, p string) string {
	if p = Join(p); p == "" {
		return DatabaseRoute(db)
	}
	return DatabaseRoute(db) + Separator + p
}

// MetadataRoute returns the schema editor route for a collection path.
func MetadataRoute(db, p string) string {
	r := metadataRoute + db
	if p = Join(p); p != "" {
		r += Separator + p
	}
	return r
}

// ParseRoute splits an explorer route into database and path.
func ParseRoute(route string) (db, p string, err error) {
	return parse(route, databaseRoute)
}

// ParseMetadataRoute splits a schema editor route into database and path.
func ParseMetadataRoute(route string) (db, p string, err error) {
	return parse(route, metadataRoute)
}

func parse(route, prefix string) (string, string, error) {
	if !strings.HasPrefix(route, prefix) {
		return "", "", fmt.Errorf("route %q: expected prefix %q", route, prefix)
	}
	segs := Split(strings.TrimPrefix(route, prefix))
	if len(segs) == 0 {
		return "", "", fmt.Errorf("route %q: missing database", route)
	}
	return segs[0], strings.Join(segs[1:], Separator), nil
}
