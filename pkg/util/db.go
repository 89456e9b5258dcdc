package util

import (
	"fmt"
	"net/url"
	"strings"

	ormdriver "github.com/faciam-dev/goquent/orm/driver"
)

// UnsupportedDialect is returned when a driver has no corresponding goquent dialect.
type UnsupportedDialect struct{ Driver string }

func (UnsupportedDialect) Placeholder(int) string { return "?" }

func (UnsupportedDialect) QuoteIdent(ident string) string { return ident }

// DetectDriver returns the store driver based on the DSN scheme.
// Supported schemes: mysql, postgres/postgresql, mongodb/mongodb+srv,
// sqlite/file and memory.
func DetectDriver(dsn string) (string, error) {
	if dsn == "" || dsn == "memory" {
		return "memory", nil
	}
	if strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite") {
		return "sqlite3", nil
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	switch parsedURL.Scheme {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mongodb", "mongodb+srv":
		return "mongo", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3", "file":
		return "sqlite3", nil
	case "memory":
		return "memory", nil
	default:
		return "", fmt.Errorf("unknown scheme: %s", parsedURL.Scheme)
	}
}

// DialectFromDriver returns the goquent dialect corresponding to a driver.
// SQLite accepts MySQL's placeholders and identifier quoting.
func DialectFromDriver(d string) ormdriver.Dialect {
	switch d {
	case "postgres":
		return ormdriver.PostgresDialect{}
	case "mysql", "sqlite3":
		return ormdriver.MySQLDialect{}
	default:
		return UnsupportedDialect{Driver: d}
	}
}

// Placeholder returns the n-th (1-based) bind placeholder for driver.
func Placeholder(driver string, n int) string {
	if driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
