// Package dialect names the SQL dialects the engine's serializer and
// transaction-nesting generator know how to render for, and parses the
// connection URLs that select among them and the non-SQL backends.
package dialect

import (
	"fmt"
	"net/url"
	"strings"
)

// Dialect tags a SQL flavor. Non-SQL backends (DynamoDB, MongoDB) never
// reach this package; they're selected by Scheme alone and speak
// driver.Operation directly, never dialect/sql.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Scheme is a recognized connection URL scheme.
type Scheme string

const (
	SchemeSQLite      Scheme = "sqlite"
	SchemePostgres    Scheme = "postgresql"
	SchemePostgresAlt Scheme = "postgres"
	SchemeMySQL       Scheme = "mysql"
	SchemeDynamoDB    Scheme = "dynamodb"
	SchemeMongoDB     Scheme = "mongodb"
)

// ConnectionURL is the parsed form of a `scheme://…` connection string: the
// recognized backend scheme, the database name extracted from the URL's
// path segment, and driver-specific options carried in the query string.
type ConnectionURL struct {
	Scheme   Scheme
	Database string
	Options  map[string][]string
}

// ParseURL parses raw into a ConnectionURL, rejecting schemes the engine
// doesn't recognize. The database name is the URL path with its leading
// slash trimmed; for sqlite, a bare path (no "://", e.g. "sqlite::memory:"
// or "sqlite:./app.db") is also accepted since SQLite connection strings
// are frequently file paths rather than full URLs.
func ParseURL(raw string) (ConnectionURL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ConnectionURL{}, fmt.Errorf("dialect: invalid connection URL: %w", err)
	}
	if u.Scheme == "" {
		return ConnectionURL{}, fmt.Errorf("dialect: connection URL %q has no scheme", raw)
	}

	scheme := Scheme(u.Scheme)
	switch scheme {
	case SchemeSQLite, SchemePostgres, SchemePostgresAlt, SchemeMySQL, SchemeDynamoDB, SchemeMongoDB:
	default:
		return ConnectionURL{}, fmt.Errorf("dialect: unrecognized connection scheme %q", u.Scheme)
	}

	db := strings.TrimPrefix(u.Path, "/")
	if db == "" && u.Opaque != "" {
		// "sqlite::memory:" / "sqlite:relative/path.db" parse with the
		// database name in Opaque rather than Path.
		db = u.Opaque
	}

	return ConnectionURL{
		Scheme:   scheme,
		Database: db,
		Options:  map[string][]string(u.Query()),
	}, nil
}

// DialectForScheme maps a connection scheme to the SQL dialect a sql-
// capability driver would use to serialize statements, or ok=false for a
// non-SQL scheme.
func DialectForScheme(s Scheme) (d Dialect, ok bool) {
	switch s {
	case SchemeSQLite:
		return SQLite, true
	case SchemePostgres, SchemePostgresAlt:
		return Postgres, true
	case SchemeMySQL:
		return MySQL, true
	default:
		return "", false
	}
}
