// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:db/entretenimiento.db"
	//   "tv.db"
	DSN string

	// EnforceForeignKeys turns on PRAGMA foreign_keys for every connection.
	// When off, orphaned child rows are stored as dangling references.
	EnforceForeignKeys bool

	// BatchSize is the number of rows inserted per loader batch.
	BatchSize int
}

// dsnWithPragmas appends the per-connection pragmas the repository relies on.
func dsnWithPragmas(dsn string, enforceFK bool) string {
	fk := "0"
	if enforceFK {
		fk = "1"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(" + fk + ")&_pragma=busy_timeout(5000)"
}

// dbPath returns the file path named by dsn, or "" for in-memory databases.
func dbPath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	p, query, _ := strings.Cut(p, "?")
	if p == "" || p == ":memory:" || strings.Contains(query, "mode=memory") {
		return ""
	}
	return p
}

// ensureDir creates the parent directory of the database file.
func ensureDir(dsn string) error {
	p := dbPath(dsn)
	if p == "" {
		return nil
	}
	dir := filepath.Dir(p)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
