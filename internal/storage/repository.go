// Package storage contains storage-agnostic contracts and utilities: the
// Repository interface every backend implements, the backend registry, the
// typed schema/load errors, staging-table naming and the batched loader.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tvetl/internal/ddl"
)

// Load is one table to materialize. Rows are aligned to Def.Columns.
type Load struct {
	Def  ddl.TableDef
	Rows [][]any
}

// Result is the tabular outcome of a read-only query.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Repository is implemented by every backend.
type Repository interface {
	// Replace supersedes the contents of every table in loads. Loads are
	// ordered parents first. New data is staged in shadow tables and swapped
	// in only after every table loaded; on failure the previous contents
	// remain. Schema failures are *SchemaError, write failures *LoadError.
	Replace(ctx context.Context, loads []Load) error

	// Query runs one read-only statement and returns its rows.
	Query(ctx context.Context, sql string) (*Result, error)

	Close()
}

// Config is the backend-neutral repository configuration.
type Config struct {
	Kind string
	DSN  string
	// EnforceForeignKeys rejects orphaned child rows. Only SQLite can run
	// without enforcement; the other stores always enforce declared keys.
	EnforceForeignKeys bool
	BatchSize          int
}

// Factory opens a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a storage kind. Backends
// call it from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository of cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
