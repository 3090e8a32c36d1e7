package sqlite

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"tvetl/internal/storage"
	sqliteddl "tvetl/internal/storage/sqlite/ddl"
)

// Repository is a SQLite-backed implementation of storage.Repository.
//
// The pool is limited to one connection: SQLite serializes writers anyway,
// and the per-connection pragmas then hold for every statement.
type Repository struct {
	db  *sqlx.DB
	cfg Config
}

// NewRepository opens a SQLite database and returns a Repository plus a
// Close function for cleanup. The parent directory of a file database is
// created if needed.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	if err := ensureDir(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("sqlite: create directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dsnWithPragmas(cfg.DSN, cfg.EnforceForeignKeys))
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// Replace stages every table in loads as <name>__staging, loads it, then
// drops the live tables children first and renames the staging tables into
// place, all in one transaction. SQLite rewrites foreign-key references on
// rename, so the swapped children reference the swapped parent.
func (r *Repository) Replace(ctx context.Context, loads []storage.Load) error {
	if err := storage.CheckLoads(loads); err != nil {
		return err
	}
	staged := storage.StagingDefs(loads)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &storage.SchemaError{Table: loads[0].Def.FQN, Err: fmt.Errorf("begin tx: %w", err)}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Leftovers of an interrupted run.
	for i := len(staged) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqliteddl.QuoteIdent(staged[i].FQN)); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
	}
	for i, def := range staged {
		stmt, err := sqliteddl.BuildCreateTableSQL(def)
		if err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
	}

	for i, l := range loads {
		n, err := r.load(ctx, tx, staged[i].FQN, l)
		if err != nil {
			return &storage.LoadError{Table: l.Def.FQN, Err: err}
		}
		log.Printf("sqlite: staged table=%s rows=%d", l.Def.FQN, n)
	}

	for i := len(loads) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqliteddl.QuoteIdent(loads[i].Def.FQN)); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: fmt.Errorf("drop previous: %w", err)}
		}
	}
	for i, l := range loads {
		q := fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
			sqliteddl.QuoteIdent(staged[i].FQN), sqliteddl.QuoteIdent(l.Def.FQN))
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return &storage.SchemaError{Table: l.Def.FQN, Err: fmt.Errorf("swap: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &storage.LoadError{Err: fmt.Errorf("commit: %w", err)}
	}
	committed = true
	return nil
}

// load inserts l.Rows into table through one prepared statement.
func (r *Repository) load(ctx context.Context, tx *sqlx.Tx, table string, l storage.Load) (int64, error) {
	cols := l.Def.ColumnNames()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqliteddl.QuoteIdent(c)
		placeholders[i] = "?"
	}
	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		sqliteddl.QuoteIdent(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	stmt, err := tx.PreparexContext(ctx, stmtSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	return storage.LoadBatches(ctx, l.Def.FQN, cols, l.Rows, r.cfg.BatchSize,
		func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
			var inserted int64
			for _, row := range rows {
				if _, err := stmt.ExecContext(ctx, row...); err != nil {
					return inserted, fmt.Errorf("insert: %w", err)
				}
				inserted++
			}
			return inserted, nil
		})
}

// Query runs q on a dedicated connection switched to query_only inside a
// transaction that is always rolled back.
func (r *Repository) Query(ctx context.Context, q string) (*storage.Result, error) {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("sqlite: query_only: %w", err)
	}
	defer func() { _, _ = conn.ExecContext(context.Background(), "PRAGMA query_only = OFF") }()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns: %w", err)
	}
	res := &storage.Result{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		for i := range vals {
			vals[i] = storage.ScanValue(vals[i])
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return res, nil
}
