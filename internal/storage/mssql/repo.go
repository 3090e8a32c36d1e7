// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. Replace bulk-copies every table into a staging
// copy and swaps the copies into place with sp_rename in one transaction.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"tvetl/internal/storage"
	msddl "tvetl/internal/storage/mssql/ddl"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sqlx.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	db, err := sqlx.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	close := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, close, nil
}

// Replace stages, loads and swaps every table in one transaction. Foreign
// keys are bound to object ids, so they follow sp_rename.
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

	for i := len(staged) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+msddl.QuoteFQN(staged[i].FQN)); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
	}
	for i, def := range staged {
		stmt, err := msddl.BuildCreateTableSQL(def)
		if err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: describe(err)}
		}
	}

	for i, l := range loads {
		n, err := r.load(ctx, tx.Tx, staged[i].FQN, l)
		if err != nil {
			return &storage.LoadError{Table: l.Def.FQN, Err: describe(err)}
		}
		log.Printf("mssql: staged table=%s rows=%d", l.Def.FQN, n)
	}

	for i := len(loads) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+msddl.QuoteFQN(loads[i].Def.FQN)); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: fmt.Errorf("drop previous: %w", describe(err))}
		}
	}
	for i, l := range loads {
		if _, err := tx.ExecContext(ctx, "EXEC sp_rename @p1, @p2", staged[i].FQN, baseName(l.Def.FQN)); err != nil {
			return &storage.SchemaError{Table: l.Def.FQN, Err: fmt.Errorf("swap: %w", describe(err))}
		}
	}

	if err := tx.Commit(); err != nil {
		return &storage.LoadError{Err: fmt.Errorf("commit: %w", describe(err))}
	}
	committed = true
	return nil
}

// load bulk-copies l into table. Constraints are checked during the copy so
// orphaned references fail the load.
func (r *Repository) load(ctx context.Context, tx *sql.Tx, table string, l storage.Load) (int64, error) {
	rows, err := storage.ConvertRows(l, storage.Coerce)
	if err != nil {
		return 0, err
	}
	key, explicit, implicit, _ := storage.SplitAutoIncrement(l.Def, rows)
	if len(implicit) > 0 {
		explicit = append(explicit, fillKeys(key, explicit, len(l.Def.Columns), implicit)...)
	}

	cols := l.Def.ColumnNames()
	return storage.LoadBatches(ctx, l.Def.FQN, cols, explicit, r.cfg.BatchSize,
		func(ctx context.Context, cols []string, batch [][]any) (int64, error) {
			opts := mssql.BulkOptions{CheckConstraints: true, KeepNulls: true}
			stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, opts, cols...))
			if err != nil {
				return 0, fmt.Errorf("prepare bulk: %w", err)
			}
			for i := range batch {
				if _, err := stmt.ExecContext(ctx, batch[i]...); err != nil {
					_ = stmt.Close()
					return 0, fmt.Errorf("bulk row %d: %w", i, err)
				}
			}
			res, err := stmt.ExecContext(ctx) // flush
			if cerr := stmt.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				return 0, fmt.Errorf("bulk finalize: %w", err)
			}
			return res.RowsAffected()
		})
}

// fillKeys assigns keys after the highest explicit key to rows that left
// the key to the store, reinserting the key column at position key.
func fillKeys(key int, explicit [][]any, width int, implicit [][]any) [][]any {
	var next int64
	for _, r := range explicit {
		if v, ok := r[key].(int64); ok && v > next {
			next = v
		}
	}
	out := make([][]any, len(implicit))
	for i, r := range implicit {
		next++
		row := make([]any, 0, width)
		row = append(row, r[:key]...)
		row = append(row, next)
		row = append(row, r[key:]...)
		out[i] = row
	}
	return out
}

// Query runs q in a transaction that is always rolled back; SQL Server has
// no read-only transaction mode through the driver.
func (r *Repository) Query(ctx context.Context, q string) (*storage.Result, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mssql: query: %w", describe(err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("mssql: columns: %w", err)
	}
	res := &storage.Result{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("mssql: scan: %w", err)
		}
		for i := range vals {
			vals[i] = storage.ScanValue(vals[i])
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: rows: %w", describe(err))
	}
	return res, nil
}

// describe adds the server error number to driver errors.
func describe(err error) error {
	var msErr mssql.Error
	if !errors.As(err, &msErr) {
		return err
	}
	if msErr.Number == 547 {
		log.Printf("mssql: constraint conflict: %s", msErr.Message)
	}
	return fmt.Errorf("%w (error %d)", err, msErr.Number)
}

// baseName returns the last segment of a dotted name.
func baseName(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
