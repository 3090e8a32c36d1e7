// Package postgres implements a Postgres repository using pgx v5. Replace
// COPYs every table into a staging copy and swaps the copies into place in
// one transaction; Query runs in a read-only transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"tvetl/internal/ddl"
	"tvetl/internal/storage"
	pgddl "tvetl/internal/storage/postgres/ddl"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN       string // connection string for pgxpool
	BatchSize int    // rows per COPY
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// Replace stages, loads and swaps every table in one transaction. Postgres
// foreign keys follow the referenced table through a rename, so children
// created against shows__staging reference shows after the swap.
func (r *Repository) Replace(ctx context.Context, loads []storage.Load) error {
	if err := storage.CheckLoads(loads); err != nil {
		return err
	}
	staged := storage.StagingDefs(loads)

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &storage.SchemaError{Table: loads[0].Def.FQN, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := len(staged) - 1; i >= 0; i-- {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgddl.QuoteFQN(staged[i].FQN)); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
	}
	for i, def := range staged {
		stmt, err := pgddl.BuildCreateTableSQL(def)
		if err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: describe(err)}
		}
	}

	for i, l := range loads {
		n, err := r.load(ctx, tx, staged[i], l)
		if err != nil {
			return &storage.LoadError{Table: l.Def.FQN, Err: describe(err)}
		}
		log.Printf("postgres: staged table=%s rows=%d", l.Def.FQN, n)
	}

	for i := len(loads) - 1; i >= 0; i-- {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgddl.QuoteFQN(loads[i].Def.FQN)); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: fmt.Errorf("drop previous: %w", describe(err))}
		}
	}
	for i, l := range loads {
		q := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", pgddl.QuoteFQN(staged[i].FQN), pgddl.QuoteIdent(baseName(l.Def.FQN)))
		if _, err := tx.Exec(ctx, q); err != nil {
			return &storage.SchemaError{Table: l.Def.FQN, Err: fmt.Errorf("swap: %w", describe(err))}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &storage.LoadError{Err: fmt.Errorf("commit: %w", describe(err))}
	}
	return nil
}

// load COPYs l into the staging table. Rows without an auto-increment key
// are copied after the explicit ones, once the identity has been moved past
// the highest explicit value.
func (r *Repository) load(ctx context.Context, tx pgx.Tx, staging ddl.TableDef, l storage.Load) (int64, error) {
	rows, err := storage.ConvertRows(l, convertValue)
	if err != nil {
		return 0, err
	}
	key, explicit, implicit, rest := storage.SplitAutoIncrement(l.Def, rows)
	ident := splitFQN(staging.FQN)

	copyInto := func(cols []string) storage.CopyFn {
		return func(ctx context.Context, _ []string, batch [][]any) (int64, error) {
			return tx.CopyFrom(ctx, ident, cols, pgx.CopyFromRows(batch))
		}
	}

	cols := l.Def.ColumnNames()
	total, err := storage.LoadBatches(ctx, l.Def.FQN, cols, explicit, r.cfg.BatchSize, copyInto(cols))
	if err != nil || len(implicit) == 0 {
		return total, err
	}

	keyCol := cols[key]
	setval := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence($1, $2), COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)",
		pgddl.QuoteIdent(keyCol), pgddl.QuoteFQN(staging.FQN),
	)
	if _, err := tx.Exec(ctx, setval, pgddl.QuoteFQN(staging.FQN), keyCol); err != nil {
		return total, fmt.Errorf("advance identity: %w", err)
	}
	n, err := storage.LoadBatches(ctx, l.Def.FQN, rest, implicit, r.cfg.BatchSize, copyInto(rest))
	return total + n, err
}

// Query runs q in a read-only transaction that is always rolled back.
func (r *Repository) Query(ctx context.Context, q string) (*storage.Result, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", describe(err))
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	res := &storage.Result{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		res.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		for i := range vals {
			vals[i] = scanValue(vals[i])
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", describe(err))
	}
	return res, nil
}

// convertValue prepares a cell for COPY. TIME columns need pgtype.Time.
func convertValue(c ddl.ColumnDef, v any) (any, error) {
	out, err := storage.Coerce(c, v)
	if err != nil || out == nil || c.Type != ddl.TypeTime {
		return out, err
	}
	t := out.(time.Time)
	d := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}, nil
}

// scanValue turns pgx's decoded values into plain Go values.
func scanValue(v any) any {
	switch x := v.(type) {
	case pgtype.Time:
		if !x.Valid {
			return nil
		}
		d := time.Duration(x.Microseconds) * time.Microsecond
		return time.Time{}.Add(d).Format("15:04:05")
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return storage.ScanValue(v)
	}
}

// describe adds SQLSTATE and constraint details to server errors.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Code == "23503" {
		log.Printf("postgres: orphaned reference constraint=%s detail=%s", pgErr.ConstraintName, pgErr.Detail)
	}
	if pgErr.Detail != "" {
		return fmt.Errorf("%w: %s (%s)", err, pgErr.Detail, pgErr.Code)
	}
	return fmt.Errorf("%w (%s)", err, pgErr.Code)
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// baseName returns the last segment of a dotted name.
func baseName(fqn string) string {
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
