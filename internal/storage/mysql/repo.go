// Package mysql provides a MySQL-backed storage.Repository. MySQL commits
// DDL implicitly, so Replace loads staging tables first and then swaps them
// in with one atomic RENAME TABLE; a failure before the swap drops the
// staging tables and leaves the live ones untouched.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"tvetl/internal/ddl"
	"tvetl/internal/storage"
	myddl "tvetl/internal/storage/mysql/ddl"
)

// oldSuffix names the live tables while they are being swapped out.
const oldSuffix = "__old"

// maxPlaceholders is the server limit on parameters per statement.
const maxPlaceholders = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN       string
	BatchSize int
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sqlx.DB
	cfg Config
}

// NewRepository parses the DSN, forces time parsing on and opens the pool.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	mc.ParseTime = true
	mc.MultiStatements = false
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = storage.DefaultBatchSize
	}

	db, err := sqlx.Open("mysql", mc.FormatDSN())
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

// Replace creates and loads the staging tables, then swaps every table with
// a single RENAME TABLE and drops the previous generation. InnoDB foreign
// keys follow renamed tables, so the swapped children reference the swapped
// parent.
func (r *Repository) Replace(ctx context.Context, loads []storage.Load) error {
	if err := storage.CheckLoads(loads); err != nil {
		return err
	}
	staged := storage.StagingDefs(loads)

	// Leftovers of an interrupted run.
	if err := r.dropAll(ctx, loads, storage.StagingSuffix); err != nil {
		return err
	}
	if err := r.dropAll(ctx, loads, oldSuffix); err != nil {
		return err
	}

	if err := r.stage(ctx, loads, staged); err != nil {
		if derr := r.dropAll(ctx, loads, storage.StagingSuffix); derr != nil {
			log.Printf("mysql: cleanup after failed load: %v", derr)
		}
		return err
	}

	var pairs []string
	for i, l := range loads {
		exists, err := r.exists(ctx, l.Def.FQN)
		if err != nil {
			return &storage.SchemaError{Table: l.Def.FQN, Err: err}
		}
		if exists {
			pairs = append(pairs, fmt.Sprintf("%s TO %s", myddl.QuoteFQN(l.Def.FQN), myddl.QuoteFQN(l.Def.FQN+oldSuffix)))
		}
		pairs = append(pairs, fmt.Sprintf("%s TO %s", myddl.QuoteFQN(staged[i].FQN), myddl.QuoteFQN(l.Def.FQN)))
	}
	if _, err := r.db.ExecContext(ctx, "RENAME TABLE "+strings.Join(pairs, ", ")); err != nil {
		_ = r.dropAll(ctx, loads, storage.StagingSuffix)
		return &storage.SchemaError{Table: loads[0].Def.FQN, Err: fmt.Errorf("swap: %w", describe(err))}
	}

	if err := r.dropAll(ctx, loads, oldSuffix); err != nil {
		log.Printf("mysql: previous tables left behind: %v", err)
	}
	return nil
}

// stage creates the staging tables and loads them in one transaction.
func (r *Repository) stage(ctx context.Context, loads []storage.Load, staged []ddl.TableDef) error {
	for i, def := range staged {
		stmt, err := myddl.BuildCreateTableSQL(def)
		if err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: err}
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: describe(err)}
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &storage.LoadError{Table: loads[0].Def.FQN, Err: fmt.Errorf("begin tx: %w", err)}
	}
	for i, l := range loads {
		n, err := r.load(ctx, tx, staged[i].FQN, l)
		if err != nil {
			_ = tx.Rollback()
			return &storage.LoadError{Table: l.Def.FQN, Err: describe(err)}
		}
		log.Printf("mysql: staged table=%s rows=%d", l.Def.FQN, n)
	}
	if err := tx.Commit(); err != nil {
		return &storage.LoadError{Err: fmt.Errorf("commit: %w", describe(err))}
	}
	return nil
}

// load inserts l into table with multi-row INSERT statements.
func (r *Repository) load(ctx context.Context, tx *sqlx.Tx, table string, l storage.Load) (int64, error) {
	rows, err := storage.ConvertRows(l, convertValue)
	if err != nil {
		return 0, err
	}
	cols := l.Def.ColumnNames()
	batch := r.cfg.BatchSize
	if batch*len(cols) > maxPlaceholders {
		batch = maxPlaceholders / len(cols)
	}
	return storage.LoadBatches(ctx, l.Def.FQN, cols, rows, batch,
		func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			q, args := buildInsert(table, cols, rows)
			res, err := tx.ExecContext(ctx, q, args...)
			if err != nil {
				return 0, err
			}
			return res.RowsAffected()
		})
}

// buildInsert renders INSERT INTO t (cols) VALUES (?, ...), (...) for rows.
func buildInsert(table string, cols []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = myddl.QuoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", myddl.QuoteFQN(table), strings.Join(quoted, ", "))
	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
		args = append(args, row...)
	}
	return sb.String(), args
}

// dropAll drops <table><suffix> for every load, children first.
func (r *Repository) dropAll(ctx context.Context, loads []storage.Load, suffix string) error {
	for i := len(loads) - 1; i >= 0; i-- {
		name := loads[i].Def.FQN + suffix
		if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+myddl.QuoteFQN(name)); err != nil {
			return &storage.SchemaError{Table: loads[i].Def.FQN, Err: fmt.Errorf("drop %s: %w", name, describe(err))}
		}
	}
	return nil
}

func (r *Repository) exists(ctx context.Context, fqn string) (bool, error) {
	var schema any
	name := fqn
	if i := strings.LastIndexByte(fqn, '.'); i >= 0 {
		schema, name = fqn[:i], fqn[i+1:]
	}
	var n int
	err := r.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = COALESCE(?, DATABASE()) AND table_name = ?",
		schema, name)
	return n > 0, err
}

// Query runs q in a READ ONLY transaction that is always rolled back.
func (r *Repository) Query(ctx context.Context, q string) (*storage.Result, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("mysql: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mysql: query: %w", describe(err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("mysql: columns: %w", err)
	}
	res := &storage.Result{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("mysql: scan: %w", err)
		}
		for i := range vals {
			vals[i] = storage.ScanValue(vals[i])
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql: rows: %w", err)
	}
	return res, nil
}

// convertValue prepares a cell for the driver. TIME values are sent as
// text because the driver encodes time.Time as a full datetime.
func convertValue(c ddl.ColumnDef, v any) (any, error) {
	out, err := storage.Coerce(c, v)
	if err != nil || out == nil {
		return out, err
	}
	t, ok := out.(time.Time)
	if !ok {
		return out, nil
	}
	if c.Type == ddl.TypeTime {
		return t.Format("15:04:05"), nil
	}
	return t.UTC(), nil
}

// describe adds the server error number to driver errors.
func describe(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	if myErr.Number == 1452 {
		log.Printf("mysql: orphaned reference: %s", myErr.Message)
	}
	return fmt.Errorf("%w (error %d)", err, myErr.Number)
}
