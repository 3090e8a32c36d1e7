// Package materialize writes the cleaned Shows, Episodes and Genres tables
// into the relational store, replacing whatever the previous run left there.
package materialize

import (
	"context"
	"fmt"
	"log"
	"time"

	"tvetl/internal/ddl"
	"tvetl/internal/metrics"
	"tvetl/internal/schema"
	"tvetl/internal/storage"
	"tvetl/internal/table"
	"tvetl/internal/transformer"
)

// TableSummary describes one materialized table.
type TableSummary struct {
	Name        string
	Rows        int
	Fingerprint uint64
}

// Summary is the outcome of a successful Materialize.
type Summary struct {
	Tables  []TableSummary
	Elapsed time.Duration
}

// Materializer owns the destination tables' contents.
type Materializer struct {
	repo storage.Repository
	job  string
}

// New returns a Materializer writing through repo. job labels metrics.
func New(repo storage.Repository, job string) *Materializer {
	return &Materializer{repo: repo, job: job}
}

// Materialize supersedes the store's shows, episodes and genres with t.
// Either every table is replaced or none is: a *storage.SchemaError or
// *storage.LoadError leaves the previous run's contents in place.
func (m *Materializer) Materialize(ctx context.Context, t transformer.Tables) (Summary, error) {
	start := time.Now()

	loads, sums, err := Plan(t)
	if err != nil {
		return Summary{}, err
	}
	for _, s := range sums {
		log.Printf("materialize: table=%s rows=%d fingerprint=%016x", s.Name, s.Rows, s.Fingerprint)
	}

	if err := m.repo.Replace(ctx, loads); err != nil {
		log.Printf("materialize: replace failed: %v", err)
		return Summary{}, err
	}

	for _, s := range sums {
		metrics.RecordRow(m.job, s.Name, int64(s.Rows))
	}
	out := Summary{Tables: sums, Elapsed: time.Since(start)}
	log.Printf("materialize: replaced tables=%d elapsed=%s", len(sums), out.Elapsed.Truncate(time.Millisecond))
	return out, nil
}

// Plan derives the store definitions and rows for t, parents first. All
// three tables are required; an empty table is fine.
func Plan(t transformer.Tables) ([]storage.Load, []TableSummary, error) {
	for _, req := range []struct {
		name string
		tb   *table.Table
	}{
		{transformer.ShowsTable, t.Shows},
		{transformer.EpisodesTable, t.Episodes},
		{transformer.GenresTable, t.Genres},
	} {
		if req.tb == nil {
			return nil, nil, &storage.SchemaError{Table: req.name, Err: fmt.Errorf("table missing")}
		}
	}

	all := t.All()
	loads := make([]storage.Load, 0, len(all))
	sums := make([]TableSummary, 0, len(all))
	for _, tb := range all {
		flat, err := tb.FlattenLists()
		if err != nil {
			return nil, nil, &storage.SchemaError{Table: tb.Name, Err: err}
		}
		def, err := schema.Infer(flat)
		if err != nil {
			return nil, nil, &storage.SchemaError{Table: tb.Name, Err: err}
		}
		loads = append(loads, storage.Load{Def: def, Rows: rows(flat)})
		sums = append(sums, TableSummary{Name: tb.Name, Rows: flat.Len(), Fingerprint: table.Fingerprint(flat)})
	}

	if !hasParentKey(loads[0].Def) {
		log.Printf("materialize: %s has no %s column; child tables are stored without foreign keys",
			schema.ParentTable, schema.ParentKey)
		for i := 1; i < len(loads); i++ {
			loads[i].Def.ForeignKeys = nil
		}
	}
	return loads, sums, nil
}

func hasParentKey(def ddl.TableDef) bool {
	c, ok := def.Column(schema.ParentKey)
	return ok && c.PrimaryKey
}

func rows(t *table.Table) [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = []any(r)
	}
	return out
}
