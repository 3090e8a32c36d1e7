// Package pipeline wires the stages of a run together: extract raw records,
// transform them into the cleaned tables, load those into the store, and run
// the named queries. Stages hand data to each other through table files in
// the staging directory, so each one can also run on its own.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"tvetl/internal/config"
	"tvetl/internal/extract"
	"tvetl/internal/materialize"
	"tvetl/internal/metrics"
	"tvetl/internal/query"
	"tvetl/internal/storage"
	"tvetl/internal/table"
	"tvetl/internal/tablefile"
	"tvetl/internal/transformer"
)

// Stage names a runnable part of the pipeline.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
	StageQuery     Stage = "query"
	StageAll       Stage = "all"
)

// Stages lists the individual stages in execution order.
var Stages = []Stage{StageExtract, StageTransform, StageLoad, StageQuery}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if st == StageAll {
		return st, nil
	}
	for _, known := range Stages {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("pipeline: unknown stage %q", s)
}

// CleanedSuffix marks the staging files written by the transform stage.
const CleanedSuffix = "_cleaned"

// Report summarizes a run.
type Report struct {
	RunID   string
	Records int
	// Tables holds the row count of each table the run produced or loaded.
	Tables      map[string]int
	Materialize *materialize.Summary
	Queries     []query.Result
	Elapsed     time.Duration
}

// Runner executes stages for one pipeline configuration.
type Runner struct {
	cfg config.Pipeline
	now func() time.Time
	// openRepo opens the destination store; tests replace it.
	openRepo func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

// New returns a Runner for cfg.
func New(cfg config.Pipeline) *Runner {
	return &Runner{cfg: cfg, now: time.Now, openRepo: storage.New}
}

// Run executes stage (every stage in order for StageAll). The first failing
// stage ends the run.
func (r *Runner) Run(ctx context.Context, stage Stage) (*Report, error) {
	start := time.Now()
	rep := &Report{RunID: uuid.NewString(), Tables: map[string]int{}}
	log.Printf("pipeline: run=%s job=%s stage=%s", rep.RunID, r.cfg.Job, stage)

	stages := []Stage{stage}
	if stage == StageAll {
		stages = Stages
	}
	for _, st := range stages {
		if err := r.runStage(ctx, st, rep); err != nil {
			log.Printf("pipeline: run=%s stage=%s failed: %v", rep.RunID, st, err)
			return rep, fmt.Errorf("%s: %w", st, err)
		}
	}
	rep.Elapsed = time.Since(start)
	log.Printf("pipeline: run=%s done elapsed=%s", rep.RunID, rep.Elapsed.Truncate(time.Millisecond))
	return rep, nil
}

func (r *Runner) runStage(ctx context.Context, st Stage, rep *Report) error {
	t0 := time.Now()
	var err error
	switch st {
	case StageExtract:
		err = r.extract(ctx, rep)
	case StageTransform:
		err = r.transform(ctx, rep)
	case StageLoad:
		err = r.load(ctx, rep)
	case StageQuery:
		err = r.query(ctx, rep)
	default:
		err = fmt.Errorf("unknown stage %q", st)
	}
	metrics.RecordStep(r.cfg.Job, string(st), err, time.Since(t0))
	return err
}

func (r *Runner) format() tablefile.Format { return tablefile.Format(r.cfg.Staging.Format) }

// extract reads the source, normalizes it into raw Shows and Episodes and
// stages both.
func (r *Runner) extract(ctx context.Context, rep *Report) error {
	eps, err := extract.Run(ctx, r.cfg.Source, r.cfg.Runtime, r.now())
	if err != nil {
		return err
	}
	rep.Records = len(eps)
	metrics.RecordRow(r.cfg.Job, "raw_records", int64(len(eps)))

	raw := transformer.Normalize(eps)
	for _, t := range raw.All() {
		rep.Tables[t.Name] = t.Len()
	}
	return tablefile.Save(r.cfg.Staging.Dir, r.format(), raw.All()...)
}

// transform cleans the staged raw tables and stages the results.
func (r *Runner) transform(ctx context.Context, rep *Report) error {
	loaded, err := tablefile.Load(ctx, r.cfg.Staging.Dir, r.format(),
		transformer.ShowsTable, transformer.EpisodesTable)
	if err != nil {
		return err
	}
	in := transformer.Tables{Shows: loaded[0], Episodes: loaded[1]}

	prune := transformer.Prune{Shows: r.cfg.Transform.Prune.Shows, Episodes: r.cfg.Transform.Prune.Episodes}
	out, err := transformer.Clean(prune).Apply(in)
	if err != nil {
		return err
	}

	var cleaned []*table.Table
	for _, t := range out.All() {
		rep.Tables[t.Name] = t.Len()
		cleaned = append(cleaned, t.Rename(t.Name+CleanedSuffix))
	}
	return tablefile.Save(r.cfg.Staging.Dir, r.format(), cleaned...)
}

// load materializes the staged cleaned tables.
func (r *Runner) load(ctx context.Context, rep *Report) error {
	names := []string{transformer.ShowsTable, transformer.EpisodesTable, transformer.GenresTable}
	files := make([]string, len(names))
	for i, n := range names {
		files[i] = n + CleanedSuffix
	}
	loaded, err := tablefile.Load(ctx, r.cfg.Staging.Dir, r.format(), files...)
	if err != nil {
		return err
	}
	in := transformer.Tables{
		Shows:    loaded[0].Rename(names[0]),
		Episodes: loaded[1].Rename(names[1]),
		Genres:   loaded[2].Rename(names[2]),
	}

	repo, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	sum, err := materialize.New(repo, r.cfg.Job).Materialize(ctx, in)
	if err != nil {
		return err
	}
	rep.Materialize = &sum
	for _, t := range sum.Tables {
		rep.Tables[t.Name] = t.Rows
	}
	return nil
}

// query runs the configured queries. Failed queries are reported in the
// results and never fail the stage.
func (r *Runner) query(ctx context.Context, rep *Report) error {
	if len(r.cfg.Queries) == 0 {
		log.Printf("pipeline: no queries configured")
		return nil
	}
	repo, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	qs := make([]query.Query, len(r.cfg.Queries))
	for i, q := range r.cfg.Queries {
		qs[i] = query.Query{Name: q.Name, SQL: q.SQL}
	}
	rep.Queries = query.NewRunner(repo, r.cfg.Job).RunAll(ctx, qs)
	if failed := query.Failed(rep.Queries); len(failed) > 0 {
		log.Printf("pipeline: queries failed=%d of %d", len(failed), len(qs))
	}
	return nil
}

func (r *Runner) open(ctx context.Context) (storage.Repository, error) {
	db := r.cfg.Storage.DB
	repo, err := r.openRepo(ctx, storage.Config{
		Kind:               r.cfg.Storage.Kind,
		DSN:                db.DSN,
		EnforceForeignKeys: db.ForeignKeys(),
		BatchSize:          db.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}
