// Package extract turns the configured source into an ordered slice of raw
// schedule records. Reads and fetches run concurrently but results are merged
// in input order (file name order or date order), which is what makes
// first-seen-wins deduplication downstream deterministic.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"tvetl/internal/config"
	"tvetl/internal/datasource"
	"tvetl/internal/datasource/file"
	"tvetl/internal/datasource/httpds"
	"tvetl/internal/tvmaze"
)

// Fetcher returns one day's raw schedule payload.
type Fetcher interface {
	FetchSchedule(ctx context.Context, date time.Time) ([]byte, error)
}

// newFetcher builds the HTTP fetcher; tests replace it.
var newFetcher = func(h config.SourceHTTP) Fetcher {
	hc := httpds.NewClient(httpds.Config{
		Timeout:            time.Duration(h.TimeoutSeconds) * time.Second,
		MaxRetries:         h.MaxRetries,
		InsecureSkipVerify: h.Insecure,
	})
	return tvmaze.NewClient(h.BaseURL, hc)
}

// Run extracts records from src. now anchors relative date windows.
func Run(ctx context.Context, src config.Source, rt config.RuntimeConfig, now time.Time) ([]tvmaze.Episode, error) {
	switch src.Kind {
	case "file":
		return FromFiles(ctx, src.File.Dir, src.File.Pattern, rt.ReadWorkers)
	case "http":
		dates, err := src.HTTP.Dates(now)
		if err != nil {
			return nil, fmt.Errorf("extract: %w", err)
		}
		return FromSchedule(ctx, newFetcher(src.HTTP), dates, src.HTTP.SaveDir, rt.FetchWorkers)
	default:
		return nil, fmt.Errorf("extract: unknown source kind %q", src.Kind)
	}
}

// FromFiles decodes every file in dir matching pattern. A directory with no
// matching files, or any file that cannot be read, is a
// *datasource.UnavailableError. A file that is readable but not valid
// schedule JSON fails the run with its path in the error.
func FromFiles(ctx context.Context, dir, pattern string, workers int) ([]tvmaze.Episode, error) {
	paths, err := file.ListFiles(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &datasource.UnavailableError{
			Path: filepath.Join(dir, pattern),
			Err:  errors.New("no matching files"),
		}
	}

	results := make([][]tvmaze.Episode, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, p := range paths {
		g.Go(func() error {
			rc, err := file.NewLocal(p).Open(gctx)
			if err != nil {
				return err
			}
			defer rc.Close()

			eps, err := tvmaze.DecodeEpisodes(rc)
			if err != nil {
				return fmt.Errorf("extract: %s: %w", p, err)
			}
			results[i] = eps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := merge(results)
	log.Printf("extract: files=%d records=%d dir=%s", len(paths), len(out), dir)
	return out, nil
}

// FromSchedule fetches each date. A day that fails to fetch, decode or save
// is logged and skipped; only a window where every day failed is an error.
// When saveDir is set each fetched payload is written verbatim as
// tv_shows_<date>.json.
func FromSchedule(ctx context.Context, f Fetcher, dates []time.Time, saveDir string, workers int) ([]tvmaze.Episode, error) {
	if len(dates) == 0 {
		return nil, &datasource.UnavailableError{Path: "schedule", Err: errors.New("empty date window")}
	}
	if saveDir != "" {
		if err := os.MkdirAll(saveDir, 0o755); err != nil {
			return nil, fmt.Errorf("extract: create %s: %w", saveDir, err)
		}
	}

	results := make([][]tvmaze.Episode, len(dates))
	errs := make([]error, len(dates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, d := range dates {
		g.Go(func() error {
			day := d.Format(tvmaze.DateLayout)
			body, err := f.FetchSchedule(gctx, d)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("extract: skip date=%s err=%v", day, err)
				errs[i] = err
				return nil
			}
			if saveDir != "" {
				p := filepath.Join(saveDir, "tv_shows_"+day+".json")
				if err := os.WriteFile(p, body, 0o644); err != nil {
					log.Printf("extract: save date=%s path=%s err=%v", day, p, err)
				}
			}
			eps, err := tvmaze.DecodeEpisodes(bytes.NewReader(body))
			if err != nil {
				log.Printf("extract: skip date=%s decode err=%v", day, err)
				errs[i] = err
				return nil
			}
			results[i] = eps
			log.Printf("extract: fetched date=%s records=%d", day, len(eps))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(dates) {
		return nil, &datasource.UnavailableError{
			Path: fmt.Sprintf("schedule %s..%s", dates[0].Format(tvmaze.DateLayout), dates[len(dates)-1].Format(tvmaze.DateLayout)),
			Err:  errors.Join(errs...),
		}
	}

	out := merge(results)
	log.Printf("extract: days=%d failed=%d records=%d", len(dates), failed, len(out))
	return out, nil
}

func merge(parts [][]tvmaze.Episode) []tvmaze.Episode {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]tvmaze.Episode, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
