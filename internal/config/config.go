// Package config defines the JSON-serializable configuration model for the
// TV schedule pipeline. A Pipeline is decoded once at startup and passed
// explicitly to every component; nothing in this package is global.
//
// Layering, lowest precedence first: Default(), the JSON pipeline file,
// environment variables (ApplyEnv), then command-line flags applied by the
// caller.
//
// Example (trimmed):
//
//	{
//	  "job":       "tvmaze_daily",
//	  "source":    { "kind": "http", "http": { "start_date": "2024-01-01", "end_date": "2024-01-31" } },
//	  "staging":   { "dir": "DATA", "format": "columnar" },
//	  "transform": { "prune": { "episodes": ["rating"] } },
//	  "storage":   { "kind": "sqlite", "db": { "dsn": "file:db/entretenimiento.db" } },
//	  "queries":   [ { "name": "shows per genre", "sql": "SELECT ..." } ]
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run in logs and metrics labels.
	Job string `json:"job"`

	Source    Source    `json:"source"`
	Staging   Staging   `json:"staging"`
	Transform Transform `json:"transform"`
	Storage   Storage   `json:"storage"`

	// Queries are the named read-only queries of the query stage. When the
	// file omits the key the defaults are kept; an explicit empty list
	// disables the stage.
	Queries []Query `json:"queries"`

	Runtime RuntimeConfig `json:"runtime"`
}

// Source selects where raw schedule records come from.
type Source struct {
	// Kind is "file" (a directory of saved dumps) or "http" (the schedule API).
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
	HTTP SourceHTTP `json:"http"`
}

// SourceFile reads every file in Dir matching Pattern, in lexical order.
type SourceFile struct {
	Dir     string `json:"dir"`
	Pattern string `json:"pattern"`
}

// SourceHTTP fetches one schedule per day. The window is StartDate..EndDate
// inclusive; when StartDate is empty the last Days days ending yesterday are
// used instead.
type SourceHTTP struct {
	BaseURL   string `json:"base_url"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`

	// SaveDir receives each day's raw payload as tv_shows_<date>.json.
	// Empty disables saving.
	SaveDir string `json:"save_dir"`

	TimeoutSeconds int  `json:"timeout_seconds"`
	MaxRetries     int  `json:"max_retries"`
	Insecure       bool `json:"insecure_skip_verify"`
}

// Staging is the on-disk hand-off between stages.
type Staging struct {
	Dir string `json:"dir"`
	// Format is "csv" or "columnar".
	Format string `json:"format"`
}

// Transform configures the cleaning steps.
type Transform struct {
	Prune Prune `json:"prune"`
}

// Prune lists the columns removed from each table. Names that are not
// present are ignored.
type Prune struct {
	Shows    []string `json:"shows"`
	Episodes []string `json:"episodes"`
}

// Storage selects the destination store.
type Storage struct {
	// Kind selects the backend: sqlite, postgres, mssql or mysql.
	Kind string   `json:"kind"`
	DB   DBConfig `json:"db"`
}

// DBConfig configures the destination connection.
type DBConfig struct {
	DSN string `json:"dsn"`

	// EnforceForeignKeys rejects episodes and genres whose show_id has no
	// show. Nil means true. Only SQLite can turn enforcement off.
	EnforceForeignKeys *bool `json:"enforce_foreign_keys"`

	// BatchSize bounds rows per INSERT or COPY round trip.
	BatchSize int `json:"batch_size"`
}

// ForeignKeys resolves EnforceForeignKeys.
func (d DBConfig) ForeignKeys() bool {
	return d.EnforceForeignKeys == nil || *d.EnforceForeignKeys
}

// Query is one named read-only query.
type Query struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// RuntimeConfig controls concurrency and run serialization.
type RuntimeConfig struct {
	// ReadWorkers bounds concurrent file reads in the file source.
	ReadWorkers int `json:"read_workers"`
	// FetchWorkers bounds concurrent day fetches in the http source.
	FetchWorkers int `json:"fetch_workers"`
	// LockFile is flock'ed around load so two runs never replace the same
	// store at once. Empty disables locking.
	LockFile string `json:"lock_file"`
}

// DefaultQueries answers the three standing questions about a load: average
// runtime per show, shows per genre, and official sites.
func DefaultQueries() []Query {
	return []Query{
		{Name: "Shows con promedio de runtime", SQL: "SELECT name, averageRuntime FROM shows LIMIT 10"},
		{Name: "Cantidad de shows por género", SQL: "SELECT genre AS genero, COUNT(id) AS cantidad_shows FROM genres GROUP BY genre LIMIT 10"},
		{Name: "Sitios oficiales de algunos shows", SQL: "SELECT officialSite FROM shows LIMIT 10"},
	}
}

// Default returns a runnable local configuration: saved dumps from JSON/,
// columnar staging in DATA/, SQLite in db/.
func Default() Pipeline {
	return Pipeline{
		Job: "tvmaze_schedule",
		Source: Source{
			Kind: "file",
			File: SourceFile{Dir: "JSON", Pattern: "*.json"},
			HTTP: SourceHTTP{
				Days:           31,
				SaveDir:        "JSON",
				TimeoutSeconds: 10,
				MaxRetries:     3,
			},
		},
		Staging: Staging{Dir: "DATA", Format: "columnar"},
		Transform: Transform{Prune: Prune{
			Shows:    []string{"rating", "runtime", "dvd_country", "externals_tvrage"},
			Episodes: []string{"rating"},
		}},
		Storage: Storage{
			Kind: "sqlite",
			DB:   DBConfig{DSN: "file:db/entretenimiento.db", BatchSize: 500},
		},
		Queries: DefaultQueries(),
		Runtime: RuntimeConfig{ReadWorkers: 4, FetchWorkers: 4},
	}
}

// Load decodes the pipeline file at path over Default(). Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Load(path string) (Pipeline, error) {
	p := Default()
	f, err := os.Open(path)
	if err != nil {
		return p, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return p, nil
}

// ApplyEnv overlays environment variables onto p. getenv is os.Getenv in
// production and a map lookup in tests.
func ApplyEnv(p *Pipeline, getenv func(string) string) {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&p.Storage.DB.DSN, "TVETL_DSN")
	setString(&p.Storage.Kind, "TVETL_STORAGE_KIND")
	setString(&p.Source.File.Dir, "TVETL_SOURCE_DIR")
	setString(&p.Staging.Dir, "TVETL_STAGING_DIR")
	setString(&p.Runtime.LockFile, "TVETL_LOCK_FILE")

	if v := getenv("TVETL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Storage.DB.BatchSize = n
		}
	}
	if v := getenv("TVETL_ENFORCE_FOREIGN_KEYS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.Storage.DB.EnforceForeignKeys = &b
		}
	}
}

// DateLayout is the format of start_date and end_date.
const DateLayout = "2006-01-02"

// Dates expands the HTTP source window into one UTC date per day, oldest
// first. now anchors the trailing window when no start date is set.
func (h SourceHTTP) Dates(now time.Time) ([]time.Time, error) {
	if h.StartDate == "" {
		if h.Days <= 0 {
			return nil, fmt.Errorf("config: source.http needs start_date or a positive days")
		}
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		return dayRange(end.AddDate(0, 0, -(h.Days - 1)), end), nil
	}

	start, err := time.Parse(DateLayout, h.StartDate)
	if err != nil {
		return nil, fmt.Errorf("config: source.http.start_date: %w", err)
	}
	end := start
	if h.EndDate != "" {
		if end, err = time.Parse(DateLayout, h.EndDate); err != nil {
			return nil, fmt.Errorf("config: source.http.end_date: %w", err)
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("config: source.http: end_date %s before start_date %s", h.EndDate, h.StartDate)
	}
	return dayRange(start, end), nil
}

func dayRange(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
