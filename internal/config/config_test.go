package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
	  "job": "january",
	  "source": { "kind": "http", "http": { "start_date": "2024-01-01", "end_date": "2024-01-31" } },
	  "storage": { "kind": "postgres", "db": { "dsn": "postgres://u@h/db", "enforce_foreign_keys": true } },
	  "transform": { "prune": { "shows": ["summary"] } }
	}`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Job != "january" || p.Source.Kind != "http" || p.Storage.Kind != "postgres" {
		t.Fatalf("top-level fields not decoded: %+v", p)
	}
	if p.Source.HTTP.TimeoutSeconds != 10 || p.Source.HTTP.MaxRetries != 3 {
		t.Fatalf("http defaults lost: %+v", p.Source.HTTP)
	}
	if p.Storage.DB.BatchSize != 500 {
		t.Fatalf("batch default lost: %d", p.Storage.DB.BatchSize)
	}
	if !reflect.DeepEqual(p.Transform.Prune.Shows, []string{"summary"}) {
		t.Fatalf("prune.shows = %v", p.Transform.Prune.Shows)
	}
	if !reflect.DeepEqual(p.Transform.Prune.Episodes, []string{"rating"}) {
		t.Fatalf("prune.episodes default lost: %v", p.Transform.Prune.Episodes)
	}
	if len(p.Queries) != len(DefaultQueries()) {
		t.Fatalf("queries default lost: %v", p.Queries)
	}
}

func TestLoad_EmptyQueriesDisableStage(t *testing.T) {
	t.Parallel()

	p, err := Load(writeConfig(t, `{"queries": []}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Queries == nil || len(p.Queries) != 0 {
		t.Fatalf("queries = %#v, want empty non-nil", p.Queries)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, `{"storage": {"kind": "sqlite", "table": "x"}}`)); err == nil {
		t.Fatalf("expected error for unknown field")
	}
	if _, err := Load(writeConfig(t, `{`)); err == nil {
		t.Fatalf("expected error for truncated json")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"TVETL_DSN":                  "postgres://env@h/db",
		"TVETL_STORAGE_KIND":         "postgres",
		"TVETL_SOURCE_DIR":           "/data/json",
		"TVETL_STAGING_DIR":          "/data/staging",
		"TVETL_BATCH_SIZE":           "1000",
		"TVETL_ENFORCE_FOREIGN_KEYS": "false",
		"TVETL_LOCK_FILE":            "/tmp/tvetl.lock",
	}
	p := Default()
	ApplyEnv(&p, func(k string) string { return env[k] })

	if p.Storage.DB.DSN != env["TVETL_DSN"] || p.Storage.Kind != "postgres" {
		t.Fatalf("storage not overridden: %+v", p.Storage)
	}
	if p.Source.File.Dir != "/data/json" || p.Staging.Dir != "/data/staging" {
		t.Fatalf("dirs not overridden: %+v %+v", p.Source.File, p.Staging)
	}
	if p.Storage.DB.BatchSize != 1000 || p.Storage.DB.ForeignKeys() {
		t.Fatalf("db knobs not overridden: %+v", p.Storage.DB)
	}
	if p.Runtime.LockFile != "/tmp/tvetl.lock" {
		t.Fatalf("lock file = %q", p.Runtime.LockFile)
	}

	q := Default()
	ApplyEnv(&q, func(string) string { return "" })
	if !reflect.DeepEqual(q, Default()) {
		t.Fatalf("empty env must not change config")
	}
}

func TestSourceHTTP_Dates(t *testing.T) {
	t.Parallel()

	day := func(s string) time.Time {
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		return d
	}
	now := time.Date(2024, 3, 2, 15, 4, 5, 0, time.UTC)

	cases := []struct {
		name    string
		h       SourceHTTP
		first   string
		last    string
		n       int
		wantErr bool
	}{
		{name: "explicit window", h: SourceHTTP{StartDate: "2024-01-01", EndDate: "2024-01-31"}, first: "2024-01-01", last: "2024-01-31", n: 31},
		{name: "single day", h: SourceHTTP{StartDate: "2024-02-29"}, first: "2024-02-29", last: "2024-02-29", n: 1},
		{name: "trailing days", h: SourceHTTP{Days: 3}, first: "2024-02-28", last: "2024-03-01", n: 3},
		{name: "reversed", h: SourceHTTP{StartDate: "2024-01-02", EndDate: "2024-01-01"}, wantErr: true},
		{name: "bad date", h: SourceHTTP{StartDate: "01/02/2024"}, wantErr: true},
		{name: "no window", h: SourceHTTP{}, wantErr: true},
	}
	for _, c := range cases {
		got, err := c.h.Dates(now)
		if c.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", c.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if len(got) != c.n || !got[0].Equal(day(c.first)) || !got[len(got)-1].Equal(day(c.last)) {
			t.Errorf("%s: got %d days %v..%v", c.name, len(got), got[0], got[len(got)-1])
		}
	}
}
