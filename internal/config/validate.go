package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "storage.kind", "queries[1].sql").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static checks over p without mutating it.
// Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStaging(p.Staging)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateQueries(p.Queries)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Dir) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.dir", "file source requires a directory"})
		}
		if s.File.Pattern != "" {
			if _, err := filepath.Match(s.File.Pattern, ""); err != nil {
				issues = append(issues, Issue{SeverityError, "source.file.pattern", fmt.Sprintf("bad glob: %v", err)})
			}
		}
	case "http":
		if _, err := s.HTTP.Dates(time.Now()); err != nil {
			issues = append(issues, Issue{SeverityError, "source.http", err.Error()})
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{SeverityError, "source.http.max_retries", "max_retries must not be negative"})
		}
		if s.HTTP.TimeoutSeconds < 0 {
			issues = append(issues, Issue{SeverityError, "source.http.timeout_seconds", "timeout_seconds must not be negative"})
		}
		if s.HTTP.Insecure {
			issues = append(issues, Issue{SeverityWarning, "source.http.insecure_skip_verify", "TLS verification is disabled"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	default:
		issues = append(issues, Issue{SeverityError, "source.kind", fmt.Sprintf("unknown source kind %q; want file or http", s.Kind)})
	}
	return issues
}

func validateStaging(s Staging) []Issue {
	var issues []Issue
	if strings.TrimSpace(s.Dir) == "" {
		issues = append(issues, Issue{SeverityError, "staging.dir", "staging.dir must not be empty"})
	}
	switch s.Format {
	case "csv", "columnar":
	default:
		issues = append(issues, Issue{SeverityError, "staging.format", fmt.Sprintf("unknown staging format %q; want csv or columnar", s.Format)})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		return append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	}
	known := map[string]struct{}{
		"sqlite":   {},
		"postgres": {},
		"mssql":    {},
		"mysql":    {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.db.dsn", "storage.db.dsn must not be empty"})
	}
	if s.DB.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.batch_size",
			Message:  fmt.Sprintf("batch_size=%d; the backend default is used", s.DB.BatchSize),
		})
	}
	if !s.DB.ForeignKeys() && s.Kind != "sqlite" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.db.enforce_foreign_keys",
			Message:  fmt.Sprintf("%s always enforces declared foreign keys; the setting is ignored", s.Kind),
		})
	}
	return issues
}

func validateQueries(qs []Query) []Issue {
	var issues []Issue
	seen := make(map[string]int, len(qs))
	for i, q := range qs {
		if strings.TrimSpace(q.Name) == "" {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("queries[%d].name", i), "query name must not be empty"})
		} else if j, dup := seen[q.Name]; dup {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("queries[%d].name", i), fmt.Sprintf("duplicate of queries[%d]", j)})
		} else {
			seen[q.Name] = i
		}
		if strings.TrimSpace(q.SQL) == "" {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("queries[%d].sql", i), "query sql must not be empty"})
		}
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.ReadWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.read_workers", "read_workers must not be negative"})
	}
	if r.FetchWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.fetch_workers", "fetch_workers must not be negative"})
	}
	return issues
}
