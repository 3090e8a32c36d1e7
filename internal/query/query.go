// Package query runs named read-only queries against the materialized store.
// Each query is independent: a failing query is reported in its own Result
// and the remaining queries still run.
package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tvetl/internal/metrics"
	"tvetl/internal/storage"
)

// Query is one named statement.
type Query struct {
	Name string
	SQL  string
}

// QueryError reports a single failed query.
type QueryError struct {
	Name string
	Err  error
}

func (e *QueryError) Error() string { return fmt.Sprintf("query %q: %v", e.Name, e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// Result is the outcome of one query. Err is a *QueryError when it failed,
// in which case Columns and Rows are empty.
type Result struct {
	Name    string
	Columns []string
	Rows    [][]any
	Elapsed time.Duration
	Err     error
}

// Runner executes queries through a repository.
type Runner struct {
	repo storage.Repository
	job  string
}

// NewRunner returns a Runner reading through repo. job labels metrics.
func NewRunner(repo storage.Repository, job string) *Runner {
	return &Runner{repo: repo, job: job}
}

// Run executes q after checking it is a single read-only statement.
func (r *Runner) Run(ctx context.Context, q Query) Result {
	log.Printf("query: running name=%q", q.Name)
	start := time.Now()
	res := Result{Name: q.Name}

	if err := CheckReadOnly(q.SQL); err != nil {
		res.Err = &QueryError{Name: q.Name, Err: err}
	} else if out, err := r.repo.Query(ctx, q.SQL); err != nil {
		res.Err = &QueryError{Name: q.Name, Err: err}
	} else {
		res.Columns, res.Rows = out.Columns, out.Rows
	}
	res.Elapsed = time.Since(start)

	metrics.RecordQuery(r.job, Slug(q.Name), res.Err)
	if res.Err != nil {
		log.Printf("query: WARNING skipped: %v", res.Err)
	} else {
		log.Printf("query: name=%q rows=%d elapsed=%s", q.Name, len(res.Rows), res.Elapsed.Truncate(time.Microsecond))
	}
	return res
}

// RunAll executes qs in order and returns one Result per query. A failing
// query never stops the others. Only a cancelled context ends the batch
// early; the queries not run are reported with the context error.
func (r *Runner) RunAll(ctx context.Context, qs []Query) []Result {
	out := make([]Result, 0, len(qs))
	for _, q := range qs {
		if err := ctx.Err(); err != nil {
			out = append(out, Result{Name: q.Name, Err: &QueryError{Name: q.Name, Err: err}})
			continue
		}
		out = append(out, r.Run(ctx, q))
	}
	return out
}

// Failed returns the errors of the failed results.
func Failed(results []Result) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// CheckReadOnly accepts exactly one SELECT or WITH statement, optionally
// followed by a semicolon. Comments and quoted text are skipped when looking
// for the leading keyword and for statement separators.
func CheckReadOnly(sql string) error {
	body, err := stripComments(sql)
	if err != nil {
		return err
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSpace(strings.TrimSuffix(body, ";"))
	if body == "" {
		return fmt.Errorf("empty statement")
	}
	if strings.ContainsRune(unquoted(body), ';') {
		return fmt.Errorf("multiple statements are not allowed")
	}
	kw := strings.ToUpper(leadingWord(body))
	if kw != "SELECT" && kw != "WITH" {
		return fmt.Errorf("only SELECT or WITH statements are allowed, got %q", kw)
	}
	return nil
}

// stripComments removes -- and /* */ comments outside quotes.
func stripComments(s string) (string, error) {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("unterminated comment")
			}
			i += end + 3
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	if quote != 0 {
		return "", fmt.Errorf("unterminated quoted text")
	}
	return b.String(), nil
}

// unquoted blanks out quoted text so separators inside literals are ignored.
func unquoted(s string) string {
	out := []byte(s)
	var quote byte
	for i, c := range out {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				out[i] = ' '
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		}
	}
	return string(out)
}

func leadingWord(s string) string {
	s = strings.TrimLeft(s, "( \t\r\n")
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		return s
	}
	return s[:end]
}

// Slug turns a display name into a lowercase ASCII identifier usable as a
// metric label or file name: accents are removed and runs of anything other
// than letters and digits become one underscore.
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(plain) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
