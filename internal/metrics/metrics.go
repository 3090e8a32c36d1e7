// Package metrics records operational metrics for tvetl runs.
//
// Callers depend only on the Backend interface. A no-op backend is installed
// by default so instrumentation is always safe to call; concrete metric
// systems live in subpackages (prompush, datadog) and are selected by the
// binary at startup.
package metrics

import "time"

// Metric names emitted by this package.
const (
	StepTotal    = "tvetl_step_total"
	StepDuration = "tvetl_step_duration_seconds"
	RowsTotal    = "tvetl_rows_total"
	QueryTotal   = "tvetl_query_total"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

func status(err error) string {
	if err != nil {
		return statusFailure
	}
	return statusSuccess
}

// RecordStep counts one execution of a pipeline step and observes its
// duration, labelled by outcome. Steps are extract, transform, load and query.
func RecordStep(job, step string, err error, d time.Duration) {
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status(err),
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta to the row counter for a table, e.g. "raw_records",
// "shows", "episodes", "genres". Non-positive deltas are ignored.
func RecordRow(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
	})
}

// RecordQuery counts one named query execution by outcome.
func RecordQuery(job, query string, err error) {
	backend.IncCounter(QueryTotal, 1, Labels{
		"job":    job,
		"query":  query,
		"status": status(err),
	})
}
