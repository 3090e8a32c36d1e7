package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tvetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// readCounterValue reads the current value of a Counter.
func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

// readSummaryCountSum reads sample count and sum from a SummaryVec child.
func readSummaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()

	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	if m.GetSummary() == nil {
		t.Fatalf("metric did not contain Summary value")
	}
	s := m.GetSummary()
	return s.GetSampleCount(), s.GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "daily", wantErr: true},
		{name: "default job name", gatewayURL: "http://pushgateway:9091", wantJobName: "tvetl"},
		{name: "explicit job name", jobName: "backfill", gatewayURL: "http://pushgateway:9091", wantJobName: "backfill"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend(%q, %q) error = %v", tt.jobName, tt.gatewayURL, err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
			if b.gatewayURL != tt.gatewayURL {
				t.Fatalf("gatewayURL = %q, want %q", b.gatewayURL, tt.gatewayURL)
			}
			if b.stepCounter == nil || b.stepDuration == nil || b.rowCounter == nil || b.queryCounter == nil {
				t.Fatalf("collectors not initialised: %+v", b)
			}
		})
	}
}

func TestIncCounter(t *testing.T) {
	t.Parallel()

	type inc struct {
		name   string
		delta  float64
		labels metrics.Labels
	}
	tests := []struct {
		name  string
		incs  []inc
		check func(t *testing.T, b *Backend)
	}{
		{
			name: "step counter",
			incs: []inc{{metrics.StepTotal, 3, metrics.Labels{"step": "extract", "status": "success"}}},
			check: func(t *testing.T, b *Backend) {
				if got := readCounterValue(t, b.stepCounter.WithLabelValues("extract", "success")); got != 3 {
					t.Fatalf("stepCounter = %v, want 3", got)
				}
			},
		},
		{
			name: "row counter per table",
			incs: []inc{
				{metrics.RowsTotal, 5, metrics.Labels{"table": "episodes"}},
				{metrics.RowsTotal, 2, metrics.Labels{"table": "episodes"}},
				{metrics.RowsTotal, 1, metrics.Labels{"table": "shows"}},
			},
			check: func(t *testing.T, b *Backend) {
				if got := readCounterValue(t, b.rowCounter.WithLabelValues("episodes")); got != 7 {
					t.Fatalf("episodes rows = %v, want 7", got)
				}
				if got := readCounterValue(t, b.rowCounter.WithLabelValues("shows")); got != 1 {
					t.Fatalf("shows rows = %v, want 1", got)
				}
			},
		},
		{
			name: "query counter",
			incs: []inc{{metrics.QueryTotal, 1, metrics.Labels{"query": "genre_counts", "status": "failure"}}},
			check: func(t *testing.T, b *Backend) {
				if got := readCounterValue(t, b.queryCounter.WithLabelValues("genre_counts", "failure")); got != 1 {
					t.Fatalf("queryCounter = %v, want 1", got)
				}
			},
		},
		{
			name: "unknown metric ignored",
			incs: []inc{{"unknown_metric", 10, metrics.Labels{"table": "shows"}}},
			check: func(t *testing.T, b *Backend) {
				if got := readCounterValue(t, b.rowCounter.WithLabelValues("shows")); got != 0 {
					t.Fatalf("rowCounter = %v, want 0", got)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend("tvetl", "http://example.com")
			if err != nil {
				t.Fatalf("NewBackend() error = %v", err)
			}
			for _, i := range tt.incs {
				b.IncCounter(i.name, i.delta, i.labels)
			}
			tt.check(t, b)
		})
	}
}

func TestNilCollectors(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"table": "shows"})
	b.IncCounter(metrics.QueryTotal, 1, metrics.Labels{"query": "q", "status": "success"})
	b.ObserveHistogram(metrics.StepDuration, 1, metrics.Labels{"step": "s", "status": "success"})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("tvetl", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	lbls := metrics.Labels{"step": "load", "status": "success"}

	b.ObserveHistogram(metrics.StepDuration, 1.5, lbls)
	b.ObserveHistogram("other_metric", 2.0, lbls)

	count, sum := readSummaryCountSum(t, b.stepDuration, "load", "success")
	if count != 1 || sum != 1.5 {
		t.Fatalf("summary = (%d, %v), want (1, 1.5)", count, sum)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method string
		path   string
		body   string
	}
	reqCh := make(chan pushed, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushed{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("daily", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RowsTotal, 4, metrics.Labels{"table": "genres"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pushed
	select {
	case got = <-reqCh:
	default:
		t.Fatalf("Flush() did not reach the Pushgateway")
	}
	if got.method != http.MethodPut {
		t.Fatalf("method = %q, want PUT", got.method)
	}
	if !strings.Contains(got.path, "/job/daily") {
		t.Fatalf("path = %q, want job grouping /job/daily", got.path)
	}
	if len(got.body) == 0 {
		t.Fatalf("push body is empty")
	}
}

func BenchmarkIncCounterRows(b *testing.B) {
	backend, err := NewBackend("tvetl", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"table": "episodes"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RowsTotal, 1, labels)
	}
}

func BenchmarkObserveHistogram(b *testing.B) {
	backend, err := NewBackend("tvetl", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"step": "load", "status": "success"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.ObserveHistogram(metrics.StepDuration, 0.123, labels)
	}
}
