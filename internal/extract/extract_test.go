package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tvetl/internal/config"
	"tvetl/internal/datasource"
	"tvetl/internal/tvmaze"
)

func record(epID, showID int) string {
	return fmt.Sprintf(`{"id":%d,"_embedded":{"show":{"id":%d}}}`, epID, showID)
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func ids(eps []tvmaze.Episode) []int64 {
	out := make([]int64, len(eps))
	for i, e := range eps {
		out[i] = e.ID.V
	}
	return out
}

func TestFromFilesMergesInNameOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "tv_shows_2024-01-02.json", "["+record(3, 10)+"]")
	writeFile(t, dir, "tv_shows_2024-01-01.json", "["+record(1, 10)+","+record(2, 20)+"]")
	writeFile(t, dir, "tv_shows_2024-01-03.json", record(4, 30)+"\n"+record(5, 30)+"\n")
	writeFile(t, dir, "README.txt", "not json")

	for _, workers := range []int{0, 1, 8} {
		eps, err := FromFiles(context.Background(), dir, "*.json", workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		got := ids(eps)
		want := []int64{1, 2, 3, 4, 5}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("workers=%d: ids = %v, want %v", workers, got, want)
		}
	}
}

func TestFromFilesUnavailable(t *testing.T) {
	t.Parallel()

	var ue *datasource.UnavailableError

	_, err := FromFiles(context.Background(), filepath.Join(t.TempDir(), "missing"), "*.json", 2)
	if !errors.As(err, &ue) {
		t.Fatalf("missing dir: error = %v, want UnavailableError", err)
	}

	_, err = FromFiles(context.Background(), t.TempDir(), "*.json", 2)
	if !errors.As(err, &ue) {
		t.Fatalf("empty dir: error = %v, want UnavailableError", err)
	}
}

func TestFromFilesMalformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.json", "["+record(1, 10)+"]")
	writeFile(t, dir, "b.json", `[{"id":2,`)

	_, err := FromFiles(context.Background(), dir, "*.json", 2)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	var ue *datasource.UnavailableError
	if errors.As(err, &ue) {
		t.Fatalf("decode failure must not look like an unavailable source: %v", err)
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
	days  map[string]string
}

func (f *fakeFetcher) FetchSchedule(_ context.Context, date time.Time) ([]byte, error) {
	day := date.Format(tvmaze.DateLayout)
	f.mu.Lock()
	f.calls = append(f.calls, day)
	f.mu.Unlock()
	body, ok := f.days[day]
	if !ok {
		return nil, fmt.Errorf("status 404 for %s", day)
	}
	return []byte(body), nil
}

func window(t *testing.T, start, end string) []time.Time {
	t.Helper()
	dates, err := config.SourceHTTP{StartDate: start, EndDate: end}.Dates(time.Now())
	if err != nil {
		t.Fatalf("Dates: %v", err)
	}
	return dates
}

func TestFromScheduleSkipsFailedDaysAndSaves(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{days: map[string]string{
		"2024-01-01": "[" + record(1, 10) + "]",
		"2024-01-03": "[" + record(3, 10) + "," + record(4, 20) + "]",
		"2024-01-04": "{broken",
	}}
	saveDir := filepath.Join(t.TempDir(), "JSON")

	eps, err := FromSchedule(context.Background(), f, window(t, "2024-01-01", "2024-01-04"), saveDir, 3)
	if err != nil {
		t.Fatalf("FromSchedule: %v", err)
	}
	if got := fmt.Sprint(ids(eps)); got != "[1 3 4]" {
		t.Fatalf("ids = %s, want [1 3 4]", got)
	}
	if len(f.calls) != 4 {
		t.Fatalf("calls = %v, want 4", f.calls)
	}

	saved, err := os.ReadFile(filepath.Join(saveDir, "tv_shows_2024-01-03.json"))
	if err != nil {
		t.Fatalf("saved dump: %v", err)
	}
	if string(saved) != f.days["2024-01-03"] {
		t.Fatalf("saved payload altered: %s", saved)
	}
	if _, err := os.Stat(filepath.Join(saveDir, "tv_shows_2024-01-02.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed day must not be saved: %v", err)
	}
}

func TestFromScheduleAllDaysFail(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{days: map[string]string{}}
	_, err := FromSchedule(context.Background(), f, window(t, "2024-01-01", "2024-01-02"), "", 2)
	var ue *datasource.UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want UnavailableError", err)
	}
}

func TestRunDispatch(t *testing.T) {
	f := &fakeFetcher{days: map[string]string{"2024-01-01": "[" + record(9, 90) + "]"}}
	orig := newFetcher
	newFetcher = func(config.SourceHTTP) Fetcher { return f }
	t.Cleanup(func() { newFetcher = orig })

	src := config.Source{Kind: "http", HTTP: config.SourceHTTP{StartDate: "2024-01-01"}}
	eps, err := Run(context.Background(), src, config.RuntimeConfig{}, time.Now())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(eps) != 1 || eps[0].ID != tvmaze.IDOf(9) {
		t.Fatalf("eps = %+v", eps)
	}

	if _, err := Run(context.Background(), config.Source{Kind: "ftp"}, config.RuntimeConfig{}, time.Now()); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
