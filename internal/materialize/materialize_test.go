package materialize

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"tvetl/internal/storage"
	_ "tvetl/internal/storage/sqlite"
	"tvetl/internal/table"
	"tvetl/internal/transformer"
	"tvetl/internal/tvmaze"
)

const scenario = `[
  {"id": 1, "name": "e1", "airdate": "2024-01-01", "airtime": "21:00", "airstamp": "2024-01-02T02:00:00+00:00",
   "_embedded": {"show": {"id": 10, "name": "Alpha", "genres": ["Drama", "Comedy"], "premiered": "2020-05-01",
     "schedule": {"time": "21:00", "days": ["Monday"]}, "officialSite": "https://alpha.example"}}},
  {"id": 2, "name": "e2", "_embedded": {"show": {"id": 10, "name": "Alpha-v2", "genres": ["Drama"]}}},
  {"id": 3, "name": "e3", "_embedded": {"show": {"id": 20, "name": "Beta", "genres": []}}}
]`

var prune = transformer.Prune{
	Shows:    []string{"rating", "runtime", "dvd_country", "externals_tvrage"},
	Episodes: []string{"rating"},
}

func clean(tb testing.TB, js string, p transformer.Prune) transformer.Tables {
	tb.Helper()
	eps, err := tvmaze.DecodeEpisodes(strings.NewReader(js))
	if err != nil {
		tb.Fatalf("decode: %v", err)
	}
	out, err := transformer.Clean(p).Apply(transformer.Normalize(eps))
	if err != nil {
		tb.Fatalf("clean: %v", err)
	}
	return out
}

func openRepo(tb testing.TB, enforceFK bool) storage.Repository {
	tb.Helper()
	repo, err := storage.New(context.Background(), storage.Config{
		Kind:               "sqlite",
		DSN:                "file:" + filepath.Join(tb.TempDir(), "tv.db"),
		EnforceForeignKeys: enforceFK,
	})
	if err != nil {
		tb.Fatalf("storage.New: %v", err)
	}
	tb.Cleanup(repo.Close)
	return repo
}

func query(tb testing.TB, repo storage.Repository, q string) [][]any {
	tb.Helper()
	res, err := repo.Query(context.Background(), q)
	if err != nil {
		tb.Fatalf("query %q: %v", q, err)
	}
	return res.Rows
}

func count(tb testing.TB, repo storage.Repository, tableName string) int64 {
	tb.Helper()
	return query(tb, repo, "SELECT COUNT(*) FROM "+tableName)[0][0].(int64)
}

func dump(tb testing.TB, repo storage.Repository) map[string][][]any {
	tb.Helper()
	out := map[string][][]any{}
	for _, name := range []string{"shows", "episodes", "genres"} {
		out[name] = query(tb, repo, "SELECT * FROM "+name+" ORDER BY id")
	}
	return out
}

func TestPlan(t *testing.T) {
	t.Parallel()

	loads, sums, err := Plan(clean(t, scenario, prune))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	var names []string
	for _, l := range loads {
		names = append(names, l.Def.FQN)
	}
	if got := strings.Join(names, ","); got != "shows,episodes,genres" {
		t.Fatalf("load order = %s, want parents first", got)
	}
	for i, s := range sums {
		if s.Rows != len(loads[i].Rows) {
			t.Fatalf("summary %s rows = %d, load rows = %d", s.Name, s.Rows, len(loads[i].Rows))
		}
	}
	for _, l := range loads[1:] {
		if len(l.Def.ForeignKeys) != 1 || l.Def.ForeignKeys[0].OnDelete != "CASCADE" {
			t.Fatalf("%s foreign keys = %+v, want cascading show_id", l.Def.FQN, l.Def.ForeignKeys)
		}
	}
	if _, ok := loads[0].Def.Column("genres"); ok {
		t.Fatalf("shows still carries genres")
	}
}

func TestPlan_MissingTable(t *testing.T) {
	t.Parallel()

	in := clean(t, scenario, prune)
	in.Genres = nil

	_, _, err := Plan(in)
	var se *storage.SchemaError
	if !errors.As(err, &se) || se.Table != "genres" {
		t.Fatalf("err = %v, want SchemaError for genres", err)
	}
}

func TestPlan_ShowKeyPrunedDropsForeignKeys(t *testing.T) {
	t.Parallel()

	p := prune
	p.Shows = append([]string{"id"}, p.Shows...)
	loads, _, err := Plan(clean(t, scenario, p))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, l := range loads[1:] {
		if len(l.Def.ForeignKeys) != 0 {
			t.Fatalf("%s keeps foreign keys %+v without shows.id", l.Def.FQN, l.Def.ForeignKeys)
		}
	}
}

func TestPlan_FlattensListCells(t *testing.T) {
	t.Parallel()

	in := clean(t, scenario, prune)
	eps := table.New("episodes", "id", "tags", "show_id")
	if err := eps.Append(table.Row{int64(1), []string{"pilot"}, int64(10)}); err != nil {
		t.Fatal(err)
	}
	in.Episodes = eps

	loads, _, err := Plan(in)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got := loads[1].Rows[0][1]; got != `["pilot"]` {
		t.Fatalf("tags cell = %#v, want JSON text", got)
	}
	if v, ok := eps.Value(0, "tags"); !ok || !reflect.DeepEqual(v, []string{"pilot"}) {
		t.Fatalf("input table mutated: %#v", v)
	}
}

func TestMaterialize_Scenario(t *testing.T) {
	t.Parallel()

	repo := openRepo(t, true)
	sum, err := New(repo, "test").Materialize(context.Background(), clean(t, scenario, prune))
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(sum.Tables) != 3 {
		t.Fatalf("summary tables = %d, want 3", len(sum.Tables))
	}

	if n := count(t, repo, "shows"); n != 2 {
		t.Fatalf("shows = %d, want 2", n)
	}
	if n := count(t, repo, "episodes"); n != 3 {
		t.Fatalf("episodes = %d, want 3", n)
	}
	if got := query(t, repo, "SELECT name FROM shows WHERE id = 10")[0][0]; got != "Alpha" {
		t.Fatalf("show 10 name = %v, want Alpha", got)
	}
	want := [][]any{{int64(1), int64(10), "Drama"}, {int64(2), int64(10), "Comedy"}}
	if got := query(t, repo, "SELECT id, show_id, genre FROM genres ORDER BY id"); !reflect.DeepEqual(got, want) {
		t.Fatalf("genres = %v, want %v", got, want)
	}
}

func TestMaterialize_Idempotent(t *testing.T) {
	t.Parallel()

	repo := openRepo(t, true)
	m := New(repo, "test")
	ctx := context.Background()

	if _, err := m.Materialize(ctx, clean(t, scenario, prune)); err != nil {
		t.Fatalf("first: %v", err)
	}
	first := dump(t, repo)
	if _, err := m.Materialize(ctx, clean(t, scenario, prune)); err != nil {
		t.Fatalf("second: %v", err)
	}
	if second := dump(t, repo); !reflect.DeepEqual(first, second) {
		t.Fatalf("contents differ after rerun:\nfirst  %v\nsecond %v", first, second)
	}
}

func TestMaterialize_EmptyChildTables(t *testing.T) {
	t.Parallel()

	in := clean(t, scenario, prune)
	in.Episodes = table.New(in.Episodes.Name, in.Episodes.Columns...)
	in.Genres = table.New(in.Genres.Name, in.Genres.Columns...)

	repo := openRepo(t, true)
	if _, err := New(repo, "test").Materialize(context.Background(), in); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if n := count(t, repo, "shows"); n != 2 {
		t.Fatalf("shows = %d, want 2", n)
	}
	for _, name := range []string{"episodes", "genres"} {
		if n := count(t, repo, name); n != 0 {
			t.Fatalf("%s = %d, want present and empty", name, n)
		}
	}
}

func withOrphan(tb testing.TB) transformer.Tables {
	tb.Helper()
	in := clean(tb, scenario, prune)
	i := in.Episodes.Index("show_id")
	in.Episodes.Rows[2][i] = int64(99)
	return in
}

func TestMaterialize_OrphanRejectedKeepsPriorState(t *testing.T) {
	t.Parallel()

	repo := openRepo(t, true)
	m := New(repo, "test")
	ctx := context.Background()

	first := clean(t, `[{"id": 7, "_embedded": {"show": {"id": 1, "name": "Prior", "genres": ["News"]}}}]`, prune)
	if _, err := m.Materialize(ctx, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	before := dump(t, repo)

	_, err := m.Materialize(ctx, withOrphan(t))
	var le *storage.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("err = %v, want LoadError", err)
	}
	if after := dump(t, repo); !reflect.DeepEqual(before, after) {
		t.Fatalf("prior state changed:\nbefore %v\nafter  %v", before, after)
	}
}

func TestMaterialize_PermissiveStoresOrphans(t *testing.T) {
	t.Parallel()

	repo := openRepo(t, false)
	if _, err := New(repo, "test").Materialize(context.Background(), withOrphan(t)); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if n := query(t, repo, "SELECT COUNT(*) FROM episodes WHERE show_id = 99")[0][0].(int64); n != 1 {
		t.Fatalf("dangling episodes = %d, want 1", n)
	}
}

func TestMaterialize_SchemaErrorLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	repo := openRepo(t, true)
	m := New(repo, "test")
	ctx := context.Background()
	if _, err := m.Materialize(ctx, clean(t, scenario, prune)); err != nil {
		t.Fatalf("first: %v", err)
	}
	before := dump(t, repo)

	bad := clean(t, scenario, prune)
	bad.Shows = nil
	_, err := m.Materialize(ctx, bad)
	var se *storage.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if after := dump(t, repo); !reflect.DeepEqual(before, after) {
		t.Fatalf("store changed after schema failure")
	}
}

func BenchmarkPlan(b *testing.B) {
	in := clean(b, scenario, prune)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Plan(in); err != nil {
			b.Fatal(err)
		}
	}
}
