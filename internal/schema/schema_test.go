package schema

import (
	"strings"
	"testing"
	"time"

	"tvetl/internal/ddl"
	"tvetl/internal/table"
)

func TestInfer_Shows(t *testing.T) {
	t.Parallel()

	tb := table.New("shows", "id", "name", "averageRuntime", "premiered", "extra_n", "extra_mix", "extra_null", "extra_flag")
	tb.Rows = []table.Row{
		{int64(1), "A", float64(60), "2020-01-01", int64(1), int64(2), nil, true},
		{int64(2), nil, nil, nil, int64(3), float64(2.5), nil, nil},
	}

	def, err := Infer(tb)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	want := map[string]string{
		"id":             ddl.TypeInt,
		"name":           ddl.TypeText,
		"averageRuntime": ddl.TypeFloat,
		"premiered":      ddl.TypeDate,
		"extra_n":        ddl.TypeInt,
		"extra_mix":      ddl.TypeFloat,
		"extra_null":     ddl.TypeText,
		"extra_flag":     ddl.TypeBool,
	}
	if len(def.Columns) != len(want) {
		t.Fatalf("columns = %d, want %d", len(def.Columns), len(want))
	}
	for _, c := range def.Columns {
		if c.Type != want[c.Name] {
			t.Errorf("%s: type = %s, want %s", c.Name, c.Type, want[c.Name])
		}
	}
	id, _ := def.Column("id")
	if !id.PrimaryKey || id.AutoIncrement || id.Nullable {
		t.Fatalf("shows.id = %+v", id)
	}
	if len(def.ForeignKeys) != 0 {
		t.Fatalf("shows must not reference anything: %+v", def.ForeignKeys)
	}
}

func TestInfer_ChildTables(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"episodes", "genres"} {
		tb := table.New(name, "id", "show_id")
		def, err := Infer(tb)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		id, _ := def.Column("id")
		if !id.PrimaryKey || !id.AutoIncrement {
			t.Fatalf("%s.id = %+v", name, id)
		}
		if len(def.ForeignKeys) != 1 {
			t.Fatalf("%s: foreign keys = %+v", name, def.ForeignKeys)
		}
		fk := def.ForeignKeys[0]
		if fk.Column != "show_id" || fk.RefTable != "shows" || fk.RefColumn != "id" || fk.OnDelete != "CASCADE" {
			t.Fatalf("%s: fk = %+v", name, fk)
		}
	}
}

func TestInfer_PrunedColumns(t *testing.T) {
	t.Parallel()

	// Without show_id there is nothing to reference; without id there is no key.
	tb := table.New("episodes", "name")
	def, err := Infer(tb)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(def.ForeignKeys) != 0 || def.Columns[0].PrimaryKey {
		t.Fatalf("def = %+v", def)
	}
}

func TestInfer_RejectsLists(t *testing.T) {
	t.Parallel()

	for _, col := range []string{"schedule_days", "runtime"} {
		tb := table.New("shows", col)
		tb.Rows = []table.Row{{[]string{"Monday"}}}
		_, err := Infer(tb)
		if err == nil || !strings.Contains(err.Error(), "list") {
			t.Fatalf("%s: error = %v, want list error", col, err)
		}
	}
	if _, err := Infer(nil); err == nil {
		t.Fatalf("Infer(nil) should fail")
	}
}

func TestParseTemporal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		logical string
		in      string
		want    time.Time
		wantErr bool
	}{
		{ddl.TypeDate, "2021-03-04", time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), false},
		{ddl.TypeTime, "20:30", time.Date(0, 1, 1, 20, 30, 0, 0, time.UTC), false},
		{ddl.TypeTime, "20:30:15", time.Date(0, 1, 1, 20, 30, 15, 0, time.UTC), false},
		{ddl.TypeTimestamp, "2021-03-04T12:00:00+00:00", time.Date(2021, 3, 4, 12, 0, 0, 0, time.UTC), false},
		{ddl.TypeDate, "04.03.2021", time.Time{}, true},
		{ddl.TypeText, "x", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTemporal(tt.logical, tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTemporal(%s, %q) expected error", tt.logical, tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTemporal(%s, %q): %v", tt.logical, tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTemporal(%s, %q) = %v, want %v", tt.logical, tt.in, got, tt.want)
		}
	}
}

func TestTemporalValue(t *testing.T) {
	t.Parallel()

	for _, in := range []any{nil, "", "  "} {
		v, err := TemporalValue(ddl.TypeDate, in)
		if err != nil || v != nil {
			t.Fatalf("TemporalValue(%#v) = %v, %v; want nil", in, v, err)
		}
	}
	now := time.Now()
	if v, err := TemporalValue(ddl.TypeTimestamp, now); err != nil || v != now {
		t.Fatalf("time.Time should pass through: %v %v", v, err)
	}
	if _, err := TemporalValue(ddl.TypeDate, int64(3)); err == nil {
		t.Fatalf("int64 should not convert to a date")
	}
	if !IsTemporal(ddl.TypeTime) || IsTemporal(ddl.TypeFloat) {
		t.Fatalf("IsTemporal")
	}
}
