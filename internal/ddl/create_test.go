package ddl

import (
	"strings"
	"testing"
)

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			def:         TableDef{Columns: []ColumnDef{{Name: "id", SQLType: "INT"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			def:         TableDef{FQN: "t"},
			errContains: "at least one column is required",
		},
		{
			name:        "empty column name",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: " ", SQLType: "INT"}}},
			errContains: "column with empty name",
		},
		{
			name:        "missing type",
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id", Type: TypeInt}}},
			errContains: "missing SQLType",
		},
		{
			name: "duplicate column",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "INT"}, {Name: "id", SQLType: "TEXT"},
			}},
			errContains: "duplicate column id",
		},
		{
			name: "foreign key on unknown column",
			def: TableDef{
				FQN:         "t",
				Columns:     []ColumnDef{{Name: "id", SQLType: "INT"}},
				ForeignKeys: []ForeignKey{{Column: "show_id", RefTable: "shows", RefColumn: "id"}},
			},
			errContains: "unknown column show_id",
		},
		{
			name:    "nullable and not null",
			def:     TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id", SQLType: "INT"}, {Name: "name", SQLType: "TEXT", Nullable: true}}},
			wantSQL: "CREATE TABLE t (\n  id INT NOT NULL,\n  name TEXT\n);",
		},
		{
			name: "default expression is trimmed",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "flag", SQLType: "BOOLEAN", Default: "  false  "},
			}},
			wantSQL: "CREATE TABLE t (\n  flag BOOLEAN NOT NULL DEFAULT false\n);",
		},
		{
			name: "composite primary key",
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "id", SQLType: "INT", PrimaryKey: true},
				{Name: "tenant_id", SQLType: "INT", PrimaryKey: true},
			}},
			wantSQL: "CREATE TABLE t (\n  id INT NOT NULL,\n  tenant_id INT NOT NULL,\n  PRIMARY KEY (id, tenant_id)\n);",
		},
		{
			name: "auto increment without dialect support falls back to primary key clause",
			def: TableDef{FQN: "episodes", Columns: []ColumnDef{
				{Name: "id", SQLType: "BIGINT", PrimaryKey: true, AutoIncrement: true},
			}},
			wantSQL: "CREATE TABLE episodes (\n  id BIGINT NOT NULL,\n  PRIMARY KEY (id)\n);",
		},
		{
			name: "foreign key with cascade",
			def: TableDef{
				FQN: "  genres  ",
				Columns: []ColumnDef{
					{Name: "id", SQLType: "BIGINT", PrimaryKey: true},
					{Name: "show_id", SQLType: "BIGINT", Nullable: true},
				},
				ForeignKeys: []ForeignKey{{Column: "show_id", RefTable: "shows", RefColumn: "id", OnDelete: "CASCADE"}},
			},
			wantSQL: "CREATE TABLE genres (\n  id BIGINT NOT NULL,\n  show_id BIGINT,\n  PRIMARY KEY (id),\n  FOREIGN KEY (show_id) REFERENCES shows (id) ON DELETE CASCADE\n);",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tt.def)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("error = %v, want substring %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("got:\n%s\nwant:\n%s", got, tt.wantSQL)
			}
		})
	}
}

func TestDialectHooks(t *testing.T) {
	t.Parallel()

	d := Dialect{
		Name:       "test",
		QuoteIdent: func(s string) string { return "`" + s + "`" },
		MapType: func(l string) string {
			if l == TypeInt {
				return "BIGINT"
			}
			return "TEXT"
		},
		AutoIncrement: func(q, typ string) (string, bool) {
			return q + " " + typ + " AUTO_INCREMENT PRIMARY KEY", true
		},
	}
	def := TableDef{
		FQN: "db.episodes",
		Columns: []ColumnDef{
			{Name: "id", Type: TypeInt, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: TypeText, Nullable: true},
			{Name: "show_id", Type: TypeInt, Nullable: true},
		},
		ForeignKeys: []ForeignKey{{Column: "show_id", RefTable: "shows", RefColumn: "id", OnDelete: "CASCADE"}},
	}
	got, err := d.BuildCreateTableSQL(def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE `db`.`episodes` (\n" +
		"  `id` BIGINT AUTO_INCREMENT PRIMARY KEY,\n" +
		"  `name` TEXT,\n" +
		"  `show_id` BIGINT,\n" +
		"  FOREIGN KEY (`show_id`) REFERENCES `shows` (`id`) ON DELETE CASCADE\n);"
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	def.Columns = append(def.Columns, ColumnDef{Name: "tenant", Type: TypeInt, PrimaryKey: true})
	if _, err := d.BuildCreateTableSQL(def); err == nil {
		t.Fatalf("expected error mixing inline auto-increment key with other key columns")
	}
}

func TestTableDefHelpers(t *testing.T) {
	t.Parallel()

	def := TableDef{
		FQN:         "episodes",
		Columns:     []ColumnDef{{Name: "id"}, {Name: "show_id"}},
		ForeignKeys: []ForeignKey{{Column: "show_id", RefTable: "shows", RefColumn: "id"}},
	}
	if got := strings.Join(def.ColumnNames(), ","); got != "id,show_id" {
		t.Fatalf("ColumnNames = %s", got)
	}
	if _, ok := def.Column("show_id"); !ok {
		t.Fatalf("Column(show_id) not found")
	}

	staged := def.Renamed("episodes__staging", map[string]string{"shows": "shows__staging"})
	if staged.FQN != "episodes__staging" || staged.ForeignKeys[0].RefTable != "shows__staging" {
		t.Fatalf("Renamed = %+v", staged)
	}
	if def.ForeignKeys[0].RefTable != "shows" {
		t.Fatalf("Renamed mutated the original")
	}
}

var benchmarkSink string

func BenchmarkBuildCreateTableSQL(b *testing.B) {
	def := TableDef{FQN: "shows"}
	for _, n := range []string{"id", "url", "name", "type", "language", "status", "averageRuntime", "premiered"} {
		def.Columns = append(def.Columns, ColumnDef{Name: n, SQLType: "TEXT", Nullable: true})
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s, err := BuildCreateTableSQL(def)
		if err != nil {
			b.Fatal(err)
		}
		benchmarkSink = s
	}
}
