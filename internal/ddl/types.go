package ddl

// Logical column types. Backends map them to SQL types with their MapType.
const (
	TypeInt       = "int"
	TypeFloat     = "float"
	TypeText      = "text"
	TypeBool      = "bool"
	TypeDate      = "date"
	TypeTime      = "time"
	TypeTimestamp = "timestamp"
)

// ColumnDef describes a single column.
//
// Fields:
//   - Name: column name (unquoted; dialects quote at render time)
//   - Type: logical type (TypeInt, TypeText, ...)
//   - SQLType: dialect type; filled by the backend from Type when empty
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - AutoIncrement: the store assigns a value when none is given
//   - Default: raw default expression
type ColumnDef struct {
	Name          string
	Type          string
	SQLType       string
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Default       string
}

// ForeignKey declares Column -> RefTable(RefColumn).
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	// OnDelete is the referential action, e.g. "CASCADE". Empty means none.
	OnDelete string
}

// TableDef holds the table name and its ordered columns and relations.
type TableDef struct {
	FQN         string
	Columns     []ColumnDef
	ForeignKeys []ForeignKey
}

// ColumnNames returns the column names in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (t TableDef) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// Renamed returns a copy of t named fqn whose foreign keys point at the
// tables in refs (old name -> new name) where present. It is how staging
// copies of a related set of tables keep referencing each other.
func (t TableDef) Renamed(fqn string, refs map[string]string) TableDef {
	out := TableDef{
		FQN:         fqn,
		Columns:     append([]ColumnDef(nil), t.Columns...),
		ForeignKeys: make([]ForeignKey, len(t.ForeignKeys)),
	}
	for i, fk := range t.ForeignKeys {
		if n, ok := refs[fk.RefTable]; ok {
			fk.RefTable = n
		}
		out.ForeignKeys[i] = fk
	}
	return out
}
