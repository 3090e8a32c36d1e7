// Package ddl defines a small, backend-agnostic model for table definitions
// and renders CREATE TABLE statements from it.
//
// A Dialect supplies what differs between stores: identifier quoting, the
// logical-to-SQL type mapping and how an auto-increment key is spelled.
// Backend ddl packages (internal/storage/*/ddl) each expose one Dialect.
package ddl

import (
	"fmt"
	"strings"
)

// Dialect describes how a store spells DDL.
type Dialect struct {
	Name string

	// QuoteIdent quotes one identifier. Nil leaves identifiers unquoted.
	QuoteIdent func(string) string

	// MapType maps a logical type to a SQL type for columns without SQLType.
	MapType func(logical string) string

	// AutoIncrement renders an auto-increment primary key column. When it
	// returns ok == false the column is rendered normally and the table-level
	// PRIMARY KEY clause covers it.
	AutoIncrement func(quotedName, sqlType string) (def string, ok bool)
}

// Generic is an unquoted dialect without auto-increment support.
var Generic = Dialect{Name: "generic"}

func (d Dialect) quote(id string) string {
	if d.QuoteIdent == nil {
		return id
	}
	return d.QuoteIdent(id)
}

// QuoteFQN quotes each dotted segment of fqn.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, d.quote(p))
		}
	}
	return strings.Join(out, ".")
}

// Quote quotes a single identifier.
func (d Dialect) Quote(id string) string { return d.quote(id) }

// BuildCreateTableSQL renders:
//
//	CREATE TABLE <fqn> (
//	  <col> <type> [NOT NULL] [DEFAULT <expr>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)],
//	  [FOREIGN KEY (<col>) REFERENCES <ref> (<refcol>) [ON DELETE <action>]]
//	);
//
// Columns must have a name and either SQLType or a Type the dialect maps.
func (d Dialect) BuildCreateTableSQL(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	parts := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	var pks []string
	inlinePK := false
	seen := make(map[string]struct{}, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		if _, dup := seen[name]; dup {
			return "", fmt.Errorf("ddl: duplicate column %s in table %s", name, fqn)
		}
		seen[name] = struct{}{}

		typ := strings.TrimSpace(c.SQLType)
		if typ == "" && d.MapType != nil && c.Type != "" {
			typ = d.MapType(c.Type)
		}
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		if c.PrimaryKey && c.AutoIncrement && d.AutoIncrement != nil {
			if def, ok := d.AutoIncrement(d.quote(name), typ); ok {
				parts = append(parts, def)
				inlinePK = true
				continue
			}
		}

		var sb strings.Builder
		sb.WriteString(d.quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		parts = append(parts, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.quote(name))
		}
	}

	if len(pks) > 0 {
		if inlinePK {
			return "", fmt.Errorf("ddl: table %s mixes an auto-increment key with other key columns", fqn)
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	for _, fk := range t.ForeignKeys {
		if _, ok := seen[fk.Column]; !ok {
			return "", fmt.Errorf("ddl: foreign key on unknown column %s in table %s", fk.Column, fqn)
		}
		s := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.quote(fk.Column), d.QuoteFQN(fk.RefTable), d.quote(fk.RefColumn))
		if a := strings.TrimSpace(fk.OnDelete); a != "" {
			s += " ON DELETE " + a
		}
		parts = append(parts, s)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", d.QuoteFQN(fqn), strings.Join(parts, ",\n  ")), nil
}

// BuildCreateTableSQL renders t with the Generic dialect.
func BuildCreateTableSQL(t TableDef) (string, error) {
	return Generic.BuildCreateTableSQL(t)
}
