// Package ddl holds the SQLite dialect for the generic ddl renderer.
//
// The dialect:
//   - Uses double-quoted identifiers: "table", "col".
//   - Spells an auto-increment key INTEGER PRIMARY KEY AUTOINCREMENT, so
//     explicit ids are kept and missing ones are assigned.
//   - Declares temporal columns DATE/TIME/TIMESTAMP; values are stored as
//     ISO-8601 text.
package ddl

import (
	"strings"

	gddl "tvetl/internal/ddl"
)

// Dialect renders SQLite DDL.
var Dialect = gddl.Dialect{
	Name:       "sqlite",
	QuoteIdent: quoteIdent,
	MapType:    MapType,
	AutoIncrement: func(quoted, _ string) (string, bool) {
		return quoted + " INTEGER PRIMARY KEY AUTOINCREMENT", true
	},
}

// MapType maps a logical type into a SQLite column type.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case gddl.TypeInt:
		return "INTEGER"
	case gddl.TypeBool:
		return "INTEGER" // 0/1
	case gddl.TypeFloat:
		return "REAL"
	case gddl.TypeDate:
		return "DATE"
	case gddl.TypeTime:
		return "TIME"
	case gddl.TypeTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL renders t for SQLite.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return Dialect.BuildCreateTableSQL(t)
}

// QuoteIdent quotes a single identifier.
func QuoteIdent(id string) string { return quoteIdent(id) }

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
