// Package ddl holds the Postgres dialect for the generic ddl renderer:
// double-quoted identifiers with escaped quotes, and auto-increment keys as
// identity columns that still accept explicit values.
package ddl

import (
	"strings"

	gddl "tvetl/internal/ddl"
)

// Dialect renders Postgres DDL.
var Dialect = gddl.Dialect{
	Name:       "postgres",
	QuoteIdent: quoteIdent,
	MapType:    MapType,
	AutoIncrement: func(quoted, _ string) (string, bool) {
		return quoted + " BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY", true
	},
}

// MapType maps a logical type into a Postgres column type.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case gddl.TypeInt:
		return "BIGINT"
	case gddl.TypeFloat:
		return "DOUBLE PRECISION"
	case gddl.TypeBool:
		return "BOOLEAN"
	case gddl.TypeDate:
		return "DATE"
	case gddl.TypeTime:
		return "TIME"
	case gddl.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL renders t for Postgres.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return Dialect.BuildCreateTableSQL(t)
}

// QuoteIdent quotes a single identifier segment.
func QuoteIdent(id string) string { return quoteIdent(id) }

// QuoteFQN quotes a possibly schema-qualified name like "public.shows".
func QuoteFQN(fqn string) string { return Dialect.QuoteFQN(fqn) }

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
