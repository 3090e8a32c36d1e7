// Package ddl holds the SQL Server dialect for the generic ddl renderer.
//
// The dialect:
//   - Uses SQL Server-style identifier quoting: [schema].[table], [col].
//   - Has no auto-increment spelling: keys are plain BIGINT columns and the
//     repository fills missing values, since bulk copy cannot keep explicit
//     identity values.
package ddl

import (
	"strings"

	gddl "tvetl/internal/ddl"
)

// Dialect renders T-SQL DDL.
var Dialect = gddl.Dialect{
	Name:       "mssql",
	QuoteIdent: quoteIdent,
	MapType:    MapType,
}

// MapType maps a logical type into a SQL Server column type. Unknown or
// empty kinds fall back to NVARCHAR(MAX).
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case gddl.TypeInt:
		return "BIGINT"
	case gddl.TypeFloat:
		return "FLOAT"
	case gddl.TypeBool:
		return "BIT"
	case gddl.TypeDate:
		return "DATE"
	case gddl.TypeTime:
		return "TIME"
	case gddl.TypeTimestamp:
		return "DATETIMEOFFSET"
	default:
		return "NVARCHAR(MAX)"
	}
}

// BuildCreateTableSQL renders t for SQL Server.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return Dialect.BuildCreateTableSQL(t)
}

// QuoteIdent quotes a single identifier using [brackets], escaping ].
func QuoteIdent(id string) string { return quoteIdent(id) }

// QuoteFQN quotes a possibly schema-qualified name like "dbo.shows".
func QuoteFQN(fqn string) string { return Dialect.QuoteFQN(fqn) }

func quoteIdent(id string) string {
	return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]`
}
