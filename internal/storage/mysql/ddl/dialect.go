// Package ddl holds the MySQL dialect for the generic ddl renderer:
// backtick-quoted identifiers and AUTO_INCREMENT keys.
package ddl

import (
	"strings"

	gddl "tvetl/internal/ddl"
)

// Dialect renders MySQL DDL. Tables are InnoDB so foreign keys are enforced.
var Dialect = gddl.Dialect{
	Name:       "mysql",
	QuoteIdent: quoteIdent,
	MapType:    MapType,
	AutoIncrement: func(quoted, _ string) (string, bool) {
		return quoted + " BIGINT AUTO_INCREMENT PRIMARY KEY", true
	},
}

// MapType maps a logical type into a MySQL column type.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case gddl.TypeInt:
		return "BIGINT"
	case gddl.TypeFloat:
		return "DOUBLE"
	case gddl.TypeBool:
		return "BOOLEAN"
	case gddl.TypeDate:
		return "DATE"
	case gddl.TypeTime:
		return "TIME"
	case gddl.TypeTimestamp:
		return "DATETIME"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL renders t for MySQL with the InnoDB engine.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	s, err := Dialect.BuildCreateTableSQL(t)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(s, ";") + " ENGINE=InnoDB;", nil
}

// QuoteIdent backtick-quotes an identifier, doubling embedded backticks.
func QuoteIdent(id string) string { return quoteIdent(id) }

// QuoteFQN quotes a possibly schema-qualified name like "tv.shows".
func QuoteFQN(fqn string) string { return Dialect.QuoteFQN(fqn) }

func quoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}
