// Package schema is the destination model: the logical type of every known
// column, the key of each table and how child tables reference shows.
// Infer turns a cleaned table into a ddl.TableDef for whatever columns
// survived pruning.
package schema

import (
	"fmt"

	"tvetl/internal/ddl"
	"tvetl/internal/table"
)

// ParentTable is referenced by every child table through ChildKey.
const (
	ParentTable = "shows"
	ParentKey   = "id"
	ChildKey    = "show_id"
)

// hints pins the logical type of known columns. Columns not listed here are
// typed from their cells.
var hints = map[string]map[string]string{
	"shows": {
		"id":                ddl.TypeInt,
		"runtime":           ddl.TypeFloat,
		"averageRuntime":    ddl.TypeFloat,
		"premiered":         ddl.TypeDate,
		"ended":             ddl.TypeDate,
		"schedule_time":     ddl.TypeTime,
		"rating":            ddl.TypeFloat,
		"weight":            ddl.TypeFloat,
		"externals_tvrage":  ddl.TypeInt,
		"externals_thetvdb": ddl.TypeInt,
		"updated":           ddl.TypeInt,
	},
	"episodes": {
		"id":       ddl.TypeInt,
		"season":   ddl.TypeInt,
		"number":   ddl.TypeInt,
		"airdate":  ddl.TypeDate,
		"airtime":  ddl.TypeTime,
		"airstamp": ddl.TypeTimestamp,
		"runtime":  ddl.TypeFloat,
		"rating":   ddl.TypeFloat,
		"show_id":  ddl.TypeInt,
	},
	"genres": {
		"id":      ddl.TypeInt,
		"show_id": ddl.TypeInt,
		"genre":   ddl.TypeText,
	},
}

// key describes a table's primary key.
type key struct {
	column  string
	autoinc bool
}

var keys = map[string]key{
	"shows":    {column: "id"},
	"episodes": {column: "id", autoinc: true},
	"genres":   {column: "id", autoinc: true},
}

// Hint returns the pinned logical type of table.column.
func Hint(tableName, column string) (string, bool) {
	t, ok := hints[tableName][column]
	return t, ok
}

// IsChild reports whether the table references shows.
func IsChild(tableName string) bool {
	return tableName == "episodes" || tableName == "genres"
}

// Infer derives the destination definition of t.
//
// Known columns take their pinned type; others are typed from their cells
// (all int64 -> int, numbers -> float, bool -> bool, anything else or
// all-null -> text). Every column except the key is nullable. A child table
// carrying show_id gets a cascading foreign key to shows(id). A list cell in
// any column is an error: lists must be flattened before storing.
func Infer(t *table.Table) (ddl.TableDef, error) {
	if t == nil {
		return ddl.TableDef{}, fmt.Errorf("schema: nil table")
	}
	def := ddl.TableDef{FQN: t.Name, Columns: make([]ddl.ColumnDef, 0, len(t.Columns))}
	k, hasKey := keys[t.Name]

	for i, name := range t.Columns {
		typ, ok := Hint(t.Name, name)
		if !ok {
			var err error
			if typ, err = inferColumn(t, i); err != nil {
				return ddl.TableDef{}, err
			}
		} else if err := checkNoLists(t, i); err != nil {
			return ddl.TableDef{}, err
		}
		col := ddl.ColumnDef{Name: name, Type: typ, Nullable: true}
		if hasKey && name == k.column {
			col.Nullable = false
			col.PrimaryKey = true
			col.AutoIncrement = k.autoinc
		}
		def.Columns = append(def.Columns, col)
	}

	if IsChild(t.Name) && t.Has(ChildKey) {
		def.ForeignKeys = []ddl.ForeignKey{{
			Column:    ChildKey,
			RefTable:  ParentTable,
			RefColumn: ParentKey,
			OnDelete:  "CASCADE",
		}}
	}
	return def, nil
}

func inferColumn(t *table.Table, i int) (string, error) {
	var ints, floats, bools, other int
	for _, r := range t.Rows {
		switch r[i].(type) {
		case nil:
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		case []string:
			return "", fmt.Errorf("schema: %s.%s holds a list; flatten it before storing", t.Name, t.Columns[i])
		default:
			other++
		}
	}
	switch {
	case other > 0:
		return ddl.TypeText, nil
	case bools > 0 && ints+floats == 0:
		return ddl.TypeBool, nil
	case bools > 0:
		return ddl.TypeText, nil
	case floats > 0:
		return ddl.TypeFloat, nil
	case ints > 0:
		return ddl.TypeInt, nil
	default:
		return ddl.TypeText, nil
	}
}

func checkNoLists(t *table.Table, i int) error {
	for _, r := range t.Rows {
		if _, ok := r[i].([]string); ok {
			return fmt.Errorf("schema: %s.%s holds a list; flatten it before storing", t.Name, t.Columns[i])
		}
	}
	return nil
}
