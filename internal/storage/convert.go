package storage

import (
	"fmt"

	"tvetl/internal/ddl"
	"tvetl/internal/schema"
)

// ConvertFn maps one cell bound for column c to a driver value.
type ConvertFn func(c ddl.ColumnDef, v any) (any, error)

// ConvertRows applies fn to every cell of l. The input rows are not
// modified. A nil fn returns l.Rows unchanged.
func ConvertRows(l Load, fn ConvertFn) ([][]any, error) {
	if fn == nil {
		return l.Rows, nil
	}
	out := make([][]any, len(l.Rows))
	for i, r := range l.Rows {
		row := make([]any, len(r))
		for j, v := range r {
			c := l.Def.Columns[j]
			cv, err := fn(c, v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c.Name, err)
			}
			row[j] = cv
		}
		out[i] = row
	}
	return out, nil
}

// ScanValue normalizes a value read back from a driver: byte slices become
// strings, everything else passes through.
func ScanValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Coerce maps a cell to the Go value a typed SQL column expects: temporal
// text is parsed ("" becomes NULL), integers bound for float columns become
// float64, and non-text values bound for text columns are formatted.
func Coerce(c ddl.ColumnDef, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch {
	case schema.IsTemporal(c.Type):
		return schema.TemporalValue(c.Type, v)
	case c.Type == ddl.TypeFloat:
		if i, ok := v.(int64); ok {
			return float64(i), nil
		}
	case c.Type == ddl.TypeText:
		if _, ok := v.(string); !ok {
			return fmt.Sprint(v), nil
		}
	}
	return v, nil
}

// SplitAutoIncrement separates rows that carry a value for the table's
// auto-increment key from rows that leave it to the store. The second set has
// the key column removed, with cols listing the remaining columns. key is -1
// when the table has no auto-increment key, in which case every row is
// returned in explicit.
func SplitAutoIncrement(def ddl.TableDef, rows [][]any) (key int, explicit, implicit [][]any, cols []string) {
	key = -1
	for i, c := range def.Columns {
		if c.AutoIncrement && c.PrimaryKey {
			key = i
			break
		}
	}
	if key < 0 {
		return key, rows, nil, nil
	}
	for _, r := range rows {
		if r[key] != nil {
			explicit = append(explicit, r)
			continue
		}
		rest := make([]any, 0, len(r)-1)
		rest = append(rest, r[:key]...)
		rest = append(rest, r[key+1:]...)
		implicit = append(implicit, rest)
	}
	names := def.ColumnNames()
	cols = append(append([]string{}, names[:key]...), names[key+1:]...)
	return key, explicit, implicit, cols
}
