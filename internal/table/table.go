// Package table holds the in-memory tables exchanged between pipeline
// stages. A Table is a named, ordered list of columns plus rows of cells
// aligned to those columns.
//
// Cell conventions:
//   - nil      absent ("not provided by the source")
//   - int64    integers and ids
//   - float64  runtimes, ratings, weights
//   - string   text, dates and times as provided ("" is a value, not absent)
//   - []string multi-valued attributes (genres, schedule days); an empty
//     slice is a provided-empty value
//   - bool     flags
package table

import (
	"encoding/json"
	"fmt"
)

// Row is a slice of cells aligned to Table.Columns.
type Row []any

// Table is a named set of rows.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row

	index map[string]int
}

// New returns an empty table with the given columns.
func New(name string, columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Name: name, Columns: cols}
}

// Append adds a row. The row length must match the column count.
func (t *Table) Append(r Row) error {
	if len(r) != len(t.Columns) {
		return fmt.Errorf("table %s: row length %d != columns length %d", t.Name, len(r), len(t.Columns))
	}
	t.Rows = append(t.Rows, r)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	if t.index == nil || len(t.index) != len(t.Columns) {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Has reports whether col exists.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Value returns the cell at row i, column col. ok is false when the column
// does not exist.
func (t *Table) Value(i int, col string) (v any, ok bool) {
	j := t.Index(col)
	if j < 0 {
		return nil, false
	}
	return t.Rows[i][j], true
}

// Column returns a copy of all cells of col, or nil when it does not exist.
func (t *Table) Column(col string) []any {
	j := t.Index(col)
	if j < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out
}

// Drop returns a new table without the named columns. Columns that do not
// exist are ignored, so dropping is idempotent. The receiver is unchanged.
func (t *Table) Drop(cols ...string) *Table {
	drop := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		drop[c] = struct{}{}
	}
	keep := make([]int, 0, len(t.Columns))
	names := make([]string, 0, len(t.Columns))
	for i, c := range t.Columns {
		if _, ok := drop[c]; ok {
			continue
		}
		keep = append(keep, i)
		names = append(names, c)
	}

	out := &Table{Name: t.Name, Columns: names, Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		nr := make(Row, len(keep))
		for k, j := range keep {
			nr[k] = r[j]
		}
		out.Rows[i] = nr
	}
	return out
}

// Clone returns a deep copy of the table. List cells are copied too.
func (t *Table) Clone() *Table {
	out := &Table{Name: t.Name, Columns: append([]string(nil), t.Columns...), Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		nr := make(Row, len(r))
		for j, v := range r {
			if l, ok := v.([]string); ok {
				v = append([]string{}, l...)
			}
			nr[j] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// Rename returns a shallow copy of the table with a different name.
func (t *Table) Rename(name string) *Table {
	return &Table{Name: name, Columns: t.Columns, Rows: t.Rows}
}

// FlattenLists returns a copy of the table where every []string cell is
// replaced by its JSON array text, leaving no multi-valued cells.
func (t *Table) FlattenLists() (*Table, error) {
	out := t.Clone()
	for i, r := range out.Rows {
		for j, v := range r {
			l, ok := v.([]string)
			if !ok {
				continue
			}
			s, err := EncodeList(l)
			if err != nil {
				return nil, fmt.Errorf("table %s: row %d column %s: %w", t.Name, i, t.Columns[j], err)
			}
			r[j] = s
		}
	}
	return out, nil
}

// EncodeList renders a list cell as JSON array text. A nil slice renders as
// "[]" since list cells are never nil (nil is the absent marker).
func EncodeList(l []string) (string, error) {
	if l == nil {
		l = []string{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
