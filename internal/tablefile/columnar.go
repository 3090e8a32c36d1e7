package tablefile

import (
	"encoding/gob"
	"fmt"
	"io"

	"tvetl/internal/bitmap"
	"tvetl/internal/table"
)

const (
	columnarMagic   = "TVCOL"
	columnarVersion = 1
)

// columnarFile is the gob payload. Each column stores a validity bitmap and
// one full-length typed slice; cells whose bit is unset are absent and their
// slot holds the zero value.
type columnarFile struct {
	Magic   string
	Version int
	Name    string
	Rows    int
	Columns []columnarColumn
}

type columnarColumn struct {
	Name    string
	Kind    Kind
	Valid   []uint64
	Ints    []int64
	Floats  []float64
	Strings []string
	Bools   []bool
	Lists   [][]string
}

// WriteColumnar writes t in the columnar encoding.
func WriteColumnar(w io.Writer, t *table.Table) error {
	kinds, err := columnKinds(t)
	if err != nil {
		return err
	}

	f := columnarFile{
		Magic:   columnarMagic,
		Version: columnarVersion,
		Name:    t.Name,
		Rows:    t.Len(),
		Columns: make([]columnarColumn, len(t.Columns)),
	}
	n := t.Len()
	for ci, name := range t.Columns {
		k := kinds[ci]
		col := columnarColumn{Name: name, Kind: k}
		valid := bitmap.New(n)

		switch k {
		case KindInt:
			col.Ints = make([]int64, n)
		case KindFloat:
			col.Floats = make([]float64, n)
		case KindString, KindMixed:
			col.Strings = make([]string, n)
		case KindBool:
			col.Bools = make([]bool, n)
		case KindList:
			col.Lists = make([][]string, n)
		}

		for ri, r := range t.Rows {
			v := r[ci]
			if v == nil {
				continue
			}
			valid.Add(ri)
			switch k {
			case KindInt:
				col.Ints[ri] = v.(int64)
			case KindFloat:
				col.Floats[ri] = v.(float64)
			case KindString:
				col.Strings[ri] = v.(string)
			case KindBool:
				col.Bools[ri] = v.(bool)
			case KindList:
				col.Lists[ri] = v.([]string)
			case KindMixed:
				s, err := formatValue(KindMixed, v)
				if err != nil {
					return fmt.Errorf("tablefile: %s: row %d column %s: %w", t.Name, ri, name, err)
				}
				col.Strings[ri] = s
			}
		}
		col.Valid = valid.Words()
		f.Columns[ci] = col
	}

	if err := gob.NewEncoder(w).Encode(&f); err != nil {
		return fmt.Errorf("tablefile: %s: encode: %w", t.Name, err)
	}
	return nil
}

// ReadColumnar reads a table written by WriteColumnar. The stored table name
// is replaced by name.
func ReadColumnar(r io.Reader, name string) (*table.Table, error) {
	var f columnarFile
	if err := gob.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("tablefile: %s: decode: %w", name, err)
	}
	if f.Magic != columnarMagic || f.Version != columnarVersion {
		return nil, fmt.Errorf("tablefile: %s: not a columnar table file (magic=%q version=%d)", name, f.Magic, f.Version)
	}

	cols := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		cols[i] = c.Name
	}
	t := table.New(name, cols...)
	t.Rows = make([]table.Row, f.Rows)
	for ri := range t.Rows {
		t.Rows[ri] = make(table.Row, len(cols))
	}

	for ci, c := range f.Columns {
		valid, err := bitmap.FromWords(c.Valid, f.Rows)
		if err != nil {
			return nil, fmt.Errorf("tablefile: %s: column %s: %w", name, c.Name, err)
		}
		if err := checkLen(c, f.Rows); err != nil {
			return nil, fmt.Errorf("tablefile: %s: column %s: %w", name, c.Name, err)
		}
		for ri := 0; ri < f.Rows; ri++ {
			if !valid.Has(ri) {
				continue
			}
			var v any
			switch c.Kind {
			case KindInt:
				v = c.Ints[ri]
			case KindFloat:
				v = c.Floats[ri]
			case KindString:
				v = c.Strings[ri]
			case KindBool:
				v = c.Bools[ri]
			case KindList:
				l := c.Lists[ri]
				if l == nil {
					// gob does not distinguish an empty inner slice from nil.
					l = []string{}
				}
				v = l
			case KindMixed:
				if v, err = parseValue(KindMixed, c.Strings[ri]); err != nil {
					return nil, fmt.Errorf("tablefile: %s: row %d column %s: %w", name, ri, c.Name, err)
				}
			default:
				return nil, fmt.Errorf("tablefile: %s: column %s: unexpected kind %q with values", name, c.Name, c.Kind)
			}
			t.Rows[ri][ci] = v
		}
	}
	return t, nil
}

func checkLen(c columnarColumn, rows int) error {
	var got int
	switch c.Kind {
	case KindNull:
		return nil
	case KindInt:
		got = len(c.Ints)
	case KindFloat:
		got = len(c.Floats)
	case KindString, KindMixed:
		got = len(c.Strings)
	case KindBool:
		got = len(c.Bools)
	case KindList:
		got = len(c.Lists)
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	if rows > 0 && got != rows {
		return fmt.Errorf("%d values for %d rows", got, rows)
	}
	return nil
}
