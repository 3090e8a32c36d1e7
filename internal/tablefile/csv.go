package tablefile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"tvetl/internal/table"
)

// NullToken marks an absent cell in CSV files. A string value that begins
// with a backslash is written with one extra leading backslash, so the token
// never collides with data.
const NullToken = `\N`

// WriteCSV writes t with a typed header ("name:kind" per column).
func WriteCSV(w io.Writer, t *table.Table) error {
	kinds, err := columnKinds(t)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c + ":" + string(kinds[i])
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("tablefile: %s: write header: %w", t.Name, err)
	}

	rec := make([]string, len(t.Columns))
	for ri, r := range t.Rows {
		for ci, v := range r {
			if v == nil {
				rec[ci] = NullToken
				continue
			}
			s, err := formatValue(kinds[ci], v)
			if err != nil {
				return fmt.Errorf("tablefile: %s: row %d column %s: %w", t.Name, ri, t.Columns[ci], err)
			}
			if kinds[ci] == KindString && strings.HasPrefix(s, `\`) {
				s = `\` + s
			}
			rec[ci] = s
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("tablefile: %s: write row %d: %w", t.Name, ri, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("tablefile: %s: flush: %w", t.Name, err)
	}
	return nil
}

// ReadCSV reads a table written by WriteCSV. Headers without a kind suffix
// are read the way a dataframe export is: an empty field is absent and
// anything else is a string.
func ReadCSV(r io.Reader, name string) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("tablefile: %s: missing header", name)
	}
	if err != nil {
		return nil, fmt.Errorf("tablefile: %s: read header: %w", name, err)
	}

	cols := make([]string, len(header))
	kinds := make([]Kind, len(header))
	for i, h := range header {
		cols[i] = h
		if j := strings.LastIndexByte(h, ':'); j >= 0 && validKind(Kind(h[j+1:])) {
			cols[i], kinds[i] = h[:j], Kind(h[j+1:])
		}
	}
	t := table.New(name, cols...)

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tablefile: %s: %w", name, err)
		}
		row := make(table.Row, len(rec))
		for i, s := range rec {
			v, err := parseCSVField(kinds[i], s)
			if err != nil {
				return nil, fmt.Errorf("tablefile: %s: line %d column %s: %w", name, line, cols[i], err)
			}
			row[i] = v
		}
		if err := t.Append(row); err != nil {
			return nil, fmt.Errorf("tablefile: line %d: %w", line, err)
		}
	}
	return t, nil
}

func parseCSVField(k Kind, s string) (any, error) {
	if k == "" {
		if s == "" {
			return nil, nil
		}
		return s, nil
	}
	if s == NullToken {
		return nil, nil
	}
	if k == KindNull {
		return nil, fmt.Errorf("value %.20q in all-null column", s)
	}
	if k == KindString && strings.HasPrefix(s, `\`) {
		s = s[1:]
	}
	return parseValue(k, s)
}

func columnKinds(t *table.Table) ([]Kind, error) {
	kinds := make([]Kind, len(t.Columns))
	for i, c := range t.Columns {
		k, err := columnKind(t.Column(c))
		if err != nil {
			return nil, fmt.Errorf("tablefile: %s: column %s: %w", t.Name, c, err)
		}
		kinds[i] = k
	}
	return kinds, nil
}
