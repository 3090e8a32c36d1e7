package tablefile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"tvetl/internal/datasource/file"
	"tvetl/internal/table"
)

// Format selects the file encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatColumnar Format = "columnar"
)

// Ext returns the file extension for f.
func (f Format) Ext() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".tvcol"
}

// Path returns where a table named name is stored in dir.
func (f Format) Path(dir, name string) string {
	return filepath.Join(dir, name+f.Ext())
}

// Write encodes t to w.
func (f Format) Write(w io.Writer, t *table.Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatColumnar:
		return WriteColumnar(w, t)
	}
	return fmt.Errorf("tablefile: unknown format %q", f)
}

// Read decodes a table named name from r.
func (f Format) Read(r io.Reader, name string) (*table.Table, error) {
	switch f {
	case FormatCSV:
		return ReadCSV(r, name)
	case FormatColumnar:
		return ReadColumnar(r, name)
	}
	return nil, fmt.Errorf("tablefile: unknown format %q", f)
}

// Save writes each table to dir as <name><ext>. Files are written to a
// temporary name and renamed into place, so a reader never sees a partial
// file.
func Save(dir string, f Format, tables ...*table.Table) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("tablefile: create %s: %w", dir, err)
	}
	for _, t := range tables {
		if err := saveOne(dir, f, t); err != nil {
			return err
		}
	}
	return nil
}

func saveOne(dir string, f Format, t *table.Table) (err error) {
	dst := f.Path(dir, t.Name)
	tmp, err := os.CreateTemp(dir, "."+t.Name+"-*"+f.Ext())
	if err != nil {
		return fmt.Errorf("tablefile: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = f.Write(bw, t); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("tablefile: %s: %w", dst, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("tablefile: %s: %w", dst, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("tablefile: %s: %w", dst, err)
	}
	log.Printf("tablefile: wrote %s rows=%d cols=%d", dst, t.Len(), len(t.Columns))
	return nil
}

// Load reads the named tables from dir in order. A file that is missing or
// cannot be opened is a *datasource.UnavailableError; a file that opens but
// does not decode is a plain error.
func Load(ctx context.Context, dir string, f Format, names ...string) ([]*table.Table, error) {
	out := make([]*table.Table, 0, len(names))
	for _, name := range names {
		p := f.Path(dir, name)
		rc, err := file.NewLocal(p).Open(ctx)
		if err != nil {
			return nil, err
		}
		t, err := f.Read(bufio.NewReader(rc), name)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w (file %s)", err, p)
		}
		out = append(out, t)
	}
	return out, nil
}
