// Package file implements local filesystem sources: single files and
// directories of raw schedule dumps.
package file

import (
	"context"
	"io"
	"os"

	"tvetl/internal/datasource"
)

// Local opens one file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local source bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A canceled context is reported without
// touching the filesystem. Filesystem errors come back as
// *datasource.UnavailableError and still match errors.Is(err, os.ErrNotExist).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, &datasource.UnavailableError{Path: l.path, Err: err}
	}
	return f, nil
}

var _ datasource.Source = (*Local)(nil)
