// Package datasource defines where raw bytes come from. Concrete sources
// live in subpackages (file, httpds).
package datasource

import (
	"context"
	"fmt"
	"io"
)

// Source opens a readable stream of raw input.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// UnavailableError reports that an input (a file, a directory, a remote
// window of dates) could not be read. It is fatal to the run and is raised
// before anything is written downstream.
type UnavailableError struct {
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("source unavailable: %s: %v", e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
