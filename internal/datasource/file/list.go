package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tvetl/internal/datasource"
)

// ListFiles returns the regular files in dir whose base name matches the
// glob pattern, sorted lexically. Schedule dumps are named by date
// (tv_shows_2024-01-01.json), so lexical order is chronological order.
//
// A missing or unreadable directory is a *datasource.UnavailableError. An
// existing directory with no matches returns an empty slice.
func ListFiles(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("file: bad pattern %q: %w", pattern, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &datasource.UnavailableError{Path: dir, Err: err}
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); !ok {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
