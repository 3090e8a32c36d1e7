package storage

import "fmt"

// SchemaError reports that a destination table could not be created or
// swapped into place. Nothing from the run is visible when it is returned.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("storage: schema %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// LoadError reports that writing a table failed. The remaining tables are
// not loaded and the previous contents stay in place.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage: load: %v", e.Err)
	}
	return fmt.Sprintf("storage: load %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
