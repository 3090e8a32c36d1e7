// Package nullable provides an explicit optional value type for fields that a
// source may omit. A Value distinguishes "not provided" (Valid == false) from
// "provided", including provided-but-empty values such as "" or an empty list.
package nullable

import (
	"bytes"
	"encoding/json"
)

// Value holds an optional T. The zero Value is absent.
type Value[T any] struct {
	V     T
	Valid bool
}

// Of returns a present Value holding v.
func Of[T any](v T) Value[T] { return Value[T]{V: v, Valid: true} }

// Null returns an absent Value.
func Null[T any]() Value[T] { return Value[T]{} }

// Get returns the held value and whether it is present.
func (v Value[T]) Get() (T, bool) { return v.V, v.Valid }

// Or returns the held value, or def when absent.
func (v Value[T]) Or(def T) T {
	if !v.Valid {
		return def
	}
	return v.V
}

// Any returns the held value as an interface, or nil when absent. Table
// cells use nil as the absent marker, so this is the bridge from typed
// records into tables.
func (v Value[T]) Any() any {
	if !v.Valid {
		return nil
	}
	return v.V
}

// UnmarshalJSON decodes JSON null as absent and anything else into V.
// A key missing from the enclosing object never reaches this method, so it
// stays absent as well.
func (v *Value[T]) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		var zero T
		v.V, v.Valid = zero, false
		return nil
	}
	if err := json.Unmarshal(b, &v.V); err != nil {
		return err
	}
	v.Valid = true
	return nil
}

// MarshalJSON encodes an absent Value as null.
func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

func isNull(b []byte) bool {
	return len(b) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
