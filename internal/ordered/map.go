// Package ordered provides an insertion-ordered associative container.
//
// Map is used where de-duplication must be deterministic: the first value
// stored for a key wins and later PutIfAbsent calls for the same key are
// ignored entirely. Iteration follows first-insertion order.
package ordered

import "iter"

// Map is an insertion-ordered map. The zero value is not usable; use New.
type Map[K comparable, V any] struct {
	keys []K
	vals map[K]V
}

// New returns an empty Map with room for sizeHint entries.
func New[K comparable, V any](sizeHint int) *Map[K, V] {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Map[K, V]{
		keys: make([]K, 0, sizeHint),
		vals: make(map[K]V, sizeHint),
	}
}

// PutIfAbsent stores v under k only if k has not been stored before.
// It reports whether v was stored.
func (m *Map[K, V]) PutIfAbsent(k K, v V) bool {
	if _, ok := m.vals[k]; ok {
		return false
	}
	m.keys = append(m.keys, k)
	m.vals[k] = v
	return true
}

// Has reports whether k is present.
func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.vals[k]
	return ok
}

// Get returns the value stored under k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	v, ok := m.vals[k]
	return v, ok
}

// Len returns the number of keys.
func (m *Map[K, V]) Len() int { return len(m.keys) }

// Keys returns the keys in first-insertion order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Values returns the values in first-insertion order of their keys.
func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.vals[k])
	}
	return out
}

// All iterates key/value pairs in first-insertion order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.vals[k]) {
				return
			}
		}
	}
}
