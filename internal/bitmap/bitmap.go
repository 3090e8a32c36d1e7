// Package bitmap provides a compact bitset over row positions. The columnar
// table codec stores one Bitmap per column marking which rows hold a value,
// so absent cells survive a round trip without a sentinel value.
package bitmap

import "fmt"

// Bitmap is a fixed-size bitset backed by 64-bit words.
type Bitmap struct {
	n    int
	data []uint64
}

// New allocates a bitmap with room for positions [0, n). If n <= 0 the
// bitmap is empty and every Add is ignored.
func New(n int) *Bitmap {
	if n <= 0 {
		return &Bitmap{}
	}
	return &Bitmap{n: n, data: make([]uint64, (n+63)/64)}
}

// FromWords rebuilds a bitmap of size n from its serialized words.
func FromWords(words []uint64, n int) (*Bitmap, error) {
	if n < 0 {
		return nil, fmt.Errorf("bitmap: negative size %d", n)
	}
	if want := (n + 63) / 64; len(words) != want {
		return nil, fmt.Errorf("bitmap: %d words for %d bits, want %d", len(words), n, want)
	}
	data := make([]uint64, len(words))
	copy(data, words)
	return &Bitmap{n: n, data: data}, nil
}

// Len returns the number of addressable positions.
func (b *Bitmap) Len() int { return b.n }

// Add sets position i. Out-of-range positions are ignored.
func (b *Bitmap) Add(i int) {
	if i < 0 || i >= b.n {
		return
	}
	b.data[i/64] |= 1 << uint(i%64)
}

// Has reports whether position i is set.
func (b *Bitmap) Has(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.data[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of set positions.
func (b *Bitmap) Count() int {
	c := 0
	for _, w := range b.data {
		for w != 0 {
			w &= w - 1
			c++
		}
	}
	return c
}

// Words returns a copy of the backing words for serialization.
func (b *Bitmap) Words() []uint64 {
	out := make([]uint64, len(b.data))
	copy(out, b.data)
	return out
}
