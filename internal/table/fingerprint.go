package table

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// Fingerprint returns a content hash over the table's columns and cells in
// row order. Two tables with equal columns and equal cells (including the
// absent/empty distinction) have equal fingerprints.
func Fingerprint(t *Table) uint64 {
	h := xxh3.New()
	var buf [8]byte

	writeLen := func(n int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		_, _ = h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeLen(len(s))
		_, _ = h.Write([]byte(s))
	}

	writeLen(len(t.Columns))
	for _, c := range t.Columns {
		writeStr(c)
	}
	writeLen(len(t.Rows))
	for _, r := range t.Rows {
		for _, v := range r {
			switch x := v.(type) {
			case nil:
				_, _ = h.Write([]byte{0})
			case int64:
				_, _ = h.Write([]byte{'i'})
				binary.LittleEndian.PutUint64(buf[:], uint64(x))
				_, _ = h.Write(buf[:])
			case int:
				_, _ = h.Write([]byte{'i'})
				binary.LittleEndian.PutUint64(buf[:], uint64(int64(x)))
				_, _ = h.Write(buf[:])
			case float64:
				_, _ = h.Write([]byte{'f'})
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
				_, _ = h.Write(buf[:])
			case string:
				_, _ = h.Write([]byte{'s'})
				writeStr(x)
			case []byte:
				_, _ = h.Write([]byte{'b'})
				writeStr(string(x))
			case bool:
				_, _ = h.Write([]byte{'t'})
				writeStr(strconv.FormatBool(x))
			case []string:
				_, _ = h.Write([]byte{'l'})
				writeLen(len(x))
				for _, s := range x {
					writeStr(s)
				}
			case time.Time:
				_, _ = h.Write([]byte{'d'})
				writeStr(x.UTC().Format(time.RFC3339Nano))
			default:
				_, _ = h.Write([]byte{'?'})
				writeStr(fmt.Sprintf("%T:%v", x, x))
			}
		}
	}
	return h.Sum64()
}
