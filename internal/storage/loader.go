package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultBatchSize is used when a backend is configured without one.
const DefaultBatchSize = 500

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to columns) and return the number of rows
// inserted. The function is called repeatedly and should stop promptly when
// ctx is done.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches splits rows into batches of batchSize and calls copyFn for each
// batch in order. It returns the total number of rows reported by copyFn and
// the first error encountered; no batch is attempted after a failure.
//
// Progress is logged on each successful flush.
func LoadBatches(
	ctx context.Context,
	table string,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total       int64
		batches     int64
		start       = time.Now()
		lastFlushTS = start
	)

	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Printf("loader: copy failed table=%s batch=%d after=%d total=%d err=%v", table, batches+1, n, total, err)
			return total, err
		}

		batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		log.Printf(
			"loader: table=%s batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s",
			table,
			batches,
			rps,
			n,
			total,
			now.Sub(start).Truncate(time.Millisecond),
		)
		lastFlushTS = now
	}
	return total, nil
}
