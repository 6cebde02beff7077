// This file implements the partition loader: it fans fact rows out by
// partition date and replaces each partition through the Store, a bounded
// number of partitions at a time. On every successful partition a concise
// progress line is emitted with running totals and instantaneous rows/sec.
package storage

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"retailfact/internal/schema"
)

// PartitionResult reports the outcome for one date partition. Err is non-nil
// when that partition's write failed; other partitions are unaffected.
type PartitionResult struct {
	Date string
	Rows int64
	Err  error
}

// GroupByPartition buckets fact rows by purchase date.
func GroupByPartition(rows []schema.FactRow) map[string][]schema.FactRow {
	parts := make(map[string][]schema.FactRow)
	for _, r := range rows {
		parts[r.PurchaseDate] = append(parts[r.PurchaseDate], r)
	}
	return parts
}

// WritePartitions replaces every partition in parts, running up to 'workers'
// partition writes concurrently. Each write holds the partition lock for its
// duration; a conflicting concurrent writer surfaces as ErrWriteConflict in
// that partition's result. The returned slice is ordered by date and always
// has one entry per input partition.
func WritePartitions(
	ctx context.Context,
	store Store,
	locks *PartitionLocks,
	parts map[string][]schema.FactRow,
	workers int,
) []PartitionResult {
	if workers <= 0 {
		workers = 1
	}

	dates := make([]string, 0, len(parts))
	for d := range parts {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var (
		mu      sync.Mutex
		results = make([]PartitionResult, 0, len(dates))
		total   atomic.Int64
		start   = time.Now()
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, date := range dates {
		g.Go(func() error {
			res := writeOne(ctx, store, locks, date, parts[date])
			if res.Err == nil {
				running := total.Add(res.Rows)
				elapsed := time.Since(start)
				rps := float64(0)
				if elapsed > 0 {
					rps = float64(running) / elapsed.Seconds()
				}
				log.Printf("loader: partition=%s rows=%d total=%d rps=%.0f elapsed=%s",
					date, res.Rows, running, rps, elapsed.Truncate(time.Millisecond))
			} else {
				log.Printf("loader: partition=%s failed: %v", date, res.Err)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			// Partition failures are per-partition results, not group errors;
			// sibling partitions keep writing.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Date < results[j].Date })
	return results
}

func writeOne(ctx context.Context, store Store, locks *PartitionLocks, date string, rows []schema.FactRow) PartitionResult {
	if err := locks.Acquire(date); err != nil {
		return PartitionResult{Date: date, Err: err}
	}
	defer locks.Release(date)

	n, err := store.ReplacePartition(ctx, date, rows)
	return PartitionResult{Date: date, Rows: n, Err: err}
}
