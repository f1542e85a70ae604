package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	var wg sync.WaitGroup
	for _, r := range chunks(items, runtime.NumCPU()) {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(r[0], r[1])
	}

	// Wait for all workers to finish processing
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		// Sequential processing when below threshold
		fn(0, items)
		return
	}

	// Parallel processing when above threshold
	Parallelize(items, fn)
}

// ForEachChunk is ParallelizeWithThreshold for work that can fail. The first
// error cancels the context handed to the remaining chunks and is returned.
// Chunks that have not started yet are skipped once ctx is done.
func ForEachChunk(ctx context.Context, items, threshold int, fn func(ctx context.Context, start, end int) error) error {
	if items <= 0 {
		return ctx.Err()
	}
	if items <= threshold {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, 0, items)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range chunks(items, runtime.NumCPU()) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, r[0], r[1])
		})
	}
	return g.Wait()
}

// chunks splits [0, items) into at most workers contiguous ranges of
// near-equal size.
func chunks(items, workers int) [][2]int {
	// No need for more workers than items
	workers = max(1, min(workers, items))

	// Calculate the number of items each worker handles (ceiling division)
	chunkSize := (items + workers - 1) / workers

	out := make([][2]int, 0, workers)
	for start := 0; start < items; start += chunkSize {
		out = append(out, [2]int{start, min(start+chunkSize, items)})
	}
	return out
}
