package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/jmylchreest/jobsift/internal/constants"
)

// BatchOptions controls how a batch of fetches is paced.
type BatchOptions struct {
	// BatchSize is how many fetches run concurrently in one slice.
	BatchSize int

	// DelayBetweenRequests staggers goroutine starts within a slice.
	DelayBetweenRequests time.Duration

	// BatchPause is the sleep between slices.
	BatchPause time.Duration

	// OnProgress, when set, is called after each item completes with the
	// number done so far and the total.
	OnProgress func(done, total int)
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = constants.DefaultBatchSize
	}
	if o.BatchPause == 0 {
		o.BatchPause = constants.DefaultBatchPause
	}
	return o
}

// BatchFetch runs fetchFn over items in slices of BatchSize. Items within a
// slice run concurrently and one failure never aborts its siblings. The
// returned slice has one result per input, in input order.
func BatchFetch[T any](ctx context.Context, items []string, fetchFn func(ctx context.Context, item string) T, opts BatchOptions) []T {
	opts = opts.withDefaults()
	results := make([]T, len(items))
	if len(items) == 0 {
		return results
	}

	var done int
	var mu sync.Mutex

	for start := 0; start < len(items); start += opts.BatchSize {
		end := start + opts.BatchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if opts.DelayBetweenRequests > 0 && i > start {
				select {
				case <-ctx.Done():
				case <-time.After(opts.DelayBetweenRequests):
				}
			}

			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx] = fetchFn(ctx, items[idx])

				if opts.OnProgress != nil {
					mu.Lock()
					done++
					opts.OnProgress(done, len(items))
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
		if end < len(items) {
			select {
			case <-ctx.Done():
			case <-time.After(opts.BatchPause):
			}
		}
	}

	return results
}
