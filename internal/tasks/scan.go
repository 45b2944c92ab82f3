package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/time/rate"
)

// ScanOpts contains configuration for source scans.
type ScanOpts struct {
	NumWorkers int     // Concurrent workers (default: 3, max: 10)
	RateLimit  float64 // Listings started per second (default: 2)
}

// SourceScanResult reports the listing of a single source.
type SourceScanResult struct {
	SourceID string `json:"source_id"`
	Objects  int    `json:"objects"`
	Bytes    int64  `json:"bytes"`
	Err      error  `json:"-"`
}

// Healthy reports whether the source listed at least one object.
func (r SourceScanResult) Healthy() bool {
	return r.Err == nil && r.Objects > 0
}

// ScanResult contains the results of a source scan in request order.
type ScanResult struct {
	Sources []SourceScanResult
	Healthy int
	Failed  int
}

// Unhealthy returns the IDs of sources that failed or listed nothing, for the skip list.
func (r *ScanResult) Unhealthy() []string {
	var ids []string
	for _, s := range r.Sources {
		if !s.Healthy() {
			ids = append(ids, s.SourceID)
		}
	}
	return ids
}

// ScanSources lists every source with a rate-limited worker pool.
//
// Empty sources are reported with [shared.ErrEmptySource]. Partial failures never abort the scan;
// only cancellation of ctx does.
func ScanSources(ctx context.Context, prog chan<- ProgressUpdate, catalog services.Catalog, ids []string, opts ScanOpts) (*ScanResult, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	type job struct {
		index int
		id    string
	}

	jobs := make(chan job, len(ids))
	results := make(chan struct {
		index int
		res   SourceScanResult
	}, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				results <- struct {
					index int
					res   SourceScanResult
				}{j.index, scanOne(ctx, catalog, j.id)}
			}
		}()
	}

	for i, id := range ids {
		jobs <- job{index: i, id: id}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := &ScanResult{Sources: make([]SourceScanResult, len(ids))}
	completed := 0
	for r := range results {
		completed++
		out.Sources[r.index] = r.res
		if r.res.Healthy() {
			out.Healthy++
		} else {
			out.Failed++
		}
		sendProgress(prog, scannedSourceUpdate(completed, len(ids), r.res))
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func scanOne(ctx context.Context, catalog services.Catalog, id string) SourceScanResult {
	res := SourceScanResult{SourceID: id}
	objects, err := catalog.ListSourceObjects(ctx, id)
	if err != nil {
		res.Err = err
		return res
	}
	res.Objects = len(objects)
	for _, o := range objects {
		res.Bytes += o.Size
	}
	if res.Objects == 0 {
		res.Err = fmt.Errorf("%w: %s", shared.ErrEmptySource, id)
	}
	return res
}
