package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/longeval/longeval/internal/models"
	"github.com/longeval/longeval/internal/store"
)

// processFunc runs one record to completion. Implementations convert every
// failure into an error-marked field on the returned record; they never
// abort the run.
type processFunc func(ctx context.Context, rec *models.Record) *models.Record

// runStage executes the pending records on a bounded worker pool and drains
// completions in a single loop: each finished record is appended to the
// stage log (the crash-recovery checkpoint) and written into the shared
// map. Only this drain loop touches the map.
//
// When ctx is cancelled, dispatch stops but in-flight work drains so its
// results still reach the log. Returns the completion count and whether
// the stage ran to completion without interruption.
func runStage(ctx context.Context, pending []*models.Record, workers int, process processFunc, log *store.StageLog, items map[string]*models.Record) (int, bool) {
	if workers < 1 {
		workers = 1
	}
	results := make(chan *models.Record, len(pending))
	sem := make(chan struct{}, workers)

	go func() {
		defer close(results)
		var wg sync.WaitGroup
		for _, rec := range pending {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(rec *models.Record) {
				defer wg.Done()
				defer func() { <-sem }()
				results <- process(ctx, rec.Clone())
			}(rec)
		}
		wg.Wait()
	}()

	completed := 0
	for rec := range results {
		if err := log.Append(rec); err != nil {
			// The result is lost for this attempt; the item will be
			// re-queued on the next invocation.
			fmt.Fprintf(os.Stderr, "[Error] failed to append item %s to %s: %v\n", rec.SampleID, log.Path(), err)
		}
		items[rec.SampleID] = rec
		completed++
		fmt.Printf("  [%d/%d] %s\n", completed, len(pending), rec.SampleID)
	}

	ok := completed == len(pending) && ctx.Err() == nil
	return completed, ok
}
