package pipeline

import (
	"fmt"
	"os"
	"sort"

	"github.com/longeval/longeval/internal/models"
	"github.com/longeval/longeval/internal/store"
)

// mergeLog folds the in-memory stage state into the record store with an
// atomic rewrite, then removes the stage log. If the rewrite fails the log
// is left untouched, since its presence is the signal that a merge is still
// pending, and the error is returned. Merging is idempotent: re-merging
// after the log is gone rewrites identical content.
func mergeLog(items map[string]*models.Record, storePath string, log *store.StageLog) error {
	if len(items) == 0 {
		fmt.Println("No items in memory to merge.")
		return nil
	}

	records := make([]*models.Record, 0, len(items))
	for _, rec := range items {
		records = append(records, rec)
	}
	// Stable order so repeated merges produce byte-identical stores.
	sort.Slice(records, func(i, j int) bool {
		return records[i].SampleID < records[j].SampleID
	})

	if err := store.SafeRewrite(storePath, records); err != nil {
		return fmt.Errorf("merging into %s (stage log %s preserved): %w", storePath, log.Path(), err)
	}
	fmt.Printf("Record store updated: %s\n", storePath)

	if log.Exists() {
		if err := log.Remove(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not remove stage log %s: %v\n", log.Path(), err)
		} else {
			fmt.Printf("Stage log removed: %s\n", log.Path())
		}
	}
	return nil
}
