// Package pipeline drives records through the generate, infer, evaluate
// and analyze stages with crash-safe resume. Completed items are appended
// to a per-stage log as they finish; a clean stage run folds the log back
// into the record store with an atomic replace.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/longeval/longeval/internal/models"
	"github.com/longeval/longeval/internal/store"
)

// ErrNoInput reports that neither the record store nor a stage log exists,
// so a stage has nothing to work from.
var ErrNoInput = errors.New("no input data found")

// stageKind selects the per-stage output field, validity predicate and
// retry policy.
type stageKind int

const (
	stageInfer stageKind = iota
	stageEval
)

func (s stageKind) String() string {
	if s == stageEval {
		return "evaluation"
	}
	return "inference"
}

// stageState is the reconstructed in-memory view of one stage: every known
// record keyed by sample_id and the subset still requiring processing.
type stageState struct {
	items   map[string]*models.Record
	pending []*models.Record
	done    int
}

// loadStage replays the record store and then the stage log into a map,
// with log entries fully overwriting store entries for the same sample_id,
// and classifies which records the stage still has to process.
//
// retryErrors controls whether records carrying an error-marked result for
// this stage are re-queued.
func loadStage(storePath string, log *store.StageLog, stage stageKind, retryErrors bool) (*stageState, error) {
	items := map[string]*models.Record{}
	done := map[string]bool{}

	replay := func(recs []*models.Record) {
		for _, rec := range recs {
			if rec.SampleID == "" {
				continue
			}
			items[rec.SampleID] = rec
			// A later entry with an invalid result retracts a previously
			// recorded validity for the same id (a retry that failed after
			// an earlier logged success).
			if stageDone(rec, stage) {
				done[rec.SampleID] = true
			} else {
				delete(done, rec.SampleID)
			}
		}
	}

	storeExists := true
	storeRecs, err := store.ReadRecords(storePath)
	switch {
	case err == nil:
		replay(storeRecs)
	case errors.Is(err, os.ErrNotExist):
		storeExists = false
		if stage == stageEval {
			return nil, fmt.Errorf("record store %s not found, run inference first: %w", storePath, ErrNoInput)
		}
		fmt.Printf("Record store %s not found.\n", storePath)
	default:
		return nil, err
	}

	if log.Exists() {
		fmt.Printf("Reading %s log: %s\n", stage, log.Path())
		logRecs, err := store.ReadRecords(log.Path())
		if err != nil {
			return nil, err
		}
		replay(logRecs)
	}

	if len(items) == 0 && !storeExists {
		return nil, fmt.Errorf("neither %s nor a stage log exists: %w", storePath, ErrNoInput)
	}

	state := &stageState{items: items, done: len(done)}
	for id, rec := range items {
		if done[id] {
			continue
		}
		if !needsProcessing(rec, stage, retryErrors) {
			continue
		}
		if retryErrors && stageFailed(rec, stage) {
			fmt.Printf("Scheduling %s retry for item %s\n", stage, id)
		}
		state.pending = append(state.pending, rec)
	}
	sort.Slice(state.pending, func(i, j int) bool {
		return state.pending[i].SampleID < state.pending[j].SampleID
	})
	return state, nil
}

// stageDone reports whether the record holds a valid result for the stage.
func stageDone(rec *models.Record, stage stageKind) bool {
	if stage == stageEval {
		return rec.HasValidEvaluation()
	}
	return rec.HasValidAnswer()
}

// stageFailed reports whether the record holds an error-marked result for
// the stage.
func stageFailed(rec *models.Record, stage stageKind) bool {
	if stage == stageEval {
		return rec.EvaluationFailed()
	}
	return rec.AnswerFailed()
}

// needsProcessing applies the stage's classification rule to a record that
// is not validly done.
func needsProcessing(rec *models.Record, stage stageKind, retryErrors bool) bool {
	if stageFailed(rec, stage) && !retryErrors {
		return false
	}
	if stage == stageEval {
		// Evaluation needs a validly answered predecessor.
		return rec.HasValidAnswer()
	}
	// Inference never runs when the prompt itself failed to generate.
	return !rec.PromptFailed()
}
