package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/longeval/longeval/internal/models"
)

// Stage log suffixes relative to the record store path.
const (
	InferLogSuffix = ".infer.log"
	EvalLogSuffix  = ".eval.log"
)

// StageLog is the append-only crash-recovery log for one stage. Each append
// writes a single complete JSON line; the file is opened and closed per
// write so a crash can corrupt at most the final line. A mutex keeps
// concurrent workers from interleaving partial lines.
type StageLog struct {
	mu   sync.Mutex
	path string
}

// NewStageLog returns a stage log at the given path. The file is created
// lazily on first append.
func NewStageLog(path string) *StageLog {
	return &StageLog{path: path}
}

// Path returns the log file path.
func (l *StageLog) Path() string { return l.path }

// Exists reports whether the log file is present on disk. A present log
// means a stage completed items that have not yet been merged.
func (l *StageLog) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Append writes one record as a complete JSON line. The result is durable
// for crash recovery once Append returns nil.
func (l *StageLog) Append(rec *models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.SampleID, err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", l.path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("appending to %s: %w", l.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", l.path, err)
	}
	return nil
}

// Remove deletes the log file. Removing an absent log is a no-op.
func (l *StageLog) Remove() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", l.path, err)
	}
	return nil
}
