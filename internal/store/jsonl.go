// Package store provides the durable file primitives of the pipeline: the
// JSON Lines record store, the per-stage append-only logs, and the atomic
// report writer. The record store is the single source of truth between
// stages; stage logs exist only while a stage is in flight.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/longeval/longeval/internal/models"
)

// ReadRecords reads a JSON Lines file into a slice of records. Blank lines
// are ignored and malformed lines are skipped with a warning; only I/O
// failures are returned as errors.
func ReadRecords(path string) ([]*models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []*models.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec models.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping invalid JSON in %s line %d: %v\n", path, lineNum, err)
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

// SafeRewrite replaces path with the given records using a temporary file
// and an atomic rename. On any failure the temporary file is removed and
// the target is left untouched.
func SafeRewrite(path string, records []*models.Record) error {
	tmp := path + ".tmp_rewrite"
	if err := writeJSONLines(tmp, records); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func writeJSONLines(path string, records []*models.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("encoding record %s: %w", rec.SampleID, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// WriteJSONReport writes v as a single pretty-printed JSON object using the
// same temp-and-rename discipline as SafeRewrite.
func WriteJSONReport(path string, v any) error {
	tmp := path + ".tmp_rewrite"
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
