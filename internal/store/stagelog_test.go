package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/longeval/longeval/internal/models"
)

func TestStageLog_AppendAndRead(t *testing.T) {
	log := NewStageLog(filepath.Join(t.TempDir(), "store.jsonl"+InferLogSuffix))
	assert.False(t, log.Exists())

	require.NoError(t, log.Append(&models.Record{SampleID: "a_0"}))
	require.NoError(t, log.Append(&models.Record{SampleID: "a_1"}))
	assert.True(t, log.Exists())

	records, err := ReadRecords(log.Path())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a_0", records[0].SampleID)
	assert.Equal(t, "a_1", records[1].SampleID)
}

func TestStageLog_ConcurrentAppends(t *testing.T) {
	const n = 50
	log := NewStageLog(filepath.Join(t.TempDir(), "store.jsonl"+EvalLogSuffix))

	var g errgroup.Group
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("a_%d", i)
		g.Go(func() error {
			return log.Append(&models.Record{SampleID: id})
		})
	}
	require.NoError(t, g.Wait())

	// Every line must parse: no interleaved partial writes.
	records, err := ReadRecords(log.Path())
	require.NoError(t, err)
	require.Len(t, records, n)

	seen := map[string]bool{}
	for _, rec := range records {
		seen[rec.SampleID] = true
	}
	assert.Len(t, seen, n)
}

func TestStageLog_Remove(t *testing.T) {
	log := NewStageLog(filepath.Join(t.TempDir(), "store.jsonl"+InferLogSuffix))

	// Removing an absent log is fine.
	require.NoError(t, log.Remove())

	require.NoError(t, log.Append(&models.Record{SampleID: "a_0"}))
	require.NoError(t, log.Remove())
	assert.False(t, log.Exists())
}
