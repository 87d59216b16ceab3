package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longeval/longeval/internal/models"
)

type nopTask struct{}

func (nopTask) GeneratePrompt(string, int) (string, map[string]any, error) {
	return "prompt", nil, nil
}

func (nopTask) Evaluate(string, *models.Record) (map[string]any, error) {
	return map[string]any{"score": 1.0}, nil
}

func nopConstructor(map[string]any) (Task, error) { return nopTask{}, nil }

func TestRegistry_CreateAndMetrics(t *testing.T) {
	r := NewRegistry()
	r.Register("CUSTOM", []string{"score"}, nopConstructor)

	task, err := r.Create("CUSTOM", nil)
	require.NoError(t, err)
	assert.NotNil(t, task)

	metrics, ok := r.RegisteredMetrics("CUSTOM")
	require.True(t, ok)
	assert.Equal(t, []string{"score"}, metrics)

	_, ok = r.RegisteredMetrics("UNKNOWN")
	assert.False(t, ok)
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry()
	r.Register("CUSTOM", []string{"score"}, nopConstructor)

	_, err := r.Create("MISSING", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task type")
	assert.Contains(t, err.Error(), "CUSTOM")
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("CUSTOM", []string{"score"}, nopConstructor)

	assert.Panics(t, func() {
		r.Register("CUSTOM", []string{"score"}, nopConstructor)
	})
	assert.Panics(t, func() {
		r.Register("NO_METRICS", nil, nopConstructor)
	})
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t, []string{TaskGenKVDict, TaskParagraphOrdering}, r.Names())

	metrics, ok := r.RegisteredMetrics(TaskGenKVDict)
	require.True(t, ok)
	assert.Contains(t, metrics, "total_score")
}

func TestTaskNameFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"GEN_KV_DICT", "GEN_KV_DICT"},
		{"GEN_KV_DICT/short", "GEN_KV_DICT"},
		{"PARAGRAPH_ORDERING/4k/news", "PARAGRAPH_ORDERING"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TaskNameFromPath(tt.path))
	}
}

func TestNewRunner_UsesPathWhenNameEmpty(t *testing.T) {
	r := NewRegistry()
	r.Register("CUSTOM", []string{"score"}, nopConstructor)

	runner, err := NewRunner(r, models.TaskConfig{TaskPath: "CUSTOM/variant"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM", runner.Config().TaskName)
	assert.Equal(t, "CUSTOM/variant", runner.Config().TaskPath)

	_, err = NewRunner(r, models.TaskConfig{TaskPath: "NOPE/variant"}, nil)
	require.Error(t, err)
}
