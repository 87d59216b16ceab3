package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longeval/longeval/internal/models"
)

func writeOrderingDataset(t *testing.T, buckets map[string][]orderingDoc) string {
	t.Helper()
	data, err := json.Marshal(buckets)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "ordering.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func orderingFixture(t *testing.T) string {
	return writeOrderingDataset(t, map[string][]orderingDoc{
		"1k": {
			{DocID: "doc-alpha", Segments: []string{"first paragraph", "second paragraph", "third paragraph", "fourth paragraph"}},
			{DocID: "doc-beta", Segments: []string{"opening", "middle", "closing"}},
		},
	})
}

func newOrdering(t *testing.T) Task {
	t.Helper()
	task, err := NewOrderingTask(map[string]any{
		"data_path":   orderingFixture(t),
		"test_length": 1024,
	})
	require.NoError(t, err)
	return task
}

func TestNewOrderingTask_Validation(t *testing.T) {
	path := orderingFixture(t)

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{
		{"missing_data_path", map[string]any{"test_length": 1024}, "data_path"},
		{"bad_test_length", map[string]any{"data_path": path, "test_length": 999}, "test_length"},
		{"missing_bucket", map[string]any{"data_path": path, "test_length": 4096}, "no documents"},
		{"absent_file", map[string]any{"data_path": filepath.Join(t.TempDir(), "nope.json"), "test_length": 1024}, "reading dataset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrderingTask(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewOrderingTask_RejectsEmptyDocuments(t *testing.T) {
	path := writeOrderingDataset(t, map[string][]orderingDoc{
		"1k": {{DocID: "", Segments: []string{"a"}}},
	})
	_, err := NewOrderingTask(map[string]any{"data_path": path, "test_length": 1024})
	require.Error(t, err)
}

func TestOrdering_GeneratePrompt(t *testing.T) {
	task := newOrdering(t)

	prompt, meta, err := task.GeneratePrompt("PARAGRAPH_ORDERING_0", 0)
	require.NoError(t, err)

	original := meta["original"].([]string)
	shuffled := meta["shuffled"].([]string)
	correctOrder := meta["correct_order"].([]int)
	require.Len(t, shuffled, len(original))
	require.Len(t, correctOrder, len(original))

	// correct_order maps each shuffled position back to its original index.
	for i, label := range correctOrder {
		assert.Equal(t, shuffled[i], original[label])
	}

	for i := range shuffled {
		assert.Contains(t, prompt, fmt.Sprintf("[[Segment %d]]\n%s", i, shuffled[i]))
	}

	// Shuffling is keyed by doc_id, so repeated generation is identical.
	prompt2, meta2, err := task.GeneratePrompt("PARAGRAPH_ORDERING_0", 0)
	require.NoError(t, err)
	assert.Equal(t, prompt, prompt2)
	assert.Equal(t, meta, meta2)
}

func TestOrdering_GeneratePromptIndexOutOfRange(t *testing.T) {
	task := newOrdering(t)
	_, _, err := task.GeneratePrompt("PARAGRAPH_ORDERING_9", 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample index 9")
}

// perfectAnswer lists the shuffled segment labels in the order that restores
// the original document.
func perfectAnswer(correctOrder []int) string {
	labelAt := make([]int, len(correctOrder))
	for label, orig := range correctOrder {
		labelAt[orig] = label
	}
	var b strings.Builder
	for _, label := range labelAt {
		fmt.Fprintf(&b, "[[Segment %d]]\ncontent\n", label)
	}
	return b.String()
}

func orderingRecord(meta map[string]any) *models.Record {
	return &models.Record{SampleID: "PARAGRAPH_ORDERING_0", Metadata: meta}
}

func TestOrdering_EvaluatePerfectRestoration(t *testing.T) {
	task := newOrdering(t)
	_, meta, err := task.GeneratePrompt("PARAGRAPH_ORDERING_0", 0)
	require.NoError(t, err)

	result, err := task.Evaluate(perfectAnswer(meta["correct_order"].([]int)), orderingRecord(meta))
	require.NoError(t, err)

	assert.Equal(t, "success", result["status"])
	assert.Equal(t, 1.0, result["kendalls_tau"])
	assert.Equal(t, "doc-alpha", result["doc_id"])
	assert.Empty(t, result["missing_segments"])
}

func TestOrdering_EvaluatePartialRestoration(t *testing.T) {
	task := newOrdering(t)
	meta := map[string]any{
		"doc_id":        "doc-manual",
		"original":      []string{"A", "B", "C", "D"},
		"shuffled":      []string{"C", "A", "D", "B"},
		"correct_order": []int{2, 0, 3, 1},
	}

	// Echoing the shuffled order back restores nothing: tau of the identity
	// against [2 0 3 1] is 0, which normalizes to 0.5.
	answer := "[[Segment 0]]\nc\n[[Segment 1]]\nc\n[[Segment 2]]\nc\n[[Segment 3]]\nc\n"
	result, err := task.Evaluate(answer, orderingRecord(meta))
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.InDelta(t, 0.5, result["kendalls_tau"].(float64), 1e-9)
}

func TestOrdering_EvaluateSegmentMismatch(t *testing.T) {
	task := newOrdering(t)
	_, meta, err := task.GeneratePrompt("PARAGRAPH_ORDERING_0", 0)
	require.NoError(t, err)

	answer := "[[Segment 0]]\ncontent\n[[Segment 2]]\ncontent\n"
	result, err := task.Evaluate(answer, orderingRecord(meta))
	require.NoError(t, err)

	assert.Equal(t, "error", result["status"])
	assert.Equal(t, "SegmentMismatch", result["error_type"])
	assert.Equal(t, 0.0, result["kendalls_tau"])
	assert.Equal(t, []int{1, 3}, result["missing_segments"])
	assert.Equal(t, answer, result["raw_response"])

	// A mismatch is a scored outcome, not an evaluation failure.
	rec := orderingRecord(meta)
	rec.EvaluationResults = result
	assert.True(t, rec.HasValidEvaluation())
}

func TestOrdering_EvaluateIgnoresDuplicateAndOutOfRangeMarkers(t *testing.T) {
	task := newOrdering(t)
	_, meta, err := task.GeneratePrompt("PARAGRAPH_ORDERING_0", 0)
	require.NoError(t, err)

	answer := perfectAnswer(meta["correct_order"].([]int)) +
		"[[Segment 0]]\nduplicate\n[[Segment 99]]\nout of range\n"
	result, err := task.Evaluate(answer, orderingRecord(meta))
	require.NoError(t, err)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, 1.0, result["kendalls_tau"])
}

func TestOrdering_EvaluateBadMetadata(t *testing.T) {
	task := newOrdering(t)
	_, err := task.Evaluate("[[Segment 0]]", &models.Record{SampleID: "x", Metadata: map[string]any{}})
	require.Error(t, err)
}

func TestExtractSegmentOrder(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		total  int
		want   []int
	}{
		{"plain", "[[Segment 2]] a [[Segment 0]] b [[Segment 1]]", 3, []int{2, 0, 1}},
		{"spaced", "[[Segment  3]] [[Segment 1]]", 4, []int{3, 1}},
		{"dedup", "[[Segment 1]] [[Segment 1]] [[Segment 0]]", 2, []int{1, 0}},
		{"out_of_range", "[[Segment 5]] [[Segment 0]]", 2, []int{0}},
		{"none", "no markers here", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractSegmentOrder(tt.answer, tt.total))
		})
	}
}
