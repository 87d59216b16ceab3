package tasks

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/longeval/longeval/internal/metrics"
	"github.com/longeval/longeval/internal/models"
)

// TaskParagraphOrdering asks the model to restore the original order of
// shuffled document segments.
const TaskParagraphOrdering = "PARAGRAPH_ORDERING"

// OrderingMetrics are the metric names a paragraph ordering evaluation
// produces.
var OrderingMetrics = []string{"kendalls_tau"}

// lengthKeys maps a test length in tokens to its dataset bucket.
var lengthKeys = map[int]string{
	1024: "1k",
	2048: "2k",
	4096: "4k",
	8192: "8k",
}

// orderingDoc is one document from the dataset file.
type orderingDoc struct {
	DocID    string   `json:"doc_id"`
	Segments []string `json:"segments"`
}

// OrderingTask shuffles a document's segments with the document's
// deterministic RNG and scores the restored order with normalized
// Kendall's tau.
type OrderingTask struct {
	samples []orderingDoc
}

// NewOrderingTask builds the task from its YAML arguments and loads the
// dataset bucket for the requested test length.
func NewOrderingTask(args map[string]any) (Task, error) {
	var opts struct {
		DataPath   string `mapstructure:"data_path"`
		TestLength int    `mapstructure:"test_length"`
	}
	if err := mapstructure.Decode(args, &opts); err != nil {
		return nil, fmt.Errorf("decoding %s args: %w", TaskParagraphOrdering, err)
	}
	if opts.DataPath == "" {
		return nil, fmt.Errorf("%s requires data_path", TaskParagraphOrdering)
	}
	key, ok := lengthKeys[opts.TestLength]
	if !ok {
		return nil, fmt.Errorf("unsupported test_length %d, supported: 1024, 2048, 4096, 8192", opts.TestLength)
	}

	data, err := os.ReadFile(opts.DataPath)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", opts.DataPath, err)
	}
	var buckets map[string][]orderingDoc
	if err := json.Unmarshal(data, &buckets); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", opts.DataPath, err)
	}
	docs, ok := buckets[key]
	if !ok || len(docs) == 0 {
		return nil, fmt.Errorf("dataset %s has no documents for length %s", opts.DataPath, key)
	}
	for _, doc := range docs {
		if doc.DocID == "" || len(doc.Segments) == 0 {
			return nil, fmt.Errorf("dataset %s contains a document without doc_id or segments", opts.DataPath)
		}
	}
	return &OrderingTask{samples: docs}, nil
}

// GeneratePrompt shuffles the document at the sample's index and renders
// the reordering prompt. Each sample index maps to one document.
func (t *OrderingTask) GeneratePrompt(sampleID string, index int) (string, map[string]any, error) {
	if index >= len(t.samples) {
		return "", nil, fmt.Errorf("no document for sample index %d, dataset has %d", index, len(t.samples))
	}
	doc := t.samples[index]

	seed := SeedFromID(doc.DocID)
	rng := rand.New(rand.NewPCG(seed, seed))

	shuffled := make([]string, len(doc.Segments))
	copy(shuffled, doc.Segments)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	position := make(map[string]int, len(doc.Segments))
	for i, seg := range doc.Segments {
		position[seg] = i
	}
	correctOrder := make([]int, len(shuffled))
	for i, seg := range shuffled {
		correctOrder[i] = position[seg]
	}

	var b strings.Builder
	b.WriteString("Please rearrange the following paragraphs into a logically coherent article:\n\n")
	for i, seg := range shuffled {
		fmt.Fprintf(&b, "[[Segment %d]]\n%s\n\n", i, seg)
	}
	fmt.Fprintf(&b, "Requirements:\n"+
		"1. Keep the original content of paragraphs unchanged, only adjust their order\n"+
		"2. Use [[Segment X]] to identify original paragraph numbers, starting from 0 up to %d.\n"+
		"3. Output the complete content in final order (include paragraph identifiers)\n"+
		"4. The final output must contain exactly %d segments\n"+
		"Example:\n"+
		"[[Segment 0]]\nParagraph content\n[[Segment 1]]\nAnother paragraph content\n...",
		len(shuffled)-1, len(shuffled))

	meta := map[string]any{
		"doc_id":        doc.DocID,
		"original":      doc.Segments,
		"shuffled":      shuffled,
		"correct_order": correctOrder,
	}
	return b.String(), meta, nil
}

var segmentMarker = regexp.MustCompile(`\[\[Segment\s*(\d+)\]\]`)

// Evaluate extracts the segment order from the answer and scores it with
// Kendall's tau normalized to [0,1]. Extraction problems are recorded in
// the result rather than returned as an error, matching how a malformed
// model answer is a score of zero, not an infrastructure failure.
func (t *OrderingTask) Evaluate(answer string, rec *models.Record) (map[string]any, error) {
	var meta struct {
		DocID        string   `mapstructure:"doc_id"`
		Original     []string `mapstructure:"original"`
		Shuffled     []string `mapstructure:"shuffled"`
		CorrectOrder []int    `mapstructure:"correct_order"`
	}
	if err := mapstructure.Decode(rec.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", rec.SampleID, err)
	}
	if len(meta.Original) == 0 {
		return nil, fmt.Errorf("record %s has no original segments in metadata", rec.SampleID)
	}

	predicted := extractSegmentOrder(answer, len(meta.Original))
	if len(predicted) != len(meta.Original) {
		missing := missingIndices(predicted, len(meta.Original))
		return map[string]any{
			"doc_id":           meta.DocID,
			"kendalls_tau":     0.0,
			"status":           "error",
			"error_type":       "SegmentMismatch",
			"error_detail":     fmt.Sprintf("expected %d segments, extracted %d", len(meta.Original), len(predicted)),
			"missing_segments": missing,
			"raw_response":     answer,
		}, nil
	}

	// Segment markers name shuffled positions; map them back to original
	// indices so a perfect restoration yields the identity sequence.
	restored := make([]int, len(predicted))
	for i, label := range predicted {
		restored[i] = meta.CorrectOrder[label]
	}
	identity := make([]int, len(restored))
	for i := range identity {
		identity[i] = i
	}
	tau := metrics.KendallTau(identity, restored)
	score := (1 + tau) / 2
	if math.IsNaN(score) {
		score = 0
	}

	return map[string]any{
		"doc_id":           meta.DocID,
		"kendalls_tau":     score,
		"gold_order":       meta.CorrectOrder,
		"status":           "success",
		"missing_segments": []int{},
	}, nil
}

// extractSegmentOrder returns the segment indices in the order the answer
// presents them, dropping out-of-range and duplicate indices.
func extractSegmentOrder(answer string, total int) []int {
	matches := segmentMarker.FindAllStringSubmatch(answer, -1)
	seen := make(map[int]bool, total)
	var order []int
	for _, m := range matches {
		num, err := strconv.Atoi(m[1])
		if err != nil || num < 0 || num >= total || seen[num] {
			continue
		}
		seen[num] = true
		order = append(order, num)
	}
	return order
}

func missingIndices(present []int, total int) []int {
	seen := make(map[int]bool, len(present))
	for _, v := range present {
		seen[v] = true
	}
	missing := []int{}
	for i := range total {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	return missing
}
