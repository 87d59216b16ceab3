package tasks

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/longeval/longeval/internal/models"
)

// TaskGenKVDict generates a dictionary with a target entry at a target
// index and scores how faithfully the model placed it.
const TaskGenKVDict = "GEN_KV_DICT"

// KVDictMetrics are the metric names a KV dictionary evaluation produces.
var KVDictMetrics = []string{
	"position_score", "key_existence", "entry_num_score", "total_score", "avg_length_score",
}

const (
	kvKeyAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	kvValueAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// KVDictTask asks the model to emit a dictionary that contains one specific
// key-value pair at a specific index, with all other entries following
// strict character rules. Placement and size are scored with sigmoid-style
// penalties that tolerate roughly ±25% error.
type KVDictTask struct {
	numEntries  int
	keyLength   int
	valueLength int
}

// NewKVDictTask builds the task from its YAML arguments.
func NewKVDictTask(args map[string]any) (Task, error) {
	var opts struct {
		NumEntries  int `mapstructure:"num_entries"`
		KeyLength   int `mapstructure:"key_length"`
		ValueLength int `mapstructure:"value_length"`
	}
	if err := mapstructure.Decode(args, &opts); err != nil {
		return nil, fmt.Errorf("decoding %s args: %w", TaskGenKVDict, err)
	}
	if opts.NumEntries == 0 {
		opts.NumEntries = 20
	}
	if opts.KeyLength == 0 {
		opts.KeyLength = 32
	}
	if opts.ValueLength == 0 {
		opts.ValueLength = 32
	}
	if opts.NumEntries <= 1 {
		return nil, fmt.Errorf("num_entries must be greater than 1, got %d", opts.NumEntries)
	}
	if opts.KeyLength < 1 || opts.ValueLength < 1 {
		return nil, fmt.Errorf("key_length and value_length must be positive")
	}
	return &KVDictTask{
		numEntries:  opts.NumEntries,
		keyLength:   opts.KeyLength,
		valueLength: opts.ValueLength,
	}, nil
}

const kvPromptTemplate = `Generate a Python dictionary with the following requirements:
- Total entries: %d
- MUST include the entry: '%s': '%s'
- The special entry should be placed at index %d
- Other keys and values must follow these rules:
  * Keys must be random strings of length %d, consisting ONLY of uppercase letters (A-Z) and underscores (_)
  * Values must be random strings of length %d, consisting ONLY of lowercase letters (a-z) and digits (0-9)
  * Keys and values MUST NOT contain any special characters (e.g., /, =, $, @, :, etc.) or spaces
- Output ONLY the dictionary in the following format (as a single-line string):
{'...': '...', ..., '%s': '%s', ..., '...': '...'}
- Ensure the dictionary string is valid JSON and can be parsed without errors.
- DO NOT include any code or explanations. Only return the dictionary string.`

// GeneratePrompt derives the target entry and index from the sample's
// deterministic RNG and renders the prompt.
func (t *KVDictTask) GeneratePrompt(sampleID string, index int) (string, map[string]any, error) {
	rng := rngFor(sampleID)

	targetKey := randomString(rng.IntN, kvKeyAlphabet, t.keyLength)
	targetValue := randomString(rng.IntN, kvValueAlphabet, t.valueLength)

	// Target position sampled at 5% intervals, extremes excluded.
	targetPercent := 5 + 5*rng.IntN(19)
	targetIndex := int(math.Round(float64(targetPercent) / 100 * float64(t.numEntries-1)))
	targetIndex = max(0, min(t.numEntries-1, targetIndex))

	prompt := fmt.Sprintf(kvPromptTemplate,
		t.numEntries, targetKey, targetValue, targetIndex,
		t.keyLength, t.valueLength, targetKey, targetValue)

	meta := map[string]any{
		"target_key":   targetKey,
		"target_value": targetValue,
		"target_index": targetIndex,
		"num_entries":  t.numEntries,
	}
	return prompt, meta, nil
}

var trailingComma = regexp.MustCompile(`,\s*}`)

// Evaluate scores the answer's dictionary for key existence, target
// placement, entry count and average key/value length. A response that
// cannot be parsed scores zero on every metric rather than failing.
func (t *KVDictTask) Evaluate(answer string, rec *models.Record) (map[string]any, error) {
	meta, err := kvMeta(rec)
	if err != nil {
		return nil, err
	}

	result := map[string]any{
		"key_existence":    0.0,
		"position_score":   0.0,
		"entry_num_score":  0.0,
		"avg_length_score": 0.0,
		"total_score":      0.0,
	}

	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start == -1 || end == -1 || start >= end {
		return result, nil
	}

	// Accept Python-style single quotes and trailing commas.
	dictStr := answer[start : end+1]
	dictStr = strings.ReplaceAll(dictStr, "'", `"`)
	dictStr = trailingComma.ReplaceAllString(dictStr, "}")

	entries, err := parseOrderedObject(dictStr)
	if err != nil {
		return result, nil
	}

	keyIndex := -1
	valueFound := false
	var keyLenSum, valLenSum int
	for i, e := range entries {
		if e.Key == meta.targetKey && keyIndex == -1 {
			keyIndex = i
		}
		if e.Value == meta.targetValue {
			valueFound = true
		}
		keyLenSum += len(e.Key)
		valLenSum += len(e.Value)
	}
	if keyIndex == -1 || !valueFound {
		return result, nil
	}
	result["key_existence"] = 1.0

	positionScore := sigmoidScore(float64(keyIndex-meta.targetIndex), float64(meta.numEntries)*0.25)
	result["position_score"] = round4(positionScore)

	entryNumScore := sigmoidScore(float64(len(entries)-meta.numEntries), math.Max(1, float64(meta.numEntries)*0.25))
	result["entry_num_score"] = round4(entryNumScore)

	n := float64(len(entries))
	keyLenScore := sigmoidScore(float64(keyLenSum)/n-float64(t.keyLength), math.Max(1, float64(t.keyLength)*0.25))
	valLenScore := sigmoidScore(float64(valLenSum)/n-float64(t.valueLength), math.Max(1, float64(t.valueLength)*0.25))
	avgLengthScore := round4((keyLenScore + valLenScore) / 2)
	result["avg_length_score"] = avgLengthScore

	// Harmonic mean of the three placement/size scores.
	if positionScore == 0 || entryNumScore == 0 || avgLengthScore == 0 {
		result["total_score"] = 0.0
	} else {
		result["total_score"] = round4(3 / (1/positionScore + 1/entryNumScore + 1/avgLengthScore))
	}
	return result, nil
}

type kvMetadata struct {
	targetKey   string
	targetValue string
	targetIndex int
	numEntries  int
}

func kvMeta(rec *models.Record) (*kvMetadata, error) {
	var opts struct {
		TargetKey   string `mapstructure:"target_key"`
		TargetValue string `mapstructure:"target_value"`
		TargetIndex int    `mapstructure:"target_index"`
		NumEntries  int    `mapstructure:"num_entries"`
	}
	if err := mapstructure.Decode(rec.Metadata, &opts); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", rec.SampleID, err)
	}
	if opts.TargetKey == "" {
		return nil, fmt.Errorf("record %s has no target_key metadata", rec.SampleID)
	}
	return &kvMetadata{
		targetKey:   opts.TargetKey,
		targetValue: opts.TargetValue,
		targetIndex: opts.TargetIndex,
		numEntries:  opts.NumEntries,
	}, nil
}

// orderedEntry is one key-value pair with its position preserved.
type orderedEntry struct {
	Key   string
	Value string
}

// parseOrderedObject decodes a flat JSON object keeping entry order, which
// encoding/json maps discard.
func parseOrderedObject(s string) ([]orderedEntry, error) {
	dec := json.NewDecoder(strings.NewReader(s))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var entries []orderedEntry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		entries = append(entries, orderedEntry{Key: key, Value: fmt.Sprintf("%v", valTok)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

// sigmoidScore maps a deviation to (0,1] with 0.5 at one scale unit.
func sigmoidScore(diff, scale float64) float64 {
	d := math.Abs(diff) / scale
	return 1 / (1 + d*d)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func randomString(intn func(int) int, alphabet string, length int) string {
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(alphabet[intn(len(alphabet))])
	}
	return b.String()
}
