package metrics

import (
	"math"
	"sort"
	"strings"

	"github.com/longeval/longeval/internal/store"
)

// Timing metric names aggregated for every record, whether or not its
// evaluation succeeded. They measure infrastructure, not task correctness.
const (
	MetricInferenceDuration  = "inference_duration_sec"
	MetricEvaluationDuration = "evaluation_duration_sec"
)

// MetricSource supplies the metric names registered for a task type.
type MetricSource interface {
	RegisteredMetrics(taskName string) ([]string, bool)
}

// MetricSummary is one aggregated metric at one hierarchy level.
type MetricSummary struct {
	Average float64 `json:"average"`
	Samples int     `json:"samples"`
}

// Report maps hierarchy path to metric name to its summary.
type Report map[string]map[string]MetricSummary

// Aggregate walks the record store and averages each registered metric at
// every depth prefix of the slash-delimited task hierarchy, after dropping
// the leading namespace segment. It returns the report and the number of
// records that contributed task metrics.
func Aggregate(storePath string, source MetricSource, namespace string) (Report, int, error) {
	records, err := store.ReadRecords(storePath)
	if err != nil {
		return nil, 0, err
	}

	values := map[string]map[string][]float64{}
	analyzed := 0

	add := func(hierarchy, metric string, v float64) {
		byMetric, ok := values[hierarchy]
		if !ok {
			byMetric = map[string][]float64{}
			values[hierarchy] = byMetric
		}
		byMetric[metric] = append(byMetric[metric], v)
	}

	for _, rec := range records {
		parts, ok := hierarchyParts(rec.Task, namespace)
		if !ok {
			continue
		}

		var taskMetrics []string
		collect := rec.HasValidEvaluation()
		if collect {
			taskMetrics, collect = source.RegisteredMetrics(parts[0])
		}
		if collect {
			analyzed++
		}

		for depth := 1; depth <= len(parts); depth++ {
			hierarchy := strings.Join(parts[:depth], "/")
			if collect {
				for _, metric := range taskMetrics {
					if v, ok := numericValue(rec.EvaluationResults[metric]); ok {
						add(hierarchy, metric, v)
					}
				}
			}
			if rec.InferenceDurationSec != nil {
				add(hierarchy, MetricInferenceDuration, *rec.InferenceDurationSec)
			}
			if rec.EvaluationDurationSec != nil {
				add(hierarchy, MetricEvaluationDuration, *rec.EvaluationDurationSec)
			}
		}
	}

	report := Report{}
	for hierarchy, byMetric := range values {
		summary := map[string]MetricSummary{}
		for metric, vals := range byMetric {
			summary[metric] = MetricSummary{
				Average: math.Round(Mean(vals)*10000) / 10000,
				Samples: len(vals),
			}
		}
		report[hierarchy] = summary
	}
	return report, analyzed, nil
}

// Hierarchies returns the report's hierarchy paths in sorted order.
func (r Report) Hierarchies() []string {
	paths := make([]string, 0, len(r))
	for p := range r {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// hierarchyParts splits a task path, requiring and dropping the leading
// namespace segment.
func hierarchyParts(task, namespace string) ([]string, bool) {
	if !strings.HasPrefix(task, namespace+"/") {
		return nil, false
	}
	parts := strings.Split(task, "/")[1:]
	if len(parts) == 0 || parts[0] == "" {
		return nil, false
	}
	return parts, true
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
