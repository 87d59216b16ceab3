package models

import (
	"fmt"
	"strings"
)

// ErrorPrefix marks an answer that records a failed inference attempt
// rather than real model output.
const ErrorPrefix = "ERROR:"

// FailedPromptMarker is the prompt value written when prompt generation
// itself failed. Records carrying it are never submitted for inference.
const FailedPromptMarker = "ERROR: Prompt generation failed"

// TaskConfig identifies the task that produced a record and carries the
// task's free-form arguments through the pipeline unchanged.
type TaskConfig struct {
	TaskName  string         `json:"task_name" yaml:"task_name"`
	TaskPath  string         `json:"task_path" yaml:"task_path"`
	SampleNum int            `json:"sample_num,omitempty" yaml:"sample_num,omitempty"`
	Args      map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// Record is one unit of work, keyed by SampleID and threaded through the
// generate, infer and evaluate stages. Stage outputs are pointers so a
// missing value is distinguishable from an empty one on the wire.
type Record struct {
	SampleID              string         `json:"sample_id"`
	Prompt                *string        `json:"prompt"`
	Metadata              map[string]any `json:"metadata"`
	Answer                *string        `json:"answer"`
	EvaluationResults     map[string]any `json:"evaluation_results"`
	Task                  string         `json:"task"`
	Source                string         `json:"source,omitempty"`
	EvalArgs              map[string]any `json:"eval_args,omitempty"`
	TaskConfig            TaskConfig     `json:"task_config"`
	InferenceDurationSec  *float64       `json:"inference_duration_sec,omitempty"`
	EvaluationDurationSec *float64       `json:"evaluation_duration_sec,omitempty"`
}

// SampleID builds the stable identifier for one sample of a task path.
func SampleID(taskPath string, index int) string {
	return fmt.Sprintf("%s_%d", taskPath, index)
}

// AnswerFailed reports whether the answer records a failed attempt.
func (r *Record) AnswerFailed() bool {
	return r.Answer != nil && strings.HasPrefix(*r.Answer, ErrorPrefix)
}

// HasValidAnswer reports whether the record holds a real, non-empty answer.
func (r *Record) HasValidAnswer() bool {
	return r.Answer != nil && *r.Answer != "" && !r.AnswerFailed()
}

// EvaluationFailed reports whether the evaluation results record a failed
// attempt. An "error" key distinguishes a failure from a missing result.
func (r *Record) EvaluationFailed() bool {
	if r.EvaluationResults == nil {
		return false
	}
	_, ok := r.EvaluationResults["error"]
	return ok
}

// HasValidEvaluation reports whether the record holds real evaluation
// results.
func (r *Record) HasValidEvaluation() bool {
	return r.EvaluationResults != nil && !r.EvaluationFailed()
}

// PromptFailed reports whether prompt generation failed for this record.
func (r *Record) PromptFailed() bool {
	return r.Prompt != nil && *r.Prompt == FailedPromptMarker
}

// SetAnswer stores a successful inference result.
func (r *Record) SetAnswer(answer string) {
	r.Answer = &answer
}

// SetAnswerError stores a structured inference failure.
func (r *Record) SetAnswerError(err error) {
	msg := fmt.Sprintf("%s inference failed for item %s - %v", ErrorPrefix, r.SampleID, err)
	r.Answer = &msg
}

// SetEvaluationError stores a structured evaluation failure.
func (r *Record) SetEvaluationError(err error) {
	r.EvaluationResults = map[string]any{
		"error": fmt.Sprintf("evaluation failed for item %s - %v", r.SampleID, err),
	}
}

// Clone returns a copy of the record safe to mutate in a worker. Metadata
// and result maps are shared; stage workers replace them rather than
// editing in place.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}
