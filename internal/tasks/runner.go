package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/longeval/longeval/internal/llm"
	"github.com/longeval/longeval/internal/models"
)

// Runner binds one task instance to the model client. The pipeline holds
// one Runner per configured task path.
type Runner struct {
	task   Task
	client llm.Client
	cfg    models.TaskConfig
}

// NewRunner creates the task named by the config's task path and wires it
// to the client.
func NewRunner(reg *Registry, cfg models.TaskConfig, client llm.Client) (*Runner, error) {
	name := cfg.TaskName
	if name == "" {
		name = TaskNameFromPath(cfg.TaskPath)
	}
	task, err := reg.Create(name, cfg.Args)
	if err != nil {
		return nil, fmt.Errorf("creating task for %s: %w", cfg.TaskPath, err)
	}
	cfg.TaskName = name
	return &Runner{task: task, client: client, cfg: cfg}, nil
}

// Config returns the task configuration the runner was built from.
func (r *Runner) Config() models.TaskConfig { return r.cfg }

// GeneratePrompt produces the prompt and metadata for one sample.
func (r *Runner) GeneratePrompt(sampleID string, index int) (string, map[string]any, error) {
	return r.task.GeneratePrompt(sampleID, index)
}

// Infer sends the prompt to the model backend.
func (r *Runner) Infer(ctx context.Context, prompt string, args map[string]any) (string, error) {
	return r.client.Complete(ctx, prompt, args)
}

// Evaluate scores a model answer against the record's metadata.
func (r *Runner) Evaluate(answer string, rec *models.Record) (map[string]any, error) {
	return r.task.Evaluate(answer, rec)
}

// TaskNameFromPath returns the task-type name, the first segment of a task
// path like "GEN_KV_DICT/short".
func TaskNameFromPath(taskPath string) string {
	if i := strings.Index(taskPath, "/"); i >= 0 {
		return taskPath[:i]
	}
	return taskPath
}
