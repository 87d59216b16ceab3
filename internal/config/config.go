// Package config provides the Config struct and loader for longeval YAML
// configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values for pipeline configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultBackend    = "openai"
	DefaultResultsDir = "results"
	DefaultNamespace  = "longeval"

	DefaultInferenceWorkers  = 8
	DefaultEvaluationWorkers = 4
)

// ModelConfig identifies the model backend under evaluation.
type ModelConfig struct {
	Backend   string         `yaml:"backend,omitempty"`
	Model     string         `yaml:"model"`
	BaseURL   string         `yaml:"base_url,omitempty"`
	APIKeyEnv string         `yaml:"api_key_env,omitempty"`
	Params    map[string]any `yaml:"params,omitempty"`
}

// SelectedTask names one task path to run and its arguments.
type SelectedTask struct {
	TaskPath  string         `yaml:"task_path"`
	SampleNum int            `yaml:"sample_num,omitempty"`
	Args      map[string]any `yaml:"args,omitempty"`
}

// ThreadingConfig holds per-stage worker pool sizes.
type ThreadingConfig struct {
	InferenceWorkers  int `yaml:"inference_workers,omitempty"`
	EvaluationWorkers int `yaml:"evaluation_workers,omitempty"`
}

// RetryConfig controls whether error-marked records are re-queued when a
// stage resumes. Inference errors are retried by default; evaluation
// errors are not.
type RetryConfig struct {
	InferErrors *bool `yaml:"infer_errors,omitempty"`
	EvalErrors  *bool `yaml:"eval_errors,omitempty"`
}

// Config is the top-level configuration loaded from a longeval YAML file.
type Config struct {
	Model         ModelConfig     `yaml:"model"`
	SelectedTasks []SelectedTask  `yaml:"selected_tasks"`
	Threading     ThreadingConfig `yaml:"threading,omitempty"`
	Retry         RetryConfig     `yaml:"retry,omitempty"`
	ResultsDir    string          `yaml:"results_dir,omitempty"`
	Namespace     string          `yaml:"namespace,omitempty"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Model: ModelConfig{
			Backend: DefaultBackend,
		},
		Threading: ThreadingConfig{
			InferenceWorkers:  DefaultInferenceWorkers,
			EvaluationWorkers: DefaultEvaluationWorkers,
		},
		Retry: RetryConfig{
			InferErrors: boolPtr(true),
			EvalErrors:  boolPtr(false),
		},
		ResultsDir: DefaultResultsDir,
		Namespace:  DefaultNamespace,
	}
}

// Load reads the YAML file at path, fills in missing fields with defaults
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg := New()
	mergeConfig(cfg, &fileCfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that the config can drive a pipeline run.
func (c *Config) Validate() error {
	if c.Model.Model == "" {
		return fmt.Errorf("model.model must be set")
	}
	if len(c.SelectedTasks) == 0 {
		return fmt.Errorf("selected_tasks must name at least one task")
	}
	for i, st := range c.SelectedTasks {
		if st.TaskPath == "" {
			return fmt.Errorf("selected_tasks[%d].task_path must be set", i)
		}
	}
	if c.Threading.InferenceWorkers < 1 {
		return fmt.Errorf("threading.inference_workers must be at least 1, got %d", c.Threading.InferenceWorkers)
	}
	if c.Threading.EvaluationWorkers < 1 {
		return fmt.Errorf("threading.evaluation_workers must be at least 1, got %d", c.Threading.EvaluationWorkers)
	}
	return nil
}

// StorePath returns the record store path for the configured model:
// <results_dir>/<model>/<model>.jsonl.
func (c *Config) StorePath() string {
	name := sanitizeModelName(c.Model.Model)
	return filepath.Join(c.ResultsDir, name, name+".jsonl")
}

// ReportPath returns the metric report path next to the record store.
func (c *Config) ReportPath() string {
	name := sanitizeModelName(c.Model.Model)
	return filepath.Join(filepath.Dir(c.StorePath()), name+"_metric_report.json")
}

// RetryInferErrors reports whether error-marked answers are re-queued.
func (c *Config) RetryInferErrors() bool {
	if c.Retry.InferErrors == nil {
		return true
	}
	return *c.Retry.InferErrors
}

// RetryEvalErrors reports whether error-marked evaluations are re-queued.
func (c *Config) RetryEvalErrors() bool {
	if c.Retry.EvalErrors == nil {
		return false
	}
	return *c.Retry.EvalErrors
}

// sanitizeModelName makes a model identifier safe for use in file paths.
func sanitizeModelName(model string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(model)
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Model.Backend != "" {
		dst.Model.Backend = src.Model.Backend
	}
	if src.Model.Model != "" {
		dst.Model.Model = src.Model.Model
	}
	if src.Model.BaseURL != "" {
		dst.Model.BaseURL = src.Model.BaseURL
	}
	if src.Model.APIKeyEnv != "" {
		dst.Model.APIKeyEnv = src.Model.APIKeyEnv
	}
	if src.Model.Params != nil {
		dst.Model.Params = src.Model.Params
	}
	if src.SelectedTasks != nil {
		dst.SelectedTasks = src.SelectedTasks
	}
	if src.Threading.InferenceWorkers != 0 {
		dst.Threading.InferenceWorkers = src.Threading.InferenceWorkers
	}
	if src.Threading.EvaluationWorkers != 0 {
		dst.Threading.EvaluationWorkers = src.Threading.EvaluationWorkers
	}
	if src.Retry.InferErrors != nil {
		dst.Retry.InferErrors = src.Retry.InferErrors
	}
	if src.Retry.EvalErrors != nil {
		dst.Retry.EvalErrors = src.Retry.EvalErrors
	}
	if src.ResultsDir != "" {
		dst.ResultsDir = src.ResultsDir
	}
	if src.Namespace != "" {
		dst.Namespace = src.Namespace
	}
}

func boolPtr(b bool) *bool {
	return &b
}
