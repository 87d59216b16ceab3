// Package tasks defines the Task capability set consumed by the pipeline
// and the registry mapping task-type names to constructors. The registry is
// an explicit object built at process start and read-only afterwards.
package tasks

import (
	"fmt"
	"sort"

	"github.com/longeval/longeval/internal/models"
)

// Task is the per-type collaborator the pipeline drives. Implementations
// may fail on any call; the engine converts failures into per-item error
// values rather than aborting the run.
type Task interface {
	// GeneratePrompt produces the prompt and evaluation metadata for one
	// sample. index is the sample's position within its task path.
	GeneratePrompt(sampleID string, index int) (prompt string, metadata map[string]any, err error)

	// Evaluate scores a model answer against the record's metadata.
	Evaluate(answer string, rec *models.Record) (map[string]any, error)
}

// Constructor builds a task instance from its loose YAML arguments.
type Constructor func(args map[string]any) (Task, error)

type registration struct {
	construct Constructor
	metrics   []string
}

// Registry maps task-type names to constructors and their registered metric
// names. Populate it during startup; it is not safe for concurrent
// mutation afterwards.
type Registry struct {
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]registration{}}
}

// NewDefaultRegistry returns a registry with all built-in tasks registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TaskGenKVDict, KVDictMetrics, NewKVDictTask)
	r.Register(TaskParagraphOrdering, OrderingMetrics, NewOrderingTask)
	return r
}

// Register adds a task type with the metric names its evaluations produce.
// Registering a name twice panics; task sets are assembled once at startup
// and a duplicate is a programming error.
func (r *Registry) Register(name string, metrics []string, c Constructor) {
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("task type %q registered twice", name))
	}
	if len(metrics) == 0 {
		panic(fmt.Sprintf("task type %q must register at least one metric", name))
	}
	r.entries[name] = registration{construct: c, metrics: metrics}
}

// Create builds a task instance of the named type.
func (r *Registry) Create(name string, args map[string]any) (Task, error) {
	reg, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("unknown task type %q, supported types: %v", name, r.Names())
	}
	return reg.construct(args)
}

// RegisteredMetrics returns the metric names collected for a task type, or
// false if the type is unknown.
func (r *Registry) RegisteredMetrics(name string) ([]string, bool) {
	reg, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return reg.metrics, true
}

// Names returns the registered task-type names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
