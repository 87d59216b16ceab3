package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/longeval/longeval/internal/config"
	"github.com/longeval/longeval/internal/llm"
	"github.com/longeval/longeval/internal/metrics"
	"github.com/longeval/longeval/internal/models"
	"github.com/longeval/longeval/internal/store"
	"github.com/longeval/longeval/internal/tasks"
)

// Pipeline owns the record store, the per-stage logs and one task runner
// per configured task path. A single Pipeline instance assumes it is the
// only writer of its files.
type Pipeline struct {
	cfg      *config.Config
	registry *tasks.Registry
	runners  map[string]*tasks.Runner
	order    []string

	storePath string
	inferLog  *store.StageLog
	evalLog   *store.StageLog
}

// New builds a pipeline from the config. A task runner that fails to
// construct is reported and its task path skipped, matching how a partial
// task set should not block the remaining tasks.
func New(cfg *config.Config, registry *tasks.Registry, client llm.Client) (*Pipeline, error) {
	storePath := cfg.StorePath()
	p := &Pipeline{
		cfg:       cfg,
		registry:  registry,
		runners:   map[string]*tasks.Runner{},
		storePath: storePath,
		inferLog:  store.NewStageLog(storePath + store.InferLogSuffix),
		evalLog:   store.NewStageLog(storePath + store.EvalLogSuffix),
	}

	for _, st := range cfg.SelectedTasks {
		tc := models.TaskConfig{
			TaskName:  tasks.TaskNameFromPath(st.TaskPath),
			TaskPath:  st.TaskPath,
			SampleNum: st.SampleNum,
			Args:      st.Args,
		}
		runner, err := tasks.NewRunner(registry, tc, client)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing task runner for %s: %v\n", st.TaskPath, err)
			continue
		}
		p.runners[st.TaskPath] = runner
		p.order = append(p.order, st.TaskPath)
	}
	if len(p.runners) == 0 {
		return nil, fmt.Errorf("no task runners could be initialized")
	}
	fmt.Printf("Initialized %d task runner(s).\n", len(p.runners))
	return p, nil
}

// StorePath returns the record store path.
func (p *Pipeline) StorePath() string { return p.storePath }

// Generate creates the initial record set and writes the record store.
// It refuses to overwrite an existing store or to run while a stage log
// from an unresolved previous run is present.
func (p *Pipeline) Generate() error {
	if _, err := os.Stat(p.storePath); err == nil {
		fmt.Printf("Record store %s already exists, skipping generation.\n", p.storePath)
		return nil
	}
	if p.inferLog.Exists() || p.evalLog.Exists() {
		fmt.Printf("Warning: stage logs exist (%s, %s).\n", p.inferLog.Path(), p.evalLog.Path())
		fmt.Println("Skipping generation; resolve or clear the previous run first.")
		return nil
	}
	if dir := filepath.Dir(p.storePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating results directory: %w", err)
		}
	}

	fmt.Printf("Generating prompts and writing initial records to %s...\n", p.storePath)
	var records []*models.Record
	for _, taskPath := range p.order {
		runner := p.runners[taskPath]
		sampleNum := runner.Config().SampleNum
		if sampleNum < 1 {
			sampleNum = 1
		}
		for i := 0; i < sampleNum; i++ {
			rec := &models.Record{
				SampleID:   models.SampleID(taskPath, i),
				Task:       p.cfg.Namespace + "/" + taskPath,
				Source:     p.cfg.Namespace,
				EvalArgs:   p.cfg.Model.Params,
				TaskConfig: runner.Config(),
			}
			prompt, meta, err := runner.GeneratePrompt(rec.SampleID, i)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error generating prompt for %s: %v\n", rec.SampleID, err)
				marker := models.FailedPromptMarker
				rec.Prompt = &marker
				rec.Metadata = map[string]any{"error": err.Error()}
			} else {
				rec.Prompt = &prompt
				rec.Metadata = meta
			}
			records = append(records, rec)
		}
	}

	if err := store.SafeRewrite(p.storePath, records); err != nil {
		return fmt.Errorf("writing initial records: %w", err)
	}
	fmt.Printf("Generated and saved %d record(s).\n", len(records))
	return nil
}

// Infer runs the inference stage: load state, run pending records through
// the model backend, and merge the stage log on clean completion.
func (p *Pipeline) Infer(ctx context.Context) error {
	fmt.Println("--- Running Inference ---")
	return p.runAndMerge(ctx, stageInfer, p.inferLog, p.cfg.RetryInferErrors(), p.cfg.Threading.InferenceWorkers, p.inferWorker)
}

// Evaluate runs the evaluation stage. A leftover inference log is folded
// into the store first; evaluation never runs against an unmerged store.
func (p *Pipeline) Evaluate(ctx context.Context) error {
	fmt.Println("--- Running Evaluation ---")
	if p.inferLog.Exists() {
		fmt.Println("Warning: inference log exists, merging before evaluation.")
		state, err := loadStage(p.storePath, p.inferLog, stageInfer, p.cfg.RetryInferErrors())
		if err != nil {
			return fmt.Errorf("loading state for pre-evaluation merge: %w", err)
		}
		if err := mergeLog(state.items, p.storePath, p.inferLog); err != nil {
			return fmt.Errorf("pre-evaluation merge: %w", err)
		}
	}
	return p.runAndMerge(ctx, stageEval, p.evalLog, p.cfg.RetryEvalErrors(), p.cfg.Threading.EvaluationWorkers, p.evalWorker)
}

// runAndMerge is the shared load, execute and merge flow for both stages.
func (p *Pipeline) runAndMerge(ctx context.Context, stage stageKind, log *store.StageLog, retryErrors bool, workers int, process processFunc) error {
	state, err := loadStage(p.storePath, log, stage, retryErrors)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d item(s), %d already done, %d pending.\n",
		len(state.items), state.done, len(state.pending))

	if len(state.pending) == 0 {
		fmt.Printf("No tasks require %s processing.\n", stage)
		if log.Exists() {
			return mergeLog(state.items, p.storePath, log)
		}
		return nil
	}

	fmt.Printf("Starting %s for %d item(s) with %d worker(s)...\n", stage, len(state.pending), workers)
	completed, ok := runStage(ctx, state.pending, workers, process, log, state.items)
	fmt.Printf("Processed %d item(s) during %s.\n", completed, stage)

	if !ok {
		fmt.Printf("%s run finished with errors or interruption.\n", stage)
		fmt.Printf("Completed results logged to: %s\n", log.Path())
		fmt.Println("Re-run to resume; the stage log will be picked up automatically.")
		return fmt.Errorf("%s interrupted after %d of %d item(s)", stage, completed, len(state.pending))
	}
	if err := mergeLog(state.items, p.storePath, log); err != nil {
		return err
	}
	fmt.Printf("--- %s step finished ---\n", stage)
	return nil
}

// inferWorker processes one record through the model backend. Failures are
// recorded as error-marked answers; the elapsed time is stamped on every
// path.
func (p *Pipeline) inferWorker(ctx context.Context, rec *models.Record) *models.Record {
	start := time.Now()
	defer func() {
		d := time.Since(start).Seconds()
		rec.InferenceDurationSec = &d
	}()

	runner, ok := p.runners[rec.TaskConfig.TaskPath]
	switch {
	case !ok:
		rec.SetAnswerError(fmt.Errorf("no task runner for path %q", rec.TaskConfig.TaskPath))
	case rec.PromptFailed():
		rec.SetAnswerError(errors.New("skipped due to prompt generation failure"))
	case rec.Prompt == nil:
		rec.SetAnswerError(errors.New("record has no prompt"))
	default:
		answer, err := runner.Infer(ctx, *rec.Prompt, rec.EvalArgs)
		if err != nil {
			rec.SetAnswerError(err)
		} else {
			rec.SetAnswer(answer)
		}
	}
	return rec
}

// evalWorker scores one answered record. Failures are recorded as
// error-keyed evaluation results.
func (p *Pipeline) evalWorker(_ context.Context, rec *models.Record) *models.Record {
	start := time.Now()
	defer func() {
		d := time.Since(start).Seconds()
		rec.EvaluationDurationSec = &d
	}()

	runner, ok := p.runners[rec.TaskConfig.TaskPath]
	switch {
	case !ok:
		rec.SetEvaluationError(fmt.Errorf("no task runner for path %q", rec.TaskConfig.TaskPath))
	case rec.Answer == nil:
		rec.SetEvaluationError(errors.New("record has no answer"))
	default:
		results, err := runner.Evaluate(*rec.Answer, rec)
		if err != nil {
			rec.SetEvaluationError(err)
		} else {
			rec.EvaluationResults = results
		}
	}
	return rec
}

// Analyze aggregates metrics over the merged record store and writes the
// report. It refuses to run while any stage log exists.
func (p *Pipeline) Analyze() error {
	fmt.Println("--- Running Analysis ---")
	if p.inferLog.Exists() || p.evalLog.Exists() {
		return fmt.Errorf("stage logs exist, analysis requires a fully merged record store (re-run infer/evaluate)")
	}
	if _, err := os.Stat(p.storePath); err != nil {
		return fmt.Errorf("record store %s not found for analysis", p.storePath)
	}

	report, analyzed, err := metrics.Aggregate(p.storePath, p.registry, p.cfg.Namespace)
	if err != nil {
		return fmt.Errorf("aggregating metrics: %w", err)
	}
	if analyzed == 0 {
		fmt.Println("No items with valid evaluation results found for analysis.")
		return nil
	}

	reportPath := p.cfg.ReportPath()
	fmt.Printf("Saving analysis report (%d item(s) analyzed) to: %s\n", analyzed, reportPath)
	if err := store.WriteJSONReport(reportPath, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Println("Analysis report saved.")
	return nil
}

// Run executes the entire process: generate, infer, evaluate, analyze.
func (p *Pipeline) Run(ctx context.Context) error {
	fmt.Println("--- Starting Pipeline Run ---")
	if err := p.Generate(); err != nil {
		return err
	}
	if _, err := os.Stat(p.storePath); err != nil && !p.inferLog.Exists() {
		return fmt.Errorf("cannot proceed without an initial record store")
	}
	if err := p.Infer(ctx); err != nil {
		return err
	}
	if err := p.Evaluate(ctx); err != nil {
		return err
	}
	if err := p.Analyze(); err != nil {
		return err
	}
	fmt.Println("--- Pipeline Run Finished ---")
	return nil
}
