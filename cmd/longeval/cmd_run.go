package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/longeval/longeval/internal/config"
	"github.com/longeval/longeval/internal/llm"
	"github.com/longeval/longeval/internal/pipeline"
	"github.com/longeval/longeval/internal/tasks"
)

var configPath string

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: generate, infer, evaluate, analyze",
		Long: `Run all four stages in order against the configured model backend.

Each stage resumes from previous progress: completed items are never
re-processed, and an interrupted stage picks up from its append-only log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return p.Run(ctx)
		},
	}
}

// buildPipeline loads the config and wires the registry, model client and
// pipeline together.
func buildPipeline() (*pipeline.Pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	fmt.Printf("Model: %s (backend: %s)\n", cfg.Model.Model, cfg.Model.Backend)
	fmt.Printf("Record store: %s\n", cfg.StorePath())

	return pipeline.New(cfg, tasks.NewDefaultRegistry(), client)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM, so an
// interrupted stage stops dispatching and lets in-flight items checkpoint.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
