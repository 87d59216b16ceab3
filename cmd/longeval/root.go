package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "longeval",
		Short: "longeval - batch pipeline for long-context model evaluation",
		Long: `longeval drives sets of task records through four stages (generate,
infer, evaluate, analyze) against a model backend, with crash-safe resume.

Every stage checkpoints per-item results to an append-only log, so an
interrupted run can be restarted and picks up exactly where it left off.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "longeval.yaml", "Path to the pipeline configuration file")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newGenerateCommand())
	cmd.AddCommand(newInferCommand())
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newAnalyzeCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
