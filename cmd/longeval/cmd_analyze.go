package main

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate metrics into a hierarchical report",
		Long: `Aggregate per-record metrics by task hierarchy and write a JSON report.

Analysis refuses to run while unmerged stage logs exist, since the store
would not reflect all completed work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline()
			if err != nil {
				return err
			}
			return p.Analyze()
		},
	}
}
