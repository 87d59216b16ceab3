package main

import (
	"github.com/spf13/cobra"
)

func newInferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "infer",
		Short: "Run inference over pending records",
		Long: `Query the configured model for every record without a valid answer.

Results are checkpointed to an append-only log as they complete and merged
back into the record store when the stage finishes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return p.Infer(ctx)
		},
	}
}
