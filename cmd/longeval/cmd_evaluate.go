package main

import (
	"github.com/spf13/cobra"
)

func newEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Score answered records against task metrics",
		Long: `Evaluate every record with a valid answer that has not been scored yet.

Any leftover inference log is merged first so evaluation always sees the
latest answers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			return p.Evaluate(ctx)
		},
	}
}
