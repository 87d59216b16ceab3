package main

import (
	"github.com/spf13/cobra"
)

func newGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate prompts and seed the record store",
		Long: `Generate one record per configured sample and write the record store.

Generation is skipped when a store or stage log already exists, so rerunning
never discards inference or evaluation progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPipeline()
			if err != nil {
				return err
			}
			return p.Generate()
		},
	}
}
