package main

import (
	"fmt"
	"os"

	"buildcore/internal/app"
	"buildcore/internal/seed"

	"github.com/spf13/cobra"
)

func seedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load site content from a YAML file",
		Long: `Create services, projects, team members and testimonials from a YAML
document through the normal write path. Entries that fail validation are
reported and skipped.

Example:
  buildcore seed --file content.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			doc, err := seed.Load(f)
			if err != nil {
				return err
			}
			cfg, logger, err := load(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, applyErr := seed.Apply(cmd.Context(), a.Service(), doc, logger)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d entries\n", res.Total(), doc.Len())
			return applyErr
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed document (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
