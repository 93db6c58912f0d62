package cli

import (
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/sanitize"
)

// NewSanitizeCommand creates the sanitize command.
func NewSanitizeCommand(rootOpts *RootOptions) *cobra.Command {
	var params sanitize.Params

	cmd := &cobra.Command{
		Use:   "sanitize",
		Short: "Harvest anonymized patterns from a run's artifacts",
		Long: `Harvest reusable patterns (hooks, CTAs, design directives, client
success frameworks) from a run's artifacts, scrub anything brand- or
client-identifying, and append the result to the shared pattern
library. --dry-run prints the entry without appending it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.sanitizer.Run(cmd.Context(), params)
			if err != nil {
				return faultExit(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&params.BrandID, "brand-id", "", "brand identifier (required)")
	cmd.Flags().StringVar(&params.ArtifactDir, "artifact-dir", "", "run artifact directory (required)")
	cmd.Flags().StringVar(&params.RunID, "run-id", "", "run id recorded with the entry")
	cmd.Flags().StringVar(&params.Cadence, "cadence", "", "run cadence (default daily)")
	cmd.Flags().BoolVar(&params.DryRun, "dry-run", false, "build the entry without appending it")
	_ = cmd.MarkFlagRequired("brand-id")
	_ = cmd.MarkFlagRequired("artifact-dir")

	return cmd
}
