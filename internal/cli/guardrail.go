package cli

import (
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/guardrail"
)

// NewGuardrailCommand creates the guardrail command group.
func NewGuardrailCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guardrail",
		Short: "Run compliance checks on run artifacts",
	}

	cmd.AddCommand(newGuardrailCheckCommand(rootOpts))

	return cmd
}

func newGuardrailCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var params guardrail.Params

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a run's artifact directory against brand guardrails",
		Long: `Check a run's artifact directory for mandatory artifacts, sourced
claims, reference links, prohibited brand language, and a matching
approval record. Blocking failures exit with status 2; warnings alone
still pass.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.guardrail.Run(cmd.Context(), params)
			if err != nil {
				return faultExit(err)
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if code := guardrail.ExitStatus(report); code != ExitSuccess {
				return &ExitError{Code: code, Message: "guardrail check failed"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.BrandID, "brand-id", "", "brand identifier (required)")
	cmd.Flags().StringVar(&params.ArtifactDir, "artifact-dir", "", "run artifact directory (required)")
	cmd.Flags().StringVar(&params.ApprovalID, "approval-id", "", "approval id (read from run manifest when empty)")
	cmd.Flags().StringVar(&params.Cadence, "cadence", "", "run cadence (read from run manifest when empty)")
	_ = cmd.MarkFlagRequired("brand-id")
	_ = cmd.MarkFlagRequired("artifact-dir")

	return cmd
}
