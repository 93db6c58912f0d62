package cli

import (
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/feedback"
)

// NewFeedbackCommand creates the feedback command group.
func NewFeedbackCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record run feedback and run the self-improvement loop",
	}

	cmd.AddCommand(
		newFeedbackSubmitCommand(rootOpts),
		newFeedbackImproveCommand(rootOpts),
	)

	return cmd
}

func newFeedbackSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var params feedback.SubmitParams

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record feedback and an optional score for a workflow run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.feedback.Submit(cmd.Context(), params)
			if err != nil {
				return faultExit(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&params.WorkflowID, "workflow-id", "", "workflow identifier (required)")
	cmd.Flags().StringVar(&params.RunID, "run-id", "", "run the feedback refers to")
	cmd.Flags().StringVar(&params.Feedback, "feedback", "", "free-form feedback text (required)")
	cmd.Flags().IntVar(&params.Score, "score", 0, "score 1-5, 0 for none")
	_ = cmd.MarkFlagRequired("workflow-id")
	_ = cmd.MarkFlagRequired("feedback")

	return cmd
}

func newFeedbackImproveCommand(rootOpts *RootOptions) *cobra.Command {
	var params feedback.ImproveParams

	cmd := &cobra.Command{
		Use:   "improve",
		Short: "Analyze run history and feedback, optionally applying suggestions",
		Long: `Analyze a workflow's run history and recorded feedback, emitting
improvement suggestions. With --auto-apply the definition is backed up
and the top suggestions are appended to its assumptions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.feedback.Improve(cmd.Context(), params)
			if err != nil {
				return faultExit(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&params.WorkflowID, "workflow-id", "", "workflow identifier (required)")
	cmd.Flags().BoolVar(&params.AutoApply, "auto-apply", false, "apply suggestions to the workflow definition")
	cmd.Flags().IntVar(&params.MaxChanges, "max-changes", 0, "cap on applied suggestions (default 3)")
	_ = cmd.MarkFlagRequired("workflow-id")

	return cmd
}
