package cli

import (
	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/approval"
	"github.com/stagehand-dev/stagehand/internal/record"
)

// NewApprovalCommand creates the approval command group.
func NewApprovalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage brand approval requests",
		Long: `Manage the approval lifecycle for brand workflow runs.

An approval lives in exactly one state partition (pending, approved,
rejected, held). Approving releases the publish bundle and harvests
anonymized patterns; rejecting queues a revision request.`,
	}

	cmd.AddCommand(
		newApprovalCreateCommand(rootOpts),
		newApprovalDecideCommand(rootOpts, record.ApprovalApproved, "approve", "Approve a pending request and release the publish bundle"),
		newApprovalDecideCommand(rootOpts, record.ApprovalRejected, "reject", "Reject a request and queue a revision"),
		newApprovalDecideCommand(rootOpts, record.ApprovalHeld, "hold", "Move a request to the hold state"),
		newApprovalRemindCommand(rootOpts),
		newApprovalStatusCommand(rootOpts),
	)

	return cmd
}

func newApprovalCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var params approval.CreateParams
	var deadlineHours int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending approval request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("deadline-hours") {
				params.DeadlineHours = &deadlineHours
			}

			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.approvals.Create(cmd.Context(), params)
			if err != nil {
				return faultExit(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&params.BrandID, "brand-id", "", "brand identifier (required)")
	cmd.Flags().StringVar(&params.RunID, "run-id", "", "workflow run id (required)")
	cmd.Flags().StringVar(&params.ArtifactPath, "artifact-path", "", "run artifact directory (required)")
	cmd.Flags().StringVar(&params.OwnerName, "owner-name", "", "approver display name")
	cmd.Flags().StringVar(&params.OwnerContact, "owner-contact", "", "approver contact for notifications")
	cmd.Flags().StringVar(&params.Summary, "summary", "", "request summary shown to the approver")
	cmd.Flags().IntVar(&deadlineHours, "deadline-hours", approval.DefaultDeadlineHours, "decision deadline in hours; 0 is due immediately")
	cmd.Flags().StringVar(&params.ApprovalID, "approval-id", "", "explicit approval id (generated when empty)")
	_ = cmd.MarkFlagRequired("brand-id")
	_ = cmd.MarkFlagRequired("run-id")
	_ = cmd.MarkFlagRequired("artifact-path")

	return cmd
}

func newApprovalDecideCommand(rootOpts *RootOptions, state record.ApprovalState, use, short string) *cobra.Command {
	var note, cadence string

	cmd := &cobra.Command{
		Use:   use + " <approval-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.approvals.Decide(cmd.Context(), args[0], state, note, cadence)
			if err != nil {
				return faultExit(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&note, "decision-note", "", "note recorded with the decision")
	cmd.Flags().StringVar(&cadence, "cadence", "", "run cadence override for pattern harvesting")

	return cmd
}

func newApprovalRemindCommand(rootOpts *RootOptions) *cobra.Command {
	var approvalID string
	var allDue bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send reminders for pending approvals, auto-holding overdue ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.approvals.Remind(cmd.Context(), approvalID, allDue)
			if err != nil {
				return faultExit(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&approvalID, "approval-id", "", "remind a single approval (all pending when empty)")
	cmd.Flags().BoolVar(&allDue, "all-due", false, "only touch approvals past their deadline")

	return cmd
}

func newApprovalStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var approvalID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show one approval or a summary of all partitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.approvals.Status(cmd.Context(), approvalID)
			if err != nil {
				return faultExit(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVar(&approvalID, "approval-id", "", "approval id (summary across states when empty)")

	return cmd
}
