package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/engine"
	"github.com/stagehand-dev/stagehand/internal/fault"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Input          string
	IdempotencyKey string
	Force          bool
	Resume         string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Execute a workflow run",
		Long: `Execute a durable workflow run through the fixed stage pipeline.

Identical invocations dedupe on an idempotency key derived from the
workflow id and input; a completed prior run is returned without
re-executing anything. A failed run can be picked up with --resume.

Example:
  stagehand run daily-brief --input "summarize competitor news"
  stagehand run daily-brief --input '{"task":"brief","brand_id":"acme"}'
  stagehand run daily-brief --input "..." --resume 0195c2f4-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "run input, plain text or JSON payload (required)")
	cmd.Flags().StringVar(&opts.IdempotencyKey, "idempotency-key", "", "explicit idempotency key")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "bypass the idempotency cache")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "resume an existing run id")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runWorkflow(cmd *cobra.Command, opts *RunOptions, workflowID string) error {
	app, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.engine.Run(cmd.Context(), engine.Request{
		WorkflowID:     workflowID,
		Input:          opts.Input,
		IdempotencyKey: opts.IdempotencyKey,
		ResumeRunID:    opts.Resume,
		Force:          opts.Force,
	})
	if err != nil {
		if res != nil && fault.IsStageFailed(err) {
			// a failed run still reports its identity for resume
			if printErr := printJSON(cmd.ErrOrStderr(), res); printErr != nil {
				return printErr
			}
			return &ExitError{Code: ExitFailure, Err: err}
		}
		var fe *fault.Error
		if errors.As(err, &fe) {
			return faultExit(err)
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}
