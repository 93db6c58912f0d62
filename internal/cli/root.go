// Package cli wires the stagehand commands: durable workflow runs,
// approval lifecycle, feedback loop, guardrail checks and pattern
// sanitization. Every command prints a JSON result for automation.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Root    string
	Verbose bool
}

// NewRootCommand creates the stagehand root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stagehand",
		Short: "Durable workflow runs with human approval gating",
		Long: `Stagehand executes multi-stage workflow runs with durable state,
idempotent re-invocation, and a human approval lifecycle in front of
publishing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Root, "root", "", "root directory (default $STAGEHAND_ROOT or ~/.stagehand)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewApprovalCommand(opts))
	cmd.AddCommand(NewFeedbackCommand(opts))
	cmd.AddCommand(NewGuardrailCommand(opts))
	cmd.AddCommand(NewSanitizeCommand(opts))

	return cmd
}
