package stage

import (
	"context"

	"github.com/stagehand-dev/stagehand/internal/runner"
)

// Reasons a tool is soft-skipped during configure_tools.
const (
	SkipDisabled          = "autoConfigure disabled"
	SkipAlreadyConfigured = "already_configured"
	SkipNoCommand         = "no_command"
	SkipCommandFailed     = "command_failed"
)

// ConfiguredTool records one successful tool setup.
type ConfiguredTool struct {
	Tool   string `json:"tool"`
	Stdout string `json:"stdout"`
}

// SkippedTool records one tool that was not set up and why.
type SkippedTool struct {
	Tool   string `json:"tool"`
	Reason string `json:"reason"`
	Stderr string `json:"stderr,omitempty"`
}

// ConfigureOutput is recorded as the configure_tools stage's output.
type ConfigureOutput struct {
	Configured []ConfiguredTool `json:"configured"`
	Skipped    []SkippedTool    `json:"skipped"`
	Reason     string           `json:"reason,omitempty"`
}

// ConfigureTools runs one-time setup commands for allowlisted tools.
// Durable markers make the setup exactly-once across runs, and every
// non-fatal outcome is a recorded skip rather than a stage failure.
type ConfigureTools struct {
	Runner  runner.CommandRunner
	Markers MarkerStore
}

func (ConfigureTools) Name() string { return NameConfigureTools }

func (h ConfigureTools) Run(ctx context.Context, sc *Scope) (any, error) {
	cfg := sc.Def.AutoConfigure
	out := ConfigureOutput{Configured: []ConfiguredTool{}, Skipped: []SkippedTool{}}
	if !cfg.Enabled {
		out.Reason = SkipDisabled
		sc.Context["tools"] = toolsContext(out)
		return out, nil
	}

	for _, tool := range cfg.Allowlist {
		done, err := h.Markers.HasToolMarker(ctx, tool)
		if err != nil {
			return nil, err
		}
		if done {
			out.Skipped = append(out.Skipped, SkippedTool{Tool: tool, Reason: SkipAlreadyConfigured})
			continue
		}

		cmd, ok := cfg.ToolCommands[tool]
		if !ok || cmd.Command == "" {
			out.Skipped = append(out.Skipped, SkippedTool{Tool: tool, Reason: SkipNoCommand})
			continue
		}

		res := h.Runner.Run(ctx, cmd.Command, cmd.Args, nil)
		if !res.OK {
			out.Skipped = append(out.Skipped, SkippedTool{Tool: tool, Reason: SkipCommandFailed, Stderr: res.Stderr})
			continue
		}
		if err := h.Markers.SetToolMarker(ctx, tool, sc.Now()); err != nil {
			return nil, err
		}
		out.Configured = append(out.Configured, ConfiguredTool{Tool: tool, Stdout: res.Stdout})
	}

	sc.Context["tools"] = toolsContext(out)
	return out, nil
}

func toolsContext(out ConfigureOutput) map[string]any {
	m := map[string]any{
		"configured": out.Configured,
		"skipped":    out.Skipped,
	}
	if out.Reason != "" {
		m["reason"] = out.Reason
	}
	return m
}
