// Package workflow loads and validates workflow definitions. A definition
// configures the fixed stage pipeline for one workflow id: tool
// auto-configuration, the execute command template, verification paths, the
// delivery destination, and the self-improvement policy.
//
// Definitions are JSON files validated against an embedded CUE schema
// before decoding, so a malformed or misspelled definition fails loudly at
// load time instead of mid-run.
package workflow

// Definition is one workflow's configuration.
type Definition struct {
	ID            string        `json:"id,omitempty"`
	Description   string        `json:"description,omitempty"`
	Defaults      Defaults      `json:"defaults,omitempty"`
	AutoConfigure AutoConfigure `json:"autoConfigure,omitempty"`
	Execute       ExecuteConfig `json:"execute,omitempty"`
	Verify        VerifyConfig  `json:"verify,omitempty"`
	Deliver       DeliverConfig `json:"deliver,omitempty"`
	SelfImprove   SelfImprove   `json:"selfImprove,omitempty"`
}

// Defaults hold planning assumptions surfaced in the plan stage. The
// feedback loop appends to Assumptions when it applies improvements.
type Defaults struct {
	Assumptions []string `json:"assumptions,omitempty"`
}

// AutoConfigure drives the configure_tools stage. Each allowlisted tool
// maps to an idempotent setup command; a completion marker prevents reruns.
type AutoConfigure struct {
	Enabled      bool                   `json:"enabled,omitempty"`
	Allowlist    []string               `json:"allowlist,omitempty"`
	ToolCommands map[string]ToolCommand `json:"toolCommands,omitempty"`
}

// ToolCommand is one tool's setup invocation.
type ToolCommand struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// ExecuteConfig is the templated external command the execute stage
// dispatches. Args accept {{field}} substitution from the run context.
type ExecuteConfig struct {
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
}

// VerifyConfig lists templated artifact paths the verify stage requires.
type VerifyConfig struct {
	RequiredFiles []string `json:"requiredFiles,omitempty"`
}

// DeliverConfig sets the templated destination for the delivery summary.
// Empty means the engine's default outbox path.
type DeliverConfig struct {
	SummaryFile string `json:"summaryFile,omitempty"`
}

// SelfImprove configures the optional self-improvement pass run by the log
// stage after a successful pipeline.
type SelfImprove struct {
	Enabled          bool `json:"enabled,omitempty"`
	MaxChangesPerRun int  `json:"maxChangesPerRun,omitempty"`
	AutoApplyLowRisk bool `json:"autoApplyLowRisk,omitempty"`
}
