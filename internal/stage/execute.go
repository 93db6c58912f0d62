package stage

import (
	"context"
	"fmt"

	"github.com/stagehand-dev/stagehand/internal/fault"
	"github.com/stagehand-dev/stagehand/internal/runner"
)

// ExecuteOutput is recorded as the execute stage's output.
type ExecuteOutput struct {
	Stdout string `json:"stdout"`
}

// Execute runs the workflow's delegated command. Args are templated from
// the run context and the run identity is exported through WF_* environment
// variables. A non-zero exit is a hard stage failure.
type Execute struct {
	Runner runner.CommandRunner
}

func (Execute) Name() string { return NameExecute }

func (h Execute) Run(ctx context.Context, sc *Scope) (any, error) {
	cfg := sc.Def.Execute
	if cfg.Command == "" {
		return nil, fault.Validation("workflow %s has no execute.command", sc.WorkflowID)
	}

	vars := templateVars(sc)
	if vars["route"] == "" {
		vars["route"] = RouteGeneral
	}
	args := make([]string, len(cfg.Args))
	for i, a := range cfg.Args {
		args[i] = Render(a, vars)
	}

	env := map[string]string{
		"WF_RUN_ID":          sc.RunID,
		"WF_ROUTE":           vars["route"],
		"WF_TASK":            vars["task"],
		"WF_BRAND_ID":        vars["brand_id"],
		"WF_CADENCE":         vars["cadence"],
		"WF_RUN_DATE":        vars["run_date"],
		"WF_TRIGGER_SOURCE":  vars["trigger_source"],
		"WF_APPROVAL_ID":     vars["approval_id"],
		"WF_IDEMPOTENCY_KEY": sc.IdempotencyKey,
	}

	res := h.Runner.Run(ctx, cfg.Command, args, env)
	if !res.OK {
		msg := res.Stderr
		if msg == "" {
			msg = fmt.Sprintf("execute failed with status %d", res.ExitCode)
		}
		return nil, fmt.Errorf("%s", msg)
	}

	sc.Context["execution"] = map[string]any{"stdout": res.Stdout}
	return ExecuteOutput{Stdout: res.Stdout}, nil
}
