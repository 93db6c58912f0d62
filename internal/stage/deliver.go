package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DeliverOutput is recorded as the deliver stage's output.
type DeliverOutput struct {
	SummaryFile string `json:"summaryFile"`
}

// Deliver writes the run's markdown summary to the definition's templated
// summary path, defaulting to <outbox>/<runId>.md.
type Deliver struct {
	OutboxDir string
}

func (Deliver) Name() string { return NameDeliver }

func (h Deliver) Run(_ context.Context, sc *Scope) (any, error) {
	tmpl := sc.Def.Deliver.SummaryFile
	if tmpl == "" {
		tmpl = filepath.Join(h.OutboxDir, "{{runId}}.md")
	}
	outPath := Render(tmpl, templateVars(sc))

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("create summary dir: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(SummaryMarkdown(sc)), 0o644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	out := DeliverOutput{SummaryFile: outPath}
	sc.Context["delivery"] = map[string]any{"summaryFile": outPath}
	return out, nil
}

// SummaryMarkdown renders the delivery summary for a run scope.
func SummaryMarkdown(sc *Scope) string {
	stdout := sc.nestedString("execution", "stdout")
	lines := []string{
		fmt.Sprintf("# Workflow Run %s", sc.RunID),
		fmt.Sprintf("- Workflow: %s", sc.WorkflowID),
		fmt.Sprintf("- Route: %s", sc.ContextString("route")),
		fmt.Sprintf("- Brand: %s", orNA(sc.ContextString("brand_id"))),
		fmt.Sprintf("- Cadence: %s", orNA(sc.ContextString("cadence"))),
		fmt.Sprintf("- Run Date: %s", orNA(sc.ContextString("run_date"))),
		fmt.Sprintf("- Trigger Source: %s", orNA(sc.ContextString("trigger_source"))),
		fmt.Sprintf("- Approval ID: %s", orNA(sc.ContextString("approval_id"))),
		fmt.Sprintf("- Task: %s", sc.ContextString("task")),
		fmt.Sprintf("- Status: %s", sc.Status),
		fmt.Sprintf("- Updated: %s", sc.Now().UTC().Format(time.RFC3339)),
		"",
		"## Execution",
		"```",
		orNA(stdout),
		"```",
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
