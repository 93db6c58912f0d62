package stage

import (
	"context"
	"log/slog"

	"github.com/stagehand-dev/stagehand/internal/record"
)

// LogOutput is recorded as the log stage's output.
type LogOutput struct {
	Logged      bool `json:"logged"`
	SelfImprove any  `json:"selfImprove"`
}

// Log appends the run's audit entry and then attempts a self-improvement
// pass. The improve pass is strictly best-effort: its failure is captured
// in the output and never fails the stage.
type Log struct {
	Audit    AuditAppender
	Improver SelfImprover
}

func (Log) Name() string { return NameLog }

func (h Log) Run(ctx context.Context, sc *Scope) (any, error) {
	entry := &record.AuditEntry{
		TS:         sc.Now(),
		RunID:      sc.RunID,
		WorkflowID: sc.WorkflowID,
		Status:     sc.Status,
		Route:      sc.ContextString("route"),
		BrandID:    sc.ContextString("brand_id"),
		Cadence:    sc.ContextString("cadence"),
		ApprovalID: sc.ContextString("approval_id"),
		Role:       sc.ContextString("role"),
	}
	if err := h.Audit.AppendAudit(ctx, entry); err != nil {
		return nil, err
	}

	out := LogOutput{Logged: true}
	if h.Improver != nil {
		improve, err := h.Improver.Improve(ctx, sc.WorkflowID, sc.Def.SelfImprove)
		if err != nil {
			slog.Warn("self-improve pass failed", "workflow", sc.WorkflowID, "error", err)
			out.SelfImprove = map[string]any{"applied": false, "reason": err.Error()}
		} else {
			out.SelfImprove = improve
		}
	}
	return out, nil
}
