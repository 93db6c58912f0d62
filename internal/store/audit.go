package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stagehand-dev/stagehand/internal/record"
)

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// AppendAudit appends one entry to the append-only audit log.
func (s *Store) AppendAudit(ctx context.Context, e *record.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(ts, run_id, workflow_id, status, route, brand_id, cadence, approval_id, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.TS.UTC().Format(timeFormat),
		e.RunID,
		e.WorkflowID,
		string(e.Status),
		e.Route,
		e.BrandID,
		e.Cadence,
		e.ApprovalID,
		e.Role,
	)
	if err != nil {
		return fmt.Errorf("append audit %s: %w", e.RunID, err)
	}
	return nil
}

// ListAudit returns audit entries in append order.
func (s *Store) ListAudit(ctx context.Context) ([]*record.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, run_id, workflow_id, status, route, brand_id, cadence, approval_id, role
		FROM audit_log
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []*record.AuditEntry
	for rows.Next() {
		var (
			e      record.AuditEntry
			ts     string
			status string
		)
		if err := rows.Scan(&ts, &e.RunID, &e.WorkflowID, &status, &e.Route, &e.BrandID, &e.Cadence, &e.ApprovalID, &e.Role); err != nil {
			return nil, fmt.Errorf("list audit: scan: %w", err)
		}
		e.Status = record.RunStatus(status)
		if e.TS, err = parseStoredTime(ts); err != nil {
			return nil, fmt.Errorf("list audit: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	return out, nil
}

// HasToolMarker reports whether a tool's completion marker exists.
// Markers guard configure_tools against rerunning external setup actions.
func (s *Store) HasToolMarker(ctx context.Context, tool string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM tool_markers WHERE tool = ?
	`, tool).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has tool marker %s: %w", tool, err)
	}
	return true, nil
}

// SetToolMarker records a tool's setup as complete. Idempotent.
func (s *Store) SetToolMarker(ctx context.Context, tool string, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_markers (tool, configured_at)
		VALUES (?, ?)
		ON CONFLICT(tool) DO NOTHING
	`, tool, ts.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("set tool marker %s: %w", tool, err)
	}
	return nil
}

// AppendFeedback appends one feedback entry.
func (s *Store) AppendFeedback(ctx context.Context, e *record.FeedbackEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (ts, workflow_id, run_id, score, feedback)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.TS.UTC().Format(timeFormat),
		e.WorkflowID,
		e.RunID,
		e.Score,
		e.Feedback,
	)
	if err != nil {
		return fmt.Errorf("append feedback %s: %w", e.WorkflowID, err)
	}
	return nil
}

// ListFeedback returns every feedback entry for a workflow in append order.
func (s *Store) ListFeedback(ctx context.Context, workflowID string) ([]*record.FeedbackEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, workflow_id, run_id, score, feedback
		FROM feedback
		WHERE workflow_id = ?
		ORDER BY id ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list feedback %s: %w", workflowID, err)
	}
	defer rows.Close()

	var out []*record.FeedbackEntry
	for rows.Next() {
		var (
			e  record.FeedbackEntry
			ts string
		)
		if err := rows.Scan(&ts, &e.WorkflowID, &e.RunID, &e.Score, &e.Feedback); err != nil {
			return nil, fmt.Errorf("list feedback %s: scan: %w", workflowID, err)
		}
		if e.TS, err = parseStoredTime(ts); err != nil {
			return nil, fmt.Errorf("list feedback %s: %w", workflowID, err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list feedback %s: %w", workflowID, err)
	}
	return out, nil
}

// AppendImprovement records an applied self-improvement change set.
func (s *Store) AppendImprovement(ctx context.Context, ts time.Time, workflowID string, applied []string, backupPath, defPath string) error {
	appliedJSON, err := json.Marshal(applied)
	if err != nil {
		return fmt.Errorf("append improvement %s: marshal: %w", workflowID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO improvements (ts, workflow_id, applied, backup_path, def_path)
		VALUES (?, ?, ?, ?, ?)
	`, ts.UTC().Format(timeFormat), workflowID, string(appliedJSON), backupPath, defPath)
	if err != nil {
		return fmt.Errorf("append improvement %s: %w", workflowID, err)
	}
	return nil
}
