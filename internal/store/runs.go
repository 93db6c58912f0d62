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

// timeFormat is the column encoding for timestamps. RFC 3339 with
// nanoseconds sorts lexicographically, which the audit queries rely on.
const timeFormat = time.RFC3339Nano

// SaveRun upserts the whole run document in a single statement. This is the
// durability checkpoint: the engine calls it after every individual stage
// transition, so a reader never observes a running stage with no record on
// disk.
func (s *Store) SaveRun(ctx context.Context, run *record.Run) error {
	contextJSON, err := json.Marshal(run.Context)
	if err != nil {
		return fmt.Errorf("save run %s: marshal context: %w", run.RunID, err)
	}
	stagesJSON, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("save run %s: marshal stages: %w", run.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, workflow_id, idempotency_key, input, status, created_at, updated_at, context, stages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at,
			context = excluded.context,
			stages = excluded.stages
	`,
		run.RunID,
		run.WorkflowID,
		run.IdempotencyKey,
		run.Input,
		string(run.Status),
		run.CreatedAt.UTC().Format(timeFormat),
		run.UpdatedAt.UTC().Format(timeFormat),
		string(contextJSON),
		string(stagesJSON),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun loads a run by id. Returns (nil, nil) when no such run exists.
func (s *Store) GetRun(ctx context.Context, runID string) (*record.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, workflow_id, idempotency_key, input, status, created_at, updated_at, context, stages
		FROM runs
		WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRunsByWorkflow returns every run for a workflow id, oldest first.
// Used by the feedback loop to derive improvement signals from run history.
func (s *Store) ListRunsByWorkflow(ctx context.Context, workflowID string) ([]*record.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, workflow_id, idempotency_key, input, status, created_at, updated_at, context, stages
		FROM runs
		WHERE workflow_id = ?
		ORDER BY created_at ASC, run_id ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", workflowID, err)
	}
	defer rows.Close()

	var runs []*record.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs for %s: %w", workflowID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", workflowID, err)
	}
	return runs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*record.Run, error) {
	var (
		run                  record.Run
		status               string
		createdAt, updatedAt string
		contextJSON, stages  string
	)
	err := row.Scan(
		&run.RunID,
		&run.WorkflowID,
		&run.IdempotencyKey,
		&run.Input,
		&status,
		&createdAt,
		&updatedAt,
		&contextJSON,
		&stages,
	)
	if err != nil {
		return nil, err
	}

	run.Status = record.RunStatus(status)
	if run.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(contextJSON), &run.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	if err := json.Unmarshal([]byte(stages), &run.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	return &run, nil
}
