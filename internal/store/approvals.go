package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stagehand-dev/stagehand/internal/record"
)

// CreateApproval inserts a new approval record into the partition matching
// its status (always pending for freshly created records). Fails if the id
// already exists in any partition.
func (s *Store) CreateApproval(ctx context.Context, a *record.Approval) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("create approval %s: marshal: %w", a.ApprovalID, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO approvals (approval_id, state, created_at, record)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(approval_id) DO NOTHING
	`,
		a.ApprovalID,
		string(a.Status),
		a.CreatedAt.UTC().Format(timeFormat),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("create approval %s: %w", a.ApprovalID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create approval %s: rows affected: %w", a.ApprovalID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("create approval %s: id already exists", a.ApprovalID)
	}
	return nil
}

// LocateApproval finds the partition currently holding an approval id and
// returns the state with the record. Returns ("", nil, nil) when the id is
// absent from every partition.
func (s *Store) LocateApproval(ctx context.Context, approvalID string) (record.ApprovalState, *record.Approval, error) {
	var (
		state string
		body  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT state, record FROM approvals WHERE approval_id = ?
	`, approvalID).Scan(&state, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("locate approval %s: %w", approvalID, err)
	}

	var a record.Approval
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return "", nil, fmt.Errorf("locate approval %s: unmarshal: %w", approvalID, err)
	}
	return record.ApprovalState(state), &a, nil
}

// MoveApproval atomically rewrites an approval record and relocates it to
// the partition matching its new status. The record body and the partition
// column change in one statement inside a transaction, so an external
// reader always finds the id in exactly one partition.
func (s *Store) MoveApproval(ctx context.Context, a *record.Approval) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("move approval %s: marshal: %w", a.ApprovalID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("move approval %s: begin tx: %w", a.ApprovalID, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE approvals SET state = ?, record = ? WHERE approval_id = ?
	`, string(a.Status), string(body), a.ApprovalID)
	if err != nil {
		return fmt.Errorf("move approval %s: update: %w", a.ApprovalID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("move approval %s: rows affected: %w", a.ApprovalID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("move approval %s: record not found", a.ApprovalID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("move approval %s: commit: %w", a.ApprovalID, err)
	}
	return nil
}

// ListApprovals returns every record in one partition, oldest first.
func (s *Store) ListApprovals(ctx context.Context, state record.ApprovalState) ([]*record.Approval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM approvals
		WHERE state = ?
		ORDER BY created_at ASC, approval_id ASC
	`, string(state))
	if err != nil {
		return nil, fmt.Errorf("list approvals %s: %w", state, err)
	}
	defer rows.Close()

	var out []*record.Approval
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("list approvals %s: scan: %w", state, err)
		}
		var a record.Approval
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			return nil, fmt.Errorf("list approvals %s: unmarshal: %w", state, err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list approvals %s: %w", state, err)
	}
	return out, nil
}

// CountApprovals returns the number of records per partition for every
// partition, including empty ones.
func (s *Store) CountApprovals(ctx context.Context) (map[record.ApprovalState]int, error) {
	counts := make(map[record.ApprovalState]int, len(record.ApprovalStates))
	for _, state := range record.ApprovalStates {
		counts[state] = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT state, COUNT(*) FROM approvals GROUP BY state
	`)
	if err != nil {
		return nil, fmt.Errorf("count approvals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("count approvals: scan: %w", err)
		}
		counts[record.ApprovalState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count approvals: %w", err)
	}
	return counts, nil
}

// EnqueueRevision upserts a revision request keyed by approval id. A
// repeated rejection of the same approval replaces the queued request
// rather than duplicating it.
func (s *Store) EnqueueRevision(ctx context.Context, r *record.RevisionRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revision_queue
		(approval_id, brand_id, run_id, artifact_path, rejection_note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(approval_id) DO UPDATE SET
			rejection_note = excluded.rejection_note,
			created_at = excluded.created_at
	`,
		r.ApprovalID,
		r.BrandID,
		r.RunID,
		r.ArtifactPath,
		r.RejectionNote,
		r.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("enqueue revision %s: %w", r.ApprovalID, err)
	}
	return nil
}

// GetRevision returns the queued revision request for an approval id, or
// (nil, nil) when none is queued.
func (s *Store) GetRevision(ctx context.Context, approvalID string) (*record.RevisionRequest, error) {
	var (
		r         record.RevisionRequest
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT approval_id, brand_id, run_id, artifact_path, rejection_note, created_at
		FROM revision_queue
		WHERE approval_id = ?
	`, approvalID).Scan(&r.ApprovalID, &r.BrandID, &r.RunID, &r.ArtifactPath, &r.RejectionNote, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get revision %s: %w", approvalID, err)
	}

	if r.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, fmt.Errorf("get revision %s: %w", approvalID, err)
	}
	return &r, nil
}
