package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetIdempotency returns the run id registered under key, or "" when the
// key is unknown. The engine treats a hit as advisory and re-validates the
// referenced run's persisted status before trusting it.
func (s *Store) GetIdempotency(ctx context.Context, key string) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM idempotency WHERE key = ?
	`, key).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get idempotency %s: %w", key, err)
	}
	return runID, nil
}

// SetIdempotency registers runID under key with create-if-absent semantics.
// Returns the winning run id and whether this call inserted it. Two
// concurrent callers racing the same key converge on one winner; the loser
// gets inserted=false and the winner's run id back.
func (s *Store) SetIdempotency(ctx context.Context, key, runID string) (winner string, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("set idempotency %s: begin tx: %w", key, err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO idempotency (key, run_id)
		VALUES (?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, runID)
	if err != nil {
		return "", false, fmt.Errorf("set idempotency %s: insert: %w", key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("set idempotency %s: rows affected: %w", key, err)
	}

	if rowsAffected > 0 {
		winner = runID
		inserted = true
	} else {
		// Conflict - another run already owns this key; fetch the winner.
		err = tx.QueryRowContext(ctx, `
			SELECT run_id FROM idempotency WHERE key = ?
		`, key).Scan(&winner)
		if err != nil {
			return "", false, fmt.Errorf("set idempotency %s: select existing: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("set idempotency %s: commit: %w", key, err)
	}

	return winner, inserted, nil
}
