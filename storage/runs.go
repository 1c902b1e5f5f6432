package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CreateImportRun records the start of a background import and returns
// the run ID for later polling.
func (s *Store) CreateImportRun(ctx context.Context, channelRef string, requested int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, channel_ref, requested, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, channelRef, requested, RunStatusRunning, time.Now())
	if err != nil {
		return "", &StorageError{Op: "save", Entity: "run", Err: err}
	}
	return id, nil
}

// CompleteImportRun marks a run finished and stores its summary JSON.
func (s *Store) CompleteImportRun(ctx context.Context, id, summaryJSON string) error {
	return s.finishRun(ctx, id, RunStatusCompleted, summaryJSON, "")
}

// FailImportRun marks a run failed with a systemic error message.
func (s *Store) FailImportRun(ctx context.Context, id, errMsg string) error {
	return s.finishRun(ctx, id, RunStatusFailed, "", errMsg)
}

func (s *Store) finishRun(ctx context.Context, id, status, summaryJSON, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_runs SET status = ?, summary_json = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		status, summaryJSON, errMsg, time.Now(), id)
	if err != nil {
		return &StorageError{Op: "update", Entity: "run", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StorageError{Op: "update", Entity: "run", Err: ErrNotFound}
	}
	return nil
}

// GetImportRun fetches a run by ID. Returns ErrNotFound (wrapped) if
// absent.
func (s *Store) GetImportRun(ctx context.Context, id string) (*ImportRun, error) {
	r := &ImportRun{}
	var finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_ref, requested, status, summary_json, error,
		 started_at, finished_at
		 FROM import_runs WHERE id = ?`, id).Scan(
		&r.ID, &r.ChannelRef, &r.Requested, &r.Status, &r.SummaryJSON,
		&r.Error, &r.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StorageError{Op: "get", Entity: "run", Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Entity: "run", Err: err}
	}
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.Time
	}
	return r, nil
}
