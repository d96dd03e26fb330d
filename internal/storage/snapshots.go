package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SnapshotStatus string

const (
	SnapshotPending    SnapshotStatus = "pending"
	SnapshotProcessing SnapshotStatus = "processing"
	SnapshotCompleted  SnapshotStatus = "completed"
	SnapshotFailed     SnapshotStatus = "failed"
)

// Snapshot records one ingestion of one data type, optionally scoped to a
// state.
type Snapshot struct {
	ID           int64
	RunID        string
	SnapshotDate time.Time
	StateID      *int64
	DataType     string
	RowCount     int
	Status       SnapshotStatus
	ErrorMessage string
}

// CreateSnapshot opens a snapshot in the processing state.
func (r *SQLiteRepository) CreateSnapshot(ctx context.Context, runID string, stateID *int64, dataType string) (int64, error) {
	var sid sql.NullInt64
	if stateID != nil {
		sid = sql.NullInt64{Int64: *stateID, Valid: true}
	}
	now := r.stamp()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO data_snapshots (run_id, snapshot_date, state_id, data_type, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, now, sid, dataType, SnapshotProcessing, now, now)
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}
	return res.LastInsertId()
}

// FinishSnapshot closes a snapshot as completed, or failed when runErr is set.
func (r *SQLiteRepository) FinishSnapshot(ctx context.Context, id int64, rows int, runErr error) error {
	status, msg := SnapshotCompleted, ""
	if runErr != nil {
		status, msg = SnapshotFailed, runErr.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE data_snapshots SET status = ?, row_count = ?, error_message = ?, updated_at = ?
		WHERE id = ?`, status, rows, msg, r.stamp(), id)
	if err != nil {
		return fmt.Errorf("finish snapshot %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish snapshot %d: no such snapshot", id)
	}
	return nil
}

// SnapshotsForRun lists the snapshots written by one sync run.
func (r *SQLiteRepository) SnapshotsForRun(ctx context.Context, runID string) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, snapshot_date, state_id, data_type, row_count, status, error_message
		FROM data_snapshots WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			s    Snapshot
			date string
			sid  sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.RunID, &date, &sid, &s.DataType, &s.RowCount, &s.Status, &s.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.SnapshotDate = parseTime(date)
		if sid.Valid {
			v := sid.Int64
			s.StateID = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
