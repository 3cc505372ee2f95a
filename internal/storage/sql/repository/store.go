// Package repository persists batch job snapshots so they survive a
// screenshotd restart, mirroring internal/batch.Store's in-memory state.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrJobNotFound is returned when a job ID has no durable row.
var ErrJobNotFound = errors.New("batch job not found")

// Store mirrors internal/batch.BatchJob snapshots into a SQL table.
// It's a write-behind cache of job state, not the engine's source of
// truth: screenshotd only writes to it (through batch.Mirror's Save) and
// does not read it back on restart or resume jobs from it.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-migrated *sql.DB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection, e.g. for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a job snapshot keyed by jobID. snapshot is typically the
// JSON-marshaled form of a *batch.BatchJob.
func (s *Store) Save(ctx context.Context, jobID string, status string, snapshot []byte, updatedAt time.Time) error {
	const q = `
		INSERT INTO batch_jobs (job_id, status, snapshot, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE
		SET status = EXCLUDED.status,
		    snapshot = EXCLUDED.snapshot,
		    updated_at = EXCLUDED.updated_at`
	_, err := s.db.ExecContext(ctx, q, jobID, status, snapshot, updatedAt)
	if err != nil {
		return fmt.Errorf("save batch job %s: %w", jobID, err)
	}
	return nil
}

// Get returns the raw snapshot bytes for jobID.
func (s *Store) Get(ctx context.Context, jobID string) ([]byte, error) {
	const q = `SELECT snapshot FROM batch_jobs WHERE job_id = $1`
	var snapshot []byte
	err := s.db.QueryRowContext(ctx, q, jobID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch job %s: %w", jobID, err)
	}
	return snapshot, nil
}

// ListIDsByStatus returns job IDs currently recorded with the given status,
// oldest update first.
func (s *Store) ListIDsByStatus(ctx context.Context, status string) ([]string, error) {
	const q = `SELECT job_id FROM batch_jobs WHERE status = $1 ORDER BY updated_at`
	rows, err := s.db.QueryContext(ctx, q, status)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs with status %s: %w", status, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan batch job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteOlderThan removes snapshot rows last updated before cutoff, keeping
// the table bounded the same way internal/batch.Store evicts terminal jobs.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM batch_jobs WHERE updated_at < $1`
	res, err := s.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old batch jobs: %w", err)
	}
	return res.RowsAffected()
}

// MarshalSnapshot is a small helper so callers don't need to import
// encoding/json just to call Save.
func MarshalSnapshot(v any) ([]byte, error) {
	return json.Marshal(v)
}
