package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"stowage/internal/models"
)

const jobColumns = "id, status, file_id, download_url, error, created_at, updated_at"

// EnqueueJob records a new NotStarted job for the given URL.
func (s *Store) EnqueueJob(ctx context.Context, id, downloadURL string) (*models.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("job id is required")
	}
	if strings.TrimSpace(downloadURL) == "" {
		return nil, fmt.Errorf("download url is required")
	}
	now := time.Now().UTC()
	job := &models.Job{
		ID:          id,
		Status:      models.JobNotStarted,
		DownloadURL: downloadURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO job (id, status, download_url, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		job.ID, string(job.Status), job.DownloadURL, formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns the job with the given id, or nil when none exists.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM job WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimNextJob atomically moves the oldest NotStarted job to Running and
// returns it. It returns nil when no job is waiting.
func (s *Store) ClaimNextJob(ctx context.Context) (claimed *models.Job, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM job WHERE status = ? ORDER BY created_at ASC, rowid ASC LIMIT 1",
		string(models.JobNotStarted),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, tx.Rollback()
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"UPDATE job SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(models.JobRunning), formatTime(now), job.ID, string(models.JobNotStarted),
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		err = nil
		return nil, tx.Rollback()
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	job.Status = models.JobRunning
	job.UpdatedAt = now
	return job, nil
}

// CompleteJob marks a Running job Completed and links it to an existing file.
func (s *Store) CompleteJob(ctx context.Context, id, fileID string) (err error) {
	if strings.TrimSpace(fileID) == "" {
		return fmt.Errorf("file id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM file WHERE id = ?", fileID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		err = fmt.Errorf("file %s: %w", fileID, ErrNotFound)
		return err
	}

	if err = transitionJob(ctx, tx, id, models.JobCompleted, fileID, ""); err != nil {
		return err
	}
	return tx.Commit()
}

// FailJob marks a non-terminal job Failed with a non-empty error message.
func (s *Store) FailJob(ctx context.Context, id, message string) (err error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "unknown error"
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = transitionJob(ctx, tx, id, models.JobFailed, "", message); err != nil {
		return err
	}
	return tx.Commit()
}

// FailStaleJobs marks every Running job Failed. It is used at startup to
// settle jobs left behind by an interrupted process.
func (s *Store) FailStaleJobs(ctx context.Context, message string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE job SET status = ?, error = ?, updated_at = ? WHERE status = ?",
		string(models.JobFailed), message, formatTime(time.Now().UTC()), string(models.JobRunning),
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// JobCounts returns the number of jobs per status. Every status is present.
func (s *Store) JobCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(models.JobStatuses()))
	for _, status := range models.JobStatuses() {
		counts[string(status)] = 0
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM job GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// transitionJob applies a status change inside tx, guarded by the allowed
// source states for the target.
func transitionJob(ctx context.Context, tx *sql.Tx, id string, to models.JobStatus, fileID, message string) error {
	sources := models.SourcesFor(to)
	if len(sources) == 0 {
		return fmt.Errorf("%w: nothing transitions to %s", ErrInvalidTransition, to)
	}

	placeholders := make([]string, len(sources))
	args := []any{string(to), nullIfEmpty(fileID), nullIfEmpty(message), formatTime(time.Now().UTC()), id}
	for i, source := range sources {
		placeholders[i] = "?"
		args = append(args, string(source))
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE job SET status = ?, file_id = COALESCE(?, file_id), error = ?, updated_at = ? WHERE id = ? AND status IN ("+
			strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM job WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, to)
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*models.Job, error) {
	var (
		job                  models.Job
		status               string
		fileID, message      sql.NullString
		createdAt, updatedAt string
	)
	if err := scanner.Scan(&job.ID, &status, &fileID, &job.DownloadURL, &message, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.Status = models.JobStatus(status)
	job.FileID = fileID.String
	job.Error = message.String

	var err error
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse job created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse job updated_at: %w", err)
	}
	return &job, nil
}
