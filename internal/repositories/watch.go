package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vidmark/internal/models"
	"github.com/desertthunder/vidmark/internal/shared"
)

// WatchRepository persists watched-job snapshots in the watched_jobs table.
type WatchRepository struct {
	db *sql.DB
}

// NewWatchRepository creates a WatchRepository backed by the given database.
func NewWatchRepository(db *sql.DB) *WatchRepository {
	return &WatchRepository{db: db}
}

// Upsert inserts or replaces the snapshot for the event's job.
func (r *WatchRepository) Upsert(ev models.ProgressEvent) error {
	if ev.JobID == "" {
		return fmt.Errorf("%w: job id required", shared.ErrInvalidArgument)
	}

	query := `
		INSERT INTO watched_jobs (job_id, status, progress, current_unit, total_units, message, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			current_unit = excluded.current_unit,
			total_units = excluded.total_units,
			message = excluded.message,
			observed_at = excluded.observed_at,
			updated_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.Exec(query,
		ev.JobID, string(ev.Status), ev.Progress, ev.CurrentVideo, ev.TotalVideos, ev.Message, ev.ObservedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert watched job: %w", err)
	}
	return nil
}

// Get retrieves the snapshot for a job id.
// Returns [shared.ErrJobNotFound] when the job is not persisted.
func (r *WatchRepository) Get(jobID string) (models.ProgressEvent, error) {
	query := `
		SELECT job_id, status, progress, current_unit, total_units, message, observed_at
		FROM watched_jobs WHERE job_id = ?
	`
	row := r.db.QueryRow(query, jobID)

	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ProgressEvent{}, fmt.Errorf("%w: %s", shared.ErrJobNotFound, jobID)
		}
		return models.ProgressEvent{}, fmt.Errorf("failed to get watched job: %w", err)
	}
	return ev, nil
}

// List returns all persisted snapshots, oldest observation first.
func (r *WatchRepository) List() ([]models.ProgressEvent, error) {
	query := `
		SELECT job_id, status, progress, current_unit, total_units, message, observed_at
		FROM watched_jobs ORDER BY observed_at ASC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list watched jobs: %w", err)
	}
	defer rows.Close()

	var events []models.ProgressEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watched job: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watched jobs: %w", err)
	}
	return events, nil
}

// Delete removes a job's persisted snapshot. Unknown ids are not an error.
func (r *WatchRepository) Delete(jobID string) error {
	if _, err := r.db.Exec("DELETE FROM watched_jobs WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("failed to delete watched job: %w", err)
	}
	return nil
}

// Sync makes the table mirror the given snapshot map in one transaction:
// every entry is upserted and rows for evicted jobs are removed.
func (r *WatchRepository) Sync(snapshot map[string]models.ProgressEvent) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO watched_jobs (job_id, status, progress, current_unit, total_units, message, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			current_unit = excluded.current_unit,
			total_units = excluded.total_units,
			message = excluded.message,
			observed_at = excluded.observed_at,
			updated_at = CURRENT_TIMESTAMP
	`
	for _, ev := range snapshot {
		if ev.JobID == "" {
			continue
		}
		if _, err := tx.Exec(upsert,
			ev.JobID, string(ev.Status), ev.Progress, ev.CurrentVideo, ev.TotalVideos, ev.Message, ev.ObservedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to upsert watched job: %w", err)
		}
	}

	rows, err := tx.Query("SELECT job_id FROM watched_jobs")
	if err != nil {
		return fmt.Errorf("failed to list persisted jobs: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan job id: %w", err)
		}
		if _, ok := snapshot[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate persisted jobs: %w", err)
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.Exec("DELETE FROM watched_jobs WHERE job_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete evicted job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync transaction: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanEvent.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (models.ProgressEvent, error) {
	var ev models.ProgressEvent
	var status string
	var observedMS int64

	if err := s.Scan(&ev.JobID, &status, &ev.Progress, &ev.CurrentVideo, &ev.TotalVideos, &ev.Message, &observedMS); err != nil {
		return models.ProgressEvent{}, err
	}

	ev.Status = models.JobStatus(status)
	ev.ObservedAt = time.UnixMilli(observedMS).UTC()
	return ev, nil
}
