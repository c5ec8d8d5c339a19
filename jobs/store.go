package jobs

import (
	"database/sql"
	"time"

	"github.com/rosterline/rosterline/errors"
)

// ErrJobNotFound is returned when a job id does not exist in the store.
// A worker picking up a job that has since been deleted surfaces this as an
// explicit error rather than silently dropping the run.
var ErrJobNotFound = errors.New("job not found")

// ErrJobTerminal is returned when an update targets a job that already
// reached completed or failed. Terminal job records are immutable.
var ErrJobTerminal = errors.New("job is in a terminal state")

// Store handles persistence of ingestion job records
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job into the database
func (s *Store) CreateJob(job *Job) error {
	detailsJSON, err := MarshalErrorDetails(job.ErrorDetails)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ingest_jobs (
			id, filename, file_path, status, current_step,
			total_rows, processed_rows, error_rows,
			error_details, error_message,
			started_at, completed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	currentStep := sql.NullString{String: string(job.CurrentStep), Valid: job.CurrentStep != ""}
	details := sql.NullString{String: detailsJSON, Valid: detailsJSON != ""}
	errorMessage := sql.NullString{String: job.ErrorMessage, Valid: job.ErrorMessage != ""}

	_, err = s.db.Exec(query,
		job.ID,
		job.Filename,
		job.FilePath,
		job.Status,
		currentStep,
		job.TotalRows,
		job.ProcessedRows,
		job.ErrorRows,
		details,
		errorMessage,
		job.StartedAt,
		job.CompletedAt,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM ingest_jobs WHERE id = ?`

	var job Job
	err := ScanJobFromRow(s.db.QueryRow(query, id), &job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrJobNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}

	return &job, nil
}

// UpdateJob updates an existing job in the database.
//
// Jobs that already reached completed or failed are never mutated: the
// UPDATE is guarded on status, and a no-op against an existing row reports
// ErrJobTerminal. The guard makes the transition INTO a terminal state the
// last write a job record ever sees.
func (s *Store) UpdateJob(job *Job) error {
	detailsJSON, err := MarshalErrorDetails(job.ErrorDetails)
	if err != nil {
		return err
	}

	query := `
		UPDATE ingest_jobs
		SET status = ?,
		    current_step = ?,
		    total_rows = ?,
		    processed_rows = ?,
		    error_rows = ?,
		    error_details = ?,
		    error_message = ?,
		    started_at = ?,
		    completed_at = ?,
		    updated_at = ?
		WHERE id = ?
		  AND status NOT IN ('completed', 'failed')
	`

	currentStep := sql.NullString{String: string(job.CurrentStep), Valid: job.CurrentStep != ""}
	details := sql.NullString{String: detailsJSON, Valid: detailsJSON != ""}
	errorMessage := sql.NullString{String: job.ErrorMessage, Valid: job.ErrorMessage != ""}

	result, err := s.db.Exec(query,
		job.Status,
		currentStep,
		job.TotalRows,
		job.ProcessedRows,
		job.ErrorRows,
		details,
		errorMessage,
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		existing, getErr := s.GetJob(job.ID)
		if getErr != nil {
			return getErr
		}
		if existing.IsTerminal() {
			return errors.Wrapf(ErrJobTerminal, "%s is %s", job.ID, existing.Status)
		}
		return errors.Newf("job update affected no rows: %s", job.ID)
	}

	return nil
}

// ListJobs returns jobs ordered newest first, optionally filtered by status
func (s *Store) ListJobs(status *Status, limit int) ([]*Job, error) {
	var query string
	var args []interface{}

	baseQuery := `SELECT ` + StandardJobSelectColumns() + ` FROM ingest_jobs`
	if status != nil {
		query = baseQuery + ` WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = baseQuery + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "jobs")
}

// OldestPending returns the oldest pending job, or nil if none is waiting.
func (s *Store) OldestPending() (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + `
		FROM ingest_jobs
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1`

	var job Job
	err := ScanJobFromRow(s.db.QueryRow(query), &job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get oldest pending job")
	}

	return &job, nil
}

// CountByStatus returns the number of pending and processing jobs.
func (s *Store) CountByStatus() (pending int, processing int, err error) {
	query := `
		SELECT
			COUNT(CASE WHEN status = 'pending' THEN 1 END),
			COUNT(CASE WHEN status = 'processing' THEN 1 END)
		FROM ingest_jobs`

	if err := s.db.QueryRow(query).Scan(&pending, &processing); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count jobs by status")
	}
	return pending, processing, nil
}

// scanJobs is a helper that scans multiple jobs from query rows
func scanJobs(rows *sql.Rows, context string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := ScanJobFromRows(rows, &job); err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, &job)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", context)
	}

	return jobs, nil
}

// DeleteJob removes a job from the database
func (s *Store) DeleteJob(id string) error {
	query := `DELETE FROM ingest_jobs WHERE id = ?`

	result, err := s.db.Exec(query, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}

	if rows == 0 {
		return errors.Wrapf(ErrJobNotFound, "%s", id)
	}

	return nil
}

// CleanupOldJobs removes completed/failed jobs older than the specified duration
func (s *Store) CleanupOldJobs(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		DELETE FROM ingest_jobs
		WHERE status IN ('completed', 'failed')
		  AND updated_at < ?
	`

	result, err := s.db.Exec(query, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	return int(rows), nil
}
