package jobs

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/rosterline/rosterline/errors"
)

// Queue dispatches pending ingestion jobs to workers. Claims are serialized
// under the queue mutex so two workers in the same process never pick up the
// same job.
type Queue struct {
	store *Store
	mu    sync.Mutex
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{store: NewStore(db)}
}

// Store returns the underlying job store.
func (q *Queue) Store() *Store {
	return q.store
}

// Enqueue adds a new pending job to the queue
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.CreateJob(job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Filename: %s", job.Filename))
		return err
	}

	return nil
}

// Dequeue claims the oldest pending job and transitions it to
// processing/reading with a start timestamp. Returns nil when no job waits.
func (q *Queue) Dequeue() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.OldestPending()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pending job")
	}
	if job == nil {
		return nil, nil
	}

	job.Start()

	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to mark job as processing")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Filename: %s", job.Filename))
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// UpdateJob persists a job's current state
func (q *Queue) UpdateJob(job *Job) error {
	if err := q.store.UpdateJob(job); err != nil {
		err = errors.Wrap(err, "failed to update job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Status: %s", job.Status))
		return err
	}
	return nil
}

// FailJob transitions a job to the terminal failed state with the error's
// message captured on the record. Rows already committed by the run are
// left untouched.
func (q *Queue) FailJob(id string, jobErr error) error {
	job, err := q.store.GetJob(id)
	if err != nil {
		return errors.Wrap(err, "failed to get job for failure")
	}
	if job.IsTerminal() {
		// Already resolved; nothing to record.
		return nil
	}

	job.Fail(jobErr)

	if err := q.store.UpdateJob(job); err != nil {
		return errors.Wrap(err, "failed to mark job as failed")
	}
	return nil
}

// Requeue returns a claimed job to pending so another worker can pick it up.
// Used when a worker shuts down mid-run; the rerun overwrites the progress
// counters and idempotent upserts make the replayed writes safe.
func (q *Queue) Requeue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Status = StatusPending
	job.CurrentStep = ""
	job.ErrorMessage = ""

	if err := q.store.UpdateJob(job); err != nil {
		return errors.Wrapf(err, "failed to requeue job %s", job.ID)
	}
	return nil
}

// Counts returns the number of pending and processing jobs.
func (q *Queue) Counts() (pending int, processing int, err error) {
	return q.store.CountByStatus()
}
