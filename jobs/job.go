// Package jobs provides the durable ingestion job lifecycle: the job record,
// its SQLite store, the pending-job queue, and the worker pool that drives
// ingestion runs.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/rosterline/rosterline/errors"
)

// Status represents the current state of an ingestion job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Step represents the phase a processing job is in. Only meaningful while
// the job status is processing, except StepCompleted which is recorded on
// successful completion.
type Step string

const (
	StepReading    Step = "reading"
	StepValidating Step = "validating"
	StepPersisting Step = "persisting"
	StepCompleted  Step = "completed"
)

// ErrorDetail records one row-level failure, attributable to a single
// spreadsheet row. Row errors are data, not Go errors: they never fail a job.
type ErrorDetail struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Job tracks one ingestion run for one uploaded workbook.
//
// Lifecycle: pending → processing(reading → validating → persisting)
// → completed | failed. Completed and failed are terminal; the store refuses
// any further mutation once a job reaches either.
type Job struct {
	ID            string        `json:"id"`
	Filename      string        `json:"filename"`
	FilePath      string        `json:"file_path"` // staged file, relative to the upload dir
	Status        Status        `json:"status"`
	CurrentStep   Step          `json:"current_step,omitempty"`
	TotalRows     int           `json:"total_rows"`
	ProcessedRows int           `json:"processed_rows"`
	ErrorRows     int           `json:"error_rows"`
	ErrorDetails  []ErrorDetail `json:"error_details,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewJob creates a pending job for a staged workbook.
func NewJob(filename, filePath string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		FilePath:  filePath,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Start marks the job as processing in the reading step.
func (j *Job) Start() {
	now := time.Now().UTC()
	j.Status = StatusProcessing
	j.CurrentStep = StepReading
	j.StartedAt = &now
	j.UpdatedAt = now
}

// SetStep advances the job to the given processing step.
func (j *Job) SetStep(step Step) {
	j.CurrentStep = step
	j.UpdatedAt = time.Now().UTC()
}

// Complete marks the job as completed with its final per-row counters.
// A job completes regardless of how many individual rows failed; only
// ErrorRows distinguishes a clean run from a degraded one.
func (j *Job) Complete(processed, errored int, details []ErrorDetail) {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.CurrentStep = StepCompleted
	j.ProcessedRows = processed
	j.ErrorRows = errored
	if len(details) > 0 {
		j.ErrorDetails = details
	} else {
		j.ErrorDetails = nil
	}
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job as failed with an error message
func (j *Job) Fail(err error) {
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.ErrorMessage = err.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarshalErrorDetails converts the detail slice to a JSON string for storage.
// An empty slice marshals to "" so the column stays NULL.
func MarshalErrorDetails(details []ErrorDetail) (string, error) {
	if len(details) == 0 {
		return "", nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal error details")
	}
	return string(data), nil
}

// UnmarshalErrorDetails converts a stored JSON string back to a detail slice.
func UnmarshalErrorDetails(data string) ([]ErrorDetail, error) {
	if data == "" {
		return nil, nil
	}
	var details []ErrorDetail
	if err := json.Unmarshal([]byte(data), &details); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal error details")
	}
	return details, nil
}
