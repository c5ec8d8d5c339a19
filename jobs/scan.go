package jobs

import (
	"database/sql"
	"fmt"
)

// JobScanArgs holds the nullable column targets needed when scanning a job
// row from the database.
type JobScanArgs struct {
	CurrentStep  sql.NullString
	ErrorDetails sql.NullString
	ErrorMessage sql.NullString
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
}

// GetJobScanArgs returns a JobScanArgs struct ready for scanning
func GetJobScanArgs() *JobScanArgs {
	return &JobScanArgs{}
}

// GetJobScanTargets returns scan target pointers for the job and scan args,
// in the order expected by the standard job SELECT query
func GetJobScanTargets(job *Job, args *JobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.Filename,
		&job.FilePath,
		&job.Status,
		&args.CurrentStep,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.ErrorRows,
		&args.ErrorDetails,
		&args.ErrorMessage,
		&args.StartedAt,
		&args.CompletedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
}

// ProcessJobScanArgs copies the scanned nullable values into the job struct.
func ProcessJobScanArgs(job *Job, args *JobScanArgs) error {
	if args.CurrentStep.Valid {
		job.CurrentStep = Step(args.CurrentStep.String)
	}
	if args.ErrorDetails.Valid {
		details, err := UnmarshalErrorDetails(args.ErrorDetails.String)
		if err != nil {
			return fmt.Errorf("failed to unmarshal error details for job %s: %w", job.ID, err)
		}
		job.ErrorDetails = details
	}
	if args.ErrorMessage.Valid {
		job.ErrorMessage = args.ErrorMessage.String
	}
	if args.StartedAt.Valid {
		job.StartedAt = &args.StartedAt.Time
	}
	if args.CompletedAt.Valid {
		job.CompletedAt = &args.CompletedAt.Time
	}
	return nil
}

// ScanJobFromRow scans a single job from a sql.Row
func ScanJobFromRow(row *sql.Row, job *Job) error {
	args := GetJobScanArgs()
	targets := GetJobScanTargets(job, args)

	if err := row.Scan(targets...); err != nil {
		return err
	}

	return ProcessJobScanArgs(job, args)
}

// ScanJobFromRows scans a single job from sql.Rows (for use in loops)
func ScanJobFromRows(rows *sql.Rows, job *Job) error {
	args := GetJobScanArgs()
	targets := GetJobScanTargets(job, args)

	if err := rows.Scan(targets...); err != nil {
		return err
	}

	return ProcessJobScanArgs(job, args)
}

// StandardJobSelectColumns returns the standard column list for job SELECT queries
func StandardJobSelectColumns() string {
	return `id, filename, file_path, status, current_step,
		total_rows, processed_rows, error_rows,
		error_details, error_message,
		started_at, completed_at, created_at, updated_at`
}
