package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rosterline/rosterline/entity"
	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/ingest/rules"
	"github.com/rosterline/rosterline/ingest/sheet"
	"github.com/rosterline/rosterline/jobs"
)

const (
	sheetEmployees = "Employees"
	sheetProjects  = "Projects"
)

var requiredSheets = []string{sheetEmployees, sheetProjects}

var requiredColumns = map[string][]string{
	sheetEmployees: {"employee_id", "salary"},
	sheetProjects:  {"project_id"},
}

// Pipeline runs one ingestion job end to end: read the staged workbook,
// validate and transform each row, upsert the survivors. It implements
// jobs.Runner; errors it returns are job-fatal and resolved by the worker,
// while individual bad rows are recorded on the job and never escape.
type Pipeline struct {
	queue     *jobs.Queue
	employees *entity.EmployeeStore
	projects  *entity.ProjectStore
	ruleFile  string
	uploadDir string
	logger    *zap.SugaredLogger

	// now is swapped in tests to pin tenure calculations.
	now func() time.Time
}

// NewPipeline creates a pipeline bound to the job queue and entity stores.
func NewPipeline(database *sql.DB, queue *jobs.Queue, ruleFile, uploadDir string, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		queue:     queue,
		employees: entity.NewEmployeeStore(database),
		projects:  entity.NewProjectStore(database),
		ruleFile:  ruleFile,
		uploadDir: uploadDir,
		logger:    logger,
		now:       time.Now,
	}
}

// rowResult is the outcome of validating and transforming one row. Exactly
// one of employee/project is set on success; errMsg is set on failure.
// Results are produced row by row and folded once, so no accumulator is
// shared across rows.
type rowResult struct {
	sheet    string
	row      int
	employee *entity.Employee
	project  *entity.Project
	errMsg   string
}

// Run executes one claimed job. The queue has already transitioned it to
// processing/reading; Run carries it to completed. Any returned error means
// the job as a whole cannot proceed and the worker records it as failed.
func (p *Pipeline) Run(ctx context.Context, claimed *jobs.Job) error {
	job, err := p.queue.GetJob(claimed.ID)
	if err != nil {
		return err
	}

	rs, err := rules.Load(p.ruleFile)
	if err != nil {
		return errors.Wrap(err, "failed to load transformation rules")
	}

	path := p.stagedPath(job)
	wb, err := sheet.Open(path)
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := wb.ValidateRequiredSheets(requiredSheets); err != nil {
		return err
	}
	for _, name := range requiredSheets {
		if err := wb.ValidateRequiredColumns(name, requiredColumns[name]); err != nil {
			return err
		}
	}

	empRecords, err := wb.ReadSheet(sheetEmployees)
	if err != nil {
		return err
	}
	projRecords, err := wb.ReadSheet(sheetProjects)
	if err != nil {
		return err
	}

	job.TotalRows = len(empRecords) + len(projRecords)
	job.SetStep(jobs.StepValidating)
	if err := p.queue.UpdateJob(job); err != nil {
		return err
	}

	results := p.evaluateRows(empRecords, projRecords, rs)

	job.SetStep(jobs.StepPersisting)
	if err := p.queue.UpdateJob(job); err != nil {
		return err
	}

	processed, details, err := p.persist(ctx, results)
	if err != nil {
		return err
	}

	job.Complete(processed, len(details), details)
	if err := p.queue.UpdateJob(job); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		p.logger.Warnw("Failed to remove staged workbook",
			"job_id", job.ID,
			"path", path,
			"error", err)
	}

	p.logger.Infow("Ingestion job completed",
		"job_id", job.ID,
		"filename", job.Filename,
		"total_rows", job.TotalRows,
		"processed_rows", processed,
		"error_rows", len(details))

	return nil
}

// evaluateRows validates and transforms every row of both sheets in a fixed
// order: Employees first, then Projects, sheet row order within each.
func (p *Pipeline) evaluateRows(empRecords, projRecords []sheet.Record, rs *rules.RuleSet) []rowResult {
	today := p.now().UTC()
	results := make([]rowResult, 0, len(empRecords)+len(projRecords))

	for _, rec := range empRecords {
		results = append(results, p.evaluateEmployee(rec, rs, today))
	}
	for _, rec := range projRecords {
		results = append(results, p.evaluateProject(rec, rs))
	}
	return results
}

func (p *Pipeline) evaluateEmployee(rec sheet.Record, rs *rules.RuleSet, today time.Time) rowResult {
	res := rowResult{sheet: sheetEmployees, row: rec.Row}
	if ok, msg := ValidateEmployee(rec); !ok {
		res.errMsg = msg
		return res
	}
	e, err := TransformEmployee(rec, rs, today)
	if err != nil {
		res.errMsg = err.Error()
		return res
	}
	res.employee = &e
	return res
}

func (p *Pipeline) evaluateProject(rec sheet.Record, rs *rules.RuleSet) rowResult {
	res := rowResult{sheet: sheetProjects, row: rec.Row}
	if ok, msg := ValidateProject(rec); !ok {
		res.errMsg = msg
		return res
	}
	proj, err := TransformProject(rec, rs)
	if err != nil {
		res.errMsg = err.Error()
		return res
	}
	res.project = &proj
	return res
}

// persist upserts every transformed record, each in its own transaction, so
// one bad row never rolls back its neighbors. Validation failures carried in
// the results and upsert failures both land in the detail list; only context
// cancellation aborts the loop.
func (p *Pipeline) persist(ctx context.Context, results []rowResult) (int, []jobs.ErrorDetail, error) {
	processed := 0
	var details []jobs.ErrorDetail

	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return processed, details, err
		}

		if res.errMsg != "" {
			details = append(details, jobs.ErrorDetail{Sheet: res.sheet, Row: res.row, Message: res.errMsg})
			continue
		}

		var err error
		switch {
		case res.employee != nil:
			_, err = p.employees.Upsert(ctx, res.employee)
		case res.project != nil:
			_, err = p.projects.Upsert(ctx, res.project)
		}
		if err != nil {
			if ctx.Err() != nil {
				return processed, details, ctx.Err()
			}
			p.logger.Warnw("Failed to persist row",
				"sheet", res.sheet,
				"row", res.row,
				"error", err)
			details = append(details, jobs.ErrorDetail{Sheet: res.sheet, Row: res.row, Message: err.Error()})
			continue
		}
		processed++
	}

	return processed, details, nil
}

// stagedPath resolves the job's staged workbook relative to the upload
// directory. Absolute paths recorded on the job are honored as-is.
func (p *Pipeline) stagedPath(job *jobs.Job) string {
	if filepath.IsAbs(job.FilePath) {
		return job.FilePath
	}
	return filepath.Join(p.uploadDir, job.FilePath)
}
