package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rosterline/rosterline/entity"
	"github.com/rosterline/rosterline/errors"
	rltest "github.com/rosterline/rosterline/internal/testing"
	"github.com/rosterline/rosterline/jobs"
)

// sheetRows pairs a sheet name with its cell grid, row 1 being headers.
// Ordered so the fixture's sheet layout is deterministic.
type sheetRows struct {
	name string
	rows [][]any
}

func writeWorkbook(t *testing.T, path string, sheets []sheetRows) {
	t.Helper()

	f := excelize.NewFile()
	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(s.name, cell, v))
			}
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

type pipelineFixture struct {
	pipeline  *Pipeline
	queue     *jobs.Queue
	employees *entity.EmployeeStore
	projects  *entity.ProjectStore
	uploadDir string
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	database := rltest.CreateMigratedTestDB(t)
	dir := t.TempDir()

	ruleFile := filepath.Join(dir, "config.csv")
	require.NoError(t, os.WriteFile(ruleFile, []byte(testRules), 0o644))

	uploadDir := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))

	queue := jobs.NewQueue(database)
	p := NewPipeline(database, queue, ruleFile, uploadDir, zap.NewNop().Sugar())
	p.now = func() time.Time { return time.Date(2025, 11, 17, 0, 0, 0, 0, time.UTC) }

	return &pipelineFixture{
		pipeline:  p,
		queue:     queue,
		employees: entity.NewEmployeeStore(database),
		projects:  entity.NewProjectStore(database),
		uploadDir: uploadDir,
	}
}

// enqueueAndClaim stages a job for a staged workbook name and claims it the
// way a worker would.
func (fx *pipelineFixture) enqueueAndClaim(t *testing.T, staged string) *jobs.Job {
	t.Helper()

	job := jobs.NewJob("roster.xlsx", staged)
	require.NoError(t, fx.queue.Enqueue(job))

	claimed, err := fx.queue.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, job.ID, claimed.ID)
	return claimed
}

func rosterSheets() []sheetRows {
	hired := time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC)
	return []sheetRows{
		{
			name: "Employees",
			rows: [][]any{
				{"employee_id", "name", "department_code", "salary", "hire_date"},
				{"E001", "Ada Lovelace", "DEV", 78289.5, hired},
				{nil, "No Identity", "HR", 50000.0, nil},
				{"E003", "Grace Hopper", "HR", 91000.0, nil},
			},
		},
		{
			name: "Projects",
			rows: [][]any{
				{"project_id", "project_name", "budget_usd", "status"},
				{"P001", "Apollo", 125000.0, "active"},
				{"P002", "Gemini", 60000.0, "done"},
			},
		},
	}
}

func TestPipelineRun_CompletesWithRowErrors(t *testing.T) {
	fx := newPipelineFixture(t)
	staged := "roster_abc123.xlsx"
	path := filepath.Join(fx.uploadDir, staged)
	writeWorkbook(t, path, rosterSheets())

	claimed := fx.enqueueAndClaim(t, staged)
	require.NoError(t, fx.pipeline.Run(context.Background(), claimed))

	job, err := fx.queue.GetJob(claimed.ID)
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, jobs.StepCompleted, job.CurrentStep)
	assert.Equal(t, 5, job.TotalRows)
	assert.Equal(t, 4, job.ProcessedRows)
	assert.Equal(t, 1, job.ErrorRows)
	assert.NotNil(t, job.CompletedAt)

	require.Len(t, job.ErrorDetails, 1)
	detail := job.ErrorDetails[0]
	assert.Equal(t, "Employees", detail.Sheet)
	assert.Equal(t, 3, detail.Row)
	assert.Equal(t, "employee_id is required", detail.Message)

	ctx := context.Background()
	e, err := fx.employees.GetByEmployeeID(ctx, "E001")
	require.NoError(t, err)
	require.NotNil(t, e.DepartmentName)
	assert.Equal(t, "Development", *e.DepartmentName)
	require.NotNil(t, e.AnnualSalaryEUR)
	assert.Equal(t, 72026.34, *e.AnnualSalaryEUR)
	require.NotNil(t, e.TenureYears)
	assert.Equal(t, 2, *e.TenureYears)

	p, err := fx.projects.GetByProjectID(ctx, "P002")
	require.NoError(t, err)
	require.NotNil(t, p.Status)
	assert.Equal(t, "done", *p.Status)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "staged workbook is removed after a completed run")
}

func TestPipelineRun_MissingSheetFailsJob(t *testing.T) {
	fx := newPipelineFixture(t)
	staged := "roster_noproj.xlsx"
	writeWorkbook(t, filepath.Join(fx.uploadDir, staged), []sheetRows{
		{name: "Employees", rows: [][]any{{"employee_id", "salary"}, {"E001", 1.0}}},
	})

	claimed := fx.enqueueAndClaim(t, staged)
	runErr := fx.pipeline.Run(context.Background(), claimed)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "Projects")

	// The worker resolves errors escaping a run.
	require.NoError(t, fx.queue.FailJob(claimed.ID, runErr))

	job, err := fx.queue.GetJob(claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "Projects")
	assert.Equal(t, 0, job.TotalRows, "failure precedes any row accounting")
	assert.NotNil(t, job.CompletedAt)

	count, err := fx.employees.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPipelineRun_MissingColumnFailsJob(t *testing.T) {
	fx := newPipelineFixture(t)
	staged := "roster_nosalary.xlsx"
	writeWorkbook(t, filepath.Join(fx.uploadDir, staged), []sheetRows{
		{name: "Employees", rows: [][]any{{"employee_id", "name"}, {"E001", "Ada"}}},
		{name: "Projects", rows: [][]any{{"project_id"}, {"P001"}}},
	})

	claimed := fx.enqueueAndClaim(t, staged)
	runErr := fx.pipeline.Run(context.Background(), claimed)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "salary")
}

func TestPipelineRun_MissingWorkbookFailsJob(t *testing.T) {
	fx := newPipelineFixture(t)

	claimed := fx.enqueueAndClaim(t, "vanished.xlsx")
	runErr := fx.pipeline.Run(context.Background(), claimed)
	require.Error(t, runErr)
}

func TestPipelineRun_MissingJobRecord(t *testing.T) {
	fx := newPipelineFixture(t)

	ghost := jobs.NewJob("ghost.xlsx", "ghost.xlsx")
	err := fx.pipeline.Run(context.Background(), ghost)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobs.ErrJobNotFound))
}

func TestPipelineRun_Idempotent(t *testing.T) {
	fx := newPipelineFixture(t)
	ctx := context.Background()

	staged := "roster_first.xlsx"
	writeWorkbook(t, filepath.Join(fx.uploadDir, staged), rosterSheets())
	first := fx.enqueueAndClaim(t, staged)
	require.NoError(t, fx.pipeline.Run(ctx, first))

	original, err := fx.employees.GetByEmployeeID(ctx, "E001")
	require.NoError(t, err)

	// Re-ingest the same roster; upserts key on the business identifier.
	staged = "roster_second.xlsx"
	writeWorkbook(t, filepath.Join(fx.uploadDir, staged), rosterSheets())
	second := fx.enqueueAndClaim(t, staged)
	require.NoError(t, fx.pipeline.Run(ctx, second))

	count, err := fx.employees.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "second run updates rather than duplicates")

	reingested, err := fx.employees.GetByEmployeeID(ctx, "E001")
	require.NoError(t, err)
	assert.Equal(t, original.ID, reingested.ID, "surrogate key survives re-ingestion")
	assert.True(t, original.CreatedAt.Equal(reingested.CreatedAt), "created_at is preserved")
	assert.False(t, reingested.UpdatedAt.Before(original.UpdatedAt))

	projCount, err := fx.projects.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, projCount)
}
