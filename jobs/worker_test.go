package jobs_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rosterline/rosterline/errors"
	rltest "github.com/rosterline/rosterline/internal/testing"
	"github.com/rosterline/rosterline/jobs"
)

// stubRunner drives jobs to completion or failure without a real pipeline.
type stubRunner struct {
	queue *jobs.Queue
	fail  error
	runs  atomic.Int32
}

func (r *stubRunner) Run(ctx context.Context, job *jobs.Job) error {
	r.runs.Add(1)
	if r.fail != nil {
		return r.fail
	}
	job.Complete(3, 0, nil)
	return r.queue.UpdateJob(job)
}

func newTestPool(t *testing.T, fail error) (*jobs.WorkerPool, *stubRunner) {
	t.Helper()

	db := rltest.CreateMigratedTestDB(t)
	queue := jobs.NewQueue(db)
	runner := &stubRunner{queue: queue, fail: fail}

	pool := jobs.NewWorkerPool(context.Background(), db, jobs.WorkerPoolConfig{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
	}, runner, zap.NewNop().Sugar())
	t.Cleanup(pool.Stop)

	return pool, runner
}

func waitForStatus(t *testing.T, queue *jobs.Queue, id string, want jobs.Status) *jobs.Job {
	t.Helper()

	var got *jobs.Job
	require.Eventually(t, func() bool {
		job, err := queue.GetJob(id)
		if err != nil {
			return false
		}
		got = job
		return job.Status == want
	}, 3*time.Second, 10*time.Millisecond, "job %s never reached %s", id, want)
	return got
}

func TestWorkerPool_ProcessesJobToCompletion(t *testing.T) {
	pool, runner := newTestPool(t, nil)
	queue := pool.GetQueue()

	job := jobs.NewJob("roster.xlsx", "roster.xlsx")
	require.NoError(t, queue.Enqueue(job))

	pool.Start()

	done := waitForStatus(t, queue, job.ID, jobs.StatusCompleted)
	assert.Equal(t, 3, done.ProcessedRows)
	assert.Equal(t, int32(1), runner.runs.Load())
}

func TestWorkerPool_FailsJobOnRunnerError(t *testing.T) {
	pool, _ := newTestPool(t, errors.New("workbook not found"))
	queue := pool.GetQueue()

	job := jobs.NewJob("roster.xlsx", "roster.xlsx")
	require.NoError(t, queue.Enqueue(job))

	pool.Start()

	failed := waitForStatus(t, queue, job.ID, jobs.StatusFailed)
	assert.Contains(t, failed.ErrorMessage, "workbook not found")
	require.NotNil(t, failed.CompletedAt)
}

func TestWorkerPool_RecoversOrphanedJobs(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	queue := pool.GetQueue()

	// Simulate a crash: a job stuck in processing with no worker attached.
	orphan := jobs.NewJob("orphan.xlsx", "orphan.xlsx")
	orphan.Start()
	require.NoError(t, queue.Store().CreateJob(orphan))

	pool.Start()

	waitForStatus(t, queue, orphan.ID, jobs.StatusCompleted)
}

func TestWorkerPool_MissingJobRecordDoesNotFailOthers(t *testing.T) {
	pool, runner := newTestPool(t, nil)
	queue := pool.GetQueue()

	// Runner error carrying ErrJobNotFound must not mark anything failed.
	runner.fail = errors.Wrap(jobs.ErrJobNotFound, "record vanished")

	job := jobs.NewJob("roster.xlsx", "roster.xlsx")
	require.NoError(t, queue.Enqueue(job))

	pool.Start()

	require.Eventually(t, func() bool {
		return runner.runs.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)

	// The claimed job stays processing rather than being failed.
	got, err := queue.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusProcessing, got.Status)
}

func TestWorkerPool_StopIsIdempotent(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	pool.Start()
	pool.Stop()
	pool.Stop()
}

func TestWorkerPool_Workers(t *testing.T) {
	pool, _ := newTestPool(t, nil)
	assert.Equal(t, 1, pool.Workers())
}
