package jobs

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rosterline/rosterline/db"
	"github.com/rosterline/rosterline/errors"
)

// MaxOrphanedJobsToRecover limits how many orphaned jobs are re-queued on
// startup to prevent overwhelming the system after a crash.
const MaxOrphanedJobsToRecover = 1000

// Runner executes one ingestion job start to finish. The ingest package
// provides the implementation; the worker pool stays decoupled from the
// pipeline's domain logic.
//
// Run owns every job-record transition except the terminal failure: an error
// returned from Run is caught exactly once by the worker, which resolves the
// job to failed with the error's message.
type Runner interface {
	Run(ctx context.Context, job *Job) error
}

// WorkerPool manages a bounded pool of workers that process ingestion jobs
// sequentially, one job per worker from claim to terminal state.
type WorkerPool struct {
	queue         *Queue
	runner        Runner
	poolConfig    WorkerPoolConfig
	workers       int
	parentCtx     context.Context
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	activeWorkers int
	logger        *zap.SugaredLogger
	mu            sync.Mutex
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           `json:"workers"`       // Number of concurrent workers
	PollInterval time.Duration `json:"poll_interval"` // How often to check for new jobs
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      1,
		PollInterval: 5 * time.Second,
	}
}

// NewWorkerPool creates a worker pool bound to the given context. Cancelling
// the parent context initiates shutdown: workers finish their claim handling
// and exit, and any in-flight job is re-queued for redelivery.
func NewWorkerPool(ctx context.Context, database *sql.DB, poolCfg WorkerPoolConfig, runner Runner, logger *zap.SugaredLogger) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)

	if poolCfg.Workers < 1 {
		poolCfg.Workers = 1
	}
	if poolCfg.PollInterval <= 0 {
		poolCfg.PollInterval = DefaultWorkerPoolConfig().PollInterval
	}

	return &WorkerPool{
		queue:      NewQueue(database),
		runner:     runner,
		poolConfig: poolCfg,
		workers:    poolCfg.Workers,
		parentCtx:  ctx,
		ctx:        workerCtx,
		cancel:     cancel,
		logger:     logger.Named("workers"),
	}
}

// Start begins processing jobs with the worker pool.
// Jobs orphaned in the processing state by a previous crash are re-queued
// first, so at-least-once delivery holds across restarts.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	// If the pool was stopped previously, derive a fresh context before
	// spawning workers.
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Infow("Recreated worker context after previous shutdown")
	default:
	}
	wp.mu.Unlock()

	if err := wp.recoverOrphanedJobs(); err != nil {
		wp.logger.Warnw("Failed to recover orphaned jobs", "error", err)
		// Continue starting workers even if recovery fails
	}

	if warning := wp.checkMemoryPressure(); warning != "" {
		wp.logger.Warnw("Memory pressure warning", "warning", warning, "workers", wp.workers)
	}

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.logger.Infow("Worker pool started",
		"workers", wp.workers,
		"poll_interval", wp.poolConfig.PollInterval,
	)
}

// recoverOrphanedJobs finds jobs stuck in the processing state and re-queues
// them. This handles ungraceful shutdowns (crash, kill -9, power loss): the
// rerun overwrites progress counters, and idempotent upserts keep entity
// writes safe under the redelivery.
func (wp *WorkerPool) recoverOrphanedJobs() error {
	processing := StatusProcessing
	orphaned, err := wp.queue.Store().ListJobs(&processing, MaxOrphanedJobsToRecover)
	if err != nil {
		return errors.Wrap(err, "failed to list processing jobs")
	}

	if len(orphaned) == 0 {
		return nil
	}

	wp.logger.Infow("Found orphaned jobs from previous shutdown", "count", len(orphaned))

	recovered := 0
	for _, job := range orphaned {
		if err := wp.queue.Requeue(job); err != nil {
			wp.logger.Warnw("Failed to recover orphaned job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}

	wp.logger.Infow("Orphaned job recovery complete", "recovered", recovered, "total", len(orphaned))
	return nil
}

// Stop gracefully stops the worker pool. Workers re-queue any in-flight job
// and exit; a 30-second timeout prevents shutdown from blocking indefinitely.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	timeout := 30 * time.Second
	select {
	case <-done:
		wp.logger.Infow("Worker pool stopped, all workers exited cleanly")
	case <-time.After(timeout):
		wp.logger.Warnw("Worker pool stop timeout, workers may still be finishing", "timeout", timeout)
	}
}

// worker processes jobs from the queue until the pool context is cancelled.
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	ticker := time.NewTicker(wp.poolConfig.PollInterval)
	defer ticker.Stop()

	// Consecutive-error backoff state
	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
			if err := wp.processNextJob(); err != nil {
				select {
				case <-wp.ctx.Done():
					// Shutting down; exit silently.
					return
				default:
					if errors.Is(err, sql.ErrConnDone) || db.IsDatabaseClosed(err) {
						// Database closed during shutdown.
						return
					}
					errorCount++
					wp.logger.Errorw("Worker error processing job",
						"worker_id", id,
						"error", err,
						"consecutive_errors", errorCount)

					if errorCount >= maxConsecutiveErrors {
						wp.logger.Warnw("Worker backing off due to consecutive errors",
							"worker_id", id,
							"backoff", backoffDuration,
							"consecutive_errors", errorCount)
						time.Sleep(backoffDuration)
						backoffDuration = min(backoffDuration*2, maxBackoff)
					}
				}
			} else {
				if errorCount > 0 {
					wp.logger.Infow("Worker recovered from errors",
						"worker_id", id,
						"previous_error_count", errorCount)
				}
				errorCount = 0
				backoffDuration = time.Second
			}
		}
	}
}

// processNextJob claims the next pending job and runs it to a terminal state.
func (wp *WorkerPool) processNextJob() error {
	select {
	case <-wp.ctx.Done():
		return nil // Graceful shutdown - don't claim new jobs
	default:
	}

	job, err := wp.queue.Dequeue()
	if err != nil {
		return errors.Wrap(err, "failed to dequeue job")
	}
	if job == nil {
		// No jobs available
		return nil
	}

	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	if err := wp.runner.Run(wp.ctx, job); err != nil {
		select {
		case <-wp.ctx.Done():
			// Shutdown interrupted the run; return the job to pending so a
			// later worker redelivers it instead of failing it.
			wp.logger.Warnw("Job interrupted by shutdown, re-queuing", "job_id", job.ID)
			if requeueErr := wp.queue.Requeue(job); requeueErr != nil {
				wp.logger.Errorw("Failed to re-queue interrupted job", "job_id", job.ID, "error", requeueErr)
			}
			return nil
		default:
		}

		if errors.Is(err, ErrJobNotFound) {
			// The record vanished between enqueue and run. There is nothing
			// to fail; surface it loudly for a supervisory layer.
			wp.logger.Errorw("Job record missing at execution time",
				"job_id", job.ID,
				"error", err)
			return nil
		}

		// Job-fatal error: resolve to the terminal failed state exactly once.
		return wp.queue.FailJob(job.ID, err)
	}

	return nil
}

// GetQueue returns the job queue (useful for enqueuing jobs)
func (wp *WorkerPool) GetQueue() *Queue {
	return wp.queue
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}
