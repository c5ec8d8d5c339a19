package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rosterline/rosterline/config"
	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/ingest"
	"github.com/rosterline/rosterline/jobs"
	"github.com/rosterline/rosterline/logger"
	"github.com/rosterline/rosterline/staging"
)

// ServeCmd runs the ingestion worker pool in the foreground.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion worker pool",
	Long: `Run the ingestion worker pool in foreground mode.

Workers poll the job queue, claim pending jobs, and run each workbook through
reading, validation, transformation, and persistence. Jobs orphaned by a
previous crash are re-queued on startup.

With --watch (or ingest.watch in the config), workbooks dropped directly into
the upload directory are enqueued automatically.

Shutdown (Ctrl+C) is graceful: workers finish or re-queue their current job
before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		watch, _ := cmd.Flags().GetBool("watch")
		return runServe(workers, cmd.Flags().Changed("watch"), watch)
	},
}

func init() {
	ServeCmd.Flags().Int("workers", 0, "Number of concurrent workers (overrides config)")
	ServeCmd.Flags().Bool("watch", false, "Watch the upload directory and enqueue dropped workbooks")
}

func runServe(workers int, watchSet, watch bool) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if workers <= 0 {
		workers = cfg.Worker.Workers
	}
	if !watchSet {
		watch = cfg.Ingest.Watch
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := os.MkdirAll(cfg.Ingest.UploadDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create upload directory %s", cfg.Ingest.UploadDir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolCfg := jobs.WorkerPoolConfig{
		Workers:      workers,
		PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
	}

	pool := jobs.NewWorkerPool(ctx, database, poolCfg, ingest.NewPipeline(
		database, jobs.NewQueue(database), cfg.Ingest.RuleFile, cfg.Ingest.UploadDir, logger.Logger,
	), logger.Logger)
	pool.Start()

	var watcher *staging.Watcher
	if watch {
		watcher, err = staging.NewWatcher(cfg.Ingest.UploadDir, pool.GetQueue(), logger.Logger)
		if err != nil {
			pool.Stop()
			return err
		}
		watcher.Start()
	}

	pterm.Success.Println("Ingestion worker pool started")
	pterm.Printf("  Workers: %d\n", pool.Workers())
	pterm.Printf("  Poll interval: %v\n", poolCfg.PollInterval)
	pterm.Printf("  Upload dir: %s\n", cfg.Ingest.UploadDir)
	pterm.Printf("  Rule file: %s\n", cfg.Ingest.RuleFile)
	if watch {
		pterm.Printf("  Watching: %s\n", cfg.Ingest.UploadDir)
	}
	pterm.Println()
	pterm.Info.Println("Press Ctrl+C for graceful shutdown")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	pterm.Info.Println("Shutting down...")

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Logger.Warnw("Failed to stop upload watcher", "error", err)
		}
	}
	pool.Stop()
	cancel()

	pterm.Success.Println("Ingestion worker pool stopped")
	return nil
}
