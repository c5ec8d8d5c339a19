package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rosterline/rosterline/config"
	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/jobs"
	"github.com/rosterline/rosterline/staging"
)

// UploadCmd stages a workbook and enqueues an ingestion job for it.
var UploadCmd = &cobra.Command{
	Use:   "upload <workbook>",
	Short: "Stage a workbook and enqueue an ingestion job",
	Long: `Copy a workbook into the upload directory and create a pending
ingestion job for it. The job is processed asynchronously by 'rosterline
serve'; check progress with 'rosterline jobs show <id>'.

Example:
  rosterline upload roster.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpload(args[0])
	},
}

func runUpload(path string) error {
	if !staging.IsWorkbook(path) {
		return errors.Newf("%s is not a workbook (.xlsx, .xlsm, .xls)", path)
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	filename, staged, err := staging.Stage(cfg.Ingest.UploadDir, path)
	if err != nil {
		return err
	}

	job := jobs.NewJob(filename, staged)
	if err := jobs.NewQueue(database).Enqueue(job); err != nil {
		return err
	}

	pterm.Success.Printf("Enqueued ingestion job %s\n", job.ID)
	pterm.Printf("  Workbook: %s\n", filename)
	pterm.Printf("  Staged as: %s\n", staged)
	return nil
}
