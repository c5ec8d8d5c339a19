package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rosterline/rosterline/cmd/rosterline/commands"
	"github.com/rosterline/rosterline/config"
	"github.com/rosterline/rosterline/logger"
)

var rootCmd = &cobra.Command{
	Use:   "rosterline",
	Short: "Rosterline - asynchronous workbook ingestion",
	Long: `Rosterline ingests Excel workbooks of employees and projects into SQLite.

Uploaded workbooks are staged and processed asynchronously by a worker pool:
each row is validated, enriched by the transformation rule file, and upserted
by its business key, so re-ingesting a workbook is safe.

Available commands:
  serve   - Run the ingestion worker pool
  upload  - Stage a workbook and enqueue an ingestion job
  jobs    - Inspect and manage ingestion jobs
  db      - Manage the database (migrate, stats)

Examples:
  rosterline upload roster.xlsx    # Enqueue a workbook
  rosterline serve --workers 2     # Process jobs with 2 workers
  rosterline jobs ls               # List recent jobs
  rosterline jobs show <id>        # Show one job's detail`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Honor log.json when a config is present; a missing config still
		// gets a console logger.
		jsonOutput := false
		if cfg, err := config.Load(); err == nil {
			jsonOutput = cfg.Log.JSON
		}
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.UploadCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.DbCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
