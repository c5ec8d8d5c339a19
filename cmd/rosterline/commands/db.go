package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rosterline/rosterline/config"
	"github.com/rosterline/rosterline/entity"
	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/jobs"
)

// DbCmd groups database management subcommands.
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the rosterline database",
	Long: `Manage the rosterline database.

  rosterline db migrate   # Apply pending schema migrations
  rosterline db stats     # Show job and entity counts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase("")
		if err != nil {
			return err
		}
		defer database.Close()

		pterm.Success.Println("Database schema is up to date")
		return nil
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job and entity counts",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()

	pending, processing, err := jobs.NewStore(database).CountByStatus()
	if err != nil {
		return err
	}

	var completed, failed int
	err = database.QueryRow(`
		SELECT
			COUNT(CASE WHEN status = 'completed' THEN 1 END),
			COUNT(CASE WHEN status = 'failed' THEN 1 END)
		FROM ingest_jobs`).Scan(&completed, &failed)
	if err != nil {
		return errors.Wrap(err, "failed to count terminal jobs")
	}

	employees, err := entity.NewEmployeeStore(database).Count(ctx)
	if err != nil {
		return err
	}
	projects, err := entity.NewProjectStore(database).Count(ctx)
	if err != nil {
		return err
	}

	pterm.Printf("Database: %s\n\n", cfg.Database.Path)
	pterm.Printf("Jobs:\n")
	pterm.Printf("  Pending:    %d\n", pending)
	pterm.Printf("  Processing: %d\n", processing)
	pterm.Printf("  Completed:  %d\n", completed)
	pterm.Printf("  Failed:     %d\n", failed)
	pterm.Println()
	pterm.Printf("Entities:\n")
	pterm.Printf("  Employees:  %d\n", employees)
	pterm.Printf("  Projects:   %d\n", projects)
	return nil
}
