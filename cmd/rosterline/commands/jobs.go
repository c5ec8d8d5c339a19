package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/rosterline/rosterline/errors"
	"github.com/rosterline/rosterline/jobs"
)

// JobsCmd groups ingestion job management subcommands.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage ingestion jobs",
	Long: `Inspect and manage ingestion jobs.

  rosterline jobs ls                  # List recent jobs
  rosterline jobs ls --status failed  # List only failed jobs
  rosterline jobs show <id>           # Show one job's detail and row errors
  rosterline jobs rm <id>             # Delete one job record
  rosterline jobs cleanup             # Delete old terminal jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List ingestion jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobsLs(statusFilter, limit)
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one ingestion job's detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsShow(args[0])
	},
}

var jobsRmCmd = &cobra.Command{
	Use:   "rm <job-id>",
	Short: "Delete one ingestion job record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsRm(args[0])
	},
}

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete completed and failed jobs older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		return runJobsCleanup(olderThan)
	},
}

func init() {
	jobsLsCmd.Flags().String("status", "", "Filter by status (pending, processing, completed, failed)")
	jobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")
	jobsCleanupCmd.Flags().Duration("older-than", 30*24*time.Hour, "Delete terminal jobs older than this")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsShowCmd)
	JobsCmd.AddCommand(jobsRmCmd)
	JobsCmd.AddCommand(jobsCleanupCmd)
}

func runJobsLs(statusFilter string, limit int) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	var status *jobs.Status
	if statusFilter != "" {
		if !jobs.IsValidStatus(statusFilter) {
			return errors.Newf("invalid status %q (pending, processing, completed, failed)", statusFilter)
		}
		s := jobs.Status(statusFilter)
		status = &s
	}

	list, err := jobs.NewStore(database).ListJobs(status, limit)
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}

	if len(list) == 0 {
		pterm.Info.Println("No jobs found")
		return nil
	}

	data := pterm.TableData{{"JOB ID", "STATUS", "STEP", "FILE", "ROWS", "ERRORS", "CREATED"}}
	for _, job := range list {
		data = append(data, []string{
			truncate(job.ID, 12),
			string(job.Status),
			string(job.CurrentStep),
			truncate(job.Filename, 25),
			fmt.Sprintf("%d/%d", job.ProcessedRows, job.TotalRows),
			fmt.Sprintf("%d", job.ErrorRows),
			job.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	pterm.Printf("\nTotal: %d job(s)\n", len(list))
	return nil
}

func runJobsShow(jobID string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	job, err := jobs.NewStore(database).GetJob(jobID)
	if err != nil {
		return err
	}

	pterm.Printf("Job ID: %s\n", job.ID)
	pterm.Printf("  File: %s (staged as %s)\n", job.Filename, job.FilePath)
	pterm.Printf("  Status: %s\n", job.Status)
	if job.CurrentStep != "" {
		pterm.Printf("  Step: %s\n", job.CurrentStep)
	}
	pterm.Println()

	pterm.Printf("Rows: %d total, %d processed, %d errored\n",
		job.TotalRows, job.ProcessedRows, job.ErrorRows)
	if job.ErrorMessage != "" {
		pterm.Printf("Error: %s\n", job.ErrorMessage)
	}
	pterm.Println()

	pterm.Printf("Created: %s\n", job.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		pterm.Printf("Started: %s\n", job.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		pterm.Printf("Completed: %s\n", job.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	}

	if len(job.ErrorDetails) > 0 {
		pterm.Println()
		pterm.Warning.Printf("Row errors (%d):\n", len(job.ErrorDetails))
		for _, d := range job.ErrorDetails {
			pterm.Printf("  %s row %d: %s\n", d.Sheet, d.Row, d.Message)
		}
	}

	return nil
}

func runJobsRm(jobID string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	if err := jobs.NewStore(database).DeleteJob(jobID); err != nil {
		return err
	}

	pterm.Success.Printf("Deleted job %s\n", jobID)
	return nil
}

func runJobsCleanup(olderThan time.Duration) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	deleted, err := jobs.NewStore(database).CleanupOldJobs(olderThan)
	if err != nil {
		return err
	}

	pterm.Success.Printf("Deleted %d job(s) older than %v\n", deleted, olderThan)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
