package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tabledesk/tdk/internal/client"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace, account, and background activity",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output JSON")
}

type statusReport struct {
	Workspace         string          `json:"workspace"`
	ServerURL         string          `json:"server_url"`
	Account           *client.Account `json:"account"`
	ActiveJobs        []client.Job    `json:"active_jobs"`
	PendingTransforms int             `json:"pending_transforms"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	account, err := c.Whoami(ctx)
	if err != nil {
		return fmt.Errorf("fetching account: %w", err)
	}

	jobsResp, err := c.ListJobs(ctx, &client.ListJobsRequest{Active: true})
	if err != nil {
		return fmt.Errorf("fetching active jobs: %w", err)
	}

	transforms, err := c.ListTransforms(ctx, &client.ListTransformsRequest{Status: client.TransformPending})
	if err != nil {
		return fmt.Errorf("fetching transforms: %w", err)
	}

	report := statusReport{
		Workspace:         cfg.Workspace,
		ServerURL:         cfg.ServerURL,
		Account:           account,
		ActiveJobs:        jobsResp.Jobs,
		PendingTransforms: transforms.Count,
	}
	if report.ActiveJobs == nil {
		report.ActiveJobs = []client.Job{}
	}

	if statusJSON {
		fmt.Print(marshalJSONOrFallback(report))
		return nil
	}

	bold := color.New(color.Bold)
	bold.Printf("Workspace %s", cfg.Workspace)
	fmt.Printf(" @ %s\n", cfg.ServerURL)
	fmt.Printf("  account: %s (%s plan)\n", account.Name, account.Plan)
	fmt.Printf("  files:   %d (%s)\n", account.FileCount, formatBytes(account.StorageBytes))
	fmt.Printf("  tables:  %d\n", account.TableCount)

	fmt.Println()
	if len(report.ActiveJobs) == 0 {
		fmt.Println("No active jobs.")
	} else {
		bold.Printf("Active jobs (%d)\n", len(report.ActiveJobs))
		for _, j := range report.ActiveJobs {
			fmt.Printf("  %s  %-10s %s", j.JobID, renderJobStatus(j.Status), j.Kind)
			if j.Progress > 0 {
				fmt.Printf("  %s", formatProgress(j.Progress))
			}
			fmt.Println()
		}
	}

	if transforms.Count > 0 {
		fmt.Println()
		color.Yellow("%d transform(s) awaiting review - run `tdk transforms list`", transforms.Count)
	}
	return nil
}

// renderJobStatus colors a job status for terminal output.
func renderJobStatus(status string) string {
	switch status {
	case client.JobCompleted:
		return color.GreenString(status)
	case client.JobFailed:
		return color.RedString(status)
	case client.JobCancelled:
		return color.YellowString(status)
	case client.JobRunning:
		return color.CyanString(status)
	default:
		return status
	}
}
