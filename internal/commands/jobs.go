package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tabledesk/tdk/internal/client"
	"github.com/tabledesk/tdk/internal/jobs"
	"github.com/tabledesk/tdk/internal/state"
)

var (
	jobsListJSON   bool
	jobsListActive bool
	jobsListIDs    []string
	jobsWatchFast  time.Duration
	jobsWatchSlow  time.Duration
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and follow background jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List background jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch [job-id...]",
	Short: "Follow jobs until they finish",
	Long: `Follow background jobs until every one reaches a terminal state.

Without arguments, watches the jobs this workspace has spawned (uploads,
transform applies, chat analysis). Polling is adaptive: frequent while any
job is queued or running, infrequent otherwise.`,
	RunE: runJobsWatch,
}

func init() {
	jobsListCmd.Flags().BoolVar(&jobsListJSON, "json", false, "Output JSON")
	jobsListCmd.Flags().BoolVar(&jobsListActive, "active", false, "Only queued and running jobs")
	jobsListCmd.Flags().StringSliceVar(&jobsListIDs, "ids", nil, "Fetch exactly these job IDs")

	jobsWatchCmd.Flags().DurationVar(&jobsWatchFast, "fast", jobs.DefaultFastInterval, "Poll interval while any job is queued or running")
	jobsWatchCmd.Flags().DurationVar(&jobsWatchSlow, "slow", jobs.DefaultSlowInterval, "Poll interval while no job is active")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
}

func runJobsList(cmd *cobra.Command, args []string) error {
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

	resp, err := c.ListJobs(ctx, &client.ListJobsRequest{
		IDs:    jobsListIDs,
		Active: jobsListActive,
	})
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}

	if jobsListJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if len(resp.Jobs) == 0 {
		fmt.Println("No jobs.")
		return nil
	}
	for _, j := range resp.Jobs {
		fmt.Println(formatJobLine(j))
	}
	return nil
}

// formatJobLine renders one job for list and watch output.
func formatJobLine(j client.Job) string {
	line := fmt.Sprintf("%s  %-10s %-10s", j.JobID, renderJobStatus(j.Status), j.Kind)
	if j.Status == client.JobRunning && j.Progress > 0 {
		line += "  " + formatProgress(j.Progress)
	}
	if j.Detail != "" {
		line += "  " + j.Detail
	}
	if j.Status == client.JobFailed && j.Error != "" {
		line += "  " + color.RedString(j.Error)
	}
	return line
}

func runJobsWatch(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	ids := args
	sPath, err := statePath()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		st, err := state.Load(sPath)
		if err != nil {
			return fmt.Errorf("loading state: %w", err)
		}
		ids = st.TrackedJobs
	}
	if len(ids) == 0 {
		fmt.Println("No jobs to watch.")
		return nil
	}

	// Drop finished jobs from the workspace state as we go, so the next
	// watch doesn't start from stale ids.
	onRemove := func(jobID string) {
		st, err := state.Load(sPath)
		if err != nil {
			return
		}
		if st.UntrackJob(jobID) {
			_ = state.Save(sPath, st)
		}
	}

	poller := jobs.New(jobs.Config{
		Fetcher:       c,
		FastInterval:  jobsWatchFast,
		SlowInterval:  jobsWatchSlow,
		Logger:        logger(),
		StopWhenEmpty: true,
		OnRemove:      onRemove,
	})
	poller.Track(ids...)

	fmt.Printf("Watching %d job(s)... (Ctrl-C to stop)\n", len(ids))

	done := make(chan error, 1)
	go func() { done <- poller.Run(cmd.Context()) }()

	var failed int
	for u := range poller.Updates() {
		switch {
		case u.Gone:
			fmt.Printf("%s  %s\n", u.Job.JobID, color.YellowString("gone (unknown to server)"))
		case u.Terminal:
			fmt.Println(formatJobLine(u.Job))
			if u.Job.Status == client.JobFailed {
				failed++
			}
		default:
			fmt.Println(formatJobLine(u.Job))
		}
	}

	if err := <-done; err != nil && err != context.Canceled {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d job(s) failed", failed)
	}
	return nil
}
