package commands

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tabledesk/tdk/internal/client"
)

var (
	transformsListJSON    bool
	transformsListStatus  string
	transformsListTable   string
	transformsShowJSON    bool
	transformsPreviewRows int
	transformsPreviewJSON bool
	transformsRejectWhy   string
)

var transformsCmd = &cobra.Command{
	Use:   "transforms",
	Short: "Review AI-suggested data transformations",
	Long: `Review the transformations the assistant suggests during chat.

A transform stays pending until you apply or reject it. Apply runs it as a
background job against the table; nothing changes until then.`,
}

var transformsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suggested transforms",
	Args:  cobra.NoArgs,
	RunE:  runTransformsList,
}

var transformsShowCmd = &cobra.Command{
	Use:   "show <transform-id>",
	Short: "Show a transform's details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransformsShow,
}

var transformsPreviewCmd = &cobra.Command{
	Use:   "preview <transform-id>",
	Short: "Show before/after sample rows for a pending transform",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransformsPreview,
}

var transformsApplyCmd = &cobra.Command{
	Use:   "apply <transform-id>",
	Short: "Accept a transform and run it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransformsApply,
}

var transformsRejectCmd = &cobra.Command{
	Use:   "reject <transform-id>",
	Short: "Decline a transform",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransformsReject,
}

func init() {
	transformsListCmd.Flags().BoolVar(&transformsListJSON, "json", false, "Output JSON")
	transformsListCmd.Flags().StringVar(&transformsListStatus, "status", "", "Filter by status (pending, applied, rejected)")
	transformsListCmd.Flags().StringVar(&transformsListTable, "table", "", "Filter by table ID")

	transformsShowCmd.Flags().BoolVar(&transformsShowJSON, "json", false, "Output JSON")

	transformsPreviewCmd.Flags().IntVar(&transformsPreviewRows, "rows", 0, "Number of sample rows (server default 10)")
	transformsPreviewCmd.Flags().BoolVar(&transformsPreviewJSON, "json", false, "Output JSON")

	transformsRejectCmd.Flags().StringVar(&transformsRejectWhy, "reason", "", "Why the transform is being rejected")

	transformsCmd.AddCommand(transformsListCmd)
	transformsCmd.AddCommand(transformsShowCmd)
	transformsCmd.AddCommand(transformsPreviewCmd)
	transformsCmd.AddCommand(transformsApplyCmd)
	transformsCmd.AddCommand(transformsRejectCmd)
}

// renderTransformStatus colors a transform status for terminal output.
func renderTransformStatus(status string) string {
	switch status {
	case client.TransformPending:
		return color.YellowString(status)
	case client.TransformApplied:
		return color.GreenString(status)
	case client.TransformRejected:
		return color.RedString(status)
	default:
		return status
	}
}

func runTransformsList(cmd *cobra.Command, args []string) error {
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

	resp, err := c.ListTransforms(ctx, &client.ListTransformsRequest{
		Status:  transformsListStatus,
		TableID: transformsListTable,
	})
	if err != nil {
		return fmt.Errorf("listing transforms: %w", err)
	}

	if transformsListJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if len(resp.Transforms) == 0 {
		fmt.Println("No transforms. The assistant suggests them during chat.")
		return nil
	}
	for _, t := range resp.Transforms {
		line := fmt.Sprintf("%s  %-10s %s", t.TransformID, renderTransformStatus(t.Status), t.Title)
		if ago := formatTimeAgo(t.CreatedAt); ago != "" {
			line += "  " + ago
		}
		fmt.Println(line)
	}
	return nil
}

func runTransformsShow(cmd *cobra.Command, args []string) error {
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

	t, err := c.GetTransform(ctx, args[0])
	if err != nil {
		return fmt.Errorf("fetching transform: %w", err)
	}
	if t == nil {
		return fmt.Errorf("transform %s not found", args[0])
	}

	if transformsShowJSON {
		fmt.Print(marshalJSONOrFallback(t))
		return nil
	}

	color.New(color.Bold).Println(t.Title)
	fmt.Printf("  id:      %s\n", t.TransformID)
	fmt.Printf("  status:  %s\n", renderTransformStatus(t.Status))
	fmt.Printf("  table:   %s\n", t.TableID)
	if t.SessionID != "" {
		fmt.Printf("  session: %s\n", t.SessionID)
	}
	if t.AppliedJobID != "" {
		fmt.Printf("  job:     %s\n", t.AppliedJobID)
	}
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}
	if t.Status == client.TransformPending {
		fmt.Printf("\nPreview with `tdk transforms preview %s`, then apply or reject.\n", t.TransformID)
	}
	return nil
}

func runTransformsPreview(cmd *cobra.Command, args []string) error {
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

	var req *client.PreviewTransformRequest
	if transformsPreviewRows > 0 {
		req = &client.PreviewTransformRequest{SampleRows: transformsPreviewRows}
	}
	resp, err := c.PreviewTransform(ctx, args[0], req)
	if err != nil {
		return fmt.Errorf("previewing transform: %w", err)
	}

	if transformsPreviewJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	bold := color.New(color.Bold)
	bold.Println("Before:")
	printRowGrid(resp.Columns, resp.Before)
	fmt.Println()
	bold.Println("After:")
	printRowGrid(resp.Columns, resp.After)
	fmt.Printf("\n%d row(s) affected.\n", resp.RowsAffected)
	return nil
}

func runTransformsApply(cmd *cobra.Command, args []string) error {
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

	resp, err := c.ApplyTransform(ctx, args[0], uuid.NewString())
	if err != nil {
		return fmt.Errorf("applying transform: %w", err)
	}

	fmt.Printf("Transform %s %s.\n", resp.TransformID, resp.Status)
	if resp.JobID != "" {
		trackJobs(resp.JobID)
		AddNotice("transform running as job %s - follow with `tdk jobs watch`", resp.JobID)
	}
	return nil
}

func runTransformsReject(cmd *cobra.Command, args []string) error {
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

	resp, err := c.RejectTransform(ctx, args[0], &client.RejectTransformRequest{Reason: transformsRejectWhy})
	if err != nil {
		return fmt.Errorf("rejecting transform: %w", err)
	}
	fmt.Printf("Transform %s %s.\n", resp.TransformID, resp.Status)
	return nil
}
