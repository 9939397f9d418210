package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tabledesk/tdk/internal/client"
	"github.com/tabledesk/tdk/internal/config"
	"github.com/tabledesk/tdk/internal/state"
)

var (
	filesListJSON    bool
	filesListKind    string
	filesListPrefix  string
	filesUploadName  string
	filesUploadOver  bool
	filesUploadJSON  bool
	filesSyncDryRun  bool
	filesSyncDelete  bool
	filesSyncJSON    bool
	filesSyncDataDir string
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage spreadsheets in the workspace file store",
}

var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List files in the workspace",
	Args:  cobra.NoArgs,
	RunE:  runFilesList,
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a spreadsheet",
	Long: `Upload a spreadsheet to the workspace file store.

The file's content hash is computed locally and sent along, so re-uploading
unchanged content is deduplicated server-side. Parsing into tables runs as a
background job; follow it with "tdk jobs watch".`,
	Args: cobra.ExactArgs(1),
	RunE: runFilesUpload,
}

var filesRmCmd = &cobra.Command{
	Use:   "rm <file-id>",
	Short: "Delete a file (tables parsed from it are dropped)",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesRm,
}

var filesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload changed spreadsheets under the data directory",
	Long: `Scan the workspace data directory for spreadsheets and upload the ones
whose content changed since the last sync. With --delete, files removed
locally are also deleted from the workspace.

The data directory is the config's data_dir (default: the workspace root).`,
	Args: cobra.NoArgs,
	RunE: runFilesSync,
}

func init() {
	filesListCmd.Flags().BoolVar(&filesListJSON, "json", false, "Output JSON")
	filesListCmd.Flags().StringVar(&filesListKind, "kind", "", "Filter by file kind (csv, xlsx, ...)")
	filesListCmd.Flags().StringVar(&filesListPrefix, "prefix", "", "Filter by name prefix")

	filesUploadCmd.Flags().StringVar(&filesUploadName, "name", "", "Stored file name (default: base name of path)")
	filesUploadCmd.Flags().BoolVar(&filesUploadOver, "overwrite", false, "Replace an existing file with the same name")
	filesUploadCmd.Flags().BoolVar(&filesUploadJSON, "json", false, "Output JSON")

	filesSyncCmd.Flags().BoolVar(&filesSyncDryRun, "dry-run", false, "Show what would be uploaded without doing it")
	filesSyncCmd.Flags().BoolVar(&filesSyncDelete, "delete", false, "Also delete workspace files removed locally")
	filesSyncCmd.Flags().BoolVar(&filesSyncJSON, "json", false, "Output JSON")
	filesSyncCmd.Flags().StringVar(&filesSyncDataDir, "dir", "", "Override the data directory for this sync")

	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesUploadCmd)
	filesCmd.AddCommand(filesRmCmd)
	filesCmd.AddCommand(filesSyncCmd)
}

func runFilesList(cmd *cobra.Command, args []string) error {
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

	resp, err := c.ListFiles(ctx, &client.ListFilesRequest{
		Prefix: filesListPrefix,
		Kind:   filesListKind,
	})
	if err != nil {
		return fmt.Errorf("listing files: %w", err)
	}

	if filesListJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if len(resp.Files) == 0 {
		fmt.Println("No files. Upload one with `tdk files upload <path>`.")
		return nil
	}
	for _, f := range resp.Files {
		line := fmt.Sprintf("%s  %-30s %-6s %8s", f.FileID, f.Name, f.Kind, formatBytes(f.SizeBytes))
		if ago := formatTimeAgo(f.UpdatedAt); ago != "" {
			line += "  " + ago
		}
		fmt.Println(line)
		if f.Status == "error" && f.StatusError != "" {
			color.Red("    parse error: %s", f.StatusError)
		}
	}
	if resp.HasMore {
		fmt.Println("... more files not shown (use --prefix to narrow)")
	}
	return nil
}

func runFilesUpload(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	path := args[0]
	hash, err := state.HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}

	// No request timeout here: large spreadsheets take as long as they take.
	resp, err := c.UploadFile(cmd.Context(), &client.UploadFileRequest{
		Path:           path,
		Name:           filesUploadName,
		ContentHash:    hash,
		IdempotencyKey: uuid.NewString(),
		Overwrite:      filesUploadOver,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", path, err)
	}

	if resp.ParseJobID != "" {
		trackJobs(resp.ParseJobID)
		AddNotice("parsing %s in the background (job %s) - follow with `tdk jobs watch`", resp.File.Name, resp.ParseJobID)
	}

	if filesUploadJSON {
		fmt.Print(marshalJSONOrFallback(resp))
		return nil
	}

	if resp.Deduplicated {
		fmt.Printf("Unchanged: %s already stored as %s\n", resp.File.Name, resp.File.FileID)
		return nil
	}
	fmt.Printf("Uploaded %s (%s) as %s\n", resp.File.Name, formatBytes(resp.File.SizeBytes), resp.File.FileID)
	return nil
}

func runFilesRm(cmd *cobra.Command, args []string) error {
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

	resp, err := c.DeleteFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	if resp == nil {
		fmt.Printf("File %s not found (already deleted?)\n", args[0])
		return nil
	}
	fmt.Printf("Deleted %s", resp.FileID)
	if resp.TablesDropped > 0 {
		fmt.Printf(" (%d table(s) dropped)", resp.TablesDropped)
	}
	fmt.Println()
	return nil
}

// syncPlan is what a sync run decides to do before doing it.
type syncPlan struct {
	Upload []string `json:"upload"` // Relative paths with new or changed content
	Remove []string `json:"remove"` // Relative paths deleted locally
}

// buildSyncPlan diffs a directory scan against the recorded hashes.
func buildSyncPlan(local map[string]string, st *state.State) syncPlan {
	plan := syncPlan{
		Upload: state.FindChangedFiles(local, st.FileHashes),
		Remove: state.FindRemovedFiles(local, st.FileHashes),
	}
	if plan.Upload == nil {
		plan.Upload = []string{}
	}
	if plan.Remove == nil {
		plan.Remove = []string{}
	}
	return plan
}

func runFilesSync(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	root, err := config.WorkspaceRoot()
	if err != nil {
		return err
	}
	dataDir := root
	switch {
	case filesSyncDataDir != "":
		dataDir = filesSyncDataDir
	case cfg.DataDir != "":
		dataDir = filepath.Join(root, cfg.DataDir)
	}

	sPath := state.DefaultPath(root)
	st, err := state.Load(sPath)
	if err != nil {
		return fmt.Errorf("loading sync state: %w", err)
	}

	local, err := state.ScanDir(dataDir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", dataDir, err)
	}

	plan := buildSyncPlan(local, st)

	if filesSyncDryRun {
		if filesSyncJSON {
			fmt.Print(marshalJSONOrFallback(plan))
			return nil
		}
		for _, rel := range plan.Upload {
			fmt.Printf("would upload %s\n", rel)
		}
		if filesSyncDelete {
			for _, rel := range plan.Remove {
				fmt.Printf("would delete %s\n", rel)
			}
		}
		if len(plan.Upload) == 0 && (!filesSyncDelete || len(plan.Remove) == 0) {
			fmt.Println("Everything up to date.")
		}
		return nil
	}

	var uploaded, deduplicated, deleted int
	var jobIDs []string

	for _, rel := range plan.Upload {
		path := filepath.Join(dataDir, filepath.FromSlash(rel))
		resp, err := c.UploadFile(cmd.Context(), &client.UploadFileRequest{
			Path:           path,
			Name:           rel,
			ContentHash:    local[rel],
			IdempotencyKey: uuid.NewString(),
			Overwrite:      true,
		})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", rel, err)
		}
		if resp.Deduplicated {
			deduplicated++
		} else {
			uploaded++
			fmt.Printf("uploaded %s (%s)\n", rel, formatBytes(resp.File.SizeBytes))
		}
		if resp.ParseJobID != "" {
			jobIDs = append(jobIDs, resp.ParseJobID)
		}
	}

	if filesSyncDelete && len(plan.Remove) > 0 {
		ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
		defer cancel()

		// The server keys files by ID, the plan by name. One listing covers
		// all deletions.
		listing, err := c.ListFiles(ctx, &client.ListFilesRequest{})
		if err != nil {
			return fmt.Errorf("listing files for deletion: %w", err)
		}
		byName := make(map[string]string, len(listing.Files))
		for _, f := range listing.Files {
			byName[f.Name] = f.FileID
		}
		for _, rel := range plan.Remove {
			id, ok := byName[rel]
			if !ok {
				continue
			}
			if _, err := c.DeleteFile(ctx, id); err != nil {
				return fmt.Errorf("deleting %s: %w", rel, err)
			}
			deleted++
			fmt.Printf("deleted %s\n", rel)
		}
	}

	st.UpdateFiles(local)
	if err := state.Save(sPath, st); err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}

	if len(jobIDs) > 0 {
		sort.Strings(jobIDs)
		trackJobs(jobIDs...)
		AddNotice("%d parse job(s) running - follow with `tdk jobs watch`", len(jobIDs))
	}

	if filesSyncJSON {
		fmt.Print(marshalJSONOrFallback(map[string]any{
			"uploaded":     uploaded,
			"deduplicated": deduplicated,
			"deleted":      deleted,
			"parse_jobs":   jobIDs,
		}))
		return nil
	}
	if uploaded == 0 && deleted == 0 {
		fmt.Println("Everything up to date.")
	} else {
		fmt.Printf("Sync complete: %d uploaded, %d unchanged, %d deleted.\n", uploaded, deduplicated, deleted)
	}
	return nil
}
