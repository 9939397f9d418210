package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tabledesk/tdk/internal/client"
	"github.com/tabledesk/tdk/internal/config"
)

var (
	initServer      string
	initWorkspace   string
	initUser        string
	initExistingKey bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Register this directory as a TableDesk workspace",
	Long: `Register this directory as a TableDesk workspace and write .tabledesk.

Without an API key the server mints one and tdk stores it in .env at the
workspace root. With --existing-key you can paste a key from the dashboard
instead (hidden input).

The workspace slug defaults to the sanitized directory name; override with
--workspace or TABLEDESK_WORKSPACE.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initServer, "server", "", "TableDesk server URL (default: TABLEDESK_URL or "+defaultServerURL+")")
	initCmd.Flags().StringVar(&initWorkspace, "workspace", "", "Workspace slug (default: TABLEDESK_WORKSPACE or directory name)")
	initCmd.Flags().StringVar(&initUser, "user", "", "Display name for chat attribution (default: TABLEDESK_USER or $USER)")
	initCmd.Flags().BoolVar(&initExistingKey, "existing-key", false, "Prompt for an existing API key instead of minting one")
}

func runInit(cmd *cobra.Command, args []string) error {
	// Refuse to clobber a working setup.
	if cfg, err := config.Load(); err == nil {
		if err := cfg.Validate(); err == nil {
			fmt.Printf("Already initialized: workspace %q on %s\n", cfg.Workspace, cfg.ServerURL)
			fmt.Println("Delete .tabledesk to re-register.")
			return nil
		}
	}

	serverURL := strings.TrimSpace(initServer)
	if serverURL == "" {
		serverURL = strings.TrimSpace(os.Getenv("TABLEDESK_URL"))
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	serverURL = strings.TrimRight(serverURL, "/")

	workspace := strings.TrimSpace(initWorkspace)
	if workspace == "" {
		workspace = strings.TrimSpace(os.Getenv("TABLEDESK_WORKSPACE"))
	}
	if workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		workspace = config.SanitizeSlug(filepath.Base(cwd))
	}
	if !config.IsValidSlug(workspace) {
		return fmt.Errorf("invalid workspace slug %q (lowercase alphanumeric with hyphens)", workspace)
	}

	userName := strings.TrimSpace(initUser)
	if userName == "" {
		userName = strings.TrimSpace(os.Getenv("TABLEDESK_USER"))
	}
	if userName == "" {
		userName = strings.TrimSpace(os.Getenv("USER"))
	}

	key := apiKey()
	if key == "" && initExistingKey {
		var err error
		key, err = promptAPIKey()
		if err != nil {
			return err
		}
	}

	var c *client.Client
	if key != "" {
		c = client.NewWithAPIKey(serverURL, key).WithLogger(logger())
	} else {
		c = client.New(serverURL).WithLogger(logger())
	}

	hostname, _ := os.Hostname()

	ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
	defer cancel()

	resp, err := c.Init(ctx, &client.InitRequest{
		Workspace: workspace,
		UserName:  userName,
		Hostname:  hostname,
	})
	if err != nil {
		return fmt.Errorf("registering workspace: %w", err)
	}

	cfg := &config.Config{
		WorkspaceID: resp.WorkspaceID,
		ServerURL:   serverURL,
		Workspace:   resp.Workspace,
		UserName:    userName,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("server returned an unusable registration: %w", err)
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	if resp.APIKey != "" {
		if err := writeKeyToDotenv(resp.APIKey); err != nil {
			// The key is only shown once; print it rather than lose it.
			fmt.Fprintf(os.Stderr, "Warning: could not write .env: %v\n", err)
			fmt.Printf("Export this yourself:\n  export TABLEDESK_API_KEY=%s\n", resp.APIKey)
		} else {
			fmt.Println("API key written to .env (add .env to .gitignore).")
		}
	}

	if resp.Created {
		fmt.Printf("Created workspace %q on %s\n", resp.Workspace, serverURL)
	} else {
		fmt.Printf("Joined existing workspace %q on %s\n", resp.Workspace, serverURL)
	}
	fmt.Printf("  workspace_id: %s\n", resp.WorkspaceID)
	fmt.Println("\nNext: tdk files upload <spreadsheet>, then tdk chat ask \"...\"")
	return nil
}

// promptAPIKey reads an API key with echo disabled. Requires a terminal.
func promptAPIKey() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("--existing-key needs a terminal (or set TABLEDESK_API_KEY)")
	}
	fmt.Fprint(os.Stderr, "API key: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("empty API key")
	}
	return key, nil
}

// writeKeyToDotenv appends TABLEDESK_API_KEY to the workspace .env file.
func writeKeyToDotenv(key string) error {
	path := ".env"
	if root, err := config.WorkspaceRoot(); err == nil {
		path = filepath.Join(root, ".env")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = fmt.Fprintf(f, "TABLEDESK_API_KEY=%s\n", key)
	return err
}
