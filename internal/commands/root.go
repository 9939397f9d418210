// Package commands implements the tdk CLI commands.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tabledesk/tdk/internal/config"
)

var versionInfo struct {
	version string
	commit  string
	date    string
}

// SetVersionInfo sets version information from main (populated by goreleaser).
func SetVersionInfo(version, commit, date string) {
	versionInfo.version = version
	versionInfo.commit = commit
	versionInfo.date = date
}

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tdk",
	Short: "TableDesk terminal client",
	Long: `tdk is the terminal client for the TableDesk data-analysis assistant.

Upload spreadsheets to the workspace file store, browse parsed tables,
chat with the assistant about your data, and review the transformations
it suggests. All analysis runs on the TableDesk server; tdk only talks
to its HTTP API.

Setup:
  tdk init              - Register this directory as a workspace

Common commands:
  tdk files upload data.csv      - Upload a spreadsheet
  tdk files sync                 - Upload everything that changed under data_dir
  tdk tables show revenue-2026   - Schema + preview rows
  tdk chat ask "which region grew fastest?"
  tdk transforms list            - Suggested transformations awaiting review
  tdk jobs watch                 - Follow background jobs to completion

Environment variables:
  TABLEDESK_URL        - Server URL (default: http://localhost:8000)
  TABLEDESK_API_KEY    - API key (minted by tdk init)
  TABLEDESK_WORKSPACE  - Workspace slug for tdk init`,
	// main.go prints errors and notices
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagConfig != "" {
			config.SetPath(flagConfig)
		}
		loadDotenvBestEffort()
	},
}

func init() {
	// Disable cobra's auto-generated completion command - it pollutes the namespace
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Use an alternate .tabledesk config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging to stderr")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(transformsCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tdk %s\n", versionInfo.version)
		if versionInfo.commit != "" && versionInfo.commit != "none" {
			fmt.Printf("  commit: %s\n", versionInfo.commit)
		}
		if versionInfo.date != "" && versionInfo.date != "unknown" {
			fmt.Printf("  built:  %s\n", versionInfo.date)
		}
	},
}

func loadDotenvBestEffort() {
	// Prefer the workspace root (dir containing .tabledesk) so subdir invocations work.
	if root, err := config.WorkspaceRoot(); err == nil {
		_ = godotenv.Load(filepath.Join(root, ".env"))
		return
	}
	// Fallback: load from the current working directory.
	_ = godotenv.Load()
}

// logger returns the CLI logger. Debug level when --verbose or TDK_DEBUG is
// set, warnings only otherwise.
func logger() zerolog.Logger {
	level := zerolog.WarnLevel
	if flagVerbose || os.Getenv("TDK_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
