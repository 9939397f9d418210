package commands

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

var dashboardPrintOnly bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the TableDesk web dashboard",
	Long: `Open the TableDesk web dashboard in a browser, signed in to this
workspace.

The API key travels in the URL fragment, which browsers never send over the
wire; the dashboard reads it client-side.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().BoolVar(&dashboardPrintOnly, "print", false, "Print the URL instead of opening a browser")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	base := strings.TrimSpace(os.Getenv("TABLEDESK_DASHBOARD_URL"))
	if base == "" {
		// Default: the dashboard is served from the API server's origin.
		base = cfg.ServerURL
	}
	base = strings.TrimRight(base, "/")

	target := fmt.Sprintf("%s/w/%s", base, url.PathEscape(cfg.Workspace))
	if key := apiKey(); key != "" {
		target += "#api_key=" + url.QueryEscape(key)
	}

	if dashboardPrintOnly {
		fmt.Println(target)
		return nil
	}

	fmt.Printf("Opening %s/w/%s ...\n", base, cfg.Workspace)
	if err := openURL(target); err != nil {
		fmt.Printf("Could not open a browser: %v\nOpen this yourself:\n  %s\n", err, target)
	}
	return nil
}

// openURL opens a URL in the default browser.
func openURL(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u).Start()
	default:
		return exec.Command("xdg-open", u).Start()
	}
}
