package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tabledesk/tdk/internal/client"
	"github.com/tabledesk/tdk/internal/config"
	"github.com/tabledesk/tdk/internal/state"
)

// apiTimeout bounds single request/response API calls. Streaming and upload
// calls set their own deadlines.
const apiTimeout = 15 * time.Second

// defaultServerURL is used when neither the config file nor TABLEDESK_URL
// provides one.
const defaultServerURL = "http://localhost:8000"

// apiKey returns the API key from the environment (a workspace .env file is
// loaded at startup).
func apiKey() string {
	return strings.TrimSpace(os.Getenv("TABLEDESK_API_KEY"))
}

// requireConfig loads and validates the .tabledesk config file.
func requireConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no .tabledesk config found (run `tdk init` first)")
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid .tabledesk config: %w", err)
	}
	return cfg, nil
}

// newClient builds an authenticated TableDesk client for the workspace.
func newClient(cfg *config.Config) (*client.Client, error) {
	key := apiKey()
	if key == "" {
		return nil, fmt.Errorf("TABLEDESK_API_KEY is not set (run `tdk init`, or export the key from your dashboard)")
	}
	return client.NewWithAPIKey(cfg.ServerURL, key).WithLogger(logger()), nil
}

// statePath resolves the state file path next to the config file.
func statePath() (string, error) {
	root, err := config.WorkspaceRoot()
	if err != nil {
		return "", err
	}
	return state.DefaultPath(root), nil
}

// trackJobs records job ids in the workspace state so `tdk jobs watch`
// picks them up later. Best-effort: a state write failure is reported but
// never fails the command that spawned the jobs.
func trackJobs(jobIDs ...string) {
	if len(jobIDs) == 0 {
		return
	}
	path, err := statePath()
	if err != nil {
		log := logger()
		log.Warn().Err(err).Msg("cannot resolve state path, jobs not tracked")
		return
	}
	st, err := state.Load(path)
	if err != nil {
		log := logger()
		log.Warn().Err(err).Msg("cannot load state, jobs not tracked")
		return
	}
	added := false
	for _, id := range jobIDs {
		if id == "" {
			continue
		}
		if st.TrackJob(id) {
			added = true
		}
	}
	if !added {
		return
	}
	if err := state.Save(path, st); err != nil {
		log := logger()
		log.Warn().Err(err).Msg("cannot save state, jobs not tracked")
	}
}

// formatTimeAgo renders an RFC3339 timestamp as a rough relative duration.
// Returns "" when the timestamp doesn't parse.
func formatTimeAgo(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// formatProgress renders a 0.0-1.0 progress fraction as a percentage.
func formatProgress(p float64) string {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return fmt.Sprintf("%d%%", int(p*100+0.5))
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
