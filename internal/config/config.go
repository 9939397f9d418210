// Package config handles .tabledesk configuration file parsing.
//
// The .tabledesk file is located at the workspace root and contains:
//
//	workspace_id: "uuid"                  - Workspace identifier (server-assigned)
//	tabledesk_url: "http://..."           - TableDesk server URL
//	workspace: "quarterly-finance"        - Human-readable workspace slug
//	user_name: "Dana"                     - Display name for chat attribution
//	data_dir: "data"                      - Optional directory for `tdk files sync`
//	default_table: "revenue-2026"         - Optional default table for chat
//
// The API key is never stored in this file. It comes from the
// TABLEDESK_API_KEY environment variable (a .env file is loaded best-effort).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file.
const FileName = ".tabledesk"

// customPath holds an optional custom config file path.
// When empty, Load() uses the default FileName.
var customPath string

// SetPath sets a custom config file path for Load() to use.
// Pass an empty string to reset to the default path.
func SetPath(path string) {
	customPath = path
}

// GetPath returns the current config file path.
// Returns the custom path if set, otherwise the default FileName.
func GetPath() string {
	if customPath != "" {
		return customPath
	}
	return FileName
}

// FindPath resolves the config file path using the same logic as Load(),
// without reading or parsing the file contents.
func FindPath() (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	return findDefaultConfigPath()
}

// WorkspaceRoot returns the directory containing the resolved config file.
func WorkspaceRoot() (string, error) {
	path, err := FindPath()
	if err != nil {
		return "", err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Dir(path), nil
}

// Validation patterns (matching the server's registration rules)
var (
	uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	urlPattern  = regexp.MustCompile(`^https?://[^\s]+$`)
	slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	// Match server: HUMAN_NAME_PATTERN in accounts service
	userNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9 '\-]{0,63}$`)
	// Table names are server-assigned but user-referenced; same charset as slugs
	// plus underscores and dots for sheet-derived names.
	tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
)

// Config represents the .tabledesk configuration file.
type Config struct {
	WorkspaceID  string `yaml:"workspace_id"`
	ServerURL    string `yaml:"tabledesk_url"`
	Workspace    string `yaml:"workspace"`
	UserName     string `yaml:"user_name"`
	DataDir      string `yaml:"data_dir,omitempty"`
	DefaultTable string `yaml:"default_table,omitempty"`
}

// Load reads and parses the .tabledesk configuration file.
// Uses the custom path if set via SetPath(), otherwise uses the default FileName.
func Load() (*Config, error) {
	if customPath != "" {
		return LoadFrom(customPath)
	}

	path, err := findDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads and parses a .tabledesk configuration file from a specific path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err // Return unwrapped for os.IsNotExist() checks
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &cfg, nil
}

func findDefaultConfigPath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		// Fallback: look only in current directory
		return FileName, nil
	}

	gitRoot, ok := findGitRoot(cwd)
	if !ok {
		// If we're not in a git worktree, don't walk parents (avoid accidentally
		// picking up an unrelated .tabledesk higher up).
		return FileName, nil
	}

	dir := cwd
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		if dir == gitRoot {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Return an IsNotExist error with a helpful path (repo root) so callers
	// can still rely on os.IsNotExist(err).
	rootCandidate := filepath.Join(gitRoot, FileName)
	return rootCandidate, &os.PathError{Op: "open", Path: rootCandidate, Err: os.ErrNotExist}
}

func findGitRoot(start string) (string, bool) {
	dir := start
	for {
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}

// Save writes the configuration to the config file.
// Uses the custom path if set via SetPath(), otherwise uses the default FileName.
func (c *Config) Save() error {
	path := GetPath()
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Write with header comment
	header := "# Generated by: tdk init\n# Safe to commit - the API key lives in TABLEDESK_API_KEY, not here.\n\n"
	content := header + string(data)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	if c.WorkspaceID == "" {
		return fmt.Errorf("workspace_id is required")
	}
	if !uuidPattern.MatchString(c.WorkspaceID) {
		return fmt.Errorf("workspace_id must be a valid UUID")
	}
	if c.ServerURL == "" {
		return fmt.Errorf("tabledesk_url is required")
	}
	if !urlPattern.MatchString(c.ServerURL) {
		return fmt.Errorf("tabledesk_url must be a valid HTTP(S) URL")
	}
	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	if !IsValidSlug(c.Workspace) {
		return fmt.Errorf("workspace must be lowercase alphanumeric with hyphens")
	}
	if c.UserName == "" {
		return fmt.Errorf("user_name is required")
	}
	if !userNamePattern.MatchString(c.UserName) {
		return fmt.Errorf("user_name must start with a letter and contain only letters, digits, spaces, hyphens, or apostrophes (max 64 chars)")
	}
	if c.DataDir != "" && filepath.IsAbs(c.DataDir) {
		return fmt.Errorf("data_dir must be relative to the workspace root")
	}
	if c.DefaultTable != "" && !IsValidTableName(c.DefaultTable) {
		return fmt.Errorf("default_table must start with an alphanumeric and contain only alphanumerics, dots, dashes, or underscores (max 128 chars)")
	}

	return nil
}

// IsValidTableName checks if a table reference matches the server naming rules.
func IsValidTableName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	return tableNamePattern.MatchString(name)
}

// SanitizeSlug converts a string (typically a directory name) to a valid
// workspace slug. It handles common issues like underscores, dots, spaces,
// and special characters. Returns an empty string if the input cannot be
// sanitized to a valid slug.
func SanitizeSlug(name string) string {
	if name == "" {
		return ""
	}

	// Lowercase first
	s := strings.ToLower(name)

	// Replace common separators with hyphens
	replacer := strings.NewReplacer(
		"_", "-",
		".", "-",
		" ", "-",
	)
	s = replacer.Replace(s)

	// Remove any characters that aren't alphanumeric or hyphen
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	s = result.String()

	// Collapse multiple hyphens to single
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}

	// Trim leading/trailing hyphens
	s = strings.Trim(s, "-")

	// Enforce max length (63 chars for DNS-compatible slug)
	if len(s) > 63 {
		s = s[:63]
		// Ensure we don't end with a hyphen after truncation
		s = strings.TrimRight(s, "-")
	}

	// Must start with alphanumeric
	if len(s) == 0 {
		return ""
	}
	if (s[0] < 'a' || s[0] > 'z') && (s[0] < '0' || s[0] > '9') {
		return ""
	}

	return s
}

// IsValidSlug checks if a string is a valid workspace slug.
func IsValidSlug(slug string) bool {
	return slugPattern.MatchString(slug) && len(slug) <= 63
}
