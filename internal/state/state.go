// Local workspace state for tdk.
//
// IMPORTANT: Concurrent access is not supported. Running multiple tdk
// processes simultaneously (e.g., in separate terminals) may cause race
// conditions when updating the state file. The last writer wins, which may
// result in an unchanged file being re-uploaded or a finished job being
// polled once more on the next run. This is a benign failure mode - it only
// causes unnecessary requests, not data loss. The system recovers
// automatically on the next sync or poll.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileName is the name of the state file at the workspace root.
const FileName = ".tabledesk.state.json"

// State is the persistent per-workspace client state.
type State struct {
	// LastSync is the timestamp of the last successful `files sync`.
	LastSync time.Time `json:"last_sync"`

	// FileHashes maps a workspace-relative file path to its content hash
	// at last sync.
	FileHashes map[string]string `json:"file_hashes"`

	// TrackedJobs holds ids of background jobs being watched. A job is
	// removed once a terminal state is observed, so a fresh process resumes
	// watching only what is still in flight.
	TrackedJobs []string `json:"tracked_jobs,omitempty"`
}

// DefaultPath returns the state file path for a workspace root.
func DefaultPath(root string) string {
	return filepath.Join(root, FileName)
}

// Load loads state from file.
// Returns empty state (triggering a full sync) if the file doesn't exist or is corrupt.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyState(), nil
		}
		return nil, err
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		// Corrupt file - start over rather than fail every command
		return emptyState(), nil
	}

	if st.FileHashes == nil {
		st.FileHashes = make(map[string]string)
	}

	return &st, nil
}

func emptyState() *State {
	return &State{
		FileHashes: make(map[string]string),
	}
}

// Save saves state to file atomically.
// Uses write-rename pattern to prevent corruption.
func Save(path string, st *State) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Marshal with indentation for human readability
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first, then rename (atomic on most filesystems)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// UpdateFiles records the file hashes after a successful sync.
func (s *State) UpdateFiles(newHashes map[string]string) {
	s.LastSync = time.Now().UTC()
	s.FileHashes = newHashes
}

// NeedsFullSync returns true when no prior sync state exists, so every
// local file must be uploaded.
func (s *State) NeedsFullSync() bool {
	return len(s.FileHashes) == 0
}

// TrackJob adds a job id to the tracked set. Returns false if it was
// already tracked.
func (s *State) TrackJob(jobID string) bool {
	for _, id := range s.TrackedJobs {
		if id == jobID {
			return false
		}
	}
	s.TrackedJobs = append(s.TrackedJobs, jobID)
	return true
}

// UntrackJob removes a job id from the tracked set. Returns false if it
// was not tracked.
func (s *State) UntrackJob(jobID string) bool {
	for i, id := range s.TrackedJobs {
		if id == jobID {
			s.TrackedJobs = append(s.TrackedJobs[:i], s.TrackedJobs[i+1:]...)
			return true
		}
	}
	return false
}
