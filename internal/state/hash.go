// Hash-based change detection for `tdk files sync`.
//
// Instead of re-uploading every spreadsheet on every sync, we:
// 1. Compute a SHA256 content hash for each file under the data directory
// 2. Compare with the hashes recorded at last sync
// 3. Only upload files whose hash changed, and delete remote files whose
//    local counterpart disappeared
//
// Edge cases:
//   - Only recognized spreadsheet extensions are scanned; everything else
//     in the data directory is ignored
//   - Hidden files and directories (dot-prefixed) are skipped
//   - Paths are recorded relative to the scanned directory with forward
//     slashes, so state files move cleanly between platforms
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// HashVersion is the version prefix for file content hashes.
// Increment this when changing the hashing algorithm to invalidate old sync
// state and trigger a full re-upload, ensuring nothing is missed.
const HashVersion = "v1"

// spreadsheetExts lists the file extensions the server knows how to parse.
var spreadsheetExts = map[string]bool{
	".csv":     true,
	".tsv":     true,
	".xlsx":    true,
	".parquet": true,
	".json":    true,
}

// IsSpreadsheet reports whether a file name has a recognized spreadsheet
// extension.
func IsSpreadsheet(name string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(name))]
}

// HashFile computes the versioned SHA256 content hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return fmt.Sprintf("%s:%s", HashVersion, hex.EncodeToString(h.Sum(nil))), nil
}

// ScanDir walks dir and hashes every spreadsheet file found.
// Returns a map from slash-separated relative path to content hash.
func ScanDir(dir string) (map[string]string, error) {
	hashes := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !IsSpreadsheet(name) {
			return nil
		}

		hash, err := HashFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hashes[filepath.ToSlash(rel)] = hash
		return nil
	})
	if err != nil {
		return nil, err
	}

	return hashes, nil
}

// FindChangedFiles compares current hashes with last-synced hashes and
// returns the paths of files that have changed or are new.
func FindChangedFiles(current, lastSynced map[string]string) []string {
	var changed []string

	for path, currentHash := range current {
		lastHash, exists := lastSynced[path]
		if !exists || lastHash != currentHash {
			changed = append(changed, path)
		}
	}

	// Sort for deterministic output
	sort.Strings(changed)
	return changed
}

// FindRemovedFiles returns paths that existed in lastSynced but are no
// longer present locally.
func FindRemovedFiles(current, lastSynced map[string]string) []string {
	var removed []string

	for path := range lastSynced {
		if _, exists := current[path]; !exists {
			removed = append(removed, path)
		}
	}

	// Sort for deterministic output
	sort.Strings(removed)
	return removed
}
