package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyState(t *testing.T) {
	st, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.True(t, st.NeedsFullSync())
	assert.Empty(t, st.TrackedJobs)
	assert.NotNil(t, st.FileHashes)
}

func TestLoadCorruptFileReturnsEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0644))

	st, err := Load(path)
	require.NoError(t, err)
	assert.True(t, st.NeedsFullSync())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	st := &State{
		FileHashes:  map[string]string{"data/revenue.csv": "v1:abc"},
		TrackedJobs: []string{"job-1", "job-2"},
	}
	require.NoError(t, Save(path, st))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, st.FileHashes, loaded.FileHashes)
	assert.Equal(t, st.TrackedJobs, loaded.TrackedJobs)
	assert.False(t, loaded.NeedsFullSync())
}

func TestSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", FileName)
	require.NoError(t, Save(path, &State{FileHashes: map[string]string{}}))
	assert.FileExists(t, path)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, Save(path, &State{FileHashes: map[string]string{}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestUpdateFiles(t *testing.T) {
	st := &State{FileHashes: map[string]string{"old.csv": "v1:old"}}
	st.UpdateFiles(map[string]string{"new.csv": "v1:new"})

	assert.Equal(t, map[string]string{"new.csv": "v1:new"}, st.FileHashes)
	assert.False(t, st.LastSync.IsZero())
}

func TestTrackJob(t *testing.T) {
	st := &State{}

	assert.True(t, st.TrackJob("job-1"))
	assert.True(t, st.TrackJob("job-2"))
	assert.False(t, st.TrackJob("job-1"), "duplicate track should be a no-op")
	assert.Equal(t, []string{"job-1", "job-2"}, st.TrackedJobs)
}

func TestUntrackJob(t *testing.T) {
	st := &State{TrackedJobs: []string{"job-1", "job-2", "job-3"}}

	assert.True(t, st.UntrackJob("job-2"))
	assert.Equal(t, []string{"job-1", "job-3"}, st.TrackedJobs)
	assert.False(t, st.UntrackJob("job-2"), "untracking twice should report false")
	assert.False(t, st.UntrackJob("never-tracked"))
}
