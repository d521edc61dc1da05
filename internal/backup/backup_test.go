package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(filePath, []byte("package a\n"), 0o644))

	store := New(root)
	handle, err := store.Create("backup-1", []string{filePath})
	require.NoError(t, err)
	require.Len(t, handle.Files, 1)

	require.NoError(t, os.WriteFile(filePath, []byte("mutated"), 0o644))

	require.NoError(t, store.Restore(handle))

	restored, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(restored))
}

func TestCreateDeduplicatesIdenticalBlobs(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.go")
	b := filepath.Join(root, "b.go")
	require.NoError(t, os.WriteFile(a, []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same content"), 0o644))

	store := New(root)
	handle, err := store.Create("backup-1", []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, handle.Files[0].OriginalSHA256, handle.Files[1].OriginalSHA256)
	assert.Equal(t, handle.Files[0].BlobRef, handle.Files[1].BlobRef)
}

func TestLoadRoundTripsManifest(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(a, []byte("content"), 0o644))

	store := New(root)
	created, err := store.Create("backup-1", []string{a})
	require.NoError(t, err)

	loaded, err := store.Load("backup-1")
	require.NoError(t, err)
	assert.Equal(t, created.BackupID, loaded.BackupID)
	assert.Equal(t, created.Files, loaded.Files)
}

func TestPurgeRemovesOldBackupsAndOrphanedBlobs(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.go")
	require.NoError(t, os.WriteFile(a, []byte("content"), 0o644))

	store := New(root)
	handle, err := store.Create("old-backup", []string{a})
	require.NoError(t, err)

	// Backdate the manifest so Purge treats it as eligible.
	handle.CreatedAt = time.Now().AddDate(0, 0, -60)
	data, err := json.MarshalIndent(handle, "", "  ")
	require.NoError(t, err)
	require.NoError(t, writeAtomic(filepath.Join(store.backupDir("old-backup"), "manifest.json"), data))

	result, err := store.Purge(30)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BackupsRemoved)

	_, err = os.Stat(store.backupDir("old-backup"))
	assert.True(t, os.IsNotExist(err))
}
