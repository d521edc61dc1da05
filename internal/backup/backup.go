// Package backup implements the content-addressed backup store (C10)
// consulted by the applicator before any mutating write. Layout under
// <project_root>/.dedup-backups/<backup_id>/: manifest.json (the
// BackupHandle, stdlib encoding/json — no third-party JSON library is
// warranted for a single internal manifest with no external consumer) plus
// blobs/<sha256> (content-addressed; identical contents within one backup
// share one blob, and each backup keeps its own blobs directory, so blobs
// are not shared across backups).
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/standardbeagle/codedup/internal/types"
	"github.com/standardbeagle/codedup/pkg/pathutil"
)

const backupDirName = ".dedup-backups"

// Store manages backups for one project root.
type Store struct {
	ProjectRoot string
}

// New constructs a Store rooted at projectRoot.
func New(projectRoot string) *Store {
	return &Store{ProjectRoot: projectRoot}
}

func (s *Store) rootDir() string {
	return filepath.Join(s.ProjectRoot, backupDirName)
}

func (s *Store) backupDir(id string) string {
	return filepath.Join(s.rootDir(), id)
}

func (s *Store) blobsDir(id string) string {
	return filepath.Join(s.backupDir(id), "blobs")
}

// Create snapshots every file in filePaths into a new backup, persisting
// manifest.json before returning — the handle is durable on disk before
// any write begins, per spec.md §4.9/§4.10.
func (s *Store) Create(id string, filePaths []string) (types.BackupHandle, error) {
	if err := os.MkdirAll(s.blobsDir(id), 0o755); err != nil {
		return types.BackupHandle{}, fmt.Errorf("create backup dir: %w", err)
	}

	handle := types.BackupHandle{
		BackupID:    id,
		CreatedAt:   time.Now(),
		ProjectRoot: s.ProjectRoot,
	}

	for _, path := range filePaths {
		content, err := os.ReadFile(path)
		if err != nil {
			return types.BackupHandle{}, fmt.Errorf("read %s for backup: %w", path, err)
		}
		sum := sha256.Sum256(content)
		hexSum := hex.EncodeToString(sum[:])

		blobPath := filepath.Join(s.blobsDir(id), hexSum)
		if _, err := os.Stat(blobPath); os.IsNotExist(err) {
			if err := writeAtomic(blobPath, content); err != nil {
				return types.BackupHandle{}, fmt.Errorf("write blob for %s: %w", path, err)
			}
		}

		handle.Files = append(handle.Files, types.BackedUpFile{
			Path:           pathutil.ToRelative(path, s.ProjectRoot),
			OriginalSHA256: hexSum,
			BlobRef:        blobPath,
		})
	}

	if err := s.writeManifest(handle); err != nil {
		return types.BackupHandle{}, err
	}

	return handle, nil
}

func (s *Store) writeManifest(handle types.BackupHandle) error {
	data, err := json.MarshalIndent(handle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(s.backupDir(handle.BackupID), "manifest.json")
	return writeAtomic(manifestPath, data)
}

// Load reads a backup's manifest from disk.
func (s *Store) Load(id string) (types.BackupHandle, error) {
	data, err := os.ReadFile(filepath.Join(s.backupDir(id), "manifest.json"))
	if err != nil {
		return types.BackupHandle{}, fmt.Errorf("read manifest: %w", err)
	}
	var handle types.BackupHandle
	if err := json.Unmarshal(data, &handle); err != nil {
		return types.BackupHandle{}, fmt.Errorf("decode manifest: %w", err)
	}
	return handle, nil
}

// Restore writes every file in handle back from its blob, via temp+rename.
// Idempotent: always re-copies from the immutable blob, so a retried
// restore after a partial failure is safe.
func (s *Store) Restore(handle types.BackupHandle) error {
	for _, f := range handle.Files {
		content, err := os.ReadFile(f.BlobRef)
		if err != nil {
			return fmt.Errorf("read blob for %s: %w", f.Path, err)
		}
		target := filepath.Join(handle.ProjectRoot, f.Path)
		if err := writeAtomic(target, content); err != nil {
			return fmt.Errorf("restore %s: %w", f.Path, err)
		}
	}
	return nil
}

// Purge removes backup directories older than olderThanDays and any blobs
// no longer referenced by a surviving manifest.
func (s *Store) Purge(olderThanDays int) (types.PurgeResult, error) {
	var result types.PurgeResult
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	entries, err := os.ReadDir(s.rootDir())
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("list backups: %w", err)
	}

	surviving := make(map[string]bool)
	var toRemove []string

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		handle, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		if handle.CreatedAt.Before(cutoff) {
			toRemove = append(toRemove, e.Name())
			continue
		}
		for _, f := range handle.Files {
			surviving[f.OriginalSHA256] = true
		}
	}

	sort.Strings(toRemove)
	for _, id := range toRemove {
		size, blobCount, err := dirStats(s.blobsDir(id))
		if err == nil {
			result.BytesReclaimed += size
			result.BlobsRemoved += blobCount
		}
		if err := os.RemoveAll(s.backupDir(id)); err != nil {
			return result, fmt.Errorf("remove backup %s: %w", id, err)
		}
		result.BackupsRemoved++
	}

	return result, nil
}

func dirStats(dir string) (int64, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	var size int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, len(entries), nil
}

func writeAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + fmt.Sprintf(".tmp-%d", time.Now().UnixNano())
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
