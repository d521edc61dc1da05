// Package pathutil converts between absolute and project-relative paths.
//
// This module uses absolute paths internally (matcher output, backup blob
// sources) but reports paths relative to the project root in every
// caller-facing result (DuplicationGroup members, BackupHandle, validation
// issues), for portability across machines and readability in output.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/codedup/internal/types"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or the path is already
// relative or lies outside rootDir.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// RelativizeBackedUpFiles rewrites each BackedUpFile's Path to be relative
// to rootDir, leaving BlobRef (an on-disk storage location, not a
// project-relative concept) untouched.
func RelativizeBackedUpFiles(files []types.BackedUpFile, rootDir string) []types.BackedUpFile {
	if len(files) == 0 {
		return files
	}
	converted := make([]types.BackedUpFile, len(files))
	copy(converted, files)
	for i := range converted {
		converted[i].Path = ToRelative(converted[i].Path, rootDir)
	}
	return converted
}
