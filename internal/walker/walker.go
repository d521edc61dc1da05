// Package walker enumerates project files by language, size cap, and
// include/exclude globs (C2), delegating glob matching to doublestar and
// optional .gitignore exclusion to GitignoreParser.
package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/codedup/internal/diagnostics"
	"github.com/standardbeagle/codedup/internal/types"
)

// DefaultExcludePatterns mirrors the conservative dependency/build/VCS
// exclusion set every project needs regardless of language.
var DefaultExcludePatterns = []string{
	"**/.git/**",
	"**/.*/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/bower_components/**",
	"**/dist/**",
	"**/build/**",
	"**/out/**",
	"**/target/**",
	"**/bin/**",
	"**/obj/**",
	"**/.dedup-backups/**",
}

const binaryValidationHeaderSize = 64 * 1024

// WalkedFile is one enumerated file passed to the caller's visitor.
type WalkedFile struct {
	AbsPath  string
	RelPath  string
	Language types.Language
	Size     int64
}

// Options configures one walk.
type Options struct {
	Roots             []string
	Languages         map[types.Language]types.LanguageProfile
	ExcludePatterns   []string
	IncludePatterns   []string
	MaxFileSizeBytes  int64
	RespectGitignore  bool
}

// Walk enumerates files under opts.Roots, calling visit for each file that
// passes language, size, and glob filters. Directory entries are sorted by
// name at every level so output is stable across runs. Returns the first
// error from reading a directory; a visit error does not abort the walk.
func Walk(opts Options, sink diagnostics.Sink, visit func(WalkedFile) error) error {
	excludes := append(append([]string{}, DefaultExcludePatterns...), opts.ExcludePatterns...)

	extToLang := make(map[string]types.Language)
	for lang, profile := range opts.Languages {
		for _, ext := range profile.Extensions {
			extToLang[ext] = lang
		}
	}

	for _, root := range opts.Roots {
		var gitignore *GitignoreParser
		if opts.RespectGitignore {
			gitignore = NewGitignoreParser()
			_ = gitignore.LoadGitignore(root)
		}

		if err := walkDir(root, root, excludes, opts.IncludePatterns, extToLang, opts.MaxFileSizeBytes, gitignore, sink, visit); err != nil {
			return err
		}
	}
	return nil
}

func walkDir(root, dir string, excludes, includes []string, extToLang map[string]types.Language, maxSize int64, gitignore *GitignoreParser, sink diagnostics.Sink, visit func(WalkedFile) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		absPath := filepath.Join(dir, entry.Name())
		relPath, err := filepath.Rel(root, absPath)
		if err != nil {
			continue
		}
		relSlash := filepath.ToSlash(relPath)

		if matchesAny(excludes, relSlash) {
			continue
		}
		if gitignore != nil && gitignore.ShouldIgnore(relSlash, entry.IsDir()) {
			continue
		}

		if entry.IsDir() {
			if err := walkDir(root, absPath, excludes, includes, extToLang, maxSize, gitignore, sink, visit); err != nil {
				return err
			}
			continue
		}

		if len(includes) > 0 && !matchesAny(includes, relSlash) {
			continue
		}

		lang, ok := extToLang[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if maxSize > 0 && info.Size() > maxSize {
			diagnostics.Warn(sink, "walker", "file exceeds MaxFileSizeBytes, skipping", relSlash)
			continue
		}

		if looksBinary(absPath) {
			diagnostics.Warn(sink, "walker", "file appears to be binary, skipping", relSlash)
			continue
		}

		if err := visit(WalkedFile{AbsPath: absPath, RelPath: relSlash, Language: lang, Size: info.Size()}); err != nil {
			diagnostics.Error(sink, "walker", "visitor failed", err)
		}
	}

	return nil
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if matched, err := doublestar.Match(p, path); err == nil && matched {
			return true
		}
	}
	return false
}

// looksBinary reads the first chunk of a file and flags it as binary if
// more than 30% of bytes are non-printable control characters — the same
// heuristic used to guard against feeding non-source files to the pattern
// executor.
func looksBinary(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, binaryValidationHeaderSize)
	n, _ := f.Read(buf)
	buf = buf[:n]
	if len(buf) == 0 {
		return false
	}

	nonPrintable := 0
	for _, b := range buf {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(buf)) > 0.3
}
