// Package coverage implements the test-coverage probe (C8): a single
// inverted index built once from a project's test files, answering both
// "is this source file covered by any test" and "does this function have
// call sites outside its own duplication group" in O(1) lookups after an
// O(#tests + #sources) build pass — no external matcher invocation, plain
// text scans with precompiled regexps, matching the teacher's internal/git
// line-oriented bufio.Scanner idiom.
package coverage

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/standardbeagle/codedup/internal/types"
)

// Index is the built inverted index: identifiers/module-names referenced
// in test files, mapped to the test files that reference them.
type Index struct {
	referencedBy map[string][]string
}

var identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Build scans every file in testFiles once, recording every identifier-like
// token it contains against that file.
func Build(testFiles []string) (*Index, error) {
	idx := &Index{referencedBy: make(map[string][]string)}

	for _, tf := range testFiles {
		seen := make(map[string]bool)
		if err := scanFile(tf, func(token string) {
			if seen[token] {
				return
			}
			seen[token] = true
			idx.referencedBy[token] = append(idx.referencedBy[token], tf)
		}); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

func scanFile(path string, onToken func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, tok := range identifierPattern.FindAllString(line, -1) {
			onToken(tok)
		}
	}
	return scanner.Err()
}

// IsTestFile reports whether relPath matches any of the language's
// TestFileGlobs.
func IsTestFile(relPath string, globs []string) bool {
	base := filepath.Base(relPath)
	for _, g := range globs {
		if matched, _ := filepath.Match(g, base); matched {
			return true
		}
		if matched, _ := filepath.Match(g, relPath); matched {
			return true
		}
	}
	return false
}

// moduleBaseName derives the lookup key for a source file: its base name
// without extension, the identifier a test is most likely to reference
// (an import path segment or a `from X import` module name).
func moduleBaseName(relPath string) string {
	base := filepath.Base(relPath)
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		base = base[:idx]
	}
	return base
}

// Covered reports coverage for a batch of source files against the index.
func Covered(files []string, idx *Index) types.CoverageReport {
	report := make(types.CoverageReport, len(files))
	for _, f := range files {
		key := moduleBaseName(f)
		testFiles := idx.referencedBy[key]
		report[f] = types.CoverageInfo{
			Covered:   len(testFiles) > 0,
			TestFiles: testFiles,
		}
	}
	return report
}

// HasExternalCallSites reports whether unit's function name is referenced
// by any test file, excluding the files already belonging to its own
// DuplicationGroup — used to feed C7's risk term.
func HasExternalCallSites(unit types.FunctionUnit, group types.DuplicationGroup, idx *Index) bool {
	if unit.Name == "" {
		return false
	}
	groupFiles := make(map[string]bool, len(group.Members))
	for _, m := range group.Members {
		groupFiles[m.Location.FilePath] = true
	}

	for _, tf := range idx.referencedBy[unit.Name] {
		if !groupFiles[tf] {
			return true
		}
	}
	return false
}
