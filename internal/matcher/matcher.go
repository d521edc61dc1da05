// Package matcher adapts the external, opaque pattern-matching executable
// (C1) — an ast-grep-compatible binary invoked as a subprocess — into a
// typed Go interface, parsing its line-delimited JSON output and caching
// results through internal/cache.
package matcher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/codedup/internal/cache"
	"github.com/standardbeagle/codedup/internal/diagnostics"
	lcierrors "github.com/standardbeagle/codedup/internal/errors"
	"github.com/standardbeagle/codedup/internal/types"
)

// Position is one point in a source file as reported by the matcher.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Byte   int `json:"byte"`
}

// Range is a start/end pair as reported by the matcher.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// rawMatch is the wire shape of one line of matcher "run" output.
type rawMatch struct {
	File     string            `json:"file"`
	Range    Range             `json:"range"`
	Text     string            `json:"text"`
	MetaVars map[string]string `json:"meta_vars"`
}

// Match is one located pattern match, normalized to a project-relative path.
type Match struct {
	Location types.SourceLocation
	Text     string
	MetaVars map[string]string
}

// AstDumpNode is one node of a dumped AST, used by the variation analyzer
// (structure classification) and the applicator (post-validation).
type AstDumpNode struct {
	Kind     string        `json:"kind"`
	Text     string        `json:"text"`
	Range    Range         `json:"range"`
	Children []AstDumpNode `json:"children"`
}

// AstDump is the root of a dumped AST for one source text.
type AstDump struct {
	Root AstDumpNode `json:"root"`
}

// RunOptions tunes one RunPattern invocation.
type RunOptions struct {
	Timeout time.Duration
}

// PatternExecutor is the interface the rest of the engine depends on,
// implemented by Adapter and substitutable with a fake in tests so they
// never spawn a subprocess.
type PatternExecutor interface {
	RunPattern(ctx context.Context, language types.Language, pattern string, searchRoots []string, opts RunOptions) ([]Match, error)
	DumpAST(ctx context.Context, language types.Language, sourceText string) (AstDump, error)
}

// Adapter is the real PatternExecutor, spawning MatcherPath as a subprocess.
type Adapter struct {
	MatcherPath    string
	DefaultTimeout time.Duration
	Cache          *cache.Cache
	Diagnostics    diagnostics.Sink
}

// New constructs an Adapter. matcherPath defaults to "ast-grep" resolved
// via exec.LookPath if empty — the adapter never guesses or downloads a
// binary on its own.
func New(matcherPath string, defaultTimeout time.Duration, c *cache.Cache, sink diagnostics.Sink) *Adapter {
	if matcherPath == "" {
		matcherPath = "ast-grep"
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	return &Adapter{MatcherPath: matcherPath, DefaultTimeout: defaultTimeout, Cache: c, Diagnostics: sink}
}

// fingerprint computes the cache key for one RunPattern call over
// (language, pattern, sorted search roots, and each root's own mtime+size;
// a root that cannot be stat'ed contributes its path only).
func (a *Adapter) fingerprint(language types.Language, pattern string, searchRoots []string) cache.Key {
	roots := append([]string{}, searchRoots...)
	sort.Strings(roots)

	h := xxhash.New()
	fmt.Fprintf(h, "%s|%s|%s", language, pattern, strings.Join(roots, ","))
	for _, r := range roots {
		if info, err := os.Stat(r); err == nil {
			fmt.Fprintf(h, "|%d:%d", info.ModTime().UnixNano(), info.Size())
		}
	}
	return cache.Key{Fingerprint: h.Sum64(), Paths: roots}
}

// RunPattern invokes the matcher's `run` subcommand, consulting the cache
// first and populating it on a cache miss.
func (a *Adapter) RunPattern(ctx context.Context, language types.Language, pattern string, searchRoots []string, opts RunOptions) ([]Match, error) {
	key := a.fingerprint(language, pattern, searchRoots)
	if a.Cache != nil {
		if v, ok := a.Cache.Get(key); ok {
			return v.([]Match), nil
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = a.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{"run", "--pattern", pattern, "--lang", string(language), "--json"}, searchRoots...)
	matches, err := a.runAndParse(runCtx, args, pattern)
	if err != nil {
		return nil, err
	}

	if a.Cache != nil {
		size := 0
		for _, m := range matches {
			size += len(m.Text)
		}
		a.Cache.Put(key, matches, size)
	}
	return matches, nil
}

func (a *Adapter) runAndParse(ctx context.Context, args []string, pattern string) ([]Match, error) {
	cmd := exec.CommandContext(ctx, a.MatcherPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, lcierrors.NewPatternExecutionError(lcierrors.KindExecFailed, pattern, "", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, lcierrors.NewPatternExecutionError(lcierrors.KindExecFailed, pattern, "", err)
	}

	var matches []Match
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var raw rawMatch
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			diagnostics.Warn(a.Diagnostics, "matcher", "skipping unparseable matcher line", "")
			continue
		}
		if raw.Range.End.Byte < raw.Range.Start.Byte || raw.Range.Start.Byte < 0 {
			diagnostics.Warn(a.Diagnostics, "matcher", "skipping match with invalid byte range", raw.File)
			continue
		}
		matches = append(matches, Match{
			Location: types.SourceLocation{
				FilePath:  raw.File,
				StartLine: raw.Range.Start.Line,
				EndLine:   raw.Range.End.Line,
				StartByte: raw.Range.Start.Byte,
				EndByte:   raw.Range.End.Byte,
			},
			Text:     raw.Text,
			MetaVars: raw.MetaVars,
		})
	}

	waitErr := cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, lcierrors.NewPatternExecutionError(lcierrors.KindExecTimeout, pattern, stderr.String(), ctx.Err())
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			return nil, lcierrors.NewPatternExecutionError(lcierrors.KindExecFailed, pattern, stderr.String(), exitErr)
		}
		return nil, lcierrors.NewPatternExecutionError(lcierrors.KindExecTransient, pattern, stderr.String(), waitErr)
	}

	return matches, nil
}

// DumpAST invokes the matcher's `dump-ast` subcommand, piping sourceText via stdin.
func (a *Adapter) DumpAST(ctx context.Context, language types.Language, sourceText string) (AstDump, error) {
	runCtx, cancel := context.WithTimeout(ctx, a.DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, a.MatcherPath, "dump-ast", "--lang", string(language), "--json")
	cmd.Stdin = strings.NewReader(sourceText)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return AstDump{}, lcierrors.NewPatternExecutionError(lcierrors.KindExecTimeout, "dump-ast", stderr.String(), runCtx.Err())
		}
		return AstDump{}, lcierrors.NewPatternExecutionError(lcierrors.KindExecFailed, "dump-ast", stderr.String(), err)
	}

	var dump AstDump
	if err := json.Unmarshal([]byte(stdout.String()), &dump); err != nil {
		return AstDump{}, lcierrors.NewDetectionError(lcierrors.KindInvalidInput, "dump-ast decode", err)
	}
	return dump, nil
}
