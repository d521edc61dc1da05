// Package detector implements the duplication detector (C4): extracting
// function-like units via the pattern-executor adapter, fingerprinting
// them into a canonical token form, and grouping them into exact and
// near-duplicate DuplicationGroups.
package detector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/codedup/internal/diagnostics"
	lcierrors "github.com/standardbeagle/codedup/internal/errors"
	"github.com/standardbeagle/codedup/internal/matcher"
	"github.com/standardbeagle/codedup/internal/types"
	"github.com/standardbeagle/codedup/internal/walker"
	"github.com/standardbeagle/codedup/internal/workerpool"
)

// Options tunes one detection run.
type Options struct {
	MinSimilarity float64
	MinLines      int
	MaxCandidates int
	WorkerCount   int
}

// Detector extracts FunctionUnits via a PatternExecutor and groups them
// into DuplicationGroups. Stateless across calls except for its internal
// mutex, which merely guards against concurrent misuse of one instance
// from multiple goroutines — matching the teacher's single-mutex
// DuplicateDetector, scaled to a purpose-built type.
type Detector struct {
	mu       sync.RWMutex
	executor matcher.PatternExecutor
	sink     diagnostics.Sink
}

// New constructs a Detector bound to the given pattern executor.
func New(executor matcher.PatternExecutor, sink diagnostics.Sink) *Detector {
	return &Detector{executor: executor, sink: sink}
}

// ExtractUnits asks the pattern executor for every function-like
// construct in the given files, per the language's fixed pattern table.
// A file that fails to parse is logged and skipped; it never fails the
// whole run.
func (d *Detector) ExtractUnits(ctx context.Context, files []walker.WalkedFile, profile types.LanguageProfile, workers int) []types.FunctionUnit {
	d.mu.RLock()
	defer d.mu.RUnlock()

	results := workerpool.RunBatch(ctx, files, workers, func(ctx context.Context, f walker.WalkedFile) ([]types.FunctionUnit, error) {
		var units []types.FunctionUnit
		for _, pattern := range profile.FunctionPatterns {
			matches, err := d.executor.RunPattern(ctx, f.Language, pattern, []string{f.AbsPath}, matcher.RunOptions{})
			if err != nil {
				return nil, lcierrors.NewDetectionError(lcierrors.KindParseFailure, "extract units", err).WithFile(f.RelPath)
			}
			for _, m := range matches {
				units = append(units, buildUnit(f, m, profile))
			}
		}
		return units, nil
	})

	var all []types.FunctionUnit
	for i, r := range results {
		if r.Err != nil {
			diagnostics.Warn(d.sink, "detector", fmt.Sprintf("skipping file: %v", r.Err), files[i].RelPath)
			continue
		}
		all = append(all, r.Value...)
	}
	return all
}

func buildUnit(f walker.WalkedFile, m matcher.Match, profile types.LanguageProfile) types.FunctionUnit {
	name := m.MetaVars["NAME"]
	if name == "" {
		name = m.MetaVars["name"]
	}

	tokens := tokenize(m.Text)
	canon := canonicalize(tokens, profile.TypeNames)
	canonJoined := strings.Join(canon, " ")

	h := xxhash.New()
	h.Write([]byte(canonJoined))

	loc := m.Location
	loc.FilePath = f.RelPath

	return types.FunctionUnit{
		ID:              fmt.Sprintf("%s:%d-%d", f.RelPath, loc.StartLine, loc.EndLine),
		Location:        loc,
		Language:        f.Language,
		Name:            name,
		SignatureText:   firstLine(m.Text),
		BodyText:        m.Text,
		BodyFingerprint: xxhash.Sum64([]byte(m.Text)),
		BodyTokenLength: len(tokens),
		HashCanonical:   strconv.FormatUint(h.Sum64(), 16),
	}
}

func firstLine(text string) string {
	if idx := strings.IndexAny(text, "{\n"); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return strings.TrimSpace(text)
}

// Group partitions units into DuplicationGroups: units sharing
// hash_canonical form exact groups (similarity 1.0); everything else is
// bucketed by k-shingle minhash LSH and compared pairwise via go-edlib
// Levenshtein similarity, then merged transitively via union-find.
// Singletons are discarded. Groups are capped at opts.MaxCandidates,
// ordered by estimated savings descending.
func (d *Detector) Group(units []types.FunctionUnit, opts Options) []types.DuplicationGroup {
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = 0.8
	}
	if opts.MinLines <= 0 {
		opts.MinLines = 5
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 100
	}

	byLanguage := make(map[types.Language][]types.FunctionUnit)
	for _, u := range units {
		byLanguage[u.Language] = append(byLanguage[u.Language], u)
	}

	var groups []types.DuplicationGroup
	for lang, langUnits := range byLanguage {
		groups = append(groups, groupWithinLanguage(lang, langUnits, opts)...)
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].EstimatedSavingsLines > groups[j].EstimatedSavingsLines
	})
	if len(groups) > opts.MaxCandidates {
		groups = groups[:opts.MaxCandidates]
	}
	return groups
}

func groupWithinLanguage(lang types.Language, units []types.FunctionUnit, opts Options) []types.DuplicationGroup {
	exact := make(map[string][]int)
	for i, u := range units {
		exact[u.HashCanonical] = append(exact[u.HashCanonical], i)
	}

	consumed := make(map[int]bool)
	var groups []types.DuplicationGroup

	var exactHashes []string
	for h := range exact {
		exactHashes = append(exactHashes, h)
	}
	sort.Strings(exactHashes)

	for _, h := range exactHashes {
		members := exact[h]
		if len(members) < 2 {
			continue
		}
		if g, ok := buildGroup(lang, units, members, 1.0, opts.MinLines); ok {
			groups = append(groups, g)
			for _, m := range members {
				consumed[m] = true
			}
		}
	}

	var remaining []int
	for i := range units {
		if !consumed[i] {
			remaining = append(remaining, i)
		}
	}
	if len(remaining) < 2 {
		return groups
	}

	signatures := make([][]uint64, len(remaining))
	for idx, unitIdx := range remaining {
		tokens := tokenize(units[unitIdx].BodyText)
		canon := canonicalize(tokens, nil)
		signatures[idx] = minhashSignature(shingles(canon, shingleSize))
	}

	candidatePairs := lshBuckets(signatures)

	uf := newUnionFind(len(remaining))
	for _, pair := range candidatePairs {
		ui, uj := remaining[pair[0]], remaining[pair[1]]
		if !withinLineTolerance(units[ui], units[uj]) {
			continue
		}
		sim := editSimilarity(units[ui].BodyText, units[uj].BodyText)
		if sim >= opts.MinSimilarity {
			uf.union(pair[0], pair[1])
		}
	}

	for _, component := range uf.components() {
		if len(component) < 2 {
			continue
		}
		members := make([]int, len(component))
		for i, c := range component {
			members[i] = remaining[c]
		}
		sim := averagePairwiseSimilarity(units, members)
		if g, ok := buildGroupWithSimilarity(lang, units, members, sim, opts.MinLines); ok {
			groups = append(groups, g)
		}
	}

	return groups
}

func withinLineTolerance(a, b types.FunctionUnit) bool {
	la := a.Location.EndLine - a.Location.StartLine + 1
	lb := b.Location.EndLine - b.Location.StartLine + 1
	if la == 0 || lb == 0 {
		return false
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	larger := la
	if lb > larger {
		larger = lb
	}
	return float64(diff)/float64(larger) <= 0.2
}

func editSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0.0
	}
	return float64(sim)
}

func averagePairwiseSimilarity(units []types.FunctionUnit, members []int) float64 {
	if len(members) < 2 {
		return 1.0
	}
	total, pairs := 0.0, 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += editSimilarity(units[members[i]].BodyText, units[members[j]].BodyText)
			pairs++
		}
	}
	if pairs == 0 {
		return 0.0
	}
	return total / float64(pairs)
}

func buildGroup(lang types.Language, units []types.FunctionUnit, memberIdx []int, similarity float64, minLines int) (types.DuplicationGroup, bool) {
	return buildGroupWithSimilarity(lang, units, memberIdx, similarity, minLines)
}

func buildGroupWithSimilarity(lang types.Language, units []types.FunctionUnit, memberIdx []int, similarity float64, minLines int) (types.DuplicationGroup, bool) {
	members := make([]types.FunctionUnit, len(memberIdx))
	for i, idx := range memberIdx {
		members[i] = units[idx]
	}

	linesPerMember := 0
	for _, m := range members {
		l := m.Location.EndLine - m.Location.StartLine + 1
		if l > linesPerMember {
			linesPerMember = l
		}
	}
	if linesPerMember < minLines {
		return types.DuplicationGroup{}, false
	}

	totalLines := linesPerMember * len(members)
	overheadEstimate := linesPerMember / 4
	savings := (len(members)-1)*linesPerMember - overheadEstimate
	if savings < 0 {
		savings = 0
	}

	repIdx := representativeIndex(members)

	return types.DuplicationGroup{
		GroupID:               groupID(members),
		Language:              lang,
		Members:               members,
		RepresentativeIndex:   repIdx,
		SimilarityScore:       similarity,
		LinesPerMember:        linesPerMember,
		TotalLines:            totalLines,
		EstimatedSavingsLines: savings,
	}, true
}

// representativeIndex picks the member with the median token length,
// breaking ties by lexicographically smallest file path.
func representativeIndex(members []types.FunctionUnit) int {
	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := members[order[i]], members[order[j]]
		if a.BodyTokenLength != b.BodyTokenLength {
			return a.BodyTokenLength < b.BodyTokenLength
		}
		return a.Location.FilePath < b.Location.FilePath
	})
	median := members[order[len(order)/2]].BodyTokenLength
	for _, i := range order {
		if members[i].BodyTokenLength == median {
			return i
		}
	}
	return order[len(order)/2]
}

func groupID(members []types.FunctionUnit) string {
	h := xxhash.New()
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	sort.Strings(ids)
	h.Write([]byte(strings.Join(ids, "|")))
	return strconv.FormatUint(h.Sum64(), 16)
}
