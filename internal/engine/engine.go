// Package engine wires C1-C11 behind the single engine.Engine entry
// point (C12): the matcher adapter, cache, worker pool, and diagnostics
// sink are all built once at construction and held as unexported fields,
// never re-bound at runtime.
package engine

import (
	"context"
	"fmt"

	"github.com/standardbeagle/codedup/internal/applicator"
	"github.com/standardbeagle/codedup/internal/backup"
	"github.com/standardbeagle/codedup/internal/cache"
	"github.com/standardbeagle/codedup/internal/codegen"
	"github.com/standardbeagle/codedup/internal/config"
	"github.com/standardbeagle/codedup/internal/coverage"
	"github.com/standardbeagle/codedup/internal/detector"
	"github.com/standardbeagle/codedup/internal/diagnostics"
	"github.com/standardbeagle/codedup/internal/matcher"
	"github.com/standardbeagle/codedup/internal/ranker"
	"github.com/standardbeagle/codedup/internal/types"
	"github.com/standardbeagle/codedup/internal/variation"
	"github.com/standardbeagle/codedup/internal/walker"
)

// FindOptions tunes one FindDuplicates/Recommend call, overlaying
// EngineOptions defaults for this call only.
type FindOptions struct {
	Roots         []string
	MinSimilarity float64
	MinLines      int
	MaxCandidates int
}

// PlanOptions tunes one GeneratePlan call.
type PlanOptions struct {
	CanonicalName string
}

// GroupAnalysis is AnalyzeGroup's return value.
type GroupAnalysis struct {
	Variations variation.Result
}

// Recommendation pairs a group with its composite score.
type Recommendation struct {
	Group types.DuplicationGroup
	Score types.CandidateScore
}

// Engine is the single entry point for every engine operation.
type Engine struct {
	opts       config.EngineOptions
	executor   matcher.PatternExecutor
	cache      *cache.Cache
	sink       diagnostics.Sink
	det        *detector.Detector
	variations *variation.Analyzer
}

// New validates opts, builds C1/C3/C11/C13 once, and returns a ready
// Engine. opts is never mutated after construction.
func New(opts config.EngineOptions) (*Engine, error) {
	if err := config.ValidateConfig(&opts); err != nil {
		return nil, fmt.Errorf("invalid engine options: %w", err)
	}

	sink := diagnostics.NewMemorySink(true)
	c := cache.New(cache.Options{MaxEntries: opts.CacheEntries, MaxBytes: opts.CacheBytes, TTL: opts.CacheTTL})
	exec := matcher.New(opts.MatcherPath, opts.MatcherTimeout, c, sink)

	return &Engine{
		opts:       opts,
		executor:   exec,
		cache:      c,
		sink:       sink,
		det:        detector.New(exec, sink),
		variations: variation.New(exec, opts.MaxParameters),
	}, nil
}

// Diagnostics returns the events accumulated across every operation run
// on this Engine instance.
func (e *Engine) Diagnostics() []types.DiagnosticEvent {
	return e.sink.Events()
}

// FindDuplicates walks projectRoot, extracts function units for language,
// and groups them into DuplicationGroups.
func (e *Engine) FindDuplicates(ctx context.Context, projectRoot string, language types.Language, opts FindOptions) ([]types.DuplicationGroup, error) {
	profile, ok := e.opts.Languages[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}

	roots := opts.Roots
	if len(roots) == 0 {
		roots = []string{projectRoot}
	}

	var files []walker.WalkedFile
	walkOpts := walker.Options{
		Roots:            roots,
		Languages:        map[types.Language]types.LanguageProfile{language: profile},
		ExcludePatterns:  e.opts.ExcludePatterns,
		IncludePatterns:  e.opts.IncludePatterns,
		MaxFileSizeBytes: e.opts.MaxFileSizeBytes,
		RespectGitignore: e.opts.RespectGitignore,
	}
	if err := walker.Walk(walkOpts, e.sink, func(f walker.WalkedFile) error {
		files = append(files, f)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("walk project root: %w", err)
	}

	units := e.det.ExtractUnits(ctx, files, profile, e.opts.WorkerCount)

	detOpts := detector.Options{
		MinSimilarity: firstPositive(opts.MinSimilarity, e.opts.MinSimilarity),
		MinLines:      firstPositiveInt(opts.MinLines, e.opts.MinLines),
		MaxCandidates: firstPositiveInt(opts.MaxCandidates, e.opts.MaxCandidates),
		WorkerCount:   e.opts.WorkerCount,
	}
	return e.det.Group(units, detOpts), nil
}

// AnalyzeGroup aligns and classifies one group's member differences.
func (e *Engine) AnalyzeGroup(ctx context.Context, group types.DuplicationGroup, language types.Language) (GroupAnalysis, error) {
	profile, ok := e.opts.Languages[language]
	if !ok {
		return GroupAnalysis{}, fmt.Errorf("unsupported language %q", language)
	}

	memberTokens := make([][]string, len(group.Members))
	for i, m := range group.Members {
		memberTokens[i] = detector.Tokenize(m.BodyText)
	}

	result := e.variations.Analyze(ctx, group, memberTokens, profile)
	return GroupAnalysis{Variations: result}, nil
}

// GeneratePlan synthesizes an ExtractedFunctionPlan for a mergeable group.
// AnalyzeGroup must be called first; its result drives parameter derivation.
func (e *Engine) GeneratePlan(ctx context.Context, group types.DuplicationGroup, analysis GroupAnalysis, language types.Language, opts PlanOptions) (types.ExtractedFunctionPlan, error) {
	if !analysis.Variations.Mergeable {
		return types.ExtractedFunctionPlan{}, fmt.Errorf("group %s is not mergeable", group.GroupID)
	}

	params := make([]types.Parameter, len(analysis.Variations.ParameterNames))
	for i, name := range analysis.Variations.ParameterNames {
		typ := "unknown"
		if i < len(analysis.Variations.ParameterTypes) {
			typ = analysis.Variations.ParameterTypes[i]
		}
		params[i] = types.Parameter{Name: name, Type: typ}
	}

	rep := group.Members[group.RepresentativeIndex]
	_, consensusSpans := detector.TokenizeWithOffsets(rep.BodyText)

	plan := codegen.Generate(group, params, language, codegen.Variation{
		MemberArguments: analysis.Variations.ParameterArguments,
		Segments:        analysis.Variations.ParameterSegments,
		ConsensusSpans:  consensusSpans,
	})
	if opts.CanonicalName != "" {
		plan.CanonicalName = opts.CanonicalName
	}
	return plan, nil
}

// Recommend finds duplicates and returns the top-scored groups by
// composite, with external-call-site/coverage signals factored into risk.
func (e *Engine) Recommend(ctx context.Context, projectRoot string, language types.Language, opts FindOptions, testFiles []string, topN int) ([]Recommendation, error) {
	groups, err := e.FindDuplicates(ctx, projectRoot, language, opts)
	if err != nil {
		return nil, err
	}

	idx, err := coverage.Build(testFiles)
	if err != nil {
		return nil, fmt.Errorf("build coverage index: %w", err)
	}

	inputs := make([]ranker.GroupInput, len(groups))
	for i, g := range groups {
		analysis, err := e.AnalyzeGroup(ctx, g, language)
		severity := types.SeverityParameterizable
		if err == nil && len(analysis.Variations.Variations) > 0 {
			severity = worstSeverity(analysis.Variations.Variations)
		}

		hasExternal := false
		for _, m := range g.Members {
			if coverage.HasExternalCallSites(m, g, idx) {
				hasExternal = true
				break
			}
		}

		sourceFiles := make([]string, len(g.Members))
		for j, m := range g.Members {
			sourceFiles[j] = m.Location.FilePath
		}
		report := coverage.Covered(sourceFiles, idx)
		covered := 0
		for _, info := range report {
			if info.Covered {
				covered++
			}
		}
		coverageFraction := 0.0
		if len(sourceFiles) > 0 {
			coverageFraction = float64(covered) / float64(len(sourceFiles))
		}

		paramCount := 0
		if err == nil {
			paramCount = len(analysis.Variations.ParameterNames)
		}

		inputs[i] = ranker.GroupInput{
			Group:                g,
			Mergeable:            err == nil && analysis.Variations.Mergeable,
			Severity:             severity,
			ParameterCount:       paramCount,
			HasExternalCallSites: hasExternal,
			CoverageFraction:     coverageFraction,
		}
	}

	scores := ranker.Rank(inputs, e.opts.RankerWeights, topN)

	byID := make(map[string]types.DuplicationGroup, len(groups))
	for _, g := range groups {
		byID[g.GroupID] = g
	}

	recs := make([]Recommendation, len(scores))
	for i, s := range scores {
		recs[i] = Recommendation{Group: byID[s.GroupID], Score: s}
	}
	return recs, nil
}

// Apply runs the transactional applicator for one plan, deriving each
// file's byte-range rewrites from plan.Plan.CallRewrites' locations.
func (e *Engine) Apply(ctx context.Context, projectRoot string, plan types.RefactoringPlan, opts applicator.ApplyOptions) (applicator.Result, error) {
	app := applicator.New(projectRoot, e.executor, e.cache)
	rewrites := rewritesFromPlan(plan)
	return app.Apply(ctx, plan, rewrites, opts), nil
}

// PurgeBackups removes backups older than olderThanDays for projectRoot.
func (e *Engine) PurgeBackups(ctx context.Context, projectRoot string, olderThanDays int) (types.PurgeResult, error) {
	store := backup.New(projectRoot)
	return store.Purge(olderThanDays)
}

// rewritesFromPlan groups plan.Plan.CallRewrites by file, translating
// each member's recorded SourceLocation into a byte-range replacement.
func rewritesFromPlan(plan types.RefactoringPlan) map[string][]applicator.RewriteOp {
	byFile := make(map[string][]applicator.RewriteOp)
	for _, cr := range plan.Plan.CallRewrites {
		byFile[cr.Location.FilePath] = append(byFile[cr.Location.FilePath], applicator.RewriteOp{
			StartByte: cr.Location.StartByte,
			EndByte:   cr.Location.EndByte,
			Text:      cr.ReplacementText,
		})
	}
	return byFile
}

func worstSeverity(variations []types.Variation) types.VariationSeverity {
	rank := map[types.VariationSeverity]int{
		types.SeverityTrivial:         0,
		types.SeverityParameterizable: 1,
		types.SeverityStructural:      2,
		types.SeverityIncompatible:    3,
	}
	worst := types.SeverityTrivial
	for _, v := range variations {
		if rank[v.Severity] > rank[worst] {
			worst = v.Severity
		}
	}
	return worst
}

func firstPositive(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func firstPositiveInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
