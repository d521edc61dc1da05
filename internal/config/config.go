// Package config defines EngineOptions, the struct-form configuration
// surface for every engine tunable (C12/§10.1). This core never reads a
// config file — TOML/KDL/YAML parsing is an outer CLI's job — but the
// in-memory options struct, its defaults, and its validation are carried
// forward from the teacher's own split of "struct of settings" vs. "a
// dedicated validator with range checks."
package config

import (
	"time"

	"github.com/standardbeagle/codedup/internal/types"
	"github.com/standardbeagle/codedup/internal/walker"
)

// RankerWeights are the composite-score weights C7 applies. Defaults match
// the specification exactly and are overridable per Engine instance.
type RankerWeights struct {
	Savings    float64 // w_s
	Coverage   float64 // w_c
	Risk       float64 // w_r
	Complexity float64 // w_x
}

// DefaultRankerWeights returns the documented default weights.
func DefaultRankerWeights() RankerWeights {
	return RankerWeights{Savings: 0.45, Coverage: 0.20, Risk: 0.25, Complexity: 0.10}
}

// EngineOptions is the caller-constructed configuration surface for
// engine.New. The engine never mutates it after construction.
type EngineOptions struct {
	MaxFileSizeBytes    int64
	MinSimilarity       float64
	MinLines            int
	MaxCandidates       int
	MaxParameters       int
	WorkerCount         int
	CacheEntries        int
	CacheBytes          int64
	CacheTTL            time.Duration
	MatcherTimeout      time.Duration
	MatcherPath         string
	BackupRetentionDays int
	ExcludePatterns     []string
	IncludePatterns     []string
	RankerWeights       RankerWeights
	LockWaitTimeout     time.Duration
	Languages           map[types.Language]types.LanguageProfile
	RespectGitignore    bool
}

// DefaultEngineOptions returns the documented defaults from §6.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		MaxFileSizeBytes:    1024 * 1024,
		MinSimilarity:       0.8,
		MinLines:            5,
		MaxCandidates:       100,
		MaxParameters:       6,
		WorkerCount:         0, // 0 = auto-detect at Validate time
		CacheEntries:        1024,
		CacheBytes:          100 * 1024 * 1024,
		CacheTTL:            time.Hour,
		MatcherTimeout:      30 * time.Second,
		MatcherPath:         "ast-grep",
		BackupRetentionDays: 30,
		ExcludePatterns:     append([]string{}, walker.DefaultExcludePatterns...),
		RankerWeights:       DefaultRankerWeights(),
		LockWaitTimeout:     10 * time.Second,
		Languages:           types.DefaultLanguageProfiles(),
		RespectGitignore:    true,
	}
}
