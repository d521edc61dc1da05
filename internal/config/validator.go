package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	lcierrors "github.com/standardbeagle/codedup/internal/errors"
	"github.com/standardbeagle/codedup/internal/types"
)

// Validator validates EngineOptions and sets smart defaults.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates opts in place and applies smart
// defaults for zero-valued fields. Returns a *lcierrors.ConfigError naming
// the offending field on the first violated constraint.
func (v *Validator) ValidateAndSetDefaults(opts *EngineOptions) error {
	if err := v.validateSimilarity(opts); err != nil {
		return lcierrors.NewConfigError("MinSimilarity", fmt.Sprintf("%v", opts.MinSimilarity), err)
	}
	if err := v.validateLines(opts); err != nil {
		return lcierrors.NewConfigError("MinLines", fmt.Sprintf("%d", opts.MinLines), err)
	}
	if err := v.validateCandidates(opts); err != nil {
		return lcierrors.NewConfigError("MaxCandidates", fmt.Sprintf("%d", opts.MaxCandidates), err)
	}
	if err := v.validateFileSize(opts); err != nil {
		return lcierrors.NewConfigError("MaxFileSizeBytes", fmt.Sprintf("%d", opts.MaxFileSizeBytes), err)
	}
	if err := v.validateWorkerCount(opts); err != nil {
		return lcierrors.NewConfigError("WorkerCount", fmt.Sprintf("%d", opts.WorkerCount), err)
	}
	if err := v.validateCache(opts); err != nil {
		return lcierrors.NewConfigError("CacheEntries", fmt.Sprintf("%d", opts.CacheEntries), err)
	}
	if err := v.validateRankerWeights(opts); err != nil {
		return lcierrors.NewConfigError("RankerWeights", "", err)
	}

	v.setSmartDefaults(opts)
	return nil
}

func (v *Validator) validateSimilarity(opts *EngineOptions) error {
	if opts.MinSimilarity < 0.0 || opts.MinSimilarity > 1.0 {
		return fmt.Errorf("MinSimilarity must be in [0,1], got %v", opts.MinSimilarity)
	}
	return nil
}

func (v *Validator) validateLines(opts *EngineOptions) error {
	if opts.MinLines < 1 {
		return fmt.Errorf("MinLines must be at least 1, got %d", opts.MinLines)
	}
	return nil
}

func (v *Validator) validateCandidates(opts *EngineOptions) error {
	if opts.MaxCandidates < 1 {
		return fmt.Errorf("MaxCandidates must be at least 1, got %d", opts.MaxCandidates)
	}
	if opts.MaxParameters < 0 {
		return fmt.Errorf("MaxParameters cannot be negative, got %d", opts.MaxParameters)
	}
	return nil
}

func (v *Validator) validateFileSize(opts *EngineOptions) error {
	if opts.MaxFileSizeBytes <= 0 {
		return errors.New("MaxFileSizeBytes must be positive")
	}
	return nil
}

func (v *Validator) validateWorkerCount(opts *EngineOptions) error {
	// 0 means auto-detect (set by smart defaults below).
	if opts.WorkerCount < 0 {
		return fmt.Errorf("WorkerCount cannot be negative, got %d", opts.WorkerCount)
	}
	return nil
}

func (v *Validator) validateCache(opts *EngineOptions) error {
	if opts.CacheEntries < 0 {
		return fmt.Errorf("CacheEntries cannot be negative, got %d", opts.CacheEntries)
	}
	if opts.CacheBytes < 0 {
		return fmt.Errorf("CacheBytes cannot be negative, got %d", opts.CacheBytes)
	}
	return nil
}

func (v *Validator) validateRankerWeights(opts *EngineOptions) error {
	w := opts.RankerWeights
	if w == (RankerWeights{}) {
		return nil // zero value means "use defaults", applied below
	}
	for name, val := range map[string]float64{
		"Savings": w.Savings, "Coverage": w.Coverage, "Risk": w.Risk, "Complexity": w.Complexity,
	} {
		if val < 0 {
			return fmt.Errorf("RankerWeights.%s cannot be negative, got %v", name, val)
		}
	}
	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities,
// mirroring the teacher's "leave one core free for the OS" convention.
func (v *Validator) setSmartDefaults(opts *EngineOptions) {
	if opts.WorkerCount == 0 {
		numCPU := runtime.NumCPU()
		opts.WorkerCount = max(1, numCPU-1)
		if opts.WorkerCount > 16 {
			opts.WorkerCount = 16
		}
	}

	if opts.CacheEntries == 0 {
		opts.CacheEntries = 1024
	}
	if opts.CacheBytes == 0 {
		opts.CacheBytes = 100 * 1024 * 1024
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.MatcherTimeout == 0 {
		opts.MatcherTimeout = 30 * time.Second
	}
	if opts.MatcherPath == "" {
		opts.MatcherPath = "ast-grep"
	}
	if opts.BackupRetentionDays == 0 {
		opts.BackupRetentionDays = 30
	}
	if opts.LockWaitTimeout == 0 {
		opts.LockWaitTimeout = 10 * time.Second
	}
	if opts.RankerWeights == (RankerWeights{}) {
		opts.RankerWeights = DefaultRankerWeights()
	}
	if opts.Languages == nil {
		opts.Languages = types.DefaultLanguageProfiles()
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(opts *EngineOptions) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(opts)
}
