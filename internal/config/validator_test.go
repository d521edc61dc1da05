package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndSetDefaultsAppliesAutoWorkerCount(t *testing.T) {
	opts := DefaultEngineOptions()
	opts.WorkerCount = 0

	require.NoError(t, ValidateConfig(&opts))
	assert.GreaterOrEqual(t, opts.WorkerCount, 1)
	assert.LessOrEqual(t, opts.WorkerCount, 16)
}

func TestValidateRejectsOutOfRangeSimilarity(t *testing.T) {
	opts := DefaultEngineOptions()
	opts.MinSimilarity = 1.5

	err := ValidateConfig(&opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MinSimilarity")
}

func TestValidateRejectsZeroMinLines(t *testing.T) {
	opts := DefaultEngineOptions()
	opts.MinLines = 0

	err := ValidateConfig(&opts)
	require.Error(t, err)
}

func TestValidateRejectsNegativeWorkerCount(t *testing.T) {
	opts := DefaultEngineOptions()
	opts.WorkerCount = -1

	err := ValidateConfig(&opts)
	require.Error(t, err)
}

func TestValidateFillsZeroValueDefaults(t *testing.T) {
	opts := EngineOptions{MinLines: 5, MaxCandidates: 10, MaxFileSizeBytes: 1024}

	require.NoError(t, ValidateConfig(&opts))
	assert.NotZero(t, opts.CacheTTL)
	assert.NotZero(t, opts.MatcherTimeout)
	assert.Equal(t, "ast-grep", opts.MatcherPath)
	assert.Equal(t, DefaultRankerWeights(), opts.RankerWeights)
	assert.NotEmpty(t, opts.Languages)
}

func TestValidateRejectsNegativeRankerWeight(t *testing.T) {
	opts := DefaultEngineOptions()
	opts.RankerWeights = RankerWeights{Savings: -0.1, Coverage: 0.2, Risk: 0.2, Complexity: 0.1}

	err := ValidateConfig(&opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RankerWeights")
}
