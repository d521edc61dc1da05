// Package ranker implements the candidate scorer and recommender (C7):
// weighted composite scoring of duplication groups plus a plain-text
// rationale, never printed directly — returned as data for an outer
// presentation layer.
package ranker

import (
	"sort"

	"github.com/standardbeagle/codedup/internal/config"
	"github.com/standardbeagle/codedup/internal/types"
)

// GroupInput bundles the facts the ranker needs about one group beyond
// what's already on types.DuplicationGroup.
type GroupInput struct {
	Group                types.DuplicationGroup
	Mergeable            bool
	Severity             types.VariationSeverity
	ParameterCount       int
	CrossPackageMembers  int
	HasExternalCallSites bool
	CoverageFraction     float64
}

// Rank scores every group and returns the top N by composite descending.
// If n <= 0, all groups are returned sorted.
func Rank(inputs []GroupInput, weights config.RankerWeights, n int) []types.CandidateScore {
	if len(inputs) == 0 {
		return nil
	}

	maxSavings := 0
	for _, in := range inputs {
		if in.Group.EstimatedSavingsLines > maxSavings {
			maxSavings = in.Group.EstimatedSavingsLines
		}
	}

	scores := make([]types.CandidateScore, len(inputs))
	for i, in := range inputs {
		scores[i] = score(in, weights, maxSavings)
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].Composite > scores[j].Composite })

	if n > 0 && n < len(scores) {
		scores = scores[:n]
	}
	return scores
}

func score(in GroupInput, w config.RankerWeights, maxSavings int) types.CandidateScore {
	normSavings := 0.0
	if maxSavings > 0 {
		normSavings = float64(in.Group.EstimatedSavingsLines) / float64(maxSavings)
		if normSavings > 1 {
			normSavings = 1
		}
	}

	risk := riskFor(in)
	complexity := complexityPenalty(len(in.Group.Members), in.ParameterCount)

	composite := 100 * (w.Savings*normSavings + w.Coverage*in.CoverageFraction + w.Risk*(1-risk) + w.Complexity*(1-complexity))

	return types.CandidateScore{
		GroupID:              in.Group.GroupID,
		Savings:              in.Group.EstimatedSavingsLines,
		Risk:                 risk,
		CoverageFraction:     in.CoverageFraction,
		StructuralComplexity: complexity,
		Composite:            composite,
		Rationale:            rationale(in, normSavings, risk, complexity),
	}
}

func riskFor(in GroupInput) float64 {
	var base float64
	switch in.Severity {
	case types.SeverityIncompatible:
		base = 1.0
	case types.SeverityStructural:
		base = 0.5
	case types.SeverityParameterizable:
		base = 0.2
	default:
		base = 0.2
	}

	if in.CrossPackageMembers > 0 {
		base += 0.1
	}
	if in.HasExternalCallSites {
		base += 0.1
	}
	if base > 1.0 {
		base = 1.0
	}
	return base
}

// complexityPenalty rises with member count beyond 4 and parameter count
// beyond 3, clamped to [0,1].
func complexityPenalty(memberCount, paramCount int) float64 {
	penalty := 0.0
	if memberCount > 4 {
		penalty += 0.1 * float64(memberCount-4)
	}
	if paramCount > 3 {
		penalty += 0.15 * float64(paramCount-3)
	}
	if penalty > 1.0 {
		penalty = 1.0
	}
	return penalty
}

func rationale(in GroupInput, normSavings, risk, complexity float64) []string {
	var terms []string
	if normSavings >= 0.7 {
		terms = append(terms, "high estimated savings relative to this run")
	} else if normSavings <= 0.2 {
		terms = append(terms, "modest estimated savings")
	}
	if risk >= 0.5 {
		terms = append(terms, "elevated merge risk")
	} else if risk <= 0.2 {
		terms = append(terms, "low merge risk")
	}
	if in.CoverageFraction >= 0.8 {
		terms = append(terms, "well covered by existing tests")
	} else if in.CoverageFraction <= 0.2 {
		terms = append(terms, "little or no test coverage")
	}
	if complexity >= 0.5 {
		terms = append(terms, "high structural complexity")
	}
	if in.HasExternalCallSites {
		terms = append(terms, "has call sites outside the group's own files")
	}
	return terms
}
