// Package variation implements the variation analyzer (C5): aligning a
// duplication group's member token streams, classifying their differences,
// and deciding whether the group can be merged into one parameterized
// function.
package variation

import "github.com/standardbeagle/codedup/internal/types"

// op is one step of a pairwise alignment between two token streams.
type op struct {
	kind   types.AlignmentKind
	aStart int
	aEnd   int
	bStart int
	bEnd   int
}

// pairwiseAlign computes a Needleman-Wunsch global alignment of two token
// streams with a unit substitution/gap cost, producing the minimal run of
// equal/variant/gap ops. Ties are broken toward fewer variant runs by
// preferring diagonal (substitution) moves over a pair of indels when costs
// tie, which in practice keeps variant segments contiguous rather than
// splitting them into a gap-then-insert pair.
func pairwiseAlign(a, b []string) []op {
	n, m := len(a), len(b)
	dist := make([][]int, n+1)
	for i := range dist {
		dist[i] = make([]int, m+1)
	}
	for i := 0; i <= n; i++ {
		dist[i][0] = i
	}
	for j := 0; j <= m; j++ {
		dist[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			sub := dist[i-1][j-1] + cost
			del := dist[i-1][j] + 1
			ins := dist[i][j-1] + 1
			best := sub
			if del < best {
				best = del
			}
			if ins < best {
				best = ins
			}
			dist[i][j] = best
		}
	}

	var raw []struct {
		kind types.AlignmentKind
		ai   int
		bi   int
	}
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1] && dist[i][j] == dist[i-1][j-1]:
			raw = append(raw, struct {
				kind types.AlignmentKind
				ai   int
				bi   int
			}{types.AlignEqual, i - 1, j - 1})
			i--
			j--
		case i > 0 && j > 0 && dist[i][j] == dist[i-1][j-1]+1:
			raw = append(raw, struct {
				kind types.AlignmentKind
				ai   int
				bi   int
			}{types.AlignVariant, i - 1, j - 1})
			i--
			j--
		case i > 0 && dist[i][j] == dist[i-1][j]+1:
			raw = append(raw, struct {
				kind types.AlignmentKind
				ai   int
				bi   int
			}{types.AlignGap, i - 1, -1})
			i--
		default:
			raw = append(raw, struct {
				kind types.AlignmentKind
				ai   int
				bi   int
			}{types.AlignGap, -1, j - 1})
			j--
		}
	}

	// raw was built back-to-front; reverse and run-length collapse.
	for l, r := 0, len(raw)-1; l < r; l, r = l+1, r-1 {
		raw[l], raw[r] = raw[r], raw[l]
	}

	var ops []op
	for _, step := range raw {
		if len(ops) > 0 {
			last := &ops[len(ops)-1]
			if last.kind == step.kind && contiguous(*last, step) {
				extend(last, step)
				continue
			}
		}
		ops = append(ops, newOp(step.kind, step.ai, step.bi))
	}
	return ops
}

func newOp(kind types.AlignmentKind, ai, bi int) op {
	o := op{kind: kind}
	if ai >= 0 {
		o.aStart, o.aEnd = ai, ai+1
	} else {
		o.aStart, o.aEnd = -1, -1
	}
	if bi >= 0 {
		o.bStart, o.bEnd = bi, bi+1
	} else {
		o.bStart, o.bEnd = -1, -1
	}
	return o
}

func contiguous(last op, step struct {
	kind types.AlignmentKind
	ai   int
	bi   int
}) bool {
	aOK := (last.aEnd == -1 && step.ai == -1) || (last.aEnd == step.ai)
	bOK := (last.bEnd == -1 && step.bi == -1) || (last.bEnd == step.bi)
	return aOK && bOK
}

func extend(last *op, step struct {
	kind types.AlignmentKind
	ai   int
	bi   int
}) {
	if step.ai >= 0 {
		if last.aStart == -1 {
			last.aStart = step.ai
		}
		last.aEnd = step.ai + 1
	}
	if step.bi >= 0 {
		if last.bStart == -1 {
			last.bStart = step.bi
		}
		last.bEnd = step.bi + 1
	}
}

// memberAlignment is one member's pairwise alignment against the consensus.
type memberAlignment struct {
	ops []op
}

// alignAgainstConsensus aligns each member's tokens pairwise against the
// consensus (the representative member's tokens), producing
// AlignmentSegments expressed against the consensus position. Every member
// is aligned against that same fixed sequence; the consensus is not updated
// as members are added, so tokens a member inserts between consensus
// positions do not appear in any segment.
func alignAgainstConsensus(consensus []string, members [][]string) []types.AlignmentSegment {
	aligned := make([]memberAlignment, len(members))
	for i, m := range members {
		aligned[i] = memberAlignment{ops: pairwiseAlign(consensus, m)}
	}

	boundaries := map[int]bool{0: true}
	for _, ma := range aligned {
		for _, o := range ma.ops {
			if o.aStart >= 0 {
				boundaries[o.aStart] = true
				boundaries[o.aEnd] = true
			}
		}
	}
	boundaries[len(consensus)] = true

	var sorted []int
	for b := range boundaries {
		sorted = append(sorted, b)
	}
	sortInts(sorted)

	var segments []types.AlignmentSegment
	for s := 0; s+1 < len(sorted); s++ {
		start, end := sorted[s], sorted[s+1]
		if start >= end {
			continue
		}
		kind, spans := classifySegment(aligned, start, end, len(members))
		segments = append(segments, types.AlignmentSegment{Kind: kind, ConsensusStart: start, ConsensusEnd: end, MemberSpans: spans})
	}
	return segments
}

func classifySegment(aligned []memberAlignment, start, end, memberCount int) (types.AlignmentKind, []types.MemberSpan) {
	kind := types.AlignEqual
	spans := make([]types.MemberSpan, 0, memberCount)

	for idx, ma := range aligned {
		spanKind, bStart, bEnd := spanFor(ma.ops, start, end)
		if spanKind != types.AlignEqual {
			kind = types.AlignVariant
		}
		spans = append(spans, types.MemberSpan{MemberIndex: idx, Start: bStart, End: bEnd})
	}
	return kind, spans
}

func spanFor(ops []op, consensusStart, consensusEnd int) (types.AlignmentKind, int, int) {
	kind := types.AlignEqual
	bStart, bEnd := -1, -1
	for _, o := range ops {
		if o.aStart < 0 {
			continue
		}
		if o.aStart >= consensusEnd || o.aEnd <= consensusStart {
			continue
		}
		if o.kind != types.AlignEqual {
			kind = types.AlignVariant
		}
		if o.bStart >= 0 {
			// Ops with both sides present are diagonal runs of equal
			// length, so the member range clips linearly to the segment.
			lo, hi := o.aStart, o.aEnd
			if consensusStart > lo {
				lo = consensusStart
			}
			if consensusEnd < hi {
				hi = consensusEnd
			}
			s, e := o.bStart+(lo-o.aStart), o.bStart+(hi-o.aStart)
			if bStart == -1 || s < bStart {
				bStart = s
			}
			if e > bEnd {
				bEnd = e
			}
		}
	}
	return kind, bStart, bEnd
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
