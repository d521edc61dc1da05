// Package codegen synthesizes an ExtractedFunctionPlan from a
// DuplicationGroup and its variation analysis (C6). It never touches the
// filesystem — only text and location-tagged rewrite instructions.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/standardbeagle/codedup/internal/types"
)

// Variation carries the variation analyzer's per-parameter data Generate
// needs: each parameter's own value at every call site, where it sits in
// the representative member's token stream, and that stream's byte
// offsets, so the representative's body can be parameterized in place.
type Variation struct {
	// MemberArguments[i][j] is group.Members[j]'s own source text for
	// parameter i (params and MemberArguments are parallel by index).
	MemberArguments [][]string
	// Segments[i] is parameter i's token range within the representative
	// member's token stream.
	Segments []types.TokenSpan
	// ConsensusSpans[k] is the byte range of the representative member's
	// k'th token within its own BodyText.
	ConsensusSpans []types.TokenSpan
}

// Generate builds the canonical extracted function plus per-member call
// rewrites. params must be in the variation analyzer's stable
// first-occurrence order, matching vi.MemberArguments/vi.Segments.
func Generate(group types.DuplicationGroup, params []types.Parameter, language types.Language, vi Variation) types.ExtractedFunctionPlan {
	rep := group.Members[group.RepresentativeIndex]

	plan := types.ExtractedFunctionPlan{
		GroupID:       group.GroupID,
		CanonicalName: canonicalName(rep.Name),
		Parameters:    params,
		Language:      language,
		BodyTemplate:  parameterizeBody(rep.BodyText, params, vi),
	}

	plan.CallRewrites = make([]types.CallRewrite, len(group.Members))
	for i, member := range group.Members {
		plan.CallRewrites[i] = types.CallRewrite{
			MemberID:        member.ID,
			Location:        member.Location,
			ReplacementText: callExpression(plan.CanonicalName, params, vi.MemberArguments, i),
		}
	}

	return plan
}

// parameterizeBody replaces each parameter's variant segment in body with a
// reference to that parameter, splicing byte ranges right-to-left so
// earlier offsets stay valid — the same technique the applicator uses for
// call-site rewrites. A segment whose range can't be resolved against
// consensusSpans is left untouched rather than corrupting the body.
func parameterizeBody(body string, params []types.Parameter, vi Variation) string {
	type splice struct {
		start, end int
		text       string
	}

	var splices []splice
	for i, seg := range vi.Segments {
		if i >= len(params) {
			break
		}
		if seg.Start < 0 || seg.End <= seg.Start || seg.End > len(vi.ConsensusSpans) {
			continue
		}
		startByte := vi.ConsensusSpans[seg.Start].Start
		endByte := vi.ConsensusSpans[seg.End-1].End
		if startByte < 0 || endByte > len(body) || startByte > endByte {
			continue
		}
		splices = append(splices, splice{start: startByte, end: endByte, text: params[i].Name})
	}

	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })

	out := body
	for _, s := range splices {
		out = out[:s.start] + s.text + out[s.end:]
	}
	return out
}

// canonicalName strips trailing digits from the representative member's
// name (e.g. "processOrder2" -> "processOrder") and prefixes it, per §4.6.
// An alphabetic suffix (e.g. "processOrderB") is left in place.
func canonicalName(repName string) string {
	name := strings.TrimRight(repName, "0123456789")
	if name == "" {
		name = repName
	}
	return "extracted_" + name
}

// callExpression builds one member's call site: each argument is that
// member's own original value for the parameter (memberArguments[i][memberIndex]),
// falling back to the parameter name itself when no value was recorded.
func callExpression(name string, params []types.Parameter, memberArguments [][]string, memberIndex int) string {
	args := make([]string, len(params))
	for i, p := range params {
		val := ""
		if i < len(memberArguments) && memberIndex < len(memberArguments[i]) {
			val = memberArguments[i][memberIndex]
		}
		if val == "" {
			val = p.Name
		}
		args[i] = val
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

// RequiredImports returns the union of bodyImports not already present in
// any of existingImportsPerFile, preserving bodyImports' order.
func RequiredImports(bodyImports []string, existingImportsPerFile [][]string) []string {
	present := make(map[string]bool)
	for _, set := range existingImportsPerFile {
		for _, imp := range set {
			present[imp] = true
		}
	}

	var missing []string
	seen := make(map[string]bool)
	for _, imp := range bodyImports {
		if present[imp] || seen[imp] {
			continue
		}
		seen[imp] = true
		missing = append(missing, imp)
	}
	return missing
}
