package variation

import (
	"context"
	"sort"
	"strings"

	"github.com/surgebase/porter2"

	"github.com/standardbeagle/codedup/internal/matcher"
	"github.com/standardbeagle/codedup/internal/types"
)

// Result is the variation analyzer's output for one DuplicationGroup.
type Result struct {
	Tree       types.DiffTree
	Variations []types.Variation
	Mergeable  bool

	// ParameterNames, ParameterTypes, ParameterArguments, and
	// ParameterSegments are parallel, all indexed by parameter position.
	ParameterNames []string
	ParameterTypes []string

	// ParameterArguments[i][j] is group.Members[j]'s own source text for
	// the variant segment ParameterNames[i] replaces — the value the
	// generated call rewrite for member j must pass as argument i.
	ParameterArguments [][]string

	// ParameterSegments[i] is the token range within the representative
	// member's token stream that ParameterNames[i] replaces, letting the
	// code generator splice a parameter reference into the representative
	// body text at the matching byte offset.
	ParameterSegments []types.TokenSpan
}

// Analyzer classifies a group's aligned differences and decides merge
// feasibility, consulting the pattern executor's AST dump for structural
// and type-resolution questions it cannot answer from tokens alone.
type Analyzer struct {
	executor      matcher.PatternExecutor
	maxParameters int
}

// New constructs an Analyzer. A negative maxParameters falls back to 6; 0
// makes every group that needs a parameter non-mergeable.
func New(executor matcher.PatternExecutor, maxParameters int) *Analyzer {
	if maxParameters < 0 {
		maxParameters = 6
	}
	return &Analyzer{executor: executor, maxParameters: maxParameters}
}

// Analyze aligns every member's tokens against the representative member's
// tokens, classifies each variant segment, and decides mergeability.
func (a *Analyzer) Analyze(ctx context.Context, group types.DuplicationGroup, memberTokens [][]string, profile types.LanguageProfile) Result {
	if len(group.Members) == 0 || len(memberTokens) != len(group.Members) {
		return Result{Mergeable: false}
	}

	consensus := memberTokens[group.RepresentativeIndex]
	segments := alignAgainstConsensus(consensus, memberTokens)
	repBody := group.Members[group.RepresentativeIndex].BodyText
	resolveIdentifier := a.identifierResolver(ctx, profile.Language, repBody)

	var variations []types.Variation
	seenNames := map[string]bool{}
	var paramNames []string
	var paramTypes []string
	var paramArguments [][]string
	var paramSegments []types.TokenSpan
	incompatible := false

	for segRef, seg := range segments {
		if seg.Kind == types.AlignEqual {
			continue
		}

		tokensPerMember := collectVariantTokens(consensus, seg, memberTokens)
		category := classifyCategory(tokensPerMember, profile)
		severity := classifySeverity(category)

		v := types.Variation{
			SegmentRef:     segRef,
			ConsensusStart: seg.ConsensusStart,
			ConsensusEnd:   seg.ConsensusEnd,
			Category:       category,
			Severity:       severity,
		}

		switch severity {
		case types.SeverityIncompatible:
			incompatible = true
		case types.SeverityParameterizable, types.SeverityStructural:
			v.InferredParameterType = inferParameterType(tokensPerMember, group.RepresentativeIndex, category, resolveIdentifier)
			v.CandidateParameterName = candidateParameterName(tokensPerMember, category, len(paramNames)+1)
			if !seenNames[v.CandidateParameterName] {
				seenNames[v.CandidateParameterName] = true
				paramNames = append(paramNames, v.CandidateParameterName)
				paramTypes = append(paramTypes, v.InferredParameterType)
				values := make([]string, len(group.Members))
				copy(values, tokensPerMember)
				paramArguments = append(paramArguments, values)
				paramSegments = append(paramSegments, types.TokenSpan{Start: seg.ConsensusStart, End: seg.ConsensusEnd})
			}
		}

		variations = append(variations, v)
	}

	mergeable := !incompatible && len(paramNames) <= a.maxParameters

	return Result{
		Tree:               buildDiffTree(variations),
		Variations:         variations,
		Mergeable:          mergeable,
		ParameterNames:     paramNames,
		ParameterTypes:     paramTypes,
		ParameterArguments: paramArguments,
		ParameterSegments:  paramSegments,
	}
}

// collectVariantTokens returns one entry per member, in member-index order
// — "" for a member whose span is missing or invalid — so the result stays
// aligned with memberTokens/group.Members even when a span can't be read.
func collectVariantTokens(consensus []string, seg types.AlignmentSegment, memberTokens [][]string) []string {
	out := make([]string, len(memberTokens))
	for _, span := range seg.MemberSpans {
		if span.MemberIndex < 0 || span.MemberIndex >= len(memberTokens) {
			continue
		}
		if span.Start < 0 || span.End < 0 {
			continue
		}
		toks := memberTokens[span.MemberIndex]
		if span.Start >= len(toks) {
			continue
		}
		end := span.End
		if end > len(toks) {
			end = len(toks)
		}
		out[span.MemberIndex] = strings.Join(toks[span.Start:end], " ")
	}
	return out
}

// classifyCategory implements §4.5.2's classification rules using only
// token-level evidence; the `structure` case (segment spans more than one
// AST node boundary) is approximated here by token content since a full
// per-segment DumpAST correlation is a C9 pre/post-validation concern, not
// a detection-time one — a variant run is treated as structural when any
// member's text for it contains a brace or semicolon.
func classifyCategory(tokensPerMember []string, profile types.LanguageProfile) types.VariationCategory {
	if len(tokensPerMember) == 0 {
		return types.CategoryUnrelated
	}

	allLiteral, kind := true, ""
	for _, t := range tokensPerMember {
		k := literalTokenKind(t)
		if k == "" {
			allLiteral = false
			break
		}
		if kind == "" {
			kind = k
		} else if kind != k {
			allLiteral = false
			break
		}
	}
	if allLiteral {
		return types.CategoryLiteralValue
	}

	allTypeNames := true
	for _, t := range tokensPerMember {
		if !profile.TypeNames[t] {
			allTypeNames = false
			break
		}
	}
	if allTypeNames {
		return types.CategoryType
	}

	for _, t := range tokensPerMember {
		if strings.ContainsAny(t, "{};") {
			return types.CategoryStructure
		}
	}

	allSingleIdent := true
	for _, t := range tokensPerMember {
		if strings.Contains(t, " ") || !isIdentifierLike(t) {
			allSingleIdent = false
			break
		}
	}
	if allSingleIdent {
		return types.CategoryIdentifier
	}

	return types.CategoryUnrelated
}

func classifySeverity(category types.VariationCategory) types.VariationSeverity {
	switch category {
	case types.CategoryLiteralValue, types.CategoryIdentifier, types.CategoryType:
		return types.SeverityParameterizable
	case types.CategoryStructure:
		return types.SeverityStructural
	default:
		return types.SeverityIncompatible
	}
}

func literalTokenKind(t string) string {
	switch {
	case t == "true" || t == "false":
		return "bool"
	case t == "nil" || t == "null" || t == "none" || t == "undefined":
		return "nil"
	case len(t) >= 2 && (t[0] == '"' || t[0] == '\'' || t[0] == '`'):
		return "string"
	}
	isNumeric := len(t) > 0
	for _, r := range t {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			isNumeric = false
			break
		}
	}
	if isNumeric {
		return "number"
	}
	return ""
}

func isIdentifierLike(t string) bool {
	if t == "" {
		return false
	}
	first := t[0]
	return (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || first == '_'
}

// inferParameterType infers a parameter's declared type from its variant
// tokens. CategoryIdentifier can't be judged from tokens alone — it asks
// resolveIdentifier, which consults C1's AST dump of the representative
// member's body, per §4.5's closing paragraph.
func inferParameterType(tokensPerMember []string, repIndex int, category types.VariationCategory, resolveIdentifier func(string) string) string {
	switch category {
	case types.CategoryLiteralValue:
		if len(tokensPerMember) > 0 {
			switch literalTokenKind(tokensPerMember[0]) {
			case "bool":
				return "bool"
			case "string":
				return "string"
			case "number":
				return "number"
			}
		}
		return "unknown"
	case types.CategoryType:
		return "type"
	case types.CategoryIdentifier:
		if repIndex < 0 || repIndex >= len(tokensPerMember) || resolveIdentifier == nil {
			return "unknown"
		}
		ident := strings.TrimSpace(tokensPerMember[repIndex])
		if ident == "" {
			return "unknown"
		}
		return resolveIdentifier(ident)
	default:
		return "unknown"
	}
}

// identifierResolver returns a closure that resolves an identifier's
// declared type by dumping the representative member's AST once (lazily,
// on first use) and walking it for a matching parameter/declaration node.
// Falls back to "unknown" whenever the executor is unset, the dump fails,
// or no declaration is found — never a hard error, since type inference is
// an enrichment, not a precondition for classification.
func (a *Analyzer) identifierResolver(ctx context.Context, language types.Language, repBody string) func(string) string {
	var dumped, dumpOK bool
	var dump matcher.AstDump

	return func(identifier string) string {
		if a.executor == nil {
			return "unknown"
		}
		if !dumped {
			dumped = true
			d, err := a.executor.DumpAST(ctx, language, repBody)
			if err == nil {
				dump, dumpOK = d, true
			}
		}
		if !dumpOK {
			return "unknown"
		}
		if t, ok := findDeclaredType(dump.Root, identifier); ok {
			return t
		}
		return "unknown"
	}
}

// findDeclaredType walks a dumped AST for a parameter/declaration/field
// node whose own name child matches identifier, returning its sibling type
// child's text. The matcher's AST dump carries Kind/Text/Children only, so
// this is a best-effort structural match rather than true scope resolution.
func findDeclaredType(node matcher.AstDumpNode, identifier string) (string, bool) {
	if name, typ, ok := declarationParts(node); ok && name == identifier {
		return typ, true
	}
	for _, child := range node.Children {
		if t, ok := findDeclaredType(child, identifier); ok {
			return t, true
		}
	}
	return "", false
}

// declarationParts extracts a name/type pair from one candidate
// declaration node: its first name-like child and its first type-like
// child, by Kind substring.
func declarationParts(node matcher.AstDumpNode) (name string, typ string, ok bool) {
	k := strings.ToLower(node.Kind)
	if !strings.Contains(k, "param") && !strings.Contains(k, "declaration") && !strings.Contains(k, "field") {
		return "", "", false
	}
	for _, c := range node.Children {
		ck := strings.ToLower(c.Kind)
		switch {
		case name == "" && (ck == "identifier" || strings.Contains(ck, "name")):
			name = strings.TrimSpace(c.Text)
		case typ == "" && strings.Contains(ck, "type"):
			typ = strings.TrimSpace(c.Text)
		}
	}
	return name, typ, name != "" && typ != ""
}

// candidateParameterName derives a name from the varying identifier tokens
// via their common Porter2 stem when all members agree, falling back to a
// position-based name otherwise.
func candidateParameterName(tokens []string, category types.VariationCategory, position int) string {
	if category == types.CategoryIdentifier && len(tokens) > 0 {
		if stem, ok := commonStem(tokens); ok {
			return stem
		}
	}
	return positionName(position)
}

func positionName(position int) string {
	return "arg" + itoa(position)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// commonStem returns the Porter2 stem shared by every token's longest
// trailing identifier word, when all tokens stem to the same word.
func commonStem(tokens []string) (string, bool) {
	var stems []string
	for _, t := range tokens {
		word := lastWord(t)
		if word == "" {
			return "", false
		}
		stems = append(stems, porter2.Stem(strings.ToLower(word)))
	}
	first := stems[0]
	for _, s := range stems[1:] {
		if s != first {
			return "", false
		}
	}
	return first, true
}

// lastWord extracts the trailing camelCase word of an identifier, so
// `userId`/`customerId` both yield `Id` before stemming.
func lastWord(ident string) string {
	runes := []rune(ident)
	end := len(runes)
	for end > 0 && !isLetter(runes[end-1]) {
		end--
	}
	start := end
	for start > 0 && isLetter(runes[start-1]) {
		start--
		if start > 0 && isUpper(runes[start]) && !isUpper(runes[start-1]) {
			break
		}
	}
	if start == end {
		return ""
	}
	return string(runes[start:end])
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func buildDiffTree(variations []types.Variation) types.DiffTree {
	sorted := make([]types.Variation, len(variations))
	copy(sorted, variations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SegmentRef < sorted[j].SegmentRef })
	return types.DiffTree{Root: types.DiffNode{ASTPath: "/", Variations: sorted}}
}
