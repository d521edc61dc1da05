package detector

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/standardbeagle/codedup/internal/types"
)

// tokenize splits source text into a flat token stream on whitespace and
// common delimiters, in the spirit of the teacher's own hand-rolled
// tokenizeCode: punctuation becomes its own token, runs of whitespace are
// dropped, everything else accumulates until the next delimiter.
// Tokenize exposes the detector's tokenizer to other packages (the
// variation analyzer needs the same token stream the grouping pass used).
func Tokenize(code string) []string {
	return tokenize(code)
}

func tokenize(code string) []string {
	tokens, _ := TokenizeWithOffsets(code)
	return tokens
}

// TokenizeWithOffsets behaves like Tokenize but also returns each token's
// byte-offset range within code, so a caller can splice replacement text
// into the original source at the position a token came from (the
// code generator's parameterized body template needs this).
func TokenizeWithOffsets(code string) ([]string, []types.TokenSpan) {
	tokens := make([]string, 0, len(code)/4)
	spans := make([]types.TokenSpan, 0, len(code)/4)
	var current strings.Builder
	start := -1

	flush := func(end int) {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			spans = append(spans, types.TokenSpan{Start: start, End: end})
			current.Reset()
			start = -1
		}
	}

	pos := 0
	for _, r := range code {
		size := utf8.RuneLen(r)
		switch {
		case isWhitespace(r):
			flush(pos)
		case isDelimiter(r):
			flush(pos)
			tokens = append(tokens, string(r))
			spans = append(spans, types.TokenSpan{Start: pos, End: pos + size})
		default:
			if start == -1 {
				start = pos
			}
			current.WriteRune(r)
		}
		pos += size
	}
	flush(pos)
	return tokens, spans
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDelimiter(r rune) bool {
	return strings.ContainsRune("(){}[];,.:+-*/%=<>!&|^~", r)
}

var keywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "return": true,
	"function": true, "func": true, "class": true, "var": true, "let": true, "const": true,
	"def": true, "import": true, "from": true, "and": true, "or": true, "not": true,
	"true": true, "false": true, "null": true, "nil": true, "undefined": true, "none": true,
	"public": true, "private": true, "protected": true, "static": true, "void": true,
	"try": true, "catch": true, "finally": true, "throw": true, "switch": true, "case": true,
	"break": true, "continue": true, "new": true, "this": true, "self": true, "super": true,
}

func isKeyword(word string) bool {
	return keywords[strings.ToLower(word)]
}

var operators = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "=": true, "==": true,
	"!=": true, "<": true, ">": true, "<=": true, ">=": true, "&&": true,
	"||": true, "!": true, "++": true, "--": true, "+=": true, "-=": true,
	"(": true, ")": true, "{": true, "}": true, "[": true, "]": true,
	";": true, ",": true, ".": true, ":": true,
}

func isOperator(word string) bool {
	return operators[word]
}

// literalKind classifies a token as a literal of a lexical kind, or "" if
// it is not a literal — numeric, string, boolean, and nil literals each
// get a distinct placeholder so later classification can still tell kinds
// apart after canonicalization.
func literalKind(word string) string {
	switch strings.ToLower(word) {
	case "true", "false":
		return "bool"
	case "null", "nil", "none", "undefined":
		return "nil"
	}
	if len(word) >= 2 && (word[0] == '"' || word[0] == '\'' || word[0] == '`') {
		return "string"
	}
	if _, err := strconv.ParseFloat(word, 64); err == nil {
		return "number"
	}
	return ""
}

func isLikelyIdentifier(word string) bool {
	if len(word) == 0 {
		return false
	}
	first := word[0]
	return (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || first == '_'
}

// canonicalize produces the normalized token stream hash_canonical is
// computed over: keywords and declared type names pass through unchanged,
// literals become kind-tagged placeholders, and every other identifier
// becomes the single placeholder token $ID.
func canonicalize(tokens []string, typeNames map[string]bool) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		switch {
		case isKeyword(tok), isOperator(tok), typeNames[tok]:
			out = append(out, tok)
		case literalKind(tok) != "":
			out = append(out, "$LIT_"+literalKind(tok))
		case isLikelyIdentifier(tok):
			out = append(out, "$ID")
		default:
			out = append(out, tok)
		}
	}
	return out
}
