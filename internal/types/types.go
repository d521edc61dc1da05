// Package types defines the shared data model for the duplication detection
// and refactoring engine: source locations, extracted function units,
// candidate groups, alignment/variation results, refactoring plans, and the
// backup/validation records produced while applying them.
package types

import "time"

// Language is a closed enum of the languages the engine understands. Unlike
// the file extensions a walker observes, a Language only ever comes from a
// LanguageProfile already registered with the engine.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangJava       Language = "java"
	LangCSharp     Language = "csharp"
	LangPHP        Language = "php"
	LangRust       Language = "rust"
	LangCPlusPlus  Language = "cpp"
)

// SourceLocation identifies a byte and line range within one file. Locations
// are produced by the pattern-executor adapter from matcher output and are
// immutable once constructed.
type SourceLocation struct {
	FilePath  string
	StartLine int
	EndLine   int
	StartByte int
	EndByte   int
}

// FunctionUnit is one extracted function-like region of source.
type FunctionUnit struct {
	ID              string
	Location        SourceLocation
	Language        Language
	Name            string
	SignatureText   string
	BodyText        string
	BodyFingerprint uint64
	BodyTokenLength int
	HashCanonical   string
}

// DuplicationGroup is a set of structurally similar function units.
type DuplicationGroup struct {
	GroupID              string
	Language             Language
	Members              []FunctionUnit
	RepresentativeIndex  int
	SimilarityScore      float64
	LinesPerMember       int
	TotalLines           int
	EstimatedSavingsLines int
}

// AlignmentKind classifies one run in a multi-sequence alignment.
type AlignmentKind string

const (
	AlignEqual   AlignmentKind = "equal"
	AlignVariant AlignmentKind = "variant"
	AlignGap     AlignmentKind = "gap"
)

// MemberSpan is one member's token range within an AlignmentSegment.
type MemberSpan struct {
	MemberIndex int
	Start       int
	End         int
}

// AlignmentSegment is a run-length segment of a multi-sequence alignment,
// located both per-member (MemberSpans) and against the consensus token
// stream (ConsensusStart/ConsensusEnd) the alignment was built from.
type AlignmentSegment struct {
	Kind           AlignmentKind
	ConsensusStart int
	ConsensusEnd   int
	MemberSpans    []MemberSpan
}

// TokenSpan is a half-open [Start, End) range. TokenizeWithOffsets returns
// byte offsets into a source text; a variation's Consensus{Start,End}
// instead indexes a token stream — same shape, different unit, always
// documented at the call site.
type TokenSpan struct {
	Start int
	End   int
}

// VariationCategory classifies what kind of token difference a variation represents.
type VariationCategory string

const (
	CategoryLiteralValue VariationCategory = "literal_value"
	CategoryIdentifier   VariationCategory = "identifier"
	CategoryType         VariationCategory = "type"
	CategoryStructure    VariationCategory = "structure"
	CategoryUnrelated    VariationCategory = "unrelated"
)

// VariationSeverity classifies how hard a variation is to merge away.
type VariationSeverity string

const (
	SeverityTrivial         VariationSeverity = "trivial"
	SeverityParameterizable VariationSeverity = "parameterizable"
	SeverityStructural      VariationSeverity = "structural"
	SeverityIncompatible    VariationSeverity = "incompatible"
)

// Variation is one classified difference located at a segment.
type Variation struct {
	SegmentRef             int
	ConsensusStart         int
	ConsensusEnd           int
	Category               VariationCategory
	Severity               VariationSeverity
	InferredParameterType  string
	CandidateParameterName string
}

// DiffNode is one node of the hierarchical DiffTree, keyed by AST path.
type DiffNode struct {
	ASTPath    string
	Variations []Variation
	Children   []DiffNode
}

// DiffTree is the hierarchical form of a group's variations.
type DiffTree struct {
	Root DiffNode
}

// Parameter is one parameter of an ExtractedFunctionPlan.
type Parameter struct {
	Name    string
	Type    string
	Default string
}

// CallRewrite is the textual replacement for one group member's call site.
type CallRewrite struct {
	MemberID        string
	Location        SourceLocation
	ReplacementText string
	ImportAdditions []string
}

// ExtractedFunctionPlan is the synthesized canonical function plus per-site rewrites.
type ExtractedFunctionPlan struct {
	GroupID         string
	CanonicalName   string
	Parameters      []Parameter
	ReturnType      string
	BodyTemplate    string
	Language        Language
	RequiredImports []string
	Decorators      []string
	CallRewrites    []CallRewrite
}

// CandidateScore is the ranker's output for one group.
type CandidateScore struct {
	GroupID              string
	Savings              int
	Risk                 float64
	CoverageFraction     float64
	StructuralComplexity float64
	Composite            float64
	Rationale            []string
}

// RefactoringStrategy selects where the extracted function is written.
type RefactoringStrategy string

const (
	StrategyInline   RefactoringStrategy = "inline"
	StrategyNewFile  RefactoringStrategy = "new_file"
)

// RefactoringPlan is the caller-supplied envelope the applicator accepts.
type RefactoringPlan struct {
	Plan          ExtractedFunctionPlan
	Strategy      RefactoringStrategy
	TargetFile    string
	FilesAffected []string
	Language      Language
	DryRun        bool
}

// BackedUpFile records one file captured by a backup.
type BackedUpFile struct {
	Path           string
	OriginalSHA256 string
	BlobRef        string
}

// BackupHandle records a backup created before a mutating apply.
type BackupHandle struct {
	BackupID    string
	CreatedAt   time.Time
	ProjectRoot string
	Files       []BackedUpFile
	Metadata    map[string]string
}

// ValidationPhase distinguishes pre- from post-write validation.
type ValidationPhase string

const (
	ValidationPre  ValidationPhase = "pre"
	ValidationPost ValidationPhase = "post"
)

// ValidationIssue is one problem found during validation.
type ValidationIssue struct {
	File    string
	Line    int
	Message string
	Kind    string
}

// ValidationReport is the outcome of one validation pass.
type ValidationReport struct {
	Phase  ValidationPhase
	OK     bool
	Errors []ValidationIssue
}

// CoverageInfo records whether a source file is covered by tests.
type CoverageInfo struct {
	Covered   bool
	TestFiles []string
}

// CoverageReport maps a source file path to its coverage info.
type CoverageReport map[string]CoverageInfo

// PurgeResult is the outcome of a backup purge.
type PurgeResult struct {
	BackupsRemoved int
	BlobsRemoved   int
	BytesReclaimed int64
}

// DiagnosticLevel is the severity of one diagnostic event.
type DiagnosticLevel string

const (
	DiagnosticInfo  DiagnosticLevel = "info"
	DiagnosticWarn  DiagnosticLevel = "warn"
	DiagnosticError DiagnosticLevel = "error"
)

// DiagnosticEvent is one structured event emitted by a component.
type DiagnosticEvent struct {
	Level     DiagnosticLevel
	Component string
	Message   string
	File      string
	Err       error
	Time      time.Time
}

// Result pairs a batch item's output with its per-item error, so a worker
// pool batch never silently swallows a partial failure.
type Result[R any] struct {
	Value R
	Err   error
}
