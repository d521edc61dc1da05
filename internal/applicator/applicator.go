// Package applicator implements the transactional core (C9): validating,
// backing up, writing, post-validating, and — on any failure after a
// backup is taken — rolling back a RefactoringPlan's file mutations.
package applicator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/codedup/internal/backup"
	"github.com/standardbeagle/codedup/internal/cache"
	lcierrors "github.com/standardbeagle/codedup/internal/errors"
	"github.com/standardbeagle/codedup/internal/lock"
	"github.com/standardbeagle/codedup/internal/matcher"
	"github.com/standardbeagle/codedup/internal/types"
)

// Status is the terminal outcome of one Apply call.
type Status string

const (
	StatusPreview             Status = "preview"
	StatusSuccess             Status = "success"
	StatusFailedPre           Status = "failed_pre"
	StatusFailedBackup        Status = "failed_backup"
	StatusFailedWrite         Status = "failed_write"
	StatusFailedPost          Status = "failed_post"
	StatusFailedUnrecoverable Status = "failed_unrecoverable"
	StatusBusy                Status = "busy"
)

// ApplyOptions tunes one Apply call.
type ApplyOptions struct {
	DryRun      bool
	Backup      bool
	NonBlocking bool
}

// Result is the outcome of one Apply call.
type Result struct {
	Status        Status
	BackupID      string
	FilesModified []string
	Validation    []types.ValidationReport
}

// RewriteOp is one byte-range replacement to apply to one file.
type RewriteOp struct {
	StartByte int
	EndByte   int
	Text      string
}

// Applicator is the transactional core, bound to one project root.
type Applicator struct {
	ProjectRoot string
	executor    matcher.PatternExecutor
	backups     *backup.Store
	cache       *cache.Cache
}

// New constructs an Applicator rooted at projectRoot.
func New(projectRoot string, executor matcher.PatternExecutor, c *cache.Cache) *Applicator {
	return &Applicator{
		ProjectRoot: projectRoot,
		executor:    executor,
		backups:     backup.New(projectRoot),
		cache:       c,
	}
}

// Apply runs the full IDLE -> ... -> COMMIT/FAILED_* state machine for one
// plan, per spec.md §4.9.
func (a *Applicator) Apply(ctx context.Context, plan types.RefactoringPlan, rewrites map[string][]RewriteOp, opts ApplyOptions) Result {
	if err := a.preValidate(ctx, plan, rewrites); err != nil {
		return Result{Status: StatusFailedPre, Validation: []types.ValidationReport{preValidationReport(err)}}
	}

	if opts.DryRun {
		return Result{Status: StatusPreview, FilesModified: plan.FilesAffected}
	}

	heldLock, err := lock.Acquire(ctx, a.ProjectRoot, opts.NonBlocking)
	if err != nil {
		if err == lock.ErrBusy {
			return Result{Status: StatusBusy}
		}
		return Result{Status: StatusFailedPre, Validation: []types.ValidationReport{preValidationReport(err)}}
	}
	defer heldLock.Release()

	handle, err := a.backups.Create(generateBackupID(plan.Plan.GroupID), absolutePaths(a.ProjectRoot, plan.FilesAffected))
	if err != nil {
		return Result{Status: StatusFailedBackup}
	}

	if err := a.write(plan, rewrites); err != nil {
		if restoreErr := a.backups.Restore(handle); restoreErr != nil {
			return Result{Status: StatusFailedUnrecoverable, BackupID: handle.BackupID}
		}
		return Result{Status: StatusFailedWrite, BackupID: handle.BackupID}
	}

	reports, err := a.postValidate(ctx, plan)
	if err != nil || reportsFailed(reports) {
		if restoreErr := a.backups.Restore(handle); restoreErr != nil {
			return Result{Status: StatusFailedUnrecoverable, BackupID: handle.BackupID, Validation: reports}
		}
		return Result{Status: StatusFailedPost, BackupID: handle.BackupID, Validation: reports}
	}

	a.invalidateCache(absolutePaths(a.ProjectRoot, plan.FilesAffected))

	return Result{Status: StatusSuccess, BackupID: handle.BackupID, FilesModified: plan.FilesAffected, Validation: reports}
}

func (a *Applicator) preValidate(ctx context.Context, plan types.RefactoringPlan, rewrites map[string][]RewriteOp) error {
	if plan.Plan.CanonicalName == "" {
		return lcierrors.NewValidationError(lcierrors.KindPreValidationFailed, "", 0, "plan missing canonical name", nil)
	}
	if len(plan.FilesAffected) == 0 {
		return lcierrors.NewValidationError(lcierrors.KindPreValidationFailed, "", 0, "plan has no files_affected", nil)
	}

	for _, f := range plan.FilesAffected {
		rel, err := filepath.Rel(a.ProjectRoot, filepath.Join(a.ProjectRoot, f))
		if err != nil || strings.HasPrefix(rel, "..") {
			return lcierrors.NewValidationError(lcierrors.KindPreValidationFailed, f, 0, "file escapes project root", nil)
		}
	}

	for file, ops := range rewrites {
		newText, err := applyRewrites(filepath.Join(a.ProjectRoot, file), ops)
		if err != nil {
			return lcierrors.NewValidationError(lcierrors.KindPreValidationFailed, file, 0, "could not compute rewrite", err)
		}
		if a.executor != nil {
			if _, err := a.executor.DumpAST(ctx, plan.Language, newText); err != nil {
				return lcierrors.NewValidationError(lcierrors.KindPreValidationFailed, file, 0, "generated code fails to parse", err)
			}
		}
	}

	return nil
}

func (a *Applicator) write(plan types.RefactoringPlan, rewrites map[string][]RewriteOp) error {
	for file, ops := range rewrites {
		path := filepath.Join(a.ProjectRoot, file)
		newText, err := applyRewrites(path, ops)
		if err != nil {
			return err
		}
		if err := writeAtomic(path, []byte(newText)); err != nil {
			return err
		}
	}
	return nil
}

// applyRewrites replaces byte ranges right-to-left within one file's
// content so earlier offsets remain valid, per spec.md §4.9.
func applyRewrites(path string, ops []RewriteOp) (string, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		content = nil
	} else if err != nil {
		return "", err
	}

	sorted := make([]RewriteOp, len(ops))
	copy(sorted, ops)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartByte > sorted[j].StartByte })

	text := string(content)
	for _, op := range sorted {
		if op.StartByte < 0 || op.EndByte > len(text) || op.StartByte > op.EndByte {
			return "", fmt.Errorf("rewrite range [%d,%d) out of bounds for %d-byte file", op.StartByte, op.EndByte, len(text))
		}
		text = text[:op.StartByte] + op.Text + text[op.EndByte:]
	}
	return text, nil
}

// postValidate re-parses every affected file (catching a rewrite that
// breaks syntax) and checks that every import the plan says is required is
// still present in the file that needs it (catching a rewrite that parses
// fine but leaves a reference unresolved — e.g. a generator bug that omits
// a required import, per spec.md §4.9 Scenario D).
func (a *Applicator) postValidate(ctx context.Context, plan types.RefactoringPlan) ([]types.ValidationReport, error) {
	report := types.ValidationReport{Phase: types.ValidationPost, OK: true}

	if a.executor == nil {
		return []types.ValidationReport{report}, nil
	}

	requiredByFile := requiredImportsByFile(plan)

	for _, f := range plan.FilesAffected {
		content, err := os.ReadFile(filepath.Join(a.ProjectRoot, f))
		if err != nil {
			report.OK = false
			report.Errors = append(report.Errors, types.ValidationIssue{File: f, Message: err.Error(), Kind: "read_failed"})
			continue
		}

		dump, err := a.executor.DumpAST(ctx, plan.Language, string(content))
		if err != nil {
			report.OK = false
			report.Errors = append(report.Errors, types.ValidationIssue{File: f, Message: err.Error(), Kind: "parse_failed"})
			continue
		}

		for _, imp := range requiredByFile[f] {
			if !importPresent(dump.Root, imp) {
				report.OK = false
				report.Errors = append(report.Errors, types.ValidationIssue{
					File:    f,
					Message: fmt.Sprintf("symbol from %q is unresolved: import missing after rewrite", imp),
					Kind:    "unresolved_symbol",
				})
			}
		}
	}

	return []types.ValidationReport{report}, nil
}

// requiredImportsByFile maps each affected file to the imports a rewrite
// there depends on: the canonical function's own RequiredImports (needed
// wherever it's written) plus each call rewrite's own ImportAdditions
// (needed at that call site).
func requiredImportsByFile(plan types.RefactoringPlan) map[string][]string {
	byFile := make(map[string][]string)
	if len(plan.Plan.RequiredImports) > 0 && plan.TargetFile != "" {
		byFile[plan.TargetFile] = append(byFile[plan.TargetFile], plan.Plan.RequiredImports...)
	}
	for _, cr := range plan.Plan.CallRewrites {
		if len(cr.ImportAdditions) == 0 {
			continue
		}
		byFile[cr.Location.FilePath] = append(byFile[cr.Location.FilePath], cr.ImportAdditions...)
	}
	return byFile
}

// importPresent reports whether imp appears anywhere in the dumped AST's
// node text. The matcher's AST dump carries no semantic binding info, so
// this is a syntactic stand-in for "this import is bound in scope" rather
// than true symbol resolution.
func importPresent(node matcher.AstDumpNode, imp string) bool {
	if strings.Contains(node.Text, imp) {
		return true
	}
	for _, c := range node.Children {
		if importPresent(c, imp) {
			return true
		}
	}
	return false
}

func reportsFailed(reports []types.ValidationReport) bool {
	for _, r := range reports {
		if !r.OK {
			return true
		}
	}
	return false
}

func preValidationReport(err error) types.ValidationReport {
	return types.ValidationReport{
		Phase: types.ValidationPre,
		OK:    false,
		Errors: []types.ValidationIssue{
			{Message: err.Error(), Kind: "pre_validation_failed"},
		},
	}
}

func (a *Applicator) invalidateCache(files []string) {
	if a.cache == nil {
		return
	}
	a.cache.Invalidate(func(k cache.Key) bool {
		return k.TouchesAny(files)
	})
}

func absolutePaths(root string, rel []string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = filepath.Join(root, r)
	}
	return out
}

func generateBackupID(groupID string) string {
	return "backup-" + groupID
}

func writeAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp-apply"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
