package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codedup/internal/types"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildAndCoveredMarksReferencedSourceAsCovered(t *testing.T) {
	dir := t.TempDir()
	testFile := writeTemp(t, dir, "widget_test.go", "package widget\nfunc TestWidget(t *testing.T) { widget.Do() }")

	idx, err := Build([]string{testFile})
	require.NoError(t, err)

	report := Covered([]string{"widget.go", "gadget.go"}, idx)
	assert.True(t, report["widget.go"].Covered)
	assert.False(t, report["gadget.go"].Covered)
}

func TestIsTestFileMatchesConfiguredGlobs(t *testing.T) {
	assert.True(t, IsTestFile("pkg/widget_test.go", []string{"*_test.go"}))
	assert.False(t, IsTestFile("pkg/widget.go", []string{"*_test.go"}))
}

func TestHasExternalCallSitesExcludesOwnGroupFiles(t *testing.T) {
	dir := t.TempDir()
	testFile := writeTemp(t, dir, "caller_test.go", "package caller\nfunc TestX(t *testing.T) { doWork() }")

	idx, err := Build([]string{testFile})
	require.NoError(t, err)

	unit := types.FunctionUnit{Name: "doWork"}
	group := types.DuplicationGroup{Members: []types.FunctionUnit{
		{Location: types.SourceLocation{FilePath: "a.go"}},
	}}

	assert.True(t, HasExternalCallSites(unit, group, idx))

	groupIncludingCaller := types.DuplicationGroup{Members: []types.FunctionUnit{
		{Location: types.SourceLocation{FilePath: testFile}},
	}}
	assert.False(t, HasExternalCallSites(unit, groupIncludingCaller, idx))
}
