package matcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codedup/internal/cache"
	"github.com/standardbeagle/codedup/internal/diagnostics"
	"github.com/standardbeagle/codedup/internal/types"
)

// fakeMatcherScript writes a tiny shell script standing in for the real
// matcher binary, so RunPattern can be exercised without a real ast-grep
// install. It echoes one JSON match line per invocation.
func fakeMatcherScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-matcher.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func TestRunPatternParsesLineDelimitedJSON(t *testing.T) {
	script := fakeMatcherScript(t, `echo '{"file":"a.go","range":{"start":{"line":1,"column":1,"byte":0},"end":{"line":2,"column":1,"byte":10}},"text":"func a(){}"}'`)

	a := New(script, 0, nil, diagnostics.NewMemorySink(false))
	matches, err := a.RunPattern(context.Background(), types.LangGo, "func $NAME(){}", []string{"."}, RunOptions{})

	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a.go", matches[0].Location.FilePath)
	assert.Equal(t, "func a(){}", matches[0].Text)
}

func TestRunPatternRejectsInvalidByteRange(t *testing.T) {
	script := fakeMatcherScript(t, `echo '{"file":"a.go","range":{"start":{"line":1,"column":1,"byte":10},"end":{"line":1,"column":1,"byte":0}},"text":"bad"}'`)

	a := New(script, 0, nil, diagnostics.NewMemorySink(false))
	matches, err := a.RunPattern(context.Background(), types.LangGo, "p", []string{"."}, RunOptions{})

	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRunPatternSurfacesNonZeroExit(t *testing.T) {
	script := fakeMatcherScript(t, `echo "boom" 1>&2; exit 1`)

	a := New(script, 0, nil, diagnostics.NewMemorySink(false))
	_, err := a.RunPattern(context.Background(), types.LangGo, "p", []string{"."}, RunOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunPatternCachesSecondCall(t *testing.T) {
	countFile := filepath.Join(t.TempDir(), "count")
	require.NoError(t, os.WriteFile(countFile, []byte("0"), 0644))
	script := fakeMatcherScript(t, `echo '{"file":"a.go","range":{"start":{"line":1,"column":1,"byte":0},"end":{"line":1,"column":1,"byte":1}},"text":"x"}'`)

	c := cache.New(cache.Options{})
	a := New(script, 0, c, diagnostics.NewMemorySink(false))

	_, err := a.RunPattern(context.Background(), types.LangGo, "p", []string{"."}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = a.RunPattern(context.Background(), types.LangGo, "p", []string{"."}, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len(), "second identical call should hit the cache, not grow it")
}
