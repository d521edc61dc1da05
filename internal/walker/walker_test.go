package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/codedup/internal/diagnostics"
	"github.com/standardbeagle/codedup/internal/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func TestWalkFiltersByLanguageAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n")
	writeFile(t, root, "vendor/dep.go", "package dep\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, root, "README.md", "# hi\n")

	profiles := types.DefaultLanguageProfiles()
	var seen []string
	err := Walk(Options{
		Roots:     []string{root},
		Languages: map[types.Language]types.LanguageProfile{types.LangGo: profiles[types.LangGo]},
	}, diagnostics.NewMemorySink(false), func(f WalkedFile) error {
		seen = append(seen, f.RelPath)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, seen)
}

func TestWalkSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.go", "package main\n// padding\n")

	profiles := types.DefaultLanguageProfiles()
	sink := diagnostics.NewMemorySink(false)
	var seen []string
	err := Walk(Options{
		Roots:            []string{root},
		Languages:        map[types.Language]types.LanguageProfile{types.LangGo: profiles[types.LangGo]},
		MaxFileSizeBytes: 4,
	}, sink, func(f WalkedFile) error {
		seen = append(seen, f.RelPath)
		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, seen)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, types.DiagnosticWarn, events[0].Level)
}

func TestWalkIsDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.go", "package main\n")
	writeFile(t, root, "a.go", "package main\n")
	writeFile(t, root, "c/d.go", "package c\n")

	profiles := types.DefaultLanguageProfiles()
	opts := Options{Roots: []string{root}, Languages: map[types.Language]types.LanguageProfile{types.LangGo: profiles[types.LangGo]}}

	var first, second []string
	require.NoError(t, Walk(opts, diagnostics.NewMemorySink(false), func(f WalkedFile) error {
		first = append(first, f.RelPath)
		return nil
	}))
	require.NoError(t, Walk(opts, diagnostics.NewMemorySink(false), func(f WalkedFile) error {
		second = append(second, f.RelPath)
		return nil
	}))

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"a.go", "b.go", "c/d.go"}, first)
}
