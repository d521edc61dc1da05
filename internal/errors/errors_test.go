package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionError(t *testing.T) {
	underlying := errors.New("boom")
	err := NewDetectionError(KindParseFailure, "extract", underlying).WithFile("/a/b.go")

	assert.Equal(t, KindParseFailure, err.Kind)
	assert.Equal(t, "/a/b.go", err.FilePath)
	require.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "/a/b.go")
}

func TestPatternExecutionError(t *testing.T) {
	underlying := errors.New("exit status 1")
	err := NewPatternExecutionError(KindExecTransient, "foo($X)", "panic: oom", underlying)

	assert.True(t, err.IsTransient())
	assert.Contains(t, err.Error(), "panic: oom")
	require.ErrorIs(t, err, underlying)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(KindPostValidationFailed, "main.go", 42, "unresolved identifier", nil)

	assert.Equal(t, "main.go", err.File)
	assert.Equal(t, 42, err.Line)
	assert.Contains(t, err.Error(), "unresolved identifier")
}

func TestTransactionError(t *testing.T) {
	rollbackFailed := NewTransactionError(KindRollbackFailed, "rollback", "bk-1", errors.New("disk full"))
	assert.True(t, rollbackFailed.Unrecoverable())

	writeFailed := NewTransactionError(KindWriteFailed, "writing", "bk-2", errors.New("permission denied"))
	assert.False(t, writeFailed.Unrecoverable())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("MinSimilarity", "1.5", errors.New("out of range"))
	assert.Contains(t, err.Error(), "MinSimilarity")
	assert.Contains(t, err.Error(), "1.5")
}

func TestMultiError(t *testing.T) {
	t.Run("filters nils", func(t *testing.T) {
		me := NewMultiError([]error{nil, errors.New("a"), nil, errors.New("b")})
		assert.Len(t, me.Errors, 2)
		assert.True(t, me.HasErrors())
	})

	t.Run("empty has no errors", func(t *testing.T) {
		me := NewMultiError(nil)
		assert.False(t, me.HasErrors())
		assert.Equal(t, "no errors", me.Error())
	})

	t.Run("single error passes through message", func(t *testing.T) {
		inner := errors.New("only one")
		me := NewMultiError([]error{inner})
		assert.Equal(t, inner.Error(), me.Error())
	})

	t.Run("unwrap returns all", func(t *testing.T) {
		a, b := errors.New("a"), errors.New("b")
		me := NewMultiError([]error{a, b})
		assert.ElementsMatch(t, []error{a, b}, me.Unwrap())
	})
}
