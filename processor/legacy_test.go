package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceResult(t *testing.T) {
	t.Run("nil is no result", func(t *testing.T) {
		_, err := CoerceResult(nil)
		assert.ErrorIs(t, err, ErrNoResult)
	})

	t.Run("pointer passes through", func(t *testing.T) {
		want := &Result{Success: true, Message: "done"}
		got, err := CoerceResult(want)
		require.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("value is copied", func(t *testing.T) {
		got, err := CoerceResult(Result{Success: false, Message: "nope"})
		require.NoError(t, err)
		assert.False(t, got.Success)
		assert.Equal(t, "nope", got.Message)
	})

	t.Run("map is coerced field by field", func(t *testing.T) {
		got, err := CoerceResult(map[string]interface{}{
			"success": false,
			"message": "resize failed",
			"stats":   map[string]interface{}{"attempts": 3},
			"context": map[string]interface{}{"retried": true},
		})
		require.NoError(t, err)
		assert.False(t, got.Success)
		assert.Equal(t, "resize failed", got.Message)
		assert.Equal(t, 3, got.Stats["attempts"])
		assert.Equal(t, true, got.Context["retried"])
	})

	t.Run("map success defaults to true", func(t *testing.T) {
		got, err := CoerceResult(map[string]interface{}{"message": "ok"})
		require.NoError(t, err)
		assert.True(t, got.Success)
	})

	t.Run("other values become success messages", func(t *testing.T) {
		got, err := CoerceResult("converted 3 files")
		require.NoError(t, err)
		assert.True(t, got.Success)
		assert.Equal(t, "converted 3 files", got.Message)

		got, err = CoerceResult(42)
		require.NoError(t, err)
		assert.True(t, got.Success)
		assert.Equal(t, "42", got.Message)
	})
}

func TestLegacyFunc(t *testing.T) {
	l := &LegacyFunc{
		ProcessorName: "legacy",
		Extensions:    []string{".t"},
		Fn: func(path string, chainCtx map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"message": path}, nil
		},
	}

	assert.Equal(t, "legacy", l.Name())
	assert.Equal(t, DefaultPriority, PriorityOf(l))

	res, err := l.Process(context.Background(), "a.t", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "a.t", res.Message)
}

func TestLegacyFuncError(t *testing.T) {
	boom := errors.New("boom")
	l := &LegacyFunc{
		ProcessorName: "legacy",
		Extensions:    []string{".t"},
		Fn: func(path string, chainCtx map[string]interface{}) (interface{}, error) {
			return nil, boom
		},
	}
	_, err := l.Process(context.Background(), "a.t", nil)
	assert.ErrorIs(t, err, boom)
}

func TestLegacyFuncPriority(t *testing.T) {
	l := &LegacyFunc{ProcessorName: "legacy", Extensions: []string{".t"}, Prio: 5}
	assert.Equal(t, 5, PriorityOf(l))

	// The zero value means unset; the earliest slot is reachable through a
	// negative priority.
	unset := &LegacyFunc{ProcessorName: "legacy", Extensions: []string{".t"}}
	assert.Equal(t, DefaultPriority, PriorityOf(unset))
	first := &LegacyFunc{ProcessorName: "legacy", Extensions: []string{".t"}, Prio: -1}
	assert.Equal(t, -1, PriorityOf(first))
}
