package memscope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscope/memscope"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memscope.CheckPow2(uint(64), "test value"))
	err := memscope.CheckPow2(uint(96), "test value")
	require.ErrorIs(t, err, memscope.PowerOfTwoError)
}

func TestAlign(t *testing.T) {
	require.Equal(t, 128, memscope.AlignUp(100, 64))
	require.Equal(t, 64, memscope.AlignUp(64, 64))
}

func TestDebugHooksAreQuietByDefault(t *testing.T) {
	// Without the debug_memscope build tag these must stay no-ops even for
	// inputs the debug build would reject.
	require.NotPanics(t, func() {
		memscope.DebugValidate(memscope.PoolUsage{FreeBytes: 1, AllocatedBytes: 1, TotalBytes: 3})
		memscope.DebugCheckPow2(uint(96), "test value")
	})
}

func TestIsMultipleOf(t *testing.T) {
	require.True(t, memscope.IsMultipleOf(65536, 8))
	require.False(t, memscope.IsMultipleOf(65537, 8))
	require.False(t, memscope.IsMultipleOf(8, 0))
}
