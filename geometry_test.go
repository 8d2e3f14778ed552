package memscope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscope/memscope"
)

func TestDefaultGeometry(t *testing.T) {
	geo := memscope.DefaultGeometry()
	require.NoError(t, geo.Validate())
	require.Equal(t, 8, geo.WordSize)
	require.Equal(t, 64, geo.SmallClassCount)
	require.Equal(t, 20, geo.LargeClassCount)
}

func TestSmallClassSizesProgression(t *testing.T) {
	geo := memscope.DefaultGeometry()

	sizes := geo.SmallClassSizes()
	require.Len(t, sizes, geo.SmallClassCount)
	require.Equal(t, geo.WordSize, sizes[0])
	for i := 1; i < len(sizes); i++ {
		require.Equal(t, sizes[i-1]+geo.WordSize, sizes[i])
		require.Greater(t, sizes[i], sizes[i-1])
	}
}

func TestLargeClassSizesProgression(t *testing.T) {
	geo := memscope.DefaultGeometry()

	sizes := geo.LargeClassSizes()
	require.Len(t, sizes, geo.LargeClassCount)
	require.Equal(t, geo.WordSize, sizes[0])
	for i := 1; i < len(sizes); i++ {
		require.Equal(t, 2*sizes[i-1], sizes[i])
	}
}

func TestClassSizesAreDeterministic(t *testing.T) {
	// Bucket sizes depend only on the geometry, never on a live region.
	geo := memscope.Geometry{WordSize: 16, SmallClassCount: 10, LargeClassCount: 5}
	require.Equal(t, geo.SmallClassSizes(), geo.SmallClassSizes())
	require.Equal(t, geo.LargeClassSizes(), geo.LargeClassSizes())
	require.Equal(t, []int{16, 32, 64, 128, 256}, geo.LargeClassSizes())
}

func TestGeometryValidate(t *testing.T) {
	geo := memscope.Geometry{WordSize: 12, SmallClassCount: 4, LargeClassCount: 4}
	err := geo.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, memscope.PowerOfTwoError)

	geo = memscope.Geometry{WordSize: 8, SmallClassCount: 0, LargeClassCount: 4}
	require.Error(t, geo.Validate())

	geo = memscope.Geometry{WordSize: 8, SmallClassCount: 4, LargeClassCount: -1}
	require.Error(t, geo.Validate())

	geo = memscope.Geometry{WordSize: 8, SmallClassCount: 4, LargeClassCount: 63}
	require.Error(t, geo.Validate())
}
