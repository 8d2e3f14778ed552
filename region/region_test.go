package region_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscope/memscope"
	"github.com/memscope/memscope/region"
)

func formatHeapRegion(t *testing.T, geo memscope.Geometry) []byte {
	t.Helper()

	data := make([]byte, region.HeaderSize(geo))
	err := region.Format(data, geo, region.FormatConfig{
		RegionBytes:    1048576,
		SmallPoolBytes: 65536,
		LargePoolBytes: 131072,
	})
	require.NoError(t, err)
	return data
}

func TestFormatAndReadSummary(t *testing.T) {
	geo := memscope.DefaultGeometry()
	data := formatHeapRegion(t, geo)

	sum, err := region.ReadSummary(data, geo)
	require.NoError(t, err)

	require.Equal(t, memscope.PoolUsage{FreeBytes: 65536, TotalBytes: 65536}, sum.SmallPool)
	require.Equal(t, memscope.PoolUsage{FreeBytes: 131072, TotalBytes: 131072}, sum.LargePool)
	require.Equal(t, 1048576, sum.RegionBytes)
	require.Equal(t, 851968, sum.UnusedBytes)
	require.Equal(t, 0, sum.UsedBytes())
	require.Equal(t, 196608, sum.MaxUsedBytes())

	// A fresh free list is carved largest class first: the small pool is an
	// exact multiple of the 512-byte top class, the large pool one 131072-byte
	// block.
	require.Equal(t, 128, sum.SmallFreeCounts[geo.SmallClassCount-1])
	require.Equal(t, 1, sum.LargeFreeCounts[14])

	var smallBytes int
	for i, count := range sum.SmallFreeCounts {
		smallBytes += count * geo.SmallClassSize(i)
	}
	require.Equal(t, sum.SmallPool.FreeBytes, smallBytes)

	var largeBytes int
	for i, count := range sum.LargeFreeCounts {
		largeBytes += count * geo.LargeClassSize(i)
	}
	require.Equal(t, sum.LargePool.FreeBytes, largeBytes)
}

func TestFormatCarvesOddPoolSizes(t *testing.T) {
	geo := memscope.DefaultGeometry()
	data := make([]byte, region.HeaderSize(geo))

	// 520 = one 512-byte block plus one 8-byte block.
	err := region.Format(data, geo, region.FormatConfig{
		RegionBytes:    4096,
		SmallPoolBytes: 520,
	})
	require.NoError(t, err)

	sum, err := region.ReadSummary(data, geo)
	require.NoError(t, err)
	require.Equal(t, 1, sum.SmallFreeCounts[geo.SmallClassCount-1])
	require.Equal(t, 1, sum.SmallFreeCounts[0])
}

func TestFormatRejectsBadConfigs(t *testing.T) {
	geo := memscope.DefaultGeometry()
	data := make([]byte, region.HeaderSize(geo))

	err := region.Format(data, geo, region.FormatConfig{RegionBytes: 0})
	require.Error(t, err)

	err = region.Format(data, geo, region.FormatConfig{RegionBytes: 4096, SmallPoolBytes: 13})
	require.Error(t, err)

	err = region.Format(data, geo, region.FormatConfig{RegionBytes: 4096, SmallPoolBytes: 8192})
	require.Error(t, err)
}

func TestReadRepeatedIsIdentical(t *testing.T) {
	geo := memscope.DefaultGeometry()
	data := formatHeapRegion(t, geo)

	first, err := region.ReadSummary(data, geo)
	require.NoError(t, err)
	second, err := region.ReadSummary(data, geo)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestReadRejectsCorruptRegions(t *testing.T) {
	geo := memscope.DefaultGeometry()

	t.Run("TooShort", func(t *testing.T) {
		_, err := region.Read(make([]byte, 32), geo)
		require.ErrorIs(t, err, memscope.SnapshotError)
	})

	t.Run("BadMagic", func(t *testing.T) {
		data := formatHeapRegion(t, geo)
		data[0] ^= 0xff
		_, err := region.Read(data, geo)
		require.ErrorIs(t, err, memscope.SnapshotError)
	})

	t.Run("GeometryMismatch", func(t *testing.T) {
		data := formatHeapRegion(t, geo)
		other := geo
		other.SmallClassCount = 32
		_, err := region.Read(data, other)
		require.ErrorIs(t, err, memscope.SnapshotError)
	})

	t.Run("BrokenSumLaw", func(t *testing.T) {
		data := formatHeapRegion(t, geo)
		// Tamper with the small pool free counter; free + allocated no longer
		// matches the total.
		binary.LittleEndian.PutUint64(data[48:], 1)
		_, err := region.Read(data, geo)
		require.ErrorIs(t, err, memscope.SnapshotError)
	})
}

func TestWriteReadRoundtrip(t *testing.T) {
	geo := memscope.Geometry{WordSize: 8, SmallClassCount: 4, LargeClassCount: 3}
	require.NoError(t, geo.Validate())

	snap := &region.Snapshot{
		Geometry:        geo,
		SmallPool:       memscope.PoolUsage{FreeBytes: 24, AllocatedBytes: 40, TotalBytes: 64},
		LargePool:       memscope.PoolUsage{FreeBytes: 8, AllocatedBytes: 24, TotalBytes: 32},
		RegionBytes:     1024,
		UnusedBytes:     928,
		WriteSeq:        7,
		SmallFreeCounts: []int{1, 0, 0, 1},
		LargeFreeCounts: []int{1, 0, 0},
	}

	data := make([]byte, region.HeaderSize(geo))
	require.NoError(t, region.Write(data, snap))

	got, err := region.Read(data, geo)
	require.NoError(t, err)
	require.Equal(t, snap, got)
}

func TestWriteRefusesInconsistentSnapshots(t *testing.T) {
	geo := memscope.DefaultGeometry()
	data := formatHeapRegion(t, geo)

	snap, err := region.Read(data, geo)
	require.NoError(t, err)
	snap.SmallPool.AllocatedBytes += 8

	require.Error(t, region.Write(data, snap))
}
