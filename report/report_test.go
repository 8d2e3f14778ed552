package report_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/memscope/memscope"
	"github.com/memscope/memscope/heap"
	"github.com/memscope/memscope/partition"
	"github.com/memscope/memscope/region"
	"github.com/memscope/memscope/report"
)

func newTestService(t *testing.T) report.Service {
	t.Helper()

	dir := t.TempDir()
	heaps, err := heap.NewRegistry(heap.Options{Directory: dir})
	require.NoError(t, err)
	partitions, err := partition.NewManager(partition.Options{
		Directory: dir,
		Backing:   partition.BackingFile,
	})
	require.NoError(t, err)
	return report.NewService(heaps, partitions)
}

func createAlpha(t *testing.T, svc report.Service) {
	t.Helper()

	err := svc.Heaps.Create("alpha", heap.CreateConfig{
		HeapBytes:      1048576,
		SmallPoolBytes: 65536,
		LargePoolBytes: 131072,
	})
	require.NoError(t, err)
}

func TestDumpHeap(t *testing.T) {
	svc := newTestService(t)
	createAlpha(t, svc)

	rep, err := svc.DumpHeap("alpha")
	require.NoError(t, err)

	require.Equal(t, 65536, rep.SmallPoolAvail)
	require.Equal(t, 0, rep.SmallPoolUsed)
	require.Equal(t, 65536, rep.SmallPoolTotal)
	require.Equal(t, 131072, rep.LargePoolAvail)
	require.Equal(t, 0, rep.LargePoolUsed)
	require.Equal(t, 131072, rep.LargePoolTotal)
	require.Equal(t, 1048576, rep.HeapSize)
	require.Equal(t, 851968, rep.HeapAvail)
	require.Equal(t, 0, rep.HeapUsed)
	require.Equal(t, 196608, rep.MaxHeapUsed)

	require.Equal(t, rep.SmallPoolTotal, rep.SmallPoolAvail+rep.SmallPoolUsed)
	require.Equal(t, rep.LargePoolTotal, rep.LargePoolAvail+rep.LargePoolUsed)
	require.Equal(t, rep.HeapUsed, rep.HeapSize-(rep.SmallPoolAvail+rep.LargePoolAvail+rep.HeapAvail))
	require.Equal(t, rep.MaxHeapUsed, rep.HeapSize-rep.HeapAvail)
}

func TestDumpHeapHistograms(t *testing.T) {
	svc := newTestService(t)
	createAlpha(t, svc)

	rep, err := svc.DumpHeap("alpha")
	require.NoError(t, err)

	geo := svc.Heaps.Geometry()
	require.Len(t, rep.SmallPoolBlocks, geo.SmallClassCount)
	require.Len(t, rep.LargePoolBlocks, geo.LargeClassCount)

	require.Equal(t, geo.WordSize, rep.SmallPoolBlocks[0].BlockBytes)
	for i := 1; i < len(rep.SmallPoolBlocks); i++ {
		require.Greater(t, rep.SmallPoolBlocks[i].BlockBytes, rep.SmallPoolBlocks[i-1].BlockBytes)
	}
	require.Equal(t, geo.WordSize, rep.LargePoolBlocks[0].BlockBytes)
	for i := 1; i < len(rep.LargePoolBlocks); i++ {
		require.Equal(t, 2*rep.LargePoolBlocks[i-1].BlockBytes, rep.LargePoolBlocks[i].BlockBytes)
	}

	require.Equal(t, report.Bucket{BlockBytes: 512, FreeBlocks: 128}, rep.SmallPoolBlocks[63])
	require.Equal(t, 128, rep.SmallPoolHistogram()[512])
	require.Equal(t, 1, rep.LargePoolHistogram()[131072])
}

func TestDumpHeapMissing(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.DumpHeap("ghost")
	require.ErrorIs(t, err, memscope.AttachError)
	require.Nil(t, rep)
}

func TestDumpHeapIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	createAlpha(t, svc)

	first, err := svc.DumpHeap("alpha")
	require.NoError(t, err)
	second, err := svc.DumpHeap("alpha")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestHeapStatsString(t *testing.T) {
	svc := newTestService(t)
	createAlpha(t, svc)

	rep, err := svc.DumpHeap("alpha")
	require.NoError(t, err)

	stats := rep.BuildStatsString()
	require.True(t, gjson.Valid(stats))

	require.Equal(t, int64(1048576), gjson.Get(stats, "Summary.heap_size").Int())
	require.Equal(t, int64(851968), gjson.Get(stats, "Summary.heap_avail").Int())
	require.Equal(t, int64(0), gjson.Get(stats, "Summary.heap_used").Int())
	require.Equal(t, int64(196608), gjson.Get(stats, "Summary.max_heap_used").Int())
	require.Equal(t, int64(65536), gjson.Get(stats, "Summary.small_pool_avail").Int())
	require.Equal(t, int64(128), gjson.Get(stats, "SmallPoolBlocks.512").Int())
	require.Equal(t, int64(1), gjson.Get(stats, "LargePoolBlocks.131072").Int())
	require.Equal(t, int64(64), gjson.Get(stats, "SmallPoolBlocks|@keys|#").Int())
}

func TestDumpPartition(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.DumpPartition(42, 262144, "beta")
	require.NoError(t, err)

	overhead := 64 + region.HeaderSize(svc.Partitions.Geometry())
	require.Equal(t, 262144, rep.WmSize)
	require.Equal(t, 262144-overhead, rep.WmAvail)
	require.Equal(t, 0, rep.SmallPoolUsed)
	require.Equal(t, 0, rep.LargePoolUsed)
	require.Equal(t, rep.SmallPoolTotal, rep.SmallPoolAvail+rep.SmallPoolUsed)

	geo := svc.Partitions.Geometry()
	require.Len(t, rep.SmallPoolBlocks, geo.SmallClassCount)
	require.Len(t, rep.LargePoolBlocks, geo.LargeClassCount)

	stats := rep.BuildStatsString()
	require.True(t, gjson.Valid(stats))
	require.Equal(t, int64(262144), gjson.Get(stats, "Summary.wm_size").Int())
	require.Equal(t, int64(262144-overhead), gjson.Get(stats, "Summary.wm_avail").Int())
}

func TestDumpPartitionWrongName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.DumpPartition(42, 262144, "beta")
	require.NoError(t, err)

	rep, err := svc.DumpPartition(42, 0, "other")
	require.ErrorIs(t, err, memscope.AttachError)
	require.Nil(t, rep)
}

func TestDumpPartitionIsIdempotent(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.DumpPartition(9, 131072, "theta")
	require.NoError(t, err)
	second, err := svc.DumpPartition(9, 0, "theta")
	require.NoError(t, err)
	require.Equal(t, first, second)
}
