// Package report shapes usage summaries into the external reporting contract:
// flat pool totals under their published names plus one ordered free-block
// histogram per pool tier. It also hosts the two query entry points that tie
// attachment, summarization and encoding together.
package report

import (
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/memscope/memscope"
)

// Bucket is one histogram entry: the byte size of a size class and the number
// of free blocks currently in it.
type Bucket struct {
	BlockBytes int
	FreeBlocks int
}

// buildBuckets pairs the geometry's deterministic bucket sizes with the
// snapshot's free counts, preserving ascending size order.
func buildBuckets(sizes []int, counts []int) []Bucket {
	buckets := make([]Bucket, len(sizes))
	for i, size := range sizes {
		buckets[i] = Bucket{BlockBytes: size, FreeBlocks: counts[i]}
	}
	return buckets
}

// bucketMap flattens buckets into a size-keyed lookup for callers that prefer
// map access over ordered iteration.
func bucketMap(buckets []Bucket) map[int]int {
	m := make(map[int]int, len(buckets))
	for _, b := range buckets {
		m[b.BlockBytes] = b.FreeBlocks
	}
	return m
}

func bucketsJson(obj *jwriter.ObjectState, buckets []Bucket) {
	for _, b := range buckets {
		obj.Name(strconv.Itoa(b.BlockBytes)).Int(b.FreeBlocks)
	}
}

// HeapReport is the external shape of one heap usage query. All fields are
// byte counts except the histograms.
type HeapReport struct {
	SmallPoolAvail int
	SmallPoolUsed  int
	SmallPoolTotal int
	LargePoolAvail int
	LargePoolUsed  int
	LargePoolTotal int
	HeapSize       int
	HeapAvail      int
	HeapUsed       int
	MaxHeapUsed    int

	// SmallPoolBlocks and LargePoolBlocks map size-class byte sizes to free
	// block counts, in ascending size order.
	SmallPoolBlocks []Bucket
	LargePoolBlocks []Bucket
}

// newHeapReport maps a usage summary onto the external field names. Purely
// structural; every number was already fixed when the snapshot was taken.
func newHeapReport(sum *memscope.UsageSummary) *HeapReport {
	memscope.DebugValidate(sum)
	return &HeapReport{
		SmallPoolAvail: sum.SmallPool.FreeBytes,
		SmallPoolUsed:  sum.SmallPool.AllocatedBytes,
		SmallPoolTotal: sum.SmallPool.TotalBytes,
		LargePoolAvail: sum.LargePool.FreeBytes,
		LargePoolUsed:  sum.LargePool.AllocatedBytes,
		LargePoolTotal: sum.LargePool.TotalBytes,
		HeapSize:       sum.RegionBytes,
		HeapAvail:      sum.UnusedBytes,
		HeapUsed:       sum.UsedBytes(),
		MaxHeapUsed:    sum.MaxUsedBytes(),

		SmallPoolBlocks: buildBuckets(sum.Geometry.SmallClassSizes(), sum.SmallFreeCounts),
		LargePoolBlocks: buildBuckets(sum.Geometry.LargeClassSizes(), sum.LargeFreeCounts),
	}
}

// SmallPoolHistogram returns the small-pool histogram as a size-keyed map.
func (r *HeapReport) SmallPoolHistogram() map[int]int {
	return bucketMap(r.SmallPoolBlocks)
}

// LargePoolHistogram returns the large-pool histogram as a size-keyed map.
func (r *HeapReport) LargePoolHistogram() map[int]int {
	return bucketMap(r.LargePoolBlocks)
}

// BuildStatsString renders the report as a JSON document. Histogram keys are
// written in ascending size order.
func (r *HeapReport) BuildStatsString() string {
	writer := jwriter.NewWriter()
	obj := writer.Object()

	summary := obj.Name("Summary").Object()
	summary.Name("small_pool_avail").Int(r.SmallPoolAvail)
	summary.Name("small_pool_used").Int(r.SmallPoolUsed)
	summary.Name("small_pool_total").Int(r.SmallPoolTotal)
	summary.Name("large_pool_avail").Int(r.LargePoolAvail)
	summary.Name("large_pool_used").Int(r.LargePoolUsed)
	summary.Name("large_pool_total").Int(r.LargePoolTotal)
	summary.Name("heap_size").Int(r.HeapSize)
	summary.Name("heap_avail").Int(r.HeapAvail)
	summary.Name("heap_used").Int(r.HeapUsed)
	summary.Name("max_heap_used").Int(r.MaxHeapUsed)
	summary.End()

	small := obj.Name("SmallPoolBlocks").Object()
	bucketsJson(&small, r.SmallPoolBlocks)
	small.End()

	large := obj.Name("LargePoolBlocks").Object()
	bucketsJson(&large, r.LargePoolBlocks)
	large.End()

	obj.End()
	return string(writer.Bytes())
}

// PartitionReport is the external shape of one partition usage query. The
// partition variant publishes no derived usage fields; wm_size and wm_avail
// are read directly from the snapshot.
type PartitionReport struct {
	SmallPoolAvail int
	SmallPoolUsed  int
	SmallPoolTotal int
	LargePoolAvail int
	LargePoolUsed  int
	LargePoolTotal int
	WmSize         int
	WmAvail        int

	SmallPoolBlocks []Bucket
	LargePoolBlocks []Bucket
}

func newPartitionReport(sum *memscope.UsageSummary) *PartitionReport {
	memscope.DebugValidate(sum)
	return &PartitionReport{
		SmallPoolAvail: sum.SmallPool.FreeBytes,
		SmallPoolUsed:  sum.SmallPool.AllocatedBytes,
		SmallPoolTotal: sum.SmallPool.TotalBytes,
		LargePoolAvail: sum.LargePool.FreeBytes,
		LargePoolUsed:  sum.LargePool.AllocatedBytes,
		LargePoolTotal: sum.LargePool.TotalBytes,
		WmSize:         sum.RegionBytes,
		WmAvail:        sum.UnusedBytes,

		SmallPoolBlocks: buildBuckets(sum.Geometry.SmallClassSizes(), sum.SmallFreeCounts),
		LargePoolBlocks: buildBuckets(sum.Geometry.LargeClassSizes(), sum.LargeFreeCounts),
	}
}

// SmallPoolHistogram returns the small-pool histogram as a size-keyed map.
func (r *PartitionReport) SmallPoolHistogram() map[int]int {
	return bucketMap(r.SmallPoolBlocks)
}

// LargePoolHistogram returns the large-pool histogram as a size-keyed map.
func (r *PartitionReport) LargePoolHistogram() map[int]int {
	return bucketMap(r.LargePoolBlocks)
}

// BuildStatsString renders the report as a JSON document.
func (r *PartitionReport) BuildStatsString() string {
	writer := jwriter.NewWriter()
	obj := writer.Object()

	summary := obj.Name("Summary").Object()
	summary.Name("small_pool_avail").Int(r.SmallPoolAvail)
	summary.Name("small_pool_used").Int(r.SmallPoolUsed)
	summary.Name("small_pool_total").Int(r.SmallPoolTotal)
	summary.Name("large_pool_avail").Int(r.LargePoolAvail)
	summary.Name("large_pool_used").Int(r.LargePoolUsed)
	summary.Name("large_pool_total").Int(r.LargePoolTotal)
	summary.Name("wm_size").Int(r.WmSize)
	summary.Name("wm_avail").Int(r.WmAvail)
	summary.End()

	small := obj.Name("SmallPoolBlocks").Object()
	bucketsJson(&small, r.SmallPoolBlocks)
	small.End()

	large := obj.Name("LargePoolBlocks").Object()
	bucketsJson(&large, r.LargePoolBlocks)
	large.End()

	obj.End()
	return string(writer.Bytes())
}
