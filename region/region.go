// Package region defines the shared bookkeeping layout of a pooled allocator
// region and the read-only summarization of it. A region is a span of mapped
// memory whose leading bytes hold a fixed header: identification, the pool
// geometry, usage counters for the small and large pool tiers, and one free
// block count per size class. Everything in this package works on a plain byte
// slice so it can serve regions backed by files, shared memory segments, or
// test buffers alike.
package region

import (
	"encoding/binary"

	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"

	"github.com/memscope/memscope"
)

const (
	regionMagic   uint32 = 0x4D534350
	regionVersion uint32 = 1

	// headerAlignment keeps pool space behind the header word-aligned for any
	// supported geometry.
	headerAlignment = 64

	offMagic           = 0
	offVersion         = 4
	offWordSize        = 8
	offSmallClassCount = 12
	offLargeClassCount = 16
	offRegionBytes     = 24
	offUnusedBytes     = 32
	offOverheadBytes   = 40
	offSmallFree       = 48
	offSmallAllocated  = 56
	offSmallTotal      = 64
	offLargeFree       = 72
	offLargeAllocated  = 80
	offLargeTotal      = 88
	offWriteSeq        = 96
	offClassCounts     = 104
)

var layout = binary.LittleEndian

// HeaderSize returns the number of bytes the bookkeeping header occupies for
// the given geometry. The header length is fixed per geometry, never per
// region instance.
func HeaderSize(geo memscope.Geometry) int {
	memscope.DebugCheckPow2(uint(headerAlignment), "header alignment")
	raw := offClassCounts + 8*(geo.SmallClassCount+geo.LargeClassCount)
	return memscope.AlignUp(raw, headerAlignment)
}

// Snapshot is a decoded copy of a region header: the allocator's bookkeeping
// counters at one instant. Decoding copies everything out of the mapped bytes,
// so a Snapshot stays stable however the region changes afterwards.
type Snapshot struct {
	Geometry memscope.Geometry

	SmallPool memscope.PoolUsage
	LargePool memscope.PoolUsage

	RegionBytes   int
	UnusedBytes   int
	OverheadBytes int

	// WriteSeq is incremented by writers around mutations. Readers do not
	// interpret it; it exists for external tooling.
	WriteSeq uint64

	SmallFreeCounts []int
	LargeFreeCounts []int
}

// Summary projects the snapshot into the usage summary shape handed to
// callers. Pure field projection, no recomputation.
func (s *Snapshot) Summary() *memscope.UsageSummary {
	return &memscope.UsageSummary{
		SmallPool:       s.SmallPool,
		LargePool:       s.LargePool,
		RegionBytes:     s.RegionBytes,
		UnusedBytes:     s.UnusedBytes,
		OverheadBytes:   s.OverheadBytes,
		SmallFreeCounts: s.SmallFreeCounts,
		LargeFreeCounts: s.LargeFreeCounts,
		Geometry:        s.Geometry,
	}
}

func (s *Snapshot) Validate() error {
	return s.Summary().Validate()
}

// Read decodes and verifies the region header. The caller injects the geometry
// it expects the region to have been created with; a mismatch means the bytes
// belong to some other allocator build and the snapshot cannot be trusted.
// All failures wrap memscope.SnapshotError.
func Read(data []byte, geo memscope.Geometry) (*Snapshot, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	headerSize := HeaderSize(geo)
	if len(data) < headerSize {
		return nil, cerrors.Wrapf(memscope.SnapshotError, "region holds %d bytes but the header needs %d", len(data), headerSize)
	}
	if got := layout.Uint32(data[offMagic:]); got != regionMagic {
		return nil, cerrors.Wrapf(memscope.SnapshotError, "bad region magic %#x", got)
	}
	if got := layout.Uint32(data[offVersion:]); got != regionVersion {
		return nil, cerrors.Wrapf(memscope.SnapshotError, "unsupported region version %d", got)
	}

	stored := memscope.Geometry{
		WordSize:        int(layout.Uint32(data[offWordSize:])),
		SmallClassCount: int(layout.Uint32(data[offSmallClassCount:])),
		LargeClassCount: int(layout.Uint32(data[offLargeClassCount:])),
	}
	if stored != geo {
		return nil, cerrors.Wrapf(memscope.SnapshotError,
			"region geometry (word %d, %d small classes, %d large classes) does not match the attached allocator (word %d, %d, %d)",
			stored.WordSize, stored.SmallClassCount, stored.LargeClassCount,
			geo.WordSize, geo.SmallClassCount, geo.LargeClassCount)
	}

	snap := &Snapshot{
		Geometry: stored,
		SmallPool: memscope.PoolUsage{
			FreeBytes:      int(layout.Uint64(data[offSmallFree:])),
			AllocatedBytes: int(layout.Uint64(data[offSmallAllocated:])),
			TotalBytes:     int(layout.Uint64(data[offSmallTotal:])),
		},
		LargePool: memscope.PoolUsage{
			FreeBytes:      int(layout.Uint64(data[offLargeFree:])),
			AllocatedBytes: int(layout.Uint64(data[offLargeAllocated:])),
			TotalBytes:     int(layout.Uint64(data[offLargeTotal:])),
		},
		RegionBytes:     int(layout.Uint64(data[offRegionBytes:])),
		UnusedBytes:     int(layout.Uint64(data[offUnusedBytes:])),
		OverheadBytes:   int(layout.Uint64(data[offOverheadBytes:])),
		WriteSeq:        layout.Uint64(data[offWriteSeq:]),
		SmallFreeCounts: make([]int, stored.SmallClassCount),
		LargeFreeCounts: make([]int, stored.LargeClassCount),
	}
	countsAt := offClassCounts
	for i := range snap.SmallFreeCounts {
		snap.SmallFreeCounts[i] = int(layout.Uint64(data[countsAt:]))
		countsAt += 8
	}
	for i := range snap.LargeFreeCounts {
		snap.LargeFreeCounts[i] = int(layout.Uint64(data[countsAt:]))
		countsAt += 8
	}

	if err := snap.Validate(); err != nil {
		return nil, cerrors.Wrapf(memscope.SnapshotError, "region counters are inconsistent: %s", err.Error())
	}
	return snap, nil
}

// ReadSummary decodes the region header and returns it as an immutable usage
// summary. This is the whole of the usage query: one decode of the counters,
// verified for internal consistency, projected into the caller-owned value.
func ReadSummary(data []byte, geo memscope.Geometry) (*memscope.UsageSummary, error) {
	snap, err := Read(data, geo)
	if err != nil {
		return nil, err
	}
	return snap.Summary(), nil
}

// Write encodes the snapshot into the region bytes. The snapshot must be
// internally consistent; Write refuses to produce a header that Read would
// reject.
func Write(data []byte, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	headerSize := HeaderSize(snap.Geometry)
	if len(data) < headerSize {
		return errors.Errorf("region holds %d bytes but the header needs %d", len(data), headerSize)
	}

	layout.PutUint32(data[offMagic:], regionMagic)
	layout.PutUint32(data[offVersion:], regionVersion)
	layout.PutUint32(data[offWordSize:], uint32(snap.Geometry.WordSize))
	layout.PutUint32(data[offSmallClassCount:], uint32(snap.Geometry.SmallClassCount))
	layout.PutUint32(data[offLargeClassCount:], uint32(snap.Geometry.LargeClassCount))
	layout.PutUint64(data[offRegionBytes:], uint64(snap.RegionBytes))
	layout.PutUint64(data[offUnusedBytes:], uint64(snap.UnusedBytes))
	layout.PutUint64(data[offOverheadBytes:], uint64(snap.OverheadBytes))
	layout.PutUint64(data[offSmallFree:], uint64(snap.SmallPool.FreeBytes))
	layout.PutUint64(data[offSmallAllocated:], uint64(snap.SmallPool.AllocatedBytes))
	layout.PutUint64(data[offSmallTotal:], uint64(snap.SmallPool.TotalBytes))
	layout.PutUint64(data[offLargeFree:], uint64(snap.LargePool.FreeBytes))
	layout.PutUint64(data[offLargeAllocated:], uint64(snap.LargePool.AllocatedBytes))
	layout.PutUint64(data[offLargeTotal:], uint64(snap.LargePool.TotalBytes))
	layout.PutUint64(data[offWriteSeq:], snap.WriteSeq)

	countsAt := offClassCounts
	for _, count := range snap.SmallFreeCounts {
		layout.PutUint64(data[countsAt:], uint64(count))
		countsAt += 8
	}
	for _, count := range snap.LargeFreeCounts {
		layout.PutUint64(data[countsAt:], uint64(count))
		countsAt += 8
	}
	return nil
}
