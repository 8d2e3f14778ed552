package memscope

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// PoolUsage describes one pool tier of an allocator region at a consistent
// instant. FreeBytes+AllocatedBytes must equal TotalBytes in any valid
// snapshot.
type PoolUsage struct {
	FreeBytes      int
	AllocatedBytes int
	TotalBytes     int
}

func (u PoolUsage) Validate() error {
	if u.FreeBytes < 0 || u.AllocatedBytes < 0 || u.TotalBytes < 0 {
		return errors.Errorf("pool counters may not be negative: free %d, allocated %d, total %d", u.FreeBytes, u.AllocatedBytes, u.TotalBytes)
	}
	if u.FreeBytes+u.AllocatedBytes != u.TotalBytes {
		return errors.Errorf("pool counters do not sum: free %d + allocated %d != total %d", u.FreeBytes, u.AllocatedBytes, u.TotalBytes)
	}
	return nil
}

// UsageSummary is the point-in-time usage snapshot of one allocator region:
// both pool tiers, the region-wide counters, and the per-class free block
// counts. It is a plain value owned by the caller; nothing retains a reference
// to it after it is returned, and none of its fields are recomputed after
// assembly.
type UsageSummary struct {
	SmallPool PoolUsage
	LargePool PoolUsage

	// RegionBytes is the full accounted size of the region.
	RegionBytes int
	// UnusedBytes is space the allocator has never handed to either pool.
	UnusedBytes int
	// OverheadBytes is bookkeeping space counted inside RegionBytes but outside
	// the pools, zero when the bookkeeping lives outside the accounted span.
	OverheadBytes int

	// SmallFreeCounts[i] is the number of free blocks in small class i,
	// LargeFreeCounts[i] the number in large class i.
	SmallFreeCounts []int
	LargeFreeCounts []int

	Geometry Geometry
}

// UsedBytes derives the number of bytes currently allocated out of the region:
// everything that is neither free in a pool, untouched, nor bookkeeping.
func (s *UsageSummary) UsedBytes() int {
	return s.RegionBytes - (s.SmallPool.FreeBytes + s.LargePool.FreeBytes + s.UnusedBytes + s.OverheadBytes)
}

// MaxUsedBytes derives the high-water mark of the region: every byte that has
// ever been handed to a pool.
func (s *UsageSummary) MaxUsedBytes() int {
	return s.RegionBytes - s.UnusedBytes - s.OverheadBytes
}

func (s *UsageSummary) Validate() error {
	if err := s.Geometry.Validate(); err != nil {
		return err
	}
	if err := s.SmallPool.Validate(); err != nil {
		return err
	}
	if err := s.LargePool.Validate(); err != nil {
		return err
	}
	if len(s.SmallFreeCounts) != s.Geometry.SmallClassCount {
		return errors.Errorf("summary has %d small classes but the geometry has %d", len(s.SmallFreeCounts), s.Geometry.SmallClassCount)
	}
	if len(s.LargeFreeCounts) != s.Geometry.LargeClassCount {
		return errors.Errorf("summary has %d large classes but the geometry has %d", len(s.LargeFreeCounts), s.Geometry.LargeClassCount)
	}
	for i, count := range s.SmallFreeCounts {
		if count < 0 {
			return errors.Errorf("small class %d has a negative free count %d", i, count)
		}
	}
	for i, count := range s.LargeFreeCounts {
		if count < 0 {
			return errors.Errorf("large class %d has a negative free count %d", i, count)
		}
	}
	if s.SmallPool.TotalBytes+s.LargePool.TotalBytes+s.UnusedBytes+s.OverheadBytes != s.RegionBytes {
		return errors.Errorf("pools (%d + %d), unused space %d and overhead %d do not cover the region size %d",
			s.SmallPool.TotalBytes, s.LargePool.TotalBytes, s.UnusedBytes, s.OverheadBytes, s.RegionBytes)
	}
	return nil
}

// DebugLog writes the summary's counters through the provided logger. Slow,
// diagnostic use only.
func (s *UsageSummary) DebugLog(logger *slog.Logger) {
	logger.Info("region usage",
		slog.Int("regionBytes", s.RegionBytes),
		slog.Int("unusedBytes", s.UnusedBytes),
		slog.Int("usedBytes", s.UsedBytes()),
		slog.Int("maxUsedBytes", s.MaxUsedBytes()),
		slog.Int("smallFree", s.SmallPool.FreeBytes),
		slog.Int("smallAllocated", s.SmallPool.AllocatedBytes),
		slog.Int("smallTotal", s.SmallPool.TotalBytes),
		slog.Int("largeFree", s.LargePool.FreeBytes),
		slog.Int("largeAllocated", s.LargePool.AllocatedBytes),
		slog.Int("largeTotal", s.LargePool.TotalBytes),
	)
}
