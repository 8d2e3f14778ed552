package region

import (
	"github.com/pkg/errors"

	"github.com/memscope/memscope"
)

// FormatConfig sizes a fresh region. RegionBytes is the accounted span.
// OverheadBytes is bookkeeping that lives inside the accounted span (zero when
// the header sits in front of it). SmallPoolBytes and LargePoolBytes are
// carved out at format time and start entirely free; both may be zero for
// allocators whose pools grow on demand.
type FormatConfig struct {
	RegionBytes    int
	OverheadBytes  int
	SmallPoolBytes int
	LargePoolBytes int
}

// Format writes the header of a brand-new region. Pool space is carved into
// free blocks greedily, largest size class first, which is how the allocator
// leaves a freshly built free list.
func Format(data []byte, geo memscope.Geometry, cfg FormatConfig) error {
	if err := geo.Validate(); err != nil {
		return err
	}
	if cfg.RegionBytes <= 0 {
		return errors.Errorf("region size must be positive, not %d", cfg.RegionBytes)
	}
	if !memscope.IsMultipleOf(cfg.SmallPoolBytes, geo.WordSize) && cfg.SmallPoolBytes != 0 {
		return errors.Errorf("small pool size %d is not a whole number of %d-byte words", cfg.SmallPoolBytes, geo.WordSize)
	}
	if !memscope.IsMultipleOf(cfg.LargePoolBytes, geo.WordSize) && cfg.LargePoolBytes != 0 {
		return errors.Errorf("large pool size %d is not a whole number of %d-byte words", cfg.LargePoolBytes, geo.WordSize)
	}
	claimed := cfg.SmallPoolBytes + cfg.LargePoolBytes + cfg.OverheadBytes
	if claimed > cfg.RegionBytes {
		return errors.Errorf("pools and overhead claim %d bytes but the region only has %d", claimed, cfg.RegionBytes)
	}

	smallCounts, err := seedFreeClasses(geo.SmallClassSizes(), cfg.SmallPoolBytes)
	if err != nil {
		return err
	}
	largeCounts, err := seedFreeClasses(geo.LargeClassSizes(), cfg.LargePoolBytes)
	if err != nil {
		return err
	}

	snap := &Snapshot{
		Geometry: geo,
		SmallPool: memscope.PoolUsage{
			FreeBytes:  cfg.SmallPoolBytes,
			TotalBytes: cfg.SmallPoolBytes,
		},
		LargePool: memscope.PoolUsage{
			FreeBytes:  cfg.LargePoolBytes,
			TotalBytes: cfg.LargePoolBytes,
		},
		RegionBytes:     cfg.RegionBytes,
		UnusedBytes:     cfg.RegionBytes - claimed,
		OverheadBytes:   cfg.OverheadBytes,
		SmallFreeCounts: smallCounts,
		LargeFreeCounts: largeCounts,
	}
	return Write(data, snap)
}

// seedFreeClasses distributes poolBytes of fresh free space across the size
// classes, preferring the largest class that still fits. The smallest class in
// either progression is one word, so any whole number of words is covered
// exactly.
func seedFreeClasses(classSizes []int, poolBytes int) ([]int, error) {
	counts := make([]int, len(classSizes))
	remaining := poolBytes
	for i := len(classSizes) - 1; i >= 0 && remaining > 0; i-- {
		size := classSizes[i]
		if size > remaining {
			continue
		}
		counts[i] = remaining / size
		remaining -= counts[i] * size
	}
	if remaining != 0 {
		return nil, errors.Errorf("pool size %d cannot be covered by the size classes, %d bytes left over", poolBytes, remaining)
	}
	return counts, nil
}
