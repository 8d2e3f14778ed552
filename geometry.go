package memscope

import (
	"github.com/pkg/errors"
)

const (
	// DefaultWordSize is the block granularity, in bytes, used by regions unless
	// a caller injects a different geometry. It matches the machine word on the
	// platforms the allocator targets.
	DefaultWordSize = 8
	// DefaultSmallClassCount is the number of fixed size classes in a small
	// pool. Class i holds blocks of (i+1) words.
	DefaultSmallClassCount = 64
	// DefaultLargeClassCount is the number of doubling size classes in a large
	// pool. Class i holds blocks of one word shifted left i times.
	DefaultLargeClassCount = 20
)

// Geometry carries the fixed bucket-count constants of a pooled allocator. The
// counts and word size are compile-time properties of the allocator that owns a
// region, never discovered at query time; injecting them lets the same
// summarization logic serve allocators with different layouts.
type Geometry struct {
	WordSize        int
	SmallClassCount int
	LargeClassCount int
}

// DefaultGeometry returns the geometry used by every region this module
// creates itself.
func DefaultGeometry() Geometry {
	return Geometry{
		WordSize:        DefaultWordSize,
		SmallClassCount: DefaultSmallClassCount,
		LargeClassCount: DefaultLargeClassCount,
	}
}

func (g Geometry) Validate() error {
	if g.WordSize <= 0 {
		return errors.Errorf("word size must be positive, not %d", g.WordSize)
	}
	if err := CheckPow2(uint(g.WordSize), "word size"); err != nil {
		return err
	}
	if g.SmallClassCount <= 0 {
		return errors.Errorf("small class count must be positive, not %d", g.SmallClassCount)
	}
	if g.LargeClassCount <= 0 {
		return errors.Errorf("large class count must be positive, not %d", g.LargeClassCount)
	}
	if g.LargeClassCount >= 63 {
		return errors.Errorf("large class count %d would overflow the doubling progression", g.LargeClassCount)
	}
	return nil
}

// SmallClassSize returns the block size in bytes of small-pool class i. Sizes
// follow an arithmetic progression: one word, two words, three words and so on.
func (g Geometry) SmallClassSize(i int) int {
	return (i + 1) * g.WordSize
}

// LargeClassSize returns the block size in bytes of large-pool class i. Sizes
// follow a pure doubling progression starting at one word.
func (g Geometry) LargeClassSize(i int) int {
	return g.WordSize << uint(i)
}

// SmallClassSizes returns every small-pool bucket size in ascending order.
// The result depends only on the geometry, so histograms can be laid out
// without a live allocator handle.
func (g Geometry) SmallClassSizes() []int {
	sizes := make([]int, g.SmallClassCount)
	for i := range sizes {
		sizes[i] = g.SmallClassSize(i)
	}
	return sizes
}

// LargeClassSizes returns every large-pool bucket size in ascending order.
func (g Geometry) LargeClassSizes() []int {
	sizes := make([]int, g.LargeClassCount)
	for i := range sizes {
		sizes[i] = g.LargeClassSize(i)
	}
	return sizes
}
