package partition

import (
	"github.com/memscope/memscope"
	"github.com/memscope/memscope/region"
)

// Partition is a live view of a partition allocator inside a shared segment.
// Handles are owned by the Manager that opened them and stay attached until
// Detach is called explicitly.
type Partition struct {
	key   int
	name  string
	index int
	geo   memscope.Geometry
	seg   segment
	owner *Manager
}

// Key returns the segment key this partition was attached with.
func (p *Partition) Key() int { return p.key }

// Name returns the partition name recorded in the segment.
func (p *Partition) Name() string { return p.name }

// ManagerIndex returns the slot the owning manager assigned this partition.
func (p *Partition) ManagerIndex() int { return p.index }

// Usage decodes the partition's bookkeeping counters into a usage summary.
// The read takes no transaction; against concurrent writers in other
// processes the result is a recently consistent, best-effort snapshot rather
// than a point-in-time guarantee. Corrupt bookkeeping wraps
// memscope.SnapshotError and yields no partial summary.
func (p *Partition) Usage() (*memscope.UsageSummary, error) {
	return region.ReadSummary(p.seg.Bytes()[labelSize:], p.geo)
}

// Detach unmaps the segment view and drops the handle from the manager cache.
// The segment itself keeps existing; another Open with the same key attaches
// to it again.
func (p *Partition) Detach() error {
	p.owner.forget(p)
	return p.seg.Detach()
}
