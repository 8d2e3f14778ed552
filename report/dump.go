package report

import (
	"github.com/memscope/memscope/heap"
	"github.com/memscope/memscope/partition"
)

// Service binds the two allocator attachment layers a query needs. The zero
// value is not usable; build one with NewService or use the package-level dump
// functions, which resolve the process-wide defaults lazily.
type Service struct {
	Heaps      *heap.Registry
	Partitions *partition.Manager
}

// NewService builds a Service over an explicit registry and manager. Either
// may be nil if the corresponding query kind is never issued.
func NewService(heaps *heap.Registry, partitions *partition.Manager) Service {
	return Service{Heaps: heaps, Partitions: partitions}
}

// DumpHeap attaches to the named heap region, reads its usage counters inside
// a read transaction, and returns the encoded report. The handle is released
// before returning on every path, error paths included. Failures carry the
// heap name and wrap one of memscope.AttachError, memscope.TransactionError
// or memscope.SnapshotError; on any failure no report is returned.
func (s Service) DumpHeap(name string) (*HeapReport, error) {
	h, err := s.Heaps.StartUsing(name)
	if err != nil {
		return nil, err
	}
	defer h.StopUsing()

	if err := h.BeginXn(); err != nil {
		return nil, err
	}
	sum, usageErr := h.Usage()
	if err := h.EndXn(); err != nil {
		return nil, err
	}
	if usageErr != nil {
		return nil, usageErr
	}

	return newHeapReport(sum), nil
}

// DumpPartition opens the partition named name in the segment addressed by
// key, creating the segment with the given size when absent, reads its usage
// counters and returns the encoded report. The read is best-effort: no
// transaction brackets it. The partition handle stays attached afterwards
// (see partition.Manager.Open). Failures carry the key and wrap
// memscope.InitError, memscope.AttachError or memscope.SnapshotError.
func (s Service) DumpPartition(key int, size int64, name string) (*PartitionReport, error) {
	p, _, err := s.Partitions.Open(key, size, name)
	if err != nil {
		return nil, err
	}

	sum, err := p.Usage()
	if err != nil {
		return nil, err
	}

	return newPartitionReport(sum), nil
}

// DumpHeap runs a heap usage query against the process-wide default registry.
func DumpHeap(name string) (*HeapReport, error) {
	heaps, err := heap.Default()
	if err != nil {
		return nil, err
	}
	return Service{Heaps: heaps}.DumpHeap(name)
}

// DumpPartition runs a partition usage query against the process-wide default
// manager.
func DumpPartition(key int, size int64, name string) (*PartitionReport, error) {
	partitions, err := partition.Default()
	if err != nil {
		return nil, err
	}
	return Service{Partitions: partitions}.DumpPartition(key, size, name)
}
