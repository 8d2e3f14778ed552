package heap

import (
	"sync"

	cerrors "github.com/cockroachdb/errors"

	"github.com/memscope/memscope"
	"github.com/memscope/memscope/internal/mapfile"
	"github.com/memscope/memscope/region"
)

// Heap is a live handle on a named heap region. Handles are owned resources:
// every successful StartUsing must be paired with exactly one StopUsing, and
// handles must not be copied.
type Heap struct {
	name     string
	registry *Registry
	mapping  mapfile.Mapping
	lock     readLocker
	refs     int

	// The handle is shared by every user of the name, so the file lock behind
	// the read transaction is reader-counted: taken when the first transaction
	// opens, dropped when the last one ends.
	xnMu      sync.Mutex
	xnReaders int
}

type readLocker interface {
	RLock() error
	Unlock() error
}

// Name returns the heap name this handle was attached with.
func (h *Heap) Name() string { return h.name }

// BeginXn opens a read transaction on the region: a shared advisory lock that
// holds off writers (which take the lock exclusively around mutations) for the
// duration of the bracketed read. Transactions from different users of the
// shared handle may overlap; the lock stays held until every one of them has
// ended. Blocks until the lock is granted; failures wrap
// memscope.TransactionError.
func (h *Heap) BeginXn() error {
	h.xnMu.Lock()
	defer h.xnMu.Unlock()

	if h.xnReaders == 0 {
		if err := h.lock.RLock(); err != nil {
			return cerrors.Wrapf(memscope.TransactionError, "could not begin read transaction on heap %q: %s", h.name, err.Error())
		}
	}
	h.xnReaders++
	return nil
}

// EndXn closes one read transaction opened by BeginXn. The advisory lock is
// released only when the last open transaction ends.
func (h *Heap) EndXn() error {
	h.xnMu.Lock()
	defer h.xnMu.Unlock()

	if h.xnReaders == 0 {
		return cerrors.Wrapf(memscope.TransactionError, "heap %q has no open read transaction", h.name)
	}
	if h.xnReaders == 1 {
		if err := h.lock.Unlock(); err != nil {
			return cerrors.Wrapf(memscope.TransactionError, "could not end read transaction on heap %q: %s", h.name, err.Error())
		}
	}
	h.xnReaders--
	return nil
}

// Usage decodes the region's bookkeeping counters into a usage summary. The
// read itself takes no lock; callers that need a point-in-time snapshot
// bracket the call between BeginXn and EndXn. Corrupt bookkeeping wraps
// memscope.SnapshotError and yields no partial summary.
func (h *Heap) Usage() (*memscope.UsageSummary, error) {
	return region.ReadSummary(h.mapping.Bytes(), h.registry.geo)
}

// StopUsing releases the handle. The region mapping is torn down once the last
// handle on this name is released.
func (h *Heap) StopUsing() error {
	return h.registry.release(h)
}
