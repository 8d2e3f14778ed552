// Package partition attaches to keyed shared-memory partition allocators and
// reads their usage counters. A partition lives in a shared segment addressed
// by an integer key; the segment is created on first open and then shared by
// every process that knows the key. Unlike the heap variant, usage reads here
// take no transaction: reports are best-effort snapshots that can be slightly
// stale against concurrent writers.
package partition

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/memscope/memscope"
	"github.com/memscope/memscope/region"
)

// Backing selects how segments are realized.
type Backing int

const (
	// BackingAuto uses Sys V shared memory where the platform has it and
	// falls back to files under the manager directory elsewhere.
	BackingAuto Backing = iota
	// BackingFile always uses files under the manager directory. Useful for
	// tests and for machines with restricted IPC namespaces.
	BackingFile
)

const (
	labelMagic uint32 = 0x4D535750

	// labelSize bytes at the front of every segment record which partition
	// lives in it. The remainder of the segment is the allocator region.
	labelSize   = 64
	maxNameSize = labelSize - 8
)

// Options configures a Manager. The zero value uses Sys V shared memory with
// the default geometry.
type Options struct {
	// Directory holds file-backed segments. Defaults to the same directory the
	// heap registry uses.
	Directory string
	Geometry  memscope.Geometry
	Backing   Backing
}

// Manager resolves partition keys to live handles. Attached partitions are
// cached for the life of the process: repeated opens of the same key return
// the same handle, and nothing detaches them implicitly (see Open).
type Manager struct {
	mu      sync.Mutex
	dir     string
	geo     memscope.Geometry
	backing Backing

	ipcOnce sync.Once
	ipcErr  error

	parts     *swiss.Map[int, *Partition]
	nextIndex int
}

// NewManager builds a manager. Failures wrap memscope.InitError.
func NewManager(opts Options) (*Manager, error) {
	geo := opts.Geometry
	if geo == (memscope.Geometry{}) {
		geo = memscope.DefaultGeometry()
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	dir := opts.Directory
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "memscope")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, cerrors.Wrapf(memscope.InitError, "could not prepare segment directory %s: %s", dir, err.Error())
	}
	return &Manager{
		dir:     dir,
		geo:     geo,
		backing: opts.Backing,
		parts:   swiss.NewMap[int, *Partition](16),
	}, nil
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
	defaultErr     error
)

// Default returns the process-wide manager, building it on first use.
func Default() (*Manager, error) {
	defaultOnce.Do(func() {
		defaultManager, defaultErr = NewManager(Options{})
	})
	return defaultManager, defaultErr
}

// Geometry returns the geometry this manager expects its partitions to have.
func (m *Manager) Geometry() memscope.Geometry {
	return m.geo
}

// ensureIPC brings up the IPC subsystem exactly once per manager. Failures are
// fatal and sticky: every later Open reports the same memscope.InitError
// without retrying.
func (m *Manager) ensureIPC() error {
	m.ipcOnce.Do(func() {
		if m.backing == BackingFile {
			return
		}
		if err := probeIPC(); err != nil {
			m.ipcErr = cerrors.Wrapf(memscope.InitError, "shared memory subsystem unavailable: %s", err.Error())
		}
	})
	return m.ipcErr
}

// Open attaches to the partition named name in the segment addressed by key,
// creating and formatting the segment when it does not exist yet and size is
// positive. Creation is a persistent, system-level side effect even though the
// usage query itself is read-only. The returned index is the slot the manager
// assigned this partition; callers only need it to confirm resolution.
//
// Handles stay attached for the life of the process: Open caches them per key
// and usage queries never detach them. Callers that really want to tear a
// partition down call Detach explicitly.
func (m *Manager) Open(key int, size int64, name string) (*Partition, int, error) {
	if name == "" {
		return nil, -1, cerrors.Wrapf(memscope.AttachError, "partition name must not be empty")
	}
	if len(name) > maxNameSize {
		return nil, -1, cerrors.Wrapf(memscope.AttachError, "partition name %q is longer than %d bytes", name, maxNameSize)
	}
	if err := m.ensureIPC(); err != nil {
		return nil, -1, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.parts.Get(key); ok {
		if p.name != name {
			return nil, -1, cerrors.Wrapf(memscope.AttachError, "segment with key %d holds partition %q, not %q", key, p.name, name)
		}
		return p, p.index, nil
	}

	minSize := int64(labelSize + region.HeaderSize(m.geo))
	if size != 0 && size < minSize {
		return nil, -1, cerrors.Wrapf(memscope.AttachError, "segment size %d for key %d is below the %d-byte bookkeeping minimum", size, key, minSize)
	}

	seg, created, err := m.openSegment(key, size)
	if err != nil {
		return nil, -1, cerrors.Wrapf(memscope.AttachError, "can't attach to partition with key %d: %s", key, err.Error())
	}

	data := seg.Bytes()
	if created {
		if err := writeLabel(data, name); err != nil {
			seg.Detach()
			return nil, -1, err
		}
		err := region.Format(data[labelSize:], m.geo, region.FormatConfig{
			RegionBytes:   len(data),
			OverheadBytes: labelSize + region.HeaderSize(m.geo),
		})
		if err != nil {
			seg.Detach()
			return nil, -1, err
		}
	} else {
		stored, err := readLabel(data)
		if err != nil {
			seg.Detach()
			return nil, -1, cerrors.Wrapf(memscope.AttachError, "segment with key %d: %s", key, err.Error())
		}
		if stored != name {
			seg.Detach()
			return nil, -1, cerrors.Wrapf(memscope.AttachError, "segment with key %d holds partition %q, not %q", key, stored, name)
		}
	}

	p := &Partition{
		key:   key,
		name:  name,
		index: m.nextIndex,
		geo:   m.geo,
		seg:   seg,
		owner: m,
	}
	m.nextIndex++
	m.parts.Put(key, p)
	return p, p.index, nil
}

func (m *Manager) openSegment(key int, size int64) (segment, bool, error) {
	if m.backing == BackingFile {
		return openFileSegment(m.dir, key, size)
	}
	return openPlatformSegment(m.dir, key, size)
}

func (m *Manager) forget(p *Partition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.parts.Get(p.key); ok && cached == p {
		m.parts.Delete(p.key)
	}
}

func writeLabel(data []byte, name string) error {
	if len(data) < labelSize {
		return errors.Errorf("segment of %d bytes cannot hold the %d-byte partition label", len(data), labelSize)
	}
	binary.LittleEndian.PutUint32(data[0:], labelMagic)
	binary.LittleEndian.PutUint16(data[4:], uint16(len(name)))
	copy(data[8:8+maxNameSize], name)
	return nil
}

func readLabel(data []byte) (string, error) {
	if len(data) < labelSize {
		return "", errors.Errorf("segment of %d bytes is too small to hold a partition label", len(data))
	}
	if got := binary.LittleEndian.Uint32(data[0:]); got != labelMagic {
		return "", errors.Errorf("bad partition label magic %#x", got)
	}
	nameLen := int(binary.LittleEndian.Uint16(data[4:]))
	if nameLen > maxNameSize {
		return "", errors.Errorf("partition label claims a %d-byte name", nameLen)
	}
	return string(data[8 : 8+nameLen]), nil
}
