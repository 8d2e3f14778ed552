// Package heap attaches to named, persistently backed heap allocator regions
// and reads their usage counters. Regions live as memory-mapped files under a
// registry directory; other processes allocate and free in them concurrently,
// so consistent reads are bracketed in a read transaction backed by an
// advisory file lock.
package heap

import (
	"os"
	"path/filepath"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/memscope/memscope"
	"github.com/memscope/memscope/internal/mapfile"
	"github.com/memscope/memscope/region"
)

// Options configures a Registry. The zero value attaches under the default
// directory with the default geometry.
type Options struct {
	// Directory holds the region files, one per heap name. Defaults to a
	// memscope directory under the system temporary directory.
	Directory string
	// Geometry of the regions this registry attaches to. Defaults to
	// memscope.DefaultGeometry.
	Geometry memscope.Geometry
}

// Registry resolves heap names to live handles. Handles are shared and
// reference counted: attaching the same name twice returns the same mapping,
// and the mapping is torn down when the last user stops using it.
type Registry struct {
	mu    sync.Mutex
	dir   string
	geo   memscope.Geometry
	heaps *swiss.Map[string, *Heap]
}

// NewRegistry builds a registry rooted at opts.Directory, creating the
// directory if needed. Failures wrap memscope.InitError.
func NewRegistry(opts Options) (*Registry, error) {
	geo := opts.Geometry
	if geo == (memscope.Geometry{}) {
		geo = memscope.DefaultGeometry()
	}
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	dir := opts.Directory
	if dir == "" {
		dir = DefaultDirectory()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, cerrors.Wrapf(memscope.InitError, "could not prepare heap directory %s: %s", dir, err.Error())
	}
	return &Registry{
		dir:   dir,
		geo:   geo,
		heaps: swiss.NewMap[string, *Heap](16),
	}, nil
}

// DefaultDirectory returns the directory the default registry keeps region
// files in.
func DefaultDirectory() string {
	return filepath.Join(os.TempDir(), "memscope")
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the process-wide registry, building it on first use. The
// construction runs exactly once however many queries race here; later calls
// are cheap.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = NewRegistry(Options{})
	})
	return defaultRegistry, defaultErr
}

// Geometry returns the geometry this registry expects its regions to have.
func (r *Registry) Geometry() memscope.Geometry {
	return r.geo
}

// CreateConfig sizes a new heap region. HeapBytes is the accounted heap span;
// the bookkeeping header is stored in front of it and not counted. The pool
// sizes are carved out of the heap at creation and start entirely free; both
// must be whole words.
type CreateConfig struct {
	HeapBytes      int
	SmallPoolBytes int
	LargePoolBytes int
}

// Create builds and formats a new named region. It fails if the name is
// already in use.
func (r *Registry) Create(name string, cfg CreateConfig) error {
	if name == "" {
		return errors.New("heap name must not be empty")
	}
	path := r.regionPath(name)
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("a heap region named %q already exists", name)
	}

	headerSize := region.HeaderSize(r.geo)
	m, err := mapfile.Open(path, int64(headerSize+cfg.HeapBytes))
	if err != nil {
		return errors.Errorf("could not create heap region %q: %s", name, err.Error())
	}
	err = region.Format(m.Bytes(), r.geo, region.FormatConfig{
		RegionBytes:    cfg.HeapBytes,
		SmallPoolBytes: cfg.SmallPoolBytes,
		LargePoolBytes: cfg.LargePoolBytes,
	})
	closeErr := m.Close()
	if err != nil {
		// Leave no half-formatted region behind: the name stays free for a
		// corrected retry, and StartUsing cannot attach garbage.
		_ = os.Remove(path)
		return err
	}
	return closeErr
}

// StartUsing resolves a heap name to a live handle, mapping the region on
// first use. The handle must be released with StopUsing on every path once
// this succeeds; nothing is mutated, but the mapping is held until then.
// A missing or unmappable region wraps memscope.AttachError.
func (r *Registry) StartUsing(name string) (*Heap, error) {
	if name == "" {
		return nil, cerrors.Wrapf(memscope.AttachError, "heap name must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.heaps.Get(name); ok {
		h.refs++
		return h, nil
	}

	path := r.regionPath(name)
	if _, err := os.Stat(path); err != nil {
		return nil, cerrors.Wrapf(memscope.AttachError, "no heap region named %q", name)
	}
	m, err := mapfile.Open(path, 0)
	if err != nil {
		return nil, cerrors.Wrapf(memscope.AttachError, "could not map heap region %q: %s", name, err.Error())
	}

	h := &Heap{
		name:     name,
		registry: r,
		mapping:  m,
		lock:     flock.New(path),
		refs:     1,
	}
	r.heaps.Put(name, h)
	return h, nil
}

func (r *Registry) regionPath(name string) string {
	return filepath.Join(r.dir, name+".mem")
}

func (r *Registry) release(h *Heap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h.refs <= 0 {
		return errors.Errorf("heap %q was released more times than it was attached", h.name)
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	r.heaps.Delete(h.name)
	return h.mapping.Close()
}
