package partition

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/memscope/memscope/internal/mapfile"
)

// segment is an attached shared-memory view. Detach releases this process's
// view without destroying the segment.
type segment interface {
	Bytes() []byte
	Detach() error
}

type fileSegment struct {
	mapping mapfile.Mapping
}

func (s *fileSegment) Bytes() []byte { return s.mapping.Bytes() }

func (s *fileSegment) Detach() error { return s.mapping.Close() }

// openFileSegment realizes a keyed segment as a mapped file under dir. The
// file plays the role the kernel segment plays elsewhere: it outlives the
// process and is found again by key.
func openFileSegment(dir string, key int, size int64) (segment, bool, error) {
	path := filepath.Join(dir, "wm-"+strconv.Itoa(key)+".seg")

	created := false
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, false, err
		}
		if size <= 0 {
			return nil, false, errors.Errorf("no segment with key %d and no size to create one with", key)
		}
		created = true
	}

	var mapSize int64
	if created {
		mapSize = size
	}
	m, err := mapfile.Open(path, mapSize)
	if err != nil {
		return nil, false, err
	}
	return &fileSegment{mapping: m}, created, nil
}
