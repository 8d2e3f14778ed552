//go:build linux

package partition

import (
	"github.com/pkg/errors"

	"golang.org/x/sys/unix"
)

type shmSegment struct {
	id   int
	data []byte
}

func (s *shmSegment) Bytes() []byte { return s.data }

func (s *shmSegment) Detach() error {
	if s.data == nil {
		return nil
	}
	data := s.data
	s.data = nil
	return unix.SysvShmDetach(data)
}

// probeIPC verifies Sys V shared memory works in this process by creating and
// immediately removing a private scratch segment. Containers with a stripped
// IPC namespace fail here rather than on first Open.
func probeIPC() error {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, unix.Getpagesize(), unix.IPC_CREAT|0o600)
	if err != nil {
		return err
	}
	_, err = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
	return err
}

// openPlatformSegment attaches the Sys V segment addressed by key, creating it
// with the requested size when it does not exist yet.
func openPlatformSegment(dir string, key int, size int64) (segment, bool, error) {
	id, err := unix.SysvShmGet(key, 0, 0)
	created := false
	if err != nil {
		if err != unix.ENOENT {
			return nil, false, err
		}
		if size <= 0 {
			return nil, false, errors.Errorf("no segment with key %d and no size to create one with", key)
		}
		id, err = unix.SysvShmGet(key, int(size), unix.IPC_CREAT|unix.IPC_EXCL|0o600)
		if err != nil {
			return nil, false, err
		}
		created = true
	}

	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, false, err
	}
	return &shmSegment{id: id, data: data}, created, nil
}
