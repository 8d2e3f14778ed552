//go:build unix

package mapfile

import (
	"os"

	"golang.org/x/sys/unix"
)

type unixMapping struct {
	data []byte
}

func (m *unixMapping) Bytes() []byte { return m.data }

func (m *unixMapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	err := unix.Munmap(data)
	if err == unix.EINVAL {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func open(path string, size int64) (Mapping, error) {
	flags := os.O_RDWR
	if size > 0 {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, err
	}
	defer f.Close() // safe before return; mapping keeps pages alive

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	length := info.Size()
	if size > 0 && length < size {
		if err := f.Truncate(size); err != nil {
			return nil, err
		}
		length = size
	}
	if length == 0 {
		return nil, errEmptyFile(path)
	}
	if length > int64(^uint(0)>>1) {
		return nil, errTooLarge(path, length)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &unixMapping{data: data}, nil
}
