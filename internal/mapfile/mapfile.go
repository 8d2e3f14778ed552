// Package mapfile maps region files into memory read-write, so bookkeeping
// written by other processes shows through without rereading the file.
package mapfile

import "github.com/pkg/errors"

// Mapping is an open, writable view of a region file. Close releases the view;
// the bytes must not be touched afterwards.
type Mapping interface {
	Bytes() []byte
	Close() error
}

// Open maps the file at path. When size is positive the file is created (or
// grown) to at least that many bytes first; when size is zero the file must
// already exist and be non-empty.
func Open(path string, size int64) (Mapping, error) {
	return open(path, size)
}

func errEmptyFile(path string) error {
	return errors.Errorf("mapfile: %s is empty", path)
}

func errTooLarge(path string, length int64) error {
	return errors.Errorf("mapfile: %s is too large to map (%d bytes)", path, length)
}
