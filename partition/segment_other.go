//go:build !linux

package partition

// probeIPC has nothing to check for file-backed segments.
func probeIPC() error {
	return nil
}

// openPlatformSegment falls back to file-backed segments on platforms without
// Sys V shared memory support in x/sys.
func openPlatformSegment(dir string, key int, size int64) (segment, bool, error) {
	return openFileSegment(dir, key, size)
}
