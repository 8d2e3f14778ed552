//go:build !unix

package mapfile

import "os"

// fallbackMapping keeps the whole file in memory and writes it back on Close.
// Platforms without a real shared mapping lose cross-process visibility, not
// correctness within one process.
type fallbackMapping struct {
	path string
	data []byte
}

func (m *fallbackMapping) Bytes() []byte { return m.data }

func (m *fallbackMapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return os.WriteFile(m.path, data, 0o600)
}

func open(path string, size int64) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) || size <= 0 {
			return nil, err
		}
		data = nil
	}
	if int64(len(data)) < size {
		grown := make([]byte, size)
		copy(grown, data)
		data = grown
	}
	if len(data) == 0 {
		return nil, errEmptyFile(path)
	}
	return &fallbackMapping{path: path, data: data}, nil
}
