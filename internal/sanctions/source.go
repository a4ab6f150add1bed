package sanctions

import (
	"errors"
	"io/fs"
	"os"
)

// Source supplies the raw sanctions document bytes. The production
// source is a file on disk; tests inject in-memory fixtures.
type Source interface {
	// Load returns the document bytes. A (nil, nil) return means the
	// source does not exist yet, which the index treats as an empty
	// list rather than an error so the service stays available.
	Load() ([]byte, error)
}

// FileSource reads the consolidated sanctions JSON from a path
type FileSource struct {
	Path string
}

func (f FileSource) Load() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// MemorySource serves a fixed document; used by tests
type MemorySource struct {
	Data []byte
}

func (m MemorySource) Load() ([]byte, error) {
	return m.Data, nil
}
