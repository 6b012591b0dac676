package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Staging is a scratch directory for uploads that are still being hashed. A staged file
// either gets committed to a Storage or discarded.
type Staging struct {
	dir string
}

func NewStaging(dir string) (*Staging, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Staging{dir: dir}, nil
}

type StagedFile struct {
	f    *os.File
	size int64
}

// Create opens a new empty staged file.
func (s *Staging) Create() (*StagedFile, error) {
	f, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}
	return &StagedFile{f: f}, nil
}

func (sf *StagedFile) Write(p []byte) (int, error) {
	n, err := sf.f.Write(p)
	sf.size += int64(n)
	return n, err
}

func (sf *StagedFile) Size() int64 { return sf.size }

func (sf *StagedFile) Name() string { return sf.f.Name() }

// Reader rewinds the staged file and returns it for reading.
func (sf *StagedFile) Reader() (io.ReadSeeker, error) {
	if err := sf.f.Sync(); err != nil {
		return nil, err
	}
	if _, err := sf.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return sf.f, nil
}

// Discard closes and removes the staged file. Safe to call more than once.
func (sf *StagedFile) Discard() {
	if sf.f == nil {
		return
	}
	name := sf.f.Name()
	_ = sf.f.Close()
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove staged file", "path", name, "error", err)
	}
	sf.f = nil
}
