package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSSink writes shards to a filesystem. Each shard is written under a
// .partial name and renamed into place on Close, so an aborted page never
// leaves a truncated shard behind.
type FSSink struct {
	Fs  afero.Fs
	Dir string
}

// NewOSSink returns a sink writing under dir on the local filesystem
func NewOSSink(dir string) *FSSink {
	return &FSSink{Fs: afero.NewOsFs(), Dir: dir}
}

// Create opens name for writing
func (s *FSSink) Create(_ context.Context, name string) (io.WriteCloser, error) {
	path := filepath.Join(s.Dir, name)
	if err := s.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := path + ".partial"
	f, err := s.Fs.Create(tmp)
	if err != nil {
		return nil, err
	}
	return &fsShard{fs: s.Fs, f: f, tmp: tmp, path: path}, nil
}

type fsShard struct {
	fs   afero.Fs
	f    afero.File
	tmp  string
	path string
}

func (s *fsShard) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

func (s *fsShard) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	return s.fs.Rename(s.tmp, s.path)
}

func (s *fsShard) Abort() error {
	s.f.Close()
	return s.fs.Remove(s.tmp)
}
