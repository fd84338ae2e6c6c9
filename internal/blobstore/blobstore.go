package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Store writes evidence images under a root directory. Names follow
// {employee}_{tag}_{YYYYMMDD_HHMMSS}.jpg.
type Store struct {
	fs   afero.Fs
	root string
}

func New(fs afero.Fs, root string) (*Store, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", root, err)
	}
	return &Store{fs: fs, root: root}, nil
}

// NewOS returns a Store backed by the local filesystem.
func NewOS(root string) (*Store, error) {
	return New(afero.NewOsFs(), root)
}

// Save writes data and returns the stored path.
func (s *Store) Save(employeeID, tag string, at time.Time, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s_%s.jpg", employeeID, tag, at.Format("20060102_150405"))
	path := filepath.Join(s.root, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (s *Store) Open(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// Delete removes path; a missing file is not an error.
func (s *Store) Delete(path string) error {
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
