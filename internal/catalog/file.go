package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/snapfresh/snapfresh/internal/refresh"
)

// FileStore reads and writes catalogs on the local filesystem.
// Saves are atomic: the catalog is serialized to a temporary file in
// the target directory and renamed over the previous output, so a
// concurrent reader never observes a partial or corrupt file.
type FileStore struct{}

// NewFileStore creates a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Load reads the catalog at path.
func (FileStore) Load(_ context.Context, path string) ([]refresh.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Save writes the full catalog to path via write-then-rename.
// On any failure the previous file at path is left intact.
func (FileStore) Save(_ context.Context, path string, entries []refresh.Entry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// The temp file must live on the same filesystem as the target for
	// the rename to be atomic.
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := Encode(tmp, entries); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp catalog: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	tmp = nil
	return nil
}
