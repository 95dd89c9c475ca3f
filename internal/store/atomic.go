package store

import (
	"os"
	"path/filepath"

	"github.com/redadsync/redadsync/internal/errors"
)

// WriteFileAtomic replaces path with data through a temp file in the same
// directory and a rename, so readers never observe a partial document.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &errors.ErrDirectoryCreate{Path: dir, Err: err}
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &errors.ErrFileWrite{Path: path, Err: err}
	}
	committed = true
	return nil
}

// readDocument returns nil data for a missing file.
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &errors.ErrFileRead{Path: path, Err: err}
	}
	return data, nil
}
