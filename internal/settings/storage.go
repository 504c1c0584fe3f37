package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// dirPermissions is the permission mode for the settings directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the settings document (it holds a password).
	filePermissions = 0600
)

// Storage is the byte-level collaborator behind the Store.
//
// WriteDocument must replace the whole document so a reader never observes
// a half-written one.
type Storage interface {
	ReadDocument() ([]byte, error)
	WriteDocument(data []byte) error
}

// FileStorage keeps the document in a single file on the local filesystem.
type FileStorage struct {
	path string
}

// NewFileStorage returns a FileStorage for path. Nothing is touched until first use.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the document path.
func (s *FileStorage) Path() string {
	return s.path
}

// ReadDocument returns the stored bytes, or ErrNoDocument if nothing was saved yet.
func (s *FileStorage) ReadDocument() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return data, nil
}

// WriteDocument writes data to a temporary file next to the document and
// renames it into place.
func (s *FileStorage) WriteDocument(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("%w: creating directory: %w", ErrStorageUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Write error takes precedence
		return fmt.Errorf("%w: writing: %w", ErrStorageUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Sync error takes precedence
		return fmt.Errorf("%w: syncing: %w", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing: %w", ErrStorageUnavailable, err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("%w: chmod: %w", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replacing document: %w", ErrStorageUnavailable, err)
	}

	return nil
}
