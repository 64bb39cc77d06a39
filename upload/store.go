// Package upload holds uploaded meshes on disk while they are analysed.
package upload

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store keeps uploaded files for the duration of a single request
type Store struct {
	mu sync.RWMutex
	// Path to the storage directory
	path string
	// Names of the files currently held by the store
	files map[string]struct{}
}

// NewStore creates a new store
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("upload directory is required")
	}

	// Create the directory if it doesn't exist
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create upload directory")
	}

	return &Store{
		path:  path,
		files: make(map[string]struct{}),
	}, nil
}

// Dir returns the storage directory
func (s *Store) Dir() string {
	return s.path
}

// Put writes r to a new uniquely named file and returns its path. The
// client-supplied filename is never used, only its extension.
func (s *Store) Put(r io.Reader, ext string) (string, error) {
	name := uuid.New().String() + sanitizeExt(ext)
	path := filepath.Join(s.path, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", errors.Wrap(err, "failed to create upload file")
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "failed to write upload file")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "failed to close upload file")
	}

	s.mu.Lock()
	s.files[name] = struct{}{}
	s.mu.Unlock()

	return path, nil
}

// Remove deletes a file previously returned by Put
func (s *Store) Remove(path string) error {
	name := filepath.Base(path)

	s.mu.Lock()
	delete(s.files, name)
	s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.path, name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove upload file")
	}
	return nil
}

// WithFile stores r, hands its path to fn and removes the file once fn
// returns, whatever the outcome.
func (s *Store) WithFile(r io.Reader, ext string, fn func(path string) error) (err error) {
	path, err := s.Put(r, ext)
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := s.Remove(path); rmErr != nil && err == nil {
			err = rmErr
		}
	}()

	return fn(path)
}

// Keys returns the names of the files currently stored
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of files currently stored
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Purge removes files left in the storage directory by an earlier run, e.g.
// after a crash between Put and Remove. Only names Put generates are
// touched; anything else in the directory is left alone.
func (s *Store) Purge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list upload directory")
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isUploadName(entry.Name()) {
			continue
		}
		if _, held := s.files[entry.Name()]; held {
			continue
		}
		if err := os.Remove(filepath.Join(s.path, entry.Name())); err != nil {
			return removed, errors.Wrap(err, "failed to purge upload file")
		}
		removed++
	}
	return removed, nil
}

// isUploadName reports whether name has the <uuid><ext> shape Put generates
func isUploadName(name string) bool {
	ext := filepath.Ext(name)
	if sanitizeExt(ext) != ext {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(name, ext))
	return err == nil
}

func sanitizeExt(ext string) string {
	ext = strings.ToLower(filepath.Ext("x" + ext))
	for _, r := range ext[min(1, len(ext)):] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	if len(ext) > 8 {
		return ""
	}
	return ext
}
