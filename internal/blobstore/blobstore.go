// Package blobstore implements the key-addressed local filesystem
// store that holds uploaded audio and generated artifacts.
package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store puts, gets and deletes blobs under a root directory, keying
// each one by date and a random id so keys never collide and sort
// naturally by ingestion time.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob store root: %v", err)
	}
	return &Store{root: root}, nil
}

// GenerateKey returns a new content key of the shape
// "<prefix>/<yyyy>/<mm>/<dd>/<uuid>.<ext>", without touching disk.
func (s *Store) GenerateKey(prefix, ext string) string {
	now := time.Now().UTC()
	ext = strings.TrimPrefix(ext, ".")
	name := uuid.New().String()
	if ext != "" {
		name += "." + ext
	}
	return filepath.ToSlash(filepath.Join(prefix, now.Format("2006"), now.Format("01"), now.Format("02"), name))
}

// Put writes r to the blob named key, creating any missing parent
// directories under the store root.
func (s *Store) Put(key string, r io.Reader) (int64, error) {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create blob directory: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create blob file: %v", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return n, fmt.Errorf("failed to write blob: %v", err)
	}
	return n, nil
}

// Get opens the blob named key for reading. The caller must close it.
func (s *Store) Get(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %v", err)
	}
	return f, nil
}

// Delete removes the blob named key. Deleting a key that doesn't
// exist is not an error.
func (s *Store) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %v", err)
	}
	return nil
}

// Exists reports whether key names a blob currently on disk.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// Size returns the size in bytes of the blob named key.
func (s *Store) Size(key string) (int64, error) {
	info, err := os.Stat(s.path(key))
	if err != nil {
		return 0, fmt.Errorf("failed to stat blob: %v", err)
	}
	return info.Size(), nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}
