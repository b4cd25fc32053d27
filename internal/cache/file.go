package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/pauljones0/harvester/internal/models"
)

// FileStore keeps the collection as a JSON file. Writes go through a temp file
// and rename so a crash never leaves a half-written cache.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &models.PersistenceError{Op: "open", Err: err}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(_ context.Context, posts []models.Post) error {
	data, err := encode(posts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return &models.PersistenceError{Op: "save", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &models.PersistenceError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &models.PersistenceError{Op: "save", Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &models.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		return []models.Post{}, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load", Err: err}
	}
	return decode(s.path, data)
}

func (s *FileStore) Close() error { return nil }
