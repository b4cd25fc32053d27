package cache

import (
	"context"
	"sync"

	"github.com/pauljones0/harvester/internal/models"
)

// MemoryStore keeps the encoded collection in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, posts []models.Post) error {
	data, err := encode(posts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()
	return decode("memory", data)
}

func (s *MemoryStore) Close() error { return nil }
