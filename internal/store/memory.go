package store

import (
	"context"
	"sync"

	"github.com/vocalsmith/api/internal/model"
)

// MemorySongStore is a map-backed SongStore for tests and local runs
// without Redis.
type MemorySongStore struct {
	mu    sync.RWMutex
	songs map[string]model.Song
}

func NewMemorySongStore() *MemorySongStore {
	return &MemorySongStore{songs: make(map[string]model.Song)}
}

func (s *MemorySongStore) Create(ctx context.Context, song *model.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[song.ID] = *song
	return nil
}

func (s *MemorySongStore) Update(ctx context.Context, song *model.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[song.ID] = *song
	return nil
}

func (s *MemorySongStore) Get(ctx context.Context, id string) (*model.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	song, ok := s.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := song
	return &out, nil
}
