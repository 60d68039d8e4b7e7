// Package store persists song metadata. Redis backs production; an
// in-memory implementation backs tests.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vocalsmith/api/internal/model"
)

// ErrNotFound is returned when no song exists under the given ID.
var ErrNotFound = errors.New("song not found")

// SongStore persists songs keyed by ID. Updates replace the whole record.
type SongStore interface {
	Create(ctx context.Context, song *model.Song) error
	Get(ctx context.Context, id string) (*model.Song, error)
	Update(ctx context.Context, song *model.Song) error
}

// RedisSongStore stores songs as JSON blobs under song:<id>. No TTL: songs
// live until explicitly deleted.
type RedisSongStore struct {
	rdb *redis.Client
}

func NewRedisSongStore(rdb *redis.Client) *RedisSongStore {
	return &RedisSongStore{rdb: rdb}
}

func songKey(id string) string {
	return fmt.Sprintf("song:%s", id)
}

func (s *RedisSongStore) Create(ctx context.Context, song *model.Song) error {
	return s.save(ctx, song)
}

func (s *RedisSongStore) Update(ctx context.Context, song *model.Song) error {
	return s.save(ctx, song)
}

func (s *RedisSongStore) save(ctx context.Context, song *model.Song) error {
	data, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("failed to marshal song: %w", err)
	}
	if err := s.rdb.Set(ctx, songKey(song.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}
	return nil
}

func (s *RedisSongStore) Get(ctx context.Context, id string) (*model.Song, error) {
	data, err := s.rdb.Get(ctx, songKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load song: %w", err)
	}
	var song model.Song
	if err := json.Unmarshal(data, &song); err != nil {
		return nil, fmt.Errorf("failed to unmarshal song: %w", err)
	}
	return &song, nil
}
