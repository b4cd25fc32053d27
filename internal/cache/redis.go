package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pauljones0/harvester/internal/models"
)

// RedisStore keeps the serialized collection under one Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, &models.PersistenceError{Op: "open", Err: fmt.Errorf("parse redis url: %w", err)}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, &models.PersistenceError{Op: "open", Err: fmt.Errorf("connect to redis: %w", err)}
	}

	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Save(ctx context.Context, posts []models.Post) error {
	data, err := encode(posts)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return &models.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) ([]models.Post, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.Post{}, nil
	}
	if err != nil {
		return nil, &models.PersistenceError{Op: "load", Err: err}
	}
	return decode("redis:"+s.key, data)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
