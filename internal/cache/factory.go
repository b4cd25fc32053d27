package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pauljones0/harvester/internal/config"
)

// NewStoreFromConfig builds the configured local cache backend.
func NewStoreFromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.CacheBackend {
	case config.CacheFile:
		slog.Info("Using file local cache", "path", cfg.CachePath)
		return NewFileStore(cfg.CachePath)
	case config.CacheSQLite:
		slog.Info("Using sqlite local cache", "path", cfg.CachePath, "key", cfg.CacheKey)
		return NewSQLiteStore(ctx, cfg.CachePath, cfg.CacheKey)
	case config.CacheRedis:
		slog.Info("Using redis local cache", "key", cfg.CacheKey)
		return NewRedisStore(cfg.RedisURL, cfg.CacheKey)
	case config.CacheMemory:
		slog.Warn("Using in-memory local cache, guest data will not survive restarts")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
