package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/pauljones0/harvester/internal/normalizer"
)

type CacheBackend string

const (
	CacheFile   CacheBackend = "file"
	CacheSQLite CacheBackend = "sqlite"
	CacheRedis  CacheBackend = "redis"
	CacheMemory CacheBackend = "memory"
)

type IngestMode string

const (
	// IngestReplace discards the current collection on every ingestion.
	IngestReplace IngestMode = "replace"
	// IngestMerge upserts by id, newest ingestion wins.
	IngestMerge IngestMode = "merge"
)

// MaxWritesPerCommit is Firestore's limit on writes in one batch commit.
const MaxWritesPerCommit = 500

type Config struct {
	Port     string
	LogLevel slog.Level

	ProjectID       string
	CredentialsFile string
	OAuthClientID   string
	UsersCollection string
	PostsCollection string

	SyncChunkSize        int
	SyncCommitsPerSecond float64

	CacheBackend CacheBackend
	CachePath    string
	CacheKey     string
	RedisURL     string

	IngestMode      IngestMode
	SyntheticIDMode string
}

// RemoteEnabled reports whether a Firestore project is configured for signed-in sync.
func (c *Config) RemoteEnabled() bool {
	return c.ProjectID != ""
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to read .env file", "error", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	logLevel := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		slog.Warn("GOOGLE_CLOUD_PROJECT not set, remote sync is disabled and only guest mode is available")
	}

	oauthClientID := os.Getenv("GOOGLE_OAUTH_CLIENT_ID")
	if projectID != "" && oauthClientID == "" {
		slog.Warn("GOOGLE_OAUTH_CLIENT_ID not set, sign-in will be rejected")
	}

	syncChunkSize := 450
	if v := os.Getenv("SYNC_CHUNK_SIZE"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SYNC_CHUNK_SIZE %q: %w", v, err)
		}
		if parsed < 1 || parsed > MaxWritesPerCommit {
			return nil, fmt.Errorf("invalid SYNC_CHUNK_SIZE %d: must be between 1 and %d", parsed, MaxWritesPerCommit)
		}
		syncChunkSize = parsed
	}

	commitsPerSecond := 5.0
	if v := os.Getenv("SYNC_COMMITS_PER_SECOND"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid SYNC_COMMITS_PER_SECOND %q", v)
		}
		commitsPerSecond = parsed
	}

	cacheBackend := CacheBackend(strings.ToLower(os.Getenv("LOCAL_CACHE_BACKEND")))
	switch cacheBackend {
	case "":
		cacheBackend = CacheFile
	case CacheFile, CacheSQLite, CacheRedis, CacheMemory:
	default:
		return nil, fmt.Errorf("invalid LOCAL_CACHE_BACKEND %q", cacheBackend)
	}

	cachePath := os.Getenv("LOCAL_CACHE_PATH")
	if cachePath == "" {
		cachePath = "./data/harvester.json"
		if cacheBackend == CacheSQLite {
			cachePath = "./data/harvester.db"
		}
	}

	cacheKey := os.Getenv("LOCAL_CACHE_KEY")
	if cacheKey == "" {
		cacheKey = "harvester_tweets"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	ingestMode := IngestMode(strings.ToLower(os.Getenv("INGEST_MODE")))
	switch ingestMode {
	case "":
		ingestMode = IngestReplace
	case IngestReplace, IngestMerge:
	default:
		return nil, fmt.Errorf("invalid INGEST_MODE %q", ingestMode)
	}

	idMode := strings.ToLower(os.Getenv("SYNTHETIC_ID_MODE"))
	if _, err := normalizer.ParseIDMode(idMode); err != nil {
		return nil, fmt.Errorf("invalid SYNTHETIC_ID_MODE: %w", err)
	}
	if idMode == "" {
		idMode = normalizer.IDModeRandom
	}

	return &Config{
		Port:                 port,
		LogLevel:             logLevel,
		ProjectID:            projectID,
		CredentialsFile:      os.Getenv("FIRESTORE_CREDENTIALS_FILE"),
		OAuthClientID:        oauthClientID,
		UsersCollection:      envOr("FIRESTORE_USERS_COLLECTION", "users"),
		PostsCollection:      envOr("FIRESTORE_POSTS_COLLECTION", "tweets"),
		SyncChunkSize:        syncChunkSize,
		SyncCommitsPerSecond: commitsPerSecond,
		CacheBackend:         cacheBackend,
		CachePath:            cachePath,
		CacheKey:             cacheKey,
		RedisURL:             redisURL,
		IngestMode:           ingestMode,
		SyntheticIDMode:      idMode,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
