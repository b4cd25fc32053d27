// Package cache persists the guest collection under a single namespaced key.
// Persistence is best-effort: callers log failures and keep going.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pauljones0/harvester/internal/models"
	"github.com/pauljones0/harvester/internal/validator"
)

// DefaultKey is the namespaced key the collection is stored under.
const DefaultKey = "harvester_tweets"

// Store saves and loads a whole collection. Load returns an empty slice, not an
// error, when nothing has been saved yet.
type Store interface {
	Save(ctx context.Context, posts []models.Post) error
	Load(ctx context.Context) ([]models.Post, error)
	Close() error
}

func encode(posts []models.Post) ([]byte, error) {
	if posts == nil {
		posts = []models.Post{}
	}
	data, err := json.Marshal(posts)
	if err != nil {
		return nil, &models.PersistenceError{Op: "encode", Err: err}
	}
	return data, nil
}

var postValidator = validator.New()

// decode parses a stored collection. Records that fail validation are skipped.
func decode(source string, data []byte) ([]models.Post, error) {
	if len(data) == 0 {
		return []models.Post{}, nil
	}
	var posts []models.Post
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, &models.PersistenceError{Op: "decode", Err: fmt.Errorf("%s: %w", source, err)}
	}
	return postValidator.ValidPosts(source, posts), nil
}
