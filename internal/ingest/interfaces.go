package ingest

import (
	"context"

	"github.com/pauljones0/harvester/internal/models"
)

// Sink receives the posts of every successful ingestion. The application
// context implements it by applying the configured replace/merge policy and
// queueing the remote push when a session is active.
type Sink interface {
	Accept(ctx context.Context, source string, posts []models.Post) error
}

// Normalizer abstracts the format normalizer for the front door.
type Normalizer interface {
	NormalizeJSON(source string, data []byte) ([]models.Post, error)
	NormalizePaste(source, text string) ([]models.Post, error)
}
