package validator

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/harvester/internal/models"
)

// Validator is a wrapper around the validator library.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidPosts returns the posts that pass struct validation, in order.
// Rejected records are logged with the given source and dropped.
func (v *Validator) ValidPosts(source string, posts []models.Post) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if err := v.ValidateStruct(p); err != nil {
			slog.Warn("Dropping invalid post", "source", source, "id", p.ID, "error", err)
			continue
		}
		out = append(out, p)
	}
	return out
}
