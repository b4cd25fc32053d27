// Package identity verifies sign-in tokens and yields the identity whose remote
// namespace the collection syncs with.
package identity

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/pauljones0/harvester/internal/models"
)

var ErrEmptyToken = errors.New("empty sign-in token")

type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Verifier turns a sign-in token into an Identity. Failures are *models.AuthError.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// tokenValidator is the subset of *idtoken.Validator used here.
type tokenValidator interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// GoogleVerifier validates Google-issued ID tokens for one OAuth client.
type GoogleVerifier struct {
	validator tokenValidator
	audience  string
}

func NewGoogleVerifier(ctx context.Context, audience string, opts ...option.ClientOption) (*GoogleVerifier, error) {
	if audience == "" {
		return nil, errors.New("google verifier requires an OAuth client id")
	}
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("idtoken.NewValidator: %w", err)
	}
	return &GoogleVerifier{validator: v, audience: audience}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, &models.AuthError{Err: ErrEmptyToken}
	}
	payload, err := g.validator.Validate(ctx, token, g.audience)
	if err != nil {
		return Identity{}, &models.AuthError{Err: err}
	}
	if payload.Subject == "" {
		return Identity{}, &models.AuthError{Err: errors.New("token has no subject")}
	}

	id := Identity{UID: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id, nil
}

// Unavailable rejects every sign-in. It stands in when sync is not configured.
type Unavailable struct{}

func (Unavailable) Verify(context.Context, string) (Identity, error) {
	return Identity{}, &models.AuthError{Err: models.ErrSignInUnavailable}
}
