package models

import (
	"errors"
	"slices"
	"time"
)

// ErrPostNotFound is returned when an operation names a post id that is not in the collection.
var ErrPostNotFound = errors.New("post not found")

// ErrSignInUnavailable is returned when no identity verifier or remote store is configured.
var ErrSignInUnavailable = errors.New("sign-in unavailable: remote sync is not configured")

// FieldIsStarred is the only field that may be partially updated on a remote record.
const FieldIsStarred = "isStarred"

type MediaKind string

const (
	MediaPhoto       MediaKind = "photo"
	MediaVideo       MediaKind = "video"
	MediaAnimatedGIF MediaKind = "animated_gif"
)

// ParseMediaKind maps a raw media type onto a known kind. Unknown or empty values are photos.
func ParseMediaKind(s string) MediaKind {
	switch MediaKind(s) {
	case MediaVideo:
		return MediaVideo
	case MediaAnimatedGIF:
		return MediaAnimatedGIF
	default:
		return MediaPhoto
	}
}

type Media struct {
	Kind MediaKind `json:"kind" firestore:"kind" validate:"required,oneof=photo video animated_gif"`
	URL  string    `json:"url" firestore:"url" validate:"required"`
}

type Author struct {
	DisplayName string `json:"displayName" firestore:"displayName"`
	Handle      string `json:"handle" firestore:"handle"`
	AvatarURL   string `json:"avatarUrl" firestore:"avatarUrl"`
}

// Post is the canonical record every ingested format is normalized into.
type Post struct {
	ID            string    `json:"id" firestore:"id" validate:"required"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt" validate:"required"`
	Text          string    `json:"text" firestore:"text" validate:"required"`
	Author        Author    `json:"author" firestore:"author"`
	Media         []Media   `json:"media" firestore:"media" validate:"dive"`
	FavoriteCount int       `json:"favoriteCount" firestore:"favoriteCount" validate:"gte=0"`
	RepostCount   int       `json:"repostCount" firestore:"repostCount" validate:"gte=0"`
	IsStarred     bool      `json:"isStarred" firestore:"isStarred"`
}

// IsValid reports whether a record is worth keeping. Only posts with text survive.
func IsValid(p Post) bool {
	return p.Text != ""
}

func HasMedia(p Post) bool {
	return len(p.Media) > 0
}

// Clone returns a copy that shares no slices with p.
func (p Post) Clone() Post {
	p.Media = slices.Clone(p.Media)
	return p
}

// ClonePosts deep-copies a slice of posts.
func ClonePosts(posts []Post) []Post {
	if posts == nil {
		return nil
	}
	out := make([]Post, len(posts))
	for i := range posts {
		out[i] = posts[i].Clone()
	}
	return out
}

// SortByRecency orders posts newest first. Equal timestamps keep their input order.
func SortByRecency(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
