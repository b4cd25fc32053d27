package collection

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pauljones0/harvester/internal/models"
)

const (
	// FavoriteThreshold is the favorite count above which a post counts as a favorite without a star.
	FavoriteThreshold = 1000
	// LongFormThreshold is the text length, in characters, above which a post is long-form.
	LongFormThreshold = 200
)

type Segment string

const (
	SegmentAll       Segment = "all"
	SegmentMedia     Segment = "media"
	SegmentFavorites Segment = "favorites"
	SegmentLongForm  Segment = "long-form"
)

// Segments lists every segment in display order.
var Segments = []Segment{SegmentAll, SegmentMedia, SegmentFavorites, SegmentLongForm}

// ParseSegment accepts canonical segment names and the legacy upper-case ids
// (ALL, MEDIA, FAVORITES, THREADS). An empty string means all.
func ParseSegment(s string) (Segment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return SegmentAll, nil
	case "media":
		return SegmentMedia, nil
	case "favorites":
		return SegmentFavorites, nil
	case "long-form", "threads":
		return SegmentLongForm, nil
	default:
		return "", fmt.Errorf("unknown segment %q", s)
	}
}

// Match reports whether p belongs to segment s.
func (s Segment) Match(p models.Post) bool {
	switch s {
	case SegmentMedia:
		return models.HasMedia(p)
	case SegmentFavorites:
		return p.IsStarred || p.FavoriteCount > FavoriteThreshold
	case SegmentLongForm:
		return utf8.RuneCountInString(p.Text) > LongFormThreshold
	default:
		return true
	}
}

// Filter returns the posts matching segment, in their original order.
// The input slice is never modified.
func Filter(posts []models.Post, segment Segment) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if segment.Match(p) {
			out = append(out, p.Clone())
		}
	}
	return out
}
