package normalizer

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pauljones0/harvester/internal/models"
	"github.com/pauljones0/harvester/internal/util"
)

// Fallback values for fields a source item does not provide.
const (
	FallbackText       = "Error: Content undefined"
	ArchiveDisplayName = "Archive User"
	ArchiveHandle      = "me"
	UnknownDisplayName = "Unknown User"
	UnknownHandle      = "unknown"
)

// str returns v if it is a string and "" otherwise.
func str(v any) string {
	s, _ := v.(string)
	return s
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// idString coerces a source id to its string form. Zero and empty ids are treated as absent.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		s := id.String()
		if f, err := id.Float64(); err == nil && f == 0 {
			return ""
		}
		return s
	case float64:
		if id == 0 || math.IsNaN(id) {
			return ""
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

// count coerces a source engagement counter. Missing or malformed values are zero.
func count(v any) int {
	switch c := v.(type) {
	case json.Number:
		if n, err := c.Int64(); err == nil {
			return util.ClampCount(int(n))
		}
		if f, err := c.Float64(); err == nil {
			return util.ClampCount(int(f))
		}
	case float64:
		return util.ClampCount(int(c))
	case string:
		return util.ParseCount(c)
	}
	return 0
}

func firstCount(m map[string]any, keys ...string) int {
	for _, k := range keys {
		if n := count(m[k]); n != 0 {
			return n
		}
	}
	return 0
}

// author resolves the source "user" object, then a canonical "author" object,
// then the placeholder used for a user's own archive.
func author(m map[string]any) models.Author {
	if u, ok := m["user"].(map[string]any); ok {
		return models.Author{
			DisplayName: util.FirstNonEmpty(str(u["name"]), UnknownDisplayName),
			Handle:      util.FirstNonEmpty(str(u["screen_name"]), UnknownHandle),
			AvatarURL:   firstString(u, "profile_image_url_https", "profile_image_url"),
		}
	}
	if a, ok := m["author"].(map[string]any); ok {
		return models.Author{
			DisplayName: util.FirstNonEmpty(str(a["displayName"]), UnknownDisplayName),
			Handle:      util.FirstNonEmpty(str(a["handle"]), UnknownHandle),
			AvatarURL:   str(a["avatarUrl"]),
		}
	}
	return models.Author{DisplayName: ArchiveDisplayName, Handle: ArchiveHandle}
}

// media resolves extended_entities.media, then a canonical "media" list.
// Entries without a usable URL are dropped.
func media(m map[string]any) []models.Media {
	var raw []any
	if ee, ok := m["extended_entities"].(map[string]any); ok {
		raw, _ = ee["media"].([]any)
	}
	if raw == nil {
		raw, _ = m["media"].([]any)
	}
	if len(raw) == 0 {
		return nil
	}

	out := make([]models.Media, 0, len(raw))
	for _, r := range raw {
		entry, ok := r.(map[string]any)
		if !ok {
			continue
		}
		url := util.NormalizeMediaURL(firstString(entry, "media_url_https", "media_url", "url"))
		if url == "" {
			continue
		}
		out = append(out, models.Media{
			Kind: models.ParseMediaKind(firstString(entry, "type", "kind")),
			URL:  url,
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
