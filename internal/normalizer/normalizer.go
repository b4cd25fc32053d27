// Package normalizer turns heterogeneous tweet JSON (archive exports, API
// responses, single objects, pasted browser variables) into canonical posts.
//
// Normalization is all-or-nothing per document: any failure yields a single
// *models.ParseError and no posts.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pauljones0/harvester/internal/models"
)

var (
	ErrEmptyDocument = errors.New("document is empty")
	ErrMalformedJSON = errors.New("malformed JSON sequence")
	ErrTrailingData  = errors.New("unexpected data after JSON value")
	ErrNoItemList    = errors.New("no extractable item list")
	ErrNonObjectItem = errors.New("item is not a JSON object")
)

// assignmentPrefix matches the "window.YTD.tweet.part0 = " head of archive .js files.
var assignmentPrefix = regexp.MustCompile(`^[a-zA-Z0-9_.$]+\s*=\s*`)

type Normalizer struct {
	clock Clock
	ids   IDGenerator
}

type Option func(*Normalizer)

func WithClock(c Clock) Option {
	return func(n *Normalizer) { n.clock = c }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(n *Normalizer) { n.ids = g }
}

// New returns a Normalizer using the real clock and random synthetic ids unless overridden.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{clock: RealClock{}, ids: RandomIDs{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// StripAssignment removes a leading variable assignment and a trailing semicolon
// from pasted text so the remainder can be parsed as JSON.
func StripAssignment(text string) string {
	text = strings.TrimSpace(text)
	text = assignmentPrefix.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	return strings.TrimSuffix(text, ";")
}

// Decode parses exactly one JSON value, keeping numbers as json.Number so
// 64-bit ids survive intact.
func Decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrTrailingData
	}
	return raw, nil
}

// NormalizeJSON decodes and normalizes a file body.
func (n *Normalizer) NormalizeJSON(source string, data []byte) ([]models.Post, error) {
	raw, err := Decode(data)
	if err != nil {
		return nil, &models.ParseError{Source: source, Err: err}
	}
	return n.normalize(source, raw)
}

// NormalizePaste strips an assignment prefix from pasted text, then behaves like NormalizeJSON.
func (n *Normalizer) NormalizePaste(source, text string) ([]models.Post, error) {
	return n.NormalizeJSON(source, []byte(StripAssignment(text)))
}

// Normalize converts an already-decoded document.
func (n *Normalizer) Normalize(raw any) ([]models.Post, error) {
	return n.normalize("", raw)
}

func (n *Normalizer) normalize(source string, raw any) ([]models.Post, error) {
	shape, items := Classify(raw)
	if shape == ShapeUnknown {
		return nil, &models.ParseError{Source: source, Err: ErrNoItemList}
	}

	posts := make([]models.Post, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, &models.ParseError{
				Source: source,
				Err:    fmt.Errorf("%w: item %d in %s document", ErrNonObjectItem, i, shape),
			}
		}
		p := n.extract(m)
		if !models.IsValid(p) {
			continue
		}
		posts = append(posts, p)
	}
	return dedupe(posts), nil
}

// extract builds one post. Archive exports wrap each item under "tweet".
func (n *Normalizer) extract(m map[string]any) models.Post {
	if inner, ok := m["tweet"].(map[string]any); ok {
		m = inner
	}

	rawCreated := m["created_at"]
	if rawCreated == nil || rawCreated == "" {
		rawCreated = m["createdAt"]
	}

	p := models.Post{
		Text:          firstString(m, "full_text", "text"),
		Author:        author(m),
		Media:         media(m),
		FavoriteCount: firstCount(m, "favorite_count", "favoriteCount"),
		RepostCount:   firstCount(m, "retweet_count", "repostCount"),
	}
	if p.Text == "" {
		p.Text = FallbackText
	}
	if starred, ok := m["isStarred"].(bool); ok {
		p.IsStarred = starred
	}

	if t, ok := parseDate(rawCreated); ok {
		p.CreatedAt = t
	} else {
		p.CreatedAt = n.clock.Now().UTC()
	}

	p.ID = idString(m["id_str"])
	if p.ID == "" {
		p.ID = idString(m["id"])
	}
	if p.ID == "" {
		p.ID = n.ids.SyntheticID(IDSeed{
			CreatedAt: seedString(rawCreated),
			Handle:    p.Author.Handle,
			Text:      p.Text,
		})
	}
	return p
}

func seedString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// dedupe collapses id collisions. The last occurrence's content wins but keeps
// the position of the first.
func dedupe(posts []models.Post) []models.Post {
	index := make(map[string]int, len(posts))
	out := posts[:0]
	for _, p := range posts {
		if i, seen := index[p.ID]; seen {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}
