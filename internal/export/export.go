// Package export serializes a collection into downloadable documents.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pauljones0/harvester/internal/models"
)

type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
)

var Formats = []Format{FormatJSON, FormatMarkdown, FormatCSV}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// Filename names an export taken at now, e.g. harvester_20240510T120000Z.json.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("harvester_%s.%s", now.UTC().Format("20060102T150405Z"), f)
}

// Write serializes posts in the given format. JSON output is the canonical
// record form and can be ingested again without loss.
func Write(w io.Writer, f Format, posts []models.Post) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, posts)
	case FormatMarkdown:
		return writeMarkdown(w, posts)
	case FormatCSV:
		return writeCSV(w, posts)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// Bytes is Write into memory.
func Bytes(f Format, posts []models.Post) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, f, posts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w io.Writer, posts []models.Post) error {
	if posts == nil {
		posts = []models.Post{}
	}
	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal posts: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func writeMarkdown(w io.Writer, posts []models.Post) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Harvester Archive\n\n%d posts\n", len(posts))

	for _, p := range posts {
		star := ""
		if p.IsStarred {
			star = " ★"
		}
		fmt.Fprintf(&b, "\n---\n\n### %s (@%s)%s\n\n", p.Author.DisplayName, p.Author.Handle, star)
		fmt.Fprintf(&b, "_%s_ · id `%s`\n\n", p.CreatedAt.UTC().Format(time.RFC3339), p.ID)
		for _, line := range strings.Split(p.Text, "\n") {
			fmt.Fprintf(&b, "> %s\n", line)
		}
		for _, m := range p.Media {
			if m.Kind == models.MediaPhoto {
				fmt.Fprintf(&b, "\n![%s](%s)\n", m.Kind, m.URL)
			} else {
				fmt.Fprintf(&b, "\n[%s](%s)\n", m.Kind, m.URL)
			}
		}
		fmt.Fprintf(&b, "\n♥ %d · ↻ %d\n", p.FavoriteCount, p.RepostCount)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

var csvHeader = []string{
	"id", "created_at", "author_name", "author_handle", "text",
	"favorite_count", "repost_count", "starred", "media_urls",
}

func writeCSV(w io.Writer, posts []models.Post) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range posts {
		urls := make([]string, 0, len(p.Media))
		for _, m := range p.Media {
			urls = append(urls, m.URL)
		}
		record := []string{
			p.ID,
			p.CreatedAt.UTC().Format(time.RFC3339),
			p.Author.DisplayName,
			p.Author.Handle,
			p.Text,
			strconv.Itoa(p.FavoriteCount),
			strconv.Itoa(p.RepostCount),
			strconv.FormatBool(p.IsStarred),
			strings.Join(urls, " "),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
