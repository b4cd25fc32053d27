// Package ingest is the front door for raw archive input: uploaded files,
// pasted text and the built-in sample set all pass through the normalizer
// here before reaching the collection.
package ingest

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pauljones0/harvester/internal/models"
)

// MaxFileSize bounds a single uploaded document.
const MaxFileSize = 64 << 20

const (
	SourcePaste  = "paste"
	SourceSample = "sample"
)

var (
	ErrFileTooLarge  = fmt.Errorf("file exceeds %d bytes", MaxFileSize)
	ErrNothingStaged = errors.New("staging buffer is empty")
)

//go:embed samples.json
var sampleDocument []byte

type Service struct {
	normalizer Normalizer
	sink       Sink
	logger     *slog.Logger

	mu     sync.Mutex
	staged string
}

func New(n Normalizer, sink Sink, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{normalizer: n, sink: sink, logger: logger}
}

// IngestFile reads one uploaded document and hands its posts to the sink.
// Archive ".js" files are treated like pasted text so their variable
// assignment head is stripped.
func (s *Service) IngestFile(ctx context.Context, name string, r io.Reader) (int, error) {
	source := name
	if source == "" {
		source = "upload"
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return 0, &models.ParseError{Source: source, Err: fmt.Errorf("read: %w", err)}
	}
	if len(data) > MaxFileSize {
		return 0, &models.ParseError{Source: source, Err: ErrFileTooLarge}
	}

	var posts []models.Post
	if strings.EqualFold(filepath.Ext(name), ".js") {
		posts, err = s.normalizer.NormalizePaste(source, string(data))
	} else {
		posts, err = s.normalizer.NormalizeJSON(source, data)
	}
	if err != nil {
		s.logger.Warn("Rejected uploaded document", "source", source, "bytes", len(data), "error", err)
		return 0, err
	}
	return s.deliver(ctx, source, posts)
}

// Stage replaces the paste staging buffer.
func (s *Service) Stage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = text
}

func (s *Service) Staged() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staged
}

// IngestPaste normalizes the staging buffer. The buffer is cleared only after
// the posts were accepted, so a failed paste can be corrected and retried.
func (s *Service) IngestPaste(ctx context.Context) (int, error) {
	text := s.Staged()
	if strings.TrimSpace(text) == "" {
		return 0, &models.ParseError{Source: SourcePaste, Err: ErrNothingStaged}
	}

	posts, err := s.normalizer.NormalizePaste(SourcePaste, text)
	if err != nil {
		s.logger.Warn("Rejected pasted text", "bytes", len(text), "error", err)
		return 0, err
	}
	n, err := s.deliver(ctx, SourcePaste, posts)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	// A newer paste staged while this one was in flight is kept.
	if s.staged == text {
		s.staged = ""
	}
	s.mu.Unlock()
	return n, nil
}

// LoadSample ingests the built-in demonstration posts.
func (s *Service) LoadSample(ctx context.Context) (int, error) {
	posts, err := s.normalizer.NormalizeJSON(SourceSample, sampleDocument)
	if err != nil {
		return 0, fmt.Errorf("sample set: %w", err)
	}
	return s.deliver(ctx, SourceSample, posts)
}

func (s *Service) deliver(ctx context.Context, source string, posts []models.Post) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.sink.Accept(ctx, source, posts); err != nil {
		return 0, fmt.Errorf("accept %s: %w", source, err)
	}
	s.logger.Info("Ingested document", "source", source, "posts", len(posts))
	return len(posts), nil
}
