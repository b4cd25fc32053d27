// Package remotesync mirrors a collection into a per-identity remote namespace:
// chunked sequential uploads, a live full-snapshot feed and single-field updates.
package remotesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/harvester/internal/models"
)

// DefaultReconnectDelay is how long Subscribe waits before re-opening a failed watch.
const DefaultReconnectDelay = 5 * time.Second

var (
	ErrFieldNotUpdatable = errors.New("field cannot be partially updated")
	ErrWatchEnded        = errors.New("remote watch ended unexpectedly")
)

// Backend is the remote document store.
type Backend interface {
	// CommitChunk upserts every post in one atomic commit, keyed by post id.
	CommitChunk(ctx context.Context, uid string, posts []models.Post) error
	// UpdateField changes a single field of one stored post.
	UpdateField(ctx context.Context, uid, id, field string, value any) error
	// Watch calls onSnapshot with the full remote set on every change until
	// ctx is cancelled (returning nil) or the stream fails.
	Watch(ctx context.Context, uid string, onSnapshot func([]models.Post)) error
}

type Syncer struct {
	backend        Backend
	chunkSize      int
	limiter        *rate.Limiter
	reconnectDelay time.Duration
	logger         *slog.Logger
}

type Option func(*Syncer)

// WithReconnectDelay overrides the pause between watch reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Syncer) { s.reconnectDelay = d }
}

// New returns a Syncer that uploads in chunks of chunkSize and paces chunk
// commits to commitsPerSecond (0 disables pacing).
func New(backend Backend, chunkSize int, commitsPerSecond float64, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize < 1 {
		chunkSize = 1
	}
	s := &Syncer{
		backend:        backend,
		chunkSize:      chunkSize,
		reconnectDelay: DefaultReconnectDelay,
		logger:         logger,
	}
	if commitsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(commitsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// For scopes every operation to one identity's namespace.
func (s *Syncer) For(uid string) *Namespace {
	return &Namespace{syncer: s, uid: uid}
}

type Namespace struct {
	syncer *Syncer
	uid    string
}

func (n *Namespace) UID() string { return n.uid }

// PushBatch upserts posts in sequential chunks and returns how many were committed.
// A failed chunk stops the upload with a *models.SyncUploadError; earlier chunks stay committed.
func (n *Namespace) PushBatch(ctx context.Context, posts []models.Post) (int, error) {
	s := n.syncer
	total := len(posts)
	if total == 0 {
		return 0, nil
	}
	chunks := (total + s.chunkSize - 1) / s.chunkSize

	committed := 0
	for i := 0; i < chunks; i++ {
		end := min(committed+s.chunkSize, total)
		chunk := posts[committed:end]

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return committed, &models.SyncUploadError{Committed: committed, Total: total, Chunk: i, Chunks: chunks, Err: err}
			}
		}
		if err := s.backend.CommitChunk(ctx, n.uid, chunk); err != nil {
			s.logger.Error("Sync chunk commit failed",
				"uid", n.uid, "chunk", i+1, "chunks", chunks, "committed", committed, "total", total, "error", err)
			return committed, &models.SyncUploadError{Committed: committed, Total: total, Chunk: i, Chunks: chunks, Err: err}
		}
		committed = end
		s.logger.Debug("Sync chunk committed", "uid", n.uid, "chunk", i+1, "chunks", chunks, "committed", committed)
	}

	s.logger.Info("Sync upload complete", "uid", n.uid, "count", total, "chunks", chunks)
	return committed, nil
}

// UpdateField applies a single-field update. Only the star flag may be updated this way.
func (n *Namespace) UpdateField(ctx context.Context, id, field string, value any) error {
	if field != models.FieldIsStarred {
		return &models.SyncUpdateError{ID: id, Field: field, Err: ErrFieldNotUpdatable}
	}
	if err := n.syncer.backend.UpdateField(ctx, n.uid, id, field, value); err != nil {
		n.syncer.logger.Error("Sync field update failed", "uid", n.uid, "id", id, "field", field, "error", err)
		return &models.SyncUpdateError{ID: id, Field: field, Err: err}
	}
	return nil
}

// Subscription is a running live feed.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop detaches the feed. It does not wait for an in-flight callback to finish;
// use Done for that.
func (s *Subscription) Stop() { s.cancel() }

// Done is closed once the feed goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Subscribe delivers the namespace's full remote set, newest first, to onChange on
// every remote change. Watch failures go to onErr and the feed reconnects after a
// delay until stopped.
func (n *Namespace) Subscribe(ctx context.Context, onChange func([]models.Post), onErr func(error)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	s := n.syncer

	go func() {
		defer close(sub.done)
		for {
			err := s.backend.Watch(ctx, n.uid, func(posts []models.Post) {
				if ctx.Err() != nil {
					return
				}
				sorted := models.ClonePosts(posts)
				models.SortByRecency(sorted)
				onChange(sorted)
			})
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = ErrWatchEnded
			}
			s.logger.Error("Remote watch failed, reconnecting", "uid", n.uid, "delay", s.reconnectDelay, "error", err)
			if onErr != nil {
				onErr(fmt.Errorf("remote feed for %s: %w", n.uid, err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(s.reconnectDelay):
			}
		}
	}()

	return sub
}
