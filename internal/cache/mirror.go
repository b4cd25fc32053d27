package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pauljones0/harvester/internal/models"
)

const saveTimeout = 10 * time.Second

// Mirror writes collection snapshots to a Store in the background. Offers never
// block; when several arrive while a save is running only the newest is written.
type Mirror struct {
	store  Store
	logger *slog.Logger

	mu      sync.Mutex
	pending []models.Post
	dirty   bool
	closed  bool

	signal  chan struct{}
	flushes chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

func NewMirror(store Store, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mirror{
		store:   store,
		logger:  logger,
		signal:  make(chan struct{}, 1),
		flushes: make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// Offer schedules posts to be saved. The slice is copied.
func (m *Mirror) Offer(posts []models.Post) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.pending = models.ClonePosts(posts)
	if m.pending == nil {
		m.pending = []models.Post{}
	}
	m.dirty = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot offered so far has been written or has failed.
func (m *Mirror) Flush() {
	ack := make(chan struct{})
	select {
	case m.flushes <- ack:
		<-ack
	case <-m.done:
	}
}

// Close writes any pending snapshot and stops the background writer.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.done
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.signal:
			m.flush()
		case ack := <-m.flushes:
			m.flush()
			close(ack)
		case <-m.stop:
			m.flush()
			return
		}
	}
}

func (m *Mirror) flush() {
	m.mu.Lock()
	if !m.dirty {
		m.mu.Unlock()
		return
	}
	posts := m.pending
	m.pending = nil
	m.dirty = false
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := m.store.Save(ctx, posts); err != nil {
		var pe *models.PersistenceError
		if !errors.As(err, &pe) {
			err = &models.PersistenceError{Op: "save", Err: err}
		}
		m.logger.Warn("Failed to mirror collection to local cache", "count", len(posts), "error", err)
		return
	}
	m.logger.Debug("Mirrored collection to local cache", "count", len(posts))
}
