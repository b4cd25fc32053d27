package notifier

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pauljones0/harvester/internal/models"
)

const (
	// RecentNotices is how many notices are retained for polling clients.
	RecentNotices = 50
	// subscriberBuffer is the per-subscriber queue depth before events are dropped.
	subscriberBuffer = 32
)

type EventType string

const (
	EventNotice     EventType = "notice"
	EventCollection EventType = "collection"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice kinds. Error kinds mirror the error taxonomy in models.
const (
	KindIngest      = "ingest"
	KindSession     = "session"
	KindSync        = "sync"
	KindParse       = "parse"
	KindPersistence = "persistence"
	KindSyncUpload  = "sync-upload"
	KindSyncUpdate  = "sync-update"
	KindAuth        = "auth"
	KindInternal    = "internal"
)

type Notice struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
}

// Event is what live subscribers receive. Posts is set for collection events.
type Event struct {
	Type   EventType     `json:"type"`
	Notice *Notice       `json:"notice,omitempty"`
	Mode   string        `json:"mode,omitempty"`
	Count  int           `json:"count"`
	Posts  []models.Post `json:"posts,omitempty"`
}

// Hub fans events out to live subscribers and keeps the latest notices.
// A subscriber that falls behind loses events rather than blocking publishers.
type Hub struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	recent []Notice
	closed bool
}

func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, subs: make(map[int]chan Event)}
}

// Notify records a notice and publishes it.
func (h *Hub) Notify(level Level, kind, message string) Notice {
	n := Notice{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Level:   level,
		Kind:    kind,
		Message: message,
	}

	h.mu.Lock()
	h.recent = append(h.recent, n)
	if len(h.recent) > RecentNotices {
		h.recent = h.recent[len(h.recent)-RecentNotices:]
	}
	h.mu.Unlock()

	h.Publish(Event{Type: EventNotice, Notice: &n})
	return n
}

// NotifyError records err as an error notice, classified by its type.
func (h *Hub) NotifyError(err error) Notice {
	level := LevelError
	kind := KindOf(err)
	if kind == KindPersistence {
		level = LevelWarn
	}
	return h.Notify(level, kind, err.Error())
}

// Publish delivers ev to every subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("Dropping event for slow subscriber", "subscriber", id, "type", ev.Type)
		}
	}
}

// Subscribe returns a channel of events and a cancel function that closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Recent returns the retained notices, oldest first.
func (h *Hub) Recent() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Notice, len(h.recent))
	copy(out, h.recent)
	return out
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}

// KindOf classifies an error into a notice kind.
func KindOf(err error) string {
	var (
		parseErr   *models.ParseError
		persistErr *models.PersistenceError
		uploadErr  *models.SyncUploadError
		updateErr  *models.SyncUpdateError
		authErr    *models.AuthError
	)
	switch {
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &persistErr):
		return KindPersistence
	case errors.As(err, &uploadErr):
		return KindSyncUpload
	case errors.As(err, &updateErr):
		return KindSyncUpdate
	case errors.As(err, &authErr):
		return KindAuth
	default:
		return KindInternal
	}
}
