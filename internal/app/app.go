// Package app is the application context: it is constructed once at startup,
// owns the collection and wires ingestion, the local cache mirror and the
// remote sync session around it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pauljones0/harvester/internal/cache"
	"github.com/pauljones0/harvester/internal/collection"
	"github.com/pauljones0/harvester/internal/config"
	"github.com/pauljones0/harvester/internal/identity"
	"github.com/pauljones0/harvester/internal/ingest"
	"github.com/pauljones0/harvester/internal/models"
	"github.com/pauljones0/harvester/internal/normalizer"
	"github.com/pauljones0/harvester/internal/notifier"
	"github.com/pauljones0/harvester/internal/remotesync"
)

const (
	loadTimeout   = 10 * time.Second
	updateTimeout = 30 * time.Second
)

var ErrClosed = errors.New("application is shut down")

type Options struct {
	Store      cache.Store
	Normalizer *normalizer.Normalizer
	Verifier   identity.Verifier
	// Syncer is nil when remote sync is not configured.
	Syncer     *remotesync.Syncer
	Hub        *notifier.Hub
	IngestMode config.IngestMode
	Logger     *slog.Logger
}

// session is one signed-in identity and its live feed.
type session struct {
	identity identity.Identity
	ns       *remotesync.Namespace
	sub      *remotesync.Subscription
	gen      uint64
}

type App struct {
	state  *collection.State
	ingest *ingest.Service
	store  cache.Store
	mirror *cache.Mirror
	hub    *notifier.Hub

	verifier identity.Verifier
	syncer   *remotesync.Syncer
	mode     config.IngestMode
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// switchMu serializes identity transitions with every change to the
	// collection, so nothing lands between ending one session and restoring
	// or installing the next. Collection listeners read session without it.
	switchMu   sync.Mutex
	session    atomic.Pointer[session]
	generation uint64
	closed     atomic.Bool
	closeOnce  sync.Once
}

// New seeds the collection from the local cache and starts guest-mode mirroring.
// A cache that cannot be read is logged and the collection starts empty.
func New(ctx context.Context, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = notifier.New(logger)
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = identity.Unavailable{}
	}
	norm := opts.Normalizer
	if norm == nil {
		norm = normalizer.New()
	}

	a := &App{
		state:    collection.New(),
		store:    opts.Store,
		mirror:   cache.NewMirror(opts.Store, logger),
		hub:      hub,
		verifier: verifier,
		syncer:   opts.Syncer,
		mode:     opts.IngestMode,
		logger:   logger,
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.ingest = ingest.New(norm, a, logger)
	a.state.OnChange(a.onChange)

	a.restoreFromCache(ctx)
	return a
}

func (a *App) Collection() *collection.State { return a.state }

func (a *App) Hub() *notifier.Hub { return a.hub }

// RemoteEnabled reports whether sign-in can succeed at all.
func (a *App) RemoteEnabled() bool { return a.syncer != nil }

// Session returns the signed-in identity, if any.
func (a *App) Session() (identity.Identity, bool) {
	s := a.session.Load()
	if s == nil {
		return identity.Identity{}, false
	}
	return s.identity, true
}

// Accept applies a normalized document to the collection. While signed in the
// same posts are pushed to the remote namespace in the background.
func (a *App) Accept(_ context.Context, source string, posts []models.Post) error {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	if a.closed.Load() {
		return ErrClosed
	}

	switch a.mode {
	case config.IngestMerge:
		a.state.Merge(posts)
	default:
		a.state.Replace(posts)
	}
	a.hub.Notify(notifier.LevelInfo, notifier.KindIngest, fmt.Sprintf("Loaded %d posts from %s", len(posts), source))

	if s := a.session.Load(); s != nil && len(posts) > 0 {
		a.pushAsync(s, models.ClonePosts(posts))
	}
	return nil
}

// IngestFile, IngestPaste and LoadSample run the ingestion front door and turn
// failures into notices before returning them.
func (a *App) IngestFile(ctx context.Context, name string, r io.Reader) (int, error) {
	n, err := a.ingest.IngestFile(ctx, name, r)
	return n, a.report(err)
}

func (a *App) Stage(text string) { a.ingest.Stage(text) }

func (a *App) Staged() string { return a.ingest.Staged() }

func (a *App) IngestPaste(ctx context.Context) (int, error) {
	n, err := a.ingest.IngestPaste(ctx)
	return n, a.report(err)
}

func (a *App) LoadSample(ctx context.Context) (int, error) {
	n, err := a.ingest.LoadSample(ctx)
	return n, a.report(err)
}

// SetSegment changes the active filter and republishes the view.
func (a *App) SetSegment(segment collection.Segment) {
	a.state.SetSegment(segment)
	view := a.state.View()
	a.hub.Publish(notifier.Event{Type: notifier.EventCollection, Mode: "segment", Count: len(view), Posts: view})
}

// ToggleStar flips the star locally right away. While signed in the remote
// update follows in the background; if it fails a notice is raised and the
// local flag is kept.
func (a *App) ToggleStar(id string) (models.Post, error) {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	if a.closed.Load() {
		return models.Post{}, ErrClosed
	}
	p, err := a.state.ToggleStar(id)
	if err != nil {
		return models.Post{}, err
	}

	if s := a.session.Load(); s != nil {
		a.goBackground("star update", func(ctx context.Context) {
			ctx, cancel := context.WithTimeout(ctx, updateTimeout)
			defer cancel()
			if err := s.ns.UpdateField(ctx, p.ID, models.FieldIsStarred, p.IsStarred); err != nil {
				a.hub.NotifyError(err)
			}
		})
	}
	return p, nil
}

// SignIn verifies token and switches the collection to the identity's remote
// feed. A failed verification leaves the current session and collection as they were.
func (a *App) SignIn(ctx context.Context, token string) (identity.Identity, error) {
	if a.syncer == nil {
		return identity.Identity{}, a.report(&models.AuthError{Err: models.ErrSignInUnavailable})
	}
	id, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return identity.Identity{}, a.report(err)
	}

	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	if a.closed.Load() {
		return identity.Identity{}, ErrClosed
	}

	a.endSessionLocked()
	a.generation++
	gen := a.generation
	s := &session{identity: id, ns: a.syncer.For(id.UID), gen: gen}
	a.session.Store(s)

	s.sub = s.ns.Subscribe(a.ctx,
		func(posts []models.Post) { a.applySnapshot(gen, posts) },
		func(err error) { a.hub.Notify(notifier.LevelWarn, notifier.KindSync, err.Error()) },
	)

	a.logger.Info("Signed in", "uid", id.UID)
	a.hub.Notify(notifier.LevelInfo, notifier.KindSession, fmt.Sprintf("Signed in as %s", displayName(id)))
	return id, nil
}

// SignOut detaches the remote feed and restores the guest collection from the
// local cache.
func (a *App) SignOut(ctx context.Context) {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()

	s := a.session.Load()
	if s == nil {
		return
	}
	a.endSessionLocked()
	a.restoreFromCache(ctx)

	a.logger.Info("Signed out", "uid", s.identity.UID)
	a.hub.Notify(notifier.LevelInfo, notifier.KindSession, "Signed out; showing local collection")
}

// Close detaches every listener, waits for background uploads and updates and
// flushes the local cache mirror.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.switchMu.Lock()
		a.closed.Store(true)
		a.endSessionLocked()
		a.switchMu.Unlock()

		a.cancel()
		a.wg.Wait()
		a.mirror.Close()
		a.hub.Close()
	})
}

// endSessionLocked stops the active feed. Callbacks already in flight are
// rejected by the generation check in applySnapshot. Caller holds switchMu.
func (a *App) endSessionLocked() {
	s := a.session.Swap(nil)
	if s == nil {
		return
	}
	a.generation++
	if s.sub != nil {
		s.sub.Stop()
	}
}

func (a *App) applySnapshot(gen uint64, posts []models.Post) {
	a.switchMu.Lock()
	defer a.switchMu.Unlock()
	if gen != a.generation || a.session.Load() == nil {
		a.logger.Debug("Dropping snapshot from superseded session", "generation", gen)
		return
	}
	a.state.ApplySnapshot(posts)
}

func (a *App) restoreFromCache(ctx context.Context) {
	a.mirror.Flush()

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	posts, err := a.store.Load(ctx)
	if err != nil {
		a.logger.Warn("Failed to load local cache, starting empty", "error", err)
		posts = nil
	}
	a.state.Restore(posts)
	a.logger.Info("Restored local collection", "count", len(posts))
}

// onChange mirrors guest-mode changes to the local cache and publishes the view.
func (a *App) onChange(c collection.Change) {
	if a.session.Load() == nil && c.Reason != collection.ReasonRestore {
		a.mirror.Offer(c.Posts)
	}
	view := collection.Filter(c.Posts, a.state.Segment())
	a.hub.Publish(notifier.Event{Type: notifier.EventCollection, Mode: string(c.Reason), Count: len(view), Posts: view})
}

func (a *App) pushAsync(s *session, posts []models.Post) {
	a.goBackground("sync upload", func(ctx context.Context) {
		n, err := s.ns.PushBatch(ctx, posts)
		if err != nil {
			a.hub.NotifyError(err)
			return
		}
		a.hub.Notify(notifier.LevelInfo, notifier.KindSync, fmt.Sprintf("Synced %d posts", n))
	})
}

// goBackground runs fn on the app lifetime context and tracks it for Close.
func (a *App) goBackground(name string, fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("Panic in background task", "task", name, "panic", r)
			}
		}()
		fn(a.ctx)
	}()
}

func (a *App) report(err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		a.hub.NotifyError(err)
	}
	return err
}

func displayName(id identity.Identity) string {
	if id.DisplayName != "" {
		return id.DisplayName
	}
	if id.Email != "" {
		return id.Email
	}
	return id.UID
}
