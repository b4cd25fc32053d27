// Package collection owns the in-memory, recency-ordered set of posts and the
// active filter segment. Every other component requests mutations through State.
package collection

import (
	"sync"

	"github.com/pauljones0/harvester/internal/models"
)

// ChangeReason says which operation produced a Change.
type ChangeReason string

const (
	ReasonReplace  ChangeReason = "replace"
	ReasonMerge    ChangeReason = "merge"
	ReasonSnapshot ChangeReason = "snapshot"
	ReasonStar     ChangeReason = "star"
	ReasonRestore  ChangeReason = "restore"
)

// Change is delivered to listeners after every mutation. Posts is a private copy.
type Change struct {
	Reason ChangeReason
	Posts  []models.Post
}

type Listener func(Change)

// State is safe for concurrent use. Listeners run synchronously after the
// mutation, outside the data lock, in mutation order; they must not mutate the State.
type State struct {
	notifyMu sync.Mutex

	mu        sync.RWMutex
	posts     []models.Post
	index     map[string]int
	segment   Segment
	listeners map[int]Listener
	nextID    int
}

func New() *State {
	return &State{
		index:     make(map[string]int),
		segment:   SegmentAll,
		listeners: make(map[int]Listener),
	}
}

// OnChange registers fn and returns a function that removes it.
func (s *State) OnChange(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Replace discards the current collection and installs posts, newest first.
func (s *State) Replace(posts []models.Post) {
	s.mutate(ReasonReplace, func() bool {
		s.rebuild(models.ClonePosts(posts))
		return true
	})
}

// Merge upserts posts by id. Incoming records win over existing ones.
func (s *State) Merge(posts []models.Post) {
	s.mutate(ReasonMerge, func() bool {
		merged := make([]models.Post, 0, len(s.posts)+len(posts))
		merged = append(merged, s.posts...)
		merged = append(merged, models.ClonePosts(posts)...)
		s.rebuild(merged)
		return true
	})
}

// ApplySnapshot installs an authoritative remote snapshot. It always wins over
// local state, including optimistic star toggles that have not round-tripped yet.
func (s *State) ApplySnapshot(posts []models.Post) {
	s.mutate(ReasonSnapshot, func() bool {
		s.rebuild(models.ClonePosts(posts))
		return true
	})
}

// Restore installs posts read back from the local cache. It behaves like
// Replace but is reported separately so mirrors can skip writing them back.
func (s *State) Restore(posts []models.Post) {
	s.mutate(ReasonRestore, func() bool {
		s.rebuild(models.ClonePosts(posts))
		return true
	})
}

// ToggleStar flips isStarred on the post with the given id and returns the updated post.
// No other field or post is touched.
func (s *State) ToggleStar(id string) (models.Post, error) {
	var (
		updated models.Post
		err     error
	)
	s.mutate(ReasonStar, func() bool {
		i, ok := s.index[id]
		if !ok {
			err = models.ErrPostNotFound
			return false
		}
		s.posts[i].IsStarred = !s.posts[i].IsStarred
		updated = s.posts[i].Clone()
		return true
	})
	return updated, err
}

// Get returns a copy of the post with the given id.
func (s *State) Get(id string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Post{}, false
	}
	return s.posts[i].Clone(), true
}

// Posts returns a copy of the full collection, newest first.
func (s *State) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ClonePosts(s.posts)
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// View returns the posts matching the active segment.
func (s *State) View() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Filter(s.posts, s.segment)
}

// ViewOf returns the posts matching segment without changing the active one.
func (s *State) ViewOf(segment Segment) []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Filter(s.posts, segment)
}

func (s *State) Segment() Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.segment
}

// SetSegment changes the active filter. The collection itself is unchanged, so
// listeners are not notified.
func (s *State) SetSegment(segment Segment) {
	s.mu.Lock()
	s.segment = segment
	s.mu.Unlock()
}

// mutate applies fn under the write lock and, if fn reports a change, notifies
// listeners with a snapshot. notifyMu keeps notifications in mutation order.
func (s *State) mutate(reason ChangeReason, fn func() bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	var snapshot []models.Post
	if len(listeners) > 0 {
		snapshot = models.ClonePosts(s.posts)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(Change{Reason: reason, Posts: models.ClonePosts(snapshot)})
	}
}

// rebuild installs posts, dropping invalid records and collapsing duplicate ids
// (later entries win), then sorts newest first. Caller holds mu.
func (s *State) rebuild(posts []models.Post) {
	index := make(map[string]int, len(posts))
	out := posts[:0]
	for _, p := range posts {
		if !models.IsValid(p) {
			continue
		}
		if i, seen := index[p.ID]; seen {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	models.SortByRecency(out)

	clear(index)
	for i, p := range out {
		index[p.ID] = i
	}
	s.posts = out
	s.index = index
}
