package collection

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pauljones0/harvester/internal/models"
)

var base = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func post(id string, offset time.Duration) models.Post {
	return models.Post{
		ID:        id,
		CreatedAt: base.Add(offset),
		Text:      "post " + id,
		Author:    models.Author{DisplayName: "Archive User", Handle: "me"},
	}
}

func ids(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestParseSegment(t *testing.T) {
	tests := []struct {
		in      string
		want    Segment
		wantErr bool
	}{
		{in: "", want: SegmentAll},
		{in: "all", want: SegmentAll},
		{in: "ALL", want: SegmentAll},
		{in: "MEDIA", want: SegmentMedia},
		{in: "favorites", want: SegmentFavorites},
		{in: "THREADS", want: SegmentLongForm},
		{in: "long-form", want: SegmentLongForm},
		{in: "popular", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSegment(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSegment(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilter_Favorites(t *testing.T) {
	starred := post("starred", 0)
	starred.IsStarred = true
	popular := post("popular", time.Minute)
	popular.FavoriteCount = 5000
	quiet := post("quiet", 2*time.Minute)
	quiet.FavoriteCount = 10
	edge := post("edge", 3*time.Minute)
	edge.FavoriteCount = FavoriteThreshold

	got := Filter([]models.Post{starred, popular, quiet, edge}, SegmentFavorites)
	if want := []string{"starred", "popular"}; !reflect.DeepEqual(ids(got), want) {
		t.Errorf("Filter(favorites) = %v, want %v", ids(got), want)
	}
}

func TestFilter_Segments(t *testing.T) {
	withMedia := post("media", 0)
	withMedia.Media = []models.Media{{Kind: models.MediaPhoto, URL: "https://pbs.twimg.com/a.jpg"}}
	long := post("long", time.Minute)
	long.Text = strings.Repeat("x", LongFormThreshold+1)
	exact := post("exact", 2*time.Minute)
	exact.Text = strings.Repeat("é", LongFormThreshold)
	plain := post("plain", 3*time.Minute)

	posts := []models.Post{withMedia, long, exact, plain}
	tests := []struct {
		segment Segment
		want    []string
	}{
		{SegmentAll, []string{"media", "long", "exact", "plain"}},
		{SegmentMedia, []string{"media"}},
		{SegmentLongForm, []string{"long"}},
		{SegmentFavorites, []string{}},
	}
	for _, tt := range tests {
		got := Filter(posts, tt.segment)
		if !reflect.DeepEqual(ids(got), tt.want) {
			t.Errorf("Filter(%s) = %v, want %v", tt.segment, ids(got), tt.want)
		}
	}

	// Filtering is a pure projection.
	if len(posts) != 4 || posts[0].ID != "media" {
		t.Errorf("input mutated: %v", ids(posts))
	}
}

func TestState_ReplaceSortsNewestFirst(t *testing.T) {
	s := New()
	s.Replace([]models.Post{post("a", 0), post("c", 2*time.Hour), post("b", time.Hour)})

	if got := ids(s.Posts()); !reflect.DeepEqual(got, []string{"c", "b", "a"}) {
		t.Errorf("Posts() = %v", got)
	}

	s.Replace([]models.Post{post("z", 0)})
	if got := ids(s.Posts()); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("Replace did not discard old posts: %v", got)
	}
}

func TestState_MergeIncomingWins(t *testing.T) {
	s := New()
	s.Replace([]models.Post{post("1", 0), post("2", time.Hour)})

	updated := post("1", 0)
	updated.Text = "edited"
	s.Merge([]models.Post{updated, post("3", 2*time.Hour)})

	if got := ids(s.Posts()); !reflect.DeepEqual(got, []string{"3", "2", "1"}) {
		t.Errorf("Posts() = %v", got)
	}
	p, _ := s.Get("1")
	if p.Text != "edited" {
		t.Errorf("Text = %q, want edited", p.Text)
	}
}

func TestState_ToggleStarTouchesOnlyTarget(t *testing.T) {
	s := New()
	target := post("42", 0)
	target.FavoriteCount = 7
	target.Media = []models.Media{{Kind: models.MediaVideo, URL: "https://v"}}
	s.Replace([]models.Post{target, post("43", time.Hour), post("44", 2*time.Hour)})
	before := s.Posts()

	updated, err := s.ToggleStar("42")
	if err != nil {
		t.Fatalf("ToggleStar() error = %v", err)
	}
	if !updated.IsStarred {
		t.Error("returned post not starred")
	}

	after := s.Posts()
	for i := range before {
		want := before[i]
		if want.ID == "42" {
			want.IsStarred = true
		}
		if !reflect.DeepEqual(after[i], want) {
			t.Errorf("post %s = %+v, want %+v", want.ID, after[i], want)
		}
	}

	if _, err := s.ToggleStar("42"); err != nil {
		t.Fatalf("second ToggleStar() error = %v", err)
	}
	if p, _ := s.Get("42"); p.IsStarred {
		t.Error("second toggle did not unstar")
	}
}

func TestState_ToggleStarUnknownID(t *testing.T) {
	s := New()
	calls := 0
	s.OnChange(func(Change) { calls++ })

	if _, err := s.ToggleStar("missing"); !errors.Is(err, models.ErrPostNotFound) {
		t.Errorf("error = %v, want ErrPostNotFound", err)
	}
	if calls != 0 {
		t.Errorf("listener called %d times for a no-op", calls)
	}
}

func TestState_SnapshotAlwaysWins(t *testing.T) {
	s := New()
	s.ApplySnapshot([]models.Post{post("1", 0)})

	if _, err := s.ToggleStar("1"); err != nil {
		t.Fatalf("ToggleStar() error = %v", err)
	}
	// A stale snapshot taken before the remote update landed overwrites the optimistic star.
	s.ApplySnapshot([]models.Post{post("1", 0)})
	if p, _ := s.Get("1"); p.IsStarred {
		t.Error("stale snapshot did not win over optimistic toggle")
	}

	confirmed := post("1", 0)
	confirmed.IsStarred = true
	s.ApplySnapshot([]models.Post{confirmed})
	if p, _ := s.Get("1"); !p.IsStarred {
		t.Error("confirming snapshot not applied")
	}
}

func TestState_OnChange(t *testing.T) {
	s := New()
	var got []Change
	unsubscribe := s.OnChange(func(c Change) { got = append(got, c) })

	s.Replace([]models.Post{post("1", 0)})
	s.ToggleStar("1")

	if len(got) != 2 {
		t.Fatalf("got %d changes, want 2", len(got))
	}
	if got[0].Reason != ReasonReplace || got[1].Reason != ReasonStar {
		t.Errorf("reasons = %s, %s", got[0].Reason, got[1].Reason)
	}
	if !got[1].Posts[0].IsStarred {
		t.Error("change snapshot missing star")
	}

	// Listener copies are private.
	got[1].Posts[0].Text = "tampered"
	if p, _ := s.Get("1"); p.Text == "tampered" {
		t.Error("listener mutated state through its copy")
	}

	unsubscribe()
	s.Replace(nil)
	if len(got) != 2 {
		t.Errorf("listener called after unsubscribe")
	}
}

func TestState_ViewUsesActiveSegment(t *testing.T) {
	s := New()
	withMedia := post("m", 0)
	withMedia.Media = []models.Media{{Kind: models.MediaPhoto, URL: "https://a"}}
	s.Replace([]models.Post{withMedia, post("p", time.Hour)})

	if got := len(s.View()); got != 2 {
		t.Errorf("View(all) = %d posts, want 2", got)
	}
	s.SetSegment(SegmentMedia)
	if got := ids(s.View()); !reflect.DeepEqual(got, []string{"m"}) {
		t.Errorf("View(media) = %v", got)
	}
	if s.Len() != 2 {
		t.Errorf("segment change altered the collection")
	}
}

func TestState_RestoreReportsReason(t *testing.T) {
	s := New()
	var reasons []ChangeReason
	s.OnChange(func(c Change) { reasons = append(reasons, c.Reason) })

	s.Restore([]models.Post{post("1", 0), post("2", time.Hour)})
	s.Replace([]models.Post{post("3", 0)})

	if !reflect.DeepEqual(reasons, []ChangeReason{ReasonRestore, ReasonReplace}) {
		t.Errorf("reasons = %v", reasons)
	}
	if got := ids(s.Posts()); !reflect.DeepEqual(got, []string{"3"}) {
		t.Errorf("Posts() = %v", got)
	}
}
