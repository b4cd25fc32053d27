package notifier

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pauljones0/harvester/internal/models"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
	return Event{}
}

func TestHub_PublishFanOut(t *testing.T) {
	h := New(nil)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	h.Publish(Event{Type: EventCollection, Count: 3})

	for _, ch := range []<-chan Event{a, b} {
		if ev := receive(t, ch); ev.Type != EventCollection || ev.Count != 3 {
			t.Errorf("event = %+v", ev)
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := New(nil)
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish(Event{Type: EventCollection, Count: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := New(nil)
	ch, cancel := h.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}
	h.Publish(Event{Type: EventCollection})
}

func TestHub_RecentKeepsLastFifty(t *testing.T) {
	h := New(nil)
	for i := 0; i < RecentNotices+10; i++ {
		h.Notify(LevelInfo, KindIngest, fmt.Sprintf("notice %d", i))
	}

	recent := h.Recent()
	if len(recent) != RecentNotices {
		t.Fatalf("Recent() = %d notices, want %d", len(recent), RecentNotices)
	}
	if recent[0].Message != "notice 10" || recent[len(recent)-1].Message != "notice 59" {
		t.Errorf("Recent() window = %q..%q", recent[0].Message, recent[len(recent)-1].Message)
	}
	if recent[0].ID == "" || recent[0].ID == recent[1].ID {
		t.Error("notices need distinct ids")
	}
}

func TestHub_NotifyErrorClassifies(t *testing.T) {
	h := New(nil)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.NotifyError(&models.PersistenceError{Op: "save", Err: errors.New("disk full")})
	ev := receive(t, ch)
	if ev.Type != EventNotice || ev.Notice.Kind != KindPersistence || ev.Notice.Level != LevelWarn {
		t.Errorf("notice = %+v", ev.Notice)
	}
}

func TestKindOf(t *testing.T) {
	cause := errors.New("x")
	tests := []struct {
		err  error
		want string
	}{
		{&models.ParseError{Err: cause}, KindParse},
		{fmt.Errorf("wrapped: %w", &models.SyncUploadError{Err: cause}), KindSyncUpload},
		{&models.SyncUpdateError{Err: cause}, KindSyncUpdate},
		{&models.AuthError{Err: cause}, KindAuth},
		{&models.PersistenceError{Err: cause}, KindPersistence},
		{cause, KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestHub_Close(t *testing.T) {
	h := New(nil)
	ch, cancel := h.Subscribe()
	h.Close()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after Close should yield a closed channel")
	}
}
