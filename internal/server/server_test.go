package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pauljones0/harvester/internal/app"
	"github.com/pauljones0/harvester/internal/cache"
	"github.com/pauljones0/harvester/internal/config"
	"github.com/pauljones0/harvester/internal/notifier"
	"github.com/pauljones0/harvester/internal/scriptgen"
)

func newTestServer(t *testing.T) (*Server, *app.App) {
	t.Helper()
	a := app.New(context.Background(), app.Options{Store: cache.NewMemoryStore()})
	t.Cleanup(a.Close)
	s := New(&config.Config{Port: "0"}, a, scriptgen.New(scriptgen.DefaultSelectors()), nil)
	s.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return s, a
}

func do(t *testing.T, s *Server, method, target string, body io.Reader, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestSampleAndSegments(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/sample", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sample = %d %s", rec.Code, rec.Body)
	}

	tests := []struct {
		segment string
		want    int
	}{
		{"all", 4},
		{"media", 2},
		{"FAVORITES", 1},
		{"long-form", 0},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, "/api/posts?segment="+tt.segment, nil)
		var resp postsResponse
		decodeBody(t, rec, &resp)
		if resp.Count != tt.want || resp.Total != 4 {
			t.Errorf("segment %s: count = %d total = %d, want %d/4", tt.segment, resp.Count, resp.Total, tt.want)
		}
	}

	if rec := do(t, s, http.MethodGet, "/api/posts?segment=bogus", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bogus segment = %d", rec.Code)
	}

	rec = do(t, s, http.MethodPut, "/api/segment", strings.NewReader(`{"segment":"media"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("set segment = %d %s", rec.Code, rec.Body)
	}
	var resp postsResponse
	decodeBody(t, do(t, s, http.MethodGet, "/api/posts", nil), &resp)
	if resp.Segment != "media" || resp.Count != 2 {
		t.Errorf("active segment view = %+v", resp)
	}
}

func TestIngestFile_RawAndMultipart(t *testing.T) {
	s, a := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/ingest/file?name=tweets.js",
		strings.NewReader(`window.YTD.tweet.part0 = [{"tweet":{"id_str":"1","full_text":"a"}}]`))
	if rec.Code != http.StatusOK {
		t.Fatalf("raw ingest = %d %s", rec.Code, rec.Body)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "ignored")
	fw, _ := mw.CreateFormFile("file", "export.json")
	io.WriteString(fw, `{"tweets":[{"id":2,"text":"b"},{"id":3,"text":"c"}]}`)
	mw.Close()

	rec = do(t, s, http.MethodPost, "/api/ingest/file", &buf, "Content-Type", mw.FormDataContentType())
	if rec.Code != http.StatusOK {
		t.Fatalf("multipart ingest = %d %s", rec.Code, rec.Body)
	}
	var resp map[string]int
	decodeBody(t, rec, &resp)
	if resp["ingested"] != 2 || a.Collection().Len() != 2 {
		t.Errorf("response = %v, collection = %d", resp, a.Collection().Len())
	}
}

func TestIngestFile_MalformedIs400AndLeavesCollection(t *testing.T) {
	s, a := newTestServer(t)
	do(t, s, http.MethodPost, "/api/sample", nil)

	rec := do(t, s, http.MethodPost, "/api/ingest/file", strings.NewReader(`[{"id": 1,`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed ingest = %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "ParseError" {
		t.Errorf("error body = %v", body)
	}
	if a.Collection().Len() != 4 {
		t.Errorf("collection = %d posts, want 4", a.Collection().Len())
	}

	var notices struct {
		Notices []notifier.Notice `json:"notices"`
	}
	decodeBody(t, do(t, s, http.MethodGet, "/api/notices", nil), &notices)
	last := notices.Notices[len(notices.Notices)-1]
	if last.Kind != notifier.KindParse {
		t.Errorf("last notice = %+v", last)
	}
}

func TestPasteFlow(t *testing.T) {
	s, a := newTestServer(t)

	text := `window.YTD.tweet.part0 = [{"id":"1","full_text":"pasted"}];`
	if rec := do(t, s, http.MethodPut, "/api/paste", strings.NewReader(text)); rec.Code != http.StatusNoContent {
		t.Fatalf("stage = %d", rec.Code)
	}
	var staged map[string]string
	decodeBody(t, do(t, s, http.MethodGet, "/api/paste", nil), &staged)
	if staged["text"] != text {
		t.Errorf("staged = %q", staged["text"])
	}

	if rec := do(t, s, http.MethodPost, "/api/paste/ingest", nil); rec.Code != http.StatusOK {
		t.Fatalf("ingest paste = %d %s", rec.Code, rec.Body)
	}
	if a.Staged() != "" || a.Collection().Len() != 1 {
		t.Errorf("staged = %q, len = %d", a.Staged(), a.Collection().Len())
	}

	if rec := do(t, s, http.MethodPost, "/api/paste/ingest", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("empty paste = %d, want 400", rec.Code)
	}
}

func TestToggleStar(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/sample", nil)

	rec := do(t, s, http.MethodPost, "/api/posts/1/star", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"isStarred":true`) {
		t.Errorf("star = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, s, http.MethodPost, "/api/posts/nope/star", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown star = %d, want 404", rec.Code)
	}
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/sample", nil)

	rec := do(t, s, http.MethodGet, "/api/export?format=csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="harvester_20240510T120000Z.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if lines := strings.Count(rec.Body.String(), "\n"); lines != 5 {
		t.Errorf("csv lines = %d, want 5", lines)
	}

	rec = do(t, s, http.MethodGet, "/api/export", nil)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("default export Content-Type = %q", ct)
	}
	if rec := do(t, s, http.MethodGet, "/api/export?format=xml", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad format = %d", rec.Code)
	}
}

func TestScraperScript(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/scraper-script?count=25", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "const TARGET = 25;") {
		t.Errorf("script = %d", rec.Code)
	}
	for _, q := range []string{"0", "10001", "abc", ""} {
		if rec := do(t, s, http.MethodGet, "/api/scraper-script?count="+q, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("count=%q = %d, want 400", q, rec.Code)
		}
	}
}

func TestSession_WithoutRemote(t *testing.T) {
	s, _ := newTestServer(t)

	var state sessionResponse
	decodeBody(t, do(t, s, http.MethodGet, "/api/session", nil), &state)
	if state.SignedIn || state.RemoteEnabled {
		t.Errorf("session = %+v", state)
	}

	rec := do(t, s, http.MethodPost, "/api/session", strings.NewReader(`{"idToken":"x"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("sign-in = %d, want 401", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/session", nil); rec.Code != http.StatusOK {
		t.Errorf("sign-out = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := do(t, s, http.MethodDelete, "/api/posts", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /api/posts = %d", rec.Code)
	}
}

func TestLive(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var ev notifier.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ev.Mode != "initial" || ev.Count != 0 {
		t.Errorf("initial event = %+v", ev)
	}

	resp, err := http.Post(ts.URL+"/api/sample", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	for ev.Mode != "replace" {
		ev = notifier.Event{}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
	}
	if ev.Count != 4 || len(ev.Posts) != 4 {
		t.Errorf("replace event = %d posts", ev.Count)
	}
}
