package scriptgen

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestGenerate_TargetCountBounds(t *testing.T) {
	g := New(DefaultSelectors())

	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{name: "Zero", count: 0, wantErr: true},
		{name: "Negative", count: -5, wantErr: true},
		{name: "Minimum", count: MinTargetCount},
		{name: "Maximum", count: MaxTargetCount},
		{name: "Too many", count: MaxTargetCount + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(tt.count)
			if tt.wantErr {
				if !errors.Is(err, ErrTargetCount) {
					t.Errorf("Generate(%d) error = %v, want ErrTargetCount", tt.count, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Generate(%d) error = %v", tt.count, err)
			}
		})
	}
}

func TestGenerate_EmbedsCountAndIngestibleKeys(t *testing.T) {
	script, err := New(DefaultSelectors()).Generate(250)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, want := range []string{
		"const TARGET = 250;",
		"id: match[1]",
		"created_at:",
		"full_text:",
		"screen_name: handle",
		"profile_image_url_https:",
		"extended_entities:",
		"media_url_https:",
		"favorite_count: 0",
		"retweet_count: 0",
		"const SCROLL_DELAY_MS = 1500;",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if strings.Contains(script, "{{") {
		t.Error("script contains unrendered template actions")
	}
}

func TestGenerate_EscapesSelectors(t *testing.T) {
	script, err := New(DefaultSelectors()).Generate(1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Contains(script, `article[data-testid="tweet"]`) {
		t.Error("selector quotes must be escaped inside JS string literals")
	}
	if !strings.Contains(script, `\"tweet\"]`) {
		t.Error("escaped article selector not found")
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	g := New(DefaultSelectors())
	a, _ := g.Generate(42)
	b, _ := g.Generate(42)
	if a != b {
		t.Error("Generate() is not deterministic")
	}
}

func TestEmbeddedSelectorsMatchDefaults(t *testing.T) {
	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	sel, err := LoadSelectorsFromBytes(data)
	if err != nil {
		t.Fatalf("LoadSelectorsFromBytes() error = %v", err)
	}
	if !reflect.DeepEqual(sel, DefaultSelectors()) {
		t.Errorf("embedded selectors = %+v, want defaults %+v", sel, DefaultSelectors())
	}
}

func TestLoadSelectorsFromBytes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "Malformed", data: `{"timeline":`},
		{name: "Missing selectors", data: `{"timeline":{"article":"article"},"pacing":{"scroll_delay_ms":1500,"max_idle_scrolls":8}}`},
		{name: "Pacing out of range", data: `{"timeline":{"article":"a","status_link":"a","text":"a","time":"a","user_name":"a","avatar":"a","photo":"a","video":"a"},"pacing":{"scroll_delay_ms":1,"max_idle_scrolls":8}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadSelectorsFromBytes([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	custom := DefaultSelectors()
	custom.Timeline.Article = "article.custom"

	path := filepath.Join(t.TempDir(), "selectors.json")
	data := `{"timeline":{"article":"article.custom","status_link":"a[href*=\"/status/\"]","text":"div[data-testid=\"tweetText\"]","time":"time","user_name":"div[data-testid=\"User-Name\"]","avatar":"div[data-testid=\"Tweet-User-Avatar\"] img","photo":"div[data-testid=\"tweetPhoto\"] img","video":"div[data-testid=\"videoPlayer\"] video"},"pacing":{"scroll_delay_ms":1500,"max_idle_scrolls":8}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := LoadConfig(path); !reflect.DeepEqual(got, custom) {
		t.Errorf("LoadConfig(file) = %+v", got)
	}
	if got := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); !reflect.DeepEqual(got, DefaultSelectors()) {
		t.Errorf("LoadConfig(missing) = %+v, want embedded config", got)
	}
	if got := LoadConfig(""); !reflect.DeepEqual(got, DefaultSelectors()) {
		t.Errorf("LoadConfig(\"\") = %+v, want embedded config", got)
	}
}
