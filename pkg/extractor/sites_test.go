package extractor

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

const sitesMarkdown = `# Supported sites
 - **17live**
 - **abc**: too short
 - **youtube**: YouTube
 - **youtube:tab**: YouTube Tabs
 - **Vimeo**
 - **generic**

**notalist** is ignored
`

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	return string(b), err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestParseSupportedSites(t *testing.T) {
	got := ParseSupportedSites([]byte(sitesMarkdown))
	want := []string{"17live", "youtube", "vimeo"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestSupportedSitesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supportedsites.md")
	if err := os.WriteFile(path, []byte(" - **vimeo**\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSupportedSites(path, time.Hour, quietLogger())
	s.now = func() time.Time { return now }

	if keys := s.Keys(); len(keys) != 1 || keys[0] != "vimeo" {
		t.Fatalf("Unexpected keys %v", keys)
	}
	if err := os.WriteFile(path, []byte(" - **dailymotion**\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if keys := s.Keys(); keys[0] != "vimeo" {
		t.Fatalf("Expected cached keys before TTL, got %v", keys)
	}
	now = now.Add(2 * time.Hour)
	if keys := s.Keys(); len(keys) != 1 || keys[0] != "dailymotion" {
		t.Fatalf("Expected reloaded keys, got %v", keys)
	}

	os.Remove(path)
	now = now.Add(2 * time.Hour)
	if keys := s.Keys(); keys != nil {
		t.Fatalf("Expected no keys after load failure, got %v", keys)
	}
}

func TestAssignIsDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "supportedsites.md")
	if err := os.WriteFile(path, []byte(sitesMarkdown), 0o644); err != nil {
		t.Fatal(err)
	}
	disabled := map[string]bool{}
	table := NewTable(NewSupportedSites(path, time.Hour, quietLogger()), func(name string) bool {
		return !disabled[name]
	})

	cases := map[string]string{
		"https://i.imgur.com/abc.jpg":            "imgur",
		"https://imgur.com/a/xyz":                "imgur",
		"https://v.redd.it/abc123":               "reddit_video",
		"https://www.reddit.com/gallery/abc":     "reddit_gallery",
		"https://gfycat.com/SomeThing":           "gfycat",
		"https://www.redgifs.com/watch/abc":      "redgifs",
		"https://www.vidble.com/show/abc":        "vidble",
		"https://www.YouTube.com/watch?v=1":      "generic_video",
		"https://x.com/a.JPG":                    "direct",
		"https://cdn.example.com/clip.mp4?sig=1": "direct",
		"https://x.com/a.jpg?ref=imgur.com":      "direct",
		"https://x.com/b.png#v.redd.it":          "direct",
	}
	for i := 0; i < 3; i++ {
		for u, want := range cases {
			reg, ok := table.Assign(u)
			if !ok || reg.Name != want {
				t.Fatalf("Expected %s for %s, got %q (ok=%v)", want, u, reg.Name, ok)
			}
		}
	}

	if _, ok := table.Assign("https://example.com/page"); ok {
		t.Fatalf("Expected no extractor for a plain page")
	}
	if reg, ok := table.Assign("https://example.com/page?next=https://v.redd.it/abc"); ok {
		t.Fatalf("Expected keys in the query string to be ignored, got %q", reg.Name)
	}

	disabled["imgur"] = true
	if reg, _ := table.Assign("https://i.imgur.com/abc.jpg"); reg.Name != "direct" {
		t.Fatalf("Expected direct fallback with imgur disabled, got %q", reg.Name)
	}
	disabled["direct"] = true
	if _, ok := table.Assign("https://i.imgur.com/abc.jpg"); ok {
		t.Fatalf("Expected no extractor with imgur and direct disabled")
	}
}
