package manager

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/config"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/core"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/db"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
)

type fakeLister map[string][]*reddit.Submission

func (f fakeLister) Listing(_ context.Context, obj *domain.RedditObject, _ int) ([]*reddit.Submission, error) {
	return f[obj.Name], nil
}

var image = bytes.Repeat([]byte("0123456789abcdef"), 256)

func imageServer(t *testing.T) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "image", time.Time{}, bytes.NewReader(image))
	}))
	t.Cleanup(server.Close)
	return server
}

func newDeps(t *testing.T) (*core.Deps, *db.SQLStore) {
	t.Helper()
	store := db.NewSQLStore(db.SQLConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "test.db")})
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)
	settings := &config.Settings{
		OutputDir:         t.TempDir(),
		ExtractionThreads: 2,
		DownloadThreads:   2,
		MinFileSize:       1024,
		RequestTimeout:    5 * time.Second,
		Multipart:         config.MultipartConfig{Threshold: 1 << 30, ChunkSize: 1 << 20, Workers: 2},
		Reddit:            config.RedditConfig{BaseURL: "http://127.0.0.1:1", Listing: "api"},
		FFmpeg:            config.FFmpegConfig{Path: "ffmpeg"},
	}
	return core.NewWithStore(settings, log, store), store
}

func objectSettings() domain.ObjectSettings {
	return domain.ObjectSettings{
		MinScore:          10,
		DownloadImages:    true,
		PostTitleTemplate: "%[title]",
		PostPathTemplate:  "%[significant_name]",
	}
}

func TestRunDownloadsListedSubmissions(t *testing.T) {
	deps, store := newDeps(t)
	ctx := context.Background()
	server := imageServer(t)
	obj, err := store.EnsureObject(ctx, "pics", domain.SubredditObject, objectSettings())
	if err != nil {
		t.Fatalf("EnsureObject failed: %v", err)
	}

	posted := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	sub := func(id, url string, score int) *reddit.Submission {
		return &reddit.Submission{ID: id, Title: "Post " + id, URL: url, Subreddit: "pics", Author: "a",
			Score: score, CreatedUTC: float64(posted.Unix())}
	}
	deps.Lister = fakeLister{"pics": {
		sub("s1", server.URL+"/one.jpg", 50),
		sub("s2", server.URL+"/two.png", 20),
		sub("s3", server.URL+"/three.jpg", 1),
	}}

	summary, err := NewManager(deps).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Queued != 2 {
		t.Fatalf("Expected 2 queued submissions, got %d", summary.Queued)
	}
	if summary.Session.ExtractedCount != 2 || summary.Session.DownloadedCount != 2 {
		t.Fatalf("Expected 2 extracted and 2 downloaded, got %+v", summary.Session)
	}
	if summary.Session.EndTime.IsZero() {
		t.Fatalf("Expected session end time to be set")
	}
	for _, name := range []string{"Post s1.jpg", "Post s2.png"} {
		data, err := os.ReadFile(filepath.Join(deps.Settings.OutputDir, "pics", name))
		if err != nil || !bytes.Equal(data, image) {
			t.Fatalf("Expected %s to be written: %v", name, err)
		}
	}

	reloaded, _ := store.GetObject(ctx, obj.ID)
	if !reloaded.LastDownload.Equal(posted) {
		t.Fatalf("Expected last download %v, got %v", posted, reloaded.LastDownload)
	}

	// Nothing newer than the last download is listed again.
	summary, err = NewManager(deps).Run(ctx, nil)
	if err != nil || summary.Queued != 0 {
		t.Fatalf("Expected second run to queue nothing, got %d (%v)", summary.Queued, err)
	}
}

func TestRunResumesPendingContent(t *testing.T) {
	deps, store := newDeps(t)
	ctx := context.Background()
	server := imageServer(t)
	obj, _ := store.EnsureObject(ctx, "pics", domain.SubredditObject, objectSettings())
	deps.Lister = fakeLister{}

	post := &domain.Post{RedditID: "old", Title: "Old", SignificantID: obj.ID, SubredditName: "pics", DatePosted: time.Now()}
	if _, err := store.InsertPost(ctx, post); err != nil {
		t.Fatalf("InsertPost failed: %v", err)
	}
	if err := store.MarkPostExtracted(ctx, post.ID); err != nil {
		t.Fatalf("MarkPostExtracted failed: %v", err)
	}
	c := &domain.Content{Title: "Old", Extension: "jpg", URL: server.URL + "/old.jpg", PostID: post.ID,
		DirectoryPath: filepath.Join(deps.Settings.OutputDir, "pics"), DownloadTitle: "Old"}
	if err := store.CreateContent(ctx, c); err != nil {
		t.Fatalf("CreateContent failed: %v", err)
	}

	summary, err := NewManager(deps).Run(ctx, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got, _ := store.GetContent(ctx, c.ID)
	if !got.Downloaded || got.DownloadSessionID != summary.Session.ID {
		t.Fatalf("Expected pending content to be downloaded in the new session, got %+v", got)
	}
}

func TestAccept(t *testing.T) {
	since := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		score   int
		created time.Time
		want    bool
	}{
		{10, since.Add(time.Hour), true},
		{9, since.Add(time.Hour), false},
		{10, since, false},
		{10, since.Add(-time.Hour), false},
	}
	for _, tt := range tests {
		sub := &reddit.Submission{Score: tt.score, CreatedUTC: float64(tt.created.Unix())}
		if got := accept(sub, 10, since); got != tt.want {
			t.Fatalf("accept(score=%d, created=%v): expected %v, got %v", tt.score, tt.created, tt.want, got)
		}
	}
	if !accept(&reddit.Submission{Score: 10}, 10, time.Time{}) {
		t.Fatalf("Expected zero date limit to accept everything")
	}
}

func TestStopBeforeRunIsNoop(t *testing.T) {
	deps, _ := newDeps(t)
	m := NewManager(deps)
	m.Stop(true)
	m.Hold()
	m.Release()
	if p := m.Progress(); p.Downloaded != 0 || p.Outstanding != 0 {
		t.Fatalf("Expected empty progress, got %+v", p)
	}
}
