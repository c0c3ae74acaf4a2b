package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/config"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/db"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/extraction"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/extractor"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/filter"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/merge"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/naming"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/queue"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/telemetry"
)

type stubProvider struct{}

func (stubProvider) Listing(context.Context, *domain.RedditObject, int) ([]*reddit.Submission, error) {
	return nil, nil
}

func (stubProvider) Submission(context.Context, string) (*reddit.Submission, error) {
	return nil, reddit.ErrNotFound
}

func (stubProvider) Comments(context.Context, string, domain.CommentSort, int) ([]*reddit.Comment, error) {
	return nil, nil
}

func (stubProvider) Replies(context.Context, *reddit.Comment, domain.CommentSort, int) ([]*reddit.Comment, error) {
	return nil, nil
}

type fixture struct {
	deps    extraction.Deps
	store   *db.SQLStore
	obj     *domain.RedditObject
	session *domain.DownloadSession
	signal  *runner.Signal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := db.NewSQLStore(db.SQLConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "test.db")})
	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	obj, err := store.EnsureObject(ctx, "pics", domain.SubredditObject, domain.ObjectSettings{
		DownloadImages:    true,
		DownloadGifs:      true,
		DownloadVideos:    true,
		PostTitleTemplate: "%[title]",
		PostPathTemplate:  "%[significant_name]",
	})
	if err != nil {
		t.Fatalf("EnsureObject failed: %v", err)
	}
	session := &domain.DownloadSession{Name: "test", StartTime: time.Now()}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	signal := runner.NewSignal()
	settings := &config.Settings{
		OutputDir:   t.TempDir(),
		MinFileSize: 1024,
		Multipart: config.MultipartConfig{
			Threshold: 1 << 30,
			ChunkSize: 3000,
			Workers:   3,
			Retries:   2,
		},
	}
	env := &extractor.Env{
		Store:     store,
		Filter:    filter.Default(store, func() bool { return true }),
		Web:       httpclient.NewClient(httpclient.BrowserClient),
		API:       httpclient.NewClient(httpclient.APIClient),
		Provider:  stubProvider{},
		Settings:  settings,
		Merges:    merge.NewRegistry(),
		Names:     naming.NewRegistry(),
		Signal:    signal,
		Log:       log,
		SessionID: session.ID,
	}
	return &fixture{
		deps: extraction.Deps{
			Env:   env,
			Table: extractor.NewTable(nil, nil),
			Sink:  telemetry.NewSink(64),
		},
		store:   store,
		obj:     obj,
		session: session,
		signal:  signal,
	}
}

func (f *fixture) post(t *testing.T, redditID, url string) *domain.Post {
	t.Helper()
	p := &domain.Post{
		RedditID:      redditID,
		URL:           url,
		Title:         "Post " + redditID,
		SubredditName: "pics",
		AuthorName:    "someone",
		SignificantID: f.obj.ID,
		SubredditID:   f.obj.ID,
		DatePosted:    time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if _, err := f.store.InsertPost(context.Background(), p); err != nil {
		t.Fatalf("InsertPost failed: %v", err)
	}
	return p
}

func (f *fixture) content(t *testing.T, post *domain.Post, url, title string) *domain.Content {
	t.Helper()
	c := &domain.Content{
		Title:             title,
		Extension:         "jpg",
		URL:               url,
		PostID:            post.ID,
		SubredditName:     "pics",
		UserName:          "someone",
		DirectoryPath:     filepath.Join(f.deps.Env.Settings.OutputDir, "pics"),
		DownloadTitle:     title,
		DownloadSessionID: f.session.ID,
	}
	if err := f.store.CreateContent(context.Background(), c); err != nil {
		t.Fatalf("CreateContent failed: %v", err)
	}
	return c
}

func (f *fixture) reload(t *testing.T, id int64) *domain.Content {
	t.Helper()
	c, err := f.store.GetContent(context.Background(), id)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	return c
}

func drain(q *queue.DownloadQueue) []queue.Message[int64] {
	var out []queue.Message[int64]
	for q.Len() > 0 {
		msg, _ := q.Get(context.Background())
		out = append(out, msg)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
