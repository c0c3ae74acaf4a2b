package extractor

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
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/filter"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/merge"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/naming"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
)

type fakeProvider struct {
	subs map[string]*reddit.Submission
}

func (f *fakeProvider) Listing(context.Context, *domain.RedditObject, int) ([]*reddit.Submission, error) {
	return nil, nil
}

func (f *fakeProvider) Submission(_ context.Context, id string) (*reddit.Submission, error) {
	if s, ok := f.subs[id]; ok {
		return s, nil
	}
	return nil, reddit.ErrNotFound
}

func (f *fakeProvider) Comments(context.Context, string, domain.CommentSort, int) ([]*reddit.Comment, error) {
	return nil, nil
}

func (f *fakeProvider) Replies(context.Context, *reddit.Comment, domain.CommentSort, int) ([]*reddit.Comment, error) {
	return nil, nil
}

func allOn() domain.ObjectSettings {
	return domain.ObjectSettings{
		AvoidDuplicates:   true,
		DownloadImages:    true,
		DownloadGifs:      true,
		DownloadVideos:    true,
		SelfPostFormat:    domain.FormatText,
		PostTitleTemplate: "%[title]",
		PostPathTemplate:  "%[significant_name]",
	}
}

type fixture struct {
	env    *Env
	store  *db.SQLStore
	obj    *domain.RedditObject
	post   *domain.Post
	source Source
}

func newFixture(t *testing.T, settings domain.ObjectSettings, postDomain string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := db.NewSQLStore(db.SQLConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "test.db")})
	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	obj, err := store.EnsureObject(ctx, "pics", domain.SubredditObject, settings)
	if err != nil {
		t.Fatalf("EnsureObject failed: %v", err)
	}
	session := &domain.DownloadSession{Name: "test", StartTime: time.Now()}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	post := &domain.Post{
		RedditID:      "p1",
		Title:         "Sunset",
		Domain:        postDomain,
		Permalink:     "/r/pics/comments/p1/sunset/",
		SubredditID:   obj.ID,
		SubredditName: "pics",
		AuthorName:    "someone",
		SignificantID: obj.ID,
		DatePosted:    time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if _, err := store.InsertPost(ctx, post); err != nil {
		t.Fatalf("InsertPost failed: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	env := &Env{
		Store:     store,
		Filter:    filter.Default(store, func() bool { return true }),
		Web:       httpclient.NewClient(httpclient.BrowserClient, httpclient.WithRetries(2, time.Millisecond)),
		API:       httpclient.NewClient(httpclient.APIClient, httpclient.WithRetries(2, time.Millisecond)),
		Provider:  &fakeProvider{subs: map[string]*reddit.Submission{}},
		Settings:  &config.Settings{OutputDir: t.TempDir()},
		Merges:    merge.NewRegistry(),
		Names:     naming.NewRegistry(),
		Signal:    runner.NewSignal(),
		Log:       log,
		SessionID: session.ID,
	}
	return &fixture{
		env:    env,
		store:  store,
		obj:    obj,
		post:   post,
		source: Source{Post: post, Object: obj},
	}
}

func (f *fixture) at(url string) Source {
	src := f.source
	src.URL = url
	return src
}

func (f *fixture) rows(t *testing.T) []*domain.Content {
	t.Helper()
	rows, err := f.store.ContentForPost(context.Background(), f.post.ID)
	if err != nil {
		t.Fatalf("ContentForPost failed: %v", err)
	}
	return rows
}

func TestDirectImage(t *testing.T) {
	f := newFixture(t, allOn(), "x.com")
	x := NewDirect(f.env, f.at("https://x.com/a.jpg"))
	x.Extract(context.Background())

	if _, msg, failed := x.Failure(); failed {
		t.Fatalf("Expected success, got %s", msg)
	}
	rows := f.rows(t)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 content row, got %d", len(rows))
	}
	c := rows[0]
	if c.Extension != "jpg" || c.Title != "Sunset" || c.URL != "https://x.com/a.jpg" {
		t.Fatalf("Unexpected content %+v", c)
	}
	if c.DirectoryPath != filepath.Join(f.env.Settings.OutputDir, "pics") {
		t.Fatalf("Expected directory under significant name, got %s", c.DirectoryPath)
	}
	if c.DownloadSessionID != f.env.SessionID {
		t.Fatalf("Expected session %d, got %d", f.env.SessionID, c.DownloadSessionID)
	}
	if len(x.Extracted()) != 1 || x.Extracted()[0].ID != c.ID {
		t.Fatalf("Expected extracted list to hold the new row")
	}
}

func TestDirectGifvBecomesMP4(t *testing.T) {
	f := newFixture(t, allOn(), "x.com")
	x := NewDirect(f.env, f.at("https://x.com/clip.gifv?x=1"))
	x.Extract(context.Background())

	rows := f.rows(t)
	if len(rows) != 1 || rows[0].Extension != "mp4" || rows[0].URL != "https://x.com/clip.mp4?x=1" {
		t.Fatalf("Unexpected rows %+v", rows)
	}
}

func TestFilteredContentIsNotFailure(t *testing.T) {
	settings := allOn()
	settings.DownloadImages = false
	f := newFixture(t, settings, "x.com")
	x := NewDirect(f.env, f.at("https://x.com/a.jpg"))
	x.Extract(context.Background())

	if _, _, failed := x.Failure(); failed {
		t.Fatalf("Expected filtered content not to fail")
	}
	if rows := f.rows(t); len(rows) != 0 {
		t.Fatalf("Expected no rows, got %d", len(rows))
	}
}

func TestStoppedExtractorDoesNothing(t *testing.T) {
	f := newFixture(t, allOn(), "x.com")
	f.env.Signal.Stop()
	x := NewDirect(f.env, f.at("https://x.com/a.jpg"))
	x.Extract(context.Background())

	if _, _, failed := x.Failure(); failed {
		t.Fatalf("Expected no failure after stop")
	}
	if rows := f.rows(t); len(rows) != 0 {
		t.Fatalf("Expected no rows after stop, got %d", len(rows))
	}
}

type resolverFunc func(ctx context.Context, u string) (string, error)

func (f resolverFunc) ResolveURL(ctx context.Context, u string) (string, error) { return f(ctx, u) }

func TestGenericVideo(t *testing.T) {
	f := newFixture(t, allOn(), "youtube.com")
	f.env.Resolver = resolverFunc(func(context.Context, string) (string, error) {
		return "https://cdn.example.com/v/stream.webm?sig=1", nil
	})
	x := NewGenericVideo(f.env, f.at("https://youtube.com/watch?v=abc"))
	x.Extract(context.Background())

	rows := f.rows(t)
	if len(rows) != 1 || rows[0].Extension != "webm" {
		t.Fatalf("Unexpected rows %+v", rows)
	}
}

func TestPanicIsRecordedAsUnknownError(t *testing.T) {
	f := newFixture(t, allOn(), "youtube.com")
	f.env.Resolver = resolverFunc(func(context.Context, string) (string, error) {
		panic("boom")
	})
	x := NewGenericVideo(f.env, f.at("https://youtube.com/watch?v=abc"))
	x.Extract(context.Background())

	kind, _, failed := x.Failure()
	if !failed || kind != domain.UnknownError {
		t.Fatalf("Expected UNKNOWN_ERROR, got %v (failed=%v)", kind, failed)
	}
}

func TestSelfTextWritesFile(t *testing.T) {
	f := newFixture(t, allOn(), "self.pics")
	f.env.Provider.(*fakeProvider).subs["p1"] = &reddit.Submission{
		ID:       "p1",
		Title:    "Sunset",
		IsSelf:   true,
		SelfText: "hello **world**",
	}
	x := NewSelfText(f.env, f.at("https://www.reddit.com/r/pics/comments/p1/sunset/"))
	x.Extract(context.Background())

	if _, msg, failed := x.Failure(); failed {
		t.Fatalf("Expected success, got %s", msg)
	}
	rows := f.rows(t)
	if len(rows) != 1 || !rows[0].Downloaded || rows[0].Extension != "txt" {
		t.Fatalf("Expected one downloaded txt row, got %+v", rows)
	}
	data, err := readFile(filepath.Join(rows[0].DirectoryPath, "Sunset.txt"))
	if err != nil {
		t.Fatalf("Expected text file: %v", err)
	}
	if data != "Sunset\n\nhello **world**\n" {
		t.Fatalf("Unexpected text %q", data)
	}
}
