package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

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

// Extractor turns one url into zero or more persisted content rows.
type Extractor interface {
	Name() string
	Extract(ctx context.Context)
	// Extracted returns the rows created by the last Extract call.
	Extracted() []*domain.Content
	// Failure reports the error of the last Extract call, if any.
	Failure() (domain.ErrorKind, string, bool)
}

// Error is a classified extraction failure
type Error struct {
	Kind domain.ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Fail builds an *Error with a formatted message.
func Fail(kind domain.ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Classify maps any error to an error kind and message.
func Classify(err error) (domain.ErrorKind, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, e.Msg
	}
	return httpclient.Kind(err), err.Error()
}

// Env bundles the collaborators shared by every extractor of a session.
type Env struct {
	Store     db.Store
	Filter    *filter.ContentFilter
	Web       *httpclient.HTTPClient
	API       *httpclient.HTTPClient
	Provider  reddit.Provider
	Settings  *config.Settings
	Merges    *merge.Registry
	Names     *naming.Registry
	Resolver  URLResolver
	Signal    *runner.Signal
	Log       logrus.FieldLogger
	SessionID int64
}

// Source is what an extractor works on: a url found in a post or comment.
type Source struct {
	Post    *domain.Post
	Comment *domain.Comment
	// Object is the significant reddit object that governs settings and
	// naming.
	Object *domain.RedditObject
	// Submission is the provider record of Post. It may be nil when a post
	// is resumed from the store.
	Submission *reddit.Submission
	URL        string
	// LinkNumber numbers links taken from a body that held more than one.
	LinkNumber int
}

// Option adjusts the naming of a single content row
type Option func(*naming.Context)

// WithSequence numbers an item of an album or gallery.
func WithSequence(n int) Option {
	return func(c *naming.Context) { c.Sequence = n }
}

// WithModifier appends a suffix such as "(audio)" to the title.
func WithModifier(m string) Option {
	return func(c *naming.Context) { c.Modifier = m }
}

// WithMediaID records the provider id of the media item.
func WithMediaID(id string) Option {
	return func(c *naming.Context) { c.MediaID = id }
}

// Base carries the state and helpers every variant shares.
type Base struct {
	runner.Base
	env       *Env
	src       Source
	extracted []*domain.Content
	failed    bool
	kind      domain.ErrorKind
	msg       string
}

func newBase(env *Env, src Source) Base {
	return Base{Base: runner.Base{Signal: env.Signal}, env: env, src: src}
}

// Extracted returns the content rows created so far.
func (b *Base) Extracted() []*domain.Content {
	return b.extracted
}

// Failure reports the classified error of the last run.
func (b *Base) Failure() (domain.ErrorKind, string, bool) {
	return b.kind, b.msg, b.failed
}

func (b *Base) log() logrus.FieldLogger {
	return b.env.Log.WithFields(logrus.Fields{
		"url":     b.src.URL,
		"post_id": b.src.Post.ID,
	})
}

// run executes fn, converting errors and panics into a recorded failure.
func (b *Base) run(ctx context.Context, name string, fn func(context.Context) error) {
	b.extracted, b.failed, b.kind, b.msg = nil, false, domain.NoError, ""
	if !b.Continue() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.fail(domain.UnknownError, fmt.Sprintf("%s extractor panicked: %v", name, r))
		}
	}()
	if err := fn(ctx); err != nil {
		kind, msg := Classify(err)
		b.fail(kind, msg)
	}
}

func (b *Base) fail(kind domain.ErrorKind, msg string) {
	b.failed, b.kind, b.msg = true, kind, msg
	b.log().WithField("error_kind", kind.String()).Warn(msg)
}

func (b *Base) namingContext() (naming.Context, string, string) {
	s := b.src.Object.Settings
	if b.src.Comment != nil {
		return naming.CommentContext(b.src.Post, b.src.Comment, b.src.Object.Name), s.CommentTitleTemplate, s.CommentPathTemplate
	}
	return naming.PostContext(b.src.Post, b.src.Object.Name), s.PostTitleTemplate, s.PostPathTemplate
}

// MakeContent filters, names and stores one content row. A rejection by the
// content filter is not a failure: it returns nil with no error.
func (b *Base) MakeContent(ctx context.Context, rawURL, ext string, opts ...Option) (*domain.Content, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return nil, Fail(domain.UnrecognizedExtension, "no extension for %s", rawURL)
	}

	candidate := filter.Candidate{Post: b.src.Post, Settings: b.src.Object.Settings, URL: rawURL, Extension: ext}
	if keep, reason := b.env.Filter.Check(ctx, candidate); !keep {
		b.log().WithField("content_url", rawURL).Debugf("Content filtered: %s", reason)
		return nil, nil
	}

	nctx, titleTmpl, pathTmpl := b.namingContext()
	nctx.LinkNumber = b.src.LinkNumber
	for _, opt := range opts {
		opt(&nctx)
	}
	title := naming.Title(titleTmpl, nctx)

	c := &domain.Content{
		Title:             title,
		Extension:         ext,
		URL:               rawURL,
		UserName:          b.src.Post.AuthorName,
		SubredditName:     b.src.Post.SubredditName,
		PostID:            b.src.Post.ID,
		DirectoryPath:     naming.Path(b.env.Settings.OutputDir, pathTmpl, nctx),
		DownloadTitle:     title,
		DownloadSessionID: b.env.SessionID,
	}
	if b.src.Comment != nil {
		c.CommentID = b.src.Comment.ID
		c.UserName = b.src.Comment.AuthorName
	}
	if err := b.env.Store.CreateContent(ctx, c); err != nil {
		return nil, err
	}
	b.extracted = append(b.extracted, c)
	return c, nil
}

// submission returns the provider record of the post, fetching it when the
// source does not carry one.
func (b *Base) submission(ctx context.Context) (*reddit.Submission, error) {
	if s := b.src.Submission; s != nil && s.ID == b.src.Post.RedditID {
		return s, nil
	}
	s, err := b.env.Provider.Submission(ctx, b.src.Post.RedditID)
	if err != nil {
		return nil, err
	}
	b.src.Submission = s
	return s, nil
}

// origin follows a crosspost to the submission that holds the media.
func (b *Base) origin(ctx context.Context) (*reddit.Submission, error) {
	s, err := b.submission(ctx)
	if err != nil {
		return nil, err
	}
	if !s.IsCrosspost() {
		return s, nil
	}
	if len(s.CrosspostParentList) > 0 {
		return s.CrosspostParentList[0], nil
	}
	return b.env.Provider.Submission(ctx, s.ParentID())
}

// ExtensionFromURL returns the lowercased extension of the url path.
func ExtensionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
}

func lastSegment(u *url.URL) string {
	segs := segments(u)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

func segments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stripExt(s string) string {
	return strings.TrimSuffix(s, path.Ext(s))
}
