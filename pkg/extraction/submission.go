package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/extractor"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/links"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/telemetry"
)

// Enqueuer receives the ids of content rows ready for download.
type Enqueuer interface {
	Enqueue(ids ...int64)
}

// EnqueueFunc adapts a function to Enqueuer
type EnqueueFunc func(ids ...int64)

func (f EnqueueFunc) Enqueue(ids ...int64) { f(ids...) }

// Deps are the collaborators shared by every handler of a session.
type Deps struct {
	Env   *extractor.Env
	Table *extractor.Table
	Sink  *telemetry.Sink
}

// PostFromSubmission builds the post row for a newly listed submission.
func PostFromSubmission(sub *reddit.Submission, significant *domain.RedditObject, sessionID int64) *domain.Post {
	p := &domain.Post{
		RedditID:          sub.ID,
		Title:             sub.Title,
		URL:               sub.URL,
		Domain:            sub.Domain,
		Permalink:         sub.Permalink,
		Score:             sub.Score,
		IsSelf:            sub.IsSelf,
		AuthorName:        sub.Author,
		SubredditName:     sub.Subreddit,
		SignificantID:     significant.ID,
		DatePosted:        sub.Created(),
		DownloadSessionID: sessionID,
	}
	switch {
	case significant.ObjectType == domain.UserObject && strings.EqualFold(significant.Name, sub.Author):
		p.AuthorID = significant.ID
	case significant.ObjectType == domain.SubredditObject && strings.EqualFold(significant.Name, sub.Subreddit):
		p.SubredditID = significant.ID
	}
	return p
}

// Permalink returns the absolute form of a reddit permalink.
func Permalink(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return links.DefaultBase + p
}

// SubmissionHandler extracts one post: its own url or text, then its
// comments. The post is marked extracted only if every step succeeded.
type SubmissionHandler struct {
	runner.Base
	deps     Deps
	out      Enqueuer
	post     *domain.Post
	object   *domain.RedditObject
	sub      *reddit.Submission
	failed   bool
	stopped  bool
	resuming bool
}

// NewSubmissionHandler creates a handler for post. sub may be nil when the
// post is resumed from the store.
func NewSubmissionHandler(deps Deps, out Enqueuer, post *domain.Post, object *domain.RedditObject, sub *reddit.Submission) *SubmissionHandler {
	return &SubmissionHandler{
		Base:   runner.Base{Signal: deps.Env.Signal},
		deps:   deps,
		out:    out,
		post:   post,
		object: object,
		sub:    sub,
	}
}

// Post returns the post being extracted.
func (h *SubmissionHandler) Post() *domain.Post { return h.post }

// Resuming makes the handler skip the post's own content when a previous
// session already created rows for it.
func (h *SubmissionHandler) Resuming() *SubmissionHandler {
	h.resuming = true
	return h
}

// Failed reports whether any step failed.
func (h *SubmissionHandler) Failed() bool {
	return h.failed
}

func (h *SubmissionHandler) settings() domain.ObjectSettings {
	return h.object.Settings
}

// ExtractSubmission runs every extraction step of the post.
func (h *SubmissionHandler) ExtractSubmission(ctx context.Context) {
	if !h.Continue() {
		return
	}
	store := h.deps.Env.Store

	if h.alreadyHasContent(ctx) {
		h.logger(h.post.URL).Debug("Post content was extracted by an earlier session")
	} else if h.post.IsSelf {
		h.ExtractSelfPost(ctx)
	} else {
		h.ExtractSubmissionContent(ctx)
	}
	if h.settings().ExtractComments {
		h.ExtractComments(ctx)
	}

	if h.failed || h.stopped || !h.Continue() {
		return
	}
	if err := store.MarkPostExtracted(ctx, h.post.ID); err != nil {
		h.logger("").WithError(err).Error("Failed to mark post extracted")
		return
	}
	h.post.Extracted = true
}

func (h *SubmissionHandler) alreadyHasContent(ctx context.Context) bool {
	if !h.resuming {
		return false
	}
	rows, err := h.deps.Env.Store.ContentForPost(ctx, h.post.ID)
	if err != nil {
		return false
	}
	for _, c := range rows {
		if c.CommentID == 0 {
			return true
		}
	}
	return false
}

// ExtractSubmissionContent resolves the post url through the dispatch table.
func (h *SubmissionHandler) ExtractSubmissionContent(ctx context.Context) bool {
	src := h.source(h.post.URL)
	kind, msg, ok := h.runLink(ctx, src)
	if !ok {
		h.failPost(ctx, src.URL, kind, msg)
	}
	return ok
}

// ExtractSelfPost saves the post text and the links in its body, each when
// the governing object enables it.
func (h *SubmissionHandler) ExtractSelfPost(ctx context.Context) bool {
	s := h.settings()
	ok := true
	if s.DownloadSelfPostText {
		src := h.source(Permalink(h.post.Permalink))
		x := extractor.NewSelfText(h.deps.Env, src)
		if kind, msg, done := h.run(ctx, x); !done {
			h.failPost(ctx, src.URL, kind, msg)
			ok = false
		}
	}
	if !s.ExtractSelfPostLinks || !h.Continue() {
		return ok
	}

	sub, err := h.submission(ctx)
	if err != nil {
		kind, msg := extractor.Classify(err)
		h.failPost(ctx, h.post.URL, kind, msg)
		return false
	}
	urls, err := bodyLinks(sub.SelfTextHTML, sub.SelfText)
	if err != nil {
		h.failPost(ctx, h.post.URL, domain.TextLinkFailure, err.Error())
		return false
	}
	for i, u := range urls {
		if !h.Continue() {
			break
		}
		src := h.source(u)
		src.LinkNumber = linkNumber(i, len(urls))
		if kind, msg, done := h.runLink(ctx, src); !done {
			h.failPost(ctx, u, domain.TextLinkFailure, fmt.Sprintf("%s: %s", kind, msg))
			ok = false
		}
	}
	return ok
}

// ExtractComments drives the comment handler, then saves comment text and
// extracts links from comment bodies. Failures of a comment are recorded on
// that comment, not on the post.
func (h *SubmissionHandler) ExtractComments(ctx context.Context) bool {
	env := h.deps.Env
	ch := NewCommentHandler(env.Provider, env.Store, h.post, h.settings(), env.Signal, env.Log)
	if err := ch.Run(ctx); err != nil {
		kind, msg := extractor.Classify(err)
		h.failPost(ctx, Permalink(h.post.Permalink), kind, msg)
		return false
	}

	failed := make(map[int64]bool)
	for _, c := range ch.Download {
		if c.Extracted || !h.Continue() {
			continue
		}
		src := h.commentSource(c, Permalink(h.post.Permalink)+c.RedditID+"/")
		if kind, msg, done := h.run(ctx, extractor.NewSelfText(env, src)); !done {
			h.failComment(ctx, c, src.URL, kind, msg)
			failed[c.ID] = true
		}
	}
	for _, c := range ch.Links {
		if c.Extracted || failed[c.ID] || !h.Continue() {
			continue
		}
		urls, err := bodyLinks(c.BodyHTML, c.Body)
		if err != nil {
			h.failComment(ctx, c, "", domain.TextLinkFailure, err.Error())
			failed[c.ID] = true
			continue
		}
		for i, u := range urls {
			src := h.commentSource(c, u)
			src.LinkNumber = linkNumber(i, len(urls))
			if kind, msg, done := h.runLink(ctx, src); !done {
				h.failComment(ctx, c, u, domain.TextLinkFailure, fmt.Sprintf("%s: %s", kind, msg))
				failed[c.ID] = true
				break
			}
		}
	}

	if !h.Continue() {
		h.stopped = true
		return true
	}
	for _, c := range ch.Found {
		if c.Extracted || failed[c.ID] {
			continue
		}
		if err := env.Store.MarkCommentExtracted(ctx, c.ID); err != nil {
			env.Log.WithError(err).WithField("comment_id", c.ID).Error("Failed to mark comment extracted")
		}
	}
	return true
}

func (h *SubmissionHandler) source(u string) extractor.Source {
	return extractor.Source{Post: h.post, Object: h.object, Submission: h.sub, URL: u}
}

func (h *SubmissionHandler) commentSource(c *domain.Comment, u string) extractor.Source {
	src := h.source(u)
	src.Comment = c
	return src
}

func (h *SubmissionHandler) submission(ctx context.Context) (*reddit.Submission, error) {
	if h.sub != nil {
		return h.sub, nil
	}
	sub, err := h.deps.Env.Provider.Submission(ctx, h.post.RedditID)
	if err != nil {
		return nil, err
	}
	h.sub = sub
	return sub, nil
}

// runLink assigns an extractor to src.URL and runs it. A url no extractor
// accepts is an unsupported domain.
func (h *SubmissionHandler) runLink(ctx context.Context, src extractor.Source) (domain.ErrorKind, string, bool) {
	x, ok := h.deps.Table.Extractor(h.deps.Env, src)
	if !ok {
		return domain.UnsupportedDomain, fmt.Sprintf("no extractor for %s", src.URL), false
	}
	return h.run(ctx, x)
}

// run executes x and hands its content to the download stage.
func (h *SubmissionHandler) run(ctx context.Context, x extractor.Extractor) (domain.ErrorKind, string, bool) {
	x.Extract(ctx)
	if kind, msg, failed := x.Failure(); failed {
		return kind, msg, false
	}
	if !h.Continue() {
		h.stopped = true
	}
	var ids []int64
	for _, c := range x.Extracted() {
		ids = append(ids, c.ID)
	}
	if len(ids) > 0 {
		h.out.Enqueue(ids...)
	}
	return domain.NoError, "", true
}

func (h *SubmissionHandler) logger(u string) logrus.FieldLogger {
	return h.deps.Env.Log.WithFields(logrus.Fields{
		"title":         h.post.Title,
		"author":        h.post.AuthorName,
		"subreddit":     h.post.SubredditName,
		"url":           u,
		"submission_id": h.post.RedditID,
		"posted":        h.post.DatePosted.Format(time.RFC3339),
	})
}

// failPost records the first failure on the post.
func (h *SubmissionHandler) failPost(ctx context.Context, u string, kind domain.ErrorKind, msg string) {
	h.logger(u).WithField("error_kind", kind.String()).Error(msg)
	h.deps.Sink.Error("Failed to extract %s from post %q: %s", u, h.post.Title, msg)
	if h.failed {
		return
	}
	h.failed = true
	h.post.ExtractionError, h.post.ErrorMessage = kind, msg
	if err := h.deps.Env.Store.MarkPostFailed(context.WithoutCancel(ctx), h.post.ID, kind, msg); err != nil {
		h.logger(u).WithError(err).Error("Failed to record post failure")
	}
}

func (h *SubmissionHandler) failComment(ctx context.Context, c *domain.Comment, u string, kind domain.ErrorKind, msg string) {
	h.logger(u).WithFields(logrus.Fields{
		"comment_id": c.RedditID,
		"error_kind": kind.String(),
	}).Error(msg)
	h.deps.Sink.Error("Failed to extract %s from comment %s: %s", u, c.RedditID, msg)
	if err := h.deps.Env.Store.MarkCommentFailed(context.WithoutCancel(ctx), c.ID, kind, msg); err != nil {
		h.logger(u).WithError(err).Error("Failed to record comment failure")
	}
}

// bodyLinks prefers the rendered HTML body and falls back to markdown.
func bodyLinks(bodyHTML, markdown string) ([]string, error) {
	if strings.TrimSpace(bodyHTML) != "" {
		return links.FromHTML(bodyHTML)
	}
	return links.FromMarkdown(markdown), nil
}

// linkNumber numbers links only when a body holds more than one.
func linkNumber(i, n int) int {
	if n > 1 {
		return i + 1
	}
	return 0
}
