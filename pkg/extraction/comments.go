package extraction

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/db"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/reddit"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/runner"
)

type pending struct {
	remote *reddit.Comment
	id     int64
}

// CommentHandler walks the reply tree of one post a level at a time, down to
// the configured depth. Comments that fail the extraction filter are pruned
// together with their replies.
type CommentHandler struct {
	runner.Base
	provider reddit.Provider
	store    db.Store
	post     *domain.Post
	settings domain.ObjectSettings
	log      logrus.FieldLogger

	working []pending
	depth   int

	// Found holds every stored comment in traversal order.
	Found []*domain.Comment
	// Download holds comments whose own text should be saved.
	Download []*domain.Comment
	// Links holds comments whose body should be scanned for links.
	Links []*domain.Comment
}

// NewCommentHandler creates a handler for post governed by settings
func NewCommentHandler(provider reddit.Provider, store db.Store, post *domain.Post, settings domain.ObjectSettings,
	signal *runner.Signal, log logrus.FieldLogger) *CommentHandler {
	return &CommentHandler{
		Base:     runner.Base{Signal: signal},
		provider: provider,
		store:    store,
		post:     post,
		settings: settings,
		log:      log,
	}
}

// Depth returns the level the traversal stopped at.
func (h *CommentHandler) Depth() int {
	return h.depth
}

// Run seeds the traversal with the top level comments and cascades until no
// comments are left to expand.
func (h *CommentHandler) Run(ctx context.Context) error {
	if !h.Continue() {
		return nil
	}
	top, err := h.provider.Comments(ctx, h.post.RedditID, h.settings.CommentSort, h.settings.MaxCommentReplies)
	if err != nil {
		return fmt.Errorf("fetch comments of %s: %w", h.post.RedditID, err)
	}
	if h.working, err = h.handleFound(ctx, top, 0); err != nil {
		return err
	}
	for len(h.working) > 0 {
		if !h.Continue() {
			return nil
		}
		if err := h.cascade(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *CommentHandler) cascade(ctx context.Context) error {
	h.depth++
	if h.depth >= h.settings.MaxCommentDepth {
		h.working = nil
		return nil
	}
	var next []pending
	for _, p := range h.working {
		if !h.Continue() {
			break
		}
		replies, err := h.provider.Replies(ctx, p.remote, h.settings.CommentSort, h.settings.MaxCommentReplies)
		if err != nil {
			return fmt.Errorf("fetch replies of %s: %w", p.remote.ID, err)
		}
		found, err := h.handleFound(ctx, replies, p.id)
		if err != nil {
			return err
		}
		next = append(next, found...)
	}
	h.working = next
	return nil
}

// handleFound stores the comments that pass the extraction filter and
// sorts them into the download and link lists.
func (h *CommentHandler) handleFound(ctx context.Context, comments []*reddit.Comment, parentID int64) ([]pending, error) {
	s := h.settings
	var out []pending
	for _, rc := range comments {
		if !s.ExtractComments || rc.Score < s.CommentScoreLimit {
			continue
		}
		c := &domain.Comment{
			RedditID:      rc.ID,
			PostID:        h.post.ID,
			ParentID:      parentID,
			AuthorName:    rc.Author,
			SubredditName: rc.Subreddit,
			Body:          rc.Body,
			BodyHTML:      rc.BodyHTML,
			Score:         rc.Score,
			Depth:         h.depth,
			DatePosted:    rc.Created(),
		}
		created, err := h.store.InsertComment(ctx, c)
		if err != nil {
			return nil, err
		}
		if !created {
			// resumed post: reload to learn whether it was finished before
			if stored, err := h.store.GetComment(ctx, c.ID); err == nil {
				c = stored
			}
		}
		h.Found = append(h.Found, c)
		if s.DownloadComments && rc.Score >= s.DownloadCommentScore {
			h.Download = append(h.Download, c)
		}
		if s.ExtractCommentLinks && rc.Score >= s.ExtractCommentLinksScore {
			h.Links = append(h.Links, c)
		}
		out = append(out, pending{remote: rc, id: c.ID})
	}
	h.log.WithFields(logrus.Fields{
		"post_id": h.post.ID,
		"depth":   h.depth,
		"found":   len(out),
	}).Debug("Handled comment generation")
	return out, nil
}
