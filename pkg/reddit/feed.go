package reddit

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
)

// FeedLister discovers submissions from reddit's Atom feeds and resolves each
// entry through a Provider
type FeedLister struct {
	feedParser *gofeed.Parser
	http       *httpclient.HTTPClient
	provider   interface {
		Submission(ctx context.Context, id string) (*Submission, error)
	}
	baseURL string
}

var _ Lister = (*FeedLister)(nil)

// NewFeedLister creates a new feed lister
func NewFeedLister(baseURL string, http *httpclient.HTTPClient, provider Provider) *FeedLister {
	return &FeedLister{
		feedParser: gofeed.NewParser(),
		http:       http,
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// SubmissionIDs parses the feed of obj and returns the bare ids of its
// entries in feed order.
func (f *FeedLister) SubmissionIDs(ctx context.Context, obj *domain.RedditObject) ([]string, error) {
	feedURL := f.baseURL + listingPath(obj, "/.rss")
	if err := f.http.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := f.http.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &httpclient.StatusError{Code: resp.StatusCode, URL: feedURL}
	}

	feed, err := f.feedParser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	ids := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if id := entryID(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Listing resolves up to limit feed entries to submissions.
func (f *FeedLister) Listing(ctx context.Context, obj *domain.RedditObject, limit int) ([]*Submission, error) {
	ids, err := f.SubmissionIDs(ctx, obj)
	if err != nil {
		return nil, err
	}
	ids = truncate(ids, limit)
	out := make([]*Submission, 0, len(ids))
	for _, id := range ids {
		sub, err := f.provider.Submission(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// entryID extracts the submission id from an Atom entry, whose id is the
// fullname "t3_<id>". Comment entries are skipped.
func entryID(item *gofeed.Item) string {
	for _, candidate := range []string{item.GUID, item.Link} {
		if strings.HasPrefix(candidate, "t3_") {
			return strings.TrimPrefix(candidate, "t3_")
		}
		if i := strings.Index(candidate, "/comments/"); i >= 0 {
			rest := candidate[i+len("/comments/"):]
			if j := strings.Index(rest, "/"); j >= 0 {
				rest = rest[:j]
			}
			if rest != "" {
				return rest
			}
		}
	}
	return ""
}
