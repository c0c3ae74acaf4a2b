package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
)

// ErrNotFound is returned when the provider has no such submission.
var ErrNotFound = errors.New("submission not found")

// Lister discovers new submissions for a tracked object
type Lister interface {
	Listing(ctx context.Context, obj *domain.RedditObject, limit int) ([]*Submission, error)
}

// Provider is the remote content provider consumed by the pipeline
type Provider interface {
	Lister
	Submission(ctx context.Context, id string) (*Submission, error)
	// Comments returns the top level comments of a submission.
	Comments(ctx context.Context, submissionID string, sort domain.CommentSort, limit int) ([]*Comment, error)
	// Replies returns up to limit direct replies of c.
	Replies(ctx context.Context, c *Comment, sort domain.CommentSort, limit int) ([]*Comment, error)
}

const pageSize = 100

// Client talks to the reddit JSON API
type Client struct {
	http    *httpclient.HTTPClient
	baseURL string
}

var _ Provider = (*Client)(nil)

// NewClient creates a new API client rooted at baseURL
func NewClient(baseURL string, http *httpclient.HTTPClient) *Client {
	return &Client{http: http, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) endpoint(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("raw_json", "1")
	return c.baseURL + path + "?" + params.Encode()
}

// Submission fetches one submission by its bare id
func (c *Client) Submission(ctx context.Context, id string) (*Submission, error) {
	var l Listing
	if _, err := c.http.GetJSON(ctx, c.endpoint("/by_id/t3_"+id+".json", nil), nil, &l); err != nil {
		return nil, fmt.Errorf("failed to fetch submission %s: %w", id, err)
	}
	subs, err := decodeSubmissions(&l)
	if err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return subs[0], nil
}

// commentPage fetches a comments page, which reddit returns as a pair of
// listings: the submission and then the comment forest.
func (c *Client) commentPage(ctx context.Context, path string, sort domain.CommentSort, limit int) ([]*Comment, bool, error) {
	params := url.Values{}
	params.Set("sort", sort.ProviderKeyword())
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var pair []Listing
	if _, err := c.http.GetJSON(ctx, c.endpoint(path, params), nil, &pair); err != nil {
		return nil, false, err
	}
	if len(pair) < 2 {
		return nil, false, fmt.Errorf("unexpected comment response with %d listings", len(pair))
	}
	return decodeComments(&pair[1])
}

// Comments returns the top level comments of a submission
func (c *Client) Comments(ctx context.Context, submissionID string, sort domain.CommentSort, limit int) ([]*Comment, error) {
	comments, _, err := c.commentPage(ctx, "/comments/"+submissionID+".json", sort, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments for %s: %w", submissionID, err)
	}
	return truncate(comments, limit), nil
}

// Replies returns the direct replies of a comment. Replies already embedded
// in the comment are used unless reddit truncated them.
func (c *Client) Replies(ctx context.Context, parent *Comment, sort domain.CommentSort, limit int) ([]*Comment, error) {
	if !parent.Replies.More {
		return truncate(parent.Replies.Comments, limit), nil
	}
	path := "/comments/" + parent.SubmissionID() + "/_/" + parent.ID + ".json"
	focus, _, err := c.commentPage(ctx, path, sort, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replies for %s: %w", parent.ID, err)
	}
	for _, f := range focus {
		if f.ID == parent.ID {
			return truncate(f.Replies.Comments, limit), nil
		}
	}
	return nil, nil
}

// Listing returns up to limit of the newest submissions of a user or a
// subreddit, newest first.
func (c *Client) Listing(ctx context.Context, obj *domain.RedditObject, limit int) ([]*Submission, error) {
	path := listingPath(obj, ".json")
	var out []*Submission
	after := ""
	for limit <= 0 || len(out) < limit {
		params := url.Values{}
		params.Set("sort", "new")
		n := pageSize
		if limit > 0 && limit-len(out) < n {
			n = limit - len(out)
		}
		params.Set("limit", strconv.Itoa(n))
		if after != "" {
			params.Set("after", after)
		}
		var l Listing
		if _, err := c.http.GetJSON(ctx, c.endpoint(path, params), nil, &l); err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", obj.Name, err)
		}
		subs, err := decodeSubmissions(&l)
		if err != nil {
			return nil, fmt.Errorf("failed to decode listing for %s: %w", obj.Name, err)
		}
		out = append(out, subs...)
		if l.Data.After == "" || len(subs) == 0 {
			break
		}
		after = l.Data.After
	}
	return truncate(out, limit), nil
}

func listingPath(obj *domain.RedditObject, suffix string) string {
	if obj.ObjectType == domain.UserObject {
		return "/user/" + url.PathEscape(obj.Name) + "/submitted" + suffix
	}
	return "/r/" + url.PathEscape(obj.Name) + "/new" + suffix
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
