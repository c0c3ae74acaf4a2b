package db

import (
	"context"
	"errors"
	"time"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence surface used by the pipeline. Every method is a
// short self-contained transaction, so workers never share one.
type Store interface {
	EnsureObject(ctx context.Context, name string, objectType domain.ObjectType, defaults domain.ObjectSettings) (*domain.RedditObject, error)
	SaveObjectSettings(ctx context.Context, id int64, settings domain.ObjectSettings) error
	GetObject(ctx context.Context, id int64) (*domain.RedditObject, error)
	ListObjects(ctx context.Context) ([]*domain.RedditObject, error)
	SetLastDownload(ctx context.Context, id int64, t time.Time) error

	CreateSession(ctx context.Context, s *domain.DownloadSession) error
	GetSession(ctx context.Context, id int64) (*domain.DownloadSession, error)
	FinishSession(ctx context.Context, id int64, end time.Time) error

	// InsertPost stores p unless a post with the same reddit id exists, in
	// which case p.ID is set to the existing row. It reports whether a row
	// was created.
	InsertPost(ctx context.Context, p *domain.Post) (bool, error)
	GetPost(ctx context.Context, id int64) (*domain.Post, error)
	GetPostByRedditID(ctx context.Context, redditID string) (*domain.Post, error)
	MarkPostExtracted(ctx context.Context, id int64) error
	MarkPostFailed(ctx context.Context, id int64, kind domain.ErrorKind, msg string) error
	UnfinishedPosts(ctx context.Context) ([]*domain.Post, error)

	InsertComment(ctx context.Context, c *domain.Comment) (bool, error)
	GetComment(ctx context.Context, id int64) (*domain.Comment, error)
	CommentsForPost(ctx context.Context, postID int64) ([]*domain.Comment, error)
	MarkCommentExtracted(ctx context.Context, id int64) error
	MarkCommentFailed(ctx context.Context, id int64, kind domain.ErrorKind, msg string) error

	CreateContent(ctx context.Context, c *domain.Content) error
	GetContent(ctx context.Context, id int64) (*domain.Content, error)
	CountContentByURL(ctx context.Context, url string) (int, error)
	ContentForPost(ctx context.Context, postID int64) ([]*domain.Content, error)
	// SetContentLocation records the collision-free path a download was
	// written to.
	SetContentLocation(ctx context.Context, id int64, dir, title string) error
	MarkContentDownloaded(ctx context.Context, id, sessionID int64) error
	MarkContentFailed(ctx context.Context, id int64, kind domain.ErrorKind, msg string) error
	PendingContent(ctx context.Context) ([]int64, error)

	Close() error
}
