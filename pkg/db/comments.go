package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

const commentColumns = `id, reddit_id, post_id, parent_id, author_name, subreddit_name, body, body_html,
	score, depth, date_posted, extracted, extraction_error, error_message`

func scanComment(row interface{ Scan(...interface{}) error }) (*domain.Comment, error) {
	var (
		c      domain.Comment
		parent sql.NullInt64
		kind   string
	)
	err := row.Scan(&c.ID, &c.RedditID, &c.PostID, &parent, &c.AuthorName, &c.SubredditName, &c.Body, &c.BodyHTML,
		&c.Score, &c.Depth, &c.DatePosted, &c.Extracted, &kind, &c.ErrorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.ParentID = parent.Int64
	if c.ExtractionError, err = domain.ParseErrorKind(kind); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertComment stores c or adopts the id of an existing row with the same
// reddit id. A parent, when set, must belong to the same post.
func (s *SQLStore) InsertComment(ctx context.Context, c *domain.Comment) (bool, error) {
	created := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if c.ParentID != 0 {
			var parentPost int64
			err := tx.QueryRowContext(ctx, s.rebind(`SELECT post_id FROM comments WHERE id = ?`), c.ParentID).Scan(&parentPost)
			if err != nil {
				return fmt.Errorf("load parent comment %d: %w", c.ParentID, err)
			}
			if parentPost != c.PostID {
				return fmt.Errorf("parent comment %d belongs to post %d, not %d", c.ParentID, parentPost, c.PostID)
			}
		}
		var id int64
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT id FROM comments WHERE reddit_id = ?`), c.RedditID).Scan(&id)
		switch {
		case err == nil:
			c.ID = id
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		err = tx.QueryRowContext(ctx, s.rebind(`INSERT INTO comments (reddit_id, post_id, parent_id, author_name,
			subreddit_name, body, body_html, score, depth, date_posted) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			c.RedditID, c.PostID, nullID(c.ParentID), c.AuthorName, c.SubredditName, c.Body, c.BodyHTML,
			c.Score, c.Depth, c.DatePosted.UTC()).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert comment %s: %w", c.RedditID, err)
		}
		created = true
		return nil
	})
	return created, err
}

// GetComment loads a comment by id.
func (s *SQLStore) GetComment(ctx context.Context, id int64) (*domain.Comment, error) {
	return scanComment(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+commentColumns+` FROM comments WHERE id = ?`), id))
}

// CommentsForPost returns the stored comments of a post in insertion order.
func (s *SQLStore) CommentsForPost(ctx context.Context, postID int64) ([]*domain.Comment, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+commentColumns+` FROM comments WHERE post_id = ? ORDER BY id`), postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkCommentExtracted flags a comment's links as extracted.
func (s *SQLStore) MarkCommentExtracted(ctx context.Context, id int64) error {
	return s.exec(ctx, `UPDATE comments SET extracted = ? WHERE id = ?`, true, id)
}

// MarkCommentFailed records a terminal extraction error on one comment.
func (s *SQLStore) MarkCommentFailed(ctx context.Context, id int64, kind domain.ErrorKind, msg string) error {
	return s.exec(ctx, `UPDATE comments SET extracted = ?, extraction_error = ?, error_message = ? WHERE id = ?`,
		false, kind.String(), msg, id)
}
