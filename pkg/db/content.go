package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

const contentColumns = `id, title, extension, url, user_name, subreddit_name, post_id, comment_id,
	directory_path, download_title, downloaded, download_error, error_message, download_session_id, date_created`

func scanContent(row interface{ Scan(...interface{}) error }) (*domain.Content, error) {
	var (
		c                domain.Content
		comment, session sql.NullInt64
		kind             string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Extension, &c.URL, &c.UserName, &c.SubredditName, &c.PostID, &comment,
		&c.DirectoryPath, &c.DownloadTitle, &c.Downloaded, &kind, &c.ErrorMessage, &session, &c.DateCreated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.CommentID, c.DownloadSessionID = comment.Int64, session.Int64
	if c.DownloadError, err = domain.ParseErrorKind(kind); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateContent stores a new content row and sets its ID.
func (s *SQLStore) CreateContent(ctx context.Context, c *domain.Content) error {
	if c.DateCreated.IsZero() {
		c.DateCreated = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO content (title, extension, url, user_name, subreddit_name,
		post_id, comment_id, directory_path, download_title, downloaded, download_session_id, date_created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		c.Title, c.Extension, c.URL, c.UserName, c.SubredditName, c.PostID, nullID(c.CommentID),
		c.DirectoryPath, c.DownloadTitle, c.Downloaded, nullID(c.DownloadSessionID), c.DateCreated.UTC()).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert content %s: %w", c.URL, err)
	}
	return nil
}

// GetContent loads a content row by id.
func (s *SQLStore) GetContent(ctx context.Context, id int64) (*domain.Content, error) {
	return scanContent(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+contentColumns+` FROM content WHERE id = ?`), id))
}

// CountContentByURL returns how many content rows share url.
func (s *SQLStore) CountContentByURL(ctx context.Context, url string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM content WHERE url = ?`), url).Scan(&n)
	return n, err
}

// ContentForPost returns all content rows of a post in creation order.
func (s *SQLStore) ContentForPost(ctx context.Context, postID int64) ([]*domain.Content, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+contentColumns+` FROM content WHERE post_id = ? ORDER BY id`), postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query content: %w", err)
	}
	defer rows.Close()

	var out []*domain.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetContentLocation stores the resolved directory and download title.
func (s *SQLStore) SetContentLocation(ctx context.Context, id int64, dir, title string) error {
	return s.exec(ctx, `UPDATE content SET directory_path = ?, download_title = ? WHERE id = ?`, dir, title, id)
}

// MarkContentDownloaded is the successful terminal transition of a content
// row. It also increments the session download counter.
func (s *SQLStore) MarkContentDownloaded(ctx context.Context, id, sessionID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`UPDATE content SET downloaded = ?, download_error = '', error_message = '',
			download_session_id = ? WHERE id = ?`), true, nullID(sessionID), id)
		if err != nil {
			return fmt.Errorf("mark content %d downloaded: %w", id, err)
		}
		if sessionID == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE download_sessions SET downloaded_count = downloaded_count + 1 WHERE id = ?`), sessionID)
		return err
	})
}

// MarkContentFailed is the failed terminal transition of a content row.
func (s *SQLStore) MarkContentFailed(ctx context.Context, id int64, kind domain.ErrorKind, msg string) error {
	return s.exec(ctx, `UPDATE content SET downloaded = ?, download_error = ?, error_message = ? WHERE id = ?`,
		false, kind.String(), msg, id)
}

// PendingContent returns ids of content neither downloaded nor failed.
func (s *SQLStore) PendingContent(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id FROM content WHERE downloaded = ? AND download_error = '' ORDER BY id`), false)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending content: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
