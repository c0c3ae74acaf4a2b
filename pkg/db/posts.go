package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

const postColumns = `id, reddit_id, title, url, domain, permalink, score, is_self,
	author_id, author_name, subreddit_id, subreddit_name, significant_id, date_posted,
	download_session_id, extracted, extraction_error, error_message`

func scanPost(row interface{ Scan(...interface{}) error }) (*domain.Post, error) {
	var (
		p                          domain.Post
		author, subreddit, session sql.NullInt64
		kind                       string
	)
	err := row.Scan(&p.ID, &p.RedditID, &p.Title, &p.URL, &p.Domain, &p.Permalink, &p.Score, &p.IsSelf,
		&author, &p.AuthorName, &subreddit, &p.SubredditName, &p.SignificantID, &p.DatePosted,
		&session, &p.Extracted, &kind, &p.ErrorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.AuthorID, p.SubredditID, p.DownloadSessionID = author.Int64, subreddit.Int64, session.Int64
	if p.ExtractionError, err = domain.ParseErrorKind(kind); err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPost stores p or adopts the id of an existing row with the same
// reddit id.
func (s *SQLStore) InsertPost(ctx context.Context, p *domain.Post) (bool, error) {
	if p.SignificantID == 0 {
		return false, fmt.Errorf("post %s has no significant reddit object", p.RedditID)
	}
	created := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, s.rebind(`SELECT id FROM posts WHERE reddit_id = ?`), p.RedditID).Scan(&id)
		switch {
		case err == nil:
			p.ID = id
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}
		err = tx.QueryRowContext(ctx, s.rebind(`INSERT INTO posts (reddit_id, title, url, domain, permalink, score,
			is_self, author_id, author_name, subreddit_id, subreddit_name, significant_id, date_posted,
			download_session_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			p.RedditID, p.Title, p.URL, p.Domain, p.Permalink, p.Score, p.IsSelf,
			nullID(p.AuthorID), p.AuthorName, nullID(p.SubredditID), p.SubredditName, p.SignificantID,
			p.DatePosted.UTC(), nullID(p.DownloadSessionID)).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("insert post %s: %w", p.RedditID, err)
		}
		created = true
		return nil
	})
	return created, err
}

// GetPost loads a post by id.
func (s *SQLStore) GetPost(ctx context.Context, id int64) (*domain.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+postColumns+` FROM posts WHERE id = ?`), id))
}

// GetPostByRedditID loads a post by its provider id.
func (s *SQLStore) GetPostByRedditID(ctx context.Context, redditID string) (*domain.Post, error) {
	return scanPost(s.db.QueryRowContext(ctx, s.rebind(`SELECT `+postColumns+` FROM posts WHERE reddit_id = ?`), redditID))
}

// MarkPostExtracted flags the post as fully extracted and counts it against
// its session.
func (s *SQLStore) MarkPostExtracted(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(`UPDATE posts SET extracted = ? WHERE id = ? AND extracted = ?`), true, id, false)
		if err != nil {
			return fmt.Errorf("mark post %d extracted: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, s.rebind(`UPDATE download_sessions SET extracted_count = extracted_count + 1
			WHERE id = (SELECT download_session_id FROM posts WHERE id = ?)`), id)
		return err
	})
}

// MarkPostFailed records a terminal extraction error.
func (s *SQLStore) MarkPostFailed(ctx context.Context, id int64, kind domain.ErrorKind, msg string) error {
	return s.exec(ctx, `UPDATE posts SET extracted = ?, extraction_error = ?, error_message = ? WHERE id = ?`,
		false, kind.String(), msg, id)
}

// UnfinishedPosts returns posts that were neither extracted nor failed,
// oldest first.
func (s *SQLStore) UnfinishedPosts(ctx context.Context) ([]*domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+postColumns+` FROM posts
		WHERE extracted = ? AND extraction_error = '' ORDER BY id`), false)
	if err != nil {
		return nil, fmt.Errorf("failed to query unfinished posts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
