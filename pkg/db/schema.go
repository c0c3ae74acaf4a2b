package db

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reddit_objects (
		id {{pk}},
		name TEXT NOT NULL,
		object_type TEXT NOT NULL,
		settings TEXT NOT NULL,
		date_added {{ts}} NOT NULL,
		last_download {{ts}} NOT NULL,
		UNIQUE (name, object_type)
	)`,
	`CREATE TABLE IF NOT EXISTS download_sessions (
		id {{pk}},
		name TEXT NOT NULL,
		start_time {{ts}} NOT NULL,
		end_time {{ts}} NOT NULL,
		extraction_threads INTEGER NOT NULL,
		download_threads INTEGER NOT NULL,
		extracted_count INTEGER NOT NULL DEFAULT 0,
		downloaded_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id {{pk}},
		reddit_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		domain TEXT NOT NULL,
		permalink TEXT NOT NULL,
		score INTEGER NOT NULL,
		is_self BOOLEAN NOT NULL,
		author_id BIGINT REFERENCES reddit_objects(id),
		author_name TEXT NOT NULL,
		subreddit_id BIGINT REFERENCES reddit_objects(id),
		subreddit_name TEXT NOT NULL,
		significant_id BIGINT NOT NULL REFERENCES reddit_objects(id),
		date_posted {{ts}} NOT NULL,
		download_session_id BIGINT REFERENCES download_sessions(id),
		extracted BOOLEAN NOT NULL DEFAULT FALSE,
		extraction_error TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id {{pk}},
		reddit_id TEXT NOT NULL UNIQUE,
		post_id BIGINT NOT NULL REFERENCES posts(id),
		parent_id BIGINT REFERENCES comments(id),
		author_name TEXT NOT NULL,
		subreddit_name TEXT NOT NULL,
		body TEXT NOT NULL,
		body_html TEXT NOT NULL,
		score INTEGER NOT NULL,
		depth INTEGER NOT NULL,
		date_posted {{ts}} NOT NULL,
		extracted BOOLEAN NOT NULL DEFAULT FALSE,
		extraction_error TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS content (
		id {{pk}},
		title TEXT NOT NULL,
		extension TEXT NOT NULL,
		url TEXT NOT NULL,
		user_name TEXT NOT NULL,
		subreddit_name TEXT NOT NULL,
		post_id BIGINT NOT NULL REFERENCES posts(id),
		comment_id BIGINT REFERENCES comments(id),
		directory_path TEXT NOT NULL,
		download_title TEXT NOT NULL,
		downloaded BOOLEAN NOT NULL DEFAULT FALSE,
		download_error TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		download_session_id BIGINT REFERENCES download_sessions(id),
		date_created {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS content_url_idx ON content (url)`,
	`CREATE INDEX IF NOT EXISTS content_post_idx ON content (post_id)`,
	`CREATE INDEX IF NOT EXISTS comments_post_idx ON comments (post_id)`,
}

func (s *SQLStore) migrate(ctx context.Context) error {
	pk, ts := "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	if s.sqlite() {
		pk, ts = "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	}
	r := strings.NewReplacer("{{pk}}", pk, "{{ts}}", ts)
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
