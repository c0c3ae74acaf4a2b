package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

const objectColumns = `id, name, object_type, settings, date_added, last_download`

func scanObject(row interface{ Scan(...interface{}) error }) (*domain.RedditObject, error) {
	var (
		o        domain.RedditObject
		otype    string
		settings string
	)
	if err := row.Scan(&o.ID, &o.Name, &otype, &settings, &o.DateAdded, &o.LastDownload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.ObjectType = domain.ObjectType(otype)
	if err := json.Unmarshal([]byte(settings), &o.Settings); err != nil {
		return nil, fmt.Errorf("decode settings for %s: %w", o.Name, err)
	}
	return &o, nil
}

// EnsureObject returns the object with the given name and type, creating it
// with the supplied settings if it does not exist yet.
func (s *SQLStore) EnsureObject(ctx context.Context, name string, objectType domain.ObjectType, defaults domain.ObjectSettings) (*domain.RedditObject, error) {
	settings, err := json.Marshal(defaults)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	var obj *domain.RedditObject
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO reddit_objects (name, object_type, settings, date_added, last_download)
			VALUES (?, ?, ?, ?, ?) ON CONFLICT (name, object_type) DO NOTHING`),
			name, string(objectType), string(settings), time.Now().UTC(), time.Time{})
		if err != nil {
			return fmt.Errorf("insert reddit object %s: %w", name, err)
		}
		row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+objectColumns+` FROM reddit_objects WHERE name = ? AND object_type = ?`),
			name, string(objectType))
		obj, err = scanObject(row)
		return err
	})
	return obj, err
}

// SaveObjectSettings replaces the download policy of an object.
func (s *SQLStore) SaveObjectSettings(ctx context.Context, id int64, settings domain.ObjectSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.exec(ctx, `UPDATE reddit_objects SET settings = ? WHERE id = ?`, string(data), id)
}

// GetObject loads a reddit object by id.
func (s *SQLStore) GetObject(ctx context.Context, id int64) (*domain.RedditObject, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+objectColumns+` FROM reddit_objects WHERE id = ?`), id)
	return scanObject(row)
}

// ListObjects returns every tracked object ordered by id.
func (s *SQLStore) ListObjects(ctx context.Context) ([]*domain.RedditObject, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+objectColumns+` FROM reddit_objects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reddit objects: %w", err)
	}
	defer rows.Close()

	var out []*domain.RedditObject
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetLastDownload records the newest post time seen for an object.
func (s *SQLStore) SetLastDownload(ctx context.Context, id int64, t time.Time) error {
	return s.exec(ctx, `UPDATE reddit_objects SET last_download = ? WHERE id = ?`, t.UTC(), id)
}
