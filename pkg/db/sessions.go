package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// CreateSession stores a new download session and sets its ID.
func (s *SQLStore) CreateSession(ctx context.Context, ds *domain.DownloadSession) error {
	row := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO download_sessions
		(name, start_time, end_time, extraction_threads, download_threads)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		ds.Name, ds.StartTime.UTC(), ds.EndTime.UTC(), ds.ExtractionThreads, ds.DownloadThreads)
	if err := row.Scan(&ds.ID); err != nil {
		return fmt.Errorf("insert session %s: %w", ds.Name, err)
	}
	return nil
}

// GetSession loads a session including its counters.
func (s *SQLStore) GetSession(ctx context.Context, id int64) (*domain.DownloadSession, error) {
	var ds domain.DownloadSession
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, start_time, end_time, extraction_threads,
		download_threads, extracted_count, downloaded_count FROM download_sessions WHERE id = ?`), id).
		Scan(&ds.ID, &ds.Name, &ds.StartTime, &ds.EndTime, &ds.ExtractionThreads,
			&ds.DownloadThreads, &ds.ExtractedCount, &ds.DownloadedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &ds, err
}

// FinishSession stamps the end time of a session.
func (s *SQLStore) FinishSession(ctx context.Context, id int64, end time.Time) error {
	return s.exec(ctx, `UPDATE download_sessions SET end_time = ? WHERE id = ?`, end.UTC(), id)
}
