package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UpsertChannel creates or updates a channel row and returns its
// internal ID.
func (s *Store) UpsertChannel(ctx context.Context, youtubeID, title string) (string, error) {
	now := time.Now()

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM channels WHERE youtube_id = ?`, youtubeID).Scan(&id)
	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx,
			`UPDATE channels SET title = ?, updated_at = ? WHERE id = ?`,
			title, now, id)
		if err != nil {
			return "", &StorageError{Op: "update", Entity: "channel", Err: err}
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.New().String()
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO channels (id, youtube_id, title, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id, youtubeID, title, now, now)
		if err != nil {
			return "", &StorageError{Op: "save", Entity: "channel", Err: err}
		}
		return id, nil
	default:
		return "", &StorageError{Op: "get", Entity: "channel", Err: err}
	}
}

// SaveVideo inserts or updates a video by its YouTube ID. New rows get
// an internal UUID; existing rows keep theirs. ImportStatus is written
// as given (the importer sets StatusProcessing here and a terminal
// status via MarkImportStatus).
func (s *Store) SaveVideo(ctx context.Context, v *Video) error {
	now := time.Now()

	var existingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM videos WHERE youtube_id = ?`, v.YouTubeID).Scan(&existingID)
	switch {
	case err == nil:
		v.ID = existingID
		_, err = s.db.ExecContext(ctx,
			`UPDATE videos SET channel_id = ?, title = ?, description = ?,
			 thumbnail_url = ?, published_at = ?, duration_seconds = ?, kind = ?,
			 view_count = ?, like_count = ?, comment_count = ?,
			 import_status = ?, import_error = ?, updated_at = ?
			 WHERE id = ?`,
			v.ChannelID, v.Title, v.Description,
			v.ThumbnailURL, v.PublishedAt, v.DurationSeconds, v.Kind,
			v.ViewCount, v.LikeCount, v.CommentCount,
			v.ImportStatus, v.ImportError, now,
			v.ID)
		if err != nil {
			return &StorageError{Op: "update", Entity: "video", Err: err}
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.CreatedAt = now
		v.UpdatedAt = now
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO videos (id, youtube_id, channel_id, title, description,
			 thumbnail_url, published_at, duration_seconds, kind,
			 view_count, like_count, comment_count,
			 import_status, import_error, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.YouTubeID, v.ChannelID, v.Title, v.Description,
			v.ThumbnailURL, v.PublishedAt, v.DurationSeconds, v.Kind,
			v.ViewCount, v.LikeCount, v.CommentCount,
			v.ImportStatus, v.ImportError, now, now)
		if err != nil {
			return &StorageError{Op: "save", Entity: "video", Err: err}
		}
		return nil
	default:
		return &StorageError{Op: "get", Entity: "video", Err: err}
	}
}

// GetVideo fetches a video by YouTube ID. Returns ErrNotFound (wrapped)
// if absent.
func (s *Store) GetVideo(ctx context.Context, youtubeID string) (*Video, error) {
	v := &Video{}
	var publishedAt, statsRefreshedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, youtube_id, channel_id, title, description, thumbnail_url,
		 published_at, duration_seconds, kind, view_count, like_count,
		 comment_count, stats_refreshed_at, import_status, import_error,
		 created_at, updated_at
		 FROM videos WHERE youtube_id = ?`, youtubeID).Scan(
		&v.ID, &v.YouTubeID, &v.ChannelID, &v.Title, &v.Description, &v.ThumbnailURL,
		&publishedAt, &v.DurationSeconds, &v.Kind, &v.ViewCount, &v.LikeCount,
		&v.CommentCount, &statsRefreshedAt, &v.ImportStatus, &v.ImportError,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StorageError{Op: "get", Entity: "video", Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Entity: "video", Err: err}
	}
	if publishedAt.Valid {
		v.PublishedAt = publishedAt.Time
	}
	if statsRefreshedAt.Valid {
		v.StatsRefreshedAt = statsRefreshedAt.Time
	}
	return v, nil
}

// VideoIDsByChannel returns the YouTube IDs of all stored videos for a
// channel; this is the dedup set for imports.
func (s *Store) VideoIDsByChannel(ctx context.Context, channelID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT youtube_id FROM videos WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, &StorageError{Op: "list", Entity: "video", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "list", Entity: "video", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkImportStatus sets the import status and error message for a video.
func (s *Store) MarkImportStatus(ctx context.Context, youtubeID, status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET import_status = ?, import_error = ?, updated_at = ?
		 WHERE youtube_id = ?`,
		status, errMsg, time.Now(), youtubeID)
	if err != nil {
		return &StorageError{Op: "update", Entity: "video", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StorageError{Op: "update", Entity: "video", Err: ErrNotFound}
	}
	return nil
}

// SaveTranscript upserts the transcript row for a video.
func (s *Store) SaveTranscript(ctx context.Context, t *Transcript) error {
	now := time.Now()
	if t.AttemptedAt.IsZero() {
		t.AttemptedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (video_id, content, classification, method,
		 language, error, attempted_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
		 content = excluded.content, classification = excluded.classification,
		 method = excluded.method, language = excluded.language,
		 error = excluded.error, attempted_at = excluded.attempted_at,
		 updated_at = excluded.updated_at`,
		t.VideoID, t.Content, t.Classification, t.Method,
		t.Language, t.Error, t.AttemptedAt, now)
	if err != nil {
		return &StorageError{Op: "save", Entity: "transcript", Err: err}
	}
	return nil
}

// GetTranscript fetches the transcript row for a video. Returns
// ErrNotFound (wrapped) if none has been stored.
func (s *Store) GetTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	t := &Transcript{}
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, content, classification, method, language, error,
		 attempted_at, updated_at
		 FROM transcripts WHERE video_id = ?`, videoID).Scan(
		&t.VideoID, &t.Content, &t.Classification, &t.Method, &t.Language,
		&t.Error, &t.AttemptedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StorageError{Op: "get", Entity: "transcript", Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "get", Entity: "transcript", Err: err}
	}
	return t, nil
}

// VideosNeedingStatsRefresh returns YouTube IDs of videos whose stats
// were last refreshed before cutoff (or never), oldest first.
func (s *Store) VideosNeedingStatsRefresh(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT youtube_id FROM videos
		 WHERE stats_refreshed_at IS NULL OR stats_refreshed_at < ?
		 ORDER BY stats_refreshed_at ASC
		 LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, &StorageError{Op: "list", Entity: "video", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "list", Entity: "video", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStatistics writes refreshed counters and stamps the refresh time.
func (s *Store) UpdateStatistics(ctx context.Context, youtubeID string, views, likes, comments int64) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET view_count = ?, like_count = ?, comment_count = ?,
		 stats_refreshed_at = ?, updated_at = ?
		 WHERE youtube_id = ?`,
		views, likes, comments, now, now, youtubeID)
	if err != nil {
		return &StorageError{Op: "update", Entity: "video", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StorageError{Op: "update", Entity: "video", Err: ErrNotFound}
	}
	return nil
}
