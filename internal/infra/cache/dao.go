package cache

import (
	"database/sql"
	"fmt"
	"time"
)

// DAO provides data access for the media index and recently played tables.
type DAO struct {
	db *DB
}

// NewDAO creates a new DAO instance.
func NewDAO(db *DB) *DAO {
	return &DAO{db: db}
}

const recentColumns = `video_id, title, display_name, path, uri, size, duration_ms,
	mime_type, folder_name, width, height, last_played_time, play_count`

const mediaColumns = `id, path, title, display_name, size, duration_ms, mime_type, kind,
	width, height, folder_id, folder_name, date_added, date_modified, probed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ==================== Recently played ====================

// GetRecentlyPlayed returns up to limit rows ordered by last played time, newest first.
func (dao *DAO) GetRecentlyPlayed(limit int) ([]RecentlyPlayed, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, ErrNotOpen
	}

	rows, err := db.Query(`SELECT `+recentColumns+` FROM recently_played
		ORDER BY last_played_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recently played: %w", err)
	}
	defer rows.Close()

	var out []RecentlyPlayed
	for rows.Next() {
		rec, err := scanRecent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetRecentlyPlayedVideo returns one row, or nil if the video was never played.
func (dao *DAO) GetRecentlyPlayedVideo(videoID string) (*RecentlyPlayed, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, ErrNotOpen
	}

	row := db.QueryRow(`SELECT `+recentColumns+` FROM recently_played WHERE video_id = ?`, videoID)
	rec, err := scanRecent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// InsertRecentlyPlayed stores a row, replacing any existing row for the same video.
func (dao *DAO) InsertRecentlyPlayed(rec RecentlyPlayed) error {
	db := dao.db.DB()
	if db == nil {
		return ErrNotOpen
	}
	return insertRecent(db, rec)
}

// RecordPlay increments the play count of rec.VideoID, stamps the play time
// and trims the table to limit rows, all in one transaction. A limit of zero
// or less disables trimming.
func (dao *DAO) RecordPlay(rec RecentlyPlayed, limit int) (*RecentlyPlayed, error) {
	tx, err := dao.db.BeginTx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRow("SELECT play_count FROM recently_played WHERE video_id = ?", rec.VideoID).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read play count: %w", err)
	}
	rec.PlayCount = count + 1
	if rec.LastPlayedTime.IsZero() {
		rec.LastPlayedTime = time.Now()
	}

	if err := insertRecent(tx, rec); err != nil {
		return nil, err
	}
	if limit > 0 {
		if _, err := tx.Exec(trimRecentSQL, limit); err != nil {
			return nil, fmt.Errorf("failed to trim recently played: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit play: %w", err)
	}
	return &rec, nil
}

// DeleteRecentlyPlayed removes one video from the list.
func (dao *DAO) DeleteRecentlyPlayed(videoID string) error {
	db := dao.db.DB()
	if db == nil {
		return ErrNotOpen
	}
	_, err := db.Exec("DELETE FROM recently_played WHERE video_id = ?", videoID)
	return err
}

// ClearRecentlyPlayed removes every row.
func (dao *DAO) ClearRecentlyPlayed() error {
	db := dao.db.DB()
	if db == nil {
		return ErrNotOpen
	}
	_, err := db.Exec("DELETE FROM recently_played")
	return err
}

const trimRecentSQL = `DELETE FROM recently_played WHERE video_id NOT IN (
	SELECT video_id FROM recently_played ORDER BY last_played_time DESC LIMIT ?)`

// LimitRecentlyPlayed keeps only the limit most recently played rows.
func (dao *DAO) LimitRecentlyPlayed(limit int) error {
	db := dao.db.DB()
	if db == nil {
		return ErrNotOpen
	}
	_, err := db.Exec(trimRecentSQL, limit)
	return err
}

// RecentlyPlayedCount returns the number of rows.
func (dao *DAO) RecentlyPlayedCount() (int, error) {
	db := dao.db.DB()
	if db == nil {
		return 0, ErrNotOpen
	}
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM recently_played").Scan(&count)
	return count, err
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertRecent(db execer, rec RecentlyPlayed) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO recently_played (`+recentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.VideoID, rec.Title, rec.DisplayName, rec.Path, rec.URI, rec.Size, rec.DurationMs,
		rec.MimeType, rec.FolderName, rec.Width, rec.Height, rec.LastPlayedTime.UnixMilli(), rec.PlayCount)
	if err != nil {
		return fmt.Errorf("failed to insert recently played: %w", err)
	}
	return nil
}

func scanRecent(row rowScanner) (*RecentlyPlayed, error) {
	var rec RecentlyPlayed
	var displayName, uri, mime, folder sql.NullString
	var played int64
	err := row.Scan(&rec.VideoID, &rec.Title, &displayName, &rec.Path, &uri, &rec.Size, &rec.DurationMs,
		&mime, &folder, &rec.Width, &rec.Height, &played, &rec.PlayCount)
	if err != nil {
		return nil, err
	}
	rec.DisplayName = displayName.String
	rec.URI = uri.String
	rec.MimeType = mime.String
	rec.FolderName = folder.String
	rec.LastPlayedTime = time.UnixMilli(played)
	return &rec, nil
}

// ==================== Media index ====================

// UpsertMedia inserts or updates media records in a single transaction.
func (dao *DAO) UpsertMedia(records []MediaRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := dao.db.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO media_items (` + mediaColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			display_name = excluded.display_name,
			size = excluded.size,
			duration_ms = excluded.duration_ms,
			mime_type = excluded.mime_type,
			kind = excluded.kind,
			width = excluded.width,
			height = excluded.height,
			folder_id = excluded.folder_id,
			folder_name = excluded.folder_name,
			date_modified = excluded.date_modified,
			probed_at = excluded.probed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare media upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range records {
		probed := m.ProbedAt
		if probed.IsZero() {
			probed = time.Now()
		}
		_, err := stmt.Exec(m.ID, m.Path, m.Title, m.DisplayName, m.Size, m.DurationMs, m.MimeType, m.Kind,
			m.Width, m.Height, m.FolderID, m.FolderName,
			formatTime(m.DateAdded), formatTime(m.DateModified), formatTime(probed))
		if err != nil {
			return fmt.Errorf("failed to upsert media %s: %w", m.Path, err)
		}
	}
	return tx.Commit()
}

// GetMediaByPath returns the cached record for path, or nil if none exists.
func (dao *DAO) GetMediaByPath(path string) (*MediaRecord, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, ErrNotOpen
	}
	row := db.QueryRow(`SELECT `+mediaColumns+` FROM media_items WHERE path = ?`, path)
	m, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListMedia returns every cached record, newest first.
func (dao *DAO) ListMedia() ([]MediaRecord, error) {
	db := dao.db.DB()
	if db == nil {
		return nil, ErrNotOpen
	}
	rows, err := db.Query(`SELECT ` + mediaColumns + ` FROM media_items ORDER BY date_added DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	var out []MediaRecord
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// PruneMedia deletes every record whose ID is not in keep and returns how
// many were removed.
func (dao *DAO) PruneMedia(keep map[string]struct{}) (int, error) {
	tx, err := dao.db.BeginTx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query("SELECT id FROM media_items")
	if err != nil {
		return 0, fmt.Errorf("failed to list media ids: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()

	for _, id := range stale {
		if _, err := tx.Exec("DELETE FROM media_items WHERE id = ?", id); err != nil {
			return 0, fmt.Errorf("failed to delete media %s: %w", id, err)
		}
	}
	return len(stale), tx.Commit()
}

func scanMedia(row rowScanner) (*MediaRecord, error) {
	var m MediaRecord
	var mime, folderID, folderName, added, modified, probed sql.NullString
	err := row.Scan(&m.ID, &m.Path, &m.Title, &m.DisplayName, &m.Size, &m.DurationMs, &mime, &m.Kind,
		&m.Width, &m.Height, &folderID, &folderName, &added, &modified, &probed)
	if err != nil {
		return nil, err
	}
	m.MimeType = mime.String
	m.FolderID = folderID.String
	m.FolderName = folderName.String
	m.DateAdded = parseTime(added)
	m.DateModified = parseTime(modified)
	m.ProbedAt = parseTime(probed)
	return &m, nil
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
