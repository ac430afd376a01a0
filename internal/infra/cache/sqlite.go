// Package cache provides the SQLite store behind the media index and the
// recently played list.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the cache database.
	DefaultDBPath = "data/streamly.db"
)

// ErrNotOpen is returned by DAO calls made before Open or after Close.
var ErrNotOpen = errors.New("database not open")

// DB represents the SQLite cache database.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new cache database instance.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{
		path: path,
	}
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Cache database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating cache schema")
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (d *DB) createSchema() error {
	schema := `
	-- Probed media files
	CREATE TABLE IF NOT EXISTS media_items (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		display_name TEXT NOT NULL,
		size INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		mime_type TEXT,
		kind TEXT NOT NULL,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		folder_id TEXT,
		folder_name TEXT,
		date_added TEXT,
		date_modified TEXT,
		probed_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	-- Recently played videos
	CREATE TABLE IF NOT EXISTS recently_played (
		video_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		display_name TEXT,
		path TEXT NOT NULL,
		uri TEXT,
		size INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		mime_type TEXT,
		folder_name TEXT,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		last_played_time INTEGER NOT NULL,
		play_count INTEGER DEFAULT 1
	);

	-- Cache metadata
	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_media_folder ON media_items(folder_id);
	CREATE INDEX IF NOT EXISTS idx_media_added ON media_items(date_added DESC);
	CREATE INDEX IF NOT EXISTS idx_recent_played ON recently_played(last_played_time DESC);
	`

	_, err := d.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Cache schema created")
	return nil
}

func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (d *DB) setMeta(key, value string) error {
	_, err := d.db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// GetStats returns cache statistics.
func (d *DB) GetStats() (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}

	stats := &Stats{}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM media_items").Scan(&stats.MediaCount); err != nil {
		return nil, fmt.Errorf("failed to count media: %w", err)
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM recently_played").Scan(&stats.RecentCount); err != nil {
		return nil, fmt.Errorf("failed to count recently played: %w", err)
	}

	if lastScan, err := d.getMeta("last_scan"); err == nil && lastScan != "" {
		if t, err := time.Parse(time.RFC3339, lastScan); err == nil {
			stats.LastScan = t
		}
	}

	stats.SchemaVersion, _ = d.getMeta("schema_version")

	return stats, nil
}

// MarkScanComplete records the time of the last completed index scan.
func (d *DB) MarkScanComplete() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}
	return d.setMeta("last_scan", time.Now().UTC().Format(time.RFC3339))
}

// BeginTx starts a new transaction.
func (d *DB) BeginTx() (*sql.Tx, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}
	return d.db.Begin()
}

// Clear removes all cached data.
func (d *DB) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}

	tables := []string{"media_items", "recently_played"}
	for _, table := range tables {
		if _, err := d.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := d.db.Exec("DELETE FROM cache_meta WHERE key != 'schema_version'"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	log.Info().Msg("Cache cleared")
	return nil
}

// DB returns the underlying database connection for advanced queries.
func (d *DB) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}
