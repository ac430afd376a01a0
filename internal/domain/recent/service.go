// Package recent keeps the recently played list on top of the SQLite cache.
package recent

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/infra/cache"
)

const (
	// DefaultLimit is the number of rows kept in the store.
	DefaultLimit = 100
	// DefaultListLimit is the number of rows returned by List when no limit is given.
	DefaultListLimit = 20
)

// Store is the persistence used by Service. *cache.DAO satisfies it.
type Store interface {
	RecordPlay(rec cache.RecentlyPlayed, limit int) (*cache.RecentlyPlayed, error)
	GetRecentlyPlayed(limit int) ([]cache.RecentlyPlayed, error)
	GetRecentlyPlayedVideo(videoID string) (*cache.RecentlyPlayed, error)
	DeleteRecentlyPlayed(videoID string) error
	ClearRecentlyPlayed() error
	RecentlyPlayedCount() (int, error)
}

// Submitter runs blocking work off the caller's goroutine.
type Submitter interface {
	Submit(job func()) error
}

// Service records plays and lists the recently played items.
type Service struct {
	store    Store
	pool     Submitter
	limit    int
	now      func() time.Time
	onChange func()
}

// Option configures a Service.
type Option func(*Service)

// WithLimit sets how many rows are kept after each play.
func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithPool runs Record on the given pool instead of inline.
func WithPool(p Submitter) Option {
	return func(s *Service) { s.pool = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// OnChange registers a callback run after every successful write.
func OnChange(fn func()) Option {
	return func(s *Service) { s.onChange = fn }
}

// NewService creates a recently played service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		limit: DefaultLimit,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record stamps a play of item. The write happens on the pool when one is
// configured; failures are logged and never reach the caller.
func (s *Service) Record(item media.Item) {
	rec := fromItem(item)
	rec.LastPlayedTime = s.now()

	job := func() {
		stored, err := s.store.RecordPlay(rec, s.limit)
		if err != nil {
			log.Error().Err(err).Str("id", item.ID).Msg("Failed to record play")
			return
		}
		log.Debug().
			Str("id", stored.VideoID).
			Str("title", stored.Title).
			Int("playCount", stored.PlayCount).
			Msg("Recorded play")
		s.changed()
	}

	if s.pool == nil {
		job()
		return
	}
	if err := s.pool.Submit(job); err != nil {
		log.Warn().Err(err).Str("id", item.ID).Msg("Play not recorded, pool unavailable")
	}
}

// List returns up to limit items, most recently played first.
func (s *Service) List(limit int) ([]media.Item, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.store.GetRecentlyPlayed(limit)
	if err != nil {
		return nil, fmt.Errorf("list recently played: %w", err)
	}
	items := make([]media.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, toItem(row))
	}
	return items, nil
}

// Get returns the recently played entry for id, or nil if it was never played.
func (s *Service) Get(id string) (*media.Item, error) {
	row, err := s.store.GetRecentlyPlayedVideo(id)
	if err != nil {
		return nil, fmt.Errorf("get recently played %s: %w", id, err)
	}
	if row == nil {
		return nil, nil
	}
	item := toItem(*row)
	return &item, nil
}

// Remove deletes one entry.
func (s *Service) Remove(id string) error {
	if err := s.store.DeleteRecentlyPlayed(id); err != nil {
		return fmt.Errorf("remove recently played %s: %w", id, err)
	}
	s.changed()
	return nil
}

// Clear deletes every entry.
func (s *Service) Clear() error {
	if err := s.store.ClearRecentlyPlayed(); err != nil {
		return fmt.Errorf("clear recently played: %w", err)
	}
	log.Info().Msg("Recently played cleared")
	s.changed()
	return nil
}

// Count returns the number of stored entries.
func (s *Service) Count() (int, error) {
	return s.store.RecentlyPlayedCount()
}

// MergeInto returns a copy of items with LastPlayed and PlayCount filled in
// from the store.
func (s *Service) MergeInto(items []media.Item) ([]media.Item, error) {
	rows, err := s.store.GetRecentlyPlayed(s.limit)
	if err != nil {
		return nil, fmt.Errorf("merge recently played: %w", err)
	}
	byID := make(map[string]cache.RecentlyPlayed, len(rows))
	for _, row := range rows {
		byID[row.VideoID] = row
	}

	out := make([]media.Item, len(items))
	copy(out, items)
	for i := range out {
		if row, ok := byID[out[i].ID]; ok {
			out[i].LastPlayed = row.LastPlayedTime
			out[i].PlayCount = row.PlayCount
		}
	}
	return out, nil
}

func (s *Service) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func fromItem(item media.Item) cache.RecentlyPlayed {
	return cache.RecentlyPlayed{
		VideoID:     item.ID,
		Title:       item.SortTitle(),
		DisplayName: item.DisplayName,
		Path:        item.Path,
		URI:         item.URI,
		Size:        item.Size,
		DurationMs:  item.Duration.Milliseconds(),
		MimeType:    item.MimeType,
		FolderName:  item.FolderName,
		Width:       item.Width,
		Height:      item.Height,
	}
}

func toItem(row cache.RecentlyPlayed) media.Item {
	kind := media.KindVideo
	if row.Width == 0 && row.Height == 0 && strings.HasPrefix(row.MimeType, "audio/") {
		kind = media.KindAudio
	}
	return media.Item{
		ID:          row.VideoID,
		Title:       row.Title,
		DisplayName: row.DisplayName,
		Path:        row.Path,
		URI:         row.URI,
		Size:        row.Size,
		Duration:    time.Duration(row.DurationMs) * time.Millisecond,
		MimeType:    row.MimeType,
		Kind:        kind,
		FolderName:  row.FolderName,
		Width:       row.Width,
		Height:      row.Height,
		LastPlayed:  row.LastPlayedTime,
		PlayCount:   row.PlayCount,
	}
}
