package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/infra/cache"
)

// Scanner walks the media roots and builds index items.
type Scanner struct {
	roots  []string
	prober Prober
	cache  Cache
	now    func() time.Time
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithCache reuses probe results stored by a previous scan.
func WithCache(c Cache) ScannerOption {
	return func(s *Scanner) { s.cache = c }
}

// WithScanClock overrides the clock used for first-seen times.
func WithScanClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

// NewScanner creates a scanner over roots.
func NewScanner(roots []string, prober Prober, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		roots:  roots,
		prober: prober,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Roots returns the directories the scanner walks.
func (s *Scanner) Roots() []string {
	return s.roots
}

// ItemID returns the stable identifier of the file at path.
func ItemID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

// FolderID returns the stable identifier of a directory.
func FolderID(dir string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("dir://"+dir)).String()
}

// Scan walks every root and returns the playable items. Files that fail to
// probe are skipped. Unreadable roots are logged and skipped.
func (s *Scanner) Scan(ctx context.Context) ([]media.Item, error) {
	start := time.Now()
	var items []media.Item
	var dirty []cache.MediaRecord
	seen := make(map[string]struct{})

	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Debug().Err(err).Str("path", path).Msg("Skipping unreadable path")
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			mime, ok := MimeType(d.Name())
			if !ok {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}

			rec, fresh := s.record(ctx, path, mime, info)
			if rec == nil {
				return nil
			}
			seen[rec.ID] = struct{}{}
			if fresh {
				dirty = append(dirty, *rec)
			}

			item := toItem(*rec)
			if keep(item) {
				items = append(items, item)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("root", root).Msg("Media root scan failed")
		}
	}

	if s.cache != nil {
		if err := s.cache.UpsertMedia(dirty); err != nil {
			log.Warn().Err(err).Msg("Failed to store probe results")
		}
		if removed, err := s.cache.PruneMedia(seen); err != nil {
			log.Warn().Err(err).Msg("Failed to prune media cache")
		} else if removed > 0 {
			log.Info().Int("removed", removed).Msg("Pruned missing media")
		}
	}

	log.Info().
		Int("items", len(items)).
		Int("probed", len(dirty)).
		Dur("took", time.Since(start)).
		Msg("Media scan complete")
	return items, nil
}

// record returns the cached record for path when size and mtime are
// unchanged, or probes the file. fresh reports whether the record must be
// written back.
func (s *Scanner) record(ctx context.Context, path, mime string, info os.FileInfo) (*cache.MediaRecord, bool) {
	modTime := info.ModTime().UTC()

	var prev *cache.MediaRecord
	if s.cache != nil {
		var err error
		prev, err = s.cache.GetMediaByPath(path)
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Probe cache lookup failed")
		}
		if prev != nil && prev.Size == info.Size() && prev.DateModified.Equal(modTime) {
			return prev, false
		}
	}

	res, err := s.prober.Probe(ctx, path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("Skipping file that failed to probe")
		return nil, false
	}

	kind := media.KindAudio
	if res.HasVideo && strings.HasPrefix(mime, "video/") {
		kind = media.KindVideo
	}

	dir := filepath.Dir(path)
	name := info.Name()
	rec := &cache.MediaRecord{
		ID:           ItemID(path),
		Path:         path,
		Title:        strings.TrimSuffix(name, filepath.Ext(name)),
		DisplayName:  name,
		Size:         info.Size(),
		DurationMs:   res.Duration.Milliseconds(),
		MimeType:     mime,
		Kind:         string(kind),
		Width:        res.Width,
		Height:       res.Height,
		FolderID:     FolderID(dir),
		FolderName:   filepath.Base(dir),
		DateAdded:    s.now().UTC(),
		DateModified: modTime,
	}
	if prev != nil && !prev.DateAdded.IsZero() {
		rec.DateAdded = prev.DateAdded
	}
	return rec, true
}

func keep(item media.Item) bool {
	return item.Duration > MinDuration && item.Size > MinSize
}

func toItem(rec cache.MediaRecord) media.Item {
	return media.Item{
		ID:           rec.ID,
		Title:        rec.Title,
		DisplayName:  rec.DisplayName,
		Path:         rec.Path,
		URI:          "file://" + filepath.ToSlash(rec.Path),
		Size:         rec.Size,
		Duration:     time.Duration(rec.DurationMs) * time.Millisecond,
		MimeType:     rec.MimeType,
		Kind:         media.Kind(rec.Kind),
		DateAdded:    rec.DateAdded,
		DateModified: rec.DateModified,
		FolderID:     rec.FolderID,
		FolderName:   rec.FolderName,
		Width:        rec.Width,
		Height:       rec.Height,
	}
}
