// Package search filters, sorts and searches the media index and keeps the
// query history.
package search

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

const mb = 1024 * 1024

// Filter narrows a list of items. Zero-valued bounds are not applied.
type Filter struct {
	MinSizeMB       int64     `json:"minSizeMB,omitempty"`
	MaxSizeMB       int64     `json:"maxSizeMB,omitempty"`
	MinDurationSec  int64     `json:"minDurationSec,omitempty"`
	MaxDurationSec  int64     `json:"maxDurationSec,omitempty"`
	AddedAfter      time.Time `json:"addedAfter,omitempty"`
	AddedBefore     time.Time `json:"addedBefore,omitempty"`
	AllowedFormats  []string  `json:"allowedFormats,omitempty"`
	ExcludedFormats []string  `json:"excludedFormats,omitempty"`
	MinWidth        int       `json:"minWidth,omitempty"`
	MinHeight       int       `json:"minHeight,omitempty"`
	MaxWidth        int       `json:"maxWidth,omitempty"`
	MaxHeight       int       `json:"maxHeight,omitempty"`
	IncludedFolders []string  `json:"includedFolders,omitempty"`
	ExcludedFolders []string  `json:"excludedFolders,omitempty"`
	Sort            SortType  `json:"sort,omitempty"`
}

// Active reports whether any criterion besides the sort is set.
func (f *Filter) Active() bool {
	if f == nil {
		return false
	}
	return f.MinSizeMB > 0 || f.MaxSizeMB > 0 ||
		f.MinDurationSec > 0 || f.MaxDurationSec > 0 ||
		!f.AddedAfter.IsZero() || !f.AddedBefore.IsZero() ||
		len(f.AllowedFormats) > 0 || len(f.ExcludedFormats) > 0 ||
		f.MinWidth > 0 || f.MinHeight > 0 || f.MaxWidth > 0 || f.MaxHeight > 0 ||
		len(f.IncludedFolders) > 0 || len(f.ExcludedFolders) > 0
}

// Clear resets every criterion and the sort.
func (f *Filter) Clear() {
	*f = Filter{}
}

// Matches reports whether item passes every set criterion. Exclusions are
// checked before inclusions.
func (f *Filter) Matches(item media.Item) bool {
	if f == nil {
		return true
	}
	if f.MinSizeMB > 0 && item.Size < f.MinSizeMB*mb {
		return false
	}
	if f.MaxSizeMB > 0 && item.Size > f.MaxSizeMB*mb {
		return false
	}
	if f.MinDurationSec > 0 && item.Duration < time.Duration(f.MinDurationSec)*time.Second {
		return false
	}
	if f.MaxDurationSec > 0 && item.Duration > time.Duration(f.MaxDurationSec)*time.Second {
		return false
	}
	if !f.AddedAfter.IsZero() && item.DateAdded.Before(f.AddedAfter) {
		return false
	}
	if !f.AddedBefore.IsZero() && item.DateAdded.After(f.AddedBefore) {
		return false
	}

	if len(f.AllowedFormats) > 0 || len(f.ExcludedFormats) > 0 {
		ext := item.Extension()
		if lo.Contains(normalizeFormats(f.ExcludedFormats), ext) {
			return false
		}
		if len(f.AllowedFormats) > 0 && !lo.Contains(normalizeFormats(f.AllowedFormats), ext) {
			return false
		}
	}

	if f.MinWidth > 0 && item.Width < f.MinWidth {
		return false
	}
	if f.MinHeight > 0 && item.Height < f.MinHeight {
		return false
	}
	if f.MaxWidth > 0 && item.Width > f.MaxWidth {
		return false
	}
	if f.MaxHeight > 0 && item.Height > f.MaxHeight {
		return false
	}

	if lo.Contains(f.ExcludedFolders, item.FolderName) {
		return false
	}
	if len(f.IncludedFolders) > 0 && !lo.Contains(f.IncludedFolders, item.FolderName) {
		return false
	}
	return true
}

// Apply returns the matching items, sorted when the filter names a sort.
func (f *Filter) Apply(items []media.Item) []media.Item {
	out := lo.Filter(items, func(item media.Item, _ int) bool { return f.Matches(item) })
	if f != nil && f.Sort != SortNone {
		Sort(out, f.Sort)
	}
	return out
}

// normalizeFormats lower-cases formats and adds the leading dot.
func normalizeFormats(formats []string) []string {
	return lo.Map(formats, func(format string, _ int) string {
		format = strings.ToLower(strings.TrimSpace(format))
		if !strings.HasPrefix(format, ".") {
			format = "." + format
		}
		return format
	})
}

// Preset names accepted by PresetFilter.
const (
	PresetHD           = "hd"
	Preset4K           = "4k"
	PresetLargeFiles   = "large"
	PresetShortVideos  = "short"
	PresetLongVideos   = "long"
	PresetMP4Only      = "mp4"
	PresetRecent       = "recent"
	PresetNoSmallFiles = "no_small"
)

// DefaultRecentDays is the window of the recent preset.
const DefaultRecentDays = 7

// HDFilter keeps items of at least 1280x720.
func HDFilter() Filter { return Filter{MinWidth: 1280, MinHeight: 720} }

// UHDFilter keeps items of at least 3840x2160.
func UHDFilter() Filter { return Filter{MinWidth: 3840, MinHeight: 2160} }

// LargeFilesFilter keeps items of 100 MB or more.
func LargeFilesFilter() Filter { return Filter{MinSizeMB: 100} }

// ShortVideosFilter keeps items of five minutes or less.
func ShortVideosFilter() Filter { return Filter{MaxDurationSec: 300} }

// LongVideosFilter keeps items of an hour or more.
func LongVideosFilter() Filter { return Filter{MinDurationSec: 3600} }

// MP4OnlyFilter keeps .mp4 files.
func MP4OnlyFilter() Filter { return Filter{AllowedFormats: []string{".mp4"}} }

// NoSmallFilesFilter drops items under 10 MB.
func NoSmallFilesFilter() Filter { return Filter{MinSizeMB: 10} }

// RecentFilter keeps items added in the last days days.
func RecentFilter(days int, now time.Time) Filter {
	if days <= 0 {
		days = DefaultRecentDays
	}
	return Filter{AddedAfter: now.Add(-time.Duration(days) * 24 * time.Hour)}
}

// PresetFilter returns a named preset.
func PresetFilter(name string, now time.Time) (Filter, bool) {
	switch strings.ToLower(name) {
	case PresetHD:
		return HDFilter(), true
	case Preset4K:
		return UHDFilter(), true
	case PresetLargeFiles:
		return LargeFilesFilter(), true
	case PresetShortVideos:
		return ShortVideosFilter(), true
	case PresetLongVideos:
		return LongVideosFilter(), true
	case PresetMP4Only:
		return MP4OnlyFilter(), true
	case PresetRecent:
		return RecentFilter(DefaultRecentDays, now), true
	case PresetNoSmallFiles:
		return NoSmallFilesFilter(), true
	}
	return Filter{}, false
}
