// Package library indexes the playable files under the configured media roots.
package library

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/edumarques81/streamly-backend/internal/infra/cache"
	"github.com/edumarques81/streamly-backend/internal/infra/probe"
)

const (
	// MinDuration and MinSize drop clips and stub files from the index.
	MinDuration = time.Second
	MinSize     = 1024

	// DefaultRecentlyAdded is the size of the recently added shelf.
	DefaultRecentlyAdded = 50
)

// videoTypes maps known video extensions to MIME types.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
}

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".wav":  "audio/wav",
}

// MimeType returns the MIME type for a file name and whether the extension
// is playable at all.
func MimeType(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := videoTypes[ext]; ok {
		return mt, true
	}
	if mt, ok := audioTypes[ext]; ok {
		return mt, true
	}
	return "", false
}

// Prober reads duration and dimensions from a file. *probe.FFprobe satisfies it.
type Prober interface {
	Probe(ctx context.Context, file string) (probe.Result, error)
}

// Cache persists probe results between scans. *cache.DAO satisfies it.
type Cache interface {
	GetMediaByPath(path string) (*cache.MediaRecord, error)
	UpsertMedia(records []cache.MediaRecord) error
	PruneMedia(keep map[string]struct{}) (int, error)
}
