// Package artwork produces thumbnails for media items from folder images,
// embedded covers and extracted video frames.
package artwork

import (
	"context"
	"errors"
	"strconv"
)

// ErrNoArtwork is returned when no source image exists for an item.
var ErrNoArtwork = errors.New("no artwork found")

// ThumbnailSize is the longest edge of a thumbnail in pixels.
type ThumbnailSize int

const (
	// ThumbSmall is 150 pixels - for list views
	ThumbSmall ThumbnailSize = 150
	// ThumbMedium is 300 pixels - for grid views
	ThumbMedium ThumbnailSize = 300
	// ThumbLarge is 500 pixels - for detail views
	ThumbLarge ThumbnailSize = 500
)

// Sizes lists the generated thumbnail sizes.
var Sizes = []ThumbnailSize{ThumbSmall, ThumbMedium, ThumbLarge}

// ParseSize maps a query value ("small", "300", ...) to a size, defaulting
// to ThumbMedium.
func ParseSize(s string) ThumbnailSize {
	switch s {
	case "small", "s":
		return ThumbSmall
	case "medium", "m", "":
		return ThumbMedium
	case "large", "l":
		return ThumbLarge
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return ThumbMedium
	}
	// Snap to the nearest generated size.
	switch {
	case n <= int(ThumbSmall):
		return ThumbSmall
	case n <= int(ThumbMedium):
		return ThumbMedium
	default:
		return ThumbLarge
	}
}

// FrameExtractor returns an encoded still image from a media file.
type FrameExtractor interface {
	// ExtractFrame grabs a video frame at offset seconds.
	ExtractFrame(ctx context.Context, path string, offset float64) ([]byte, error)
	// ExtractCover returns the embedded cover picture of an audio file.
	ExtractCover(ctx context.Context, path string) ([]byte, error)
}
