// Package media defines the items and folders of the device media index.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind separates video files from audio-only files.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Item is one playable file from the media index. Items are immutable once
// loaded; LastPlayed and PlayCount are merged in from the recently-played store.
type Item struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	DisplayName  string        `json:"displayName"`
	Path         string        `json:"path"`
	URI          string        `json:"uri"`
	Size         int64         `json:"size"`
	Duration     time.Duration `json:"duration"`
	MimeType     string        `json:"mimeType"`
	Kind         Kind          `json:"kind"`
	DateAdded    time.Time     `json:"dateAdded"`
	DateModified time.Time     `json:"dateModified"`
	FolderID     string        `json:"folderId"`
	FolderName   string        `json:"folderName"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	LastPlayed   time.Time     `json:"lastPlayed,omitempty"`
	PlayCount    int           `json:"playCount,omitempty"`
}

// Equal reports whether two items share an identity.
func (i Item) Equal(other Item) bool {
	return i.ID == other.ID
}

// Locator returns the source handed to a media engine.
func (i Item) Locator() string {
	if i.Path != "" {
		return i.Path
	}
	return i.URI
}

// SortTitle is the title used for ordering, falling back to the display name.
func (i Item) SortTitle() string {
	if i.Title != "" {
		return i.Title
	}
	return i.DisplayName
}

// Extension returns the lower-cased file extension including the dot.
func (i Item) Extension() string {
	name := i.DisplayName
	if name == "" {
		name = i.Path
	}
	return strings.ToLower(filepath.Ext(name))
}

// Resolution returns "WxH", or "" when dimensions are unknown.
func (i Item) Resolution() string {
	if i.Width <= 0 || i.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", i.Width, i.Height)
}

// Pixels returns width*height.
func (i Item) Pixels() int {
	return i.Width * i.Height
}

// FormattedSize renders the size as B, KB, MB or GB.
func (i Item) FormattedSize() string {
	return FormatSize(i.Size)
}

// FormattedDuration renders the duration as m:ss or h:mm:ss.
func (i Item) FormattedDuration() string {
	return FormatDuration(i.Duration)
}

// FormatSize renders a byte count using binary units.
func FormatSize(size int64) string {
	const unit = 1024
	switch {
	case size < unit:
		return fmt.Sprintf("%d B", size)
	case size < unit*unit:
		return fmt.Sprintf("%.1f KB", float64(size)/unit)
	case size < unit*unit*unit:
		return fmt.Sprintf("%.1f MB", float64(size)/(unit*unit))
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/(unit*unit*unit))
	}
}

// FormatDuration renders d as m:ss, or h:mm:ss past one hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Folder groups the items of one directory.
type Folder struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Items        []Item    `json:"-"`
	Count        int       `json:"count"`
	TotalSize    int64     `json:"totalSize"`
	LastModified time.Time `json:"lastModified"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
}

// Add appends item and keeps the folder statistics current.
func (f *Folder) Add(item Item) {
	if len(f.Items) == 0 {
		f.Thumbnail = item.ID
	}
	f.Items = append(f.Items, item)
	f.Count = len(f.Items)
	f.TotalSize += item.Size
	if item.DateModified.After(f.LastModified) {
		f.LastModified = item.DateModified
	}
}

// FormattedSize renders the folder's total size.
func (f *Folder) FormattedSize() string {
	return FormatSize(f.TotalSize)
}
