package cache

import "time"

// MediaRecord is a probed media file stored in the index cache.
type MediaRecord struct {
	ID           string
	Path         string
	Title        string
	DisplayName  string
	Size         int64
	DurationMs   int64
	MimeType     string
	Kind         string
	Width        int
	Height       int
	FolderID     string
	FolderName   string
	DateAdded    time.Time
	DateModified time.Time
	ProbedAt     time.Time
}

// RecentlyPlayed is one row of the recently played list.
type RecentlyPlayed struct {
	VideoID        string
	Title          string
	DisplayName    string
	Path           string
	URI            string
	Size           int64
	DurationMs     int64
	MimeType       string
	FolderName     string
	Width          int
	Height         int
	LastPlayedTime time.Time
	PlayCount      int
}

// Stats contains cache statistics.
type Stats struct {
	MediaCount    int       `json:"mediaCount"`
	RecentCount   int       `json:"recentCount"`
	LastScan      time.Time `json:"lastScan"`
	SchemaVersion string    `json:"schemaVersion"`
}
