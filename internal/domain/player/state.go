// Package player provides the playback session state machine, the media
// engine abstraction it drives and the interruption arbiter.
package player

import (
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// Status is a playback session state.
type Status string

// Session states. Error is reachable from any state; Ended from Playing or
// Paused on natural completion.
const (
	StatusIdle      Status = "idle"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
	StatusEnded     Status = "ended"
	StatusError     Status = "error"
)

// State is an immutable snapshot of a session.
type State struct {
	Status           Status
	Item             *media.Item
	Position         time.Duration
	Duration         time.Duration
	Speed            float64
	Volume           float64
	AudioOnly        bool
	Locked           bool
	PictureInPicture bool
	PlayWhenReady    bool
	Error            string
}

// IsPlaying reports whether the snapshot was taken while playing.
func (s State) IsPlaying() bool {
	return s.Status == StatusPlaying
}

// ToJSON returns the state as a map suitable for the pushState event.
func (s State) ToJSON() map[string]interface{} {
	out := map[string]interface{}{
		"status":           string(s.Status),
		"isPlaying":        s.IsPlaying(),
		"position":         s.Position.Milliseconds(),
		"duration":         s.Duration.Milliseconds(),
		"speed":            s.Speed,
		"volume":           s.Volume,
		"audioOnly":        s.AudioOnly,
		"locked":           s.Locked,
		"pictureInPicture": s.PictureInPicture,
	}
	if s.Item != nil {
		out["id"] = s.Item.ID
		out["title"] = s.Item.SortTitle()
		out["path"] = s.Item.Path
		out["folder"] = s.Item.FolderName
	}
	if s.Error != "" {
		out["error"] = s.Error
	}
	return out
}
