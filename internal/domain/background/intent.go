package background

import (
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// Action is an inbound command for the service.
type Action string

// Service commands and notification button actions.
const (
	ActionStartPlayback  Action = "START_PLAYBACK"
	ActionPausePlayback  Action = "PAUSE_PLAYBACK"
	ActionResumePlayback Action = "RESUME_PLAYBACK"
	ActionStopPlayback   Action = "STOP_PLAYBACK"
	ActionSeekTo         Action = "SEEK_TO"

	ActionPlayPause Action = "PLAY_PAUSE"
	ActionNext      Action = "NEXT"
	ActionPrevious  Action = "PREVIOUS"
	ActionStop      Action = "STOP"
)

// UnknownArtist is shown when a start command carries no artist.
const UnknownArtist = "Unknown Artist"

// Intent is a fire-and-forget command. It lets clients drive the service
// without a binding, including after a restart with no UI attached.
type Intent struct {
	Action      Action        `json:"action"`
	MediaPath   string        `json:"mediaPath,omitempty"`
	MediaTitle  string        `json:"mediaTitle,omitempty"`
	MediaArtist string        `json:"mediaArtist,omitempty"`
	AudioOnly   bool          `json:"isAudioOnly,omitempty"`
	StartPaused bool          `json:"startPaused,omitempty"`
	Position    time.Duration `json:"position,omitempty"`
}

// StartRequest describes the item the service should play.
type StartRequest struct {
	Item          media.Item
	Artist        string
	AudioOnly     bool
	PlayWhenReady bool
	Position      time.Duration
}

func (in Intent) startRequest() StartRequest {
	return StartRequest{
		Item: media.Item{
			ID:          in.MediaPath,
			Title:       in.MediaTitle,
			DisplayName: in.MediaTitle,
			Path:        in.MediaPath,
		},
		Artist:        in.MediaArtist,
		AudioOnly:     in.AudioOnly,
		PlayWhenReady: !in.StartPaused,
		Position:      in.Position,
	}
}

// StartIntent builds the intent equivalent of req.
func StartIntent(req StartRequest) Intent {
	return Intent{
		Action:      ActionStartPlayback,
		MediaPath:   req.Item.Locator(),
		MediaTitle:  req.Item.SortTitle(),
		MediaArtist: req.Artist,
		AudioOnly:   req.AudioOnly,
		StartPaused: !req.PlayWhenReady,
		Position:    req.Position,
	}
}
