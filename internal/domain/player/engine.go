package player

import (
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// EventType identifies an engine callback.
type EventType int

const (
	// EventReady fires once the loaded source is prepared.
	EventReady EventType = iota
	// EventPlayingChanged fires when the engine starts or stops producing output.
	EventPlayingChanged
	// EventEnded fires on natural completion of the source.
	EventEnded
	// EventError fires when the source cannot be prepared or played.
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventPlayingChanged:
		return "playing_changed"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a callback from an engine. Engines may emit from any goroutine.
type Event struct {
	Type     EventType
	Playing  bool
	Duration time.Duration
	Err      error
}

// Engine is an external decode/render component. Implementations wrap a
// media daemon (mpd, mpv) or a remote service.
type Engine interface {
	// SetListener installs the event callback. nil removes it.
	SetListener(fn func(Event))
	// Load starts preparing item. Readiness is reported via EventReady.
	Load(item media.Item) error
	Play() error
	Pause() error
	Stop() error
	SeekTo(position time.Duration) error
	Position() time.Duration
	Duration() time.Duration
	IsPlaying() bool
	SetSpeed(speed float64) error
	SetVolume(volume float64) error
	// Release frees the engine. It must not emit events afterwards.
	Release() error
}

// EngineHost creates engines for a session.
type EngineHost interface {
	NewEngine() (Engine, error)
}

// HostFunc adapts a function to EngineHost.
type HostFunc func() (Engine, error)

// NewEngine calls f.
func (f HostFunc) NewEngine() (Engine, error) {
	return f()
}
