package background

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
	"github.com/edumarques81/streamly-backend/internal/domain/status"
)

// ErrNotBound is returned by a Binder that cannot reach the service.
var ErrNotBound = errors.New("background service not bound")

// Binder connects to the running service.
type Binder func() (*Service, error)

// Sender delivers an intent without waiting for it to run.
type Sender func(in Intent)

// Helper is a player.Engine that forwards to the background Service. When
// binding fails it degrades to fire-and-forget intents and follows the
// status bus for state.
type Helper struct {
	bind Binder
	send Sender
	bus  status.Subscriber

	svc         *Service
	unbind      func()
	unsubscribe func()
	listener    func(player.Event)

	item      media.Item
	loaded    bool
	readySent bool
	playing   bool
	position  time.Duration
	duration  time.Duration
	released  bool
}

// NewHelper creates an unbound helper.
func NewHelper(bind Binder, send Sender, bus status.Subscriber) *Helper {
	return &Helper{bind: bind, send: send, bus: bus}
}

// Bound reports whether commands go through a direct binding.
func (h *Helper) Bound() bool {
	return h.svc != nil
}

func (h *Helper) SetListener(fn func(player.Event)) {
	h.listener = fn
}

func (h *Helper) emit(ev player.Event) {
	if h.listener != nil && !h.released {
		h.listener(ev)
	}
}

// Load starts the item on the service, paused until Play.
func (h *Helper) Load(item media.Item) error {
	h.connect()
	h.item = item
	h.loaded = true
	h.readySent = false
	h.playing = false
	h.position = 0
	h.duration = item.Duration

	req := StartRequest{Item: item, AudioOnly: true}
	if h.svc != nil {
		h.svc.Start(req)
		return nil
	}

	h.sendIntent(StartIntent(req))
	// Intents cannot report preparation; treat the item as ready and let
	// the status bus correct us.
	h.readySent = true
	h.emit(player.Event{Type: player.EventReady, Duration: item.Duration})
	return nil
}

func (h *Helper) connect() {
	if h.svc != nil || h.unsubscribe != nil {
		return
	}
	if h.bind != nil {
		svc, err := h.bind()
		if err == nil && svc != nil {
			h.svc = svc
			h.unbind = svc.Bind(player.ListenerFuncs{
				StateChanged: h.onState,
				Ended:        func(media.Item) { h.emit(player.Event{Type: player.EventEnded}) },
				Error:        func(_ media.Item, err error) { h.emit(player.Event{Type: player.EventError, Err: err}) },
			})
			return
		}
		log.Warn().Err(err).Msg("Service binding failed, falling back to intents")
	}
	if h.bus != nil {
		h.unsubscribe = h.bus.Subscribe(h.onStatus)
	}
}

// onState follows the bound service's session.
func (h *Helper) onState(st player.State) {
	if !h.loaded || st.Item == nil || st.Item.Locator() != h.item.Locator() {
		return
	}
	h.duration = st.Duration

	if !h.readySent {
		switch st.Status {
		case player.StatusReady, player.StatusPlaying, player.StatusPaused:
			h.readySent = true
			h.playing = st.IsPlaying()
			h.emit(player.Event{Type: player.EventReady, Duration: st.Duration})
		}
		return
	}
	if playing := st.IsPlaying(); playing != h.playing {
		h.playing = playing
		h.emit(player.Event{Type: player.EventPlayingChanged, Playing: playing})
	}
}

// onStatus follows the status bus while unbound.
func (h *Helper) onStatus(ev status.Event) {
	if !h.loaded {
		return
	}
	switch ev.Kind {
	case status.KindPlaybackState:
		if ev.MediaPath != "" && ev.MediaPath != h.item.Locator() {
			return
		}
		if ev.IsPlaying != h.playing {
			h.playing = ev.IsPlaying
			h.emit(player.Event{Type: player.EventPlayingChanged, Playing: ev.IsPlaying})
		}
	case status.KindPosition:
		h.position = ev.Position
		if ev.Duration > 0 {
			h.duration = ev.Duration
		}
	case status.KindMediaEnded:
		h.playing = false
		h.emit(player.Event{Type: player.EventEnded})
	case status.KindPlayerError:
		h.playing = false
		h.emit(player.Event{Type: player.EventError, Err: errors.New(ev.Error)})
	}
}

func (h *Helper) Play() error {
	if h.svc == nil {
		h.sendIntent(Intent{Action: ActionResumePlayback})
		return nil
	}
	if !h.svc.Resume() {
		// Let the session settle back to paused.
		h.emit(player.Event{Type: player.EventPlayingChanged, Playing: false})
	}
	return nil
}

func (h *Helper) Pause() error {
	if h.svc == nil {
		h.sendIntent(Intent{Action: ActionPausePlayback})
		return nil
	}
	h.svc.Pause()
	return nil
}

func (h *Helper) Stop() error {
	if !h.loaded {
		return nil
	}
	h.loaded = false
	if h.svc == nil {
		h.sendIntent(Intent{Action: ActionStopPlayback})
		return nil
	}
	h.svc.Stop()
	return nil
}

func (h *Helper) SeekTo(position time.Duration) error {
	h.position = position
	if h.svc == nil {
		h.sendIntent(Intent{Action: ActionSeekTo, Position: position})
		return nil
	}
	h.svc.SeekTo(position)
	return nil
}

func (h *Helper) Position() time.Duration {
	if h.svc != nil {
		return h.svc.Position()
	}
	return h.position
}

func (h *Helper) Duration() time.Duration {
	if h.svc != nil {
		if d := h.svc.Duration(); d > 0 {
			return d
		}
	}
	return h.duration
}

func (h *Helper) IsPlaying() bool {
	if h.svc != nil {
		return h.svc.IsPlaying()
	}
	return h.playing
}

// SetSpeed always fails: the background service plays at normal speed.
func (h *Helper) SetSpeed(float64) error {
	return player.ErrSpeedUnavailable
}

func (h *Helper) SetVolume(volume float64) error {
	if h.svc != nil {
		h.svc.SetVolume(volume)
	}
	return nil
}

// Release detaches from the service and stops it.
func (h *Helper) Release() error {
	if h.released {
		return nil
	}
	if h.unbind != nil {
		h.unbind()
		h.unbind = nil
	}
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
	h.Stop()
	h.released = true
	h.listener = nil
	h.svc = nil
	return nil
}

func (h *Helper) sendIntent(in Intent) {
	if h.send == nil {
		log.Warn().Str("action", string(in.Action)).Msg("No intent sender, dropping command")
		return
	}
	h.send(in)
}

// Host creates Helpers for a session's audio-only mode.
type Host struct {
	Bind Binder
	Send Sender
	Bus  status.Subscriber
}

// NewEngine implements player.EngineHost.
func (h Host) NewEngine() (player.Engine, error) {
	return NewHelper(h.Bind, h.Send, h.Bus), nil
}
