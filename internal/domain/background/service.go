// Package background keeps audio-only playback alive independently of any
// UI. The Service owns its own session and engine, applies the interruption
// policy, maintains the transport notification and is the only publisher on
// the status bus. Helper lets a UI session drive the Service as an engine.
package background

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
	"github.com/edumarques81/streamly-backend/internal/domain/prefs"
	"github.com/edumarques81/streamly-backend/internal/domain/status"
	"github.com/edumarques81/streamly-backend/internal/loop"
)

// MediaInfoStore remembers the playing item across restarts.
type MediaInfoStore interface {
	SaveMediaInfo(info prefs.MediaInfo) error
	ClearMediaInfo() error
}

// Submitter runs blocking work off the loop.
type Submitter interface {
	Submit(job func()) error
}

// Publisher is the sending side of the status bus.
type Publisher interface {
	Publish(ev status.Event)
}

// Config wires a Service.
type Config struct {
	Runner           loop.Runner
	Host             player.EngineHost
	Bus              Publisher
	Notifier         Notifier
	Store            MediaInfoStore
	Pool             Submitter
	PositionInterval time.Duration
}

// Service is the background playback host. All methods run on the loop.
type Service struct {
	session  *player.Session
	arbiter  *player.Arbiter
	bus      Publisher
	notifier Notifier
	store    MediaInfoStore
	pool     Submitter

	artist       string
	running      bool
	notification Notification
	published    struct {
		valid   bool
		playing bool
		path    string
	}
}

// NewService creates an idle service.
func NewService(cfg Config) *Service {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	s := &Service{
		bus:      cfg.Bus,
		notifier: cfg.Notifier,
		store:    cfg.Store,
		pool:     cfg.Pool,
	}
	s.session = player.NewSession(player.Config{
		Runner:           cfg.Runner,
		AudioHost:        cfg.Host,
		AudioOnly:        true,
		PositionInterval: cfg.PositionInterval,
	})
	s.arbiter = player.NewArbiter(s.session)
	s.session.AddListener(player.ListenerFuncs{
		StateChanged: s.onStateChanged,
		Position:     s.onPosition,
		Ended:        s.onEnded,
		Error:        s.onError,
	})
	return s
}

// Bind attaches a direct listener, as a bound client would. The returned
// function detaches it.
func (s *Service) Bind(l player.Listener) func() {
	return s.session.AddListener(l)
}

// Start plays req.Item, replacing whatever was playing.
func (s *Service) Start(req StartRequest) {
	s.artist = req.Artist
	if s.artist == "" {
		s.artist = UnknownArtist
	}
	s.running = true
	s.arbiter.UserAction()

	playWhenReady := req.PlayWhenReady
	if playWhenReady && !s.arbiter.CanPlay() {
		log.Info().Msg("Starting paused: audio focus unavailable")
		playWhenReady = false
	}

	log.Info().
		Str("path", req.Item.Locator()).
		Str("title", req.Item.SortTitle()).
		Bool("audioOnly", req.AudioOnly).
		Msg("Background playback starting")

	s.session.Start(req.Item, playWhenReady)
	if req.Position > 0 {
		s.session.SeekTo(req.Position)
	}
}

// Pause pauses on explicit user request.
func (s *Service) Pause() {
	s.arbiter.UserAction()
	s.session.Pause()
}

// Resume plays on explicit user request. It requires audio focus and no
// active call, and reports whether playback was resumed.
func (s *Service) Resume() bool {
	s.arbiter.UserAction()
	if !s.arbiter.CanPlay() {
		log.Info().Msg("Resume refused: audio focus unavailable")
		return false
	}
	s.session.Play()
	return true
}

// TogglePlayPause flips between playing and paused.
func (s *Service) TogglePlayPause() {
	if s.session.IsPlaying() {
		s.Pause()
		return
	}
	if s.session.Status() == player.StatusEnded {
		s.arbiter.UserAction()
		s.session.PlayPause()
		return
	}
	s.Resume()
}

// Stop ends playback, forgets the playing item and leaves the foreground.
func (s *Service) Stop() {
	wasRunning := s.running
	s.running = false
	s.session.Stop()
	s.arbiter.Reset()
	s.notification = Notification{}
	s.notifier.Cancel()
	s.published.valid = false
	if s.store != nil {
		s.async(func() {
			if err := s.store.ClearMediaInfo(); err != nil {
				log.Warn().Err(err).Msg("Failed to clear media info")
			}
		})
	}
	if wasRunning {
		log.Info().Msg("Background playback stopped")
	}
}

// SeekTo seeks within the current item.
func (s *Service) SeekTo(position time.Duration) time.Duration {
	return s.session.SeekTo(position)
}

// SetVolume sets the user's volume; ducking still caps the output.
func (s *Service) SetVolume(volume float64) {
	s.arbiter.SetVolume(volume)
}

// HandleIntent executes a fire-and-forget command.
func (s *Service) HandleIntent(in Intent) {
	log.Debug().Str("action", string(in.Action)).Msg("Handling intent")

	switch in.Action {
	case ActionStartPlayback:
		if in.MediaPath == "" {
			log.Warn().Msg("Start intent without media path")
			return
		}
		s.Start(in.startRequest())
	case ActionPausePlayback:
		s.Pause()
	case ActionResumePlayback:
		s.Resume()
	case ActionStopPlayback, ActionStop:
		s.Stop()
	case ActionSeekTo:
		s.SeekTo(in.Position)
	case ActionPlayPause:
		s.TogglePlayPause()
	case ActionNext:
		s.publish(status.Event{Kind: status.KindTrackAction, Action: status.ActionNext})
	case ActionPrevious:
		s.publish(status.Event{Kind: status.KindTrackAction, Action: status.ActionPrevious})
	default:
		log.Warn().Str("action", string(in.Action)).Msg("Unknown intent action")
	}
}

// FocusChanged applies an audio focus transition.
func (s *Service) FocusChanged(change player.FocusChange) {
	s.arbiter.FocusChanged(change)
}

// CallStateChanged applies a telephony transition.
func (s *Service) CallStateChanged(state player.CallState) {
	s.arbiter.CallStateChanged(state)
}

// HeadsetChanged applies a headset plug transition.
func (s *Service) HeadsetChanged(plugged bool) {
	s.arbiter.HeadsetChanged(plugged)
}

// Interruptions returns the arbiter flags.
func (s *Service) Interruptions() player.Flags {
	return s.arbiter.Flags()
}

// Running reports whether the service holds an item.
func (s *Service) Running() bool {
	return s.running
}

func (s *Service) IsPlaying() bool            { return s.session.IsPlaying() }
func (s *Service) Position() time.Duration    { return s.session.Position() }
func (s *Service) Duration() time.Duration    { return s.session.Duration() }
func (s *Service) Snapshot() player.State     { return s.session.Snapshot() }
func (s *Service) Notification() Notification { return s.notification }

func (s *Service) onStateChanged(st player.State) {
	if !s.running || st.Item == nil {
		return
	}

	playing := st.IsPlaying()
	path := st.Item.Locator()
	if !s.published.valid || s.published.playing != playing || s.published.path != path {
		s.published.valid = true
		s.published.playing = playing
		s.published.path = path
		s.publish(status.Event{
			Kind:       status.KindPlaybackState,
			IsPlaying:  playing,
			MediaPath:  path,
			MediaTitle: st.Item.SortTitle(),
		})
		s.saveMediaInfo(st)
	}

	s.updateNotification(st)
}

func (s *Service) onPosition(position, duration time.Duration) {
	s.publish(status.Event{Kind: status.KindPosition, Position: position, Duration: duration})
}

func (s *Service) onEnded(media.Item) {
	s.publish(status.Event{Kind: status.KindMediaEnded})
}

// onError leaves the foreground and reports; there is no automatic retry.
func (s *Service) onError(item media.Item, err error) {
	log.Error().Err(err).Str("path", item.Locator()).Msg("Background playback failed")
	s.published.valid = false
	s.publish(status.Event{Kind: status.KindPlayerError, Error: err.Error()})
	if s.running {
		s.updateNotification(s.session.Snapshot())
	}
}

func (s *Service) updateNotification(st player.State) {
	if st.Item == nil {
		return
	}
	playing := st.IsPlaying()
	n := Notification{
		ItemID:         st.Item.ID,
		Title:          st.Item.SortTitle(),
		Text:           s.artist,
		PlayPauseLabel: "Play",
		Playing:        playing,
		Ongoing:        playing,
		Foreground:     playing,
	}
	if playing {
		n.PlayPauseLabel = "Pause"
	}
	if n == s.notification {
		return
	}
	s.notification = n
	s.notifier.Notify(n)
}

func (s *Service) saveMediaInfo(st player.State) {
	if s.store == nil {
		return
	}
	info := prefs.MediaInfo{
		Path:      st.Item.Locator(),
		Title:     st.Item.SortTitle(),
		Artist:    s.artist,
		AudioOnly: true,
		Position:  st.Position.Milliseconds(),
	}
	s.async(func() {
		if err := s.store.SaveMediaInfo(info); err != nil {
			log.Warn().Err(err).Msg("Failed to save media info")
		}
	})
}

// async runs a store write on the pool. Without a pool it runs inline.
func (s *Service) async(job func()) {
	if s.pool == nil {
		job()
		return
	}
	if err := s.pool.Submit(job); err != nil {
		log.Warn().Err(err).Msg("Background job rejected")
	}
}

func (s *Service) publish(ev status.Event) {
	if s.bus != nil {
		s.bus.Publish(ev)
	}
}
