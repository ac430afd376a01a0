package player

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/loop"
)

// ErrNoEngine is returned when a host is missing for the requested mode.
var ErrNoEngine = errors.New("no media engine host configured")

// DefaultPositionInterval is the position polling period while playing.
const DefaultPositionInterval = time.Second

// Listener receives session callbacks on the loop goroutine.
type Listener interface {
	OnStateChanged(state State)
	OnPosition(position, duration time.Duration)
	OnEnded(item media.Item)
	OnError(item media.Item, err error)
}

// ListenerFuncs adapts optional functions to Listener.
type ListenerFuncs struct {
	StateChanged func(State)
	Position     func(position, duration time.Duration)
	Ended        func(media.Item)
	Error        func(media.Item, error)
}

func (f ListenerFuncs) OnStateChanged(state State) {
	if f.StateChanged != nil {
		f.StateChanged(state)
	}
}

func (f ListenerFuncs) OnPosition(position, duration time.Duration) {
	if f.Position != nil {
		f.Position(position, duration)
	}
}

func (f ListenerFuncs) OnEnded(item media.Item) {
	if f.Ended != nil {
		f.Ended(item)
	}
}

func (f ListenerFuncs) OnError(item media.Item, err error) {
	if f.Error != nil {
		f.Error(item, err)
	}
}

// Config wires a session to its runner and engine hosts.
type Config struct {
	Runner loop.Runner
	// VideoHost provides in-process engines for video mode.
	VideoHost EngineHost
	// AudioHost provides service-hosted engines for audio-only mode.
	AudioHost        EngineHost
	PositionInterval time.Duration
	Speed            float64
	Volume           float64
	AudioOnly        bool
}

// Session is the single source of truth for what is playing and how.
// All methods must be called on the runner's goroutine.
type Session struct {
	runner    loop.Runner
	videoHost EngineHost
	audioHost EngineHost
	interval  time.Duration

	engine     Engine
	generation int
	ticker     loop.Timer

	item          *media.Item
	status        Status
	playWhenReady bool
	pendingSeek   time.Duration
	duration      time.Duration
	lastPosition  time.Duration
	speed         float64
	volume        float64
	audioOnly     bool
	locked        bool
	pip           bool
	lastErr       error

	listeners []*listenerEntry
}

type listenerEntry struct {
	l Listener
}

// NewSession creates an idle session.
func NewSession(cfg Config) *Session {
	if cfg.PositionInterval <= 0 {
		cfg.PositionInterval = DefaultPositionInterval
	}
	if !ValidSpeed(cfg.Speed) {
		cfg.Speed = DefaultSpeed
	}
	if cfg.Volume <= 0 || cfg.Volume > 1 {
		cfg.Volume = 1
	}
	return &Session{
		runner:    cfg.Runner,
		videoHost: cfg.VideoHost,
		audioHost: cfg.AudioHost,
		interval:  cfg.PositionInterval,
		status:    StatusIdle,
		speed:     cfg.Speed,
		volume:    cfg.Volume,
		audioOnly: cfg.AudioOnly,
	}
}

// AddListener registers l and returns a function removing it.
func (s *Session) AddListener(l Listener) func() {
	entry := &listenerEntry{l: l}
	s.listeners = append(s.listeners, entry)
	return func() {
		for i, e := range s.listeners {
			if e == entry {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Start binds a fresh engine to item. Preparation failures surface through
// OnError and the Error state, never as a return value.
func (s *Session) Start(item media.Item, playWhenReady bool) {
	s.releaseEngine()
	s.lastErr = nil
	s.pendingSeek = 0
	s.bind(item, playWhenReady)
	s.notifyState()
}

// bind creates and loads an engine without notifying listeners.
func (s *Session) bind(item media.Item, playWhenReady bool) {
	s.item = &item
	s.playWhenReady = playWhenReady
	s.duration = item.Duration
	s.lastPosition = 0
	s.status = StatusPreparing

	host := s.videoHost
	if s.audioOnly {
		host = s.audioHost
	}
	if host == nil {
		s.setError(ErrNoEngine)
		return
	}

	eng, err := host.NewEngine()
	if err != nil {
		s.setError(err)
		return
	}

	s.generation++
	gen := s.generation
	eng.SetListener(func(ev Event) {
		s.runner.Post(func() { s.handleEvent(gen, ev) })
	})
	s.engine = eng

	if err := eng.SetVolume(s.volume); err != nil {
		log.Debug().Err(err).Msg("Engine rejected volume")
	}
	if !s.audioOnly && s.speed != DefaultSpeed {
		if err := eng.SetSpeed(s.speed); err != nil {
			log.Debug().Err(err).Float64("speed", s.speed).Msg("Engine rejected speed")
		}
	}

	log.Info().
		Str("id", item.ID).
		Str("path", item.Locator()).
		Bool("audioOnly", s.audioOnly).
		Msg("Loading media")

	if err := eng.Load(item); err != nil {
		s.setError(err)
	}
}

func (s *Session) handleEvent(gen int, ev Event) {
	if gen != s.generation || s.engine == nil {
		log.Debug().Stringer("event", ev.Type).Msg("Dropping event from released engine")
		return
	}

	switch ev.Type {
	case EventReady:
		if ev.Duration > 0 {
			s.duration = ev.Duration
		}
		if s.status != StatusPreparing {
			return
		}
		s.status = StatusReady
		if s.pendingSeek > 0 {
			s.engine.SeekTo(s.clamp(s.pendingSeek))
			s.pendingSeek = 0
		}
		if s.playWhenReady {
			s.play()
		}
		s.notifyState()

	case EventPlayingChanged:
		switch {
		case ev.Playing && s.status != StatusPlaying && s.status != StatusPreparing:
			s.status = StatusPlaying
			s.startTicker()
			s.notifyState()
		case !ev.Playing && s.status == StatusPlaying:
			s.lastPosition = s.engine.Position()
			s.stopTicker()
			s.status = StatusPaused
			s.notifyState()
		}

	case EventEnded:
		if s.status != StatusPlaying && s.status != StatusPaused && s.status != StatusReady {
			return
		}
		s.stopTicker()
		s.status = StatusEnded
		s.playWhenReady = false
		s.lastPosition = s.Duration()
		item := *s.item
		s.notifyState()
		for _, e := range s.snapshotListeners() {
			e.l.OnEnded(item)
		}

	case EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("media engine error")
		}
		s.fail(err)
	}
}

// setError records err without notifying.
func (s *Session) setError(err error) {
	s.stopTicker()
	s.status = StatusError
	s.lastErr = err
	s.playWhenReady = false

	ev := log.Warn().Err(err)
	if s.item != nil {
		ev = ev.Str("path", s.item.Locator())
	}
	ev.Msg("Playback error")

	if s.item == nil {
		return
	}
	item := *s.item
	s.runner.Post(func() {
		if s.lastErr != err {
			return
		}
		for _, e := range s.snapshotListeners() {
			e.l.OnError(item, err)
		}
	})
}

func (s *Session) fail(err error) {
	s.setError(err)
	s.notifyState()
}

// PlayPause toggles the play state. It is a no-op without an engine.
func (s *Session) PlayPause() {
	if s.engine == nil {
		return
	}
	switch s.status {
	case StatusPlaying:
		s.pause()
	case StatusPaused, StatusReady:
		s.play()
	case StatusEnded:
		s.engine.SeekTo(0)
		s.lastPosition = 0
		s.play()
	case StatusPreparing:
		s.playWhenReady = !s.playWhenReady
	default:
		return
	}
	s.notifyState()
}

// Play resumes playback if it is paused or ready.
func (s *Session) Play() {
	if s.engine == nil {
		return
	}
	switch s.status {
	case StatusPaused, StatusReady:
		s.play()
		s.notifyState()
	case StatusPreparing:
		s.playWhenReady = true
	}
}

// Pause pauses playback if it is playing.
func (s *Session) Pause() {
	if s.engine == nil {
		return
	}
	switch s.status {
	case StatusPlaying:
		s.pause()
		s.notifyState()
	case StatusPreparing:
		s.playWhenReady = false
	}
}

func (s *Session) play() {
	if err := s.engine.Play(); err != nil {
		s.setError(err)
		return
	}
	s.status = StatusPlaying
	s.playWhenReady = true
	s.startTicker()
}

func (s *Session) pause() {
	s.stopTicker()
	if err := s.engine.Pause(); err != nil {
		s.setError(err)
		return
	}
	s.lastPosition = s.engine.Position()
	s.status = StatusPaused
	s.playWhenReady = false
}

// Stop halts playback and releases the engine.
func (s *Session) Stop() {
	if s.engine == nil && s.status == StatusIdle {
		return
	}
	s.stopTicker()
	if s.engine != nil {
		if err := s.engine.Stop(); err != nil {
			log.Debug().Err(err).Msg("Engine stop failed")
		}
	}
	s.releaseEngine()
	s.item = nil
	s.status = StatusIdle
	s.playWhenReady = false
	s.lastPosition = 0
	s.duration = 0
	s.notifyState()
}

// SeekTo moves to position clamped into [0, duration] and returns the
// target actually used. An unknown duration only clamps the lower bound.
func (s *Session) SeekTo(position time.Duration) time.Duration {
	if s.engine == nil {
		return 0
	}
	target := s.clamp(position)

	if s.status == StatusPreparing {
		s.pendingSeek = target
		return target
	}
	if err := s.engine.SeekTo(target); err != nil {
		log.Warn().Err(err).Dur("position", target).Msg("Seek failed")
		return s.Position()
	}
	s.lastPosition = target
	if s.status == StatusEnded && target < s.Duration() {
		s.status = StatusPaused
		s.notifyState()
	}
	s.notifyPosition(target)
	return target
}

// SeekBy moves relative to the current position.
func (s *Session) SeekBy(offset time.Duration) time.Duration {
	return s.SeekTo(s.Position() + offset)
}

func (s *Session) clamp(position time.Duration) time.Duration {
	if position < 0 {
		return 0
	}
	if d := s.Duration(); d > 0 && position > d {
		return d
	}
	return position
}

// CycleSpeed advances to the next speed, wrapping after the last one.
func (s *Session) CycleSpeed() (float64, error) {
	return s.applySpeed(NextSpeed(s.speed))
}

// SetSpeed selects one of Speeds.
func (s *Session) SetSpeed(speed float64) (float64, error) {
	if !ValidSpeed(speed) {
		return s.speed, ErrInvalidSpeed
	}
	return s.applySpeed(speed)
}

func (s *Session) applySpeed(speed float64) (float64, error) {
	if s.audioOnly {
		return s.speed, ErrSpeedUnavailable
	}
	if s.engine != nil {
		if err := s.engine.SetSpeed(speed); err != nil {
			return s.speed, err
		}
	}
	s.speed = speed
	s.notifyState()
	return speed, nil
}

// SwitchMode moves playback between the in-process engine and the
// service-hosted engine. Position and play intent are captured before the
// old engine is released and restored on the new one; listeners observe a
// single state change.
func (s *Session) SwitchMode(audioOnly bool) error {
	if s.audioOnly == audioOnly {
		return nil
	}
	host := s.videoHost
	if audioOnly {
		host = s.audioHost
	}
	if host == nil {
		return ErrNoEngine
	}

	if s.item == nil || s.engine == nil {
		s.audioOnly = audioOnly
		s.notifyState()
		return nil
	}

	wasPlaying := s.status == StatusPlaying || (s.status == StatusPreparing && s.playWhenReady)
	position := s.Position()
	if s.status == StatusPreparing && s.pendingSeek > 0 {
		position = s.pendingSeek
	}
	item := *s.item

	s.releaseEngine()
	s.audioOnly = audioOnly
	s.lastErr = nil
	s.bind(item, wasPlaying)
	if position > 0 {
		s.pendingSeek = position
		s.lastPosition = position
	}

	log.Info().
		Bool("audioOnly", audioOnly).
		Dur("position", position).
		Bool("playing", wasPlaying).
		Msg("Switched playback mode")

	s.notifyState()
	return nil
}

// SetVolume sets the output volume in [0, 1].
func (s *Session) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	s.volume = volume
	if s.engine != nil {
		if err := s.engine.SetVolume(volume); err != nil {
			log.Debug().Err(err).Msg("Engine rejected volume")
		}
	}
}

// Volume returns the output volume.
func (s *Session) Volume() float64 {
	return s.volume
}

// SetLocked toggles the UI interaction lock.
func (s *Session) SetLocked(locked bool) {
	if s.locked == locked {
		return
	}
	s.locked = locked
	s.notifyState()
}

// SetPictureInPicture records the picture-in-picture window mode.
func (s *Session) SetPictureInPicture(pip bool) {
	if s.pip == pip {
		return
	}
	s.pip = pip
	s.notifyState()
}

// Position returns the engine position, or the last known one when unbound.
func (s *Session) Position() time.Duration {
	if s.engine == nil {
		return s.lastPosition
	}
	switch s.status {
	case StatusPreparing:
		if s.pendingSeek > 0 {
			return s.pendingSeek
		}
		return s.lastPosition
	case StatusEnded, StatusError:
		return s.lastPosition
	}
	return s.engine.Position()
}

// Duration returns the engine duration, falling back to the item metadata.
func (s *Session) Duration() time.Duration {
	if s.engine != nil {
		if d := s.engine.Duration(); d > 0 {
			return d
		}
	}
	return s.duration
}

// IsPlaying reports whether the session is playing.
func (s *Session) IsPlaying() bool {
	return s.status == StatusPlaying
}

// Status returns the current state machine state.
func (s *Session) Status() Status {
	return s.status
}

// Item returns the current item.
func (s *Session) Item() (media.Item, bool) {
	if s.item == nil {
		return media.Item{}, false
	}
	return *s.item, true
}

// AudioOnly reports the playback mode.
func (s *Session) AudioOnly() bool {
	return s.audioOnly
}

// Locked reports the UI interaction lock.
func (s *Session) Locked() bool {
	return s.locked
}

// PictureInPicture reports the window mode.
func (s *Session) PictureInPicture() bool {
	return s.pip
}

// Speed returns the selected playback speed.
func (s *Session) Speed() float64 {
	return s.speed
}

// Err returns the last engine error while in the Error state.
func (s *Session) Err() error {
	if s.status != StatusError {
		return nil
	}
	return s.lastErr
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	st := State{
		Status:           s.status,
		Position:         s.Position(),
		Duration:         s.Duration(),
		Speed:            s.speed,
		Volume:           s.volume,
		AudioOnly:        s.audioOnly,
		Locked:           s.locked,
		PictureInPicture: s.pip,
		PlayWhenReady:    s.playWhenReady,
	}
	if s.item != nil {
		item := *s.item
		st.Item = &item
	}
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Release tears down the engine and returns the session to Idle.
func (s *Session) Release() {
	s.releaseEngine()
	s.item = nil
	s.status = StatusIdle
	s.playWhenReady = false
}

// releaseEngine stops polling before clearing the engine reference, so no
// position update can follow a teardown.
func (s *Session) releaseEngine() {
	s.stopTicker()
	if s.engine == nil {
		return
	}
	eng := s.engine
	s.engine = nil
	s.generation++
	eng.SetListener(nil)
	if err := eng.Release(); err != nil {
		log.Warn().Err(err).Msg("Failed to release media engine")
	}
}

func (s *Session) startTicker() {
	if s.ticker != nil {
		return
	}
	s.ticker = s.runner.AfterFunc(s.interval, s.tick)
}

func (s *Session) stopTicker() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	s.ticker = nil
}

func (s *Session) tick() {
	s.ticker = nil
	if s.engine == nil || s.status != StatusPlaying {
		return
	}
	s.notifyPosition(s.engine.Position())
	s.ticker = s.runner.AfterFunc(s.interval, s.tick)
}

func (s *Session) notifyState() {
	st := s.Snapshot()
	for _, e := range s.snapshotListeners() {
		e.l.OnStateChanged(st)
	}
}

func (s *Session) notifyPosition(position time.Duration) {
	duration := s.Duration()
	for _, e := range s.snapshotListeners() {
		e.l.OnPosition(position, duration)
	}
}

func (s *Session) snapshotListeners() []*listenerEntry {
	return append([]*listenerEntry(nil), s.listeners...)
}
