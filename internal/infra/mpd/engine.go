package mpd

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
)

// DefaultPollInterval refreshes the position while nothing else changes.
const DefaultPollInterval = time.Second

// ErrNotLoaded is returned by transport commands before Load.
var ErrNotLoaded = errors.New("no media loaded")

// Commander is the subset of Client an Engine drives.
type Commander interface {
	Replace(uri string) error
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	SeekTo(position time.Duration) error
	SetVolume(vol int) error
	Status() (mpd.Attrs, error)
	Watch(ctx context.Context, subsystems ...string) (<-chan string, error)
}

// Host creates MPD engines sharing one connection.
type Host struct {
	cmd      Commander
	musicDir string
	poll     time.Duration
}

// NewHost creates a host. musicDir is MPD's music_directory; items below it
// are queued by relative URI, everything else as file:// URIs.
func NewHost(cmd Commander, musicDir string) *Host {
	return &Host{cmd: cmd, musicDir: musicDir, poll: DefaultPollInterval}
}

// NewEngine implements player.EngineHost.
func (h *Host) NewEngine() (player.Engine, error) {
	return newEngine(h.cmd, h.musicDir, h.poll), nil
}

// Engine plays one item through MPD. Player subsystem changes drive the
// event stream; a slow poll keeps the position fresh.
type Engine struct {
	cmd      Commander
	musicDir string
	poll     time.Duration

	mu       sync.Mutex
	listener func(player.Event)
	loaded   bool
	started  bool
	stopping bool
	released bool
	playing  bool
	elapsed  time.Duration
	duration time.Duration
	polledAt time.Time
	lastErr  string

	events chan player.Event
	cancel context.CancelFunc
}

func newEngine(cmd Commander, musicDir string, poll time.Duration) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cmd:      cmd,
		musicDir: musicDir,
		poll:     poll,
		events:   make(chan player.Event, 16),
		cancel:   cancel,
	}
	go e.dispatch(ctx)
	return e
}

// SetListener installs the event callback.
func (e *Engine) SetListener(fn func(player.Event)) {
	e.mu.Lock()
	e.listener = fn
	e.mu.Unlock()
}

// URI maps an item to the string MPD's add command expects.
func (e *Engine) URI(item media.Item) string {
	if item.Path == "" {
		return item.URI
	}
	if e.musicDir != "" {
		if rel, err := filepath.Rel(e.musicDir, item.Path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return "file://" + item.Path
}

// Load replaces the MPD queue with item and starts watching the player.
func (e *Engine) Load(item media.Item) error {
	uri := e.URI(item)
	if err := e.cmd.Replace(uri); err != nil {
		return err
	}

	e.mu.Lock()
	e.loaded = true
	e.duration = item.Duration
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := e.cmd.Watch(ctx, "player")
	if err != nil {
		cancel()
		return err
	}
	go e.watch(ctx, changes)

	e.mu.Lock()
	prev := e.cancel
	e.cancel = func() {
		cancel()
		prev()
	}
	e.mu.Unlock()

	log.Debug().Str("uri", uri).Msg("MPD queue replaced")
	e.emit(player.Event{Type: player.EventReady, Duration: item.Duration})
	return nil
}

// Play starts the queued song or resumes it.
func (e *Engine) Play() error {
	e.mu.Lock()
	loaded, started := e.loaded, e.started
	e.mu.Unlock()
	if !loaded {
		return ErrNotLoaded
	}

	var err error
	if started {
		err = e.cmd.Pause(false)
	} else {
		err = e.cmd.Play(0)
	}
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.started = true
	e.stopping = false
	e.mu.Unlock()
	e.setPlaying(true)
	return nil
}

// Pause pauses playback.
func (e *Engine) Pause() error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return nil
	}
	if err := e.cmd.Pause(true); err != nil {
		return err
	}
	e.refresh()
	e.setPlaying(false)
	return nil
}

// Stop stops playback. A requested stop never reports Ended.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopping = true
	e.started = false
	e.mu.Unlock()
	if err := e.cmd.Stop(); err != nil {
		return err
	}
	e.setPlaying(false)
	return nil
}

// SeekTo moves the play head. Before the first Play MPD has no current
// song, so the session keeps the seek pending.
func (e *Engine) SeekTo(position time.Duration) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return ErrNotLoaded
	}
	if err := e.cmd.SeekTo(position); err != nil {
		return err
	}
	e.mu.Lock()
	e.elapsed = position
	e.polledAt = time.Now()
	e.mu.Unlock()
	return nil
}

// Position extrapolates from the last status while playing.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.elapsed
	if e.playing && !e.polledAt.IsZero() {
		pos += time.Since(e.polledAt)
	}
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}
	return pos
}

// Duration returns the song length reported by MPD.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// IsPlaying reports whether MPD is producing output.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// SetSpeed is unsupported; MPD plays at native rate only.
func (e *Engine) SetSpeed(speed float64) error {
	if speed == player.DefaultSpeed {
		return nil
	}
	return player.ErrSpeedUnavailable
}

// SetVolume maps 0..1 onto MPD's 0..100 mixer range.
func (e *Engine) SetVolume(volume float64) error {
	return e.cmd.SetVolume(int(volume*100 + 0.5))
}

// Release stops playback and the watchers. No events follow.
func (e *Engine) Release() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	e.released = true
	e.listener = nil
	loaded := e.loaded
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	if loaded {
		return e.cmd.Stop()
	}
	return nil
}

func (e *Engine) watch(ctx context.Context, changes <-chan string) {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			e.refresh()
		case <-ticker.C:
			e.refresh()
		}
	}
}

// refresh reads the MPD status and emits whatever changed.
func (e *Engine) refresh() {
	attrs, err := e.cmd.Status()
	if err != nil {
		log.Debug().Err(err).Msg("MPD status failed")
		return
	}

	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	if v, err := strconv.ParseFloat(attrs["elapsed"], 64); err == nil {
		e.elapsed = seconds(v)
	}
	if v, err := strconv.ParseFloat(attrs["duration"], 64); err == nil && v > 0 {
		e.duration = seconds(v)
	}
	e.polledAt = time.Now()

	var evs []player.Event
	if msg := attrs["error"]; msg != "" && msg != e.lastErr {
		e.lastErr = msg
		evs = append(evs, player.Event{Type: player.EventError, Err: errors.New(msg)})
	}

	state := attrs["state"]
	switch {
	case state == "play" && !e.playing && e.started:
		e.playing = true
		evs = append(evs, player.Event{Type: player.EventPlayingChanged, Playing: true})
	case state == "pause" && e.playing:
		e.playing = false
		evs = append(evs, player.Event{Type: player.EventPlayingChanged, Playing: false})
	case state == "stop" && e.started && !e.stopping && e.lastErr == "":
		e.started = false
		e.playing = false
		e.elapsed = e.duration
		evs = append(evs, player.Event{Type: player.EventEnded})
	}
	e.mu.Unlock()

	for _, ev := range evs {
		e.emit(ev)
	}
}

func (e *Engine) setPlaying(playing bool) {
	e.mu.Lock()
	if e.playing == playing {
		e.mu.Unlock()
		return
	}
	e.playing = playing
	e.polledAt = time.Now()
	e.mu.Unlock()
	e.emit(player.Event{Type: player.EventPlayingChanged, Playing: playing})
}

// emit queues ev for the dispatcher. Engines may be driven from the session
// loop, so listeners are never called inline.
func (e *Engine) emit(ev player.Event) {
	e.mu.Lock()
	released := e.released
	e.mu.Unlock()
	if released {
		return
	}
	select {
	case e.events <- ev:
	default:
		log.Warn().Stringer("event", ev.Type).Msg("MPD event queue full, dropping")
	}
}

func (e *Engine) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.events:
			e.mu.Lock()
			fn := e.listener
			e.mu.Unlock()
			if fn != nil {
				fn(ev)
			}
		}
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
