package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
)

// Observed property ids.
const (
	propPause = iota + 1
	propTimePos
	propDuration
	propEOF
)

var observed = []struct {
	id   int
	name string
}{
	{propPause, "pause"},
	{propTimePos, "time-pos"},
	{propDuration, "duration"},
	{propEOF, "eof-reached"},
}

// ErrReleased is returned by commands on a released engine.
var ErrReleased = errors.New("engine released")

// Config describes how a Host reaches mpv.
type Config struct {
	// Binary is the mpv executable. Empty means DefaultBinary.
	Binary string
	// Socket is the IPC socket path. Empty picks one in the temp dir.
	Socket string
	// Spawn starts a private mpv process. Without it Socket must belong to
	// an mpv already running with --input-ipc-server.
	Spawn bool
	// AudioOnly disables video output.
	AudioOnly bool
	// Args are appended to the mpv command line.
	Args []string
}

// Host owns one mpv instance and hands it to one engine at a time.
type Host struct {
	cfg Config

	mu   sync.Mutex
	proc *Process
	conn *Conn

	// current is read on the connection goroutine while mu may be held
	// waiting for a reply.
	current atomic.Pointer[Engine]
}

// NewHost creates a host. mpv is started lazily by the first NewEngine.
func NewHost(cfg Config) *Host {
	if cfg.Socket == "" {
		name := "streamly-mpv.sock"
		if cfg.AudioOnly {
			name = "streamly-mpv-audio.sock"
		}
		cfg.Socket = filepath.Join(os.TempDir(), name)
	}
	return &Host{cfg: cfg}
}

// NewEngine implements player.EngineHost. The previous engine, if any,
// stops receiving events.
func (h *Host) NewEngine() (player.Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.ensureConnLocked(); err != nil {
		return nil, err
	}
	e := newEngine(h, h.conn)
	h.current.Store(e)
	return e, nil
}

func (h *Host) ensureConnLocked() error {
	if h.conn != nil {
		select {
		case <-h.conn.Done():
			log.Warn().Msg("mpv connection lost, restarting")
			h.conn = nil
		default:
			return nil
		}
	}

	if h.cfg.Spawn {
		if h.proc != nil {
			h.proc.Stop(nil)
			h.proc = nil
		}
		extra := append([]string(nil), h.cfg.Args...)
		if h.cfg.AudioOnly {
			extra = append(extra, "--no-video")
		} else {
			extra = append(extra, "--force-window=yes")
		}
		proc, err := Start(h.cfg.Binary, h.cfg.Socket, extra)
		if err != nil {
			return err
		}
		h.proc = proc
	}

	ctx, cancel := context.WithTimeout(context.Background(), socketWaitRetries*socketWaitDelay)
	defer cancel()
	conn, err := Dial(ctx, h.cfg.Socket)
	if err != nil {
		return fmt.Errorf("mpv socket not ready: %w", err)
	}
	conn.SetHandler(h.route)
	for _, p := range observed {
		if _, err := conn.Command(ctx, "observe_property", p.id, p.name); err != nil {
			conn.Close()
			return fmt.Errorf("observe %s: %w", p.name, err)
		}
	}
	h.conn = conn
	return nil
}

func (h *Host) route(msg Message) {
	if e := h.current.Load(); e != nil {
		e.handle(msg)
	}
}

func (h *Host) detach(e *Engine) {
	h.current.CompareAndSwap(e, nil)
}

// Close shuts mpv down.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current.Store(nil)
	if h.proc != nil {
		h.proc.Stop(h.conn)
		h.proc = nil
	} else if h.conn != nil {
		h.conn.Close()
	}
	h.conn = nil
	return nil
}

// Engine is one load/play cycle on the host's mpv. Files are opened paused
// with keep-open so Ended leaves the file seekable for a replay.
type Engine struct {
	host *Host
	conn *Conn

	mu       sync.Mutex
	listener func(player.Event)
	loaded   bool
	paused   bool
	playing  bool
	position time.Duration
	duration time.Duration
	released bool

	events chan player.Event
	cancel context.CancelFunc
}

func newEngine(h *Host, conn *Conn) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		host:   h,
		conn:   conn,
		paused: true,
		events: make(chan player.Event, 32),
		cancel: cancel,
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

func (e *Engine) command(args ...any) (json.RawMessage, error) {
	e.mu.Lock()
	released := e.released
	e.mu.Unlock()
	if released {
		return nil, ErrReleased
	}
	return e.conn.Command(context.Background(), args...)
}

// Load opens item paused. Readiness arrives with mpv's file-loaded event.
func (e *Engine) Load(item media.Item) error {
	if _, err := e.command("set_property", "pause", true); err != nil {
		return err
	}
	if item.Title != "" {
		if _, err := e.command("set_property", "force-media-title", item.Title); err != nil {
			log.Debug().Err(err).Msg("mpv rejected title")
		}
	}
	_, err := e.command("loadfile", item.Locator(), "replace")
	return err
}

// Play unpauses.
func (e *Engine) Play() error {
	_, err := e.command("set_property", "pause", false)
	return err
}

// Pause pauses.
func (e *Engine) Pause() error {
	_, err := e.command("set_property", "pause", true)
	return err
}

// Stop unloads the file.
func (e *Engine) Stop() error {
	_, err := e.command("stop")
	return err
}

// SeekTo seeks to an absolute position.
func (e *Engine) SeekTo(position time.Duration) error {
	if _, err := e.command("seek", position.Seconds(), "absolute"); err != nil {
		return err
	}
	e.mu.Lock()
	e.position = position
	e.mu.Unlock()
	return nil
}

// Position returns the last observed time-pos.
func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Duration returns the observed duration.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// IsPlaying reports whether a file is loaded and unpaused.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// SetSpeed sets the playback rate.
func (e *Engine) SetSpeed(speed float64) error {
	_, err := e.command("set_property", "speed", speed)
	return err
}

// SetVolume maps 0..1 onto mpv's 0..100 volume.
func (e *Engine) SetVolume(volume float64) error {
	_, err := e.command("set_property", "volume", volume*100)
	return err
}

// Release stops playback and detaches from the host.
func (e *Engine) Release() error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	loaded := e.loaded
	e.mu.Unlock()

	var err error
	if loaded {
		_, err = e.command("stop")
	}

	e.mu.Lock()
	e.released = true
	e.listener = nil
	e.mu.Unlock()

	e.host.detach(e)
	e.cancel()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// handle runs on the connection's read goroutine.
func (e *Engine) handle(msg Message) {
	var evs []player.Event

	e.mu.Lock()
	switch msg.Event {
	case "file-loaded":
		e.loaded = true
		e.position = 0
		evs = append(evs, player.Event{Type: player.EventReady, Duration: e.duration})

	case "end-file":
		switch msg.Reason {
		case "error":
			e.loaded = false
			e.playing = false
			err := errors.New("playback failed")
			if msg.FileError != "" {
				err = fmt.Errorf("mpv: %s", msg.FileError)
			}
			evs = append(evs, player.Event{Type: player.EventError, Err: err})
		case "eof":
			// Only reached without keep-open, e.g. an external mpv.
			e.loaded = false
			e.playing = false
			evs = append(evs, player.Event{Type: player.EventEnded})
		}

	case "property-change":
		switch msg.ID {
		case propPause:
			var paused bool
			if json.Unmarshal(msg.Data, &paused) == nil {
				e.paused = paused
			}
		case propTimePos:
			var secs float64
			if json.Unmarshal(msg.Data, &secs) == nil {
				e.position = seconds(secs)
			}
		case propDuration:
			var secs float64
			if json.Unmarshal(msg.Data, &secs) == nil && secs > 0 {
				e.duration = seconds(secs)
				if e.loaded {
					evs = append(evs, player.Event{Type: player.EventReady, Duration: e.duration})
				}
			}
		case propEOF:
			var eof bool
			if json.Unmarshal(msg.Data, &eof) == nil && eof && e.loaded {
				e.playing = false
				evs = append(evs, player.Event{Type: player.EventEnded})
			}
		}
		if playing := e.loaded && !e.paused; playing != e.playing && msg.ID == propPause {
			e.playing = playing
			evs = append(evs, player.Event{Type: player.EventPlayingChanged, Playing: playing})
		}
	}
	released := e.released
	e.mu.Unlock()

	if released {
		return
	}
	for _, ev := range evs {
		select {
		case e.events <- ev:
		default:
			log.Warn().Stringer("event", ev.Type).Msg("mpv event queue full, dropping")
		}
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
