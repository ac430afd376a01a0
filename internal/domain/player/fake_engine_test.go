package player_test

import (
	"errors"
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
)

// fakeEngine is an in-memory engine that reports Ready as soon as it loads.
type fakeEngine struct {
	host     *fakeHost
	listener func(player.Event)
	loaded   media.Item
	playing  bool
	position time.Duration
	duration time.Duration
	speed    float64
	volume   float64
	released bool
	loadErr  error
	calls    []string
}

func (e *fakeEngine) SetListener(fn func(player.Event)) { e.listener = fn }

func (e *fakeEngine) emit(ev player.Event) {
	if e.listener != nil {
		e.listener(ev)
	}
}

func (e *fakeEngine) Load(item media.Item) error {
	e.calls = append(e.calls, "load")
	if e.loadErr != nil {
		return e.loadErr
	}
	e.loaded = item
	e.emit(player.Event{Type: player.EventReady, Duration: e.duration})
	return nil
}

func (e *fakeEngine) Play() error {
	e.calls = append(e.calls, "play")
	e.playing = true
	return nil
}

func (e *fakeEngine) Pause() error {
	e.calls = append(e.calls, "pause")
	e.playing = false
	return nil
}

func (e *fakeEngine) Stop() error {
	e.calls = append(e.calls, "stop")
	e.playing = false
	return nil
}

func (e *fakeEngine) SeekTo(position time.Duration) error {
	e.calls = append(e.calls, "seek")
	e.position = position
	return nil
}

func (e *fakeEngine) Position() time.Duration { return e.position }
func (e *fakeEngine) Duration() time.Duration { return e.duration }
func (e *fakeEngine) IsPlaying() bool         { return e.playing }

func (e *fakeEngine) SetSpeed(speed float64) error {
	e.speed = speed
	return nil
}

func (e *fakeEngine) SetVolume(volume float64) error {
	e.volume = volume
	return nil
}

func (e *fakeEngine) Release() error {
	e.released = true
	e.host.live--
	return nil
}

// fakeHost counts live engines and fails if two would overlap.
type fakeHost struct {
	name       string
	duration   time.Duration
	loadErr    error
	createErr  error
	engines    []*fakeEngine
	live       int
	peers      []*fakeHost
	overlapped bool
}

func (h *fakeHost) NewEngine() (player.Engine, error) {
	if h.createErr != nil {
		return nil, h.createErr
	}
	total := h.live
	for _, p := range h.peers {
		total += p.live
	}
	if total > 0 {
		h.overlapped = true
	}
	e := &fakeEngine{host: h, duration: h.duration, loadErr: h.loadErr, speed: 1}
	h.engines = append(h.engines, e)
	h.live++
	return e, nil
}

func (h *fakeHost) last() *fakeEngine {
	if len(h.engines) == 0 {
		return nil
	}
	return h.engines[len(h.engines)-1]
}

var errBadSource = errors.New("unsupported format")

// recorder captures listener callbacks.
type recorder struct {
	states    []player.State
	positions []time.Duration
	ended     []media.Item
	errs      []error
}

func (r *recorder) OnStateChanged(s player.State) { r.states = append(r.states, s) }
func (r *recorder) OnPosition(p, d time.Duration) { r.positions = append(r.positions, p) }
func (r *recorder) OnEnded(item media.Item)       { r.ended = append(r.ended, item) }
func (r *recorder) OnError(item media.Item, err error) {
	r.errs = append(r.errs, err)
}

func (r *recorder) last() player.State {
	if len(r.states) == 0 {
		return player.State{}
	}
	return r.states[len(r.states)-1]
}
