package mpd_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gompd "github.com/fhs/gompd/v2/mpd"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
	"github.com/edumarques81/streamly-backend/internal/infra/mpd"
)

type mockCommander struct {
	mu       sync.Mutex
	calls    []string
	uri      string
	volume   int
	status   gompd.Attrs
	changes  chan string
	replaceE error
}

func newMockCommander() *mockCommander {
	return &mockCommander{
		status:  gompd.Attrs{"state": "stop"},
		changes: make(chan string, 4),
	}
}

func (m *mockCommander) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockCommander) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockCommander) setStatus(attrs gompd.Attrs) {
	m.mu.Lock()
	m.status = attrs
	m.mu.Unlock()
}

func (m *mockCommander) Replace(uri string) error {
	m.record("replace")
	m.mu.Lock()
	m.uri = uri
	m.mu.Unlock()
	return m.replaceE
}

func (m *mockCommander) Play(pos int) error {
	m.record("play")
	return nil
}

func (m *mockCommander) Pause(pause bool) error {
	if pause {
		m.record("pause")
	} else {
		m.record("resume")
	}
	return nil
}

func (m *mockCommander) Stop() error {
	m.record("stop")
	return nil
}

func (m *mockCommander) SeekTo(position time.Duration) error {
	m.record("seek")
	return nil
}

func (m *mockCommander) SetVolume(vol int) error {
	m.mu.Lock()
	m.volume = vol
	m.mu.Unlock()
	return nil
}

func (m *mockCommander) Status() (gompd.Attrs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := gompd.Attrs{}
	for k, v := range m.status {
		out[k] = v
	}
	return out, nil
}

func (m *mockCommander) Watch(ctx context.Context, subsystems ...string) (<-chan string, error) {
	return m.changes, nil
}

func newEngine(t *testing.T, cmd *mockCommander) (player.Engine, <-chan player.Event) {
	t.Helper()
	eng, err := mpd.NewHost(cmd, "/music").NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	events := make(chan player.Event, 16)
	eng.SetListener(func(ev player.Event) { events <- ev })
	t.Cleanup(func() { eng.Release() })
	return eng, events
}

func waitEvent(t *testing.T, events <-chan player.Event, want player.EventType) player.Event {
	t.Helper()
	select {
	case ev := <-events:
		if ev.Type != want {
			t.Fatalf("Expected %s event, got %s", want, ev.Type)
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for %s event", want)
	}
	return player.Event{}
}

func TestEngineURI(t *testing.T) {
	eng := mpd.NewHost(newMockCommander(), "/music")
	e, _ := eng.NewEngine()
	m := e.(*mpd.Engine)

	tests := []struct {
		item media.Item
		want string
	}{
		{media.Item{Path: "/music/Album/song.flac"}, "Album/song.flac"},
		{media.Item{Path: "/other/clip.mp4"}, "file:///other/clip.mp4"},
		{media.Item{URI: "http://radio/stream"}, "http://radio/stream"},
	}
	for _, tt := range tests {
		if got := m.URI(tt.item); got != tt.want {
			t.Errorf("URI(%+v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestEngineLoadPlayPause(t *testing.T) {
	cmd := newMockCommander()
	eng, events := newEngine(t, cmd)

	if err := eng.Load(media.Item{Path: "/music/a.mp3", Duration: 3 * time.Minute}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	ev := waitEvent(t, events, player.EventReady)
	if ev.Duration != 3*time.Minute {
		t.Errorf("Expected item duration on ready, got %v", ev.Duration)
	}

	cmd.setStatus(gompd.Attrs{"state": "play"})
	if err := eng.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if ev := waitEvent(t, events, player.EventPlayingChanged); !ev.Playing {
		t.Error("Expected playing=true")
	}
	if !eng.IsPlaying() {
		t.Error("Engine should report playing")
	}

	cmd.setStatus(gompd.Attrs{"state": "pause", "elapsed": "12.5", "duration": "180.0"})
	if err := eng.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if ev := waitEvent(t, events, player.EventPlayingChanged); ev.Playing {
		t.Error("Expected playing=false")
	}
	if got := eng.Position(); got != 12500*time.Millisecond {
		t.Errorf("Expected position 12.5s, got %v", got)
	}

	if err := eng.Play(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	waitEvent(t, events, player.EventPlayingChanged)

	calls := cmd.Calls()
	want := []string{"replace", "play", "pause", "resume"}
	if len(calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, calls[i], want[i])
		}
	}
}

func TestEngineEndedAndStop(t *testing.T) {
	cmd := newMockCommander()
	eng, events := newEngine(t, cmd)
	eng.Load(media.Item{Path: "/music/a.mp3"})
	waitEvent(t, events, player.EventReady)
	cmd.setStatus(gompd.Attrs{"state": "play"})
	eng.Play()
	waitEvent(t, events, player.EventPlayingChanged)

	// Natural completion shows up as stop without a requested Stop.
	cmd.setStatus(gompd.Attrs{"state": "stop"})
	cmd.changes <- "player"
	waitEvent(t, events, player.EventEnded)

	cmd.setStatus(gompd.Attrs{"state": "play"})
	eng.Play()
	waitEvent(t, events, player.EventPlayingChanged)
	eng.Stop()
	waitEvent(t, events, player.EventPlayingChanged)
	cmd.setStatus(gompd.Attrs{"state": "stop"})
	cmd.changes <- "player"

	select {
	case ev := <-events:
		t.Errorf("Requested stop should not emit %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineErrorStatus(t *testing.T) {
	cmd := newMockCommander()
	eng, events := newEngine(t, cmd)
	eng.Load(media.Item{Path: "/music/broken.mp3"})
	waitEvent(t, events, player.EventReady)
	cmd.setStatus(gompd.Attrs{"state": "play"})
	eng.Play()
	waitEvent(t, events, player.EventPlayingChanged)

	cmd.setStatus(gompd.Attrs{"state": "stop", "error": "failed to decode"})
	cmd.changes <- "player"
	ev := waitEvent(t, events, player.EventError)
	if ev.Err == nil || ev.Err.Error() != "failed to decode" {
		t.Errorf("Unexpected error %v", ev.Err)
	}
}

func TestEngineLoadFailure(t *testing.T) {
	cmd := newMockCommander()
	cmd.replaceE = errors.New("no such file")
	eng, _ := newEngine(t, cmd)

	if err := eng.Load(media.Item{Path: "/music/missing.mp3"}); err == nil {
		t.Error("Load should surface the queue error")
	}
	if err := eng.Play(); !errors.Is(err, mpd.ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
}

func TestEngineSpeedAndVolume(t *testing.T) {
	cmd := newMockCommander()
	eng, _ := newEngine(t, cmd)

	if err := eng.SetSpeed(1.0); err != nil {
		t.Errorf("Native speed should be accepted: %v", err)
	}
	if err := eng.SetSpeed(1.5); !errors.Is(err, player.ErrSpeedUnavailable) {
		t.Errorf("Expected ErrSpeedUnavailable, got %v", err)
	}
	eng.SetVolume(0.42)
	cmd.mu.Lock()
	defer cmd.mu.Unlock()
	if cmd.volume != 42 {
		t.Errorf("Expected volume 42, got %d", cmd.volume)
	}
}

func TestEngineReleaseStops(t *testing.T) {
	cmd := newMockCommander()
	eng, events := newEngine(t, cmd)
	eng.Load(media.Item{Path: "/music/a.mp3"})
	waitEvent(t, events, player.EventReady)

	if err := eng.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	calls := cmd.Calls()
	if calls[len(calls)-1] != "stop" {
		t.Errorf("Release should stop MPD, got %v", calls)
	}
	if err := eng.Release(); err != nil {
		t.Errorf("Second release should be a no-op: %v", err)
	}
}
