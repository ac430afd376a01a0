package controller_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/controller"
	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
	"github.com/edumarques81/streamly-backend/internal/domain/playlist"
	"github.com/edumarques81/streamly-backend/internal/domain/prefs"
	"github.com/edumarques81/streamly-backend/internal/domain/status"
	"github.com/edumarques81/streamly-backend/internal/loop"
)

type mockEngine struct {
	listener func(player.Event)
	playing  bool
	position time.Duration
	duration time.Duration
	loadErr  error
	item     media.Item
}

func (e *mockEngine) SetListener(fn func(player.Event)) { e.listener = fn }

func (e *mockEngine) emit(ev player.Event) {
	if e.listener != nil {
		e.listener(ev)
	}
}

func (e *mockEngine) Load(item media.Item) error {
	if e.loadErr != nil {
		return e.loadErr
	}
	e.item = item
	e.emit(player.Event{Type: player.EventReady, Duration: e.duration})
	return nil
}

func (e *mockEngine) Play() error {
	e.playing = true
	return nil
}

func (e *mockEngine) Pause() error {
	e.playing = false
	return nil
}

func (e *mockEngine) Stop() error {
	e.playing = false
	return nil
}

func (e *mockEngine) SeekTo(p time.Duration) error {
	e.position = p
	return nil
}

func (e *mockEngine) Position() time.Duration { return e.position }
func (e *mockEngine) Duration() time.Duration { return e.duration }
func (e *mockEngine) IsPlaying() bool         { return e.playing }
func (e *mockEngine) SetSpeed(float64) error  { return nil }
func (e *mockEngine) SetVolume(float64) error { return nil }
func (e *mockEngine) Release() error          { return nil }

type mockHost struct {
	loadErr error
	engines []*mockEngine
}

func (h *mockHost) NewEngine() (player.Engine, error) {
	e := &mockEngine{duration: time.Minute, loadErr: h.loadErr}
	h.engines = append(h.engines, e)
	return e, nil
}

func (h *mockHost) last() *mockEngine {
	return h.engines[len(h.engines)-1]
}

type mockView struct {
	states     []controller.State
	notices    []string
	countdowns []int
	overlays   []string
}

func (v *mockView) Render(s controller.State)   { v.states = append(v.states, s) }
func (v *mockView) Position(p, d time.Duration) {}
func (v *mockView) Notice(m string)             { v.notices = append(v.notices, m) }
func (v *mockView) Countdown(n int)             { v.countdowns = append(v.countdowns, n) }
func (v *mockView) ErrorOverlay(m string)       { v.overlays = append(v.overlays, m) }

func (v *mockView) count(notice string) int {
	n := 0
	for _, m := range v.notices {
		if m == notice {
			n++
		}
	}
	return n
}

type mockSettings struct {
	background bool
	pip        bool
	gestures   bool
	increment  int
	saved      []prefs.MediaInfo
	cleared    int
	volume     float64
	brightness float64
}

func newSettings() *mockSettings {
	return &mockSettings{background: true, pip: true, gestures: true, increment: 10}
}

func (s *mockSettings) BackgroundPlayback() bool { return s.background }
func (s *mockSettings) PipEnabled() bool         { return s.pip }
func (s *mockSettings) GestureControls() bool    { return s.gestures }
func (s *mockSettings) SeekIncrement() int       { return s.increment }
func (s *mockSettings) PlaybackSpeed() float64   { return 1.0 }
func (s *mockSettings) VolumeLevel() float64     { return 1.0 }
func (s *mockSettings) BrightnessLevel() float64 { return 0.5 }

func (s *mockSettings) SetLevels(volume, brightness float64) error {
	s.volume, s.brightness = volume, brightness
	return nil
}

func (s *mockSettings) SaveMediaInfo(info prefs.MediaInfo) error {
	s.saved = append(s.saved, info)
	return nil
}

func (s *mockSettings) ClearMediaInfo() error {
	s.cleared++
	return nil
}

type mockRecorder struct{ items []media.Item }

func (r *mockRecorder) Record(item media.Item) { r.items = append(r.items, item) }

type mockBackground struct{ calls []string }

func (b *mockBackground) FocusChanged(player.FocusChange)   { b.calls = append(b.calls, "focus") }
func (b *mockBackground) CallStateChanged(player.CallState) { b.calls = append(b.calls, "call") }
func (b *mockBackground) HeadsetChanged(bool)               { b.calls = append(b.calls, "headset") }

type fixture struct {
	runner     *loop.Manual
	video      *mockHost
	audio      *mockHost
	bus        *status.Bus
	view       *mockView
	settings   *mockSettings
	recorder   *mockRecorder
	background *mockBackground
	ctrl       *controller.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runner:     loop.NewManual(),
		video:      &mockHost{},
		audio:      &mockHost{},
		bus:        status.NewBus(),
		view:       &mockView{},
		settings:   newSettings(),
		recorder:   &mockRecorder{},
		background: &mockBackground{},
	}
	f.ctrl = controller.New(controller.Config{
		Runner:     f.runner,
		VideoHost:  f.video,
		AudioHost:  f.audio,
		Bus:        f.bus,
		Settings:   f.settings,
		Recorder:   f.recorder,
		Background: f.background,
	}, f.view)
	return f
}

func items(n int) []media.Item {
	out := make([]media.Item, n)
	for i := range out {
		out[i] = media.Item{ID: fmt.Sprintf("v%d", i), Title: fmt.Sprintf("Video %d", i), Path: fmt.Sprintf("/videos/v%d.mp4", i)}
	}
	return out
}

func (f *fixture) currentID() string {
	item, _ := f.ctrl.Session().Item()
	return item.ID
}

func TestController_OpenStartsPlayback(t *testing.T) {
	f := newFixture(t)

	if err := f.ctrl.Open(items(3), 1, false); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	f.runner.Drain()

	if !f.ctrl.Session().IsPlaying() {
		t.Fatalf("expected playing, got %s", f.ctrl.Session().Status())
	}
	if f.currentID() != "v1" {
		t.Errorf("expected v1, got %s", f.currentID())
	}
	if f.view.count("Playing: Video 1 (2 of 3)") != 1 {
		t.Errorf("expected playing notice, got %v", f.view.notices)
	}
	if len(f.recorder.items) != 1 || f.recorder.items[0].ID != "v1" {
		t.Errorf("expected v1 recorded, got %v", f.recorder.items)
	}
	if len(f.settings.saved) != 1 || f.settings.saved[0].Path != "/videos/v1.mp4" {
		t.Errorf("expected last played path saved, got %+v", f.settings.saved)
	}

	snap := f.ctrl.Snapshot()
	if snap.Index != 1 || snap.Count != 3 {
		t.Errorf("expected index 1 of 3, got %d of %d", snap.Index, snap.Count)
	}
}

func TestController_OpenEmpty(t *testing.T) {
	f := newFixture(t)
	if err := f.ctrl.Open(nil, 0, false); !errors.Is(err, playlist.ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestController_NextPastEndNoticesOnce(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(3), 0, false)
	f.runner.Drain()

	f.ctrl.Next()
	f.ctrl.Next()
	err := f.ctrl.Next()
	f.runner.Drain()

	if !errors.Is(err, playlist.ErrNoNext) {
		t.Errorf("expected ErrNoNext, got %v", err)
	}
	if f.ctrl.Snapshot().Index != 2 {
		t.Errorf("expected index 2, got %d", f.ctrl.Snapshot().Index)
	}
	if got := f.view.count(controller.NoticeNoNext); got != 1 {
		t.Errorf("expected one no-more-items notice, got %d", got)
	}
}

func TestController_PreviousAtStart(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(2), 0, false)

	if err := f.ctrl.Previous(); !errors.Is(err, playlist.ErrNoPrevious) {
		t.Errorf("expected ErrNoPrevious, got %v", err)
	}
	if f.view.count(controller.NoticeNoPrevious) != 1 {
		t.Error("expected already-at-first notice")
	}
}

func TestController_AutoAdvanceCountdown(t *testing.T) {
	t.Run("cancel leaves ended item", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Open(items(2), 0, false)
		f.runner.Drain()

		f.video.last().emit(player.Event{Type: player.EventEnded})
		f.runner.Drain()

		if n := len(f.view.countdowns); n == 0 || f.view.countdowns[n-1] != 3 {
			t.Fatalf("expected countdown from 3, got %v", f.view.countdowns)
		}
		if !f.ctrl.CancelAutoAdvance() {
			t.Fatal("expected a running countdown to cancel")
		}
		f.runner.Advance(10 * time.Second)

		if f.currentID() != "v0" {
			t.Errorf("expected to stay on v0, got %s", f.currentID())
		}
		if f.ctrl.Session().Status() != player.StatusEnded {
			t.Errorf("expected ended, got %s", f.ctrl.Session().Status())
		}
	})

	t.Run("expiry advances", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Open(items(2), 0, false)
		f.runner.Drain()

		f.video.last().emit(player.Event{Type: player.EventEnded})
		f.runner.Drain()
		f.runner.Advance(3 * time.Second)

		if f.currentID() != "v1" {
			t.Errorf("expected v1 after countdown, got %s", f.currentID())
		}
		if !f.ctrl.Session().IsPlaying() {
			t.Errorf("expected playing, got %s", f.ctrl.Session().Status())
		}
	})

	t.Run("manual navigation supersedes countdown", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Open(items(3), 0, false)
		f.runner.Drain()

		f.video.last().emit(player.Event{Type: player.EventEnded})
		f.runner.Drain()
		f.ctrl.Next()
		f.runner.Advance(5 * time.Second)

		if f.currentID() != "v1" {
			t.Errorf("expected single advance to v1, got %s", f.currentID())
		}
	})
}

func TestController_PictureInPictureAdvancesImmediately(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(2), 0, false)
	f.runner.Drain()
	if err := f.ctrl.EnterPictureInPicture(); err != nil {
		t.Fatalf("EnterPictureInPicture failed: %v", err)
	}

	f.video.last().emit(player.Event{Type: player.EventEnded})
	f.runner.Drain()

	if f.currentID() != "v1" {
		t.Errorf("expected immediate advance to v1, got %s", f.currentID())
	}
	if len(f.view.countdowns) != 1 || f.view.countdowns[0] != 0 {
		t.Errorf("expected no countdown, got %v", f.view.countdowns)
	}
}

func TestController_LastItemEndsPlaylist(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(1), 0, false)
	f.runner.Drain()

	f.video.last().emit(player.Event{Type: player.EventEnded})
	f.runner.Drain()
	f.runner.Advance(5 * time.Second)

	if f.ctrl.Session().Status() != player.StatusEnded {
		t.Errorf("expected ended, got %s", f.ctrl.Session().Status())
	}
	if f.settings.cleared != 1 {
		t.Errorf("expected playing prefs cleared once, got %d", f.settings.cleared)
	}
}

func TestController_DoubleTap(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(1), 0, false)
	f.runner.Drain()
	f.ctrl.SeekTo(30 * time.Second)

	if got, _ := f.ctrl.DoubleTap(900, 1000); got != 40*time.Second {
		t.Errorf("expected forward to 40s, got %v", got)
	}
	if got, _ := f.ctrl.DoubleTap(100, 1000); got != 30*time.Second {
		t.Errorf("expected back to 30s, got %v", got)
	}

	f.ctrl.ToggleLock()
	if _, err := f.ctrl.DoubleTap(900, 1000); !errors.Is(err, controller.ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	f.ctrl.ToggleLock()

	f.ctrl.SwitchMode(true)
	if _, err := f.ctrl.DoubleTap(900, 1000); !errors.Is(err, controller.ErrAudioOnly) {
		t.Errorf("expected ErrAudioOnly, got %v", err)
	}
}

func TestController_AudioModeRestrictions(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(1), 0, true)
	f.runner.Drain()

	if len(f.audio.engines) != 1 || len(f.video.engines) != 0 {
		t.Fatalf("expected one audio engine, got audio=%d video=%d", len(f.audio.engines), len(f.video.engines))
	}
	if _, err := f.ctrl.CycleSpeed(); !errors.Is(err, player.ErrSpeedUnavailable) {
		t.Errorf("expected ErrSpeedUnavailable, got %v", err)
	}
	if f.view.count(controller.NoticeSpeedAudioOnly) != 1 {
		t.Error("expected speed notice")
	}
	if err := f.ctrl.EnterPictureInPicture(); !errors.Is(err, controller.ErrAudioOnly) {
		t.Errorf("expected ErrAudioOnly for picture-in-picture, got %v", err)
	}
	if _, err := f.ctrl.AdjustBrightness(0.1); !errors.Is(err, controller.ErrAudioOnly) {
		t.Errorf("expected ErrAudioOnly for brightness, got %v", err)
	}

	// Interruptions belong to the background service in audio mode.
	f.ctrl.CallStateChanged(player.CallRinging)
	if len(f.background.calls) != 1 || f.background.calls[0] != "call" {
		t.Errorf("expected call routed to background, got %v", f.background.calls)
	}
}

func TestController_BackgroundPlaybackDisabled(t *testing.T) {
	f := newFixture(t)
	f.settings.background = false

	f.ctrl.Open(items(1), 0, true)
	f.runner.Drain()

	if f.ctrl.Session().AudioOnly() {
		t.Error("expected audio-only to be refused")
	}
	if err := f.ctrl.SwitchMode(true); !errors.Is(err, controller.ErrBackgroundOff) {
		t.Errorf("expected ErrBackgroundOff, got %v", err)
	}
}

func TestController_IncomingCallInVideoMode(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(1), 0, false)
	f.runner.Drain()

	f.ctrl.CallStateChanged(player.CallRinging)
	if f.ctrl.Session().Status() != player.StatusPaused {
		t.Fatalf("expected paused, got %s", f.ctrl.Session().Status())
	}
	if !f.ctrl.Interruptions().ShouldResume {
		t.Error("expected was-playing-before-call")
	}

	f.ctrl.CallStateChanged(player.CallIdle)
	if f.ctrl.Session().Status() != player.StatusPlaying {
		t.Errorf("expected playing after the call, got %s", f.ctrl.Session().Status())
	}
}

func TestController_TrackActionFromNotification(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(2), 0, false)
	f.runner.Drain()

	f.bus.Publish(status.Event{Kind: status.KindTrackAction, Action: status.ActionNext})
	f.runner.Drain()

	if f.currentID() != "v1" {
		t.Errorf("expected NEXT to advance, got %s", f.currentID())
	}
}

func TestController_ErrorOverlayAndRetry(t *testing.T) {
	f := newFixture(t)
	f.video.loadErr = errors.New("unsupported codec")

	f.ctrl.Open(items(1), 0, false)
	f.runner.Drain()

	if len(f.view.overlays) == 0 || f.view.overlays[len(f.view.overlays)-1] != "unsupported codec" {
		t.Fatalf("expected error overlay, got %v", f.view.overlays)
	}
	if f.view.count(controller.NoticeCannotPlay) != 1 {
		t.Error("expected transient error notice")
	}

	f.video.loadErr = nil
	if err := f.ctrl.PlayPause(); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	f.runner.Drain()

	if !f.ctrl.Session().IsPlaying() {
		t.Errorf("expected playing after retry, got %s", f.ctrl.Session().Status())
	}
	if len(f.video.engines) != 2 {
		t.Errorf("expected exactly one user-initiated retry, got %d engines", len(f.video.engines))
	}
}

func TestController_Gestures(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(1), 0, false)
	f.runner.Drain()

	b, err := f.ctrl.AdjustBrightness(0.25)
	if err != nil {
		t.Fatalf("AdjustBrightness failed: %v", err)
	}
	if b != 0.75 {
		t.Errorf("expected brightness 0.75, got %v", b)
	}
	v, _ := f.ctrl.AdjustVolume(-0.25)
	if v != 0.75 {
		t.Errorf("expected volume 0.75, got %v", v)
	}
	if f.settings.volume != 0.75 || f.settings.brightness != 0.75 {
		t.Errorf("expected levels persisted, got %v/%v", f.settings.volume, f.settings.brightness)
	}

	f.settings.gestures = false
	if _, err := f.ctrl.AdjustVolume(0.1); !errors.Is(err, controller.ErrGesturesDisabled) {
		t.Errorf("expected ErrGesturesDisabled, got %v", err)
	}
}

func TestController_VolumeSwipeWhileDucked(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(1), 0, false)
	f.runner.Drain()
	f.ctrl.AdjustVolume(-0.5)

	f.ctrl.FocusChanged(player.FocusLossTransientCanDuck)
	if got := f.ctrl.Session().Volume(); got != player.DuckVolume {
		t.Fatalf("expected ducked output %v, got %v", player.DuckVolume, got)
	}

	v, err := f.ctrl.AdjustVolume(0.25)
	if err != nil {
		t.Fatalf("AdjustVolume failed: %v", err)
	}
	if v != 0.75 {
		t.Errorf("expected user volume 0.75, got %v", v)
	}
	if f.settings.volume != 0.75 {
		t.Errorf("expected the user level persisted, got %v", f.settings.volume)
	}

	f.ctrl.FocusChanged(player.FocusGain)
	if got := f.ctrl.Session().Volume(); got != 0.75 {
		t.Errorf("expected volume 0.75 after focus gain, got %v", got)
	}
}

func TestController_CloseStopsPlayback(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(1), 0, false)
	f.runner.Drain()

	f.ctrl.Close()

	if f.ctrl.Session().Status() != player.StatusIdle {
		t.Errorf("expected idle, got %s", f.ctrl.Session().Status())
	}
	if err := f.ctrl.Next(); !errors.Is(err, controller.ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestController_TrackActionAfterReopen(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(2), 0, false)
	f.runner.Drain()
	f.ctrl.Close()

	if err := f.ctrl.Open(items(2), 0, false); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	f.runner.Drain()

	f.bus.Publish(status.Event{Kind: status.KindTrackAction, Action: status.ActionNext})
	f.runner.Drain()

	if f.bus.Len() != 1 {
		t.Errorf("expected one bus subscriber, got %d", f.bus.Len())
	}
	if f.currentID() != "v1" {
		t.Errorf("expected NEXT to advance after reopen, got %s", f.currentID())
	}
}

func TestController_ReleaseUnsubscribes(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Open(items(2), 0, false)
	f.runner.Drain()

	f.ctrl.Release()

	if f.ctrl.Session().Status() != player.StatusIdle {
		t.Errorf("expected idle, got %s", f.ctrl.Session().Status())
	}
	if f.bus.Len() != 0 {
		t.Errorf("expected no bus subscribers, got %d", f.bus.Len())
	}
}
