// Package controller implements the player screen: it renders one playback
// session, turns gestures and clicks into session commands and drives the
// playlist, including auto-advance after an item ends.
package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
	"github.com/edumarques81/streamly-backend/internal/domain/playlist"
	"github.com/edumarques81/streamly-backend/internal/domain/prefs"
	"github.com/edumarques81/streamly-backend/internal/domain/status"
	"github.com/edumarques81/streamly-backend/internal/loop"
)

var (
	ErrNotOpen          = errors.New("no playlist open")
	ErrLocked           = errors.New("controls are locked")
	ErrGesturesDisabled = errors.New("gesture controls disabled")
	ErrAudioOnly        = errors.New("not available in audio-only mode")
	ErrPipDisabled      = errors.New("picture-in-picture disabled")
	ErrBackgroundOff    = errors.New("background playback disabled")
)

// User-visible notices.
const (
	NoticeNoNext          = "No more videos in playlist"
	NoticeNoPrevious      = "Already at first video"
	NoticeSpeedAudioOnly  = "Speed control not available in audio-only mode"
	NoticePipAudioOnly    = "Picture-in-picture not available in audio mode"
	NoticeBrightnessAudio = "Brightness control not available in audio mode"
	NoticeLocked          = "Controls locked"
	NoticeUnlocked        = "Controls unlocked"
	NoticeCannotPlay      = "Cannot play this file"
)

// View renders controller output. Calls happen on the loop goroutine.
type View interface {
	Render(state State)
	Position(position, duration time.Duration)
	Notice(message string)
	// Countdown shows the seconds until auto-advance; 0 hides it.
	Countdown(seconds int)
	// ErrorOverlay shows a retryable error; "" hides it.
	ErrorOverlay(message string)
}

// Settings is the preference surface the controller reads and writes.
type Settings interface {
	BackgroundPlayback() bool
	PipEnabled() bool
	GestureControls() bool
	SeekIncrement() int
	PlaybackSpeed() float64
	VolumeLevel() float64
	BrightnessLevel() float64
	SetLevels(volume, brightness float64) error
	SaveMediaInfo(info prefs.MediaInfo) error
	ClearMediaInfo() error
}

// Recorder stores recently played items without blocking the loop.
type Recorder interface {
	Record(item media.Item)
}

// Interruptions receives interruption events while in audio-only mode,
// where the background service owns arbitration.
type Interruptions interface {
	FocusChanged(change player.FocusChange)
	CallStateChanged(state player.CallState)
	HeadsetChanged(plugged bool)
}

// Submitter runs blocking work off the loop.
type Submitter interface {
	Submit(job func()) error
}

// Config wires a Controller.
type Config struct {
	Runner           loop.Runner
	VideoHost        player.EngineHost
	AudioHost        player.EngineHost
	Bus              status.Subscriber
	Settings         Settings
	Recorder         Recorder
	Background       Interruptions
	Pool             Submitter
	CountdownSeconds int
	PositionInterval time.Duration
}

// State is the rendered screen state.
type State struct {
	player.State
	Index      int     `json:"index"`
	Count      int     `json:"count"`
	Countdown  int     `json:"countdown"`
	Brightness float64 `json:"brightness"`
}

// ToJSON returns the state as sent in pushState.
func (s State) ToJSON() map[string]interface{} {
	out := s.State.ToJSON()
	out["index"] = s.Index
	out["count"] = s.Count
	out["countdown"] = s.Countdown
	out["brightness"] = s.Brightness
	return out
}

// Controller owns one session and its playlist. All methods run on the loop.
type Controller struct {
	runner     loop.Runner
	session    *player.Session
	arbiter    *player.Arbiter
	countdown  *playlist.Countdown
	playlist   *playlist.Playlist
	view       View
	settings   Settings
	recorder   Recorder
	background Interruptions
	pool       Submitter
	seconds    int
	brightness float64

	unsubscribe func()
}

// New creates a controller rendering to view.
func New(cfg Config, view View) *Controller {
	c := &Controller{
		runner:     cfg.Runner,
		view:       view,
		settings:   cfg.Settings,
		recorder:   cfg.Recorder,
		background: cfg.Background,
		pool:       cfg.Pool,
		seconds:    cfg.CountdownSeconds,
		brightness: 0.5,
	}
	if c.seconds <= 0 {
		c.seconds = playlist.DefaultCountdown
	}

	sessionCfg := player.Config{
		Runner:           cfg.Runner,
		VideoHost:        cfg.VideoHost,
		AudioHost:        cfg.AudioHost,
		PositionInterval: cfg.PositionInterval,
	}
	if c.settings != nil {
		sessionCfg.Speed = c.settings.PlaybackSpeed()
		sessionCfg.Volume = c.settings.VolumeLevel()
		if b := c.settings.BrightnessLevel(); b > 0 {
			c.brightness = b
		}
	}
	c.session = player.NewSession(sessionCfg)
	c.arbiter = player.NewArbiter(c.session)
	c.countdown = playlist.NewCountdown(cfg.Runner, c.onCountdownTick, c.onCountdownExpired)
	c.session.AddListener(player.ListenerFuncs{
		StateChanged: func(player.State) { c.render() },
		Position:     c.view.Position,
		Ended:        c.onEnded,
		Error:        c.onError,
	})

	if cfg.Bus != nil {
		c.unsubscribe = cfg.Bus.Subscribe(c.onStatus)
	}
	return c
}

// Session exposes the underlying session.
func (c *Controller) Session() *player.Session {
	return c.session
}

// Open loads items and starts playing the one at index.
func (c *Controller) Open(items []media.Item, index int, audioOnly bool) error {
	if len(items) == 0 {
		return playlist.ErrEmpty
	}
	if audioOnly && !c.backgroundAllowed() {
		c.view.Notice("Background playback is disabled")
		audioOnly = false
	}

	c.countdown.Cancel()
	c.view.Countdown(0)
	c.playlist = playlist.New(items, index)

	if c.session.AudioOnly() != audioOnly {
		c.session.Release()
		if err := c.session.SwitchMode(audioOnly); err != nil {
			return err
		}
	}
	c.startCurrent()
	return nil
}

func (c *Controller) startCurrent() {
	item, err := c.playlist.Current()
	if err != nil {
		return
	}
	c.view.ErrorOverlay("")
	c.arbiter.UserAction()
	c.session.Start(item, true)

	if n := c.playlist.Len(); n > 1 {
		c.view.Notice(fmt.Sprintf("Playing: %s (%d of %d)", item.SortTitle(), c.playlist.Index()+1, n))
	}
	if c.recorder != nil {
		c.recorder.Record(item)
	}
	info := prefs.MediaInfo{
		Path:      item.Locator(),
		Title:     item.SortTitle(),
		AudioOnly: c.session.AudioOnly(),
	}
	c.async(func() {
		if c.settings == nil {
			return
		}
		err := c.settings.SaveMediaInfo(info)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to save last played item")
		}
	})
}

// PlayPause toggles playback. From the Error state it retries.
func (c *Controller) PlayPause() error {
	if c.playlist == nil {
		return ErrNotOpen
	}
	if c.session.Locked() {
		return ErrLocked
	}
	if c.session.Status() == player.StatusError {
		return c.Retry()
	}
	c.arbiter.UserAction()
	c.session.PlayPause()
	return nil
}

// Retry restarts the current item after an error.
func (c *Controller) Retry() error {
	if c.playlist == nil {
		return ErrNotOpen
	}
	c.startCurrent()
	return nil
}

// SeekTo seeks to an absolute position.
func (c *Controller) SeekTo(position time.Duration) (time.Duration, error) {
	if c.session.Locked() {
		return c.session.Position(), ErrLocked
	}
	return c.session.SeekTo(position), nil
}

// SeekBy seeks relative to the current position.
func (c *Controller) SeekBy(offset time.Duration) (time.Duration, error) {
	if c.session.Locked() {
		return c.session.Position(), ErrLocked
	}
	return c.session.SeekBy(offset), nil
}

// DoubleTap seeks back on the left half of the screen and forward on the
// right half by the configured seek increment.
func (c *Controller) DoubleTap(x, width float64) (time.Duration, error) {
	if c.session.Locked() {
		return c.session.Position(), ErrLocked
	}
	if c.session.AudioOnly() {
		return c.session.Position(), ErrAudioOnly
	}
	step := 10 * time.Second
	if c.settings != nil {
		step = time.Duration(c.settings.SeekIncrement()) * time.Second
	}
	if x < width/2 {
		step = -step
	}
	return c.session.SeekBy(step), nil
}

// CycleSpeed advances the playback speed.
func (c *Controller) CycleSpeed() (float64, error) {
	if c.session.Locked() {
		return c.session.Speed(), ErrLocked
	}
	speed, err := c.session.CycleSpeed()
	if errors.Is(err, player.ErrSpeedUnavailable) {
		c.view.Notice(NoticeSpeedAudioOnly)
		return speed, err
	}
	if err != nil {
		return speed, err
	}
	c.view.Notice(fmt.Sprintf("Speed: %gx", speed))
	return speed, nil
}

// SwitchMode moves between video and audio-only playback.
func (c *Controller) SwitchMode(audioOnly bool) error {
	if audioOnly && !c.backgroundAllowed() {
		c.view.Notice("Background playback is disabled")
		return ErrBackgroundOff
	}
	if audioOnly && c.session.PictureInPicture() {
		c.session.SetPictureInPicture(false)
	}
	if err := c.session.SwitchMode(audioOnly); err != nil {
		return err
	}
	c.arbiter.Reset()
	if audioOnly {
		c.view.Notice("Audio-only mode")
	} else {
		c.view.Notice("Video mode")
	}
	return nil
}

// Next moves to the next item. Manual navigation cancels a pending
// auto-advance.
func (c *Controller) Next() error {
	if c.playlist == nil {
		return ErrNotOpen
	}
	c.cancelCountdown()
	if _, err := c.playlist.Next(); err != nil {
		c.view.Notice(NoticeNoNext)
		return err
	}
	c.startCurrent()
	return nil
}

// Previous moves to the previous item.
func (c *Controller) Previous() error {
	if c.playlist == nil {
		return ErrNotOpen
	}
	c.cancelCountdown()
	if _, err := c.playlist.Previous(); err != nil {
		c.view.Notice(NoticeNoPrevious)
		return err
	}
	c.startCurrent()
	return nil
}

// Select jumps to the item at index.
func (c *Controller) Select(index int) error {
	if c.playlist == nil {
		return ErrNotOpen
	}
	c.cancelCountdown()
	if _, err := c.playlist.Select(index); err != nil {
		return err
	}
	c.startCurrent()
	return nil
}

// CancelAutoAdvance stops a running countdown, leaving the ended item.
func (c *Controller) CancelAutoAdvance() bool {
	cancelled := c.cancelCountdown()
	if cancelled {
		c.render()
	}
	return cancelled
}

func (c *Controller) cancelCountdown() bool {
	if !c.countdown.Cancel() {
		return false
	}
	c.view.Countdown(0)
	return true
}

// ToggleLock flips the UI interaction lock.
func (c *Controller) ToggleLock() bool {
	locked := !c.session.Locked()
	c.session.SetLocked(locked)
	if locked {
		c.view.Notice(NoticeLocked)
	} else {
		c.view.Notice(NoticeUnlocked)
	}
	return locked
}

// EnterPictureInPicture requests the picture-in-picture window mode.
func (c *Controller) EnterPictureInPicture() error {
	if c.session.AudioOnly() {
		c.view.Notice(NoticePipAudioOnly)
		return ErrAudioOnly
	}
	if c.settings != nil && !c.settings.PipEnabled() {
		return ErrPipDisabled
	}
	c.session.SetPictureInPicture(true)
	return nil
}

// SetPictureInPicture records a window mode change reported by the client.
func (c *Controller) SetPictureInPicture(pip bool) {
	c.session.SetPictureInPicture(pip)
}

// AdjustVolume applies a vertical swipe on the volume side.
func (c *Controller) AdjustVolume(delta float64) (float64, error) {
	if err := c.gesturesAllowed(); err != nil {
		return c.arbiter.Volume(), err
	}
	c.arbiter.SetVolume(c.arbiter.Volume() + delta)
	c.saveLevels()
	c.render()
	return c.arbiter.Volume(), nil
}

// AdjustBrightness applies a vertical swipe on the brightness side.
func (c *Controller) AdjustBrightness(delta float64) (float64, error) {
	if err := c.gesturesAllowed(); err != nil {
		return c.brightness, err
	}
	if c.session.AudioOnly() {
		c.view.Notice(NoticeBrightnessAudio)
		return c.brightness, ErrAudioOnly
	}
	b := c.brightness + delta
	if b < 0.01 {
		b = 0.01
	} else if b > 1 {
		b = 1
	}
	c.brightness = b
	c.saveLevels()
	c.render()
	return b, nil
}

func (c *Controller) gesturesAllowed() error {
	if c.session.Locked() {
		return ErrLocked
	}
	if c.settings != nil && !c.settings.GestureControls() {
		return ErrGesturesDisabled
	}
	return nil
}

// FocusChanged routes an audio focus transition to the owner of arbitration.
func (c *Controller) FocusChanged(change player.FocusChange) {
	if c.session.AudioOnly() && c.background != nil {
		c.background.FocusChanged(change)
		return
	}
	c.arbiter.FocusChanged(change)
}

// CallStateChanged routes a telephony transition.
func (c *Controller) CallStateChanged(state player.CallState) {
	if c.session.AudioOnly() && c.background != nil {
		c.background.CallStateChanged(state)
		return
	}
	c.arbiter.CallStateChanged(state)
}

// HeadsetChanged routes a headset transition.
func (c *Controller) HeadsetChanged(plugged bool) {
	if c.session.AudioOnly() && c.background != nil {
		c.background.HeadsetChanged(plugged)
		return
	}
	c.arbiter.HeadsetChanged(plugged)
}

// Interruptions returns the local arbiter flags.
func (c *Controller) Interruptions() player.Flags {
	return c.arbiter.Flags()
}

// Snapshot returns the current screen state.
func (c *Controller) Snapshot() State {
	st := State{
		State:      c.session.Snapshot(),
		Countdown:  c.countdown.Remaining(),
		Brightness: c.brightness,
	}
	if c.playlist != nil {
		st.Index = c.playlist.Index()
		st.Count = c.playlist.Len()
	}
	return st
}

// Items returns the open playlist.
func (c *Controller) Items() []media.Item {
	if c.playlist == nil {
		return nil
	}
	return c.playlist.Items()
}

// Close stops playback and drops the playlist. The controller stays
// subscribed to notification buttons so a later Open works as before.
func (c *Controller) Close() {
	c.cancelCountdown()
	c.session.Stop()
	c.arbiter.Reset()
	c.playlist = nil
}

// Release closes the controller and detaches it from the status bus. Call it
// once at shutdown.
func (c *Controller) Release() {
	c.Close()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Controller) onEnded(item media.Item) {
	if c.playlist == nil {
		return
	}
	if !c.playlist.HasNext() {
		log.Info().Str("id", item.ID).Msg("Playlist finished")
		c.async(func() {
			if c.settings != nil {
				if err := c.settings.ClearMediaInfo(); err != nil {
					log.Warn().Err(err).Msg("Failed to clear media info")
				}
			}
		})
		return
	}
	if c.session.PictureInPicture() {
		c.Next()
		return
	}
	c.countdown.Start(c.seconds)
}

func (c *Controller) onCountdownTick(remaining int) {
	c.view.Countdown(remaining)
}

func (c *Controller) onCountdownExpired() {
	c.view.Countdown(0)
	c.Next()
}

func (c *Controller) onError(item media.Item, err error) {
	c.cancelCountdown()
	c.view.Notice(NoticeCannotPlay)
	c.view.ErrorOverlay(err.Error())
}

// onStatus reacts to notification buttons relayed by the background service.
func (c *Controller) onStatus(ev status.Event) {
	if ev.Kind != status.KindTrackAction {
		return
	}
	c.runner.Post(func() {
		switch ev.Action {
		case status.ActionNext:
			c.Next()
		case status.ActionPrevious:
			c.Previous()
		}
	})
}

func (c *Controller) backgroundAllowed() bool {
	return c.settings == nil || c.settings.BackgroundPlayback()
}

func (c *Controller) saveLevels() {
	volume, brightness := c.arbiter.Volume(), c.brightness
	c.async(func() {
		if c.settings == nil {
			return
		}
		if err := c.settings.SetLevels(volume, brightness); err != nil {
			log.Warn().Err(err).Msg("Failed to save levels")
		}
	})
}

func (c *Controller) async(job func()) {
	if c.pool == nil {
		job()
		return
	}
	if err := c.pool.Submit(job); err != nil {
		log.Warn().Err(err).Msg("Background job rejected")
	}
}

func (c *Controller) render() {
	c.view.Render(c.Snapshot())
}
