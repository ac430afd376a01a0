package player

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DuckVolume caps the output volume while another source holds transient focus.
const DuckVolume = 0.3

// FocusChange is an audio focus transition reported by the host.
type FocusChange int

const (
	FocusGain FocusChange = iota
	FocusLoss
	FocusLossTransient
	FocusLossTransientCanDuck
)

// ParseFocusChange maps the wire names used by interruption sources.
func ParseFocusChange(s string) (FocusChange, bool) {
	switch s {
	case "gain":
		return FocusGain, true
	case "loss":
		return FocusLoss, true
	case "loss_transient":
		return FocusLossTransient, true
	case "loss_transient_can_duck", "duck":
		return FocusLossTransientCanDuck, true
	}
	return 0, false
}

// CallState is the telephony state reported by the host.
type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallOffHook
)

// ParseCallState maps the wire names used by interruption sources.
func ParseCallState(s string) (CallState, bool) {
	switch s {
	case "idle":
		return CallIdle, true
	case "ringing":
		return CallRinging, true
	case "offhook", "off_hook":
		return CallOffHook, true
	}
	return 0, false
}

// Playback is what the arbiter pauses and resumes.
type Playback interface {
	IsPlaying() bool
	Pause()
	Play()
	Volume() float64
	SetVolume(volume float64)
}

// Flags is a snapshot of the interruption state.
type Flags struct {
	CallActive    bool `json:"callActive"`
	HeadsetPaused bool `json:"headsetPaused"`
	HasFocus      bool `json:"hasFocus"`
	ShouldResume  bool `json:"shouldResume"`
	Ducked        bool `json:"ducked"`
}

// Arbiter applies the interruption policy to a Playback. Any active
// interruption keeps playback paused; resume happens only when every
// interruption has cleared, focus is held and playback was active before.
// A headset disconnect never resumes on reconnect.
type Arbiter struct {
	target Playback
	flags  Flags
	// base is the user's volume while ducked.
	base float64
}

// NewArbiter creates an arbiter holding audio focus.
func NewArbiter(target Playback) *Arbiter {
	return &Arbiter{
		target: target,
		flags:  Flags{HasFocus: true},
	}
}

// Flags returns the current interruption state.
func (a *Arbiter) Flags() Flags {
	return a.flags
}

// HasFocus reports whether audio focus is held.
func (a *Arbiter) HasFocus() bool {
	return a.flags.HasFocus
}

// CanPlay reports whether a user-requested resume is allowed.
func (a *Arbiter) CanPlay() bool {
	return a.flags.HasFocus && !a.flags.CallActive
}

// FocusChanged applies an audio focus transition.
func (a *Arbiter) FocusChanged(change FocusChange) {
	switch change {
	case FocusLoss, FocusLossTransient:
		a.flags.HasFocus = false
		a.interrupt("focus")
	case FocusLossTransientCanDuck:
		if !a.flags.Ducked {
			a.base = a.target.Volume()
			a.flags.Ducked = true
		}
		a.target.SetVolume(min(a.base, DuckVolume))
		log.Debug().Msg("Ducking output for transient focus loss")
	case FocusGain:
		a.flags.HasFocus = true
		a.unduck()
		a.tryResume()
	}
}

// CallStateChanged applies a telephony transition.
func (a *Arbiter) CallStateChanged(state CallState) {
	switch state {
	case CallRinging, CallOffHook:
		if a.flags.CallActive {
			return
		}
		a.flags.CallActive = true
		a.interrupt("call")
	case CallIdle:
		if !a.flags.CallActive {
			return
		}
		a.flags.CallActive = false
		a.tryResume()
	}
}

// HeadsetChanged applies a headset plug transition. Unplugging pauses and
// drops any resume intent; plugging back in never resumes.
func (a *Arbiter) HeadsetChanged(plugged bool) {
	if plugged {
		a.flags.HeadsetPaused = false
		return
	}
	if a.target.IsPlaying() {
		a.target.Pause()
		a.flags.HeadsetPaused = true
		log.Info().Msg("Paused on headset disconnect")
	}
	a.flags.ShouldResume = false
}

// UserAction clears remembered resume intent after an explicit play/pause.
func (a *Arbiter) UserAction() {
	a.flags.ShouldResume = false
	a.flags.HeadsetPaused = false
}

// Volume returns the user's volume level. While ducked it differs from the
// output level.
func (a *Arbiter) Volume() float64 {
	if a.flags.Ducked {
		return a.base
	}
	return a.target.Volume()
}

// SetVolume sets the user's volume level. While ducked the output stays
// capped at DuckVolume until focus returns.
func (a *Arbiter) SetVolume(volume float64) {
	volume = lo.Clamp(volume, 0, 1)
	if a.flags.Ducked {
		a.base = volume
		a.target.SetVolume(min(volume, DuckVolume))
		return
	}
	a.target.SetVolume(volume)
}

// Reset clears all interruption state at session end.
func (a *Arbiter) Reset() {
	a.unduck()
	a.flags = Flags{HasFocus: true}
}

func (a *Arbiter) unduck() {
	if !a.flags.Ducked {
		return
	}
	a.flags.Ducked = false
	a.target.SetVolume(a.base)
}

func (a *Arbiter) interrupt(reason string) {
	if !a.target.IsPlaying() {
		return
	}
	a.flags.ShouldResume = true
	a.target.Pause()
	log.Info().Str("reason", reason).Msg("Paused for interruption")
}

func (a *Arbiter) tryResume() {
	if !a.flags.ShouldResume || !a.flags.HasFocus || a.flags.CallActive || a.flags.HeadsetPaused {
		return
	}
	a.flags.ShouldResume = false
	a.target.Play()
	log.Info().Msg("Resumed after interruption")
}
