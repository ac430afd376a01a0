package player_test

import (
	"testing"

	"github.com/edumarques81/streamly-backend/internal/domain/player"
)

type fakePlayback struct {
	playing bool
	volume  float64
	plays   int
	pauses  int
}

func (p *fakePlayback) IsPlaying() bool { return p.playing }

func (p *fakePlayback) Pause() {
	p.pauses++
	p.playing = false
}

func (p *fakePlayback) Play() {
	p.plays++
	p.playing = true
}

func (p *fakePlayback) Volume() float64     { return p.volume }
func (p *fakePlayback) SetVolume(v float64) { p.volume = v }

func TestArbiter_FocusLossAndRegain(t *testing.T) {
	tests := []struct {
		name          string
		loss          player.FocusChange
		playingBefore bool
		expectPlaying bool
	}{
		{"loss while playing resumes", player.FocusLoss, true, true},
		{"transient loss while playing resumes", player.FocusLossTransient, true, true},
		{"loss while paused stays paused", player.FocusLoss, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := &fakePlayback{playing: tt.playingBefore}
			a := player.NewArbiter(pb)

			a.FocusChanged(tt.loss)
			if pb.playing {
				t.Fatal("expected paused after focus loss")
			}
			if a.HasFocus() {
				t.Error("expected focus to be lost")
			}

			a.FocusChanged(player.FocusGain)
			if pb.playing != tt.expectPlaying {
				t.Errorf("expected playing=%v after regain, got %v", tt.expectPlaying, pb.playing)
			}
		})
	}
}

func TestArbiter_CallPausesAndResumes(t *testing.T) {
	pb := &fakePlayback{playing: true}
	a := player.NewArbiter(pb)

	a.CallStateChanged(player.CallRinging)
	if pb.playing {
		t.Fatal("expected paused during call")
	}
	if !a.Flags().ShouldResume || !a.Flags().CallActive {
		t.Errorf("expected call active with resume intent, got %+v", a.Flags())
	}

	// Answering keeps the call active without a second pause.
	a.CallStateChanged(player.CallOffHook)
	if pb.pauses != 1 {
		t.Errorf("expected one pause, got %d", pb.pauses)
	}

	a.CallStateChanged(player.CallIdle)
	if !pb.playing {
		t.Error("expected playback to resume after the call")
	}
	if a.Flags().ShouldResume {
		t.Error("expected resume intent to be consumed")
	}
}

func TestArbiter_FocusRegainDuringCallDoesNotResume(t *testing.T) {
	pb := &fakePlayback{playing: true}
	a := player.NewArbiter(pb)

	a.FocusChanged(player.FocusLossTransient)
	a.CallStateChanged(player.CallOffHook)
	a.FocusChanged(player.FocusGain)

	if pb.playing {
		t.Fatal("focus regain resumed playback while a call was active")
	}

	a.CallStateChanged(player.CallIdle)
	if !pb.playing {
		t.Error("expected resume once the call ended and focus was held")
	}
}

func TestArbiter_CallEndWithoutFocusWaitsForGain(t *testing.T) {
	pb := &fakePlayback{playing: true}
	a := player.NewArbiter(pb)

	a.CallStateChanged(player.CallRinging)
	a.FocusChanged(player.FocusLoss)
	a.CallStateChanged(player.CallIdle)
	if pb.playing {
		t.Fatal("resumed without audio focus")
	}

	a.FocusChanged(player.FocusGain)
	if !pb.playing {
		t.Error("expected resume on focus regain")
	}
}

func TestArbiter_HeadsetNeverAutoResumes(t *testing.T) {
	pb := &fakePlayback{playing: true}
	a := player.NewArbiter(pb)

	a.HeadsetChanged(false)
	if pb.playing {
		t.Fatal("expected pause on headset disconnect")
	}
	if a.Flags().ShouldResume {
		t.Error("expected should-resume to be false after disconnect")
	}

	a.HeadsetChanged(true)
	a.FocusChanged(player.FocusGain)
	if pb.playing {
		t.Error("headset reconnect resumed playback")
	}
}

func TestArbiter_HeadsetDisconnectDropsCallResumeIntent(t *testing.T) {
	pb := &fakePlayback{playing: true}
	a := player.NewArbiter(pb)

	a.CallStateChanged(player.CallRinging)
	a.HeadsetChanged(false)
	a.CallStateChanged(player.CallIdle)

	if pb.playing {
		t.Error("expected playback to stay paused after headset disconnect")
	}
}

func TestArbiter_Ducking(t *testing.T) {
	pb := &fakePlayback{playing: true, volume: 1}
	a := player.NewArbiter(pb)

	a.FocusChanged(player.FocusLossTransientCanDuck)
	if pb.volume != player.DuckVolume {
		t.Errorf("expected volume %v, got %v", player.DuckVolume, pb.volume)
	}
	if !pb.playing {
		t.Error("ducking should not pause")
	}

	a.FocusChanged(player.FocusGain)
	if pb.volume != 1.0 {
		t.Errorf("expected volume restored to 1.0, got %v", pb.volume)
	}
	if pb.plays != 0 {
		t.Errorf("expected no resume call while already playing, got %d", pb.plays)
	}
}

func TestArbiter_DuckingRestoresUserVolume(t *testing.T) {
	tests := []struct {
		name       string
		before     float64
		adjustTo   float64
		adjust     bool
		wantDucked float64
		wantAfter  float64
	}{
		{"restores previous level", 0.6, 0, false, player.DuckVolume, 0.6},
		{"never raises a quiet level", 0.1, 0, false, 0.1, 0.1},
		{"change while ducked applies on gain", 0.6, 0.8, true, player.DuckVolume, 0.8},
		{"lowering while ducked lowers output", 0.6, 0.2, true, 0.2, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := &fakePlayback{playing: true, volume: tt.before}
			a := player.NewArbiter(pb)

			a.FocusChanged(player.FocusLossTransientCanDuck)
			// A repeated duck keeps the remembered level.
			a.FocusChanged(player.FocusLossTransientCanDuck)
			if tt.adjust {
				a.SetVolume(tt.adjustTo)
			}
			if pb.volume != tt.wantDucked {
				t.Errorf("expected ducked output %v, got %v", tt.wantDucked, pb.volume)
			}
			want := tt.before
			if tt.adjust {
				want = tt.adjustTo
			}
			if a.Volume() != want {
				t.Errorf("expected user volume %v while ducked, got %v", want, a.Volume())
			}

			a.FocusChanged(player.FocusGain)
			if pb.volume != tt.wantAfter {
				t.Errorf("expected volume %v after gain, got %v", tt.wantAfter, pb.volume)
			}
		})
	}
}

func TestArbiter_ResetUnducks(t *testing.T) {
	pb := &fakePlayback{playing: true, volume: 0.7}
	a := player.NewArbiter(pb)

	a.FocusChanged(player.FocusLossTransientCanDuck)
	a.Reset()

	if pb.volume != 0.7 {
		t.Errorf("expected volume 0.7 after reset, got %v", pb.volume)
	}
	if a.Flags().Ducked {
		t.Error("expected ducked flag cleared")
	}
}

func TestArbiter_UserActionClearsIntent(t *testing.T) {
	pb := &fakePlayback{playing: true}
	a := player.NewArbiter(pb)

	a.FocusChanged(player.FocusLossTransient)
	a.UserAction()
	a.FocusChanged(player.FocusGain)

	if pb.playing {
		t.Error("expected no resume after the user took control")
	}
}

func TestParseInterruptionNames(t *testing.T) {
	if c, ok := player.ParseFocusChange("duck"); !ok || c != player.FocusLossTransientCanDuck {
		t.Errorf("expected duck to parse, got %v %v", c, ok)
	}
	if _, ok := player.ParseFocusChange("bogus"); ok {
		t.Error("expected unknown focus change to fail")
	}
	if c, ok := player.ParseCallState("offhook"); !ok || c != player.CallOffHook {
		t.Errorf("expected offhook to parse, got %v %v", c, ok)
	}
}
