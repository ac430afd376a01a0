package playlist_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/playlist"
	"github.com/edumarques81/streamly-backend/internal/loop"
)

func items(n int) []media.Item {
	out := make([]media.Item, n)
	for i := range out {
		out[i] = media.Item{ID: fmt.Sprintf("item-%d", i), Title: fmt.Sprintf("Item %d", i)}
	}
	return out
}

func TestNew_ClampsStart(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		expected int
	}{
		{"negative", -3, 0},
		{"in range", 1, 1},
		{"past end", 10, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := playlist.New(items(3), tt.start)
			if p.Index() != tt.expected {
				t.Errorf("expected index %d, got %d", tt.expected, p.Index())
			}
		})
	}
}

func TestNext_LandsOnMinOfIPlusOne(t *testing.T) {
	const n = 4
	for i := 0; i < n; i++ {
		p := playlist.New(items(n), i)
		_, err := p.Next()

		want := i + 1
		if want > n-1 {
			want = n - 1
		}
		if p.Index() != want {
			t.Errorf("from %d: expected index %d, got %d", i, want, p.Index())
		}
		if i == n-1 && !errors.Is(err, playlist.ErrNoNext) {
			t.Errorf("from last: expected ErrNoNext, got %v", err)
		}
		if i < n-1 && err != nil {
			t.Errorf("from %d: unexpected error %v", i, err)
		}
	}
}

func TestPrevious_LandsOnMaxOfIMinusOne(t *testing.T) {
	const n = 4
	for i := 0; i < n; i++ {
		p := playlist.New(items(n), i)
		_, err := p.Previous()

		want := i - 1
		if want < 0 {
			want = 0
		}
		if p.Index() != want {
			t.Errorf("from %d: expected index %d, got %d", i, want, p.Index())
		}
		if i == 0 && !errors.Is(err, playlist.ErrNoPrevious) {
			t.Errorf("from first: expected ErrNoPrevious, got %v", err)
		}
	}
}

func TestNext_ThreeItemScenario(t *testing.T) {
	p := playlist.New(items(3), 0)
	notices := 0

	for i := 0; i < 3; i++ {
		if _, err := p.Next(); errors.Is(err, playlist.ErrNoNext) {
			notices++
		}
	}

	if p.Index() != 2 {
		t.Errorf("expected index 2, got %d", p.Index())
	}
	if notices != 1 {
		t.Errorf("expected exactly one notice, got %d", notices)
	}
}

func TestEmptyPlaylist(t *testing.T) {
	p := playlist.New(nil, 0)

	if _, err := p.Current(); !errors.Is(err, playlist.ErrEmpty) {
		t.Errorf("expected ErrEmpty from Current, got %v", err)
	}
	if _, err := p.Next(); !errors.Is(err, playlist.ErrEmpty) {
		t.Errorf("expected ErrEmpty from Next, got %v", err)
	}
	if p.HasNext() || p.HasPrevious() {
		t.Error("expected no navigation on an empty playlist")
	}
}

func TestSelect(t *testing.T) {
	p := playlist.New(items(3), 0)

	item, err := p.Select(2)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if item.ID != "item-2" {
		t.Errorf("expected item-2, got %s", item.ID)
	}
	if _, err := p.Select(3); !errors.Is(err, playlist.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if p.Index() != 2 {
		t.Errorf("expected index unchanged at 2, got %d", p.Index())
	}
}

func TestCountdown_ExpiresAfterTicks(t *testing.T) {
	m := loop.NewManual()
	var ticks []int
	expired := 0
	c := playlist.NewCountdown(m, func(n int) { ticks = append(ticks, n) }, func() { expired++ })

	c.Start(3)
	if !c.Active() {
		t.Fatal("expected countdown to be active")
	}

	m.Advance(2 * time.Second)
	if expired != 0 {
		t.Fatal("expired too early")
	}

	m.Advance(time.Second)
	if expired != 1 {
		t.Errorf("expected one expiry, got %d", expired)
	}
	if c.Active() {
		t.Error("expected countdown to be idle after expiry")
	}

	want := []int{3, 2, 1}
	if fmt.Sprint(ticks) != fmt.Sprint(want) {
		t.Errorf("expected ticks %v, got %v", want, ticks)
	}
}

func TestCountdown_CancelPreventsExpiry(t *testing.T) {
	m := loop.NewManual()
	expired := false
	c := playlist.NewCountdown(m, nil, func() { expired = true })

	c.Start(3)
	m.Advance(time.Second)
	if !c.Cancel() {
		t.Error("expected Cancel to report a running countdown")
	}
	m.Advance(5 * time.Second)

	if expired {
		t.Error("cancelled countdown expired")
	}
	if c.Cancel() {
		t.Error("expected second Cancel to be a no-op")
	}
}

func TestCountdown_RestartReplacesRunning(t *testing.T) {
	m := loop.NewManual()
	expired := 0
	c := playlist.NewCountdown(m, nil, func() { expired++ })

	c.Start(3)
	m.Advance(2 * time.Second)
	c.Start(3)
	m.Advance(2 * time.Second)
	if expired != 0 {
		t.Fatalf("expected restart to reset the countdown, got %d expiries", expired)
	}
	m.Advance(time.Second)
	if expired != 1 {
		t.Errorf("expected one expiry, got %d", expired)
	}
}
