package playlist

import (
	"time"

	"github.com/edumarques81/streamly-backend/internal/loop"
)

// DefaultCountdown is the auto-advance delay after an item ends.
const DefaultCountdown = 3

// Countdown ticks once per second on a runner and fires an expiry callback
// unless cancelled first.
type Countdown struct {
	runner    loop.Runner
	timer     loop.Timer
	remaining int
	onTick    func(remaining int)
	onExpire  func()
}

// NewCountdown creates an idle countdown. onTick receives the seconds left,
// starting with the full count; onExpire runs once when it reaches zero.
func NewCountdown(runner loop.Runner, onTick func(remaining int), onExpire func()) *Countdown {
	return &Countdown{runner: runner, onTick: onTick, onExpire: onExpire}
}

// Start begins counting down from seconds, replacing any running countdown.
func (c *Countdown) Start(seconds int) {
	c.Cancel()
	if seconds <= 0 {
		seconds = DefaultCountdown
	}
	c.remaining = seconds
	c.tick()
}

func (c *Countdown) tick() {
	if c.onTick != nil {
		c.onTick(c.remaining)
	}
	c.timer = c.runner.AfterFunc(time.Second, func() {
		c.remaining--
		if c.remaining > 0 {
			c.tick()
			return
		}
		c.timer = nil
		if c.onExpire != nil {
			c.onExpire()
		}
	})
}

// Cancel stops a running countdown. It reports whether one was running.
func (c *Countdown) Cancel() bool {
	if c.timer == nil {
		return false
	}
	c.timer.Stop()
	c.timer = nil
	c.remaining = 0
	return true
}

// Active reports whether a countdown is running.
func (c *Countdown) Active() bool {
	return c.timer != nil
}

// Remaining returns the seconds left, or 0 when idle.
func (c *Countdown) Remaining() int {
	return c.remaining
}
