package socketio

import (
	"sync"
	"time"
)

// Topic names a broadcast that can be debounced.
type Topic string

const (
	// TopicLibrary re-sends the item list and folders.
	TopicLibrary Topic = "library"
	// TopicRecent re-sends the recently played list.
	TopicRecent Topic = "recent"
	// TopicPrefs re-sends the preferences.
	TopicPrefs Topic = "prefs"
)

// BroadcastDebouncer collapses bursts of change notifications (rescans,
// play recordings, preference writes) into one broadcast per topic.
type BroadcastDebouncer struct {
	window    time.Duration
	callbacks map[Topic]func()

	mu      sync.Mutex
	pending map[Topic]bool
	timer   *time.Timer
	stopped bool
}

// NewBroadcastDebouncer creates a debouncer with the given window duration.
// Triggers for topics without a callback are ignored.
func NewBroadcastDebouncer(window time.Duration, callbacks map[Topic]func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:    window,
		callbacks: callbacks,
		pending:   make(map[Topic]bool),
	}
}

// Trigger marks topic as changed. Callbacks run once the window elapses
// without further triggers.
func (d *BroadcastDebouncer) Trigger(topic Topic) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if _, ok := d.callbacks[topic]; !ok {
		return
	}
	d.pending[topic] = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires callbacks for pending topics in a fixed order.
func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	var fire []func()
	for _, topic := range []Topic{TopicLibrary, TopicRecent, TopicPrefs} {
		if d.pending[topic] {
			fire = append(fire, d.callbacks[topic])
		}
	}
	d.pending = make(map[Topic]bool)
	d.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[Topic]bool)
}
