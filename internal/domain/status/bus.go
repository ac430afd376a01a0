// Package status is the in-process broadcast channel through which the
// background playback service reports state to any listening UI.
package status

import (
	"sync"
	"time"
)

// Kind names a status broadcast.
type Kind string

const (
	KindPlaybackState Kind = "PLAYBACK_STATE"
	KindPosition      Kind = "POSITION_UPDATE"
	KindTrackAction   Kind = "TRACK_ACTION"
	KindMediaEnded    Kind = "MEDIA_ENDED"
	KindPlayerError   Kind = "PLAYER_ERROR"
)

// TrackAction is a playlist navigation request raised from the notification.
type TrackAction string

const (
	ActionNext     TrackAction = "NEXT"
	ActionPrevious TrackAction = "PREVIOUS"
)

// Event is one broadcast. Only the fields relevant to Kind are set.
type Event struct {
	Kind       Kind
	IsPlaying  bool
	MediaPath  string
	MediaTitle string
	Position   time.Duration
	Duration   time.Duration
	Action     TrackAction
	Error      string
}

// Payload returns the event body as sent to remote listeners.
func (e Event) Payload() map[string]interface{} {
	switch e.Kind {
	case KindPlaybackState:
		return map[string]interface{}{
			"isPlaying":  e.IsPlaying,
			"mediaPath":  e.MediaPath,
			"mediaTitle": e.MediaTitle,
		}
	case KindPosition:
		return map[string]interface{}{
			"currentPosition": e.Position.Milliseconds(),
			"duration":        e.Duration.Milliseconds(),
		}
	case KindTrackAction:
		return map[string]interface{}{"action": string(e.Action)}
	case KindPlayerError:
		return map[string]interface{}{"error": e.Error}
	default:
		return map[string]interface{}{}
	}
}

// Subscriber is the listening side of a Bus.
type Subscriber interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Bus delivers each published event synchronously to every subscriber in
// subscription order. Subscribers may come and go at any time.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Event)
	order  []int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn. The returned function removes it and is safe to
// call more than once.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; !ok {
			return
		}
		delete(b.subs, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers ev. Subscribers run outside the lock so they may
// subscribe or unsubscribe while handling an event.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
