package status_test

import (
	"testing"
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/status"
)

func TestBus_DeliversInOrder(t *testing.T) {
	bus := status.NewBus()
	var got []string

	bus.Subscribe(func(ev status.Event) { got = append(got, "a:"+string(ev.Kind)) })
	bus.Subscribe(func(ev status.Event) { got = append(got, "b:"+string(ev.Kind)) })

	bus.Publish(status.Event{Kind: status.KindMediaEnded})

	if len(got) != 2 || got[0] != "a:MEDIA_ENDED" || got[1] != "b:MEDIA_ENDED" {
		t.Errorf("unexpected delivery order: %v", got)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := status.NewBus()
	count := 0
	unsubscribe := bus.Subscribe(func(status.Event) { count++ })

	bus.Publish(status.Event{Kind: status.KindPosition})
	unsubscribe()
	unsubscribe()
	bus.Publish(status.Event{Kind: status.KindPosition})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
	if bus.Len() != 0 {
		t.Errorf("expected no subscribers, got %d", bus.Len())
	}
}

func TestBus_UnsubscribeDuringDelivery(t *testing.T) {
	bus := status.NewBus()
	var unsubscribe func()
	calls := 0
	unsubscribe = bus.Subscribe(func(status.Event) {
		calls++
		unsubscribe()
	})

	bus.Publish(status.Event{Kind: status.KindMediaEnded})
	bus.Publish(status.Event{Kind: status.KindMediaEnded})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestEvent_Payload(t *testing.T) {
	tests := []struct {
		name     string
		event    status.Event
		key      string
		expected interface{}
	}{
		{
			name:     "playback state",
			event:    status.Event{Kind: status.KindPlaybackState, IsPlaying: true, MediaTitle: "Clip"},
			key:      "mediaTitle",
			expected: "Clip",
		},
		{
			name:     "position in milliseconds",
			event:    status.Event{Kind: status.KindPosition, Position: 1500 * time.Millisecond},
			key:      "currentPosition",
			expected: int64(1500),
		},
		{
			name:     "track action",
			event:    status.Event{Kind: status.KindTrackAction, Action: status.ActionNext},
			key:      "action",
			expected: "NEXT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.event.Payload()[tt.key]
			if got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
