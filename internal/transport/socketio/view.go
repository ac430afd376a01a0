package socketio

import (
	"time"

	"github.com/edumarques81/streamly-backend/internal/domain/background"
	"github.com/edumarques81/streamly-backend/internal/domain/controller"
	"github.com/edumarques81/streamly-backend/internal/domain/status"
)

// statusEvents maps service broadcasts to client events.
var statusEvents = map[status.Kind]string{
	status.KindPlaybackState: "pushPlaybackState",
	status.KindPosition:      "pushPositionUpdate",
	status.KindTrackAction:   "pushTrackAction",
	status.KindMediaEnded:    "pushMediaEnded",
	status.KindPlayerError:   "pushPlayerError",
}

// Render implements controller.View.
func (s *Server) Render(state controller.State) {
	s.emit("pushState", state.ToJSON())
}

// Position implements controller.View.
func (s *Server) Position(position, duration time.Duration) {
	s.emit("pushPosition", map[string]interface{}{
		"position": position.Milliseconds(),
		"duration": duration.Milliseconds(),
	})
}

// Notice implements controller.View.
func (s *Server) Notice(message string) {
	s.emit("pushNotice", map[string]interface{}{"message": message})
}

// Countdown implements controller.View.
func (s *Server) Countdown(seconds int) {
	s.emit("pushCountdown", map[string]interface{}{
		"seconds": seconds,
		"visible": seconds > 0,
	})
}

// ErrorOverlay implements controller.View.
func (s *Server) ErrorOverlay(message string) {
	s.emit("pushError", map[string]interface{}{
		"message": message,
		"visible": message != "",
	})
}

// Notify implements background.Notifier.
func (s *Server) Notify(n background.Notification) {
	out := n.ToJSON()
	out["visible"] = true
	s.emit("pushNotification", out)
}

// Cancel implements background.Notifier.
func (s *Server) Cancel() {
	s.emit("pushNotification", map[string]interface{}{"visible": false})
}

func (s *Server) onStatus(ev status.Event) {
	name, ok := statusEvents[ev.Kind]
	if !ok {
		return
	}
	s.emit(name, ev.Payload())
}

var (
	_ controller.View     = (*Server)(nil)
	_ background.Notifier = (*Server)(nil)
)
