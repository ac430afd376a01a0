package socketio

import (
	"github.com/rs/zerolog/log"
)

func (s *Server) deviceHandlers(h map[string]handlerFunc) {
	h["device:get"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Device == nil {
			return
		}
		s.post(func() {
			reply("pushDevice", s.deviceCard())
		})
	}

	h["device:setName"] = func(reply replyFunc, m map[string]interface{}) {
		name := str(m, "name")
		if s.deps.Device == nil {
			return
		}
		s.background(func() {
			if err := s.deps.Device.SetName(name); err != nil {
				reply("pushCommandError", map[string]interface{}{
					"command": "device:setName",
					"error":   err.Error(),
				})
				return
			}
			log.Info().Str("name", name).Msg("Device renamed")
			s.post(func() {
				s.emit("pushDevice", s.deviceCard())
			})
		})
	}
}

// deviceCard must run on the loop.
func (s *Server) deviceCard() map[string]interface{} {
	var state map[string]interface{}
	if s.ctrl != nil {
		state = s.ctrl.Snapshot().ToJSON()
	}
	return s.deps.Device.Card(state)
}
