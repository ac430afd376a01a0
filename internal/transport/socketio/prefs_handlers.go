package socketio

import (
	"github.com/rs/zerolog/log"
)

func (s *Server) prefsHandlers(h map[string]handlerFunc) {
	h["prefs:get"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Prefs == nil {
			return
		}
		reply("pushPrefs", s.deps.Prefs.All())
	}

	h["prefs:set"] = func(reply replyFunc, m map[string]interface{}) {
		key := str(m, "key")
		value, ok := m["value"]
		if key == "" || !ok || s.deps.Prefs == nil {
			return
		}
		s.background(func() {
			if err := s.deps.Prefs.Set(key, value); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Rejected preference")
				reply("pushCommandError", map[string]interface{}{
					"command": "prefs:set",
					"error":   err.Error(),
				})
				return
			}
			log.Info().Str("key", key).Interface("value", value).Msg("Preference updated")
			s.Changed(TopicPrefs)
		})
	}
}

// BroadcastPrefs sends the preferences to every client.
func (s *Server) BroadcastPrefs() {
	if s.deps.Prefs == nil {
		return
	}
	s.emit("pushPrefs", s.deps.Prefs.All())
}
