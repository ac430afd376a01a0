package socketio

import (
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

func (s *Server) recentHandlers(h map[string]handlerFunc) {
	h["recent:list"] = func(reply replyFunc, m map[string]interface{}) {
		if s.deps.Recent == nil {
			return
		}
		limit := intOr(m, "limit", 0)
		s.background(func() {
			items, err := s.deps.Recent.List(limit)
			if err != nil {
				log.Error().Err(err).Msg("Failed to list recently played")
				items = []media.Item{}
			}
			reply("pushRecent", map[string]interface{}{"items": itemsJSON(items)})
		})
	}

	h["recent:remove"] = func(reply replyFunc, m map[string]interface{}) {
		id := str(m, "id")
		if id == "" || s.deps.Recent == nil {
			return
		}
		s.background(func() {
			if err := s.deps.Recent.Remove(id); err != nil {
				log.Error().Err(err).Msg("Failed to remove recently played entry")
				reply("pushCommandError", map[string]interface{}{
					"command": "recent:remove",
					"error":   err.Error(),
				})
			}
		})
	}

	h["recent:clear"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Recent == nil {
			return
		}
		s.background(func() {
			if err := s.deps.Recent.Clear(); err != nil {
				log.Error().Err(err).Msg("Failed to clear recently played")
				reply("pushCommandError", map[string]interface{}{
					"command": "recent:clear",
					"error":   err.Error(),
				})
			}
		})
	}
}

// BroadcastRecent sends the recently played list to every client.
func (s *Server) BroadcastRecent() {
	if s.deps.Recent == nil {
		return
	}
	s.background(func() {
		items, err := s.deps.Recent.List(0)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list recently played")
			return
		}
		s.emit("pushRecent", map[string]interface{}{"items": itemsJSON(items)})
	})
}
