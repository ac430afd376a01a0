package socketio

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/background"
	"github.com/edumarques81/streamly-backend/internal/domain/controller"
	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
)

// ErrNoPlayer is reported when a player command arrives before the
// controller is attached.
var ErrNoPlayer = errors.New("player not available")

// onPlayer runs fn on the loop with the controller. A returned error is
// reported to the requesting client only.
func (s *Server) onPlayer(reply replyFunc, command string, fn func(c *controller.Controller) error) {
	s.post(func() {
		err := ErrNoPlayer
		if s.ctrl != nil {
			err = fn(s.ctrl)
		}
		if err != nil {
			log.Debug().Err(err).Str("command", command).Msg("Player command rejected")
			reply("pushCommandError", map[string]interface{}{
				"command": command,
				"error":   err.Error(),
			})
		}
	})
}

func (s *Server) playerHandlers(h map[string]handlerFunc) {
	h["getState"] = func(reply replyFunc, _ map[string]interface{}) {
		s.post(func() {
			if s.ctrl == nil {
				reply("pushState", controller.State{}.ToJSON())
				return
			}
			reply("pushState", s.ctrl.Snapshot().ToJSON())
		})
	}

	h["getQueue"] = func(reply replyFunc, _ map[string]interface{}) {
		s.post(func() {
			var items []media.Item
			index := 0
			if s.ctrl != nil {
				items = s.ctrl.Items()
				index = s.ctrl.Snapshot().Index
			}
			reply("pushQueue", map[string]interface{}{
				"items": itemsJSON(items),
				"index": index,
			})
		})
	}

	h["open"] = func(reply replyFunc, m map[string]interface{}) {
		ids := strs(m, "ids")
		index := intOr(m, "index", 0)
		audioOnly, _ := boolean(m, "audioOnly")
		if len(ids) == 0 {
			if id := str(m, "id"); id != "" {
				ids = []string{id}
			}
		}
		s.background(func() {
			items := s.resolve(ids)
			s.onPlayer(reply, "open", func(c *controller.Controller) error {
				return c.Open(items, index, audioOnly)
			})
		})
	}

	simple := map[string]func(c *controller.Controller) error{
		"playPause": (*controller.Controller).PlayPause,
		"retry":     (*controller.Controller).Retry,
		"next":      (*controller.Controller).Next,
		"prev":      (*controller.Controller).Previous,
		"enterPip":  (*controller.Controller).EnterPictureInPicture,
		"cancelAutoAdvance": func(c *controller.Controller) error {
			c.CancelAutoAdvance()
			return nil
		},
		"toggleLock": func(c *controller.Controller) error {
			c.ToggleLock()
			return nil
		},
		"cycleSpeed": func(c *controller.Controller) error {
			_, err := c.CycleSpeed()
			return err
		},
		"close": func(c *controller.Controller) error {
			c.Close()
			return nil
		},
	}
	for name, fn := range simple {
		name, fn := name, fn
		h[name] = func(reply replyFunc, _ map[string]interface{}) {
			s.onPlayer(reply, name, fn)
		}
	}

	h["seek"] = func(reply replyFunc, m map[string]interface{}) {
		pos, ok := millis(m, "position")
		if !ok {
			return
		}
		s.onPlayer(reply, "seek", func(c *controller.Controller) error {
			_, err := c.SeekTo(pos)
			return err
		})
	}

	h["seekBy"] = func(reply replyFunc, m map[string]interface{}) {
		offset, ok := millis(m, "offset")
		if !ok {
			return
		}
		s.onPlayer(reply, "seekBy", func(c *controller.Controller) error {
			_, err := c.SeekBy(offset)
			return err
		})
	}

	h["doubleTap"] = func(reply replyFunc, m map[string]interface{}) {
		x, okX := num(m, "x")
		width, okW := num(m, "width")
		if !okX || !okW || width <= 0 {
			return
		}
		s.onPlayer(reply, "doubleTap", func(c *controller.Controller) error {
			_, err := c.DoubleTap(x, width)
			return err
		})
	}

	h["switchMode"] = func(reply replyFunc, m map[string]interface{}) {
		audioOnly, ok := boolean(m, "audioOnly")
		if !ok {
			return
		}
		s.onPlayer(reply, "switchMode", func(c *controller.Controller) error {
			return c.SwitchMode(audioOnly)
		})
	}

	h["select"] = func(reply replyFunc, m map[string]interface{}) {
		index, ok := num(m, "index")
		if !ok {
			return
		}
		s.onPlayer(reply, "select", func(c *controller.Controller) error {
			return c.Select(int(index))
		})
	}

	h["setPip"] = func(reply replyFunc, m map[string]interface{}) {
		pip, ok := boolean(m, "value")
		if !ok {
			return
		}
		s.onPlayer(reply, "setPip", func(c *controller.Controller) error {
			c.SetPictureInPicture(pip)
			return nil
		})
	}

	h["adjustVolume"] = func(reply replyFunc, m map[string]interface{}) {
		delta, ok := num(m, "delta")
		if !ok {
			return
		}
		s.onPlayer(reply, "adjustVolume", func(c *controller.Controller) error {
			_, err := c.AdjustVolume(delta)
			return err
		})
	}

	h["adjustBrightness"] = func(reply replyFunc, m map[string]interface{}) {
		delta, ok := num(m, "delta")
		if !ok {
			return
		}
		s.onPlayer(reply, "adjustBrightness", func(c *controller.Controller) error {
			_, err := c.AdjustBrightness(delta)
			return err
		})
	}

	h["focusChange"] = func(reply replyFunc, m map[string]interface{}) {
		change, ok := player.ParseFocusChange(str(m, "change"))
		if !ok {
			log.Warn().Str("change", str(m, "change")).Msg("Unknown focus change")
			return
		}
		s.onPlayer(reply, "focusChange", func(c *controller.Controller) error {
			c.FocusChanged(change)
			return nil
		})
	}

	h["callState"] = func(reply replyFunc, m map[string]interface{}) {
		state, ok := player.ParseCallState(str(m, "state"))
		if !ok {
			log.Warn().Str("state", str(m, "state")).Msg("Unknown call state")
			return
		}
		s.onPlayer(reply, "callState", func(c *controller.Controller) error {
			c.CallStateChanged(state)
			return nil
		})
	}

	h["headset"] = func(reply replyFunc, m map[string]interface{}) {
		plugged, ok := boolean(m, "plugged")
		if !ok {
			return
		}
		s.onPlayer(reply, "headset", func(c *controller.Controller) error {
			c.HeadsetChanged(plugged)
			return nil
		})
	}

	h["serviceIntent"] = func(reply replyFunc, m map[string]interface{}) {
		in, ok := intent(m)
		if !ok || s.deps.Background == nil {
			return
		}
		s.post(func() {
			s.deps.Background.HandleIntent(in)
		})
	}

	h["getNotification"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Background == nil {
			return
		}
		s.post(func() {
			n := s.deps.Background.Notification()
			out := n.ToJSON()
			out["visible"] = s.deps.Background.Running()
			reply("pushNotification", out)
		})
	}
}

// intent decodes a service command. Positions travel in milliseconds.
func intent(m map[string]interface{}) (background.Intent, bool) {
	action := str(m, "action")
	if action == "" {
		return background.Intent{}, false
	}
	in := background.Intent{
		Action:      background.Action(action),
		MediaPath:   str(m, "mediaPath"),
		MediaTitle:  str(m, "mediaTitle"),
		MediaArtist: str(m, "mediaArtist"),
	}
	in.AudioOnly, _ = boolean(m, "isAudioOnly")
	in.StartPaused, _ = boolean(m, "startPaused")
	if pos, ok := millis(m, "position"); ok {
		in.Position = pos
	}
	return in, true
}

// resolve maps ids to items, falling back to the recently played store for
// items no longer in the library. Unknown ids are skipped. Runs on the pool.
func (s *Server) resolve(ids []string) []media.Item {
	byID := make(map[string]media.Item, len(ids))
	if s.deps.Library != nil {
		for _, item := range s.deps.Library.Index().Lookup(ids) {
			byID[item.ID] = item
		}
	}

	items := make([]media.Item, 0, len(ids))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
			continue
		}
		if s.deps.Recent == nil {
			continue
		}
		item, err := s.deps.Recent.Get(id)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("Recent lookup failed")
			continue
		}
		if item != nil {
			items = append(items, *item)
		}
	}
	return items
}

