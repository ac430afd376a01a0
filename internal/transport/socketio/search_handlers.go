package socketio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/streamly-backend/internal/domain/search"
)

func (s *Server) searchHandlers(h map[string]handlerFunc) {
	h["search:query"] = func(reply replyFunc, m map[string]interface{}) {
		if s.deps.Search == nil {
			return
		}
		query := str(m, "query")
		filter, err := searchFilter(m, time.Now())
		if err != nil {
			reply("pushCommandError", map[string]interface{}{
				"command": "search:query",
				"error":   err.Error(),
			})
			return
		}
		s.background(func() {
			res := s.deps.Search.Search(query, filter)
			log.Debug().
				Str("query", res.Query).
				Int("items", len(res.Items)).
				Int("folders", len(res.Folders)).
				Msg("Sending pushSearchResults")
			reply("pushSearchResults", resultJSON(res))
			s.emit("pushSearchHistory", map[string]interface{}{
				"entries": s.deps.Search.History().Entries(),
			})
		})
	}

	h["search:suggestions"] = func(reply replyFunc, m map[string]interface{}) {
		if s.deps.Search == nil {
			return
		}
		query := str(m, "query")
		limit := intOr(m, "limit", 10)
		s.background(func() {
			reply("pushSearchSuggestions", map[string]interface{}{
				"query":       query,
				"suggestions": s.deps.Search.Suggestions(query, limit),
			})
		})
	}

	h["search:history"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Search == nil {
			return
		}
		reply("pushSearchHistory", map[string]interface{}{
			"entries": s.deps.Search.History().Entries(),
		})
	}

	h["search:history:remove"] = func(reply replyFunc, m map[string]interface{}) {
		query := str(m, "query")
		if query == "" || s.deps.Search == nil {
			return
		}
		s.background(func() {
			s.deps.Search.History().Remove(query)
			s.emit("pushSearchHistory", map[string]interface{}{
				"entries": s.deps.Search.History().Entries(),
			})
		})
	}

	h["search:history:clear"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Search == nil {
			return
		}
		s.background(func() {
			s.deps.Search.History().Clear()
			s.emit("pushSearchHistory", map[string]interface{}{"entries": []string{}})
		})
	}

	h["search:sorts"] = func(reply replyFunc, _ map[string]interface{}) {
		reply("pushSortTypes", lo.Map(search.SortTypes, func(st search.SortType, _ int) map[string]interface{} {
			return map[string]interface{}{
				"id":   string(st),
				"name": st.DisplayName(),
			}
		}))
	}
}

// searchFilter builds the request filter. A named preset is the base and
// explicit fields override it.
func searchFilter(m map[string]interface{}, now time.Time) (*search.Filter, error) {
	var filter search.Filter
	set := false
	if name := str(m, "preset"); name != "" {
		preset, ok := search.PresetFilter(name, now)
		if !ok {
			return nil, fmt.Errorf("unknown filter preset %q", name)
		}
		filter = preset
		set = true
	}
	if raw, ok := m["filter"].(map[string]interface{}); ok {
		if err := decode(raw, &filter); err != nil {
			return nil, err
		}
		set = true
	}
	if sortType := str(m, "sort"); sortType != "" {
		filter.Sort = search.SortType(sortType)
		set = true
	}
	if !set {
		return nil, nil
	}
	return &filter, nil
}

func resultJSON(res search.Result) map[string]interface{} {
	out := map[string]interface{}{
		"query":   res.Query,
		"items":   itemsJSON(res.Items),
		"folders": foldersJSON(res.Folders),
	}
	if res.Filter != nil {
		out["filter"] = res.Filter
	}
	return out
}
