package socketio

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/search"
)

// DefaultPageSize is the page size of library listings.
const DefaultPageSize = 100

// page returns the 1-based page of items with its total.
func page(items []media.Item, m map[string]interface{}) ([]media.Item, int, int) {
	total := len(items)
	p := intOr(m, "page", 1)
	if p < 1 {
		p = 1
	}
	limit := intOr(m, "limit", DefaultPageSize)
	if limit <= 0 {
		limit = DefaultPageSize
	}
	start := (p - 1) * limit
	if start >= total {
		return []media.Item{}, total, p
	}
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], total, p
}

func (s *Server) libraryHandlers(h map[string]handlerFunc) {
	h["library:list"] = func(reply replyFunc, m map[string]interface{}) {
		if s.deps.Library == nil {
			return
		}
		sortType := search.SortType(str(m, "sort"))
		kind := media.Kind(str(m, "kind"))
		s.background(func() {
			items := s.deps.Library.Index().All()
			if kind != "" {
				items = filterKind(items, kind)
			}
			search.Sort(items, sortType)
			reply("pushLibrary", s.libraryPage(items, m))
		})
	}

	h["library:folders"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Library == nil {
			return
		}
		s.background(func() {
			folders := s.deps.Library.Index().Folders()
			log.Debug().Int("folders", len(folders)).Msg("Sending pushLibraryFolders")
			reply("pushLibraryFolders", map[string]interface{}{
				"folders": foldersJSON(folders),
			})
		})
	}

	h["library:folder"] = func(reply replyFunc, m map[string]interface{}) {
		id := str(m, "id")
		if id == "" || s.deps.Library == nil {
			return
		}
		sortType := search.SortType(str(m, "sort"))
		s.background(func() {
			items := s.deps.Library.Index().ByFolder(id)
			search.Sort(items, sortType)
			reply("pushLibraryFolder", map[string]interface{}{
				"id":    id,
				"items": itemsJSON(items),
			})
		})
	}

	h["library:item"] = func(reply replyFunc, m map[string]interface{}) {
		id := str(m, "id")
		if id == "" || s.deps.Library == nil {
			return
		}
		s.background(func() {
			item, ok := s.deps.Library.Index().Get(id)
			if !ok {
				reply("pushLibraryItem", map[string]interface{}{"id": id, "found": false})
				return
			}
			out := itemJSON(item)
			out["found"] = true
			reply("pushLibraryItem", out)
		})
	}

	h["library:recentlyAdded"] = func(reply replyFunc, m map[string]interface{}) {
		if s.deps.Library == nil {
			return
		}
		limit := intOr(m, "limit", 0)
		s.background(func() {
			items := s.deps.Library.Index().RecentlyAdded(limit)
			reply("pushRecentlyAdded", map[string]interface{}{
				"items": itemsJSON(items),
			})
		})
	}

	h["library:rescan"] = func(reply replyFunc, _ map[string]interface{}) {
		if s.deps.Library == nil {
			return
		}
		s.post(func() {
			if s.deps.Library.Scanning() {
				reply("pushNotice", map[string]interface{}{"message": "Scan already in progress"})
				return
			}
			s.emit("pushScanStatus", map[string]interface{}{"scanning": true})
			s.deps.Library.Refresh(func(items []media.Item, err error) {
				out := map[string]interface{}{
					"scanning": false,
					"count":    len(items),
				}
				if err != nil {
					out["error"] = err.Error()
				}
				s.emit("pushScanStatus", out)
				s.Changed(TopicLibrary)
			})
		})
	}
}

func (s *Server) libraryPage(items []media.Item, m map[string]interface{}) map[string]interface{} {
	paged, total, p := page(items, m)
	return map[string]interface{}{
		"items":    itemsJSON(paged),
		"total":    total,
		"page":     p,
		"scanning": s.deps.Library.Scanning(),
	}
}

func filterKind(items []media.Item, kind media.Kind) []media.Item {
	return lo.Filter(items, func(item media.Item, _ int) bool {
		return item.Kind == kind
	})
}

// BroadcastLibrary sends the first library page and the folders to every
// client.
func (s *Server) BroadcastLibrary() {
	if s.deps.Library == nil {
		return
	}
	s.background(func() {
		index := s.deps.Library.Index()
		s.emit("pushLibrary", s.libraryPage(index.All(), nil))
		s.emit("pushLibraryFolders", map[string]interface{}{
			"folders": foldersJSON(index.Folders()),
		})
	})
}
