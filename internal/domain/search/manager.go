package search

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// Source supplies the items and folders to search. *library.Index satisfies it.
type Source interface {
	All() []media.Item
	Folders() []media.Folder
}

// Result is one search answer.
type Result struct {
	Query   string         `json:"query"`
	Filter  *Filter        `json:"filter,omitempty"`
	Items   []media.Item   `json:"items"`
	Folders []media.Folder `json:"folders"`
}

// Manager runs searches over a Source and records queries in a History.
type Manager struct {
	source  Source
	history *History
	now     func() time.Time
}

// NewManager creates a search manager. history may be nil.
func NewManager(source Source, history *History) *Manager {
	if history == nil {
		history = NewHistory("")
	}
	return &Manager{source: source, history: history, now: time.Now}
}

// History returns the query history.
func (m *Manager) History() *History {
	return m.history
}

// Search matches query against title, display name, folder, extension and
// resolution, then applies filter. With no query and no active filter the
// result is empty. Without a filter sort, title matches rank first and ties
// are ordered by title.
func (m *Manager) Search(query string, filter *Filter) Result {
	query = strings.TrimSpace(query)
	res := Result{Query: query, Filter: filter, Items: []media.Item{}, Folders: []media.Folder{}}
	if query == "" && !filter.Active() {
		return res
	}

	lower := strings.ToLower(query)
	res.Items = lo.Filter(m.source.All(), func(item media.Item, _ int) bool {
		if lower != "" && !matchesQuery(item, lower) {
			return false
		}
		return filter.Matches(item)
	})

	if filter != nil && filter.Sort != SortNone {
		Sort(res.Items, filter.Sort)
	} else {
		items := res.Items
		sort.SliceStable(items, func(i, j int) bool {
			ti, tj := matchesTitle(items[i], lower), matchesTitle(items[j], lower)
			if ti != tj {
				return ti
			}
			return titleKey(items[i]) < titleKey(items[j])
		})
	}

	if lower != "" {
		res.Folders = lo.Filter(m.source.Folders(), func(f media.Folder, _ int) bool {
			return strings.Contains(strings.ToLower(f.Name), lower)
		})
		sort.SliceStable(res.Folders, func(i, j int) bool {
			return strings.ToLower(res.Folders[i].Name) < strings.ToLower(res.Folders[j].Name)
		})
		m.history.Add(query)
	}

	log.Debug().
		Str("query", query).
		Bool("filtered", filter.Active()).
		Int("items", len(res.Items)).
		Int("folders", len(res.Folders)).
		Msg("Search complete")
	return res
}

// Suggestions returns past queries for a partial query.
func (m *Manager) Suggestions(query string, limit int) []string {
	return m.history.Suggestions(query, limit)
}

// ByFormat returns items with the given extension.
func (m *Manager) ByFormat(format string) Result {
	return m.Search("", &Filter{AllowedFormats: []string{format}})
}

// ByFolder returns items in the named folder.
func (m *Manager) ByFolder(folderName string) Result {
	return m.Search("", &Filter{IncludedFolders: []string{folderName}})
}

// ByResolution returns items of at least width x height.
func (m *Manager) ByResolution(width, height int) Result {
	return m.Search("", &Filter{MinWidth: width, MinHeight: height})
}

// LargeFiles returns items of at least minSizeMB.
func (m *Manager) LargeFiles(minSizeMB int64) Result {
	return m.Search("", &Filter{MinSizeMB: minSizeMB})
}

// RecentDays returns items added in the last days days.
func (m *Manager) RecentDays(days int) Result {
	f := RecentFilter(days, m.now())
	return m.Search("", &f)
}

func matchesQuery(item media.Item, lower string) bool {
	if matchesTitle(item, lower) {
		return true
	}
	fields := []string{item.DisplayName, item.FolderName, item.Extension(), item.Resolution()}
	return lo.SomeBy(fields, func(field string) bool {
		return field != "" && strings.Contains(strings.ToLower(field), lower)
	})
}

func matchesTitle(item media.Item, lower string) bool {
	return item.Title != "" && strings.Contains(strings.ToLower(item.Title), lower)
}
