package library

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

// Index is the in-memory view of the last scan. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	items   []media.Item
	byID    map[string]int
	updated time.Time
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{byID: make(map[string]int)}
}

// Replace swaps in the result of a scan.
func (x *Index) Replace(items []media.Item) {
	sorted := make([]media.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DateAdded.After(sorted[j].DateAdded)
	})

	byID := make(map[string]int, len(sorted))
	for i, item := range sorted {
		byID[item.ID] = i
	}

	x.mu.Lock()
	x.items = sorted
	x.byID = byID
	x.updated = time.Now()
	x.mu.Unlock()
}

// Len returns the number of indexed items.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

// Updated returns when the index was last replaced.
func (x *Index) Updated() time.Time {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.updated
}

// All returns every item, newest first.
func (x *Index) All() []media.Item {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]media.Item, len(x.items))
	copy(out, x.items)
	return out
}

// Get returns the item with id.
func (x *Index) Get(id string) (media.Item, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.byID[id]
	if !ok {
		return media.Item{}, false
	}
	return x.items[i], true
}

// Lookup returns the items for ids in the given order, skipping unknown ids.
func (x *Index) Lookup(ids []string) []media.Item {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return lo.FilterMap(ids, func(id string, _ int) (media.Item, bool) {
		i, ok := x.byID[id]
		if !ok {
			return media.Item{}, false
		}
		return x.items[i], true
	})
}

// ByFolder returns the items of one folder sorted by title.
func (x *Index) ByFolder(folderID string) []media.Item {
	x.mu.RLock()
	items := lo.Filter(x.items, func(item media.Item, _ int) bool {
		return item.FolderID == folderID
	})
	x.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].SortTitle()) < strings.ToLower(items[j].SortTitle())
	})
	return items
}

// Folders groups the index by directory, sorted by name.
func (x *Index) Folders() []media.Folder {
	x.mu.RLock()
	grouped := lo.GroupBy(x.items, func(item media.Item) string { return item.FolderID })
	x.mu.RUnlock()

	folders := make([]media.Folder, 0, len(grouped))
	for id, items := range grouped {
		f := media.Folder{
			ID:   id,
			Name: items[0].FolderName,
			Path: filepath.Dir(items[0].Path),
		}
		for _, item := range items {
			f.Add(item)
		}
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool {
		ni, nj := strings.ToLower(folders[i].Name), strings.ToLower(folders[j].Name)
		if ni != nj {
			return ni < nj
		}
		return folders[i].Path < folders[j].Path
	})
	return folders
}

// RecentlyAdded returns the n newest items. n <= 0 means DefaultRecentlyAdded.
func (x *Index) RecentlyAdded(n int) []media.Item {
	if n <= 0 {
		n = DefaultRecentlyAdded
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if n > len(x.items) {
		n = len(x.items)
	}
	out := make([]media.Item, n)
	copy(out, x.items[:n])
	return out
}
