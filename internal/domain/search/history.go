package search

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"
)

// MaxHistory is the number of queries kept.
const MaxHistory = 50

// History is a most-recently-used list of search queries persisted as JSON.
type History struct {
	mu       sync.RWMutex
	filePath string
	entries  []string
}

// NewHistory loads the history stored in dataDir. An empty dataDir keeps the
// history in memory only.
func NewHistory(dataDir string) *History {
	h := &History{entries: []string{}}
	if dataDir != "" {
		h.filePath = filepath.Join(dataDir, "search_history.json")
		h.load()
	}
	return h
}

// Add moves query to the front, dropping duplicates and the oldest entries.
func (h *History) Add(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}

	h.mu.Lock()
	entries := make([]string, 0, len(h.entries)+1)
	entries = append(entries, query)
	for _, e := range h.entries {
		if e != query {
			entries = append(entries, e)
		}
	}
	if len(entries) > MaxHistory {
		entries = entries[:MaxHistory]
	}
	h.entries = entries
	h.mu.Unlock()

	h.save()
}

// Remove deletes one query. It reports whether it was present.
func (h *History) Remove(query string) bool {
	h.mu.Lock()
	idx := -1
	for i, e := range h.entries {
		if e == query {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.mu.Unlock()
		return false
	}
	h.entries = append(h.entries[:idx:idx], h.entries[idx+1:]...)
	h.mu.Unlock()

	h.save()
	return true
}

// Clear deletes every query.
func (h *History) Clear() {
	h.mu.Lock()
	h.entries = []string{}
	h.mu.Unlock()

	h.save()
	log.Info().Msg("Search history cleared")
}

// Entries returns the queries, most recent first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Suggestions returns up to limit past queries for query. Substring matches
// come first in recency order, then fuzzy matches by closeness. An empty
// query returns the most recent entries.
func (h *History) Suggestions(query string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}
	entries := h.Entries()

	query = strings.TrimSpace(query)
	if query == "" {
		if len(entries) > limit {
			entries = entries[:limit]
		}
		return entries
	}

	lower := strings.ToLower(query)
	out := make([]string, 0, limit)
	taken := make(map[string]bool)
	for _, e := range entries {
		if len(out) == limit {
			return out
		}
		if strings.Contains(strings.ToLower(e), lower) {
			out = append(out, e)
			taken[e] = true
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(query, entries)
	sort.Stable(ranks)
	for _, r := range ranks {
		if len(out) == limit {
			break
		}
		if !taken[r.Target] {
			out = append(out, r.Target)
			taken[r.Target] = true
		}
	}
	return out
}

func (h *History) load() {
	data, err := os.ReadFile(h.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", h.filePath).Msg("Failed to read search history")
		}
		return
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Msg("Failed to parse search history")
		return
	}
	if len(entries) > MaxHistory {
		entries = entries[:MaxHistory]
	}
	h.entries = entries
	log.Debug().Int("count", len(entries)).Msg("Loaded search history")
}

func (h *History) save() {
	if h.filePath == "" {
		return
	}
	entries := h.Entries()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal search history")
		return
	}
	if err := os.MkdirAll(filepath.Dir(h.filePath), 0755); err != nil {
		log.Error().Err(err).Msg("Failed to create history directory")
		return
	}
	if err := os.WriteFile(h.filePath, data, 0644); err != nil {
		log.Error().Err(err).Msg("Failed to save search history")
	}
}
