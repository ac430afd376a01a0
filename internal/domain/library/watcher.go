package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 2 * time.Second

// Watcher reports changes below the media roots, debounced.
type Watcher struct {
	roots    []string
	debounce time.Duration
	onChange func()

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]bool
	timer   *time.Timer
}

// NewWatcher creates a watcher. onChange runs on a timer goroutine once the
// tree has been quiet for debounce.
func NewWatcher(roots []string, debounce time.Duration, onChange func()) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		roots:    roots,
		debounce: debounce,
		onChange: onChange,
		watched:  make(map[string]bool),
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	w.watcher = watcher

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			log.Warn().Err(err).Str("root", root).Msg("Failed to watch media root")
		}
	}
	log.Info().Int("dirs", w.count()).Msg("Watching media roots")

	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Media watch error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			w.trigger()
			return
		}
	}
	removedDir := false
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		removedDir = w.removeWatch(event.Name)
	}

	if !removedDir && !w.relevant(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.trigger()
	}
}

// relevant reports whether a path is a media file or a watched directory.
func (w *Watcher) relevant(path string) bool {
	if _, ok := MimeType(path); ok {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watched[path]
}

func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		log.Debug().Msg("Media roots changed")
		if w.onChange != nil {
			w.onChange()
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

func (w *Watcher) addWatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.watched[path] = true
	return nil
}

func (w *Watcher) removeWatch(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watched[path] {
		return false
	}
	_ = w.watcher.Remove(path)
	delete(w.watched, path)
	return true
}

func (w *Watcher) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}
