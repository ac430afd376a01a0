package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/streamly-backend/internal/domain/artwork"
	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/version"
)

// pingTimeout bounds the loop liveness check in /health.
const pingTimeout = time.Second

type thumbnailer interface {
	Resolve(ctx context.Context, item media.Item, size artwork.ThumbnailSize) (string, error)
}

// api serves the REST endpoints next to Socket.io.
type api struct {
	ping       func(ctx context.Context) error
	state      func(ctx context.Context) (map[string]interface{}, error)
	device     func(ctx context.Context) (map[string]interface{}, error)
	lookup     func(id string) (media.Item, bool)
	thumbnails thumbnailer
	clients    func() int
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", a.health)
	mux.HandleFunc("/api/v1/version", a.version)
	mux.HandleFunc("/api/v1/state", a.getState)
	mux.HandleFunc("/api/v1/device", a.getDevice)
	mux.HandleFunc("/thumbnail", a.thumbnail)
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := a.ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "error", "loop": "stalled"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "loop": "running", "clients": a.clients()})
}

func (a *api) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.GetInfo())
}

func (a *api) getState(w http.ResponseWriter, r *http.Request) {
	state, err := a.state(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *api) getDevice(w http.ResponseWriter, r *http.Request) {
	card, err := a.device(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// thumbnail serves a JPEG for ?id= at ?size=small|medium|large.
func (a *api) thumbnail(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}
	item, ok := a.lookup(id)
	if !ok {
		http.Error(w, "media not found", http.StatusNotFound)
		return
	}

	path, err := a.thumbnails.Resolve(r.Context(), item, artwork.ParseSize(r.URL.Query().Get("size")))
	if err != nil {
		log.Debug().Err(err).Str("id", id).Msg("Thumbnail not available")
		http.Error(w, "thumbnail not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400") // Cache for 1 day
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Response not written")
	}
}

// spaHandler serves files from dir and falls back to index.html for client
// side routes.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}
