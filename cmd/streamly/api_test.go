package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/edumarques81/streamly-backend/internal/domain/artwork"
	"github.com/edumarques81/streamly-backend/internal/domain/media"
)

type fakeThumbnails struct {
	path string
	err  error
	size artwork.ThumbnailSize
}

func (f *fakeThumbnails) Resolve(_ context.Context, _ media.Item, size artwork.ThumbnailSize) (string, error) {
	f.size = size
	return f.path, f.err
}

func newTestAPI(thumbs *fakeThumbnails) *http.ServeMux {
	items := map[string]media.Item{"v1": {ID: "v1", Title: "Clip", Kind: media.KindVideo}}
	a := &api{
		ping: func(context.Context) error { return nil },
		state: func(context.Context) (map[string]interface{}, error) {
			return map[string]interface{}{"status": "playing", "index": 0}, nil
		},
		device: func(context.Context) (map[string]interface{}, error) {
			return map[string]interface{}{"id": "d1", "name": "Den", "isSelf": true}, nil
		},
		lookup: func(id string) (media.Item, bool) {
			item, ok := items[id]
			return item, ok
		},
		thumbnails: thumbs,
		clients:    func() int { return 2 },
	}
	mux := http.NewServeMux()
	a.routes(mux)
	return mux
}

func get(mux http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAPI_Health(t *testing.T) {
	rec := get(newTestAPI(&fakeThumbnails{}), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["clients"] != float64(2) {
		t.Errorf("Unexpected body %v", body)
	}
}

func TestAPI_HealthStalledLoop(t *testing.T) {
	a := &api{
		ping:    func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() },
		clients: func() int { return 0 },
	}
	mux := http.NewServeMux()
	a.routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestAPI_State(t *testing.T) {
	rec := get(newTestAPI(&fakeThumbnails{}), "/api/v1/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"status":"playing"`) {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestAPI_StateUnavailable(t *testing.T) {
	a := &api{state: func(context.Context) (map[string]interface{}, error) {
		return nil, errors.New("loop stopped")
	}}
	mux := http.NewServeMux()
	a.routes(mux)
	if rec := get(mux, "/api/v1/state"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestAPI_Device(t *testing.T) {
	rec := get(newTestAPI(&fakeThumbnails{}), "/api/v1/device")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Den"`) {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
}

func TestAPI_Version(t *testing.T) {
	rec := get(newTestAPI(&fakeThumbnails{}), "/api/v1/version")
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["name"] != "Streamly" || body["version"] == "" {
		t.Errorf("Unexpected version body %v", body)
	}
}

func TestAPI_Thumbnail(t *testing.T) {
	file := filepath.Join(t.TempDir(), "v1_500.jpg")
	if err := os.WriteFile(file, []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		thumbs *fakeThumbnails
		status int
	}{
		{"missing id", "/thumbnail", &fakeThumbnails{path: file}, http.StatusBadRequest},
		{"unknown id", "/thumbnail?id=nope", &fakeThumbnails{path: file}, http.StatusNotFound},
		{"no artwork", "/thumbnail?id=v1", &fakeThumbnails{err: errors.New("no frame")}, http.StatusNotFound},
		{"served", "/thumbnail?id=v1&size=large", &fakeThumbnails{path: file}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newTestAPI(tt.thumbs), tt.target)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			if rec.Body.String() != "jpeg" {
				t.Errorf("body = %q", rec.Body.String())
			}
			if tt.thumbs.size != artwork.ThumbLarge {
				t.Errorf("size = %d, want %d", tt.thumbs.size, artwork.ThumbLarge)
			}
		})
	}
}

func TestSPAHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<app>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("js"), 0644); err != nil {
		t.Fatal(err)
	}
	h := spaHandler(dir)

	tests := map[string]string{
		"/app.js":        "js",
		"/library/video": "<app>",
	}
	for target, want := range tests {
		if got := get(h, target).Body.String(); got != want {
			t.Errorf("GET %s = %q, want %q", target, got, want)
		}
	}
}

func TestCommands(t *testing.T) {
	dataDir := t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		defer rootCmd.SetArgs(nil)
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
		return out.String()
	}

	if got := run("version", "--short"); strings.TrimSpace(got) == "" {
		t.Error("Expected a version number")
	}
	if got := run("scan", "--data-dir", dataDir); !strings.Contains(got, "0 items in 0 folders") {
		t.Errorf("Unexpected scan output %q", got)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "streamly.db")); err != nil {
		t.Errorf("Cache database not created: %v", err)
	}
	if got := run("recent", "list", "--data-dir", dataDir); !strings.Contains(got, "LAST PLAYED") {
		t.Errorf("Unexpected recent output %q", got)
	}
	if got := run("recent", "clear", "--data-dir", dataDir); !strings.Contains(got, "cleared") {
		t.Errorf("Unexpected clear output %q", got)
	}
}
