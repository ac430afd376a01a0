package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/streamly-backend/internal/config"
	"github.com/edumarques81/streamly-backend/internal/domain/artwork"
	"github.com/edumarques81/streamly-backend/internal/domain/background"
	"github.com/edumarques81/streamly-backend/internal/domain/controller"
	"github.com/edumarques81/streamly-backend/internal/domain/device"
	"github.com/edumarques81/streamly-backend/internal/domain/library"
	"github.com/edumarques81/streamly-backend/internal/domain/media"
	"github.com/edumarques81/streamly-backend/internal/domain/player"
	"github.com/edumarques81/streamly-backend/internal/domain/prefs"
	"github.com/edumarques81/streamly-backend/internal/domain/recent"
	"github.com/edumarques81/streamly-backend/internal/domain/search"
	"github.com/edumarques81/streamly-backend/internal/domain/status"
	"github.com/edumarques81/streamly-backend/internal/infra/cache"
	"github.com/edumarques81/streamly-backend/internal/infra/mpd"
	"github.com/edumarques81/streamly-backend/internal/infra/mpv"
	"github.com/edumarques81/streamly-backend/internal/infra/probe"
	"github.com/edumarques81/streamly-backend/internal/infra/workerpool"
	"github.com/edumarques81/streamly-backend/internal/loop"
	"github.com/edumarques81/streamly-backend/internal/transport/socketio"
	"github.com/edumarques81/streamly-backend/internal/version"
)

// loopCapacity sizes the initial loop queue; it grows past this.
const loopCapacity = 256

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the player daemon (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logCloser, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	banner(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The loop outlives ctx so the controller can be released on it.
	lp := loop.New(loopCapacity)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go lp.Run(loopCtx)

	db := cache.NewDB(cfg.DatabasePath())
	if err := db.Open(); err != nil {
		return err
	}
	defer db.Close()
	dao := cache.NewDAO(db)

	pool := workerpool.New(cfg.Workers)
	defer pool.Close()

	store, err := prefs.Open(cfg.PreferencesPath())
	if err != nil {
		return err
	}
	bus := status.NewBus()
	dev, err := device.Open(cfg.DevicePath())
	if err != nil {
		return err
	}

	// Callbacks below fire only after server is assigned.
	var server *socketio.Server

	recentSvc := recent.NewService(dao,
		recent.WithLimit(cfg.RecentLimit),
		recent.WithPool(pool),
		recent.OnChange(func() { server.Changed(socketio.TopicRecent) }),
	)

	index := library.NewIndex()
	loader := library.NewLoader(ctx, library.LoaderConfig{
		Scanner: library.NewScanner(cfg.MediaRoots, probe.New(cfg.FFprobePath), library.WithCache(dao)),
		Index:   index,
		Pool:    pool,
		Runner:  lp,
		Merger:  recentSvc,
		OnLoaded: func([]media.Item) {
			if err := db.MarkScanComplete(); err != nil {
				log.Warn().Err(err).Msg("Failed to record scan time")
			}
			server.Changed(socketio.TopicLibrary)
		},
	})

	resolver := artwork.NewResolver(
		artwork.NewFolderFinder(cfg.MediaRoots),
		probe.NewFFmpeg(cfg.FFmpegPath),
		artwork.NewThumbnailGenerator(cfg.ThumbnailDir()),
	)

	server, err = socketio.NewServer(socketio.Deps{
		Runner:             lp,
		Pool:               pool,
		Library:            loader,
		Search:             search.NewManager(index, search.NewHistory(cfg.DataDir)),
		Recent:             recentSvc,
		Prefs:              store,
		Device:             dev,
		Bus:                bus,
		MaxExternalClients: cfg.MaxExternalClients,
	})
	if err != nil {
		return fmt.Errorf("failed to create Socket.io server: %w", err)
	}
	defer server.Close()

	eng := &engines{cfg: cfg}
	defer eng.Close()

	audioHost, err := eng.host(cfg.AudioEngine, true)
	if err != nil {
		return err
	}
	videoHost, err := eng.host(cfg.VideoEngine, false)
	if err != nil {
		return err
	}

	svc := background.NewService(background.Config{
		Runner:   lp,
		Host:     audioHost,
		Bus:      bus,
		Notifier: server,
		Store:    store,
		Pool:     pool,
	})
	server.SetBackground(svc)

	var ctrl *controller.Controller
	err = lp.Call(ctx, func() {
		ctrl = controller.New(controller.Config{
			Runner:    lp,
			VideoHost: videoHost,
			AudioHost: background.Host{
				Bind: func() (*background.Service, error) { return svc, nil },
				Send: func(in background.Intent) { lp.Post(func() { svc.HandleIntent(in) }) },
				Bus:  bus,
			},
			Bus:              bus,
			Settings:         store,
			Recorder:         recentSvc,
			Background:       svc,
			Pool:             pool,
			CountdownSeconds: cfg.CountdownSeconds,
		}, server)
		server.SetController(ctrl)
	})
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer releaseCancel()
		if err := lp.Call(releaseCtx, func() {
			ctrl.Release()
			svc.Stop()
		}); err != nil {
			log.Warn().Err(err).Msg("Player not released")
		}
	}()

	loader.Refresh(func(items []media.Item, err error) {
		if err != nil {
			log.Error().Err(err).Msg("Initial scan failed")
			return
		}
		log.Info().Int("items", len(items)).Msg("Library loaded")
	})

	if cfg.Watch && len(cfg.MediaRoots) > 0 {
		watcher := library.NewWatcher(cfg.MediaRoots, library.DefaultDebounce, func() {
			loader.Refresh(nil)
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Media watcher stopped")
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	a := &api{
		ping: func(ctx context.Context) error {
			return lp.Call(ctx, func() {})
		},
		state: func(ctx context.Context) (map[string]interface{}, error) {
			var st controller.State
			if err := lp.Call(ctx, func() { st = ctrl.Snapshot() }); err != nil {
				return nil, err
			}
			return st.ToJSON(), nil
		},
		device: func(ctx context.Context) (map[string]interface{}, error) {
			var st controller.State
			if err := lp.Call(ctx, func() { st = ctrl.Snapshot() }); err != nil {
				return nil, err
			}
			return dev.Card(st.ToJSON()), nil
		},
		lookup:     index.Get,
		thumbnails: resolver,
		clients:    server.Clients,
	}
	a.routes(mux)
	if cfg.StaticDir != "" {
		log.Info().Str("dir", cfg.StaticDir).Msg("Serving static files")
		mux.Handle("/", spaHandler(cfg.StaticDir))
	}

	addr := ":" + strconv.Itoa(cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	log.Info().Msg("Server stopped")
	return nil
}

func banner(cfg *config.Config) {
	info := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", info.String())
	log.Info().Msg("  Local Video and Audio Player")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Int("port", cfg.Port).
		Strs("media_roots", cfg.MediaRoots).
		Str("data_dir", cfg.DataDir).
		Str("video_engine", cfg.VideoEngine).
		Str("audio_engine", cfg.AudioEngine).
		Bool("watch", cfg.Watch).
		Msg("Configuration")
}

// engines builds engine hosts. Every MPD host shares one connection.
type engines struct {
	cfg     *config.Config
	mpd     *mpd.Client
	closers []func() error
}

func (e *engines) host(name string, audioOnly bool) (player.EngineHost, error) {
	if name == config.EngineMPD {
		if e.mpd == nil {
			client := mpd.NewClient(e.cfg.MPD.Host, e.cfg.MPD.Port, e.cfg.MPD.Password)
			if err := client.Connect(); err != nil {
				return nil, fmt.Errorf("failed to connect to MPD: %w", err)
			}
			if err := client.Ping(); err != nil {
				client.Close()
				return nil, fmt.Errorf("MPD ping failed: %w", err)
			}
			log.Info().Str("host", e.cfg.MPD.Host).Int("port", e.cfg.MPD.Port).Msg("MPD connection verified")
			e.mpd = client
			e.closers = append(e.closers, client.Close)
		}
		return mpd.NewHost(e.mpd, e.cfg.MPD.MusicDir), nil
	}

	socket := e.cfg.MPV.Socket
	if audioOnly && socket != "" && e.cfg.MPV.Spawn {
		socket += ".audio"
	}
	h := mpv.NewHost(mpv.Config{
		Binary:    e.cfg.MPV.Path,
		Socket:    socket,
		Spawn:     e.cfg.MPV.Spawn,
		AudioOnly: audioOnly,
	})
	e.closers = append(e.closers, h.Close)
	return h, nil
}

// Close shuts down every host, newest first.
func (e *engines) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Engine close failed")
		}
	}
}
