// Package main is the entry point for the Streamly media player daemon.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/edumarques81/streamly-backend/internal/config"
	"github.com/edumarques81/streamly-backend/internal/logging"
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./streamly.yaml or the user config dir)")
	flags.Int("port", 3001, "HTTP server port")
	flags.StringSlice("media-roots", nil, "Directories scanned for video and audio")
	flags.String("data-dir", "", "Directory for the cache database, preferences and thumbnails")
	flags.String("static-dir", "", "Directory to serve static files from (optional)")
	flags.String("video-engine", config.EngineMPV, "Engine for video playback (mpv or mpd)")
	flags.String("audio-engine", config.EngineMPD, "Engine for background audio playback (mpv or mpd)")
	flags.String("mpd-host", "localhost", "MPD host")
	flags.Int("mpd-port", 6600, "MPD port")
	flags.String("mpd-password", "", "MPD password")
	flags.String("mpd-music-dir", "", "MPD music_directory, used to queue files by relative path")
	flags.String("mpv-path", "mpv", "mpv executable")
	flags.String("mpv-socket", "", "mpv IPC socket path")
	flags.Bool("mpv-spawn", true, "Start private mpv processes instead of attaching to one")
	flags.String("ffprobe-path", "ffprobe", "ffprobe executable")
	flags.String("ffmpeg-path", "ffmpeg", "ffmpeg executable")
	flags.Int("workers", 4, "Background worker count")
	flags.Int("recent-limit", 100, "Maximum recently played entries")
	flags.Int("countdown-seconds", 3, "Auto-advance countdown length")
	flags.Int("max-external-clients", 4, "Maximum remote controller connections")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-file", "", "Also write JSON logs to this rotating file")
	flags.Bool("watch", true, "Rescan when media roots change")

	lo.Must0(rootCmd.RegisterFlagCompletionFunc("video-engine", completeEngines))
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("audio-engine", completeEngines))
}

var rootCmd = &cobra.Command{
	Use:           config.Name,
	Short:         "Local video and audio player daemon",
	Long:          "Streamly scans local media, plays it through mpv or MPD and serves a Socket.io remote.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func completeEngines(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{config.EngineMPV, config.EngineMPD}, cobra.ShellCompDirectiveNoFileComp
}

// setup resolves the configuration for cmd and installs the logger.
func setup(cmd *cobra.Command) (*config.Config, io.Closer, error) {
	file := lo.Must(cmd.Flags().GetString("config"))
	cfg, err := config.Load(config.New(), cmd.Flags(), file)
	if err != nil {
		return nil, nil, err
	}
	closer, err := logging.Setup(logging.Options{
		Debug:      cfg.Debug,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, closer, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
