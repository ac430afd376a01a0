// Package config loads daemon settings from flags, STREAMLY_* environment
// variables and an optional streamly.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Name is used for the config file and the environment prefix.
const Name = "streamly"

// Configuration keys.
const (
	KeyPort               = "port"
	KeyMediaRoots         = "media_roots"
	KeyDataDir            = "data_dir"
	KeyStaticDir          = "static_dir"
	KeyVideoEngine        = "video_engine"
	KeyAudioEngine        = "audio_engine"
	KeyMPDHost            = "mpd.host"
	KeyMPDPort            = "mpd.port"
	KeyMPDPassword        = "mpd.password"
	KeyMPDMusicDir        = "mpd.music_dir"
	KeyMPVPath            = "mpv.path"
	KeyMPVSocket          = "mpv.socket"
	KeyMPVSpawn           = "mpv.spawn"
	KeyFFprobePath        = "ffprobe_path"
	KeyFFmpegPath         = "ffmpeg_path"
	KeyWorkers            = "workers"
	KeyRecentLimit        = "recent_limit"
	KeyCountdownSeconds   = "countdown_seconds"
	KeyMaxExternalClients = "max_external_clients"
	KeyDebug              = "debug"
	KeyLogFile            = "log.file"
	KeyLogMaxSize         = "log.max_size"
	KeyLogMaxBackups      = "log.max_backups"
	KeyLogMaxAge          = "log.max_age"
	KeyWatch              = "watch"
)

// Engine names.
const (
	EngineMPV = "mpv"
	EngineMPD = "mpd"
)

// EnvKeyReplacer maps nested keys onto environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// Defaults holds the factory value of every key.
var Defaults = map[string]interface{}{
	KeyPort:               3001,
	KeyMediaRoots:         []string{},
	KeyDataDir:            "",
	KeyStaticDir:          "",
	KeyVideoEngine:        EngineMPV,
	KeyAudioEngine:        EngineMPD,
	KeyMPDHost:            "localhost",
	KeyMPDPort:            6600,
	KeyMPDPassword:        "",
	KeyMPDMusicDir:        "",
	KeyMPVPath:            "mpv",
	KeyMPVSocket:          "",
	KeyMPVSpawn:           true,
	KeyFFprobePath:        "ffprobe",
	KeyFFmpegPath:         "ffmpeg",
	KeyWorkers:            4,
	KeyRecentLimit:        100,
	KeyCountdownSeconds:   3,
	KeyMaxExternalClients: 4,
	KeyDebug:              false,
	KeyLogFile:            "",
	KeyLogMaxSize:         10,
	KeyLogMaxBackups:      3,
	KeyLogMaxAge:          28,
	KeyWatch:              true,
}

// MPD locates the Music Player Daemon.
type MPD struct {
	Host     string
	Port     int
	Password string
	// MusicDir is MPD's music_directory, used to queue files by relative URI.
	MusicDir string
}

// MPV describes how mpv is reached.
type MPV struct {
	Path   string
	Socket string
	Spawn  bool
}

// Log configures the log output.
type Log struct {
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

// Config is the resolved daemon configuration.
type Config struct {
	Port               int
	MediaRoots         []string
	DataDir            string
	StaticDir          string
	VideoEngine        string
	AudioEngine        string
	MPD                MPD
	MPV                MPV
	FFprobePath        string
	FFmpegPath         string
	Workers            int
	RecentLimit        int
	CountdownSeconds   int
	MaxExternalClients int
	Debug              bool
	Log                Log
	Watch              bool
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(Name)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	v.SetTypeByDefaultValue(true)
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Load resolves the configuration. Flags win over the environment, which
// wins over the file. An explicit file must exist; otherwise streamly.yaml is
// looked up in the working directory and the user config directory.
func Load(v *viper.Viper, flags *pflag.FlagSet, file string) (*Config, error) {
	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, Name))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		Port:        v.GetInt(KeyPort),
		MediaRoots:  v.GetStringSlice(KeyMediaRoots),
		DataDir:     v.GetString(KeyDataDir),
		StaticDir:   v.GetString(KeyStaticDir),
		VideoEngine: strings.ToLower(v.GetString(KeyVideoEngine)),
		AudioEngine: strings.ToLower(v.GetString(KeyAudioEngine)),
		MPD: MPD{
			Host:     v.GetString(KeyMPDHost),
			Port:     v.GetInt(KeyMPDPort),
			Password: v.GetString(KeyMPDPassword),
			MusicDir: v.GetString(KeyMPDMusicDir),
		},
		MPV: MPV{
			Path:   v.GetString(KeyMPVPath),
			Socket: v.GetString(KeyMPVSocket),
			Spawn:  v.GetBool(KeyMPVSpawn),
		},
		FFprobePath:        v.GetString(KeyFFprobePath),
		FFmpegPath:         v.GetString(KeyFFmpegPath),
		Workers:            v.GetInt(KeyWorkers),
		RecentLimit:        v.GetInt(KeyRecentLimit),
		CountdownSeconds:   v.GetInt(KeyCountdownSeconds),
		MaxExternalClients: v.GetInt(KeyMaxExternalClients),
		Debug:              v.GetBool(KeyDebug),
		Log: Log{
			File:       v.GetString(KeyLogFile),
			MaxSize:    v.GetInt(KeyLogMaxSize),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAge:     v.GetInt(KeyLogMaxAge),
		},
		Watch: v.GetBool(KeyWatch),
	}

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindFlags binds every flag whose name matches a key, with dashes standing
// in for underscores and dots.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := flagKey(f.Name)
		if _, ok := Defaults[key]; !ok {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// flagKey maps a flag name such as mpd-host or media-roots to its key.
func flagKey(name string) string {
	for _, prefix := range []string{"mpd-", "mpv-", "log-"} {
		if strings.HasPrefix(name, prefix) {
			section := strings.TrimSuffix(prefix, "-")
			return section + "." + strings.ReplaceAll(strings.TrimPrefix(name, prefix), "-", "_")
		}
	}
	return strings.ReplaceAll(name, "-", "_")
}

func defaultDataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, Name), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve data directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", Name), nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	for key, engine := range map[string]string{KeyVideoEngine: c.VideoEngine, KeyAudioEngine: c.AudioEngine} {
		if engine != EngineMPV && engine != EngineMPD {
			return fmt.Errorf("invalid %s %q: want %s or %s", key, engine, EngineMPV, EngineMPD)
		}
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RecentLimit <= 0 {
		return fmt.Errorf("recent_limit must be positive, got %d", c.RecentLimit)
	}
	return nil
}

// DatabasePath is the SQLite cache location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "streamly.db")
}

// PreferencesPath is the preference store location.
func (c *Config) PreferencesPath() string {
	return filepath.Join(c.DataDir, "preferences.yaml")
}

// DevicePath is where the player identity is stored.
func (c *Config) DevicePath() string {
	return filepath.Join(c.DataDir, "device.json")
}

// ThumbnailDir is where generated thumbnails are kept.
func (c *Config) ThumbnailDir() string {
	return filepath.Join(c.DataDir, "thumbnails")
}
