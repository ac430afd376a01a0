// Package prefs stores user preferences as a flat key-value YAML file.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Preference keys.
const (
	KeyBackgroundPlayback = "background_playback"
	KeyWifiOnlyStreaming  = "wifi_only_streaming"
	KeyPlaybackSpeed      = "playback_speed"
	KeySeekIncrement      = "seek_increment"
	KeyPipEnabled         = "pip_enabled"
	KeyGestureControls    = "gesture_controls"
	KeyVolumeLevel        = "volume_level"
	KeyBrightnessLevel    = "brightness_level"
	KeyCurrentMediaPath   = "current_media_path"
	KeyCurrentMediaTitle  = "current_media_title"
	KeyCurrentMediaArtist = "current_media_artist"
	KeyIsAudioOnly        = "is_audio_only"
	KeyLastPosition       = "last_position"
	KeyOrientation        = "orientation"
	KeyFirstRun           = "first_run"
)

// Orientation preferences.
const (
	OrientationAuto      = "auto"
	OrientationLandscape = "landscape"
	OrientationPortrait  = "portrait"
)

// defaults are written on first run.
var defaults = map[string]interface{}{
	KeyBackgroundPlayback: true,
	KeyWifiOnlyStreaming:  false,
	KeyPlaybackSpeed:      1.0,
	KeySeekIncrement:      10,
	KeyPipEnabled:         true,
	KeyGestureControls:    true,
	KeyVolumeLevel:        1.0,
	KeyBrightnessLevel:    0.5,
	KeyOrientation:        OrientationAuto,
}

// userKeys may be changed by clients.
var userKeys = map[string]bool{
	KeyBackgroundPlayback: true,
	KeyWifiOnlyStreaming:  true,
	KeyPlaybackSpeed:      true,
	KeySeekIncrement:      true,
	KeyPipEnabled:         true,
	KeyGestureControls:    true,
	KeyVolumeLevel:        true,
	KeyBrightnessLevel:    true,
	KeyOrientation:        true,
}

// Store is a concurrency-safe preference store backed by viper.
type Store struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
}

// Open loads preferences from path, writing defaults on first run. An empty
// path keeps preferences in memory only.
func Open(path string) (*Store, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	s := &Store{v: v, path: path}

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read preferences: %w", err)
			}
		}
	}

	if !v.IsSet(KeyFirstRun) || v.GetBool(KeyFirstRun) {
		for k, val := range defaults {
			if !v.IsSet(k) {
				v.Set(k, val)
			}
		}
		v.Set(KeyFirstRun, false)
		if err := s.save(); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("Initialized default preferences")
	}

	return s, nil
}

// Save writes preferences to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// All returns every stored preference.
func (s *Store) All() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.AllSettings()
}

// Get returns the raw value for key.
func (s *Store) Get(key string) interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.Get(key)
}

// Set validates and stores a client-settable preference, then saves.
func (s *Store) Set(key string, value interface{}) error {
	if !userKeys[key] {
		return fmt.Errorf("unknown preference %q", key)
	}
	if key == KeyOrientation {
		o, _ := value.(string)
		if o != OrientationAuto && o != OrientationLandscape && o != OrientationPortrait {
			return fmt.Errorf("invalid orientation %q", o)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
	return s.save()
}

func (s *Store) setAndSave(values map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.v.Set(k, v)
	}
	return s.save()
}

func (s *Store) getBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(key)
}

func (s *Store) getFloat(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetFloat64(key)
}

func (s *Store) getString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetString(key)
}

func (s *Store) BackgroundPlayback() bool { return s.getBool(KeyBackgroundPlayback) }
func (s *Store) WifiOnlyStreaming() bool  { return s.getBool(KeyWifiOnlyStreaming) }
func (s *Store) PipEnabled() bool         { return s.getBool(KeyPipEnabled) }
func (s *Store) GestureControls() bool    { return s.getBool(KeyGestureControls) }
func (s *Store) PlaybackSpeed() float64   { return s.getFloat(KeyPlaybackSpeed) }
func (s *Store) VolumeLevel() float64     { return s.getFloat(KeyVolumeLevel) }
func (s *Store) BrightnessLevel() float64 { return s.getFloat(KeyBrightnessLevel) }
func (s *Store) Orientation() string      { return s.getString(KeyOrientation) }

// SeekIncrement returns the double-tap seek step in seconds.
func (s *Store) SeekIncrement() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := s.v.GetInt(KeySeekIncrement); n > 0 {
		return n
	}
	return 10
}

// SetLevels persists the last gesture volume and brightness.
func (s *Store) SetLevels(volume, brightness float64) error {
	return s.setAndSave(map[string]interface{}{
		KeyVolumeLevel:     volume,
		KeyBrightnessLevel: brightness,
	})
}

// MediaInfo is the last playing item as remembered across restarts.
type MediaInfo struct {
	Path      string
	Title     string
	Artist    string
	AudioOnly bool
	Position  int64 // milliseconds
}

// SaveMediaInfo remembers the playing item.
func (s *Store) SaveMediaInfo(info MediaInfo) error {
	return s.setAndSave(map[string]interface{}{
		KeyCurrentMediaPath:   info.Path,
		KeyCurrentMediaTitle:  info.Title,
		KeyCurrentMediaArtist: info.Artist,
		KeyIsAudioOnly:        info.AudioOnly,
		KeyLastPosition:       info.Position,
	})
}

// MediaInfo returns the remembered item. ok is false when nothing is stored.
func (s *Store) MediaInfo() (MediaInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := MediaInfo{
		Path:      s.v.GetString(KeyCurrentMediaPath),
		Title:     s.v.GetString(KeyCurrentMediaTitle),
		Artist:    s.v.GetString(KeyCurrentMediaArtist),
		AudioOnly: s.v.GetBool(KeyIsAudioOnly),
		Position:  s.v.GetInt64(KeyLastPosition),
	}
	return info, info.Path != ""
}

// ClearMediaInfo forgets the playing item.
func (s *Store) ClearMediaInfo() error {
	return s.SaveMediaInfo(MediaInfo{})
}
