// Package device keeps the identity remote controllers use to tell players
// apart on the network.
package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultName is used when the hostname is unavailable.
const DefaultName = "Streamly"

// ErrEmptyName is returned when renaming to a blank name.
var ErrEmptyName = errors.New("device name must not be empty")

// Info identifies this player.
type Info struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Service owns the persisted identity.
type Service struct {
	mu   sync.RWMutex
	path string
	info Info
}

// Open loads the identity stored at path, creating one on first run.
func Open(path string) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create device directory: %w", err)
	}

	s := &Service{path: path}
	if err := s.load(); err != nil {
		log.Debug().Err(err).Msg("No stored device identity, generating one")
		s.info = Info{UUID: uuid.New().String(), Name: defaultName()}
		if err := s.save(); err != nil {
			return nil, fmt.Errorf("failed to save device identity: %w", err)
		}
	}

	log.Info().Str("uuid", s.info.UUID).Str("name", s.info.Name).Msg("Device identity initialized")
	return s, nil
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("invalid device file: %w", err)
	}
	if _, err := uuid.Parse(info.UUID); err != nil {
		return fmt.Errorf("invalid device uuid %q: %w", info.UUID, err)
	}
	if info.Name == "" {
		info.Name = defaultName()
	}
	s.info = info
	return nil
}

func (s *Service) save() error {
	data, err := json.MarshalIndent(s.info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Info returns the current identity.
func (s *Service) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// SetName renames the player and persists the change.
func (s *Service) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.info.Name
	s.info.Name = name
	if err := s.save(); err != nil {
		s.info.Name = prev
		return fmt.Errorf("failed to save device name: %w", err)
	}
	return nil
}

// Card describes the player for a remote's device list. state is the
// rendered player state; missing fields fall back to an idle player.
func (s *Service) Card(state map[string]interface{}) map[string]interface{} {
	info := s.Info()
	return map[string]interface{}{
		"id":     info.UUID,
		"name":   info.Name,
		"isSelf": true,
		"state": map[string]interface{}{
			"status":    stringOr(state, "status", "idle"),
			"title":     stringOr(state, "title", ""),
			"audioOnly": boolOr(state, "audioOnly", false),
			"volume":    floatOr(state, "volume", 1),
		},
	}
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return DefaultName
	}
	return hostname
}

func stringOr(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func boolOr(m map[string]interface{}, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

func floatOr(m map[string]interface{}, key string, def float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
