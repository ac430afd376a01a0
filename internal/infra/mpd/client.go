// Package mpd drives a Music Player Daemon as the audio-only playback engine.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned by Ping before Connect succeeded.
var ErrNotConnected = errors.New("not connected to MPD")

// Client wraps the gompd client with reconnection logic.
type Client struct {
	mu       sync.RWMutex
	client   *mpd.Client
	host     string
	port     int
	password string
}

// NewClient creates a new MPD client wrapper.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		password: password,
	}
}

func (c *Client) addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// Connect establishes the connection to MPD.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

// connectLocked dials MPD (must hold lock).
func (c *Client) connectLocked() error {
	addr := c.addr()
	log.Info().Str("addr", addr).Msg("Connecting to MPD")

	client, err := mpd.DialAuthenticated("tcp", addr, c.password)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	c.client = client
	log.Info().Msg("Connected to MPD")
	return nil
}

// ensureConnected pings the daemon and redials when the link dropped.
func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return c.connectLocked()
	}

	if err := c.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		c.client.Close()
		c.client = nil
		return c.connectLocked()
	}
	return nil
}

// with runs fn against a live connection.
func (c *Client) with(fn func(*mpd.Client) error) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return fn(c.client)
}

// Close closes the MPD connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// Ping checks if the connection is alive.
func (c *Client) Ping() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return ErrNotConnected
	}
	return c.client.Ping()
}

// Status returns the current MPD status.
func (c *Client) Status() (mpd.Attrs, error) {
	var attrs mpd.Attrs
	err := c.with(func(m *mpd.Client) error {
		var err error
		attrs, err = m.Status()
		return err
	})
	return attrs, err
}

// Play starts playback at queue position pos. -1 resumes the current song.
func (c *Client) Play(pos int) error {
	return c.with(func(m *mpd.Client) error {
		return m.Play(pos)
	})
}

// Pause sets the pause state.
func (c *Client) Pause(pause bool) error {
	return c.with(func(m *mpd.Client) error {
		return m.Pause(pause)
	})
}

// Stop stops playback.
func (c *Client) Stop() error {
	return c.with(func(m *mpd.Client) error {
		return m.Stop()
	})
}

// SeekTo seeks within the current song.
func (c *Client) SeekTo(position time.Duration) error {
	return c.with(func(m *mpd.Client) error {
		return m.SeekCur(position, false)
	})
}

// SetVolume sets the volume (0-100).
func (c *Client) SetVolume(vol int) error {
	if vol < 0 {
		vol = 0
	} else if vol > 100 {
		vol = 100
	}
	return c.with(func(m *mpd.Client) error {
		return m.SetVolume(vol)
	})
}

// Replace clears the queue and enqueues uri as its only entry.
func (c *Client) Replace(uri string) error {
	return c.with(func(m *mpd.Client) error {
		cmds := m.BeginCommandList()
		cmds.Clear()
		cmds.Add(uri)
		return cmds.End()
	})
}

// Watch reports changed subsystem names until ctx is cancelled. Each call
// opens its own idle connection.
func (c *Client) Watch(ctx context.Context, subsystems ...string) (<-chan string, error) {
	watcher, err := mpd.NewWatcher("tcp", c.addr(), c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ch := make(chan string, 10)
	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case subsystem, ok := <-watcher.Event:
				if !ok {
					return
				}
				select {
				case ch <- subsystem:
				default:
					// A refresh is already pending.
				}
			case err, ok := <-watcher.Error:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("MPD watcher error")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}
	}()

	return ch, nil
}
