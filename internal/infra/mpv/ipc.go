// Package mpv drives an mpv process over its JSON IPC socket.
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	socketWaitRetries = 10
	socketWaitDelay   = 300 * time.Millisecond
	commandTimeout    = 2 * time.Second
	maxLineSize       = 1 << 20
)

// ErrClosed is returned for commands on a closed connection.
var ErrClosed = errors.New("mpv connection closed")

// Message is one line read from the socket: either a command reply
// (RequestID set) or an asynchronous event.
type Message struct {
	RequestID int64           `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Event     string          `json:"event,omitempty"`
	ID        int64           `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// Conn is a persistent IPC connection. Replies are matched to commands by
// request_id; everything else goes to the event handler.
type Conn struct {
	conn    net.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan Message
	handler func(Message)
	closed  chan struct{}
}

// Dial connects to the socket at path, retrying while mpv starts up.
func Dial(ctx context.Context, path string) (*Conn, error) {
	var lastErr error
	for i := 0; i < socketWaitRetries; i++ {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return NewConn(conn), nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(socketWaitDelay):
		}
	}
	return nil, fmt.Errorf("socket %s not ready after %d attempts: %w", path, socketWaitRetries, lastErr)
}

// NewConn wraps an established connection and starts reading from it.
func NewConn(conn net.Conn) *Conn {
	c := &Conn{
		conn:    conn,
		pending: make(map[int64]chan Message),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SetHandler installs the event callback. It runs on the read goroutine
// and must not issue commands.
func (c *Conn) SetHandler(fn func(Message)) {
	c.mu.Lock()
	c.handler = fn
	c.mu.Unlock()
}

// Done is closed once the connection is gone.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Command sends args and waits for the matching reply.
func (c *Conn) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	ch := make(chan Message, 1)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	c.writeMu.Lock()
	_, err = c.conn.Write(append(payload, '\n'))
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	select {
	case msg := <-ch:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv error: %s", msg.Error)
		}
		return msg.Data, nil
	case <-c.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("mpv %v: %w", args[0], ctx.Err())
	}
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) readLoop() {
	defer close(c.closed)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 4096), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			log.Debug().Err(err).Msg("Skipping unparseable mpv line")
			continue
		}

		c.mu.Lock()
		if msg.Event == "" && msg.RequestID != 0 {
			ch, ok := c.pending[msg.RequestID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		fn := c.handler
		c.mu.Unlock()
		if fn != nil && msg.Event != "" {
			fn(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("mpv socket read error")
	}
}
