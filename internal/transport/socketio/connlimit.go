package socketio

import (
	"net"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// ConnectionLimiter caps concurrent remote controllers. Loopback clients
// (a UI on the playback box itself) are never limited; when a new external
// client exceeds the cap, the oldest external client is evicted.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// external holds remote client IDs, oldest first.
	external []string
	// remotes maps every tracked client to its address.
	remotes map[string]string
}

// NewConnectionLimiter allows up to maxExternal concurrent remote clients.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal: maxExternal,
		remotes:     make(map[string]string),
	}
}

// TryAdd registers a client and reports the ID it displaced, if any. Every
// connection is allowed; the cap is enforced by eviction.
func (cl *ConnectionLimiter) TryAdd(clientID, ip string) (allowed bool, evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.remotes[clientID]; ok {
		return true, ""
	}
	cl.remotes[clientID] = ip
	if isLocalIP(ip) {
		return true, ""
	}

	cl.external = append(cl.external, clientID)
	if len(cl.external) <= cl.maxExternal {
		return true, ""
	}
	evictedID, cl.external = cl.external[0], cl.external[1:]
	delete(cl.remotes, evictedID)
	return true, evictedID
}

// Remove forgets a disconnected client.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.remotes[clientID]; !ok {
		return
	}
	delete(cl.remotes, clientID)
	cl.external = lo.Without(cl.external, clientID)
}

// External returns the number of tracked remote clients.
func (cl *ConnectionLimiter) External() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.external)
}

// remoteIP strips the port and IPv4-mapped prefix from a socket address.
func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return strings.TrimPrefix(addr, "::ffff:")
}

func isLocalIP(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
