// Package socketio provides the Socket.io server for client communication.
package socketio

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/streamly-backend/internal/domain/background"
	"github.com/edumarques81/streamly-backend/internal/domain/controller"
	"github.com/edumarques81/streamly-backend/internal/domain/device"
	"github.com/edumarques81/streamly-backend/internal/domain/library"
	"github.com/edumarques81/streamly-backend/internal/domain/prefs"
	"github.com/edumarques81/streamly-backend/internal/domain/recent"
	"github.com/edumarques81/streamly-backend/internal/domain/search"
	"github.com/edumarques81/streamly-backend/internal/domain/status"
	"github.com/edumarques81/streamly-backend/internal/loop"
)

const (
	// DefaultMaxExternalClients caps remote controllers.
	DefaultMaxExternalClients = 4
	// broadcastWindow collapses bursts of library and recent changes.
	broadcastWindow = 500 * time.Millisecond
)

// Deps wires the server to the domain. The controller is attached with
// SetController because it renders into the server.
type Deps struct {
	Runner             loop.Runner
	Pool               Submitter
	Background         *background.Service
	Device             *device.Service
	Library            *library.Loader
	Search             *search.Manager
	Recent             *recent.Service
	Prefs              *prefs.Store
	Bus                status.Subscriber
	MaxExternalClients int
}

// Submitter runs blocking work off the loop.
type Submitter interface {
	Submit(job func()) error
}

// replyFunc sends an event to the requesting client.
type replyFunc func(event string, data interface{})

// handlerFunc handles one inbound event with its decoded payload.
type handlerFunc func(reply replyFunc, m map[string]interface{})

// Server handles Socket.io connections and events.
type Server struct {
	io        *socket.Server
	deps      Deps
	limiter   *ConnectionLimiter
	debouncer *BroadcastDebouncer
	handlers  map[string]handlerFunc

	// emit broadcasts to every client.
	emit func(event string, data interface{})

	// ctrl is owned by the loop.
	ctrl *controller.Controller

	mu          sync.RWMutex
	clients     map[string]*socket.Socket
	unsubscribe func()
}

// NewServer creates a new Socket.io server.
func NewServer(deps Deps) (*Server, error) {
	opts := socket.DefaultServerOptions()
	opts.SetPingTimeout(20 * time.Second)
	opts.SetPingInterval(25 * time.Second)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	io := socket.NewServer(nil, opts)
	s := newServer(deps)
	s.io = io
	s.emit = func(event string, data interface{}) {
		io.Emit(event, data)
	}

	s.setupHandlers()
	return s, nil
}

// newServer builds everything except the socket.io engine.
func newServer(deps Deps) *Server {
	if deps.MaxExternalClients <= 0 {
		deps.MaxExternalClients = DefaultMaxExternalClients
	}
	s := &Server{
		deps:    deps,
		limiter: NewConnectionLimiter(deps.MaxExternalClients),
		clients: make(map[string]*socket.Socket),
		emit:    func(string, interface{}) {},
	}
	s.debouncer = NewBroadcastDebouncer(broadcastWindow, map[Topic]func(){
		TopicLibrary: s.BroadcastLibrary,
		TopicRecent:  s.BroadcastRecent,
		TopicPrefs:   s.BroadcastPrefs,
	})
	s.handlers = s.buildHandlers()
	if deps.Bus != nil {
		s.unsubscribe = deps.Bus.Subscribe(s.onStatus)
	}
	return s
}

func (s *Server) buildHandlers() map[string]handlerFunc {
	h := make(map[string]handlerFunc)
	s.playerHandlers(h)
	s.libraryHandlers(h)
	s.searchHandlers(h)
	s.recentHandlers(h)
	s.prefsHandlers(h)
	s.deviceHandlers(h)
	return h
}

// SetController attaches the player screen. Call it on the loop.
func (s *Server) SetController(c *controller.Controller) {
	s.ctrl = c
}

// SetBackground attaches the background service, which notifies through the
// server. Call it before serving.
func (s *Server) SetBackground(svc *background.Service) {
	s.deps.Background = svc
}

// Changed schedules a debounced broadcast for topic.
func (s *Server) Changed(topic Topic) {
	s.debouncer.Trigger(topic)
}

// setupHandlers registers the connection handler.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		ip := remoteIP(client.Handshake().Address)

		allowed, evicted := s.limiter.TryAdd(clientID, ip)
		if !allowed {
			client.Disconnect(true)
			return
		}
		if evicted != "" {
			s.evict(evicted)
		}

		log.Info().Str("id", clientID).Str("ip", ip).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		reply := func(event string, data interface{}) {
			client.Emit(event, data)
		}
		for event, handler := range s.handlers {
			event, handler := event, handler
			client.On(event, func(args ...any) {
				log.Debug().Str("id", clientID).Str("event", event).Msg("Client event")
				handler(reply, payload(args))
			})
		}

		s.welcome(reply)
	})
}

// welcome sends the initial snapshot to a new client.
func (s *Server) welcome(reply replyFunc) {
	for _, event := range []string{"getState", "device:get", "prefs:get", "library:list", "recent:list"} {
		s.handlers[event](reply, map[string]interface{}{})
	}
	if s.deps.Background != nil {
		s.post(func() {
			n := s.deps.Background.Notification()
			if n.ItemID != "" {
				reply("pushNotification", n.ToJSON())
			}
		})
	}
}

func (s *Server) evict(clientID string) {
	s.mu.Lock()
	client, ok := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()
	if !ok {
		return
	}
	log.Info().Str("id", clientID).Msg("Evicting oldest external client")
	client.Emit("pushNotice", map[string]interface{}{"message": "Disconnected: too many remote clients"})
	client.Disconnect(true)
}

// post runs fn on the loop.
func (s *Server) post(fn func()) {
	s.deps.Runner.Post(fn)
}

// background runs job on the pool. Jobs may reply directly; anything that
// touches the controller must go through post.
func (s *Server) background(job func()) {
	if err := s.deps.Pool.Submit(job); err != nil {
		log.Warn().Err(err).Msg("Could not schedule request")
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close stops broadcasts and closes the Socket.io server.
func (s *Server) Close() error {
	s.debouncer.Stop()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.io != nil {
		s.io.Close(nil)
	}
	return nil
}
