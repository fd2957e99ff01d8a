package websocket

import (
	"sync"

	"github.com/aerocall/backend/internal/metrics"
	"github.com/rs/zerolog"
)

// session is one live call's audience plus everything published to it so far
type session struct {
	clients map[*Client]bool
	history [][]byte
}

type envelope struct {
	sessionID string
	data      []byte
	final     bool
}

// Hub fans transcript messages out to the viewers of each live session
type Hub struct {
	// Sessions by ID
	sessions map[string]*session

	// Messages published by the caption replayers
	publish chan envelope

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex to protect sessions map
	mu sync.RWMutex

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions:   make(map[string]*session),
		publish:    make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    metrics.Get(),
		logger:     logger.With().Str("component", "transcript_hub").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			s, ok := h.sessions[client.sessionID]
			if !ok {
				// Session ended between the lookup and the upgrade
				h.mu.Unlock()
				close(client.send)
				continue
			}
			s.clients[client] = true
			for _, msg := range s.history {
				select {
				case client.send <- msg:
				default:
				}
			}
			h.mu.Unlock()
			h.metrics.RecordWebSocketConnect()
			h.logger.Info().
				Str("client_id", client.id).
				Str("session_id", client.sessionID).
				Int("session_clients", len(s.clients)).
				Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if s, ok := h.sessions[client.sessionID]; ok {
				if _, ok := s.clients[client]; ok {
					delete(s.clients, client)
					close(client.send)
					h.metrics.RecordWebSocketDisconnect()
					h.logger.Info().
						Str("client_id", client.id).
						Str("session_id", client.sessionID).
						Msg("client disconnected")
				}
			}
			h.mu.Unlock()

		case env := <-h.publish:
			h.deliver(env)
		}
	}
}

// OpenSession makes a session joinable. Opening an existing session is a no-op.
func (h *Hub) OpenSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		h.sessions[sessionID] = &session{clients: make(map[*Client]bool)}
	}
}

// HasSession reports whether sessionID is open
func (h *Hub) HasSession(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID]
	return ok
}

// Publish sends a message to every current and future viewer of the session
func (h *Hub) Publish(sessionID string, message []byte) {
	h.publish <- envelope{sessionID: sessionID, data: message}
}

// EndSession delivers a last message, disconnects all viewers and forgets the session
func (h *Hub) EndSession(sessionID string, message []byte) {
	h.publish <- envelope{sessionID: sessionID, data: message, final: true}
}

// ClientCount returns the number of connected clients across all sessions
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, s := range h.sessions {
		n += len(s.clients)
	}
	return n
}

// SessionClientCount returns the number of viewers of one session
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s, ok := h.sessions[sessionID]; ok {
		return len(s.clients)
	}
	return 0
}

func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[env.sessionID]
	if !ok {
		h.logger.Debug().Str("session_id", env.sessionID).Msg("dropping message for unknown session")
		return
	}

	if env.data != nil {
		s.history = append(s.history, env.data)
		for client := range s.clients {
			select {
			case client.send <- env.data:
				h.metrics.RecordWebSocketMessage()
			default:
				// Client's send buffer is full, close and remove it
				close(client.send)
				delete(s.clients, client)
				h.metrics.RecordWebSocketError()
				h.metrics.RecordWebSocketDisconnect()
				h.logger.Warn().
					Str("client_id", client.id).
					Msg("client send buffer full, closing connection")
			}
		}
	}

	if env.final {
		for client := range s.clients {
			close(client.send)
			h.metrics.RecordWebSocketDisconnect()
		}
		delete(h.sessions, env.sessionID)
		h.logger.Info().Str("session_id", env.sessionID).Msg("session ended")
	}
}
