package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/tanya/internal/observability"
	"github.com/harun/tanya/pkg/runtime"
	"github.com/harun/tanya/pkg/trace"
)

// streamEvent is one trace event as delivered to stream clients.
type streamEvent struct {
	SessionID string      `json:"session_id"`
	Event     trace.Event `json:"event"`
}

type streamClient struct {
	id   string
	conn *websocket.Conn
	// sessionID filters the stream to one session; empty receives all.
	sessionID string

	writeMu sync.Mutex
}

func (c *streamClient) send(ev streamEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(ev)
}

// streamHub fans trace events out to connected websocket clients.
type streamHub struct {
	clients map[string]*streamClient
	mu      sync.RWMutex
	logger  zerolog.Logger
}

func newStreamHub(logger zerolog.Logger) *streamHub {
	return &streamHub{
		clients: make(map[string]*streamClient),
		logger:  logger,
	}
}

// attach subscribes the hub to the runtime's trace events.
func (h *streamHub) attach(rt *runtime.Runtime) {
	rt.SubscribeTrace(func(sessionID string, event trace.Event) {
		h.broadcast(streamEvent{SessionID: sessionID, Event: event})
	})
}

func (h *streamHub) broadcast(ev streamEvent) {
	h.mu.RLock()
	clients := make([]*streamClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if c.sessionID != "" && c.sessionID != ev.SessionID {
			continue
		}
		if err := c.send(ev); err != nil {
			h.logger.Debug().Str("client_id", c.id).Err(err).Msg("Dropping stream client")
			h.remove(c.id)
			c.conn.Close()
		}
	}
}

func (h *streamHub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	observability.SetStreamClients(count)
}

func (h *streamHub) remove(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	count := len(h.clients)
	h.mu.Unlock()

	observability.SetStreamClients(count)
}

func (h *streamHub) closeAll() {
	h.mu.Lock()
	for _, c := range h.clients {
		c.conn.Close()
	}
	h.clients = make(map[string]*streamClient)
	h.mu.Unlock()

	observability.SetStreamClients(0)
}

// handleTraceStream upgrades the connection and streams trace events for the
// requested session until the client disconnects.
func (s *Server) handleTraceStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	clientID, err := gonanoid.New()
	if err != nil {
		conn.Close()
		return
	}

	client := &streamClient{
		id:        clientID,
		conn:      conn,
		sessionID: sessionID,
	}
	s.stream.add(client)

	s.logger.Info().
		Str("client_id", clientID).
		Str("session_id", sessionID).
		Msg("Trace stream client connected")

	// Drain the connection; clients only listen, but reads surface the
	// close frame.
	go func() {
		defer func() {
			s.stream.remove(clientID)
			conn.Close()
			s.logger.Info().Str("client_id", clientID).Msg("Trace stream client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
