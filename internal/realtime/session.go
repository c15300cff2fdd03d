package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"battery-swap-backend/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Session is one connected socket and its bounded outbound buffer.
type Session struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	groups []string

	closeOnce sync.Once
}

func newSession(hub *Hub, conn *websocket.Conn, buffer int, groups ...string) *Session {
	return &Session{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, buffer),
		groups: groups,
	}
}

func (s *Session) trySend(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *Session) sendJSON(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("marshal socket reply")
		return
	}
	if !s.trySend(payload) {
		metrics.EventsDropped.WithLabelValues("session").Inc()
	}
}

// run greets the client, joins the session's groups and pumps messages
// until the connection closes.
func (s *Session) run(greeting any) {
	metrics.SocketSessions.Inc()
	s.open(greeting)

	go s.writePump()
	s.readPump()
}

// open queues the greeting before joining, so it is always the first frame.
func (s *Session) open(greeting any) {
	s.sendJSON(greeting)
	for _, g := range s.groups {
		s.hub.Join(g, s)
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.hub.Leave(s, s.groups...)
		close(s.send)
		metrics.SocketSessions.Dec()
	})
}

func (s *Session) readPump() {
	defer func() {
		s.close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Strs("groups", s.groups).Msg("socket closed")
			}
			return
		}
		s.sendJSON(reply(data))
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
