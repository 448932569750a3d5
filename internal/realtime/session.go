package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Envelope is the wire shape of every outbound realtime event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WSSession wraps a websocket connection with a write mutex so broadcasts
// from concurrent handlers never interleave frames.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSSession(conn *websocket.Conn) *WSSession {
	return &WSSession{conn: conn}
}

func (s *WSSession) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(Envelope{Event: event, Data: payload})
}

func (s *WSSession) Close() error {
	return s.conn.Close()
}
