package publisher

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	rmm "github.com/vpscope/vpsagent/shared"
)

const writeWait = 10 * time.Second

// WSSink writes events as JSON text frames. Several sessions may share one
// connection so writes are serialized.
type WSSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn}
}

func (s *WSSink) Deliver(ev rmm.OutputEvent) error {
	return s.WriteJSON(ev.Wire())
}

// WriteJSON writes any value under the connection's write lock
func (s *WSSink) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Ping keeps the connection alive
func (s *WSSink) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}
