package api

import (
	"time"

	"github.com/airchains-network/zk-coprocessor/state"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// handleWebSocket streams lifecycle events of all requests to the client.
// Incoming messages are ignored.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Errorf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	events, unsubscribe := s.tracker.Subscribe()
	s.log.Info("New WebSocket client connected")

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(conn, events, done)

	unsubscribe()
	conn.Close()
	s.log.Info("WebSocket client disconnected")
}

// readPump drains the connection so control frames are handled, and closes
// done when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Errorf("WebSocket read error: %v", err)
			}
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, events <-chan state.Event, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
