package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// streamWriteWait bounds each frame write.
const streamWriteWait = 10 * time.Second

// streamHandler upgrades to a WebSocket and forwards session events as JSON
// frames until the client disconnects or the session closes.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Server.streamHandler: upgrade failed", "error", err, "sessionID", c.ID())
		return
	}
	defer conn.Close()

	events, unsubscribe := c.Subscribe()
	defer unsubscribe()
	slog.Info("Server.streamHandler: client connected", "sessionID", c.ID(), "remote", r.RemoteAddr)

	// The read loop only detects disconnection; clients send nothing.
	conn.SetReadDeadline(time.Time{})
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(map[string]interface{}{"type": "snapshot", "state": c.Snapshot()}); err != nil {
		slog.Warn("Server.streamHandler: failed to send snapshot", "error", err, "sessionID", c.ID())
		return
	}

	for {
		select {
		case <-gone:
			slog.Info("Server.streamHandler: client disconnected", "sessionID", c.ID())
			return
		case ev, open := <-events:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !open {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				slog.Warn("Server.streamHandler: write failed", "error", err, "sessionID", c.ID())
				return
			}
		}
	}
}
