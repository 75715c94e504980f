package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/raysh454/veritas/internal/logging"
)

// handleSessionWS streams state snapshots: the current one on connect, then
// every change until the client disconnects or the session is removed.
//
// @Summary Stream session state snapshots over WebSocket
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 101
// @Failure 404 {object} ErrorResponse
// @Router /ws/sessions/{id} [get]
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	updates, stop := sess.Subscribe()
	defer stop()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Field{Key: "error", Value: err})
		return
	}
	defer conn.Close()

	log := s.logger.With(logging.Field{Key: "session_id", Value: sess.ID()})
	log.Debug("websocket connected")

	// Initial snapshot
	if err := conn.WriteJSON(s.response(sess.Snapshot())); err != nil {
		return
	}

	// Client messages are ignored; reading surfaces the close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				log.Debug("websocket closed by session removal")
				return
			}
			if err := conn.WriteJSON(s.response(st)); err != nil {
				log.Debug("websocket write failed", logging.Field{Key: "error", Value: err})
				return
			}
		case <-gone:
			log.Debug("websocket disconnected")
			return
		}
	}
}
