package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/colorbar-timeseries/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	streamReadLimit = 64 << 10
	streamWriteWait = 10 * time.Second
)

// streamMessage is one server-to-client frame on the progress stream.
type streamMessage struct {
	Type      string                   `json:"type"`
	Progress  float64                  `json:"progress,omitempty"`
	Result    *domain.TimeSeriesResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Cancelled bool                     `json:"cancelled,omitempty"`
}

// handleStream runs one generation per connection. The client sends a
// TimeSeriesRequest as its first message; the server replies with progress
// frames and then a single result or error frame. Closing the connection
// aborts the generation.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(streamReadLimit)

	var req domain.TimeSeriesRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Debug("stream request unreadable", "error", err)
		s.send(conn, streamMessage{Type: "error", Error: "invalid request: " + err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("stream client gone", "error", err)
				}
				cancel()
				return
			}
		}
	}()

	result, err := s.svc.Generate(ctx, req, func(p float64) {
		s.send(conn, streamMessage{Type: "progress", Progress: p})
	})
	if err != nil {
		s.send(conn, streamMessage{Type: "error", Error: err.Error(), Cancelled: errors.Is(err, domain.ErrCancelled)})
		return
	}
	s.publish(ctx, result)
	s.send(conn, streamMessage{Type: "result", Result: result})

	deadline := time.Now().Add(streamWriteWait)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// send writes one frame. Only the generating goroutine writes.
func (s *Server) send(conn *websocket.Conn, msg streamMessage) {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("stream write failed", "type", msg.Type, "error", err)
	}
}
