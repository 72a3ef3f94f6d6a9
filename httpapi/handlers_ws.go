package httpapi

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/gatekit/gatekit/broadcast"
)

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.broadcaster.Publish(r.Context(), []byte(req.Message)); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "queued"})
}

// handleWebSocket upgrades the connection and joins it to the broadcast
// fan-out. Messages read from the socket are published to the bus;
// messages relayed by the broadcaster are written back out. Either
// direction failing tears the whole connection down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	client := broadcast.NewClient(uuid.NewString(), 64)
	if err := s.broadcaster.Connect(client); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "server full")
		return
	}
	defer s.broadcaster.Disconnect(client.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Write pump.
	go func() {
		for {
			select {
			case payload := <-client.Send:
				if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
					cancel()
					return
				}
			case <-client.Done():
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	// Read loop: inbound frames fan out through Redis so every server
	// instance sees them, not just this one.
	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if err := s.broadcaster.Publish(ctx, payload); err != nil {
			s.log.Warn("publish from websocket failed", "client", client.ID, "err", err)
			return
		}
	}
}
