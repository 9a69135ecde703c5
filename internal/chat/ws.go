package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hackgods/emr-backend/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Handler serves the chat gateway over WebSocket.
type Handler struct {
	gw       *Gateway
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(gw *Gateway, log zerolog.Logger) *Handler {
	return &Handler{
		gw: gw,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "chat_ws").Logger(),
	}
}

// Serve upgrades the request and runs the session for participants a and b
// until either side closes. The credential is read only from the token
// field of the raw query string. A refused handshake is reported with a
// close frame after the upgrade.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, a, b uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	s, err := h.gw.Connect(ctx, a, b, auth.QueryToken(r.URL.RawQuery))
	if err != nil {
		var cerr *CloseError
		if !errors.As(err, &cerr) {
			cerr = ErrUnavailable
			h.log.Error().Err(err).Msg("chat handshake failed")
		}
		msg := websocket.FormatCloseMessage(cerr.Code, cerr.Reason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(conn, s)
	}()

	h.readPump(ctx, conn, s)

	// Closing the session ends writePump.
	h.gw.Disconnect(s)
	<-done
}

func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, s *Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Debug().Err(err).Str("session_id", s.ID.String()).Msg("chat read ended")
			}
			return
		}

		if err := h.gw.Receive(ctx, s, data); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-s.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				// Unblock readPump so the session is torn down.
				_ = conn.Close()
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
