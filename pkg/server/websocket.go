package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-go-golems/timmy/pkg/bridge"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 << 20
)

// handleWebsocket connects one panel. Inbound messages are dispatched concurrently, so a
// reset is handled while a completion is still running. Replies come back through the
// connection's hub topic and are written by a single writer.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	connectionID := uuid.NewString()
	logger := log.With().Str("connection_id", connectionID).Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("Panel connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound, err := s.hub.Subscribe(ctx, connectionID)
	if err != nil {
		logger.Error().Err(err).Msg("Could not subscribe panel")
		return
	}
	publisher := s.hub.Publisher(connectionID)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer cancel()
		writeOutbound(ctx, conn, outbound, logger)
		return nil
	})

	eg.Go(func() error {
		defer cancel()
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug().Err(err).Msg("Websocket read failed")
				}
				return nil
			}

			in, err := bridge.DecodeInbound(data)
			if err != nil {
				logger.Warn().Err(err).Msg("Invalid panel message")
				eg.Go(func() error {
					_ = publisher.Publish(ctx, bridge.ErrorMessage("Invalid message"))
					return nil
				})
				continue
			}

			eg.Go(func() error {
				if err := s.dispatcher.Handle(ctx, in, publisher); err != nil {
					logger.Warn().Err(err).Str("type", string(in.Type)).Msg("Could not deliver reply")
				}
				return nil
			})
		}
	})

	_ = eg.Wait()
	logger.Debug().Msg("Panel disconnected")
}

// panelConn is the write side of a panel websocket.
type panelConn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// writeOutbound is the only writer of a panel connection. It closes the connection when it
// returns, which unblocks the reader.
func writeOutbound(ctx context.Context, conn panelConn, outbound <-chan bridge.Outbound, logger zerolog.Logger) {
	defer func() {
		_ = conn.Close()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case out, ok := <-outbound:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(out); err != nil {
				logger.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug().Err(err).Msg("Websocket ping failed")
				return
			}
		}
	}
}
