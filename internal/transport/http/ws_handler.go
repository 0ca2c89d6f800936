package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cospace/cospace-server/internal/auth"
	"github.com/cospace/cospace-server/internal/core"
	"github.com/cospace/cospace-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to the engine.
type WSHandler struct {
	engine *core.Engine
	jwtCfg *auth.Config
	log    *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(engine *core.Engine, jwtCfg *auth.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{engine: engine, jwtCfg: jwtCfg, log: logger}
}

// Handle authenticates the handshake, registers the connection, and
// runs the read/write loops until either side closes.
func (h *WSHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	token := bearerToken(c.Request)
	if token == "" {
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "missing bearer token"})
		return
	}
	claims, err := auth.ValidateToken(h.jwtCfg, token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake rejected")
		c.JSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.New(), claims.UserID, claims.DisplayName)
	if cerr := h.engine.Connect(ctx, client); cerr != nil {
		_ = wsjson.Write(ctx, conn, errorOutbound(cerr))
		conn.Close(websocket.StatusPolicyViolation, cerr.Message)
		return
	}
	defer h.engine.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if cerr := dispatch(ctx, h.engine, client, inbound); cerr != nil {
			h.log.Debug().
				Str("conn_id", client.ID.String()).
				Str("type", inbound.Type).
				Str("code", cerr.Code).
				Msg("inbound rejected")
			// Route through the event channel: the write loop is the
			// only writer on the connection.
			client.TrySend(core.NewErrorEvent(cerr))
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID.String()).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
