package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examkb/internal/model"
	"github.com/stemsi/examkb/internal/response"
	"github.com/stemsi/examkb/internal/service"
	ws "github.com/stemsi/examkb/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ProgressSource provides import state and the live progress channel.
type ProgressSource interface {
	Status(ctx context.Context, importID string) (*model.ImportState, error)
	SubscribeProgress(ctx context.Context, importID string) *redis.PubSub
}

// WSHandler streams import progress over WebSocket.
type WSHandler struct {
	source   ProgressSource
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(source ProgressSource, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		source:   source,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ImportProgressStream godoc
// WS /ws/v1/imports/:id/progress?token=
// Sends the current state, then every progress event until the batch ends.
func (h *WSHandler) ImportProgressStream(c *gin.Context) {
	importID := c.Param("id")
	if _, err := uuid.Parse(importID); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	if _, err := h.source.Status(ctx, importID); err != nil {
		if errors.Is(err, service.ErrImportNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrImportNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("import_id", importID).Logger()

	// Subscribe before reading the snapshot so no event falls in between.
	pubsub := h.source.SubscribeProgress(ctx, importID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Progress subscribe failed")
		ws.WriteError(conn, "progress unavailable")
		return
	}

	st, err := h.source.Status(ctx, importID)
	if err != nil {
		ws.WriteError(conn, "import state unavailable")
		return
	}
	if err := ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: st}); err != nil {
		return
	}
	if isTerminal(st.Status) {
		closeNormal(conn)
		return
	}

	wsLog.Info().Msg("Progress client connected")
	h.stream(ctx, conn, pubsub, importID, wsLog)
}

func (h *WSHandler) stream(ctx context.Context, conn *websocket.Conn, pubsub *redis.PubSub, importID string, wsLog zerolog.Logger) {
	// Only this goroutine writes to conn; the reader hands replies over.
	replies := make(chan interface{}, 4)
	readerDone := make(chan struct{})

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	})

	go func() {
		defer close(readerDone)
		for {
			var env ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &env); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}

			var reply interface{} = ws.PongResponse{Event: ws.EventPong}
			if env.Action != ws.ActionPing {
				reply = ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(env.Action)}
			}
			select {
			case replies <- reply:
			default:
			}
		}
	}()

	ticker := time.NewTicker(ws.PingPeriod)
	defer ticker.Stop()
	msgs := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			wsLog.Debug().Msg("Connection closed")
			return
		case reply := <-replies:
			if err := ws.WriteTyped(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev model.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed progress event")
				continue
			}
			if err := ws.WriteTyped(conn, ws.ProgressResponse{Event: ws.EventProgress, Progress: ev}); err != nil {
				return
			}
			if ev.Type == model.ProgressBatchFinished {
				h.sendFinalState(ctx, conn, importID)
				closeNormal(conn)
				return
			}
		}
	}
}

// sendFinalState waits briefly for the worker to record the terminal state
// that follows the batch_finished event.
func (h *WSHandler) sendFinalState(ctx context.Context, conn *websocket.Conn, importID string) {
	for attempt := 0; attempt < 10; attempt++ {
		st, err := h.source.Status(ctx, importID)
		if err == nil && isTerminal(st.Status) {
			ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: st})
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func isTerminal(s model.ImportStatus) bool {
	return s == model.ImportStatusCompleted || s == model.ImportStatusFailed
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "import finished")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
