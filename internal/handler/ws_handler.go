package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/auth"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/config"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/hub"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/relay"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/response"
)

// WSHandler upgrades websocket connections and dispatches their events to
// the relay. The token is verified before the upgrade; a rejected identity
// never gets a connection.
type WSHandler struct {
	verifier *auth.Verifier
	relay    *relay.Relay
	hub      *hub.Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates the websocket handler.
func NewWSHandler(verifier *auth.Verifier, r *relay.Relay, h *hub.Hub, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		verifier: verifier,
		relay:    r,
		hub:      h,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handle verifies the caller, upgrades the connection and starts its pumps.
func (h *WSHandler) Handle(c *gin.Context) {
	ident, err := h.verifier.Verify(c.Request.Context(), bearerToken(c))
	if err != nil {
		response.Unauthorized(c, "invalid or missing token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.NewString(), ident, h.hub, conn, h.cfg)

	logger := log.L().With().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldUserID, ident.UserID).
		Str(log.FieldRole, ident.Role).
		Logger()
	ctx := log.WithLogger(context.Background(), logger)

	h.relay.HandleConnect(ctx, client)

	go client.WritePump()
	go client.ReadPump(
		func(cl *hub.Client, raw []byte) { h.dispatch(ctx, cl, raw) },
		func(cl *hub.Client) { h.relay.HandleDisconnect(ctx, cl) },
	)
}

// dispatch routes one inbound event. Failures go back to the originating
// connection only, as an error event.
func (h *WSHandler) dispatch(ctx context.Context, client *hub.Client, raw []byte) {
	var base domain.BaseEvent
	if err := json.Unmarshal(raw, &base); err != nil {
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "malformed event"))
		return
	}

	switch base.Type {
	case domain.EventJoin:
		var ev domain.JoinEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.SessionID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "session_id is required"))
			return
		}
		h.reportError(client, h.relay.Join(ctx, client, ev.SessionID))

	case domain.EventLeave:
		var ev domain.LeaveEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.SessionID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "session_id is required"))
			return
		}
		h.reportError(client, h.relay.Leave(ctx, client, ev.SessionID))

	case domain.EventSend:
		var ev domain.SendEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.SessionID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "session_id is required"))
			return
		}
		_, err := h.relay.Send(ctx, client.Identity, ev.SessionID, ev.Content)
		h.reportError(client, err)

	case domain.EventTypingStart:
		var ev domain.TypingEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.SessionID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "session_id is required"))
			return
		}
		h.reportError(client, h.relay.Typing(ctx, client, ev.SessionID, true))

	case domain.EventTypingStop:
		var ev domain.TypingEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.SessionID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "session_id is required"))
			return
		}
		h.reportError(client, h.relay.Typing(ctx, client, ev.SessionID, false))

	case domain.EventMarkRead:
		var ev domain.MarkReadEvent
		if err := json.Unmarshal(raw, &ev); err != nil || ev.MessageID == "" || ev.SessionID == "" {
			client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "message_id and session_id are required"))
			return
		}
		h.reportError(client, h.relay.MarkRead(ctx, client.Identity, ev.MessageID, ev.SessionID))

	default:
		client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, "unknown event type"))
	}
}

// reportError converts a relay error to an error event for the origin
// connection. Nil is a no-op.
func (h *WSHandler) reportError(client *hub.Client, err error) {
	if err == nil {
		return
	}
	client.SendEvent(domain.NewErrorEvent(errorCode(err), errorMessage(err)))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		return domain.ErrCodeUnauthorized
	case errors.Is(err, domain.ErrAccessDenied):
		return domain.ErrCodeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrCodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return domain.ErrCodeConflict
	case errors.Is(err, domain.ErrInvalidState):
		return domain.ErrCodeInvalidState
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnavailable):
		return domain.ErrCodeBadRequest
	default:
		return domain.ErrCodeInternal
	}
}

func errorMessage(err error) string {
	if errorCode(err) == domain.ErrCodeInternal {
		l := log.L()
		l.Error().Err(err).Msg("websocket event failed")
		return "internal error"
	}
	return err.Error()
}
