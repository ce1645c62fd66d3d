package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/registry"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/relay"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/response"
)

// ChatHandler serves the REST surface: session lifecycle, history, ratings
// and counselor discovery. Realtime traffic goes through WSHandler.
type ChatHandler struct {
	registry *registry.SessionRegistry
	relay    *relay.Relay
}

// NewChatHandler creates the REST handler.
func NewChatHandler(reg *registry.SessionRegistry, r *relay.Relay) *ChatHandler {
	return &ChatHandler{registry: reg, relay: r}
}

// RegisterRoutes mounts the authenticated API routes.
func (h *ChatHandler) RegisterRoutes(api *gin.RouterGroup) {
	chat := api.Group("/chat")
	{
		chat.POST("/sessions", h.CreateSession)
		chat.GET("/sessions", h.ListSessions)
		chat.GET("/sessions/:id/messages", h.ListMessages)
		chat.POST("/sessions/:id/rating", h.RateSession)
	}

	api.GET("/counselors", h.ListCounselors)
	api.GET("/counselors/:id", h.GetCounselor)

	counselor := api.Group("/counselor/sessions")
	{
		counselor.GET("/pending", h.PendingSessions)
		counselor.GET("/active", h.ActiveSessions)
		counselor.POST("/:id/accept", h.AcceptSession)
		counselor.POST("/:id/decline", h.DeclineSession)
		counselor.POST("/:id/resolve", h.ResolveSession)
	}
}

type createSessionRequest struct {
	CounselorID string `json:"counselor_id" binding:"required"`
}

// CreateSession opens a pending session with a counselor. If the pair already
// has an open session the existing one comes back with a 409.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	ident, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "identity missing")
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "counselor_id is required")
		return
	}

	session, err := h.registry.CreateSession(c.Request.Context(), ident, req.CounselorID)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) && session != nil {
			c.JSON(http.StatusConflict, response.Response{
				Success: false,
				Data:    session,
				Error: &response.ErrorInfo{
					Code:    domain.ErrCodeConflict,
					Message: "an open session with this counselor already exists",
				},
			})
			return
		}
		h.respondError(c, err)
		return
	}

	response.Created(c, session)
}

// ListSessions returns the caller's session history, user or counselor side.
func (h *ChatHandler) ListSessions(c *gin.Context) {
	ident, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "identity missing")
		return
	}

	sessions, err := h.registry.History(c.Request.Context(), ident)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, sessions)
}

// ListMessages returns a session's messages in sequence order.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	ident, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "identity missing")
		return
	}

	messages, err := h.relay.ListMessages(c.Request.Context(), ident, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, messages)
}

type rateSessionRequest struct {
	Value   int    `json:"value" binding:"required"`
	Comment string `json:"comment"`
}

// RateSession records the one permitted rating of a resolved session.
func (h *ChatHandler) RateSession(c *gin.Context) {
	ident, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "identity missing")
		return
	}

	var req rateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "value is required")
		return
	}

	rating, err := h.registry.Rate(c.Request.Context(), c.Param("id"), ident, req.Value, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, rating)
}

// ListCounselors returns counselors currently accepting sessions.
func (h *ChatHandler) ListCounselors(c *gin.Context) {
	counselors, err := h.registry.AvailableCounselors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, counselors)
}

// GetCounselor returns one counselor profile.
func (h *ChatHandler) GetCounselor(c *gin.Context) {
	counselor, err := h.registry.CounselorByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, counselor)
}

// PendingSessions returns the counselor's request queue, newest first.
func (h *ChatHandler) PendingSessions(c *gin.Context) {
	ident, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "identity missing")
		return
	}

	sessions, err := h.registry.PendingSessions(c.Request.Context(), ident)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, sessions)
}

// ActiveSessions returns the counselor's active sessions by last activity.
func (h *ChatHandler) ActiveSessions(c *gin.Context) {
	ident, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "identity missing")
		return
	}

	sessions, err := h.registry.ActiveSessions(c.Request.Context(), ident)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, sessions)
}

// AcceptSession transitions a pending session to active.
func (h *ChatHandler) AcceptSession(c *gin.Context) {
	h.transition(c, h.registry.Accept)
}

// DeclineSession transitions a pending session to declined.
func (h *ChatHandler) DeclineSession(c *gin.Context) {
	h.transition(c, h.registry.Decline)
}

// ResolveSession transitions an active session to resolved.
func (h *ChatHandler) ResolveSession(c *gin.Context) {
	h.transition(c, h.registry.Resolve)
}

func (h *ChatHandler) transition(
	c *gin.Context,
	op func(ctx context.Context, sessionID string, ident domain.Identity) (*domain.Session, error),
) {
	ident, ok := IdentityFrom(c)
	if !ok {
		response.Unauthorized(c, "identity missing")
		return
	}

	session, err := op(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		response.Unauthorized(c, "invalid or missing token")
	case errors.Is(err, domain.ErrAccessDenied):
		response.Forbidden(c, "not a participant of this session")
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, "resource not found")
	case errors.Is(err, domain.ErrConflict):
		response.Conflict(c, "conflicting request")
	case errors.Is(err, domain.ErrInvalidState):
		response.BadRequest(c, "session is not in a state that permits this operation")
	case errors.Is(err, domain.ErrValidation):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		response.BadRequest(c, "counselor is not available")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Str(log.FieldPath, c.FullPath()).Msg("request failed")
		response.InternalError(c, "internal error")
	}
}
