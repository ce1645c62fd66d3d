// Package notifier routes out-of-band notices to a participant's personal
// channel. Delivery to an identity with no live connection is a no-op; the
// notice exists for whoever is listening right now.
package notifier

import (
	"context"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/hub"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
)

// previewLen caps the content excerpt carried in a notification.
const previewLen = 50

// Router emits notifications onto personal channels.
type Router struct {
	hub *hub.Hub
}

// NewRouter creates a notification router.
func NewRouter(h *hub.Hub) *Router {
	return &Router{hub: h}
}

// NotifyNewMessage tells an identity's personal channel about a message in
// one of their sessions.
func (r *Router) NotifyNewMessage(ctx context.Context, userID, sessionID, content string) {
	event := &domain.NotificationEvent{
		Type:             domain.EventNotification,
		NotificationType: domain.NotificationNewMessage,
		SessionID:        sessionID,
		Preview:          Preview(content),
	}

	if err := r.hub.Broadcast(hub.UserChannel(userID), event, ""); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to route notification")
	}
}

// Preview returns the first 50 characters of the content.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLen {
		return content
	}
	return string(runes[:previewLen])
}
