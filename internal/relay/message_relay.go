package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/access"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/hub"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/notifier"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/presence"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/registry"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/repository"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/stream"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
)

// Relay creates, orders and fans out messages within sessions, and handles
// the connection-scoped events around them (join/leave, typing, presence).
//
// Sends take the same per-session lock the registry uses for status
// transitions, so a Send can never interleave with a Resolve, and two Sends
// can never draw the same sequence number.
type Relay struct {
	sessions   repository.SessionRepository
	messages   repository.MessageRepository
	counselors repository.CounselorRepository
	hub        *hub.Hub
	notifier   *notifier.Router
	producer   stream.MessageProducer
	presence   presence.Store
	locks      *registry.KeyedMutex
	refresh    time.Duration
}

// New creates a message relay. locks must be the registry's session lock
// table so both components serialize on the same session ids.
func New(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	counselors repository.CounselorRepository,
	h *hub.Hub,
	router *notifier.Router,
	producer stream.MessageProducer,
	store presence.Store,
	locks *registry.KeyedMutex,
	refreshInterval time.Duration,
) *Relay {
	return &Relay{
		sessions:   sessions,
		messages:   messages,
		counselors: counselors,
		hub:        h,
		notifier:   router,
		producer:   producer,
		presence:   store,
		locks:      locks,
		refresh:    refreshInterval,
	}
}

// Send validates, persists and delivers one message. Delivery order follows
// the per-session sequence number assigned under the session lock.
func (r *Relay) Send(ctx context.Context, ident domain.Identity, sessionID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrValidation)
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()

	session, err := r.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(ident, session); err != nil {
		return nil, err
	}
	if session.Status != domain.StatusActive {
		return nil, domain.ErrInvalidState
	}

	msg := &domain.Message{
		SessionID: sessionID,
		SenderID:  ident.UserID,
		Content:   content,
		Seq:       session.LastSeq + 1,
	}
	if err := r.messages.CreateWithSessionUpdate(ctx, msg); err != nil {
		return nil, err
	}

	// Fan out to everyone joined to the session channel, sender included,
	// while still holding the session lock so delivery order matches seq.
	event := &domain.NewMessageEvent{Type: domain.EventNewMessage, Message: msg}
	if err := r.hub.Broadcast(hub.SessionChannel(sessionID), event, ""); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to broadcast message")
	}

	if counterpart, err := r.counterpart(ctx, ident, session); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to resolve counterpart")
	} else {
		r.notifier.NotifyNewMessage(ctx, counterpart, sessionID, msg.Content)
	}

	if err := r.producer.ProduceMessage(ctx, msg); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to publish message to stream")
	}

	return msg, nil
}

// MarkRead flips a message's read flag once and announces it on the session
// channel. Repeat calls and calls by the sender are no-ops.
func (r *Relay) MarkRead(ctx context.Context, ident domain.Identity, messageID, sessionID string) error {
	msg, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	if msg.SessionID != sessionID {
		return domain.ErrNotFound
	}

	session, err := r.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := access.Check(ident, session); err != nil {
		return err
	}

	if msg.SenderID == ident.UserID || msg.IsRead {
		return nil
	}

	flipped, err := r.messages.MarkRead(ctx, messageID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !flipped {
		// Lost the race with another reader; the receipt is already out.
		return nil
	}

	event := &domain.MessageReadEvent{
		Type:      domain.EventMessageRead,
		MessageID: messageID,
		SessionID: sessionID,
	}
	return r.hub.Broadcast(hub.SessionChannel(sessionID), event, "")
}

// Join subscribes a connection to a session channel after the access check.
func (r *Relay) Join(ctx context.Context, client *hub.Client, sessionID string) error {
	session, err := r.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := access.Check(client.Identity, session); err != nil {
		return err
	}

	r.hub.JoinChannel(client, hub.SessionChannel(sessionID))
	return client.SendEvent(&domain.JoinedEvent{Type: domain.EventJoined, SessionID: sessionID})
}

// Leave unsubscribes a connection from a session channel and clears any open
// typing indicator there.
func (r *Relay) Leave(ctx context.Context, client *hub.Client, sessionID string) error {
	r.stopTyping(ctx, client, sessionID)
	r.hub.LeaveChannel(client, hub.SessionChannel(sessionID))
	return client.SendEvent(&domain.LeftEvent{Type: domain.EventLeft, SessionID: sessionID})
}

// Typing relays an ephemeral typing indicator to the session's other members.
// Nothing is persisted.
func (r *Relay) Typing(ctx context.Context, client *hub.Client, sessionID string, typing bool) error {
	channel := hub.SessionChannel(sessionID)
	if !r.hub.InChannel(client, channel) {
		return domain.ErrAccessDenied
	}

	client.SetTyping(sessionID, typing)
	event := &domain.UserTypingEvent{
		Type:      domain.EventUserTyping,
		UserID:    client.Identity.UserID,
		SessionID: sessionID,
		IsTyping:  typing,
	}
	return r.hub.Broadcast(channel, event, client.ID)
}

// HandleConnect registers a verified connection: personal channel, counselor
// channel when applicable, presence mirror, and the online broadcast.
func (r *Relay) HandleConnect(ctx context.Context, client *hub.Client) {
	replaced := r.hub.Register(client)
	for _, prev := range replaced {
		l := log.Ctx(ctx)
		l.Info().
			Str(log.FieldClientID, prev.ID).
			Str(log.FieldUserID, prev.Identity.UserID).
			Msg("replaced previous connection for identity")
	}

	r.hub.JoinChannel(client, hub.UserChannel(client.Identity.UserID))
	if client.Identity.IsCounselor() {
		r.hub.JoinChannel(client, hub.CounselorChannel(client.Identity.CounselorID))
	}

	if err := r.presence.SetOnline(ctx, client.Identity.UserID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, client.Identity.UserID).Msg("failed to mirror presence online")
	}

	event := &domain.PresenceEvent{Type: domain.EventUserOnline, UserID: client.Identity.UserID}
	if err := r.hub.BroadcastToAll(event, client.Identity.UserID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to broadcast online status")
	}
}

// HandleDisconnect releases a connection: implicit typing stops, channel and
// identity cleanup, and the offline broadcast when it was the identity's last
// connection.
func (r *Relay) HandleDisconnect(ctx context.Context, client *hub.Client) {
	for _, sessionID := range client.DrainTyping() {
		event := &domain.UserTypingEvent{
			Type:      domain.EventUserTyping,
			UserID:    client.Identity.UserID,
			SessionID: sessionID,
			IsTyping:  false,
		}
		if err := r.hub.Broadcast(hub.SessionChannel(sessionID), event, client.ID); err != nil {
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to broadcast implicit typing stop")
		}
	}

	last := r.hub.Unregister(client)
	if !last {
		return
	}

	if err := r.presence.SetOffline(ctx, client.Identity.UserID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldUserID, client.Identity.UserID).Msg("failed to mirror presence offline")
	}

	event := &domain.PresenceEvent{Type: domain.EventUserOffline, UserID: client.Identity.UserID}
	if err := r.hub.BroadcastToAll(event, client.Identity.UserID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to broadcast offline status")
	}
}

// ListMessages returns a session's messages in sequence order after the
// access check. Serves the history endpoint.
func (r *Relay) ListMessages(ctx context.Context, ident domain.Identity, sessionID string) ([]*domain.Message, error) {
	session, err := r.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := access.Check(ident, session); err != nil {
		return nil, err
	}
	return r.messages.ListBySession(ctx, sessionID)
}

// RunPresenceRefresh keeps the presence mirror's TTL keys alive for
// identities connected to this instance. Blocks until ctx is done.
func (r *Relay) RunPresenceRefresh(ctx context.Context) {
	if r.refresh <= 0 {
		return
	}
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range r.hub.OnlineUsers() {
				if err := r.presence.Refresh(ctx, userID); err != nil {
					l := log.L()
					l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to refresh presence key")
				}
			}
		}
	}
}

func (r *Relay) stopTyping(ctx context.Context, client *hub.Client, sessionID string) {
	client.SetTyping(sessionID, false)
	event := &domain.UserTypingEvent{
		Type:      domain.EventUserTyping,
		UserID:    client.Identity.UserID,
		SessionID: sessionID,
		IsTyping:  false,
	}
	if err := r.hub.Broadcast(hub.SessionChannel(sessionID), event, client.ID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("failed to broadcast typing stop")
	}
}

// counterpart resolves the session's other party as a user identity.
func (r *Relay) counterpart(ctx context.Context, sender domain.Identity, session *domain.Session) (string, error) {
	if sender.IsCounselor() {
		return session.UserID, nil
	}
	counselor, err := r.counselors.GetByID(ctx, session.CounselorID)
	if err != nil {
		return "", err
	}
	return counselor.UserID, nil
}

func (r *Relay) loadSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}
