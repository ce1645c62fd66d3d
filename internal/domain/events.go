package domain

// WebSocket event types from client.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSend        = "send"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventMarkRead    = "mark_read"
)

// WebSocket event types to client.
const (
	EventJoined       = "joined"
	EventLeft         = "left"
	EventNewMessage   = "new_message"
	EventUserTyping   = "user_typing"
	EventMessageRead  = "message_read"
	EventNotification = "notification"
	EventUserOnline   = "user_online"
	EventUserOffline  = "user_offline"
	EventError        = "error"
)

// Notification types.
const (
	NotificationNewMessage = "new_message"
)

// Error codes sent on the error event.
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInvalidState = "INVALID_STATE"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// BaseEvent carries the type discriminator of every inbound event.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type JoinEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type LeaveEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type SendEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

type TypingEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type MarkReadEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
}

// Server -> Client events

type JoinedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type LeftEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type NewMessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

type UserTypingEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	IsTyping  bool   `json:"is_typing"`
}

type MessageReadEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
}

type NotificationEvent struct {
	Type             string `json:"type"`
	NotificationType string `json:"notification_type"`
	SessionID        string `json:"session_id"`
	Preview          string `json:"preview"`
}

type PresenceEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent builds an error event for the originating connection.
func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		Type:    EventError,
		Code:    code,
		Message: message,
	}
}
