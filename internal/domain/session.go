package domain

import "time"

// SessionStatus is the lifecycle state of a counseling session.
type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusActive   SessionStatus = "active"
	StatusResolved SessionStatus = "resolved"
	StatusDeclined SessionStatus = "declined"
)

// Open reports whether the status still admits transitions or messages.
// Resolved and declined are terminal.
func (s SessionStatus) Open() bool {
	return s == StatusPending || s == StatusActive
}

// Session is one counseling engagement between a user and a counselor.
// LastSeq is the per-session sequence high-water mark; message ordering
// follows (session, seq), not wall-clock.
type Session struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	CounselorID   string        `json:"counselor_id"`
	Status        SessionStatus `json:"status"`
	LastMessageID string        `json:"last_message_id,omitempty"`
	LastMessageAt *time.Time    `json:"last_message_at,omitempty"`
	LastSeq       int64         `json:"-"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
