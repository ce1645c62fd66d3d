package domain

import "time"

// Message is one chat utterance. Immutable after creation except for the
// read flag, which flips at most once.
type Message struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content"`
	Seq       int64      `json:"seq"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
