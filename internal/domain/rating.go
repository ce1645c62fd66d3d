package domain

import "time"

// Rating is the one permitted rating of a resolved session.
type Rating struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	CounselorID string    `json:"counselor_id"`
	Value       int       `json:"value"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
