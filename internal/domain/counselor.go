package domain

import "time"

// Counselor is a counselor profile with its capacity counters and rating
// aggregate. ActiveSessions never drops below zero; RatingAverage is the mean
// of all ratings for the counselor rounded to one decimal place.
type Counselor struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Specialization string    `json:"specialization"`
	Bio            string    `json:"bio"`
	IsAvailable    bool      `json:"is_available"`
	ActiveSessions int       `json:"active_sessions"`
	TotalResolved  int64     `json:"total_resolved"`
	RatingAverage  float64   `json:"rating_average"`
	RatingCount    int64     `json:"rating_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
