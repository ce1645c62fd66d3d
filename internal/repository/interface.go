package repository

import (
	"context"
	"errors"
	"time"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrCounselorNotFound = errors.New("counselor not found")
	ErrRatingNotFound    = errors.New("rating not found")
	ErrDuplicateRating   = errors.New("session already rated")
)

// SessionRepository persists counseling sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// FindOpenByPair returns the pending or active session for the pair,
	// or ErrSessionNotFound.
	FindOpenByPair(ctx context.Context, userID, counselorID string) (*domain.Session, error)
	UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, resolvedAt *time.Time) error
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	ListByCounselor(ctx context.Context, counselorID string, statuses ...domain.SessionStatus) ([]*domain.Session, error)
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	// CreateWithSessionUpdate inserts the message and advances the session's
	// last-message fields and sequence high-water mark in one transaction.
	CreateWithSessionUpdate(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error)
	// MarkRead sets the read flag and timestamp once. It reports whether this
	// call performed the flip; a message already read leaves it untouched.
	MarkRead(ctx context.Context, id string, at time.Time) (bool, error)
}

// CounselorRepository persists counselor records and their counters.
type CounselorRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Counselor, error)
	GetByUserID(ctx context.Context, userID string) (*domain.Counselor, error)
	ListAvailable(ctx context.Context) ([]*domain.Counselor, error)
	// UpdateCounters writes absolute counter values. Callers serialize per
	// counselor, so a plain write is race-free.
	UpdateCounters(ctx context.Context, id string, activeSessions int, totalResolved int64) error
	UpdateRating(ctx context.Context, id string, average float64, count int64) error
}

// RatingRepository persists session ratings.
type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	GetBySession(ctx context.Context, sessionID string) (*domain.Rating, error)
	// AggregateForCounselor returns the mean and count over all ratings for
	// the counselor; a counselor with no ratings yields (0, 0).
	AggregateForCounselor(ctx context.Context, counselorID string) (average float64, count int64, err error)
}
