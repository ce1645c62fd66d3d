package registry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/audit"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/repository"
	"github.com/MahmoudZenbarakji/RealTime-ChatApp/pkg/log"
)

// SessionRegistry owns the session state machine and the counselor capacity
// counters. It is the single writer of session status: every transition runs
// under the session's lock, and counter or rating updates run under the
// counselor's lock. Lock order is always session before counselor.
type SessionRegistry struct {
	sessions   repository.SessionRepository
	counselors repository.CounselorRepository
	ratings    repository.RatingRepository

	sessionLocks   *KeyedMutex
	counselorLocks *KeyedMutex
}

// New creates a session registry.
func New(
	sessions repository.SessionRepository,
	counselors repository.CounselorRepository,
	ratings repository.RatingRepository,
) *SessionRegistry {
	return &SessionRegistry{
		sessions:       sessions,
		counselors:     counselors,
		ratings:        ratings,
		sessionLocks:   NewKeyedMutex(),
		counselorLocks: NewKeyedMutex(),
	}
}

// SessionLocks exposes the session lock table so the message relay serializes
// sends against status transitions on the same session.
func (r *SessionRegistry) SessionLocks() *KeyedMutex {
	return r.sessionLocks
}

func pairKey(userID, counselorID string) string {
	return fmt.Sprintf("pair:%s:%s", userID, counselorID)
}

// CreateSession opens a pending session between the caller and a counselor.
// It fails with ErrUnavailable if the counselor is not accepting sessions and
// with ErrConflict (returning the existing session) if the pair already has a
// pending or active one.
func (r *SessionRegistry) CreateSession(ctx context.Context, ident domain.Identity, counselorID string) (*domain.Session, error) {
	if ident.Role != domain.RoleUser {
		return nil, domain.ErrAccessDenied
	}

	counselor, err := r.counselors.GetByID(ctx, counselorID)
	if err != nil {
		if errors.Is(err, repository.ErrCounselorNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if !counselor.IsAvailable {
		return nil, domain.ErrUnavailable
	}

	// Serialize per pair so two concurrent requests cannot both pass the
	// duplicate check.
	unlock := r.sessionLocks.Lock(pairKey(ident.UserID, counselorID))
	defer unlock()

	existing, err := r.sessions.FindOpenByPair(ctx, ident.UserID, counselorID)
	if err == nil {
		return existing, domain.ErrConflict
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, err
	}

	session := &domain.Session{
		UserID:      ident.UserID,
		CounselorID: counselorID,
		Status:      domain.StatusPending,
	}
	if err := r.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionSessionRequested, ident.UserID, session.ID, "session requested")
	return session, nil
}

// Accept transitions a pending session to active and bumps the counselor's
// active count.
func (r *SessionRegistry) Accept(ctx context.Context, sessionID string, ident domain.Identity) (*domain.Session, error) {
	session, err := r.transition(ctx, sessionID, ident, domain.StatusPending, domain.StatusActive, nil)
	if err != nil {
		return nil, err
	}

	if err := r.adjustCounters(ctx, session.CounselorID, +1, 0); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldCounselorID, session.CounselorID).Msg("failed to bump active session count")
	}

	audit.Log(ctx, audit.ActionSessionAccepted, ident.UserID, session.ID, "session accepted")
	return session, nil
}

// Decline transitions a pending session to declined. Terminal.
func (r *SessionRegistry) Decline(ctx context.Context, sessionID string, ident domain.Identity) (*domain.Session, error) {
	session, err := r.transition(ctx, sessionID, ident, domain.StatusPending, domain.StatusDeclined, nil)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionSessionDeclined, ident.UserID, session.ID, "session declined")
	return session, nil
}

// Resolve transitions an active session to resolved, stamps the resolved
// time, and moves one unit of the counselor's capacity from active to total.
func (r *SessionRegistry) Resolve(ctx context.Context, sessionID string, ident domain.Identity) (*domain.Session, error) {
	now := time.Now().UTC()
	session, err := r.transition(ctx, sessionID, ident, domain.StatusActive, domain.StatusResolved, &now)
	if err != nil {
		return nil, err
	}

	if err := r.adjustCounters(ctx, session.CounselorID, -1, +1); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldCounselorID, session.CounselorID).Msg("failed to update resolve counters")
	}

	audit.Log(ctx, audit.ActionSessionResolved, ident.UserID, session.ID, "session resolved")
	return session, nil
}

// transition performs one guarded state machine step under the session lock.
func (r *SessionRegistry) transition(
	ctx context.Context,
	sessionID string,
	ident domain.Identity,
	from, to domain.SessionStatus,
	resolvedAt *time.Time,
) (*domain.Session, error) {
	unlock := r.sessionLocks.Lock(sessionID)
	defer unlock()

	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if ident.CounselorID == "" || ident.CounselorID != session.CounselorID {
		return nil, domain.ErrAccessDenied
	}
	if session.Status != from {
		return nil, domain.ErrInvalidState
	}

	if err := r.sessions.UpdateStatus(ctx, sessionID, to, resolvedAt); err != nil {
		return nil, err
	}

	session.Status = to
	session.ResolvedAt = resolvedAt
	return session, nil
}

// adjustCounters applies capacity deltas under the counselor lock. The active
// count floors at zero.
func (r *SessionRegistry) adjustCounters(ctx context.Context, counselorID string, activeDelta int, resolvedDelta int64) error {
	unlock := r.counselorLocks.Lock(counselorID)
	defer unlock()

	counselor, err := r.counselors.GetByID(ctx, counselorID)
	if err != nil {
		return err
	}

	active := counselor.ActiveSessions + activeDelta
	if active < 0 {
		active = 0
	}
	return r.counselors.UpdateCounters(ctx, counselorID, active, counselor.TotalResolved+resolvedDelta)
}

// Rate records the one permitted rating of a resolved session and recomputes
// the counselor's aggregate as the mean of all their ratings, rounded to one
// decimal place.
func (r *SessionRegistry) Rate(ctx context.Context, sessionID string, ident domain.Identity, value int, comment string) (*domain.Rating, error) {
	if value < 1 || value > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
	}

	unlock := r.sessionLocks.Lock(sessionID)
	defer unlock()

	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	if ident.UserID != session.UserID || ident.Role != domain.RoleUser {
		return nil, domain.ErrAccessDenied
	}
	if session.Status != domain.StatusResolved {
		return nil, domain.ErrInvalidState
	}

	unlockCounselor := r.counselorLocks.Lock(session.CounselorID)
	defer unlockCounselor()

	if _, err := r.ratings.GetBySession(ctx, sessionID); err == nil {
		return nil, domain.ErrConflict
	} else if !errors.Is(err, repository.ErrRatingNotFound) {
		return nil, err
	}

	rating := &domain.Rating{
		SessionID:   sessionID,
		UserID:      ident.UserID,
		CounselorID: session.CounselorID,
		Value:       value,
		Comment:     comment,
	}
	if err := r.ratings.Create(ctx, rating); err != nil {
		if errors.Is(err, repository.ErrDuplicateRating) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}

	average, count, err := r.ratings.AggregateForCounselor(ctx, session.CounselorID)
	if err != nil {
		return nil, err
	}
	rounded := math.Round(average*10) / 10
	if err := r.counselors.UpdateRating(ctx, session.CounselorID, rounded, count); err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionSessionRated, ident.UserID, sessionID, "session rated")
	return rating, nil
}

// GetSession loads a session for guard checks and reads.
func (r *SessionRegistry) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

// PendingSessions returns the counselor's request queue, newest first.
func (r *SessionRegistry) PendingSessions(ctx context.Context, ident domain.Identity) ([]*domain.Session, error) {
	if ident.CounselorID == "" {
		return nil, domain.ErrAccessDenied
	}
	return r.sessions.ListByCounselor(ctx, ident.CounselorID, domain.StatusPending)
}

// ActiveSessions returns the counselor's active sessions by last activity.
func (r *SessionRegistry) ActiveSessions(ctx context.Context, ident domain.Identity) ([]*domain.Session, error) {
	if ident.CounselorID == "" {
		return nil, domain.ErrAccessDenied
	}
	return r.sessions.ListByCounselor(ctx, ident.CounselorID, domain.StatusActive)
}

// History returns the caller's sessions regardless of status.
func (r *SessionRegistry) History(ctx context.Context, ident domain.Identity) ([]*domain.Session, error) {
	if ident.IsCounselor() {
		if ident.CounselorID == "" {
			return nil, domain.ErrAccessDenied
		}
		return r.sessions.ListByCounselor(ctx, ident.CounselorID)
	}
	return r.sessions.ListByUser(ctx, ident.UserID)
}

// AvailableCounselors lists counselors currently accepting sessions.
func (r *SessionRegistry) AvailableCounselors(ctx context.Context) ([]*domain.Counselor, error) {
	return r.counselors.ListAvailable(ctx)
}

// CounselorByID loads one counselor profile.
func (r *SessionRegistry) CounselorByID(ctx context.Context, id string) (*domain.Counselor, error) {
	counselor, err := r.counselors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCounselorNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return counselor, nil
}
