package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

// GormSessionRepository implements SessionRepository using GORM.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GORM-based session repository.
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Create creates a new session.
func (r *GormSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	model := domain.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	session.CreatedAt = model.CreatedAt
	session.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID retrieves a session by ID.
func (r *GormSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var model domain.SessionModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// FindOpenByPair returns the pending or active session for a user/counselor pair.
func (r *GormSessionRepository) FindOpenByPair(ctx context.Context, userID, counselorID string) (*domain.Session, error) {
	var model domain.SessionModel
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND counselor_id = ? AND status IN ?",
			userID, counselorID, []string{string(domain.StatusPending), string(domain.StatusActive)}).
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// UpdateStatus writes a status transition.
func (r *GormSessionRepository) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, resolvedAt *time.Time) error {
	updates := map[string]interface{}{"status": string(status)}
	if resolvedAt != nil {
		updates["resolved_at"] = resolvedAt
	}

	result := r.db.WithContext(ctx).Model(&domain.SessionModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListByUser returns all sessions for a user, most recent activity first.
func (r *GormSessionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	var models []domain.SessionModel
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}
	return toDomainSessions(models), nil
}

// ListByCounselor returns the counselor's sessions, optionally filtered by status.
// Pending queues sort newest first; everything else by last activity.
func (r *GormSessionRepository) ListByCounselor(ctx context.Context, counselorID string, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	q := r.db.WithContext(ctx).Where("counselor_id = ?", counselorID)
	if len(statuses) > 0 {
		vals := make([]string, 0, len(statuses))
		for _, s := range statuses {
			vals = append(vals, string(s))
		}
		q = q.Where("status IN ?", vals)
	}

	if len(statuses) == 1 && statuses[0] == domain.StatusPending {
		q = q.Order("created_at DESC")
	} else {
		q = q.Order("last_message_at DESC").Order("created_at DESC")
	}

	var models []domain.SessionModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	return toDomainSessions(models), nil
}

func toDomainSessions(models []domain.SessionModel) []*domain.Session {
	sessions := make([]*domain.Session, 0, len(models))
	for i := range models {
		sessions = append(sessions, models[i].ToDomain())
	}
	return sessions
}
