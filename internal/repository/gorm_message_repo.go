package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// CreateWithSessionUpdate inserts the message and advances the owning
// session's last_message_id, last_message_at and last_seq in one transaction.
// Callers hold the session lock, so seq assignment cannot collide; the unique
// (session_id, seq) index backs that up at the storage layer.
func (r *GormMessageRepository) CreateWithSessionUpdate(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	model := domain.MessageToModel(msg)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		result := tx.Model(&domain.SessionModel{}).
			Where("id = ?", msg.SessionID).
			Updates(map[string]interface{}{
				"last_message_id": msg.ID,
				"last_message_at": model.CreatedAt,
				"last_seq":        msg.Seq,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	msg.CreatedAt = model.CreatedAt
	return nil
}

// GetByID retrieves a message by ID.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListBySession returns all messages of a session in sequence order.
func (r *GormMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	var models []domain.MessageModel
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	messages := make([]*domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, models[i].ToDomain())
	}
	return messages, nil
}

// MarkRead flips the read flag once. The is_read guard in the WHERE clause
// keeps the stored read timestamp stable under repeated calls.
func (r *GormMessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.MessageModel{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
