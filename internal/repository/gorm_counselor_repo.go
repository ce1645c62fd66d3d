package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

// GormCounselorRepository implements CounselorRepository using GORM.
type GormCounselorRepository struct {
	db *gorm.DB
}

// NewGormCounselorRepository creates a new GORM-based counselor repository.
func NewGormCounselorRepository(db *gorm.DB) *GormCounselorRepository {
	return &GormCounselorRepository{db: db}
}

// GetByID retrieves a counselor by profile ID.
func (r *GormCounselorRepository) GetByID(ctx context.Context, id string) (*domain.Counselor, error) {
	var model domain.CounselorModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCounselorNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// GetByUserID retrieves a counselor by the owning user identity.
func (r *GormCounselorRepository) GetByUserID(ctx context.Context, userID string) (*domain.Counselor, error) {
	var model domain.CounselorModel
	result := r.db.WithContext(ctx).First(&model, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCounselorNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListAvailable returns counselors currently accepting sessions.
func (r *GormCounselorRepository) ListAvailable(ctx context.Context) ([]*domain.Counselor, error) {
	var models []domain.CounselorModel
	result := r.db.WithContext(ctx).
		Where("is_available = ?", true).
		Order("rating_average DESC").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	counselors := make([]*domain.Counselor, 0, len(models))
	for i := range models {
		counselors = append(counselors, models[i].ToDomain())
	}
	return counselors, nil
}

// UpdateCounters writes the capacity counters.
func (r *GormCounselorRepository) UpdateCounters(ctx context.Context, id string, activeSessions int, totalResolved int64) error {
	result := r.db.WithContext(ctx).Model(&domain.CounselorModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active_sessions": activeSessions,
			"total_resolved":  totalResolved,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCounselorNotFound
	}
	return nil
}

// UpdateRating writes the rating aggregate.
func (r *GormCounselorRepository) UpdateRating(ctx context.Context, id string, average float64, count int64) error {
	result := r.db.WithContext(ctx).Model(&domain.CounselorModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"rating_average": average,
			"rating_count":   count,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCounselorNotFound
	}
	return nil
}
