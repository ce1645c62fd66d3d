package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MahmoudZenbarakji/RealTime-ChatApp/internal/domain"
)

// GormRatingRepository implements RatingRepository using GORM.
type GormRatingRepository struct {
	db *gorm.DB
}

// NewGormRatingRepository creates a new GORM-based rating repository.
func NewGormRatingRepository(db *gorm.DB) *GormRatingRepository {
	return &GormRatingRepository{db: db}
}

// Create inserts a rating. The unique session_id index rejects a second
// rating for the same session.
func (r *GormRatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.New().String()
	}

	model := domain.RatingToModel(rating)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return r.handleError(err)
	}

	rating.CreatedAt = model.CreatedAt
	return nil
}

// GetBySession retrieves the rating for a session, if any.
func (r *GormRatingRepository) GetBySession(ctx context.Context, sessionID string) (*domain.Rating, error) {
	var model domain.RatingModel
	result := r.db.WithContext(ctx).First(&model, "session_id = ?", sessionID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRatingNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// AggregateForCounselor computes mean and count over the counselor's ratings
// in SQL. No ratings yields (0, 0).
func (r *GormRatingRepository) AggregateForCounselor(ctx context.Context, counselorID string) (float64, int64, error) {
	var agg struct {
		Average float64
		Count   int64
	}
	result := r.db.WithContext(ctx).Model(&domain.RatingModel{}).
		Select("COALESCE(AVG(value), 0) AS average, COUNT(*) AS count").
		Where("counselor_id = ?", counselorID).
		Scan(&agg)
	if result.Error != nil {
		return 0, 0, result.Error
	}
	return agg.Average, agg.Count, nil
}

// handleError converts database-specific errors to domain errors.
func (r *GormRatingRepository) handleError(err error) error {
	errStr := err.Error()

	// PostgreSQL / SQLite / MySQL unique constraint violations
	if strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "Duplicate entry") {
		return ErrDuplicateRating
	}

	return err
}
