package couriers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a courier repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, profile *models.CourierProfile) (*models.CourierProfile, error) {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CourierProfile, error) {
	var profile models.CourierProfile
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CourierProfile, error) {
	var profile models.CourierProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) ListAvailable(ctx context.Context) ([]models.CourierProfile, error) {
	var profiles []models.CourierProfile
	err := r.db.WithContext(ctx).
		Where("available = ?", true).
		Order("rating DESC, completed_deliveries DESC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// SetAvailability flips the flag only when it actually changes, so callers can
// detect a courier who was already busy.
func (r *repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CourierProfile{}).
		Where("id = ? AND available = ?", id, !available).
		Updates(map[string]any{
			"available":  available,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) UpdateLocation(ctx context.Context, id uuid.UUID, point types.GeographyPoint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CourierProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_location":    point,
			"last_location_at": at,
			"updated_at":       at,
		}).Error
}

func (r *repository) IncrementCompleted(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CourierProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"completed_deliveries": gorm.Expr("completed_deliveries + 1"),
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *repository) CreateRating(ctx context.Context, rating *models.CourierRating) (*models.CourierRating, error) {
	if err := r.db.WithContext(ctx).Create(rating).Error; err != nil {
		return nil, err
	}
	return rating, nil
}

// ApplyRating folds a new score into the rolling average in one statement so
// concurrent ratings never read stale counts.
func (r *repository) ApplyRating(ctx context.Context, id uuid.UUID, score int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE courier_profiles
		SET rating = ROUND((rating * rating_count + ?) / (rating_count + 1.0), 2),
			rating_count = rating_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, score, id).Error
}
