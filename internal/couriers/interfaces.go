package couriers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

// Repository defines persistence operations for courier profiles and ratings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, profile *models.CourierProfile) (*models.CourierProfile, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CourierProfile, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CourierProfile, error)
	ListAvailable(ctx context.Context) ([]models.CourierProfile, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (int64, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, point types.GeographyPoint, at time.Time) error
	IncrementCompleted(ctx context.Context, id uuid.UUID) error
	CreateRating(ctx context.Context, rating *models.CourierRating) (*models.CourierRating, error)
	ApplyRating(ctx context.Context, id uuid.UUID, score int) error
}
