package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
)

// Repository defines persistence operations for delivery tokens.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, token *models.DeliveryToken) (*models.DeliveryToken, error)
	FindByCode(ctx context.Context, code string) (*models.DeliveryToken, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryToken, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID, now time.Time) (*models.DeliveryToken, error)
	Consume(ctx context.Context, id uuid.UUID, now time.Time, customerConfirmed, counterpartyConfirmed bool) (int64, error)
}
