package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	NextOrderNumber(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stamps map[string]any) (int64, error)
	ListByCustomer(ctx context.Context, customerUserID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListByVendor(ctx context.Context, vendorUserID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
}
