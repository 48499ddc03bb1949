package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
)

// Repository defines persistence operations for delivery assignments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, assignment *models.DeliveryAssignment) (*models.DeliveryAssignment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	FindDeliveredByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	IsCourierBoundTx(ctx context.Context, tx *gorm.DB, orderID, courierUserID uuid.UUID) (bool, error)
	HasActiveForCourier(ctx context.Context, courierUserID uuid.UUID) (bool, error)
	ListOpenForCourier(ctx context.Context, courierUserID uuid.UUID, now time.Time, params pagination.Params) (*AssignmentList, error)
	ListByCourier(ctx context.Context, courierUserID uuid.UUID, params pagination.Params) (*AssignmentList, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.DeliveryAssignment, error)
	Accept(ctx context.Context, id, courierUserID uuid.UUID, now time.Time) (int64, error)
	ClearCandidate(ctx context.Context, id, courierUserID uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AssignmentStatus, stamps map[string]any) (int64, error)
}
