package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/pkg/enums"
)

// DeliveryAssignment binds an order to a courier through one of the dispatch
// modes. CandidateCourierID holds the directed target until acceptance;
// CourierID is only set once a courier is bound.
type DeliveryAssignment struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID            uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	VendorUserID       uuid.UUID              `gorm:"column:vendor_user_id;type:uuid;not null;index"`
	Mode               enums.AssignmentMode   `gorm:"column:mode;type:assignment_mode;not null"`
	Status             enums.AssignmentStatus `gorm:"column:status;type:assignment_status;not null;default:'pending'"`
	CandidateCourierID *uuid.UUID             `gorm:"column:candidate_courier_id;type:uuid;index"`
	CourierID          *uuid.UUID             `gorm:"column:courier_id;type:uuid;index"`
	DistanceKM         decimal.Decimal        `gorm:"column:distance_km;type:numeric(8,2);not null;default:0"`
	CommissionAmount   decimal.Decimal        `gorm:"column:commission_amount;type:numeric(14,2);not null;default:0"`
	BonusAmount        decimal.Decimal        `gorm:"column:bonus_amount;type:numeric(14,2);not null;default:0"`
	ExpiresAt          *time.Time             `gorm:"column:expires_at"`
	AcceptedAt         *time.Time             `gorm:"column:accepted_at"`
	PickedUpAt         *time.Time             `gorm:"column:picked_up_at"`
	DeliveredAt        *time.Time             `gorm:"column:delivered_at"`
	CancelledAt        *time.Time             `gorm:"column:cancelled_at"`
	ExpiredAt          *time.Time             `gorm:"column:expired_at"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
