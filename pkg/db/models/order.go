package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

// Order is the customer order moving through fulfillment and delivery.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64                 `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerUserID  uuid.UUID             `gorm:"column:customer_user_id;type:uuid;not null;index"`
	VendorUserID    uuid.UUID             `gorm:"column:vendor_user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod   `gorm:"column:payment_method;type:payment_method;not null;default:'cash'"`
	DeliveryMode    enums.DeliveryMode    `gorm:"column:delivery_mode;type:delivery_mode;not null;default:'home_delivery'"`
	TotalAmount     decimal.Decimal       `gorm:"column:total_amount;type:numeric(14,2);not null"`
	DeliveryAddress *string               `gorm:"column:delivery_address;type:text"`
	DeliveryCity    *string               `gorm:"column:delivery_city;type:text"`
	DeliveryPoint   *types.GeographyPoint `gorm:"column:delivery_point;type:geography(Point,4326)"`
	VendorCity      *string               `gorm:"column:vendor_city;type:text"`
	VendorPoint     *types.GeographyPoint `gorm:"column:vendor_point;type:geography(Point,4326)"`
	DeliveredAt     *time.Time            `gorm:"column:delivered_at"`
	CancelledAt     *time.Time            `gorm:"column:cancelled_at"`
	Tokens          []DeliveryToken       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Assignments     []DeliveryAssignment  `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
