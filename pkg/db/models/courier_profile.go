package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

// CourierProfile holds the dispatchable state of a courier. Availability and
// the completed counter are only mutated inside dispatch transactions.
type CourierProfile struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID             `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Phone               string                `gorm:"column:phone;type:text;not null"`
	VehicleType         enums.VehicleType     `gorm:"column:vehicle_type;type:vehicle_type;not null;default:'motorbike'"`
	Available           bool                  `gorm:"column:available;not null;default:true"`
	LastLocation        *types.GeographyPoint `gorm:"column:last_location;type:geography(Point,4326)"`
	LastLocationAt      *time.Time            `gorm:"column:last_location_at"`
	Rating              decimal.Decimal       `gorm:"column:rating;type:numeric(3,2);not null;default:5.0"`
	RatingCount         int                   `gorm:"column:rating_count;not null;default:0"`
	CompletedDeliveries int                   `gorm:"column:completed_deliveries;not null;default:0"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
