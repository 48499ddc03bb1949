package models

import (
	"time"

	"github.com/google/uuid"
)

// CourierRating is a customer score for a delivered order, one per order.
type CourierRating struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	CourierID      uuid.UUID `gorm:"column:courier_id;type:uuid;not null;index"`
	CustomerUserID uuid.UUID `gorm:"column:customer_user_id;type:uuid;not null"`
	Score          int       `gorm:"column:score;not null"`
	Comment        *string   `gorm:"column:comment;type:text"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
