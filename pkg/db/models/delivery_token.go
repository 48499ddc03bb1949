package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryToken is a single-use, time-boxed code handed to the customer as a
// QR payload. Consuming it proves the handoff happened.
type DeliveryToken struct {
	ID                     uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID                uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	Code                   string     `gorm:"column:code;type:text;not null;uniqueIndex:idx_delivery_tokens_code"`
	ExpiresAt              time.Time  `gorm:"column:expires_at;not null"`
	Used                   bool       `gorm:"column:used;not null;default:false"`
	UsedAt                 *time.Time `gorm:"column:used_at"`
	CustomerConfirmed      bool       `gorm:"column:customer_confirmed;not null;default:false"`
	CounterpartyConfirmed  bool       `gorm:"column:counterparty_confirmed;not null;default:false"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime"`
}
