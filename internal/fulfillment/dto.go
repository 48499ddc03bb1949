package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/pkg/enums"
)

// OrderFilters describe the inputs supported by the order lists.
type OrderFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderSummary exposes the fields returned in the customer and vendor lists.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   int64               `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	DeliveryMode  enums.DeliveryMode  `json:"delivery_mode"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	DeliveryCity  *string             `json:"delivery_city,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
