package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/pkg/enums"
)

// OrderStateChangedEvent reports a fulfillment transition on an order.
type OrderStateChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	CustomerUserID uuid.UUID         `json:"customer_user_id"`
	VendorUserID   uuid.UUID         `json:"vendor_user_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
}

// OrderCancelledEvent is emitted whenever a non-terminal order is cancelled.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	CustomerUserID uuid.UUID `json:"customer_user_id"`
	VendorUserID   uuid.UUID `json:"vendor_user_id"`
	CancelledAt    time.Time `json:"cancelled_at"`
	Reason         string    `json:"reason,omitempty"`
}

// TokenIssuedEvent reports a freshly minted delivery token.
type TokenIssuedEvent struct {
	TokenID        uuid.UUID `json:"token_id"`
	OrderID        uuid.UUID `json:"order_id"`
	CustomerUserID uuid.UUID `json:"customer_user_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// TokenConsumedEvent reports the single successful consumption of a token.
type TokenConsumedEvent struct {
	TokenID        uuid.UUID           `json:"token_id"`
	OrderID        uuid.UUID           `json:"order_id"`
	CustomerUserID uuid.UUID           `json:"customer_user_id"`
	VendorUserID   uuid.UUID           `json:"vendor_user_id"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method"`
	UsedAt         time.Time           `json:"used_at"`
}

// CashCollectedEvent confirms a dual-confirmed cash handoff.
type CashCollectedEvent struct {
	OrderID        uuid.UUID       `json:"order_id"`
	CustomerUserID uuid.UUID       `json:"customer_user_id"`
	VendorUserID   uuid.UUID       `json:"vendor_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	CollectedAt    time.Time       `json:"collected_at"`
}

// AssignmentCreatedEvent reports a new dispatch of any mode.
type AssignmentCreatedEvent struct {
	AssignmentID uuid.UUID            `json:"assignment_id"`
	OrderID      uuid.UUID            `json:"order_id"`
	VendorUserID uuid.UUID            `json:"vendor_user_id"`
	Mode         enums.AssignmentMode `json:"mode"`
	Commission   decimal.Decimal      `json:"commission"`
	Bonus        decimal.Decimal      `json:"bonus"`
}

// AssignmentOfferedEvent targets couriers who may claim the delivery. For
// directed mode CourierIDs holds the single candidate; for marketplace mode it
// holds every available courier at dispatch time.
type AssignmentOfferedEvent struct {
	AssignmentID uuid.UUID            `json:"assignment_id"`
	OrderID      uuid.UUID            `json:"order_id"`
	Mode         enums.AssignmentMode `json:"mode"`
	CourierIDs   []uuid.UUID          `json:"courier_ids"`
	Commission   decimal.Decimal      `json:"commission"`
	ExpiresAt    *time.Time           `json:"expires_at,omitempty"`
}

// AssignmentAcceptedEvent reports the winner of the accept race.
type AssignmentAcceptedEvent struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	OrderID      uuid.UUID `json:"order_id"`
	CourierID    uuid.UUID `json:"courier_id"`
	AcceptedAt   time.Time `json:"accepted_at"`
}

// AssignmentRejectedEvent reports a directed courier declining the offer.
type AssignmentRejectedEvent struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	OrderID      uuid.UUID `json:"order_id"`
	CourierID    uuid.UUID `json:"courier_id"`
	RejectedAt   time.Time `json:"rejected_at"`
}

// AssignmentPickedUpEvent reports the courier collecting the package.
type AssignmentPickedUpEvent struct {
	AssignmentID uuid.UUID `json:"assignment_id"`
	OrderID      uuid.UUID `json:"order_id"`
	CourierID    uuid.UUID `json:"courier_id"`
	PickedUpAt   time.Time `json:"picked_up_at"`
}

// AssignmentCompletedEvent reports a finished delivery.
type AssignmentCompletedEvent struct {
	AssignmentID uuid.UUID       `json:"assignment_id"`
	OrderID      uuid.UUID       `json:"order_id"`
	CourierID    uuid.UUID       `json:"courier_id"`
	Commission   decimal.Decimal `json:"commission"`
	DeliveredAt  time.Time       `json:"delivered_at"`
}

// AssignmentCancelledEvent reports a vendor withdrawing a dispatch.
type AssignmentCancelledEvent struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	OrderID      uuid.UUID  `json:"order_id"`
	CourierID    *uuid.UUID `json:"courier_id,omitempty"`
	CancelledAt  time.Time  `json:"cancelled_at"`
}

// AssignmentExpiredEvent reports an offer that ran out its clock.
type AssignmentExpiredEvent struct {
	AssignmentID uuid.UUID  `json:"assignment_id"`
	OrderID      uuid.UUID  `json:"order_id"`
	CourierID    *uuid.UUID `json:"courier_id,omitempty"`
	ExpiredAt    time.Time  `json:"expired_at"`
}

// CourierRatedEvent reports a customer score landing on a courier.
type CourierRatedEvent struct {
	CourierID uuid.UUID       `json:"courier_id"`
	OrderID   uuid.UUID       `json:"order_id"`
	Score     int             `json:"score"`
	NewRating decimal.Decimal `json:"new_rating"`
}

// NotificationRequestedEvent asks downstream consumers to alert a user.
type NotificationRequestedEvent struct {
	RecipientUserID uuid.UUID              `json:"recipient_user_id"`
	Type            enums.NotificationType `json:"type"`
	Title           string                 `json:"title"`
	Message         string                 `json:"message"`
	Link            string                 `json:"link,omitempty"`
}
