package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/kiramarket/kirama-backend/pkg/db"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/outbox/payloads"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AssignmentCanceller withdraws the active assignment for an order when the
// order itself is cancelled, freeing the bound courier.
type AssignmentCanceller interface {
	CancelActiveForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.DeliveryAssignment, error)
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, input GetOrderInput) (*models.Order, error)
	List(ctx context.Context, input ListOrdersInput) (*OrderList, error)
	Advance(ctx context.Context, input AdvanceOrderInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelOrderInput) error
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	states      *StateStore
	assignments AssignmentCanceller
	nowFunc     func() time.Time
}

// CreateOrderInput captures a customer placing an order with a vendor.
type CreateOrderInput struct {
	CustomerUserID  uuid.UUID
	VendorUserID    uuid.UUID
	PaymentMethod   enums.PaymentMethod
	DeliveryMode    enums.DeliveryMode
	TotalAmount     decimal.Decimal
	DeliveryAddress *string
	DeliveryCity    *string
	DeliveryPoint   *types.GeographyPoint
	VendorCity      *string
	VendorPoint     *types.GeographyPoint
	ActorUserID     uuid.UUID
	ActorRole       string
}

// GetOrderInput identifies an order read on behalf of an actor.
type GetOrderInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// ListOrdersInput pages through the actor's own orders.
type ListOrdersInput struct {
	ActorUserID uuid.UUID
	ActorRole   string
	Params      pagination.Params
	Filters     OrderFilters
}

// AdvanceOrderInput moves an order forward in the vendor's queue.
type AdvanceOrderInput struct {
	OrderID     uuid.UUID
	To          enums.OrderStatus
	ActorUserID uuid.UUID
	ActorRole   string
}

// CancelOrderInput withdraws an order before delivery.
type CancelOrderInput struct {
	OrderID     uuid.UUID
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   string
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, states *StateStore, assignments AssignmentCanceller) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if states == nil {
		return nil, fmt.Errorf("state store required")
	}
	if assignments == nil {
		return nil, fmt.Errorf("assignment canceller required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      publisher,
		states:      states,
		assignments: assignments,
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.CustomerUserID == uuid.Nil {
		input.CustomerUserID = input.ActorUserID
	}
	if input.CustomerUserID != input.ActorUserID && input.ActorRole != enums.ActorRoleAdmin.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot place orders for another customer")
	}
	if input.VendorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.VendorUserID == input.CustomerUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and vendor must differ")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if !input.DeliveryMode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery mode")
	}
	if input.TotalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total amount must be positive")
	}
	if input.DeliveryMode == enums.DeliveryModeHomeDelivery && input.DeliveryAddress == nil && input.DeliveryPoint == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "home delivery requires an address or coordinates")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}
		order := &models.Order{
			OrderNumber:     number,
			CustomerUserID:  input.CustomerUserID,
			VendorUserID:    input.VendorUserID,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			DeliveryMode:    input.DeliveryMode,
			TotalAmount:     input.TotalAmount,
			DeliveryAddress: input.DeliveryAddress,
			DeliveryCity:    input.DeliveryCity,
			DeliveryPoint:   input.DeliveryPoint,
			VendorCity:      input.VendorCity,
			VendorPoint:     input.VendorPoint,
		}
		created, err = repo.Create(ctx, order)
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_orders_order_number") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order number collision, retry the request")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateNotification,
			AggregateID:   uuid.New(),
			Version:       1,
			Actor:         buildActor(input.ActorUserID, input.ActorRole),
			Data: payloads.NotificationRequestedEvent{
				RecipientUserID: order.VendorUserID,
				Type:            enums.NotificationTypeOrderUpdate,
				Title:           "New order received",
				Message:         fmt.Sprintf("Order #%d is waiting for your confirmation", order.OrderNumber),
				Link:            fmt.Sprintf("/orders/%s", order.ID),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, input GetOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canViewOrder(order, input.ActorUserID, input.ActorRole) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListOrdersInput) (*OrderList, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	var (
		list *OrderList
		err  error
	)
	switch input.ActorRole {
	case enums.ActorRoleVendor.String():
		list, err = s.repo.ListByVendor(ctx, input.ActorUserID, input.Params, input.Filters)
	default:
		list, err = s.repo.ListByCustomer(ctx, input.ActorUserID, input.Params, input.Filters)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) Advance(ctx context.Context, input AdvanceOrderInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !vendorAdvanceAllowed(input.To) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be processing or shipped")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.states.FindTx(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if order.VendorUserID != input.ActorUserID && input.ActorRole != enums.ActorRoleAdmin.String() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		updated, err = s.states.TransitionTx(ctx, tx, order.ID, input.To, buildActor(input.ActorUserID, input.ActorRole))
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, input CancelOrderInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.states.FindTx(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if err := canCancelOrder(order, input.ActorUserID, input.ActorRole); err != nil {
			return err
		}

		actor := buildActor(input.ActorUserID, input.ActorRole)
		if _, err := s.assignments.CancelActiveForOrderTx(ctx, tx, order.ID, actor); err != nil {
			return err
		}
		if _, err := s.states.TransitionTx(ctx, tx, order.ID, enums.OrderStatusCancelled, actor); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				CustomerUserID: order.CustomerUserID,
				VendorUserID:   order.VendorUserID,
				CancelledAt:    s.nowFunc(),
				Reason:         input.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func canViewOrder(order *models.Order, userID uuid.UUID, role string) bool {
	if role == enums.ActorRoleAdmin.String() {
		return true
	}
	return order.CustomerUserID == userID || order.VendorUserID == userID
}

func canCancelOrder(order *models.Order, userID uuid.UUID, role string) error {
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is already finished")
	}
	switch {
	case role == enums.ActorRoleAdmin.String():
		return nil
	case order.VendorUserID == userID:
		return nil
	case order.CustomerUserID == userID:
		// Customers may only back out before the package leaves the vendor.
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order can no longer be cancelled by the customer")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
}

func buildActor(userID uuid.UUID, role string) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: userID,
		Role:   role,
	}
}
