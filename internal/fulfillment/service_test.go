package fulfillment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	order         *models.Order
	created       *models.Order
	updatedFrom   enums.OrderStatus
	updatedTo     enums.OrderStatus
	updateCalls   int
	nextNumber    int64
	createErr     error
	customerLists int
	vendorLists   int
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.created = order
	return order, nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrdersRepo) NextOrderNumber(ctx context.Context) (int64, error) {
	if s.nextNumber == 0 {
		s.nextNumber = 100001
	}
	return s.nextNumber, nil
}

func (s *stubOrdersRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stamps map[string]any) (int64, error) {
	s.updateCalls++
	s.updatedFrom = from
	s.updatedTo = to
	if s.order != nil && s.order.ID == id && s.order.Status == from {
		s.order.Status = to
		return 1, nil
	}
	return 0, nil
}

func (s *stubOrdersRepo) ListByCustomer(ctx context.Context, customerUserID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	s.customerLists++
	return &OrderList{}, nil
}

func (s *stubOrdersRepo) ListByVendor(ctx context.Context, vendorUserID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	s.vendorLists++
	return &OrderList{}, nil
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutboxPublisher) last() outbox.DomainEvent {
	if len(s.events) == 0 {
		return outbox.DomainEvent{}
	}
	return s.events[len(s.events)-1]
}

type stubCanceller struct {
	calls     int
	cancelled *models.DeliveryAssignment
	err       error
}

func (s *stubCanceller) CancelActiveForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.DeliveryAssignment, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	return s.cancelled, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *stubOrdersRepo, publisher *stubOutboxPublisher, canceller *stubCanceller) Service {
	t.Helper()
	states, err := NewStateStore(repo, publisher, nil)
	if err != nil {
		t.Fatalf("state store constructor failed: %v", err)
	}
	svc, err := NewService(repo, stubTxRunner{}, publisher, states, canceller)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	return svc
}

func TestCreateOrder(t *testing.T) {
	repo := &stubOrdersRepo{}
	publisher := &stubOutboxPublisher{}
	svc := newTestService(t, repo, publisher, &stubCanceller{})

	customer := uuid.New()
	vendor := uuid.New()
	address := "Quartier Almamya, Kaloum"
	order, err := svc.Create(context.Background(), CreateOrderInput{
		VendorUserID:    vendor,
		PaymentMethod:   enums.PaymentMethodCash,
		DeliveryMode:    enums.DeliveryModeHomeDelivery,
		TotalAmount:     decimal.RequireFromString("150000"),
		DeliveryAddress: &address,
		ActorUserID:     customer,
		ActorRole:       enums.ActorRoleCustomer.String(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.OrderNumber != 100001 {
		t.Fatalf("unexpected order number %d", order.OrderNumber)
	}
	if order.CustomerUserID != customer {
		t.Fatalf("customer should default to the actor")
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("new orders must start pending, got %s", order.Status)
	}
	event := publisher.last()
	if event.EventType != enums.EventNotificationRequested {
		t.Fatalf("expected vendor notification, got %s", event.EventType)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestService(t, &stubOrdersRepo{}, &stubOutboxPublisher{}, &stubCanceller{})

	_, err := svc.Create(context.Background(), CreateOrderInput{
		VendorUserID:  uuid.New(),
		PaymentMethod: enums.PaymentMethodCash,
		DeliveryMode:  enums.DeliveryModeHomeDelivery,
		TotalAmount:   decimal.RequireFromString("-5"),
		ActorUserID:   uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Create(context.Background(), CreateOrderInput{
		VendorUserID:  uuid.New(),
		PaymentMethod: enums.PaymentMethodCash,
		DeliveryMode:  enums.DeliveryModeHomeDelivery,
		TotalAmount:   decimal.RequireFromString("5000"),
		ActorUserID:   uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("home delivery without address must fail, got %v", err)
	}
}

func TestAdvanceOrder(t *testing.T) {
	orderID := uuid.New()
	vendor := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:           orderID,
			VendorUserID: vendor,
			Status:       enums.OrderStatusPending,
		},
	}
	publisher := &stubOutboxPublisher{}
	svc := newTestService(t, repo, publisher, &stubCanceller{})

	updated, err := svc.Advance(context.Background(), AdvanceOrderInput{
		OrderID:     orderID,
		To:          enums.OrderStatusProcessing,
		ActorUserID: vendor,
		ActorRole:   enums.ActorRoleVendor.String(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if updated.Status != enums.OrderStatusProcessing {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	event := publisher.last()
	if event.EventType != enums.EventOrderStateChanged {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
}

func TestAdvanceOrderWrongVendor(t *testing.T) {
	orderID := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:           orderID,
			VendorUserID: uuid.New(),
			Status:       enums.OrderStatusPending,
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubCanceller{})

	_, err := svc.Advance(context.Background(), AdvanceOrderInput{
		OrderID:     orderID,
		To:          enums.OrderStatusProcessing,
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor.String(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAdvanceOrderIllegalJump(t *testing.T) {
	orderID := uuid.New()
	vendor := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:           orderID,
			VendorUserID: vendor,
			Status:       enums.OrderStatusPending,
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubCanceller{})

	_, err := svc.Advance(context.Background(), AdvanceOrderInput{
		OrderID:     orderID,
		To:          enums.OrderStatusShipped,
		ActorUserID: vendor,
		ActorRole:   enums.ActorRoleVendor.String(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("pending cannot jump to shipped, got %v", err)
	}
}

func TestCancelOrderCascadesToAssignment(t *testing.T) {
	orderID := uuid.New()
	vendor := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:             orderID,
			CustomerUserID: uuid.New(),
			VendorUserID:   vendor,
			Status:         enums.OrderStatusShipped,
		},
	}
	publisher := &stubOutboxPublisher{}
	canceller := &stubCanceller{}
	svc := newTestService(t, repo, publisher, canceller)

	err := svc.Cancel(context.Background(), CancelOrderInput{
		OrderID:     orderID,
		Reason:      "out of stock",
		ActorUserID: vendor,
		ActorRole:   enums.ActorRoleVendor.String(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if canceller.calls != 1 {
		t.Fatalf("expected assignment cancel, got %d calls", canceller.calls)
	}
	event := publisher.last()
	if event.EventType != enums.EventOrderCancelled {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
}

func TestCustomerCannotCancelShippedOrder(t *testing.T) {
	orderID := uuid.New()
	customer := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:             orderID,
			CustomerUserID: customer,
			VendorUserID:   uuid.New(),
			Status:         enums.OrderStatusShipped,
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubCanceller{})

	err := svc.Cancel(context.Background(), CancelOrderInput{
		OrderID:     orderID,
		ActorUserID: customer,
		ActorRole:   enums.ActorRoleCustomer.String(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestCancelTerminalOrder(t *testing.T) {
	orderID := uuid.New()
	vendor := uuid.New()
	repo := &stubOrdersRepo{
		order: &models.Order{
			ID:           orderID,
			VendorUserID: vendor,
			Status:       enums.OrderStatusDelivered,
		},
	}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubCanceller{})

	err := svc.Cancel(context.Background(), CancelOrderInput{
		OrderID:     orderID,
		ActorUserID: vendor,
		ActorRole:   enums.ActorRoleVendor.String(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestListRoutesByRole(t *testing.T) {
	repo := &stubOrdersRepo{}
	svc := newTestService(t, repo, &stubOutboxPublisher{}, &stubCanceller{})

	if _, err := svc.List(context.Background(), ListOrdersInput{
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleVendor.String(),
	}); err != nil {
		t.Fatalf("vendor list failed: %v", err)
	}
	if _, err := svc.List(context.Background(), ListOrdersInput{
		ActorUserID: uuid.New(),
		ActorRole:   enums.ActorRoleCustomer.String(),
	}); err != nil {
		t.Fatalf("customer list failed: %v", err)
	}
	if repo.vendorLists != 1 || repo.customerLists != 1 {
		t.Fatalf("unexpected list routing vendor=%d customer=%d", repo.vendorLists, repo.customerLists)
	}
}
