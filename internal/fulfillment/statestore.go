package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/metrics"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/outbox/payloads"
)

// StateStore applies guarded order transitions inside a caller-owned
// transaction. The dispatch and token flows use it so that an order status
// change, the assignment or token mutation, and the outbox row all commit
// together.
type StateStore struct {
	repo    Repository
	outbox  outboxPublisher
	engine  *metrics.EngineMetrics
	nowFunc func() time.Time
}

// NewStateStore builds the transactional transition helper.
func NewStateStore(repo Repository, publisher outboxPublisher, engine *metrics.EngineMetrics) (*StateStore, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &StateStore{
		repo:    repo,
		outbox:  publisher,
		engine:  engine,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}, nil
}

// FindTx loads an order through the supplied transaction.
func (s *StateStore) FindTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.WithTx(tx).FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// TransitionTx moves the order to the target status with a status-guarded
// update. A zero row count means another writer moved the order first.
func (s *StateStore) TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, actor *outbox.ActorRef) (*models.Order, error) {
	order, err := s.FindTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == to {
		return order, nil
	}
	if !CanTransition(order.Status, to) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("order cannot move from %s to %s", order.Status, to))
	}

	now := s.nowFunc()
	stamps := map[string]any{}
	switch to {
	case enums.OrderStatusDelivered:
		stamps["delivered_at"] = now
	case enums.OrderStatusCancelled:
		stamps["cancelled_at"] = now
	}

	repo := s.repo.WithTx(tx)
	rows, err := repo.UpdateStatus(ctx, order.ID, order.Status, to, stamps)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if rows == 0 {
		s.engine.IncClaimConflict("order_transition")
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order state changed concurrently")
	}
	s.engine.IncOrderTransition(order.Status.String(), to.String())

	from := order.Status
	order.Status = to
	switch to {
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStateChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderStateChangedEvent{
			OrderID:        order.ID,
			CustomerUserID: order.CustomerUserID,
			VendorUserID:   order.VendorUserID,
			From:           from,
			To:             to,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return order, nil
}
