package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/config"
	dbpkg "github.com/kiramarket/kirama-backend/pkg/db"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/metrics"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/outbox/payloads"
)

const maxCodeAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderStates exposes the transactional order transitions owned by the
// fulfillment package.
type orderStates interface {
	FindTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error)
	TransitionTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, to enums.OrderStatus, actor *outbox.ActorRef) (*models.Order, error)
}

// CourierBinding answers whether a courier currently holds the delivery for an
// order. The dispatch repository implements it.
type CourierBinding interface {
	IsCourierBoundTx(ctx context.Context, tx *gorm.DB, orderID, courierUserID uuid.UUID) (bool, error)
}

// Service defines delivery token operations.
type Service interface {
	Issue(ctx context.Context, input IssueInput) (*models.DeliveryToken, error)
	Scan(ctx context.Context, input ScanInput) (*ScanResult, error)
	Consume(ctx context.Context, input ConsumeInput) (*models.DeliveryToken, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	states   orderStates
	couriers CourierBinding
	cfg      config.DispatchConfig
	engine   *metrics.EngineMetrics
	nowFunc  func() time.Time
}

// IssueInput mints a token for an order.
type IssueInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// ScanInput validates a presented code without burning it. Identity is
// optional; anyone holding the code may scan it.
type ScanInput struct {
	Code        string
	ActorUserID uuid.UUID
	ActorRole   string
}

// ScanResult is returned for a valid, unburned token.
type ScanResult struct {
	Token *models.DeliveryToken `json:"token"`
	Order *models.Order         `json:"order"`
	State enums.TokenState      `json:"state"`
}

// ConsumeInput burns a token at the handoff.
type ConsumeInput struct {
	Code                  string
	CustomerConfirmed     bool
	CounterpartyConfirmed bool
	ActorUserID           uuid.UUID
	ActorRole             string
}

// NewService builds the token service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, states orderStates, couriers CourierBinding, cfg config.DispatchConfig, engine *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tokens repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if states == nil {
		return nil, fmt.Errorf("order state store required")
	}
	if couriers == nil {
		return nil, fmt.Errorf("courier binding required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		states:   states,
		couriers: couriers,
		cfg:      cfg,
		engine:   engine,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// StateOf classifies a token at a point in time. Expiry wins over usage so a
// stale code always tells the customer to request a fresh one.
func StateOf(token *models.DeliveryToken, now time.Time) enums.TokenState {
	if !token.ExpiresAt.After(now) {
		return enums.TokenStateExpired
	}
	if token.Used {
		return enums.TokenStateUsed
	}
	return enums.TokenStateValid
}

func (s *service) Issue(ctx context.Context, input IssueInput) (*models.DeliveryToken, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var issued *models.DeliveryToken
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.states.FindTx(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if order.VendorUserID != input.ActorUserID && input.ActorRole != enums.ActorRoleAdmin.String() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "tokens can only be issued before the order ships")
		}

		repo := s.repo.WithTx(tx)
		now := s.nowFunc()
		if _, err := repo.FindActiveByOrder(ctx, order.ID, now); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "an active token already exists for this order")
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active token")
		}

		issued, err = s.createWithFreshCode(ctx, repo, order.ID, now)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventTokenIssued,
			AggregateType: enums.AggregateDeliveryToken,
			AggregateID:   issued.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.TokenIssuedEvent{
				TokenID:        issued.ID,
				OrderID:        order.ID,
				CustomerUserID: order.CustomerUserID,
				ExpiresAt:      issued.ExpiresAt,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// createWithFreshCode retries on the off chance a generated code collides.
func (s *service) createWithFreshCode(ctx context.Context, repo Repository, orderID uuid.UUID, now time.Time) (*models.DeliveryToken, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode(s.cfg.TokenCodeLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate token code")
		}
		token, err := repo.Create(ctx, &models.DeliveryToken{
			OrderID:   orderID,
			Code:      code,
			ExpiresAt: now.Add(s.cfg.TokenTTL),
		})
		if err == nil {
			return token, nil
		}
		if !dbpkg.IsUniqueViolation(err, "idx_delivery_tokens_code") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create token")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not generate a unique token code")
}

func (s *service) Scan(ctx context.Context, input ScanInput) (*ScanResult, error) {
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token code required")
	}

	token, err := s.repo.FindByCode(ctx, input.Code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "token not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
	}

	switch StateOf(token, s.nowFunc()) {
	case enums.TokenStateExpired:
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "token has expired")
	case enums.TokenStateUsed:
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyUsed, "token already used")
	}

	order, err := s.states.FindTx(ctx, nil, token.OrderID)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Token: token, Order: order, State: enums.TokenStateValid}, nil
}

func (s *service) Consume(ctx context.Context, input ConsumeInput) (*models.DeliveryToken, error) {
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token code required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var consumed *models.DeliveryToken
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		token, err := repo.FindByCode(ctx, input.Code)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "token not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
		}

		order, err := s.states.FindTx(ctx, tx, token.OrderID)
		if err != nil {
			return err
		}
		if err := s.authorizeConsumer(ctx, tx, order, input); err != nil {
			return err
		}

		now := s.nowFunc()
		switch StateOf(token, now) {
		case enums.TokenStateExpired:
			return pkgerrors.New(pkgerrors.CodeExpired, "token has expired")
		case enums.TokenStateUsed:
			return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "token already used")
		}

		customerConfirmed := input.CustomerConfirmed
		counterpartyConfirmed := input.CounterpartyConfirmed
		if order.PaymentMethod == enums.PaymentMethodCash {
			// Cash handoffs need both parties in the same call; nothing is
			// burned until both flags arrive together.
			if !customerConfirmed || !counterpartyConfirmed {
				return pkgerrors.New(pkgerrors.CodeIncompleteConfirmation, "cash orders require both confirmations")
			}
		} else {
			customerConfirmed = true
			counterpartyConfirmed = true
		}

		rows, err := repo.Consume(ctx, token.ID, now, customerConfirmed, counterpartyConfirmed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume token")
		}
		if rows == 0 {
			s.engine.IncClaimConflict("token_consume")
			fresh, err := repo.FindByID(ctx, token.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload token")
			}
			if StateOf(fresh, now) == enums.TokenStateExpired {
				return pkgerrors.New(pkgerrors.CodeExpired, "token has expired")
			}
			return pkgerrors.New(pkgerrors.CodeAlreadyUsed, "token already used")
		}
		s.engine.IncTokenConsumed()

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		if _, err := s.states.TransitionTx(ctx, tx, order.ID, enums.OrderStatusDelivered, actor); err != nil {
			return err
		}

		token.Used = true
		token.UsedAt = &now
		token.CustomerConfirmed = customerConfirmed
		token.CounterpartyConfirmed = counterpartyConfirmed
		consumed = token

		event := outbox.DomainEvent{
			EventType:     enums.EventTokenConsumed,
			AggregateType: enums.AggregateDeliveryToken,
			AggregateID:   token.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.TokenConsumedEvent{
				TokenID:        token.ID,
				OrderID:        order.ID,
				CustomerUserID: order.CustomerUserID,
				VendorUserID:   order.VendorUserID,
				PaymentMethod:  order.PaymentMethod,
				UsedAt:         now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}

		if order.PaymentMethod == enums.PaymentMethodCash {
			cash := outbox.DomainEvent{
				EventType:     enums.EventCashCollected,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.CashCollectedEvent{
					OrderID:        order.ID,
					CustomerUserID: order.CustomerUserID,
					VendorUserID:   order.VendorUserID,
					Amount:         order.TotalAmount,
					CollectedAt:    now,
				},
			}
			if err := s.outbox.Emit(ctx, tx, cash); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

// authorizeConsumer limits burning to the party physically receiving the code:
// the vendor on pickups, the bound courier on home deliveries, or an admin.
func (s *service) authorizeConsumer(ctx context.Context, tx *gorm.DB, order *models.Order, input ConsumeInput) error {
	if input.ActorRole == enums.ActorRoleAdmin.String() {
		return nil
	}
	if order.VendorUserID == input.ActorUserID {
		return nil
	}
	if input.ActorRole == enums.ActorRoleCourier.String() {
		bound, err := s.couriers.IsCourierBoundTx(ctx, tx, order.ID, input.ActorUserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check courier binding")
		}
		if bound {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not authorized to consume this token")
}
