package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/internal/couriers"
	"github.com/kiramarket/kirama-backend/internal/pricing"
	"github.com/kiramarket/kirama-backend/pkg/config"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/metrics"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/outbox/payloads"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
)

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

// Service defines delivery dispatch operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.DeliveryAssignment, error)
	Get(ctx context.Context, input GetInput) (*models.DeliveryAssignment, error)
	ListOpen(ctx context.Context, input ListOpenInput) (*AssignmentList, error)
	ListMine(ctx context.Context, input ListMineInput) (*AssignmentList, error)
	Accept(ctx context.Context, input AcceptInput) (*models.DeliveryAssignment, error)
	Reject(ctx context.Context, input RejectInput) error
	PickUp(ctx context.Context, input PickUpInput) (*models.DeliveryAssignment, error)
	Complete(ctx context.Context, input CompleteInput) (*models.DeliveryAssignment, error)
	Cancel(ctx context.Context, input CancelInput) error
	CancelActiveForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.DeliveryAssignment, error)
	ExpireSweep(ctx context.Context, limit int) (int, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	couriers  couriers.Repository
	states    orderStates
	estimator pricing.Estimator
	baseRate  decimal.Decimal
	bonusCap  decimal.Decimal
	offerTTL  time.Duration
	engine    *metrics.EngineMetrics
	nowFunc   func() time.Time
}

// CreateInput dispatches an order through one of the three modes.
type CreateInput struct {
	OrderID                uuid.UUID
	Mode                   enums.AssignmentMode
	CandidateCourierUserID *uuid.UUID
	Bonus                  decimal.Decimal
	ActorUserID            uuid.UUID
	ActorRole              string
}

// GetInput loads a single assignment on behalf of an actor.
type GetInput struct {
	AssignmentID uuid.UUID
	ActorUserID  uuid.UUID
	ActorRole    string
}

// ListOpenInput pages through claimable offers for a courier.
type ListOpenInput struct {
	ActorUserID uuid.UUID
	ActorRole   string
	Params      pagination.Params
}

// ListMineInput pages through a courier's own assignments.
type ListMineInput struct {
	ActorUserID uuid.UUID
	ActorRole   string
	Params      pagination.Params
}

// AcceptInput claims a pending offer.
type AcceptInput struct {
	AssignmentID uuid.UUID
	ActorUserID  uuid.UUID
	ActorRole    string
}

// RejectInput declines a directed offer.
type RejectInput struct {
	AssignmentID uuid.UUID
	ActorUserID  uuid.UUID
	ActorRole    string
}

// PickUpInput marks the package as collected from the vendor.
type PickUpInput struct {
	AssignmentID uuid.UUID
	ActorUserID  uuid.UUID
	ActorRole    string
}

// CompleteInput finishes the delivery.
type CompleteInput struct {
	AssignmentID uuid.UUID
	ActorUserID  uuid.UUID
	ActorRole    string
}

// CancelInput withdraws an assignment before completion.
type CancelInput struct {
	AssignmentID uuid.UUID
	ActorUserID  uuid.UUID
	ActorRole    string
}

// NewService builds the dispatch service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, courierRepo couriers.Repository, states orderStates, estimator pricing.Estimator, cfg config.DispatchConfig, engine *metrics.EngineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if courierRepo == nil {
		return nil, fmt.Errorf("couriers repository required")
	}
	if states == nil {
		return nil, fmt.Errorf("order state store required")
	}
	if estimator == nil {
		return nil, fmt.Errorf("distance estimator required")
	}
	baseRate, err := decimal.NewFromString(cfg.BaseRatePerKM)
	if err != nil {
		return nil, fmt.Errorf("parse base rate %q: %w", cfg.BaseRatePerKM, err)
	}
	bonusCap, err := decimal.NewFromString(cfg.VendorBonusCap)
	if err != nil {
		return nil, fmt.Errorf("parse bonus cap %q: %w", cfg.VendorBonusCap, err)
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    publisher,
		couriers:  courierRepo,
		states:    states,
		estimator: estimator,
		baseRate:  baseRate,
		bonusCap:  bonusCap,
		offerTTL:  cfg.DirectedOfferTTL,
		engine:    engine,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// EffectiveStatus reports a pending offer past its clock as expired without
// waiting for the sweeper to persist the flip.
func EffectiveStatus(assignment *models.DeliveryAssignment, now time.Time) enums.AssignmentStatus {
	if assignment.Status == enums.AssignmentStatusPending &&
		assignment.ExpiresAt != nil && !assignment.ExpiresAt.After(now) {
		return enums.AssignmentStatusExpired
	}
	return assignment.Status
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.DeliveryAssignment, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid dispatch mode")
	}
	if input.Bonus.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bonus cannot be negative")
	}
	if input.Bonus.GreaterThan(s.bonusCap) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bonus exceeds the configured cap")
	}
	if input.Mode == enums.AssignmentModeDirected && input.CandidateCourierUserID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "directed dispatch requires a courier")
	}

	var created *models.DeliveryAssignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.states.FindTx(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if order.VendorUserID != input.ActorUserID && input.ActorRole != enums.ActorRoleAdmin.String() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
		if order.Status != enums.OrderStatusProcessing && order.Status != enums.OrderStatusShipped {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is not ready for dispatch")
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindActiveByOrder(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "an active assignment already exists for this order")
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		if order.Status == enums.OrderStatusProcessing {
			if _, err := s.states.TransitionTx(ctx, tx, order.ID, enums.OrderStatusShipped, actor); err != nil {
				return err
			}
		}

		now := s.nowFunc()
		distance := s.estimator.DistanceKM(ctx, order)
		assignment := &models.DeliveryAssignment{
			OrderID:      order.ID,
			VendorUserID: order.VendorUserID,
			Mode:         input.Mode,
			DistanceKM:   distance,
		}

		var offered []uuid.UUID
		switch input.Mode {
		case enums.AssignmentModeSelf:
			// The vendor carries the package themselves; nothing is owed.
			courierID := order.VendorUserID
			assignment.Status = enums.AssignmentStatusAccepted
			assignment.CourierID = &courierID
			assignment.AcceptedAt = &now
			assignment.CommissionAmount = decimal.Zero
			assignment.BonusAmount = decimal.Zero
		case enums.AssignmentModeDirected:
			candidate, err := s.couriers.WithTx(tx).FindByUserID(ctx, *input.CandidateCourierUserID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeValidation, "courier not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load candidate courier")
			}
			if !candidate.Available {
				return pkgerrors.New(pkgerrors.CodeConflict, "courier is not available")
			}
			expires := now.Add(s.offerTTL)
			assignment.Status = enums.AssignmentStatusPending
			assignment.CandidateCourierID = input.CandidateCourierUserID
			assignment.ExpiresAt = &expires
			assignment.CommissionAmount = pricing.Commission(distance, s.baseRate, input.Bonus)
			assignment.BonusAmount = input.Bonus
			offered = []uuid.UUID{candidate.UserID}
		case enums.AssignmentModeMarketplace:
			assignment.Status = enums.AssignmentStatusPending
			assignment.CommissionAmount = pricing.Commission(distance, s.baseRate, input.Bonus)
			assignment.BonusAmount = input.Bonus
			profiles, err := s.couriers.WithTx(tx).ListAvailable(ctx)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available couriers")
			}
			for _, profile := range profiles {
				offered = append(offered, profile.UserID)
			}
		}

		created, err = repo.Create(ctx, assignment)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
		}

		events := []outbox.DomainEvent{{
			EventType:     enums.EventAssignmentCreated,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AssignmentCreatedEvent{
				AssignmentID: created.ID,
				OrderID:      order.ID,
				VendorUserID: order.VendorUserID,
				Mode:         created.Mode,
				Commission:   created.CommissionAmount,
				Bonus:        created.BonusAmount,
			},
		}}
		switch input.Mode {
		case enums.AssignmentModeSelf:
			events = append(events, outbox.DomainEvent{
				EventType:     enums.EventAssignmentAccepted,
				AggregateType: enums.AggregateAssignment,
				AggregateID:   created.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.AssignmentAcceptedEvent{
					AssignmentID: created.ID,
					OrderID:      order.ID,
					CourierID:    *created.CourierID,
					AcceptedAt:   now,
				},
			})
		default:
			events = append(events, outbox.DomainEvent{
				EventType:     enums.EventAssignmentOffered,
				AggregateType: enums.AggregateAssignment,
				AggregateID:   created.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.AssignmentOfferedEvent{
					AssignmentID: created.ID,
					OrderID:      order.ID,
					Mode:         created.Mode,
					CourierIDs:   offered,
					Commission:   created.CommissionAmount,
					ExpiresAt:    created.ExpiresAt,
				},
			})
		}
		for _, event := range events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.DeliveryAssignment, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	assignment, err := s.repo.FindByID(ctx, input.AssignmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if !canViewAssignment(assignment, input.ActorUserID, input.ActorRole) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "assignment does not belong to user")
	}
	assignment.Status = EffectiveStatus(assignment, s.nowFunc())
	return assignment, nil
}

func (s *service) ListOpen(ctx context.Context, input ListOpenInput) (*AssignmentList, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ActorRole != enums.ActorRoleCourier.String() && input.ActorRole != enums.ActorRoleAdmin.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only couriers can browse offers")
	}
	list, err := s.repo.ListOpenForCourier(ctx, input.ActorUserID, s.nowFunc(), input.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open assignments")
	}
	return list, nil
}

func (s *service) ListMine(ctx context.Context, input ListMineInput) (*AssignmentList, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListByCourier(ctx, input.ActorUserID, input.Params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list courier assignments")
	}
	return list, nil
}

func (s *service) Accept(ctx context.Context, input AcceptInput) (*models.DeliveryAssignment, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var accepted *models.DeliveryAssignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := repo.FindByID(ctx, input.AssignmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}

		profile, err := s.couriers.WithTx(tx).FindByUserID(ctx, input.ActorUserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeForbidden, "courier profile required")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier profile")
		}

		now := s.nowFunc()
		if assignment.Status == enums.AssignmentStatusAccepted &&
			assignment.CourierID != nil && *assignment.CourierID == input.ActorUserID {
			accepted = assignment
			return nil
		}
		if err := s.guardClaimable(ctx, tx, assignment, now, input.ActorUserID); err != nil {
			return err
		}

		rows, err := repo.Accept(ctx, assignment.ID, input.ActorUserID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept assignment")
		}
		if rows == 0 {
			s.engine.IncClaimConflict("assignment_accept")
			fresh, err := repo.FindByID(ctx, assignment.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload assignment")
			}
			if EffectiveStatus(fresh, now) == enums.AssignmentStatusExpired {
				return pkgerrors.New(pkgerrors.CodeExpired, "offer has expired")
			}
			return pkgerrors.New(pkgerrors.CodeAlreadyTaken, "delivery already taken by another courier")
		}

		// The winner goes busy in the same transaction; if the flag was
		// already off the whole claim rolls back.
		flipped, err := s.couriers.WithTx(tx).SetAvailability(ctx, profile.ID, false)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set courier busy")
		}
		if flipped == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "courier already has an active delivery")
		}

		courierID := input.ActorUserID
		assignment.Status = enums.AssignmentStatusAccepted
		assignment.CourierID = &courierID
		assignment.AcceptedAt = &now
		accepted = assignment

		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentAccepted,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.AssignmentAcceptedEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				CourierID:    courierID,
				AcceptedAt:   now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return accepted, nil
}

// guardClaimable rejects claims that can never succeed before the CAS runs,
// persisting lazy expiry along the way.
func (s *service) guardClaimable(ctx context.Context, tx *gorm.DB, assignment *models.DeliveryAssignment, now time.Time, actorUserID uuid.UUID) error {
	switch assignment.Status {
	case enums.AssignmentStatusPending:
	case enums.AssignmentStatusExpired:
		return pkgerrors.New(pkgerrors.CodeExpired, "offer has expired")
	case enums.AssignmentStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "offer was withdrawn")
	default:
		return pkgerrors.New(pkgerrors.CodeAlreadyTaken, "delivery already taken by another courier")
	}
	if EffectiveStatus(assignment, now) == enums.AssignmentStatusExpired {
		if err := s.markExpiredTx(ctx, tx, assignment, now, nil); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeExpired, "offer has expired")
	}
	if assignment.Mode == enums.AssignmentModeDirected &&
		(assignment.CandidateCourierID == nil || *assignment.CandidateCourierID != actorUserID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "offer is directed at another courier")
	}
	return nil
}

func (s *service) Reject(ctx context.Context, input RejectInput) error {
	if input.AssignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := repo.FindByID(ctx, input.AssignmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if assignment.Mode != enums.AssignmentModeDirected {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only directed offers can be rejected")
		}
		if assignment.CandidateCourierID == nil || *assignment.CandidateCourierID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "offer is directed at another courier")
		}

		now := s.nowFunc()
		if EffectiveStatus(assignment, now) == enums.AssignmentStatusExpired {
			return pkgerrors.New(pkgerrors.CodeExpired, "offer has expired")
		}

		rows, err := repo.ClearCandidate(ctx, assignment.ID, input.ActorUserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear candidate")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "offer is no longer open")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		rejected := outbox.DomainEvent{
			EventType:     enums.EventAssignmentRejected,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AssignmentRejectedEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				CourierID:    input.ActorUserID,
				RejectedAt:   now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, rejected); err != nil {
			return err
		}

		// The offer falls back to the open pool with its clock intact.
		profiles, err := s.couriers.WithTx(tx).ListAvailable(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available couriers")
		}
		offered := make([]uuid.UUID, 0, len(profiles))
		for _, profile := range profiles {
			offered = append(offered, profile.UserID)
		}
		reoffered := outbox.DomainEvent{
			EventType:     enums.EventAssignmentOffered,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AssignmentOfferedEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				Mode:         enums.AssignmentModeMarketplace,
				CourierIDs:   offered,
				Commission:   assignment.CommissionAmount,
				ExpiresAt:    assignment.ExpiresAt,
			},
		}
		return s.outbox.Emit(ctx, tx, reoffered)
	})
}

func (s *service) PickUp(ctx context.Context, input PickUpInput) (*models.DeliveryAssignment, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.DeliveryAssignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := repo.FindByID(ctx, input.AssignmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if err := requireBoundCourier(assignment, input.ActorUserID, input.ActorRole); err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery is not awaiting pickup")
		}

		now := s.nowFunc()
		rows, err := repo.UpdateStatus(ctx, assignment.ID, enums.AssignmentStatusAccepted, enums.AssignmentStatusPickedUp, map[string]any{
			"picked_up_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark picked up")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "assignment changed concurrently")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		if _, err := s.states.TransitionTx(ctx, tx, assignment.OrderID, enums.OrderStatusOutForDelivery, actor); err != nil {
			return err
		}

		assignment.Status = enums.AssignmentStatusPickedUp
		assignment.PickedUpAt = &now
		updated = assignment

		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentPickedUp,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AssignmentPickedUpEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				CourierID:    *assignment.CourierID,
				PickedUpAt:   now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Complete(ctx context.Context, input CompleteInput) (*models.DeliveryAssignment, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.DeliveryAssignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := repo.FindByID(ctx, input.AssignmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if err := requireBoundCourier(assignment, input.ActorUserID, input.ActorRole); err != nil {
			return err
		}

		// Self deliveries skip the pickup step.
		from := assignment.Status
		switch {
		case assignment.Status == enums.AssignmentStatusPickedUp:
		case assignment.Status == enums.AssignmentStatusAccepted && assignment.Mode == enums.AssignmentModeSelf:
		default:
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "delivery is not in progress")
		}

		now := s.nowFunc()
		rows, err := repo.UpdateStatus(ctx, assignment.ID, from, enums.AssignmentStatusDelivered, map[string]any{
			"delivered_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "assignment changed concurrently")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		if _, err := s.states.TransitionTx(ctx, tx, assignment.OrderID, enums.OrderStatusDelivered, actor); err != nil {
			return err
		}

		if assignment.Mode != enums.AssignmentModeSelf && assignment.CourierID != nil {
			if err := s.releaseCourierTx(ctx, tx, *assignment.CourierID, true); err != nil {
				return err
			}
		}

		assignment.Status = enums.AssignmentStatusDelivered
		assignment.DeliveredAt = &now
		updated = assignment

		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentCompleted,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AssignmentCompletedEvent{
				AssignmentID: assignment.ID,
				OrderID:      assignment.OrderID,
				CourierID:    *assignment.CourierID,
				Commission:   assignment.CommissionAmount,
				DeliveredAt:  now,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.AssignmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := repo.FindByID(ctx, input.AssignmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if assignment.VendorUserID != input.ActorUserID && input.ActorRole != enums.ActorRoleAdmin.String() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "assignment does not belong to vendor")
		}
		// Once the courier holds the package the vendor can no longer pull
		// the delivery back; only completion ends it.
		switch assignment.Status {
		case enums.AssignmentStatusPending, enums.AssignmentStatusAccepted:
		default:
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "only pending or accepted deliveries can be cancelled")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		if _, err := s.cancelTx(ctx, tx, assignment, actor); err != nil {
			return err
		}

		// The order goes back to the vendor's queue for a fresh dispatch.
		order, err := s.states.FindTx(ctx, tx, assignment.OrderID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusShipped || order.Status == enums.OrderStatusOutForDelivery {
			if _, err := s.states.TransitionTx(ctx, tx, order.ID, enums.OrderStatusProcessing, actor); err != nil {
				return err
			}
		}
		return nil
	})
}

// CancelActiveForOrderTx withdraws the active assignment when the order itself
// is being cancelled. It is a no-op when nothing is active.
func (s *service) CancelActiveForOrderTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor *outbox.ActorRef) (*models.DeliveryAssignment, error) {
	repo := s.repo.WithTx(tx)
	assignment, err := repo.FindActiveByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
	}
	return s.cancelTx(ctx, tx, assignment, actor)
}

func (s *service) cancelTx(ctx context.Context, tx *gorm.DB, assignment *models.DeliveryAssignment, actor *outbox.ActorRef) (*models.DeliveryAssignment, error) {
	now := s.nowFunc()
	rows, err := s.repo.WithTx(tx).UpdateStatus(ctx, assignment.ID, assignment.Status, enums.AssignmentStatusCancelled, map[string]any{
		"cancelled_at": now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel assignment")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "assignment changed concurrently")
	}

	if assignment.Mode != enums.AssignmentModeSelf && assignment.CourierID != nil {
		if err := s.releaseCourierTx(ctx, tx, *assignment.CourierID, false); err != nil {
			return nil, err
		}
	}

	assignment.Status = enums.AssignmentStatusCancelled
	assignment.CancelledAt = &now

	event := outbox.DomainEvent{
		EventType:     enums.EventAssignmentCancelled,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignment.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.AssignmentCancelledEvent{
			AssignmentID: assignment.ID,
			OrderID:      assignment.OrderID,
			CourierID:    assignment.CourierID,
			CancelledAt:  now,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	return assignment, nil
}

// releaseCourierTx frees the courier and optionally counts the delivery.
func (s *service) releaseCourierTx(ctx context.Context, tx *gorm.DB, courierUserID uuid.UUID, completed bool) error {
	repo := s.couriers.WithTx(tx)
	profile, err := repo.FindByUserID(ctx, courierUserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier profile")
	}
	if _, err := repo.SetAvailability(ctx, profile.ID, true); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "free courier")
	}
	if completed {
		if err := repo.IncrementCompleted(ctx, profile.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed delivery")
		}
	}
	return nil
}

// ExpireSweep persists expiry for pending offers past their clock. It is run
// by the cron worker and is safe to repeat.
func (s *service) ExpireSweep(ctx context.Context, limit int) (int, error) {
	now := s.nowFunc()
	stale, err := s.repo.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired offers")
	}

	expired := 0
	var errs []error
	for i := range stale {
		assignment := stale[i]
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.markExpiredTx(ctx, tx, &assignment, now, nil)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		expired++
	}
	return expired, multierr.Combine(errs...)
}

func (s *service) markExpiredTx(ctx context.Context, tx *gorm.DB, assignment *models.DeliveryAssignment, now time.Time, actor *outbox.ActorRef) error {
	rows, err := s.repo.WithTx(tx).UpdateStatus(ctx, assignment.ID, enums.AssignmentStatusPending, enums.AssignmentStatusExpired, map[string]any{
		"expired_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark assignment expired")
	}
	if rows == 0 {
		// Someone else already resolved it.
		return nil
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventAssignmentExpired,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignment.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.AssignmentExpiredEvent{
			AssignmentID: assignment.ID,
			OrderID:      assignment.OrderID,
			CourierID:    assignment.CandidateCourierID,
			ExpiredAt:    now,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func requireBoundCourier(assignment *models.DeliveryAssignment, userID uuid.UUID, role string) error {
	if role == enums.ActorRoleAdmin.String() {
		return nil
	}
	if assignment.CourierID != nil && *assignment.CourierID == userID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "delivery is held by another courier")
}

func canViewAssignment(assignment *models.DeliveryAssignment, userID uuid.UUID, role string) bool {
	if role == enums.ActorRoleAdmin.String() {
		return true
	}
	if assignment.VendorUserID == userID {
		return true
	}
	if assignment.CourierID != nil && *assignment.CourierID == userID {
		return true
	}
	if assignment.CandidateCourierID != nil && *assignment.CandidateCourierID == userID {
		return true
	}
	// Open marketplace offers are visible to any courier browsing the pool.
	return assignment.Mode == enums.AssignmentModeMarketplace &&
		assignment.Status == enums.AssignmentStatusPending &&
		role == enums.ActorRoleCourier.String()
}
