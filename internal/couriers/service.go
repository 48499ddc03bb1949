package couriers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/kiramarket/kirama-backend/pkg/db"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/outbox/payloads"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderReader loads orders so ratings can be tied to delivered work.
type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// AssignmentReader answers delivery questions the courier domain cannot see
// on its own. The dispatch repository implements it.
type AssignmentReader interface {
	FindDeliveredByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error)
	HasActiveForCourier(ctx context.Context, courierUserID uuid.UUID) (bool, error)
}

// Service defines courier profile and rating operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.CourierProfile, error)
	Get(ctx context.Context, input GetInput) (*models.CourierProfile, error)
	SetAvailability(ctx context.Context, input AvailabilityInput) (*models.CourierProfile, error)
	UpdateLocation(ctx context.Context, input LocationInput) error
	ListAvailable(ctx context.Context, input ListAvailableInput) ([]models.CourierProfile, error)
	Rate(ctx context.Context, input RateInput) (*models.CourierRating, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	orders      orderReader
	assignments AssignmentReader
	nowFunc     func() time.Time
}

// RegisterInput creates the actor's courier profile.
type RegisterInput struct {
	Phone       string
	VehicleType enums.VehicleType
	ActorUserID uuid.UUID
	ActorRole   string
}

// GetInput loads a courier profile by its owner.
type GetInput struct {
	UserID      uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   string
}

// AvailabilityInput toggles whether the actor accepts new deliveries.
type AvailabilityInput struct {
	Available   bool
	ActorUserID uuid.UUID
	ActorRole   string
}

// LocationInput reports the actor's current position.
type LocationInput struct {
	Point       types.GeographyPoint
	ActorUserID uuid.UUID
	ActorRole   string
}

// ListAvailableInput lists couriers open for work.
type ListAvailableInput struct {
	ActorUserID uuid.UUID
	ActorRole   string
}

// RateInput scores the courier who delivered an order.
type RateInput struct {
	OrderID     uuid.UUID
	Score       int
	Comment     *string
	ActorUserID uuid.UUID
	ActorRole   string
}

// NewService builds the courier service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, orders orderReader, assignments AssignmentReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("couriers repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if assignments == nil {
		return nil, fmt.Errorf("assignment reader required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      publisher,
		orders:      orders,
		assignments: assignments,
		nowFunc:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.CourierProfile, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone required")
	}
	if input.VehicleType == "" {
		input.VehicleType = enums.VehicleTypeMotorbike
	}
	if !input.VehicleType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid vehicle type")
	}

	profile, err := s.repo.Create(ctx, &models.CourierProfile{
		UserID:      input.ActorUserID,
		Phone:       input.Phone,
		VehicleType: input.VehicleType,
		Available:   true,
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "courier profile already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create courier profile")
	}
	return profile, nil
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.CourierProfile, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	target := input.UserID
	if target == uuid.Nil {
		target = input.ActorUserID
	}
	if target != input.ActorUserID {
		switch input.ActorRole {
		case enums.ActorRoleAdmin.String(), enums.ActorRoleVendor.String():
		default:
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "cannot read another courier's profile")
		}
	}
	profile, err := s.repo.FindByUserID(ctx, target)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "courier profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier profile")
	}
	return profile, nil
}

func (s *service) SetAvailability(ctx context.Context, input AvailabilityInput) (*models.CourierProfile, error) {
	profile, err := s.Get(ctx, GetInput{ActorUserID: input.ActorUserID, ActorRole: input.ActorRole})
	if err != nil {
		return nil, err
	}
	// The dispatch engine owns the flag while a delivery is in flight; coming
	// back online with an active assignment would allow a second booking.
	if input.Available {
		busy, err := s.assignments.HasActiveForCourier(ctx, profile.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active deliveries")
		}
		if busy {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "courier holds an active delivery")
		}
	}
	if _, err := s.repo.SetAvailability(ctx, profile.ID, input.Available); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set availability")
	}
	profile.Available = input.Available
	return profile, nil
}

func (s *service) UpdateLocation(ctx context.Context, input LocationInput) error {
	profile, err := s.Get(ctx, GetInput{ActorUserID: input.ActorUserID, ActorRole: input.ActorRole})
	if err != nil {
		return err
	}
	if err := s.repo.UpdateLocation(ctx, profile.ID, input.Point, s.nowFunc()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update location")
	}
	return nil
}

func (s *service) ListAvailable(ctx context.Context, input ListAvailableInput) ([]models.CourierProfile, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	switch input.ActorRole {
	case enums.ActorRoleVendor.String(), enums.ActorRoleAdmin.String():
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only vendors can browse couriers")
	}
	profiles, err := s.repo.ListAvailable(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list available couriers")
	}
	return profiles, nil
}

func (s *service) Rate(ctx context.Context, input RateInput) (*models.CourierRating, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Score < 1 || input.Score > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "score must be between 1 and 5")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerUserID != input.ActorUserID && input.ActorRole != enums.ActorRoleAdmin.String() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the customer can rate this delivery")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "only delivered orders can be rated")
	}

	assignment, err := s.assignments.FindDeliveredByOrder(ctx, order.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no delivered assignment for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment.CourierID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no courier bound to this order")
	}

	var rating *models.CourierRating
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		profile, err := repo.FindByUserID(ctx, *assignment.CourierID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "courier profile not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier profile")
		}

		rating, err = repo.CreateRating(ctx, &models.CourierRating{
			OrderID:        order.ID,
			CourierID:      profile.ID,
			CustomerUserID: order.CustomerUserID,
			Score:          input.Score,
			Comment:        input.Comment,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already rated")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create rating")
		}
		if err := repo.ApplyRating(ctx, profile.ID, input.Score); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply rating")
		}

		updated, err := repo.FindByID(ctx, profile.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload courier profile")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventCourierRated,
			AggregateType: enums.AggregateCourier,
			AggregateID:   profile.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.CourierRatedEvent{
				CourierID: profile.ID,
				OrderID:   order.ID,
				Score:     input.Score,
				NewRating: updated.Rating,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}
