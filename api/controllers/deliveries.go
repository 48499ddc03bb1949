package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/api/responses"
	"github.com/kiramarket/kirama-backend/api/validators"
	"github.com/kiramarket/kirama-backend/internal/dispatch"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/logger"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
)

type dispatchOrderRequest struct {
	Mode             string  `json:"mode" validate:"required"`
	CandidateCourier *string `json:"candidate_courier_user_id,omitempty"`
	Bonus            *string `json:"bonus,omitempty"`
}

// DispatchOrder opens a delivery assignment for an order in one of the three
// dispatch modes.
func DispatchOrder(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req dispatchOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := dispatch.CreateInput{
			OrderID:     orderID,
			Mode:        enums.AssignmentMode(req.Mode),
			Bonus:       decimal.Zero,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		}
		if req.CandidateCourier != nil {
			candidate, parseErr := uuid.Parse(*req.CandidateCourier)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "candidate_courier_user_id must be a UUID"))
				return
			}
			input.CandidateCourierUserID = &candidate
		}
		if req.Bonus != nil {
			bonus, parseErr := decimal.NewFromString(*req.Bonus)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "bonus must be a decimal string"))
				return
			}
			input.Bonus = bonus
		}

		assignment, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, assignment)
	}
}

// GetDelivery returns a single assignment visible to the actor.
func GetDelivery(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := pathUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Get(r.Context(), dispatch.GetInput{
			AssignmentID: assignmentID,
			ActorUserID:  act.UserID,
			ActorRole:    act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, assignment)
	}
}

// ListOpenDeliveries pages through offers the courier can still claim.
func ListOpenDeliveries(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListOpen(r.Context(), dispatch.ListOpenInput{
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
			Params:      params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListMyDeliveries pages through the courier's own assignments.
func ListMyDeliveries(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListMine(r.Context(), dispatch.ListMineInput{
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
			Params:      params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AcceptDelivery claims a pending offer. Exactly one courier wins a race.
func AcceptDelivery(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryAction(logg, func(r *http.Request, act actor, id uuid.UUID) (any, error) {
		return svc.Accept(r.Context(), dispatch.AcceptInput{
			AssignmentID: id,
			ActorUserID:  act.UserID,
			ActorRole:    act.Role,
		})
	})
}

// RejectDelivery declines a directed offer, converting it to marketplace.
func RejectDelivery(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryAction(logg, func(r *http.Request, act actor, id uuid.UUID) (any, error) {
		if err := svc.Reject(r.Context(), dispatch.RejectInput{
			AssignmentID: id,
			ActorUserID:  act.UserID,
			ActorRole:    act.Role,
		}); err != nil {
			return nil, err
		}
		return map[string]string{"status": "rejected"}, nil
	})
}

// PickUpDelivery marks the package as collected from the vendor.
func PickUpDelivery(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryAction(logg, func(r *http.Request, act actor, id uuid.UUID) (any, error) {
		return svc.PickUp(r.Context(), dispatch.PickUpInput{
			AssignmentID: id,
			ActorUserID:  act.UserID,
			ActorRole:    act.Role,
		})
	})
}

// CompleteDelivery finishes the delivery and frees the courier.
func CompleteDelivery(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryAction(logg, func(r *http.Request, act actor, id uuid.UUID) (any, error) {
		return svc.Complete(r.Context(), dispatch.CompleteInput{
			AssignmentID: id,
			ActorUserID:  act.UserID,
			ActorRole:    act.Role,
		})
	})
}

// CancelDelivery withdraws an assignment before completion.
func CancelDelivery(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return deliveryAction(logg, func(r *http.Request, act actor, id uuid.UUID) (any, error) {
		if err := svc.Cancel(r.Context(), dispatch.CancelInput{
			AssignmentID: id,
			ActorUserID:  act.UserID,
			ActorRole:    act.Role,
		}); err != nil {
			return nil, err
		}
		return map[string]string{"status": "cancelled"}, nil
	})
}

func deliveryAction(logg *logger.Logger, fn func(*http.Request, actor, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignmentID, err := pathUUID(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := fn(r, act, assignmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func listParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
