package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/api/responses"
	"github.com/kiramarket/kirama-backend/api/validators"
	"github.com/kiramarket/kirama-backend/internal/fulfillment"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	pkgerrors "github.com/kiramarket/kirama-backend/pkg/errors"
	"github.com/kiramarket/kirama-backend/pkg/logger"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

type createOrderRequest struct {
	VendorUserID    string                `json:"vendor_user_id" validate:"required"`
	PaymentMethod   string                `json:"payment_method"`
	DeliveryMode    string                `json:"delivery_mode"`
	TotalAmount     string                `json:"total_amount" validate:"required"`
	DeliveryAddress *string               `json:"delivery_address,omitempty"`
	DeliveryCity    *string               `json:"delivery_city,omitempty"`
	DeliveryPoint   *types.GeographyPoint `json:"delivery_point,omitempty"`
	VendorCity      *string               `json:"vendor_city,omitempty"`
	VendorPoint     *types.GeographyPoint `json:"vendor_point,omitempty"`
}

// CreateOrder places a new order for the authenticated customer.
func CreateOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vendorID, err := uuid.Parse(req.VendorUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "vendor_user_id must be a UUID"))
			return
		}
		amount, err := decimal.NewFromString(req.TotalAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "total_amount must be a decimal string"))
			return
		}

		order, err := svc.Create(r.Context(), fulfillment.CreateOrderInput{
			CustomerUserID:  act.UserID,
			VendorUserID:    vendorID,
			PaymentMethod:   enums.PaymentMethod(req.PaymentMethod),
			DeliveryMode:    enums.DeliveryMode(req.DeliveryMode),
			TotalAmount:     amount,
			DeliveryAddress: req.DeliveryAddress,
			DeliveryCity:    req.DeliveryCity,
			DeliveryPoint:   req.DeliveryPoint,
			VendorCity:      req.VendorCity,
			VendorPoint:     req.VendorPoint,
			ActorUserID:     act.UserID,
			ActorRole:       act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// GetOrder returns a single order visible to the actor.
func GetOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.Get(r.Context(), fulfillment.GetOrderInput{
			OrderID:     orderID,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListOrders pages through the actor's orders, newest first.
func ListOrders(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := fulfillment.ListOrdersInput{
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParseOrderStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
			input.Filters.Status = &status
		}
		if from, parseErr := parseQueryTime(r, "from"); parseErr != nil {
			responses.WriteError(r.Context(), logg, w, parseErr)
			return
		} else if from != nil {
			input.Filters.DateFrom = from
		}
		if to, parseErr := parseQueryTime(r, "to"); parseErr != nil {
			responses.WriteError(r.Context(), logg, w, parseErr)
			return
		} else if to != nil {
			input.Filters.DateTo = to
		}

		list, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type advanceOrderRequest struct {
	To string `json:"to" validate:"required"`
}

// AdvanceOrder moves an order forward through the vendor's queue.
func AdvanceOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req advanceOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseOrderStatus(req.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status"))
			return
		}

		order, err := svc.Advance(r.Context(), fulfillment.AdvanceOrderInput{
			OrderID:     orderID,
			To:          target,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder withdraws an order before delivery.
func CancelOrder(svc fulfillment.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), fulfillment.CancelOrderInput{
			OrderID:     orderID,
			Reason:      validators.SanitizeString(req.Reason, 500),
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}

func parseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "time filter must be RFC3339").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}
