package controllers

import (
	"net/http"

	"github.com/kiramarket/kirama-backend/api/responses"
	"github.com/kiramarket/kirama-backend/api/validators"
	"github.com/kiramarket/kirama-backend/internal/couriers"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/logger"
	"github.com/kiramarket/kirama-backend/pkg/types"
)

type registerCourierRequest struct {
	Phone       string `json:"phone" validate:"required,min=6,max=20"`
	VehicleType string `json:"vehicle_type"`
}

// RegisterCourier creates the actor's courier profile.
func RegisterCourier(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req registerCourierRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Register(r.Context(), couriers.RegisterInput{
			Phone:       validators.SanitizeString(req.Phone, 20),
			VehicleType: enums.VehicleType(req.VehicleType),
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, profile)
	}
}

// CourierProfile returns the actor's own courier profile.
func CourierProfile(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Get(r.Context(), couriers.GetInput{
			UserID:      act.UserID,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

// SetCourierAvailability toggles whether the actor accepts new deliveries.
func SetCourierAvailability(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req availabilityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.SetAvailability(r.Context(), couriers.AvailabilityInput{
			Available:   req.Available,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

type locationRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// UpdateCourierLocation reports the actor's current position.
func UpdateCourierLocation(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req locationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdateLocation(r.Context(), couriers.LocationInput{
			Point:       types.GeographyPoint{Lat: req.Lat, Lng: req.Lng},
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

// ListAvailableCouriers returns couriers currently open for work.
func ListAvailableCouriers(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profiles, err := svc.ListAvailable(r.Context(), couriers.ListAvailableInput{
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profiles)
	}
}

type rateCourierRequest struct {
	Score   int     `json:"score" validate:"required,min=1,max=5"`
	Comment *string `json:"comment,omitempty"`
}

// RateCourier scores the courier who delivered an order.
func RateCourier(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req rateCourierRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Comment != nil {
			trimmed := validators.SanitizeString(*req.Comment, 500)
			req.Comment = &trimmed
		}

		rating, err := svc.Rate(r.Context(), couriers.RateInput{
			OrderID:     orderID,
			Score:       req.Score,
			Comment:     req.Comment,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, rating)
	}
}
