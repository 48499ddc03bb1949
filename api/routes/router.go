package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kiramarket/kirama-backend/api/controllers"
	"github.com/kiramarket/kirama-backend/api/middleware"
	"github.com/kiramarket/kirama-backend/internal/couriers"
	"github.com/kiramarket/kirama-backend/internal/dispatch"
	"github.com/kiramarket/kirama-backend/internal/fulfillment"
	"github.com/kiramarket/kirama-backend/internal/notifications"
	"github.com/kiramarket/kirama-backend/internal/tokens"
	"github.com/kiramarket/kirama-backend/pkg/config"
	"github.com/kiramarket/kirama-backend/pkg/db"
	"github.com/kiramarket/kirama-backend/pkg/logger"
	"github.com/kiramarket/kirama-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc fulfillment.Service,
	tokensSvc tokens.Service,
	dispatchSvc dispatch.Service,
	couriersSvc couriers.Service,
	notificationsSvc notifications.Service,
) http.Handler {
	r := chi.NewRouter()

	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		idempotencyStore = redisClient
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	var redisPinger db.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// The scan endpoint is open to anyone following a QR link, so it sits
		// outside the auth gate and leans on the rate limiter instead.
		r.With(middleware.ScanRateLimit(cfg.ScanLimit, redisClient, logg)).
			Post("/tokens/scan", controllers.ScanToken(tokensSvc, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(ordersSvc, logg))
				r.Get("/", controllers.ListOrders(ordersSvc, logg))
				r.Get("/{orderId}", controllers.GetOrder(ordersSvc, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(ordersSvc, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAnyRole(logg, "vendor", "admin"))
					r.Post("/{orderId}/advance", controllers.AdvanceOrder(ordersSvc, logg))
					r.Post("/{orderId}/dispatch", controllers.DispatchOrder(dispatchSvc, logg))
				})

				r.Post("/{orderId}/token", controllers.IssueToken(tokensSvc, cfg.App.PublicBaseURL, logg))
				r.With(middleware.RequireRole("customer", logg)).
					Post("/{orderId}/rate", controllers.RateCourier(couriersSvc, logg))
			})

			r.Post("/tokens/consume", controllers.ConsumeToken(tokensSvc, logg))

			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/{assignmentId}", controllers.GetDelivery(dispatchSvc, logg))
				r.With(middleware.RequireAnyRole(logg, "vendor", "admin")).
					Post("/{assignmentId}/cancel", controllers.CancelDelivery(dispatchSvc, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole("courier", logg))
					r.Get("/open", controllers.ListOpenDeliveries(dispatchSvc, logg))
					r.Get("/mine", controllers.ListMyDeliveries(dispatchSvc, logg))
					r.Post("/{assignmentId}/accept", controllers.AcceptDelivery(dispatchSvc, logg))
					r.Post("/{assignmentId}/reject", controllers.RejectDelivery(dispatchSvc, logg))
				})

				// Vendors carry their own self-mode deliveries, so pickup and
				// complete admit them too; the service still checks that the
				// caller is the bound courier.
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAnyRole(logg, "courier", "vendor", "admin"))
					r.Post("/{assignmentId}/pickup", controllers.PickUpDelivery(dispatchSvc, logg))
					r.Post("/{assignmentId}/complete", controllers.CompleteDelivery(dispatchSvc, logg))
				})
			})

			r.Route("/couriers", func(r chi.Router) {
				r.Post("/", controllers.RegisterCourier(couriersSvc, logg))
				r.With(middleware.RequireAnyRole(logg, "vendor", "admin")).
					Get("/available", controllers.ListAvailableCouriers(couriersSvc, logg))

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole("courier", logg))
					r.Get("/me", controllers.CourierProfile(couriersSvc, logg))
					r.Put("/me/availability", controllers.SetCourierAvailability(couriersSvc, logg))
					r.Put("/me/location", controllers.UpdateCourierLocation(couriersSvc, logg))
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsSvc, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsSvc, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsSvc, logg))
			})
		})
	})

	return r
}
