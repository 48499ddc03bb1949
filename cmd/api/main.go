package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiramarket/kirama-backend/api/routes"
	"github.com/kiramarket/kirama-backend/internal/couriers"
	"github.com/kiramarket/kirama-backend/internal/dispatch"
	"github.com/kiramarket/kirama-backend/internal/fulfillment"
	"github.com/kiramarket/kirama-backend/internal/notifications"
	"github.com/kiramarket/kirama-backend/internal/pricing"
	"github.com/kiramarket/kirama-backend/internal/tokens"
	"github.com/kiramarket/kirama-backend/pkg/config"
	"github.com/kiramarket/kirama-backend/pkg/db"
	"github.com/kiramarket/kirama-backend/pkg/logger"
	"github.com/kiramarket/kirama-backend/pkg/metrics"
	"github.com/kiramarket/kirama-backend/pkg/migrate"
	"github.com/kiramarket/kirama-backend/pkg/outbox"
	"github.com/kiramarket/kirama-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	engine := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	orderRepo := fulfillment.NewRepository(dbClient.DB())
	dispatchRepo := dispatch.NewRepository(dbClient.DB())
	courierRepo := couriers.NewRepository(dbClient.DB())

	states, err := fulfillment.NewStateStore(orderRepo, outboxSvc, engine)
	if err != nil {
		logg.Error(context.Background(), "failed to create order state store", err)
		os.Exit(1)
	}

	estimator, err := pricing.NewEstimator(cfg.Dispatch, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create distance estimator", err)
		os.Exit(1)
	}

	dispatchSvc, err := dispatch.NewService(dispatchRepo, dbClient, outboxSvc, courierRepo, states, estimator, cfg.Dispatch, engine)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	ordersSvc, err := fulfillment.NewService(orderRepo, dbClient, outboxSvc, states, dispatchSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}

	tokensSvc, err := tokens.NewService(tokens.NewRepository(dbClient.DB()), dbClient, outboxSvc, states, dispatchRepo, cfg.Dispatch, engine)
	if err != nil {
		logg.Error(context.Background(), "failed to create token service", err)
		os.Exit(1)
	}

	couriersSvc, err := couriers.NewService(courierRepo, dbClient, outboxSvc, orderRepo, dispatchRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create courier service", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, tokensSvc, dispatchSvc, couriersSvc, notificationsSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
