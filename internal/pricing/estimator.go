package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/pkg/config"
	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/logger"
)

// Estimator resolves a delivery distance for an order. It never fails: when
// neither coordinates nor a known city pair is available it falls back to the
// configured default so dispatch can always price an assignment.
type Estimator interface {
	DistanceKM(ctx context.Context, order *models.Order) decimal.Decimal
}

type estimator struct {
	cfg  config.DispatchConfig
	logg *logger.Logger
}

func NewEstimator(cfg config.DispatchConfig, logg *logger.Logger) (Estimator, error) {
	if logg == nil {
		return nil, fmt.Errorf("pricing estimator requires a logger")
	}
	return &estimator{cfg: cfg, logg: logg}, nil
}

func (e *estimator) DistanceKM(ctx context.Context, order *models.Order) decimal.Decimal {
	if order == nil {
		return decimal.NewFromFloat(e.cfg.DefaultDistanceKM)
	}
	if order.VendorPoint != nil && order.DeliveryPoint != nil {
		km := HaversineKM(*order.VendorPoint, *order.DeliveryPoint)
		return decimal.NewFromFloat(km).Round(2)
	}
	if order.VendorCity != nil && order.DeliveryCity != nil {
		if km, ok := CityDistanceKM(*order.VendorCity, *order.DeliveryCity); ok {
			return decimal.NewFromFloat(km).Round(2)
		}
	}
	e.logg.Debug(ctx, "no coordinates or known cities on order, using default distance")
	return decimal.NewFromFloat(e.cfg.DefaultDistanceKM)
}
