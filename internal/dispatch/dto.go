package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
)

// AssignmentSummary exposes the fields returned in courier and vendor lists.
type AssignmentSummary struct {
	ID               uuid.UUID              `json:"id"`
	OrderID          uuid.UUID              `json:"order_id"`
	Mode             enums.AssignmentMode   `json:"mode"`
	Status           enums.AssignmentStatus `json:"status"`
	DistanceKM       decimal.Decimal        `json:"distance_km"`
	CommissionAmount decimal.Decimal        `json:"commission_amount"`
	BonusAmount      decimal.Decimal        `json:"bonus_amount"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// AssignmentList wraps paginated assignments plus the next cursor.
type AssignmentList struct {
	Assignments []AssignmentSummary `json:"assignments"`
	NextCursor  string              `json:"next_cursor,omitempty"`
}

func summarize(rows []models.DeliveryAssignment) []AssignmentSummary {
	out := make([]AssignmentSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, AssignmentSummary{
			ID:               row.ID,
			OrderID:          row.OrderID,
			Mode:             row.Mode,
			Status:           row.Status,
			DistanceKM:       row.DistanceKM,
			CommissionAmount: row.CommissionAmount,
			BonusAmount:      row.BonusAmount,
			ExpiresAt:        row.ExpiresAt,
			CreatedAt:        row.CreatedAt,
		})
	}
	return out
}
