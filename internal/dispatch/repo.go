package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
	"github.com/kiramarket/kirama-backend/pkg/enums"
	"github.com/kiramarket/kirama-backend/pkg/pagination"
)

var activeStatuses = []enums.AssignmentStatus{
	enums.AssignmentStatusPending,
	enums.AssignmentStatusAccepted,
	enums.AssignmentStatusPickedUp,
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an assignments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, assignment *models.DeliveryAssignment) (*models.DeliveryAssignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, activeStatuses).
		Order("created_at DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindDeliveredByOrder(ctx context.Context, orderID uuid.UUID) (*models.DeliveryAssignment, error) {
	var assignment models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.AssignmentStatusDelivered).
		Order("created_at DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) IsCourierBoundTx(ctx context.Context, tx *gorm.DB, orderID, courierUserID uuid.UUID) (bool, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	var count int64
	err := db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("order_id = ? AND courier_id = ? AND status IN ?", orderID, courierUserID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) HasActiveForCourier(ctx context.Context, courierUserID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("courier_id = ? AND status IN ?", courierUserID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListOpenForCourier returns claimable work: open marketplace offers plus
// directed offers targeting this courier, skipping anything already expired.
func (r *repository) ListOpenForCourier(ctx context.Context, courierUserID uuid.UUID, now time.Time, params pagination.Params) (*AssignmentList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("status = ?", enums.AssignmentStatusPending).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where(
			"(mode = ? AND candidate_courier_id IS NULL) OR (mode = ? AND candidate_courier_id = ?)",
			enums.AssignmentModeMarketplace, enums.AssignmentModeDirected, courierUserID,
		)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.DeliveryAssignment
	err = query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return paginate(rows, limit), nil
}

func (r *repository) ListByCourier(ctx context.Context, courierUserID uuid.UUID, params pagination.Params) (*AssignmentList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("courier_id = ?", courierUserID)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.DeliveryAssignment
	err = query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return paginate(rows, limit), nil
}

func (r *repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.DeliveryAssignment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.DeliveryAssignment
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.AssignmentStatusPending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Accept binds the courier with a guarded update. Zero rows means another
// courier won the race, the offer expired, or it was withdrawn.
func (r *repository) Accept(ctx context.Context, id, courierUserID uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where(
			"id = ? AND status = ? AND (expires_at IS NULL OR expires_at > ?)",
			id, enums.AssignmentStatusPending, now,
		).
		Updates(map[string]any{
			"status":      enums.AssignmentStatusAccepted,
			"courier_id":  courierUserID,
			"accepted_at": now,
			"updated_at":  now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ClearCandidate opens a rejected directed offer to the marketplace pool.
func (r *repository) ClearCandidate(ctx context.Context, id, courierUserID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where(
			"id = ? AND status = ? AND candidate_courier_id = ?",
			id, enums.AssignmentStatusPending, courierUserID,
		).
		Updates(map[string]any{
			"candidate_courier_id": nil,
			"mode":                 enums.AssignmentModeMarketplace,
			"updated_at":           time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AssignmentStatus, stamps map[string]any) (int64, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	for column, value := range stamps {
		updates[column] = value
	}
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryAssignment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func paginate(rows []models.DeliveryAssignment, limit int) *AssignmentList {
	list := &AssignmentList{}
	if len(rows) > limit {
		last := rows[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	list.Assignments = summarize(rows)
	return list
}
