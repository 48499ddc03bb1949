package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiramarket/kirama-backend/pkg/db/models"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery token repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, token *models.DeliveryToken) (*models.DeliveryToken, error) {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.DeliveryToken, error) {
	var token models.DeliveryToken
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryToken, error) {
	var token models.DeliveryToken
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID, now time.Time) (*models.DeliveryToken, error) {
	var token models.DeliveryToken
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND used = ? AND expires_at > ?", orderID, false, now).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Consume burns the token with a guarded update. Zero rows means another
// scanner won the race or the token ran out its clock in between.
func (r *repository) Consume(ctx context.Context, id uuid.UUID, now time.Time, customerConfirmed, counterpartyConfirmed bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DeliveryToken{}).
		Where("id = ? AND used = ? AND expires_at > ?", id, false, now).
		Updates(map[string]any{
			"used":                   true,
			"used_at":                now,
			"customer_confirmed":     customerConfirmed,
			"counterparty_confirmed": counterpartyConfirmed,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
